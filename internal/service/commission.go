package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
)

// CommissionService computes the hierarchical commission spread for a settled
// transaction. Each intermediary earns (childRate − parentRate) × amount; the
// platform retains the channel base cost portion as cost recovery.
type CommissionService struct {
	store RateStore
	rates *RateService
}

func NewCommissionService(store RateStore, rates *RateService) *CommissionService {
	return &CommissionService{store: store, rates: rates}
}

// SplitCommission walks the owner's ancestor chain up to the platform and
// returns one split per ancestor, platform last. The splits sum to exactly
// ownerRate × amount: intermediary spreads are truncated and the platform
// absorbs the rounding remainder. A negative spread means the floor
// constraint was bypassed at write time and fails loudly.
func (s *CommissionService) SplitCommission(ctx context.Context, amount int64, gatewayID, channelID, ownerUserID uuid.UUID) ([]models.CommissionSplit, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("invalid amount: %d", amount)
	}

	channel, err := s.store.Channel(ctx, channelID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNoRateConfigured
		}
		return nil, fmt.Errorf("lookup channel %s: %w", channelID, err)
	}

	chain, err := s.ancestorChain(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}

	ownerRate, err := s.rates.Resolve(ctx, gatewayID, channelID, ownerUserID, channel.Direction)
	if err != nil {
		return nil, err
	}
	ownerCost := domain.ApplyRate(amount, ownerRate)

	var splits []models.CommissionSplit
	var distributed int64
	childRate := ownerRate
	child := chain[0]
	for _, parent := range chain[1:] {
		var parentRate decimal.Decimal
		if parent.Role == domain.RolePlatform {
			// The chain terminates at the platform, whose rate is the
			// gateway's cost for the channel.
			parentRate = channel.BaseCost
		} else {
			parentRate, err = s.rates.Resolve(ctx, gatewayID, channelID, parent.ID, channel.Direction)
			if err != nil {
				return nil, err
			}
		}

		spreadRate := childRate.Sub(parentRate)
		if spreadRate.IsNegative() {
			return nil, &models.NegativeSpreadError{
				ChildID:    child.ID,
				ParentID:   parent.ID,
				ChildRate:  childRate,
				ParentRate: parentRate,
			}
		}

		if parent.Role != domain.RolePlatform {
			spread := decimal.NewFromInt(amount).Mul(spreadRate).IntPart()
			splits = append(splits, models.CommissionSplit{
				UserID: parent.ID,
				Role:   parent.Role,
				Rate:   spreadRate,
				Amount: spread,
			})
			distributed += spread
		} else {
			// The platform's split is its spread over the base cost plus the
			// base cost recovery itself, i.e. everything not yet distributed.
			splits = append(splits, models.CommissionSplit{
				UserID: parent.ID,
				Role:   parent.Role,
				Rate:   childRate,
				Amount: ownerCost - distributed,
			})
		}

		child = parent
		childRate = parentRate
	}

	return splits, nil
}

// ancestorChain walks parent pointers from the owner to the platform root.
// The hierarchy is a tree; cycles and excessive depth are rejected
// defensively rather than trusted.
func (s *CommissionService) ancestorChain(ctx context.Context, ownerUserID uuid.UUID) ([]*models.User, error) {
	seen := make(map[uuid.UUID]struct{})
	var chain []*models.User

	id := ownerUserID
	for depth := 0; ; depth++ {
		if depth > domain.MaxHierarchyDepth {
			return nil, &models.HierarchyError{UserID: ownerUserID, Reason: "ancestor chain exceeds depth limit"}
		}
		if _, ok := seen[id]; ok {
			return nil, &models.HierarchyError{UserID: id, Reason: "cycle in parent chain"}
		}
		seen[id] = struct{}{}

		user, err := s.store.User(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lookup user %s: %w", id, err)
		}
		if len(chain) > 0 {
			prev := chain[len(chain)-1]
			if !user.Role.SeniorTo(prev.Role) {
				return nil, &models.HierarchyError{UserID: user.ID, Reason: fmt.Sprintf("parent role %s not senior to %s", user.Role, prev.Role)}
			}
		}
		chain = append(chain, user)

		if user.Role == domain.RolePlatform {
			return chain, nil
		}
		if user.ParentID == nil {
			return nil, &models.HierarchyError{UserID: user.ID, Reason: "chain does not terminate at platform"}
		}
		id = *user.ParentID
	}
}
