package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
	"github.com/nileshk07/paygrid/internal/observability"
)

// SettlementService is the full posting path for a settled payin reported by
// the gateway adapter: resolve the owner's effective rate, compute the
// commission chain, then post the net credit and every commission split in
// one atomic unit keyed by the gateway's transaction reference.
type SettlementService struct {
	rates      *RateService
	commission *CommissionService
	ledger     *LedgerService
}

func NewSettlementService(rates *RateService, commission *CommissionService, ledger *LedgerService) *SettlementService {
	return &SettlementService{rates: rates, commission: commission, ledger: ledger}
}

var hundred = decimal.NewFromInt(100)

// PayinSettlement is a settled transaction as reported by the gateway.
type PayinSettlement struct {
	GatewayID   uuid.UUID `json:"gateway_id"`
	ChannelID   uuid.UUID `json:"channel_id"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	Amount      int64     `json:"amount"`
	Reference   string    `json:"reference"`
}

// SettlementResult reports what was posted.
type SettlementResult struct {
	Reference string                   `json:"reference"`
	NetAmount int64                    `json:"net_amount"`
	OwnerCost int64                    `json:"owner_cost"`
	Splits    []models.CommissionSplit `json:"splits"`
	Entries   []models.LedgerEntry     `json:"entries"`
}

// SettlePayin posts a settled payin. Integrity errors (no rate, negative
// spread) propagate untouched: the transaction must not settle on a guessed
// rate, and the caller flags it for manual review.
func (s *SettlementService) SettlePayin(ctx context.Context, req PayinSettlement) (*SettlementResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("invalid amount: %d", req.Amount)
	}
	if req.Reference == "" {
		return nil, errors.New("reference is required")
	}

	splits, err := s.commission.SplitCommission(ctx, req.Amount, req.GatewayID, req.ChannelID, req.OwnerUserID)
	if err != nil {
		var spreadErr *models.NegativeSpreadError
		if errors.Is(err, models.ErrNoRateConfigured) || errors.As(err, &spreadErr) {
			observability.IncrementIntegrityFailure()
			zap.L().Error("settlement refused: catalog integrity failure",
				zap.Error(err),
				zap.String("reference", req.Reference),
				zap.String("owner_user_id", req.OwnerUserID.String()),
			)
		}
		return nil, err
	}

	var ownerCost int64
	for _, split := range splits {
		ownerCost += split.Amount
	}
	net := req.Amount - ownerCost

	postings := []Posting{{
		UserID:      req.OwnerUserID,
		Type:        domain.EntryCredit,
		Amount:      net,
		Description: "payin settlement " + req.Reference,
	}}
	for _, split := range splits {
		if split.Amount == 0 {
			continue
		}
		postings = append(postings, Posting{
			UserID:      split.UserID,
			Type:        domain.EntryCommission,
			Amount:      split.Amount,
			Description: fmt.Sprintf("commission on %s (%s%%)", req.Reference, split.Rate.Mul(hundred).String()),
		})
	}

	entries, err := s.ledger.Post(ctx, req.Reference, postings)
	if err != nil {
		return nil, err
	}

	zap.L().Info("payin settled",
		zap.String("reference", req.Reference),
		zap.Int64("amount", req.Amount),
		zap.Int64("net", net),
		zap.Int("splits", len(splits)),
	)
	return &SettlementResult{
		Reference: req.Reference,
		NetAmount: net,
		OwnerCost: ownerCost,
		Splits:    splits,
		Entries:   entries,
	}, nil
}
