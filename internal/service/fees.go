package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
)

// FeeService computes the fee deducted from payouts, either a flat
// percentage of the amount or a flat fee looked up in the gateway's slab
// table.
type FeeService struct {
	store RateStore
}

func NewFeeService(store RateStore) *FeeService {
	return &FeeService{store: store}
}

// ComputeFee returns the payout fee in paise for the given amount.
// Slab lookup is a binary search over the MinAmount-sorted table; an amount
// equal to a slab's MaxAmount belongs to that slab, not the next.
func (s *FeeService) ComputeFee(ctx context.Context, gatewayID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("invalid amount: %d", amount)
	}

	gw, err := s.store.Gateway(ctx, gatewayID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return 0, models.ErrNoRateConfigured
		}
		return 0, fmt.Errorf("lookup gateway %s: %w", gatewayID, err)
	}

	switch gw.PayoutCharge.Type {
	case domain.ChargePercentage:
		return domain.ApplyRate(amount, gw.PayoutCharge.Percent), nil
	case domain.ChargeSlab:
		slabs, err := s.store.PayoutSlabs(ctx, gatewayID)
		if err != nil {
			return 0, fmt.Errorf("lookup payout slabs: %w", err)
		}
		return slabFee(slabs, amount)
	default:
		return 0, fmt.Errorf("gateway %s has unknown charge type %q", gatewayID, gw.PayoutCharge.Type)
	}
}

// slabFee finds the unique covering slab. slabs must be sorted by MinAmount.
func slabFee(slabs []models.PayoutSlab, amount int64) (int64, error) {
	// First slab whose upper bound admits the amount; with a contiguous
	// table this is also the covering slab.
	i := sort.Search(len(slabs), func(i int) bool {
		return slabs[i].MaxAmount == nil || amount <= *slabs[i].MaxAmount
	})
	if i == len(slabs) || !slabs[i].Contains(amount) {
		return 0, fmt.Errorf("%w: amount %d", models.ErrNoSlabMatch, amount)
	}
	return slabs[i].Fee, nil
}

// SetPayoutSlabs validates and replaces a gateway's slab table. Slabs must
// be contiguous from zero with at most the last one open-ended.
func (s *FeeService) SetPayoutSlabs(ctx context.Context, gatewayID uuid.UUID, slabs []models.PayoutSlab) error {
	if _, err := s.store.Gateway(ctx, gatewayID); err != nil {
		return fmt.Errorf("lookup gateway %s: %w", gatewayID, err)
	}
	if err := ValidateSlabs(slabs); err != nil {
		return err
	}
	for i := range slabs {
		slabs[i].GatewayID = gatewayID
	}
	return s.store.ReplacePayoutSlabs(ctx, gatewayID, slabs)
}

// ValidateSlabs enforces the slab table invariant: contiguous and exhaustive
// over [0, ∞), each MinAmount equal to the previous MaxAmount.
func ValidateSlabs(slabs []models.PayoutSlab) error {
	if len(slabs) == 0 {
		return errors.New("slab table must not be empty")
	}
	sorted := append([]models.PayoutSlab(nil), slabs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinAmount < sorted[j].MinAmount })

	if sorted[0].MinAmount != 0 {
		return fmt.Errorf("first slab must start at 0, starts at %d", sorted[0].MinAmount)
	}
	for i, slab := range sorted {
		if slab.Fee < 0 {
			return fmt.Errorf("slab starting at %d has negative fee", slab.MinAmount)
		}
		last := i == len(sorted)-1
		if slab.MaxAmount == nil {
			if !last {
				return fmt.Errorf("only the last slab may be open-ended, slab starting at %d is not last", slab.MinAmount)
			}
			continue
		}
		if *slab.MaxAmount <= slab.MinAmount {
			return fmt.Errorf("slab [%d, %d) is empty", slab.MinAmount, *slab.MaxAmount)
		}
		if last {
			return fmt.Errorf("last slab must be open-ended, ends at %d", *slab.MaxAmount)
		}
		if next := sorted[i+1]; next.MinAmount != *slab.MaxAmount {
			return fmt.Errorf("gap between slab ending at %d and slab starting at %d", *slab.MaxAmount, next.MinAmount)
		}
	}
	return nil
}
