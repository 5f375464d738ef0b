package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/gateway"
	"github.com/nileshk07/paygrid/internal/models"
)

// PayoutService drives external payouts: the requested amount plus its fee
// is held at request time and either captured (gateway confirmed) or
// released (gateway rejected) by the background worker.
type PayoutService struct {
	ledger  *LedgerService
	fees    *FeeService
	store   PayoutStore
	gateway gateway.PayoutGateway
}

func NewPayoutService(ledger *LedgerService, fees *FeeService, store PayoutStore, gw gateway.PayoutGateway) *PayoutService {
	return &PayoutService{ledger: ledger, fees: fees, store: store, gateway: gw}
}

// RequestPayoutInput holds the parameters for creating a payout.
type RequestPayoutInput struct {
	UserID      uuid.UUID
	GatewayID   uuid.UUID
	Amount      int64
	ReferenceID string
}

// RequestPayout computes the fee, holds amount+fee and queues the payout for
// the worker. Replaying a known reference returns the original request.
func (s *PayoutService) RequestPayout(ctx context.Context, req RequestPayoutInput) (*models.PayoutRequest, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("invalid amount: %d", req.Amount)
	}
	if req.ReferenceID == "" {
		return nil, errors.New("reference_id is required")
	}

	if existing, err := s.store.PayoutByReference(ctx, req.ReferenceID); err == nil {
		return existing, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("check payout idempotency: %w", err)
	}

	fee, err := s.fees.ComputeFee(ctx, req.GatewayID, req.Amount)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Hold(ctx, req.UserID, req.Amount+fee); err != nil {
		return nil, err
	}

	payout := &models.PayoutRequest{
		ID:          uuid.New(),
		UserID:      req.UserID,
		GatewayID:   req.GatewayID,
		Amount:      req.Amount,
		Fee:         fee,
		Status:      domain.PayoutStatusPending,
		ReferenceID: req.ReferenceID,
	}
	if err := s.store.CreatePayout(ctx, payout); err != nil {
		// Lost a create race on the same reference: undo our hold and serve
		// the winner's record.
		if releaseErr := s.ledger.Release(ctx, req.UserID, req.Amount+fee); releaseErr != nil {
			zap.L().Error("failed to release hold after payout create conflict",
				zap.Error(releaseErr), zap.String("reference_id", req.ReferenceID))
		}
		if errors.Is(err, models.ErrDuplicatePayout) {
			return s.store.PayoutByReference(ctx, req.ReferenceID)
		}
		return nil, err
	}

	zap.L().Info("payout queued",
		zap.String("payout_id", payout.ID.String()),
		zap.Int64("amount", payout.Amount),
		zap.Int64("fee", payout.Fee),
	)
	return payout, nil
}

// GetPayout retrieves a payout by ID.
func (s *PayoutService) GetPayout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	return s.store.Payout(ctx, id)
}

// ProcessPayouts claims a batch of pending payouts, dispatches each to the
// gateway and finalizes the hold either way. Context cancellation requeues
// the unprocessed remainder; a payout whose hold is already captured or
// released is never touched twice thanks to the capture reference.
func (s *PayoutService) ProcessPayouts(ctx context.Context, batchSize int32) error {
	claimed, err := s.store.ClaimPendingPayouts(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("claim pending payouts: %w", err)
	}

	for i, payout := range claimed {
		if err := ctx.Err(); err != nil {
			s.requeue(claimed[i:])
			return err
		}

		gatewayRef, err := s.gateway.SendPayout(ctx, payout.UserID.String(), payout.Amount)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.requeue(claimed[i:])
				return err
			}
			s.finalizeFailed(ctx, payout, err.Error())
			continue
		}
		s.finalizeCompleted(ctx, payout, gatewayRef)
	}
	return nil
}

func (s *PayoutService) finalizeCompleted(ctx context.Context, payout models.PayoutRequest, gatewayRef string) {
	if _, err := s.ledger.CaptureHold(ctx, payout.UserID, payout.Amount, payout.Fee, "payout "+payout.ReferenceID, payout.ReferenceID); err != nil {
		zap.L().Error("payout sent but hold capture failed",
			zap.Error(err),
			zap.String("payout_id", payout.ID.String()),
			zap.String("gateway_ref", gatewayRef),
		)
		return
	}
	payout.Status = domain.PayoutStatusCompleted
	payout.GatewayRef = &gatewayRef
	if err := s.store.UpdatePayout(ctx, &payout); err != nil {
		zap.L().Error("failed to mark payout completed", zap.Error(err), zap.String("payout_id", payout.ID.String()))
	}
}

func (s *PayoutService) finalizeFailed(ctx context.Context, payout models.PayoutRequest, reason string) {
	if err := s.ledger.Release(ctx, payout.UserID, payout.Amount+payout.Fee); err != nil {
		zap.L().Error("failed to release hold for failed payout",
			zap.Error(err), zap.String("payout_id", payout.ID.String()))
	}
	payout.Status = domain.PayoutStatusFailed
	if err := s.store.UpdatePayout(ctx, &payout); err != nil {
		zap.L().Error("failed to mark payout failed", zap.Error(err), zap.String("payout_id", payout.ID.String()))
		return
	}
	zap.L().Warn("payout failed", zap.String("payout_id", payout.ID.String()), zap.String("reason", reason))
}

// requeue returns claimed-but-unprocessed payouts to PENDING. Runs on a
// fresh context because the caller's is already canceled.
func (s *PayoutService) requeue(payouts []models.PayoutRequest) {
	ctx := context.Background()
	for _, payout := range payouts {
		payout.Status = domain.PayoutStatusPending
		if err := s.store.UpdatePayout(ctx, &payout); err != nil {
			zap.L().Error("failed to requeue payout", zap.Error(err), zap.String("payout_id", payout.ID.String()))
		}
	}
}
