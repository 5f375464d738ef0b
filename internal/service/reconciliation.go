package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nileshk07/paygrid/internal/observability"
)

// ReconciliationService replays each wallet's ledger from entry one and
// confirms the stored running balances and the live wallet total agree
// with the entry deltas. Any drift means a bug in the posting path and is
// surfaced loudly rather than repaired.
type ReconciliationService struct {
	wallets WalletStore
}

func NewReconciliationService(wallets WalletStore) *ReconciliationService {
	return &ReconciliationService{wallets: wallets}
}

// Imbalance describes one reconciliation finding for a wallet.
type Imbalance struct {
	WalletID uuid.UUID
	Seq      int64
	Expected int64
	Actual   int64
	Reason   string
}

// ReconcileAll checks every wallet and returns the imbalances found.
// A non-nil error means the sweep itself could not complete.
func (s *ReconciliationService) ReconcileAll(ctx context.Context) ([]Imbalance, error) {
	ids, err := s.wallets.WalletIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	var findings []Imbalance
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		got, err := s.reconcileWallet(ctx, id)
		if err != nil {
			return findings, err
		}
		findings = append(findings, got...)
	}
	return findings, nil
}

func (s *ReconciliationService) reconcileWallet(ctx context.Context, walletID uuid.UUID) ([]Imbalance, error) {
	var findings []Imbalance

	var running int64
	var lastSeq int64
	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		entries, _, err := s.wallets.Entries(ctx, LedgerFilter{
			WalletID: &walletID,
			Limit:    pageSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, fmt.Errorf("read entries for wallet %s: %w", walletID, err)
		}
		for _, entry := range entries {
			running += entry.Delta()
			if entry.Balance != running {
				findings = append(findings, Imbalance{
					WalletID: walletID,
					Seq:      entry.Seq,
					Expected: running,
					Actual:   entry.Balance,
					Reason:   "running balance mismatch",
				})
				// Trust the recorded snapshot from here on so one bad entry
				// does not flag the whole tail.
				running = entry.Balance
			}
			lastSeq = entry.Seq
		}
		if len(entries) < pageSize {
			break
		}
	}

	wallet, err := s.wallets.Wallet(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("load wallet %s: %w", walletID, err)
	}
	if wallet.Total() != running {
		findings = append(findings, Imbalance{
			WalletID: walletID,
			Seq:      lastSeq,
			Expected: running,
			Actual:   wallet.Total(),
			Reason:   "wallet total diverges from ledger",
		})
	}

	for _, f := range findings {
		observability.IncrementLedgerImbalance()
		zap.L().Error("ledger imbalance detected",
			zap.String("wallet_id", f.WalletID.String()),
			zap.Int64("seq", f.Seq),
			zap.Int64("expected", f.Expected),
			zap.Int64("actual", f.Actual),
			zap.String("reason", f.Reason),
		)
	}
	return findings, nil
}
