package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
	"github.com/nileshk07/paygrid/internal/service"
)

func TestReconcileCleanLedger(t *testing.T) {
	ledger, store := newLedger(t)
	recon := service.NewReconciliationService(store)
	ctx := context.Background()

	a := openWallet(t, ledger)
	b := openWallet(t, ledger)
	_, err := ledger.Credit(ctx, a, 100000, "seed", "seed-1")
	require.NoError(t, err)
	_, _, err = ledger.Transfer(ctx, a, b, 30000, "float", "tr-1")
	require.NoError(t, err)
	require.NoError(t, ledger.Hold(ctx, a, 20000))

	findings, err := recon.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, findings, "a healthy ledger reconciles clean, holds included")
}

func TestReconcileDetectsTamperedSnapshot(t *testing.T) {
	ledger, store := newLedger(t)
	recon := service.NewReconciliationService(store)
	ctx := context.Background()

	user := openWallet(t, ledger)
	_, err := ledger.Credit(ctx, user, 50000, "seed", "seed-1")
	require.NoError(t, err)

	// Forge an entry whose recorded balance disagrees with its delta.
	err = store.RunInWalletTx(ctx, []uuid.UUID{user}, func(tx service.WalletTx) error {
		wallet, err := tx.Wallet(ctx, user)
		if err != nil {
			return err
		}
		wallet.Balance += 1000
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}
		return tx.AppendEntry(ctx, &models.LedgerEntry{
			ID:          uuid.New(),
			WalletID:    user,
			Type:        domain.EntryCredit,
			Credit:      1000,
			Balance:     99999, // wrong on purpose
			ReferenceID: "forged-1",
		})
	})
	require.NoError(t, err)

	findings, err := recon.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.Equal(t, user, findings[0].WalletID)
	assert.Equal(t, "running balance mismatch", findings[0].Reason)
	assert.Equal(t, int64(51000), findings[0].Expected)
	assert.Equal(t, int64(99999), findings[0].Actual)

	// After trusting the forged snapshot, the wallet total no longer matches.
	assert.Equal(t, "wallet total diverges from ledger", findings[1].Reason)
	assert.Equal(t, int64(51000), findings[1].Actual)
}

func TestReconcileOneBadEntryDoesNotFlagTail(t *testing.T) {
	ledger, store := newLedger(t)
	recon := service.NewReconciliationService(store)
	ctx := context.Background()

	user := openWallet(t, ledger)

	// Entry 1 carries a bad snapshot; entries 2..3 are consistent with it.
	err := store.RunInWalletTx(ctx, []uuid.UUID{user}, func(tx service.WalletTx) error {
		wallet, err := tx.Wallet(ctx, user)
		if err != nil {
			return err
		}
		wallet.Balance = 3000
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}
		for _, balance := range []int64{2000, 2500, 3000} {
			entry := &models.LedgerEntry{
				ID:          uuid.New(),
				WalletID:    user,
				Type:        domain.EntryCredit,
				Credit:      500,
				Balance:     balance,
				ReferenceID: "seed",
			}
			if err := tx.AppendEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	findings, err := recon.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, int64(1), findings[0].Seq)
	assert.Equal(t, int64(500), findings[0].Expected)
	assert.Equal(t, int64(2000), findings[0].Actual)
}

func TestReconcileCanceledContext(t *testing.T) {
	ledger, store := newLedger(t)
	recon := service.NewReconciliationService(store)
	openWallet(t, ledger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := recon.ReconcileAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
