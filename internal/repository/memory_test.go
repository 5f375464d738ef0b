package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
	"github.com/nileshk07/paygrid/internal/repository"
	"github.com/nileshk07/paygrid/internal/service"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestMemoryWalletTxStagedCommit(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	user := uuid.New()
	require.NoError(t, store.CreateWallet(ctx, &models.Wallet{UserID: user}))

	// A failing unit publishes nothing.
	boom := assert.AnError
	err := store.RunInWalletTx(ctx, []uuid.UUID{user}, func(tx service.WalletTx) error {
		wallet, err := tx.Wallet(ctx, user)
		if err != nil {
			return err
		}
		wallet.Balance = 9999
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}
		if err := tx.AppendEntry(ctx, &models.LedgerEntry{
			ID:       uuid.New(),
			WalletID: user,
			Type:     domain.EntryCredit,
			Credit:   9999,
			Balance:  9999,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	wallet, err := store.Wallet(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, wallet.Balance)
	_, total, err := store.Entries(ctx, service.LedgerFilter{WalletID: &user})
	require.NoError(t, err)
	assert.Zero(t, total)

	// Inside the unit, reads see the staged write.
	err = store.RunInWalletTx(ctx, []uuid.UUID{user}, func(tx service.WalletTx) error {
		wallet, err := tx.Wallet(ctx, user)
		if err != nil {
			return err
		}
		wallet.Balance = 100
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}
		again, err := tx.Wallet(ctx, user)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(100), again.Balance)
		return nil
	})
	require.NoError(t, err)

	wallet, err = store.Wallet(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(100), wallet.Balance)
}

func TestMemoryWalletTxUnknownWallet(t *testing.T) {
	store := repository.NewMemoryStore()
	err := store.RunInWalletTx(context.Background(), []uuid.UUID{uuid.New()}, func(service.WalletTx) error {
		t.Fatal("fn must not run for a missing wallet")
		return nil
	})
	assert.ErrorIs(t, err, models.ErrWalletNotFound)
}

func TestMemoryWalletTxConcurrentIncrements(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	user := uuid.New()
	require.NoError(t, store.CreateWallet(ctx, &models.Wallet{UserID: user}))

	const workers = 8
	const perWorker = 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				err := store.RunInWalletTx(ctx, []uuid.UUID{user}, func(tx service.WalletTx) error {
					wallet, err := tx.Wallet(ctx, user)
					if err != nil {
						return err
					}
					wallet.Balance++
					if err := tx.SaveWallet(ctx, wallet); err != nil {
						return err
					}
					return tx.AppendEntry(ctx, &models.LedgerEntry{
						ID:          uuid.New(),
						WalletID:    user,
						Type:        domain.EntryCredit,
						Credit:      1,
						Balance:     wallet.Balance,
						ReferenceID: fmt.Sprintf("w%d-%d", w, i),
					})
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	wallet, err := store.Wallet(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), wallet.Balance)

	entries, total, err := store.Entries(ctx, service.LedgerFilter{WalletID: &user})
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), total)

	// Sequence numbers are dense and unique under contention.
	seen := make(map[int64]bool, len(entries))
	for _, e := range entries {
		assert.False(t, seen[e.Seq], "duplicate seq %d", e.Seq)
		seen[e.Seq] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestMemoryWalletTxDuplicateIDsLockOnce(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	user := uuid.New()
	require.NoError(t, store.CreateWallet(ctx, &models.Wallet{UserID: user}))

	// The same wallet named twice must not self-deadlock.
	err := store.RunInWalletTx(ctx, []uuid.UUID{user, user}, func(tx service.WalletTx) error {
		wallet, err := tx.Wallet(ctx, user)
		if err != nil {
			return err
		}
		wallet.Balance = 42
		return tx.SaveWallet(ctx, wallet)
	})
	require.NoError(t, err)

	wallet, err := store.Wallet(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(42), wallet.Balance)
}

func TestMemoryCreateWalletIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	user := uuid.New()
	require.NoError(t, store.CreateWallet(ctx, &models.Wallet{UserID: user}))

	require.NoError(t, store.RunInWalletTx(ctx, []uuid.UUID{user}, func(tx service.WalletTx) error {
		wallet, err := tx.Wallet(ctx, user)
		if err != nil {
			return err
		}
		wallet.Balance = 500
		return tx.SaveWallet(ctx, wallet)
	}))

	// Re-creating an existing wallet never resets its balance.
	require.NoError(t, store.CreateWallet(ctx, &models.Wallet{UserID: user}))
	wallet, err := store.Wallet(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(500), wallet.Balance)
}

func TestMemoryWalletIDsSorted(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateWallet(ctx, &models.Wallet{UserID: uuid.New()}))
	}
	ids, err := store.WalletIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 5)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1].String(), ids[i].String())
	}
}
