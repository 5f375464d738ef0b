package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
	"github.com/nileshk07/paygrid/internal/repository"
	"github.com/nileshk07/paygrid/internal/service"
	"github.com/nileshk07/paygrid/internal/testutil/dblock"
)

// pgStore connects to DATABASE_URL or skips. The dblock mutex keeps the
// pg-backed tests from truncating under each other when run in parallel.
func pgStore(t *testing.T) *repository.PostgresStore {
	t.Helper()
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		t.Skip("DATABASE_URL not set")
	}
	release := dblock.Acquire()
	t.Cleanup(release)

	pool, err := pgxpool.New(context.Background(), connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(context.Background()))

	_, err = pool.Exec(context.Background(),
		"TRUNCATE TABLE ledger_entries, wallets, payout_requests, payout_slabs, user_channel_rates, schema_channel_rates, rate_schemas, channels, gateways, users CASCADE")
	require.NoError(t, err)

	return repository.NewPostgresStore(pool)
}

func TestPostgresWalletTxCommitAndRollback(t *testing.T) {
	store := pgStore(t)
	ctx := context.Background()

	user := uuid.New()
	require.NoError(t, store.CreateWallet(ctx, &models.Wallet{UserID: user}))

	err := store.RunInWalletTx(ctx, []uuid.UUID{user}, func(tx service.WalletTx) error {
		wallet, err := tx.Wallet(ctx, user)
		if err != nil {
			return err
		}
		wallet.Balance += 5000
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}
		return tx.AppendEntry(ctx, &models.LedgerEntry{
			ID:          uuid.New(),
			WalletID:    user,
			Type:        domain.EntryCredit,
			Credit:      5000,
			Balance:     5000,
			Description: "seed",
			ReferenceID: "ref-1",
		})
	})
	require.NoError(t, err)

	wallet, err := store.Wallet(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), wallet.Balance)

	// A failing unit leaves no trace.
	boom := assert.AnError
	err = store.RunInWalletTx(ctx, []uuid.UUID{user}, func(tx service.WalletTx) error {
		wallet, err := tx.Wallet(ctx, user)
		if err != nil {
			return err
		}
		wallet.Balance = 0
		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	wallet, err = store.Wallet(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), wallet.Balance)

	entries, total, err := store.Entries(ctx, service.LedgerFilter{WalletID: &user})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].Seq)
}

func TestPostgresRateCatalogRoundTrip(t *testing.T) {
	store := pgStore(t)
	ctx := context.Background()

	gw := models.Gateway{
		ID:            uuid.New(),
		Name:          "razorx",
		BasePayinRate: decimalFromString(t, "0.008"),
		PayoutCharge:  models.PayoutCharge{Type: domain.ChargePercentage, Percent: decimalFromString(t, "0.005")},
	}
	require.NoError(t, store.CreateGateway(ctx, &gw))

	got, err := store.Gateway(ctx, gw.ID)
	require.NoError(t, err)
	assert.Equal(t, gw.Name, got.Name)
	assert.True(t, got.BasePayinRate.Equal(gw.BasePayinRate))
	assert.Equal(t, domain.ChargePercentage, got.PayoutCharge.Type)

	ch := models.Channel{
		ID:        uuid.New(),
		GatewayID: gw.ID,
		Name:      "upi",
		Direction: domain.DirectionPayin,
		BaseCost:  decimalFromString(t, "0.010"),
	}
	require.NoError(t, store.CreateChannel(ctx, &ch))

	schema := models.RateSchema{
		ID:        uuid.New(),
		Name:      "retail-default",
		Roles:     []domain.Role{domain.RoleRetailer, domain.RoleDistributor},
		IsDefault: true,
	}
	require.NoError(t, store.CreateSchema(ctx, &schema))

	def, err := store.DefaultSchemaForRole(ctx, domain.RoleRetailer)
	require.NoError(t, err)
	assert.Equal(t, schema.ID, def.ID)
	_, err = store.DefaultSchemaForRole(ctx, domain.RoleWhiteLabel)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, store.UpsertSchemaChannelRate(ctx, &models.SchemaChannelRate{
		SchemaID:  schema.ID,
		ChannelID: ch.ID,
		Rate:      decimalFromString(t, "0.015"),
	}))
	rate, err := store.SchemaChannelRate(ctx, schema.ID, ch.ID)
	require.NoError(t, err)
	assert.True(t, rate.Rate.Equal(decimalFromString(t, "0.015")))

	// Upsert replaces in place.
	require.NoError(t, store.UpsertSchemaChannelRate(ctx, &models.SchemaChannelRate{
		SchemaID:  schema.ID,
		ChannelID: ch.ID,
		Rate:      decimalFromString(t, "0.016"),
	}))
	rate, err = store.SchemaChannelRate(ctx, schema.ID, ch.ID)
	require.NoError(t, err)
	assert.True(t, rate.Rate.Equal(decimalFromString(t, "0.016")))
}

func TestPostgresPayoutClaiming(t *testing.T) {
	store := pgStore(t)
	ctx := context.Background()

	gwID := uuid.New()
	userID := uuid.New()
	for _, ref := range []string{"po-1", "po-2"} {
		require.NoError(t, store.CreatePayout(ctx, &models.PayoutRequest{
			ID:          uuid.New(),
			UserID:      userID,
			GatewayID:   gwID,
			Amount:      1000,
			Fee:         10,
			Status:      domain.PayoutStatusPending,
			ReferenceID: ref,
		}))
	}

	err := store.CreatePayout(ctx, &models.PayoutRequest{
		ID:          uuid.New(),
		UserID:      userID,
		GatewayID:   gwID,
		Amount:      1000,
		Status:      domain.PayoutStatusPending,
		ReferenceID: "po-1",
	})
	assert.ErrorIs(t, err, models.ErrDuplicatePayout)

	claimed, err := store.ClaimPendingPayouts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.PayoutStatusProcessing, claimed[0].Status)

	remaining, err := store.ClaimPendingPayouts(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	byRef, err := store.PayoutByReference(ctx, "po-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), byRef.Amount)
}
