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

// settlementEnv wires the hierarchy fixture to a live ledger with open
// wallets for every chain member.
type settlementEnv struct {
	*hierarchy
	ledger     *service.LedgerService
	settlement *service.SettlementService
}

func newSettlementEnv(t *testing.T) *settlementEnv {
	t.Helper()
	h := newHierarchy(t)
	rates := service.NewRateService(h.store)
	commission := service.NewCommissionService(h.store, rates)
	ledger := service.NewLedgerService(h.store)
	settlement := service.NewSettlementService(rates, commission, ledger)

	for _, id := range []uuid.UUID{h.platform.ID, h.wl.ID, h.md.ID, h.dist.ID, h.retailer.ID} {
		_, err := ledger.OpenWallet(context.Background(), id)
		require.NoError(t, err)
	}
	return &settlementEnv{hierarchy: h, ledger: ledger, settlement: settlement}
}

func (env *settlementEnv) balance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	wallet, err := env.ledger.Wallet(context.Background(), userID)
	require.NoError(t, err)
	return wallet.Balance
}

func TestSettlePayinPostsNetAndCommissions(t *testing.T) {
	env := newSettlementEnv(t)
	env.setRate(t, env.retailer.ID, "0.020")
	env.setRate(t, env.dist.ID, "0.015")
	env.setRate(t, env.md.ID, "0.012")
	env.setRate(t, env.wl.ID, "0.011")

	result, err := env.settlement.SettlePayin(context.Background(), service.PayinSettlement{
		GatewayID:   env.gateway.ID,
		ChannelID:   env.channel.ID,
		OwnerUserID: env.retailer.ID,
		Amount:      100000,
		Reference:   "txn-001",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(98000), result.NetAmount)
	assert.Equal(t, int64(2000), result.OwnerCost)
	require.Len(t, result.Splits, 4)
	require.Len(t, result.Entries, 5) // net credit + four commission legs

	assert.Equal(t, int64(98000), env.balance(t, env.retailer.ID))
	assert.Equal(t, int64(500), env.balance(t, env.dist.ID))
	assert.Equal(t, int64(300), env.balance(t, env.md.ID))
	assert.Equal(t, int64(100), env.balance(t, env.wl.ID))
	assert.Equal(t, int64(1100), env.balance(t, env.platform.ID))

	// The whole gross amount lands somewhere: conservation across wallets.
	var total int64
	for _, id := range []uuid.UUID{env.platform.ID, env.wl.ID, env.md.ID, env.dist.ID, env.retailer.ID} {
		total += env.balance(t, id)
	}
	assert.Equal(t, int64(100000), total)

	for _, e := range result.Entries[1:] {
		assert.Equal(t, domain.EntryCommission, e.Type)
		assert.Equal(t, "txn-001", e.ReferenceID)
	}
}

func TestSettlePayinReplayIsIdempotent(t *testing.T) {
	env := newSettlementEnv(t)
	env.setRate(t, env.retailer.ID, "0.020")
	env.setRate(t, env.dist.ID, "0.015")
	env.setRate(t, env.md.ID, "0.012")
	env.setRate(t, env.wl.ID, "0.011")

	req := service.PayinSettlement{
		GatewayID:   env.gateway.ID,
		ChannelID:   env.channel.ID,
		OwnerUserID: env.retailer.ID,
		Amount:      100000,
		Reference:   "txn-001",
	}
	first, err := env.settlement.SettlePayin(context.Background(), req)
	require.NoError(t, err)
	second, err := env.settlement.SettlePayin(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Entries[0].ID, second.Entries[0].ID)
	assert.Equal(t, int64(98000), env.balance(t, env.retailer.ID))
	assert.Equal(t, int64(1100), env.balance(t, env.platform.ID))
}

func TestSettlePayinSkipsZeroSplits(t *testing.T) {
	env := newSettlementEnv(t)
	// Equal rates throughout: only the platform earns.
	for _, id := range []uuid.UUID{env.retailer.ID, env.dist.ID, env.md.ID, env.wl.ID} {
		env.setRate(t, id, "0.015")
	}

	result, err := env.settlement.SettlePayin(context.Background(), service.PayinSettlement{
		GatewayID:   env.gateway.ID,
		ChannelID:   env.channel.ID,
		OwnerUserID: env.retailer.ID,
		Amount:      100000,
		Reference:   "txn-002",
	})
	require.NoError(t, err)

	// Zero-amount splits are reported but never posted.
	require.Len(t, result.Splits, 4)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, int64(98500), env.balance(t, env.retailer.ID))
	assert.Equal(t, int64(1500), env.balance(t, env.platform.ID))
	assert.Zero(t, env.balance(t, env.dist.ID))
}

func TestSettlePayinRefusesNegativeSpread(t *testing.T) {
	env := newSettlementEnv(t)
	env.setRate(t, env.retailer.ID, "0.012")
	env.setRate(t, env.dist.ID, "0.015")
	env.setRate(t, env.md.ID, "0.012")
	env.setRate(t, env.wl.ID, "0.011")

	_, err := env.settlement.SettlePayin(context.Background(), service.PayinSettlement{
		GatewayID:   env.gateway.ID,
		ChannelID:   env.channel.ID,
		OwnerUserID: env.retailer.ID,
		Amount:      100000,
		Reference:   "txn-003",
	})
	var spreadErr *models.NegativeSpreadError
	require.ErrorAs(t, err, &spreadErr)

	// Nothing settled on a broken catalog.
	assert.Zero(t, env.balance(t, env.retailer.ID))
	assert.Zero(t, env.balance(t, env.platform.ID))
}

func TestSettlePayinValidatesInput(t *testing.T) {
	env := newSettlementEnv(t)

	_, err := env.settlement.SettlePayin(context.Background(), service.PayinSettlement{
		GatewayID:   env.gateway.ID,
		ChannelID:   env.channel.ID,
		OwnerUserID: env.retailer.ID,
		Amount:      0,
		Reference:   "txn-004",
	})
	assert.Error(t, err)

	_, err = env.settlement.SettlePayin(context.Background(), service.PayinSettlement{
		GatewayID:   env.gateway.ID,
		ChannelID:   env.channel.ID,
		OwnerUserID: env.retailer.ID,
		Amount:      1000,
	})
	assert.Error(t, err)
}
