package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
	"github.com/nileshk07/paygrid/internal/repository"
	"github.com/nileshk07/paygrid/internal/service"
)

func i64(v int64) *int64 { return &v }

func newSlabGateway(t *testing.T, store *repository.MemoryStore) models.Gateway {
	t.Helper()
	gw := models.Gateway{
		ID:           uuid.New(),
		Name:         "slab-gw",
		PayoutCharge: models.PayoutCharge{Type: domain.ChargeSlab},
	}
	require.NoError(t, store.CreateGateway(context.Background(), &gw))
	return gw
}

func TestComputeFeePercentage(t *testing.T) {
	store := repository.NewMemoryStore()
	gw := models.Gateway{
		ID:           uuid.New(),
		Name:         "pct-gw",
		PayoutCharge: models.PayoutCharge{Type: domain.ChargePercentage, Percent: dec(t, "0.012")},
	}
	require.NoError(t, store.CreateGateway(context.Background(), &gw))
	fees := service.NewFeeService(store)

	fee, err := fees.ComputeFee(context.Background(), gw.ID, 100000)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), fee)

	// Sub-paisa results round half up.
	fee, err = fees.ComputeFee(context.Background(), gw.ID, 125)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fee) // 125 * 0.012 = 1.5
}

func TestComputeFeeSlabBoundaries(t *testing.T) {
	store := repository.NewMemoryStore()
	gw := newSlabGateway(t, store)
	fees := service.NewFeeService(store)
	ctx := context.Background()

	require.NoError(t, fees.SetPayoutSlabs(ctx, gw.ID, []models.PayoutSlab{
		{MinAmount: 0, MaxAmount: i64(500000), Fee: 1000},
		{MinAmount: 500000, MaxAmount: i64(2500000), Fee: 2500},
		{MinAmount: 2500000, Fee: 5000},
	}))

	cases := []struct {
		amount int64
		fee    int64
	}{
		{1, 1000},
		{500000, 1000}, // boundary amount stays in the lower slab
		{500001, 2500},
		{2500000, 2500},
		{2500001, 5000},
		{1 << 40, 5000},
	}
	for _, tc := range cases {
		fee, err := fees.ComputeFee(ctx, gw.ID, tc.amount)
		require.NoError(t, err, "amount %d", tc.amount)
		assert.Equal(t, tc.fee, fee, "amount %d", tc.amount)
	}
}

func TestComputeFeeUnknownGateway(t *testing.T) {
	fees := service.NewFeeService(repository.NewMemoryStore())
	_, err := fees.ComputeFee(context.Background(), uuid.New(), 1000)
	assert.ErrorIs(t, err, models.ErrNoRateConfigured)
}

func TestValidateSlabs(t *testing.T) {
	cases := []struct {
		name  string
		slabs []models.PayoutSlab
		ok    bool
	}{
		{
			name:  "single open-ended",
			slabs: []models.PayoutSlab{{MinAmount: 0, Fee: 10}},
			ok:    true,
		},
		{
			name: "contiguous chain",
			slabs: []models.PayoutSlab{
				{MinAmount: 0, MaxAmount: i64(100), Fee: 1},
				{MinAmount: 100, MaxAmount: i64(200), Fee: 2},
				{MinAmount: 200, Fee: 3},
			},
			ok: true,
		},
		{
			name:  "empty table",
			slabs: nil,
		},
		{
			name: "does not start at zero",
			slabs: []models.PayoutSlab{
				{MinAmount: 10, Fee: 1},
			},
		},
		{
			name: "gap between slabs",
			slabs: []models.PayoutSlab{
				{MinAmount: 0, MaxAmount: i64(100), Fee: 1},
				{MinAmount: 150, Fee: 2},
			},
		},
		{
			name: "last slab bounded",
			slabs: []models.PayoutSlab{
				{MinAmount: 0, MaxAmount: i64(100), Fee: 1},
			},
		},
		{
			name: "open-ended slab not last",
			slabs: []models.PayoutSlab{
				{MinAmount: 0, Fee: 1},
				{MinAmount: 100, MaxAmount: i64(200), Fee: 2},
			},
		},
		{
			name: "negative fee",
			slabs: []models.PayoutSlab{
				{MinAmount: 0, Fee: -1},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := service.ValidateSlabs(tc.slabs)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSetPayoutSlabsRejectsInvalidTable(t *testing.T) {
	store := repository.NewMemoryStore()
	gw := newSlabGateway(t, store)
	fees := service.NewFeeService(store)
	ctx := context.Background()

	require.NoError(t, fees.SetPayoutSlabs(ctx, gw.ID, []models.PayoutSlab{{MinAmount: 0, Fee: 7}}))

	// A bad replacement leaves the previous table in place.
	err := fees.SetPayoutSlabs(ctx, gw.ID, []models.PayoutSlab{{MinAmount: 5, Fee: 9}})
	require.Error(t, err)

	fee, err := fees.ComputeFee(ctx, gw.ID, 123)
	require.NoError(t, err)
	assert.Equal(t, int64(7), fee)
}
