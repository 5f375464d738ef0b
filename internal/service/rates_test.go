package service_test

import (
	"context"
	"errors"
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

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// catalog is the shared fixture for rate resolution tests: one payin channel
// at 1% base cost, a default retailer schema, and a retailer under it.
type catalog struct {
	store    *repository.MemoryStore
	gateway  models.Gateway
	channel  models.Channel
	schema   models.RateSchema
	retailer models.User
}

func newCatalog(t *testing.T) *catalog {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	gw := models.Gateway{
		ID:            uuid.New(),
		Name:          "razorx",
		BasePayinRate: dec(t, "0.008"),
		PayoutCharge:  models.PayoutCharge{Type: domain.ChargePercentage, Percent: dec(t, "0.005")},
	}
	require.NoError(t, store.CreateGateway(ctx, &gw))

	ch := models.Channel{
		ID:        uuid.New(),
		GatewayID: gw.ID,
		Name:      "upi",
		Direction: domain.DirectionPayin,
		BaseCost:  dec(t, "0.010"),
	}
	require.NoError(t, store.CreateChannel(ctx, &ch))

	schema := models.RateSchema{
		ID:        uuid.New(),
		Name:      "retail-default",
		Roles:     []domain.Role{domain.RoleRetailer},
		IsDefault: true,
	}
	require.NoError(t, store.CreateSchema(ctx, &schema))

	retailer := models.User{ID: uuid.New(), Username: "shop-1", Role: domain.RoleRetailer}
	require.NoError(t, store.CreateUser(ctx, &retailer))

	return &catalog{store: store, gateway: gw, channel: ch, schema: schema, retailer: retailer}
}

func TestResolveFallsBackToBaseCost(t *testing.T) {
	c := newCatalog(t)
	rates := service.NewRateService(c.store)

	// No schema rate, no override: the channel base cost is the floor of
	// last resort.
	rate, err := rates.Resolve(context.Background(), c.gateway.ID, c.channel.ID, c.retailer.ID, domain.DirectionPayin)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec(t, "0.010")), "got %s", rate)
}

func TestResolvePrefersSchemaOverBase(t *testing.T) {
	c := newCatalog(t)
	rates := service.NewRateService(c.store)
	ctx := context.Background()

	require.NoError(t, rates.SetSchemaChannelRate(ctx, c.schema.ID, c.channel.ID, dec(t, "0.015")))

	rate, err := rates.Resolve(ctx, c.gateway.ID, c.channel.ID, c.retailer.ID, domain.DirectionPayin)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec(t, "0.015")), "got %s", rate)
}

func TestResolvePrefersOverrideOverSchema(t *testing.T) {
	c := newCatalog(t)
	rates := service.NewRateService(c.store)
	ctx := context.Background()

	require.NoError(t, rates.SetSchemaChannelRate(ctx, c.schema.ID, c.channel.ID, dec(t, "0.015")))
	require.NoError(t, rates.SetUserChannelOverride(ctx, c.retailer.ID, c.channel.ID, dec(t, "0.020")))

	rate, err := rates.Resolve(ctx, c.gateway.ID, c.channel.ID, c.retailer.ID, domain.DirectionPayin)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec(t, "0.020")), "got %s", rate)
}

func TestResolveUsesAssignedSchemaOverDefault(t *testing.T) {
	c := newCatalog(t)
	rates := service.NewRateService(c.store)
	ctx := context.Background()

	premium := models.RateSchema{
		ID:    uuid.New(),
		Name:  "retail-premium",
		Roles: []domain.Role{domain.RoleRetailer},
	}
	require.NoError(t, c.store.CreateSchema(ctx, &premium))
	require.NoError(t, rates.SetSchemaChannelRate(ctx, c.schema.ID, c.channel.ID, dec(t, "0.015")))
	require.NoError(t, rates.SetSchemaChannelRate(ctx, premium.ID, c.channel.ID, dec(t, "0.012")))

	assigned := models.User{ID: uuid.New(), Username: "shop-2", Role: domain.RoleRetailer, SchemaID: &premium.ID}
	require.NoError(t, c.store.CreateUser(ctx, &assigned))

	rate, err := rates.Resolve(ctx, c.gateway.ID, c.channel.ID, assigned.ID, domain.DirectionPayin)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec(t, "0.012")), "got %s", rate)
}

func TestSetSchemaRateBelowFloorRejected(t *testing.T) {
	c := newCatalog(t)
	rates := service.NewRateService(c.store)
	ctx := context.Background()

	err := rates.SetSchemaChannelRate(ctx, c.schema.ID, c.channel.ID, dec(t, "0.005"))
	var floorErr *models.RateBelowFloorError
	require.ErrorAs(t, err, &floorErr)
	assert.True(t, floorErr.Floor.Equal(dec(t, "0.010")))

	// The rejected write must not be visible.
	_, err = c.store.SchemaChannelRate(ctx, c.schema.ID, c.channel.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetOverrideFloorIsSchemaRate(t *testing.T) {
	c := newCatalog(t)
	rates := service.NewRateService(c.store)
	ctx := context.Background()

	require.NoError(t, rates.SetSchemaChannelRate(ctx, c.schema.ID, c.channel.ID, dec(t, "0.015")))

	var floorErr *models.RateBelowFloorError
	err := rates.SetUserChannelOverride(ctx, c.retailer.ID, c.channel.ID, dec(t, "0.012"))
	require.ErrorAs(t, err, &floorErr)
	assert.True(t, floorErr.Floor.Equal(dec(t, "0.015")))

	require.NoError(t, rates.SetUserChannelOverride(ctx, c.retailer.ID, c.channel.ID, dec(t, "0.015")))
}

func TestResolveUnknownChannel(t *testing.T) {
	c := newCatalog(t)
	rates := service.NewRateService(c.store)

	_, err := rates.Resolve(context.Background(), c.gateway.ID, uuid.New(), c.retailer.ID, domain.DirectionPayin)
	assert.ErrorIs(t, err, models.ErrNoRateConfigured)
}

func TestResolveRejectsDirectionMismatch(t *testing.T) {
	c := newCatalog(t)
	rates := service.NewRateService(c.store)

	_, err := rates.Resolve(context.Background(), c.gateway.ID, c.channel.ID, c.retailer.ID, domain.DirectionPayout)
	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrNotFound))
}
