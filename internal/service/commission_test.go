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

// hierarchy is a full five-level chain with per-user override rates set
// directly in the store.
type hierarchy struct {
	*catalog
	platform models.User
	wl       models.User
	md       models.User
	dist     models.User
}

func newHierarchy(t *testing.T) *hierarchy {
	t.Helper()
	ctx := context.Background()
	c := newCatalog(t)

	h := &hierarchy{catalog: c}
	h.platform = models.User{ID: uuid.New(), Username: "platform", Role: domain.RolePlatform}
	require.NoError(t, c.store.CreateUser(ctx, &h.platform))
	h.wl = models.User{ID: uuid.New(), Username: "wl", Role: domain.RoleWhiteLabel, ParentID: &h.platform.ID}
	require.NoError(t, c.store.CreateUser(ctx, &h.wl))
	h.md = models.User{ID: uuid.New(), Username: "md", Role: domain.RoleMasterDistributor, ParentID: &h.wl.ID}
	require.NoError(t, c.store.CreateUser(ctx, &h.md))
	h.dist = models.User{ID: uuid.New(), Username: "dist", Role: domain.RoleDistributor, ParentID: &h.md.ID}
	require.NoError(t, c.store.CreateUser(ctx, &h.dist))

	// Re-parent the catalog's retailer under the distributor.
	h.retailer.ParentID = &h.dist.ID
	require.NoError(t, c.store.CreateUser(ctx, &h.retailer))
	return h
}

func (h *hierarchy) setRate(t *testing.T, userID uuid.UUID, rate string) {
	t.Helper()
	require.NoError(t, h.store.UpsertUserChannelRate(context.Background(), &models.UserChannelRate{
		UserID:    userID,
		ChannelID: h.channel.ID,
		Rate:      dec(t, rate),
	}))
}

func newCommission(h *hierarchy) *service.CommissionService {
	rates := service.NewRateService(h.store)
	return service.NewCommissionService(h.store, rates)
}

func TestSplitCommissionFullChain(t *testing.T) {
	h := newHierarchy(t)
	h.setRate(t, h.retailer.ID, "0.020")
	h.setRate(t, h.dist.ID, "0.015")
	h.setRate(t, h.md.ID, "0.012")
	h.setRate(t, h.wl.ID, "0.011")
	commission := newCommission(h)

	splits, err := commission.SplitCommission(context.Background(), 100000, h.gateway.ID, h.channel.ID, h.retailer.ID)
	require.NoError(t, err)
	require.Len(t, splits, 4)

	assert.Equal(t, h.dist.ID, splits[0].UserID)
	assert.Equal(t, int64(500), splits[0].Amount) // 0.5% spread
	assert.Equal(t, h.md.ID, splits[1].UserID)
	assert.Equal(t, int64(300), splits[1].Amount) // 0.3% spread
	assert.Equal(t, h.wl.ID, splits[2].UserID)
	assert.Equal(t, int64(100), splits[2].Amount) // 0.1% spread
	assert.Equal(t, h.platform.ID, splits[3].UserID)
	assert.Equal(t, int64(1100), splits[3].Amount) // 0.1% spread over base + 1% base cost

	var total int64
	for _, s := range splits {
		total += s.Amount
	}
	assert.Equal(t, int64(2000), total, "splits must sum to the owner cost exactly")
}

func TestSplitCommissionTruncationConserved(t *testing.T) {
	h := newHierarchy(t)
	h.setRate(t, h.retailer.ID, "0.020")
	h.setRate(t, h.dist.ID, "0.015")
	h.setRate(t, h.md.ID, "0.012")
	h.setRate(t, h.wl.ID, "0.011")
	commission := newCommission(h)

	// 99999 makes every intermediary spread fractional. Intermediaries
	// truncate, the platform absorbs the remainder.
	splits, err := commission.SplitCommission(context.Background(), 99999, h.gateway.ID, h.channel.ID, h.retailer.ID)
	require.NoError(t, err)
	require.Len(t, splits, 4)

	assert.Equal(t, int64(499), splits[0].Amount)
	assert.Equal(t, int64(299), splits[1].Amount)
	assert.Equal(t, int64(99), splits[2].Amount)
	assert.Equal(t, int64(1103), splits[3].Amount)

	var total int64
	for _, s := range splits {
		total += s.Amount
	}
	assert.Equal(t, int64(2000), total)
}

func TestSplitCommissionEqualRatesZeroSpread(t *testing.T) {
	h := newHierarchy(t)
	h.setRate(t, h.retailer.ID, "0.015")
	h.setRate(t, h.dist.ID, "0.015")
	h.setRate(t, h.md.ID, "0.015")
	h.setRate(t, h.wl.ID, "0.015")
	commission := newCommission(h)

	splits, err := commission.SplitCommission(context.Background(), 100000, h.gateway.ID, h.channel.ID, h.retailer.ID)
	require.NoError(t, err)
	require.Len(t, splits, 4)
	assert.Zero(t, splits[0].Amount)
	assert.Zero(t, splits[1].Amount)
	assert.Zero(t, splits[2].Amount)
	assert.Equal(t, int64(1500), splits[3].Amount)
}

func TestSplitCommissionNegativeSpreadFailsLoudly(t *testing.T) {
	h := newHierarchy(t)
	h.setRate(t, h.retailer.ID, "0.012")
	h.setRate(t, h.dist.ID, "0.015")
	h.setRate(t, h.md.ID, "0.012")
	h.setRate(t, h.wl.ID, "0.011")
	commission := newCommission(h)

	_, err := commission.SplitCommission(context.Background(), 100000, h.gateway.ID, h.channel.ID, h.retailer.ID)
	var spreadErr *models.NegativeSpreadError
	require.ErrorAs(t, err, &spreadErr)
	assert.Equal(t, h.retailer.ID, spreadErr.ChildID)
	assert.Equal(t, h.dist.ID, spreadErr.ParentID)
}

func TestSplitCommissionRejectsCycle(t *testing.T) {
	h := newHierarchy(t)
	h.setRate(t, h.retailer.ID, "0.020")
	commission := newCommission(h)

	// Corrupt the chain: the distributor's parent points back at the retailer.
	h.dist.ParentID = &h.retailer.ID
	require.NoError(t, h.store.CreateUser(context.Background(), &h.dist))

	_, err := commission.SplitCommission(context.Background(), 100000, h.gateway.ID, h.channel.ID, h.retailer.ID)
	var hierErr *models.HierarchyError
	require.ErrorAs(t, err, &hierErr)
}

func TestSplitCommissionChainMustReachPlatform(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	// A retailer whose parent chain stops at a parentless distributor.
	orphan := models.User{ID: uuid.New(), Username: "orphan-dist", Role: domain.RoleDistributor}
	require.NoError(t, c.store.CreateUser(ctx, &orphan))
	c.retailer.ParentID = &orphan.ID
	require.NoError(t, c.store.CreateUser(ctx, &c.retailer))

	rates := service.NewRateService(c.store)
	commission := service.NewCommissionService(c.store, rates)

	_, err := commission.SplitCommission(ctx, 100000, c.gateway.ID, c.channel.ID, c.retailer.ID)
	var hierErr *models.HierarchyError
	require.ErrorAs(t, err, &hierErr)
	assert.Contains(t, hierErr.Reason, "platform")
}
