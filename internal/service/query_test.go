package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/service"
)

func TestQueryPagination(t *testing.T) {
	ledger, store := newLedger(t)
	query := service.NewLedgerQueryService(store)
	ctx := context.Background()
	user := openWallet(t, ledger)

	for i := 0; i < 7; i++ {
		_, err := ledger.Credit(ctx, user, 100, "tick", fmt.Sprintf("ref-%d", i))
		require.NoError(t, err)
	}

	result, err := query.Query(ctx, service.QueryRequest{UserID: &user, Page: 1, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 3)
	assert.Equal(t, int64(7), result.Pagination.TotalCount)
	assert.Equal(t, int64(3), result.Pagination.TotalPages)

	result, err = query.Query(ctx, service.QueryRequest{UserID: &user, Page: 3, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 1)

	result, err = query.Query(ctx, service.QueryRequest{UserID: &user, Page: 9, PageSize: 3})
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	assert.Equal(t, int64(7), result.Pagination.TotalCount)

	// Defaults kick in for nonsense paging values.
	result, err = query.Query(ctx, service.QueryRequest{UserID: &user, Page: -1, PageSize: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pagination.Page)
	assert.Len(t, result.Entries, 7)
}

func TestQuerySummaryWindow(t *testing.T) {
	ledger, store := newLedger(t)
	query := service.NewLedgerQueryService(store)
	ctx := context.Background()
	user := openWallet(t, ledger)

	_, err := ledger.Credit(ctx, user, 100000, "seed", "ref-1")
	require.NoError(t, err)
	_, err = ledger.Debit(ctx, user, 20000, "spend", "ref-2")
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, user, 5000, "top-up", "ref-3")
	require.NoError(t, err)

	// Page the window past the first entry: the opening balance is derived
	// from the first returned entry's own snapshot.
	result, err := query.Query(ctx, service.QueryRequest{UserID: &user, Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, int64(100000), result.Summary.OpeningBalance)
	assert.Equal(t, int64(80000), result.Summary.ClosingBalance)
	assert.Equal(t, int64(20000), result.Summary.TotalDebits)
	assert.Zero(t, result.Summary.TotalCredits)
}

func TestQueryTypeAndTimeFilters(t *testing.T) {
	ledger, store := newLedger(t)
	query := service.NewLedgerQueryService(store)
	ctx := context.Background()
	user := openWallet(t, ledger)

	_, err := ledger.Credit(ctx, user, 1000, "seed", "ref-1")
	require.NoError(t, err)
	_, err = ledger.Debit(ctx, user, 500, "spend", "ref-2")
	require.NoError(t, err)

	entryType := domain.EntryDebit
	result, err := query.Query(ctx, service.QueryRequest{UserID: &user, Type: &entryType})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, domain.EntryDebit, result.Entries[0].Type)

	future := time.Now().Add(time.Hour)
	result, err = query.Query(ctx, service.QueryRequest{UserID: &user, From: &future})
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
}

func TestExportCSV(t *testing.T) {
	ledger, store := newLedger(t)
	query := service.NewLedgerQueryService(store)
	ctx := context.Background()
	user := openWallet(t, ledger)

	_, err := ledger.Credit(ctx, user, 1000, "seed, with comma", "ref-1")
	require.NoError(t, err)
	_, err = ledger.Debit(ctx, user, 400, "spend", "ref-2")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, query.ExportCSV(ctx, &buf, service.QueryRequest{UserID: &user}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "entry_id", records[0][0])
	assert.Equal(t, "CREDIT", records[1][3])
	assert.Equal(t, "seed, with comma", records[1][7])
	assert.Equal(t, "600", records[2][6])
}
