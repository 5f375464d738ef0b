package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
)

// LedgerQueryService is the read side over the append-only ledger: filtered,
// paginated statements with a summary window, plus flat exports. It never
// mutates the ledger.
type LedgerQueryService struct {
	store WalletStore
}

func NewLedgerQueryService(store WalletStore) *LedgerQueryService {
	return &LedgerQueryService{store: store}
}

const (
	defaultPageSize = 25
	maxPageSize     = 500
)

// QueryRequest narrows and pages a ledger read.
type QueryRequest struct {
	UserID   *uuid.UUID
	Type     *domain.EntryType
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// Summary aggregates the returned window. OpeningBalance is the running
// balance immediately before the first returned entry, derived from that
// entry's own snapshot.
type Summary struct {
	OpeningBalance int64 `json:"opening_balance"`
	TotalCredits   int64 `json:"total_credits"`
	TotalDebits    int64 `json:"total_debits"`
	ClosingBalance int64 `json:"closing_balance"`
	Count          int   `json:"count"`
}

// Pagination describes the page served.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int64 `json:"total_pages"`
}

// QueryResult is one page of ledger entries with its summary.
type QueryResult struct {
	Entries    []models.LedgerEntry `json:"entries"`
	Summary    Summary              `json:"summary"`
	Pagination Pagination           `json:"pagination"`
}

// Query serves one page of the filtered ledger.
func (s *LedgerQueryService) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	entries, total, err := s.store.Entries(ctx, LedgerFilter{
		WalletID: req.UserID,
		Type:     req.Type,
		From:     req.From,
		To:       req.To,
		Limit:    req.PageSize,
		Offset:   (req.Page - 1) * req.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}

	result := &QueryResult{
		Entries: entries,
		Summary: summarize(entries),
		Pagination: Pagination{
			Page:       req.Page,
			PageSize:   req.PageSize,
			TotalCount: total,
			TotalPages: (total + int64(req.PageSize) - 1) / int64(req.PageSize),
		},
	}
	return result, nil
}

func summarize(entries []models.LedgerEntry) Summary {
	var sum Summary
	sum.Count = len(entries)
	if len(entries) == 0 {
		return sum
	}
	first := entries[0]
	sum.OpeningBalance = first.Balance - first.Credit + first.Debit
	sum.ClosingBalance = entries[len(entries)-1].Balance
	for _, e := range entries {
		sum.TotalCredits += e.Credit
		sum.TotalDebits += e.Debit
	}
	return sum
}

// ExportCSV streams the filtered entries (unpaginated) as a flat table.
func (s *LedgerQueryService) ExportCSV(ctx context.Context, w io.Writer, req QueryRequest) error {
	entries, _, err := s.store.Entries(ctx, LedgerFilter{
		WalletID: req.UserID,
		Type:     req.Type,
		From:     req.From,
		To:       req.To,
	})
	if err != nil {
		return fmt.Errorf("export ledger: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"entry_id", "wallet_id", "seq", "type", "debit", "credit", "balance", "description", "reference_id", "created_at"}); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			e.ID.String(),
			e.WalletID.String(),
			strconv.FormatInt(e.Seq, 10),
			string(e.Type),
			strconv.FormatInt(e.Debit, 10),
			strconv.FormatInt(e.Credit, 10),
			strconv.FormatInt(e.Balance, 10),
			e.Description,
			e.ReferenceID,
			e.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
