package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
	"github.com/nileshk07/paygrid/internal/service"
)

func (s *PostgresStore) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	query := `INSERT INTO wallets (user_id, balance, hold_balance, updated_at)
	          VALUES ($1, $2, $3, NOW())
	          ON CONFLICT (user_id) DO NOTHING`
	if _, err := s.db.Exec(ctx, query, wallet.UserID, wallet.Balance, wallet.HoldBalance); err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (s *PostgresStore) Wallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w := &models.Wallet{}
	query := `SELECT user_id, balance, hold_balance, updated_at FROM wallets WHERE user_id = $1`
	err := s.db.QueryRow(ctx, query, userID).Scan(&w.UserID, &w.Balance, &w.HoldBalance, &w.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, models.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) WalletIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM wallets ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan wallet id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RunInWalletTx locks the named wallet rows in user-id order so opposing
// transfers cannot deadlock, then hands a transactional view to fn.
func (s *PostgresStore) RunInWalletTx(ctx context.Context, walletIDs []uuid.UUID, fn func(tx service.WalletTx) error) error {
	ids := dedupeSorted(walletIDs)
	return s.runInTx(ctx, func(tx pgx.Tx) error {
		for _, id := range ids {
			var locked uuid.UUID
			err := tx.QueryRow(ctx, `SELECT user_id FROM wallets WHERE user_id = $1 FOR UPDATE`, id).Scan(&locked)
			if err != nil {
				if noRows(err) {
					return models.ErrWalletNotFound
				}
				return fmt.Errorf("failed to lock wallet %s: %w", id, err)
			}
		}
		return fn(&pgWalletTx{tx: tx})
	})
}

type pgWalletTx struct {
	tx pgx.Tx
}

func (t *pgWalletTx) Wallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w := &models.Wallet{}
	query := `SELECT user_id, balance, hold_balance, updated_at FROM wallets WHERE user_id = $1`
	err := t.tx.QueryRow(ctx, query, userID).Scan(&w.UserID, &w.Balance, &w.HoldBalance, &w.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, models.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

func (t *pgWalletTx) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	query := `UPDATE wallets SET balance = $1, hold_balance = $2, updated_at = NOW() WHERE user_id = $3`
	tag, err := t.tx.Exec(ctx, query, wallet.Balance, wallet.HoldBalance, wallet.UserID)
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return models.ErrWalletNotFound
	}
	return nil
}

func (t *pgWalletTx) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	// The wallet row is locked, so the MAX(seq) subquery cannot race.
	query := `INSERT INTO ledger_entries (id, wallet_id, seq, type, debit, credit, balance, description, reference_id, created_at)
	          VALUES ($1, $2,
	                  COALESCE((SELECT MAX(seq) FROM ledger_entries WHERE wallet_id = $2), 0) + 1,
	                  $3, $4, $5, $6, $7, NULLIF($8, ''), NOW())
	          RETURNING seq, created_at`
	err := t.tx.QueryRow(ctx, query,
		entry.ID, entry.WalletID, string(entry.Type), entry.Debit, entry.Credit,
		entry.Balance, entry.Description, entry.ReferenceID,
	).Scan(&entry.Seq, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (t *pgWalletTx) EntriesByReference(ctx context.Context, walletID uuid.UUID, refID string) ([]models.LedgerEntry, error) {
	query := `SELECT id, wallet_id, seq, type, debit, credit, balance, description, COALESCE(reference_id, ''), created_at
	          FROM ledger_entries WHERE wallet_id = $1 AND reference_id = $2 ORDER BY seq`
	rows, err := t.tx.Query(ctx, query, walletID, refID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries by reference: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) Entries(ctx context.Context, filter service.LedgerFilter) ([]models.LedgerEntry, int64, error) {
	where, args := buildEntryFilter(filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM ledger_entries` + where
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	query := `SELECT id, wallet_id, seq, type, debit, credit, balance, description, COALESCE(reference_id, ''), created_at
	          FROM ledger_entries` + where + ` ORDER BY created_at, wallet_id, seq`
	if filter.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + strconv.Itoa(filter.Offset)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func buildEntryFilter(filter service.LedgerFilter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.WalletID != nil {
		conds = append(conds, "wallet_id = "+arg(*filter.WalletID))
	}
	if filter.Type != nil {
		conds = append(conds, "type = "+arg(string(*filter.Type)))
	}
	if filter.From != nil {
		conds = append(conds, "created_at >= "+arg(*filter.From))
	}
	if filter.To != nil {
		conds = append(conds, "created_at <= "+arg(*filter.To))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanEntries(rows pgx.Rows) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var entryType string
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Seq, &entryType, &e.Debit, &e.Credit,
			&e.Balance, &e.Description, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Type = domain.EntryType(entryType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
