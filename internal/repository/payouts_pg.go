package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
)

const payoutColumns = `id, user_id, gateway_id, amount, fee, status, gateway_ref, reference_id, created_at, updated_at`

func (s *PostgresStore) CreatePayout(ctx context.Context, p *models.PayoutRequest) error {
	query := `INSERT INTO payout_requests (id, user_id, gateway_id, amount, fee, status, reference_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	          ON CONFLICT (reference_id) DO NOTHING
	          RETURNING created_at, updated_at`
	err := s.db.QueryRow(ctx, query, p.ID, p.UserID, p.GatewayID, p.Amount, p.Fee, p.Status, p.ReferenceID).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return models.ErrDuplicatePayout
		}
		return fmt.Errorf("failed to create payout: %w", err)
	}
	return nil
}

func (s *PostgresStore) Payout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1`
	return s.scanPayout(s.db.QueryRow(ctx, query, id))
}

func (s *PostgresStore) PayoutByReference(ctx context.Context, refID string) (*models.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE reference_id = $1`
	return s.scanPayout(s.db.QueryRow(ctx, query, refID))
}

// ClaimPendingPayouts uses SKIP LOCKED so concurrent worker instances never
// claim the same payout twice.
func (s *PostgresStore) ClaimPendingPayouts(ctx context.Context, limit int32) ([]models.PayoutRequest, error) {
	var claimed []models.PayoutRequest
	err := s.runInTx(ctx, func(tx pgx.Tx) error {
		query := `UPDATE payout_requests SET status = $1, updated_at = NOW()
		          WHERE id IN (
		              SELECT id FROM payout_requests WHERE status = $2
		              ORDER BY created_at LIMIT $3 FOR UPDATE SKIP LOCKED
		          )
		          RETURNING ` + payoutColumns
		rows, err := tx.Query(ctx, query, domain.PayoutStatusProcessing, domain.PayoutStatusPending, limit)
		if err != nil {
			return fmt.Errorf("failed to claim pending payouts: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPayoutRow(rows)
			if err != nil {
				return err
			}
			claimed = append(claimed, *p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *PostgresStore) UpdatePayout(ctx context.Context, p *models.PayoutRequest) error {
	query := `UPDATE payout_requests SET status = $1, gateway_ref = $2, fee = $3, updated_at = NOW()
	          WHERE id = $4 RETURNING updated_at`
	err := s.db.QueryRow(ctx, query, p.Status, p.GatewayRef, p.Fee, p.ID).Scan(&p.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to update payout: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanPayout(row pgx.Row) (*models.PayoutRequest, error) {
	p, err := scanPayoutRow(row)
	if err != nil {
		if noRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func scanPayoutRow(row pgx.Row) (*models.PayoutRequest, error) {
	p := &models.PayoutRequest{}
	err := row.Scan(&p.ID, &p.UserID, &p.GatewayID, &p.Amount, &p.Fee, &p.Status,
		&p.GatewayRef, &p.ReferenceID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan payout: %w", err)
	}
	return p, nil
}
