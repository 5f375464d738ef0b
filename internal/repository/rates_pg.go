package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
)

func (s *PostgresStore) CreateGateway(ctx context.Context, g *models.Gateway) error {
	query := `INSERT INTO gateways (id, name, base_payin_rate, charge_type, payout_percent)
	          VALUES ($1, $2, $3::numeric, $4, $5::numeric)
	          RETURNING created_at`
	err := s.db.QueryRow(ctx, query,
		g.ID, g.Name, g.BasePayinRate.String(), string(g.PayoutCharge.Type), g.PayoutCharge.Percent.String(),
	).Scan(&g.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateChannel(ctx context.Context, c *models.Channel) error {
	query := `INSERT INTO channels (id, gateway_id, name, direction, base_cost)
	          VALUES ($1, $2, $3, $4, $5::numeric)
	          RETURNING created_at`
	err := s.db.QueryRow(ctx, query,
		c.ID, c.GatewayID, c.Name, string(c.Direction), c.BaseCost.String(),
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (id, username, role, parent_id, schema_id)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING created_at`
	err := s.db.QueryRow(ctx, query, u.ID, u.Username, u.Role.String(), u.ParentID, u.SchemaID).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSchema(ctx context.Context, sc *models.RateSchema) error {
	roles := make([]string, 0, len(sc.Roles))
	for _, r := range sc.Roles {
		roles = append(roles, r.String())
	}
	query := `INSERT INTO rate_schemas (id, name, roles, is_default)
	          VALUES ($1, $2, $3, $4)
	          RETURNING created_at`
	err := s.db.QueryRow(ctx, query, sc.ID, sc.Name, roles, sc.IsDefault).Scan(&sc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rate schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Gateway(ctx context.Context, id uuid.UUID) (*models.Gateway, error) {
	g := &models.Gateway{}
	var baseRate, percent string
	var chargeType string
	query := `SELECT id, name, base_payin_rate::text, charge_type, payout_percent::text, created_at
	          FROM gateways WHERE id = $1`
	err := s.db.QueryRow(ctx, query, id).Scan(&g.ID, &g.Name, &baseRate, &chargeType, &percent, &g.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get gateway: %w", err)
	}
	if g.BasePayinRate, err = scanDecimal(baseRate); err != nil {
		return nil, err
	}
	g.PayoutCharge.Type = domain.ChargeType(chargeType)
	if g.PayoutCharge.Percent, err = scanDecimal(percent); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *PostgresStore) Channel(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	c := &models.Channel{}
	var baseCost, direction string
	query := `SELECT id, gateway_id, name, direction, base_cost::text, created_at
	          FROM channels WHERE id = $1`
	err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.GatewayID, &c.Name, &direction, &baseCost, &c.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	c.Direction = domain.Direction(direction)
	if c.BaseCost, err = scanDecimal(baseCost); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) User(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	var role string
	query := `SELECT id, username, role, parent_id, schema_id, created_at FROM users WHERE id = $1`
	err := s.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Username, &role, &u.ParentID, &u.SchemaID, &u.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	parsed, ok := domain.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("user %s has unknown role %q", id, role)
	}
	u.Role = parsed
	return u, nil
}

func (s *PostgresStore) Schema(ctx context.Context, id uuid.UUID) (*models.RateSchema, error) {
	query := `SELECT id, name, roles, is_default, created_at FROM rate_schemas WHERE id = $1`
	return s.scanSchema(s.db.QueryRow(ctx, query, id))
}

func (s *PostgresStore) DefaultSchemaForRole(ctx context.Context, role domain.Role) (*models.RateSchema, error) {
	query := `SELECT id, name, roles, is_default, created_at
	          FROM rate_schemas WHERE is_default AND $1 = ANY(roles) LIMIT 1`
	return s.scanSchema(s.db.QueryRow(ctx, query, role.String()))
}

func (s *PostgresStore) scanSchema(row pgx.Row) (*models.RateSchema, error) {
	sc := &models.RateSchema{}
	var roles []string
	if err := row.Scan(&sc.ID, &sc.Name, &roles, &sc.IsDefault, &sc.CreatedAt); err != nil {
		if noRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get rate schema: %w", err)
	}
	for _, r := range roles {
		parsed, ok := domain.ParseRole(r)
		if !ok {
			return nil, fmt.Errorf("rate schema %s has unknown role %q", sc.ID, r)
		}
		sc.Roles = append(sc.Roles, parsed)
	}
	return sc, nil
}

func (s *PostgresStore) SchemaChannelRate(ctx context.Context, schemaID, channelID uuid.UUID) (*models.SchemaChannelRate, error) {
	r := &models.SchemaChannelRate{}
	var rate string
	query := `SELECT schema_id, channel_id, rate::text, updated_at
	          FROM schema_channel_rates WHERE schema_id = $1 AND channel_id = $2`
	err := s.db.QueryRow(ctx, query, schemaID, channelID).Scan(&r.SchemaID, &r.ChannelID, &rate, &r.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schema channel rate: %w", err)
	}
	if r.Rate, err = scanDecimal(rate); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) UpsertSchemaChannelRate(ctx context.Context, rate *models.SchemaChannelRate) error {
	query := `INSERT INTO schema_channel_rates (schema_id, channel_id, rate, updated_at)
	          VALUES ($1, $2, $3::numeric, NOW())
	          ON CONFLICT (schema_id, channel_id) DO UPDATE SET rate = EXCLUDED.rate, updated_at = NOW()
	          RETURNING updated_at`
	err := s.db.QueryRow(ctx, query, rate.SchemaID, rate.ChannelID, rate.Rate.String()).Scan(&rate.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert schema channel rate: %w", err)
	}
	return nil
}

func (s *PostgresStore) UserChannelRate(ctx context.Context, userID, channelID uuid.UUID) (*models.UserChannelRate, error) {
	r := &models.UserChannelRate{}
	var rate string
	query := `SELECT user_id, channel_id, rate::text, updated_at
	          FROM user_channel_rates WHERE user_id = $1 AND channel_id = $2`
	err := s.db.QueryRow(ctx, query, userID, channelID).Scan(&r.UserID, &r.ChannelID, &rate, &r.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user channel rate: %w", err)
	}
	if r.Rate, err = scanDecimal(rate); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) UpsertUserChannelRate(ctx context.Context, rate *models.UserChannelRate) error {
	query := `INSERT INTO user_channel_rates (user_id, channel_id, rate, updated_at)
	          VALUES ($1, $2, $3::numeric, NOW())
	          ON CONFLICT (user_id, channel_id) DO UPDATE SET rate = EXCLUDED.rate, updated_at = NOW()
	          RETURNING updated_at`
	err := s.db.QueryRow(ctx, query, rate.UserID, rate.ChannelID, rate.Rate.String()).Scan(&rate.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user channel rate: %w", err)
	}
	return nil
}

func (s *PostgresStore) PayoutSlabs(ctx context.Context, gatewayID uuid.UUID) ([]models.PayoutSlab, error) {
	query := `SELECT gateway_id, min_amount, max_amount, fee
	          FROM payout_slabs WHERE gateway_id = $1 ORDER BY min_amount`
	rows, err := s.db.Query(ctx, query, gatewayID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payout slabs: %w", err)
	}
	defer rows.Close()

	var slabs []models.PayoutSlab
	for rows.Next() {
		var slab models.PayoutSlab
		if err := rows.Scan(&slab.GatewayID, &slab.MinAmount, &slab.MaxAmount, &slab.Fee); err != nil {
			return nil, fmt.Errorf("failed to scan payout slab: %w", err)
		}
		slabs = append(slabs, slab)
	}
	return slabs, rows.Err()
}

func (s *PostgresStore) ReplacePayoutSlabs(ctx context.Context, gatewayID uuid.UUID, slabs []models.PayoutSlab) error {
	return s.runInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM payout_slabs WHERE gateway_id = $1`, gatewayID); err != nil {
			return fmt.Errorf("failed to clear payout slabs: %w", err)
		}
		for _, slab := range slabs {
			_, err := tx.Exec(ctx, `INSERT INTO payout_slabs (gateway_id, min_amount, max_amount, fee) VALUES ($1, $2, $3, $4)`,
				gatewayID, slab.MinAmount, slab.MaxAmount, slab.Fee)
			if err != nil {
				return fmt.Errorf("failed to insert payout slab: %w", err)
			}
		}
		return nil
	})
}
