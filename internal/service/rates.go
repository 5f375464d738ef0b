package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
)

// RateService resolves effective commission rates and guards the rate floor
// on the administrative write path. Resolution walks override → schema →
// channel base cost and returns the first match.
type RateService struct {
	store RateStore
}

func NewRateService(store RateStore) *RateService {
	return &RateService{store: store}
}

// Resolve returns the effective rate for a user on one channel. It performs
// only reads and never holds a wallet lock; failing with ErrNoRateConfigured
// means the catalog itself is broken, not that the user lacks a rate.
func (s *RateService) Resolve(ctx context.Context, gatewayID, channelID, userID uuid.UUID, direction domain.Direction) (decimal.Decimal, error) {
	channel, err := s.channelFor(ctx, gatewayID, channelID, direction)
	if err != nil {
		return decimal.Decimal{}, err
	}

	override, err := s.store.UserChannelRate(ctx, userID, channelID)
	if err == nil {
		return override.Rate, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return decimal.Decimal{}, fmt.Errorf("lookup user override: %w", err)
	}

	if rate, ok, err := s.schemaRateForUser(ctx, userID, channelID); err != nil {
		return decimal.Decimal{}, err
	} else if ok {
		return rate, nil
	}

	// Floor of last resort: the gateway's own cost for the channel.
	return channel.BaseCost, nil
}

// SetSchemaChannelRate validates a schema rate against its floor (the channel
// base cost) and persists it. The write is all-or-nothing: a floor violation
// never mutates the store.
func (s *RateService) SetSchemaChannelRate(ctx context.Context, schemaID, channelID uuid.UUID, rate decimal.Decimal) error {
	if _, err := s.store.Schema(ctx, schemaID); err != nil {
		return fmt.Errorf("lookup schema %s: %w", schemaID, err)
	}
	channel, err := s.store.Channel(ctx, channelID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNoRateConfigured
		}
		return fmt.Errorf("lookup channel %s: %w", channelID, err)
	}

	if rate.LessThan(channel.BaseCost) {
		return &models.RateBelowFloorError{Candidate: rate, Floor: channel.BaseCost}
	}

	return s.store.UpsertSchemaChannelRate(ctx, &models.SchemaChannelRate{
		SchemaID:  schemaID,
		ChannelID: channelID,
		Rate:      rate,
	})
}

// SetUserChannelOverride validates a user override against its floor (the
// applicable schema rate, or the channel base cost when the schema has none)
// and persists it.
func (s *RateService) SetUserChannelOverride(ctx context.Context, userID, channelID uuid.UUID, rate decimal.Decimal) error {
	channel, err := s.store.Channel(ctx, channelID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNoRateConfigured
		}
		return fmt.Errorf("lookup channel %s: %w", channelID, err)
	}

	floor := channel.BaseCost
	if schemaRate, ok, err := s.schemaRateForUser(ctx, userID, channelID); err != nil {
		return err
	} else if ok {
		floor = schemaRate
	}

	if rate.LessThan(floor) {
		return &models.RateBelowFloorError{Candidate: rate, Floor: floor}
	}

	return s.store.UpsertUserChannelRate(ctx, &models.UserChannelRate{
		UserID:    userID,
		ChannelID: channelID,
		Rate:      rate,
	})
}

// schemaRateForUser resolves the schema that applies to the user (assigned,
// else the role default) and returns its configured rate for the channel.
func (s *RateService) schemaRateForUser(ctx context.Context, userID, channelID uuid.UUID) (decimal.Decimal, bool, error) {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return decimal.Decimal{}, false, nil
		}
		return decimal.Decimal{}, false, fmt.Errorf("lookup user %s: %w", userID, err)
	}

	var schema *models.RateSchema
	if user.SchemaID != nil {
		schema, err = s.store.Schema(ctx, *user.SchemaID)
	} else {
		schema, err = s.store.DefaultSchemaForRole(ctx, user.Role)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return decimal.Decimal{}, false, nil
		}
		return decimal.Decimal{}, false, fmt.Errorf("lookup schema for user %s: %w", userID, err)
	}

	rate, err := s.store.SchemaChannelRate(ctx, schema.ID, channelID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return decimal.Decimal{}, false, nil
		}
		return decimal.Decimal{}, false, fmt.Errorf("lookup schema rate: %w", err)
	}
	return rate.Rate, true, nil
}

func (s *RateService) channelFor(ctx context.Context, gatewayID, channelID uuid.UUID, direction domain.Direction) (*models.Channel, error) {
	channel, err := s.store.Channel(ctx, channelID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNoRateConfigured
		}
		return nil, fmt.Errorf("lookup channel %s: %w", channelID, err)
	}
	if channel.GatewayID != gatewayID {
		return nil, fmt.Errorf("channel %s does not belong to gateway %s", channelID, gatewayID)
	}
	if channel.Direction != direction {
		return nil, fmt.Errorf("channel %s is %s, not %s", channelID, channel.Direction, direction)
	}
	return channel, nil
}
