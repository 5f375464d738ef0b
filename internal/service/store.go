package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
)

// RateStore is the catalog access contract required by rate resolution and
// commission splitting. Pure data access; all rules live in the services.
type RateStore interface {
	CreateGateway(ctx context.Context, g *models.Gateway) error
	CreateChannel(ctx context.Context, c *models.Channel) error
	CreateUser(ctx context.Context, u *models.User) error
	CreateSchema(ctx context.Context, schema *models.RateSchema) error

	Gateway(ctx context.Context, id uuid.UUID) (*models.Gateway, error)
	Channel(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	User(ctx context.Context, id uuid.UUID) (*models.User, error)

	Schema(ctx context.Context, id uuid.UUID) (*models.RateSchema, error)
	// DefaultSchemaForRole returns the schema marked default for a role set
	// covering the role, or models.ErrNotFound.
	DefaultSchemaForRole(ctx context.Context, role domain.Role) (*models.RateSchema, error)

	SchemaChannelRate(ctx context.Context, schemaID, channelID uuid.UUID) (*models.SchemaChannelRate, error)
	UpsertSchemaChannelRate(ctx context.Context, rate *models.SchemaChannelRate) error
	UserChannelRate(ctx context.Context, userID, channelID uuid.UUID) (*models.UserChannelRate, error)
	UpsertUserChannelRate(ctx context.Context, rate *models.UserChannelRate) error

	// PayoutSlabs returns the gateway's slab table sorted by MinAmount.
	PayoutSlabs(ctx context.Context, gatewayID uuid.UUID) ([]models.PayoutSlab, error)
	ReplacePayoutSlabs(ctx context.Context, gatewayID uuid.UUID, slabs []models.PayoutSlab) error
}

// WalletTx is the view of wallet storage inside one atomic unit. Wallets
// named in RunInWalletTx are locked for the duration of fn.
type WalletTx interface {
	Wallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	SaveWallet(ctx context.Context, wallet *models.Wallet) error
	// AppendEntry assigns the per-wallet sequence number and timestamp.
	AppendEntry(ctx context.Context, entry *models.LedgerEntry) error
	EntriesByReference(ctx context.Context, walletID uuid.UUID, refID string) ([]models.LedgerEntry, error)
}

// WalletStore owns wallet balances and the append-only ledger.
type WalletStore interface {
	// RunInWalletTx serializes fn against the named wallets. Locks are
	// acquired in a fixed global order by user id regardless of the order
	// given, so opposing transfers cannot deadlock. The balance mutations
	// and entry appends inside fn commit together or not at all.
	RunInWalletTx(ctx context.Context, walletIDs []uuid.UUID, fn func(tx WalletTx) error) error

	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	Wallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	WalletIDs(ctx context.Context) ([]uuid.UUID, error)

	// Entries serves read-side queries from a consistent snapshot and never
	// blocks writers beyond storage-engine isolation.
	Entries(ctx context.Context, filter LedgerFilter) ([]models.LedgerEntry, int64, error)
}

// LedgerFilter narrows read-side ledger queries. Zero fields mean "any".
type LedgerFilter struct {
	WalletID *uuid.UUID
	Type     *domain.EntryType
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// PayoutStore persists payout request lifecycle state.
type PayoutStore interface {
	CreatePayout(ctx context.Context, p *models.PayoutRequest) error
	Payout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	PayoutByReference(ctx context.Context, refID string) (*models.PayoutRequest, error)
	// ClaimPendingPayouts atomically moves up to limit PENDING payouts to
	// PROCESSING and returns them. Safe for concurrent worker instances.
	ClaimPendingPayouts(ctx context.Context, limit int32) ([]models.PayoutRequest, error)
	UpdatePayout(ctx context.Context, p *models.PayoutRequest) error
}
