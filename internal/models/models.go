package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nileshk07/paygrid/internal/domain"
)

// User is a member of the onboarding hierarchy. ParentID points at the user
// who onboarded them and is nil only for the platform root.
type User struct {
	ID        uuid.UUID   `json:"id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	ParentID  *uuid.UUID  `json:"parent_id,omitempty"`
	SchemaID  *uuid.UUID  `json:"schema_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Gateway is an external payment processor with its base payin cost and
// payout charge configuration.
type Gateway struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	BasePayinRate decimal.Decimal `json:"base_payin_rate"`
	PayoutCharge  PayoutCharge    `json:"payout_charge"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PayoutCharge is either a flat percentage or an ordered slab table.
type PayoutCharge struct {
	Type    domain.ChargeType `json:"type"`
	Percent decimal.Decimal   `json:"percent,omitempty"`
}

// PayoutSlab is one amount range with a flat fee. MaxAmount nil means
// open-ended; only the last slab may leave it unset.
type PayoutSlab struct {
	GatewayID uuid.UUID `json:"gateway_id"`
	MinAmount int64     `json:"min_amount"`
	MaxAmount *int64    `json:"max_amount,omitempty"`
	Fee       int64     `json:"fee"`
}

// Contains reports whether amount falls inside the slab. An amount equal to
// MaxAmount belongs to this slab, not the next.
func (s PayoutSlab) Contains(amount int64) bool {
	if amount < s.MinAmount {
		return false
	}
	return s.MaxAmount == nil || amount <= *s.MaxAmount
}

// Channel is a transaction sub-type under a gateway.
type Channel struct {
	ID        uuid.UUID        `json:"id"`
	GatewayID uuid.UUID        `json:"gateway_id"`
	Name      string           `json:"name"`
	Direction domain.Direction `json:"direction"`
	BaseCost  decimal.Decimal  `json:"base_cost"`
	CreatedAt time.Time        `json:"created_at"`
}

// RateSchema is a named rate plan applicable to a set of roles.
type RateSchema struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Roles     []domain.Role `json:"roles"`
	IsDefault bool          `json:"is_default"`
	CreatedAt time.Time     `json:"created_at"`
}

// AppliesTo reports whether the schema covers the given role.
func (s RateSchema) AppliesTo(role domain.Role) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SchemaChannelRate is the payin rate a schema charges on one channel.
type SchemaChannelRate struct {
	SchemaID  uuid.UUID       `json:"schema_id"`
	ChannelID uuid.UUID       `json:"channel_id"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UserChannelRate overrides the schema rate for one user on one channel.
type UserChannelRate struct {
	UserID    uuid.UUID       `json:"user_id"`
	ChannelID uuid.UUID       `json:"channel_id"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Wallet holds one user's spendable and reserved funds, in paise.
type Wallet struct {
	UserID      uuid.UUID `json:"user_id"`
	Balance     int64     `json:"balance"`
	HoldBalance int64     `json:"hold_balance"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Total is the sum of spendable and held funds. Ledger entry balance
// snapshots track this value: hold moves are sum-preserving and therefore
// never break the running-balance chain.
func (w Wallet) Total() int64 {
	return w.Balance + w.HoldBalance
}

// LedgerEntry is one immutable record of a wallet funds change. Exactly one
// of Debit and Credit is nonzero; Balance is the wallet's total funds after
// the entry was applied.
type LedgerEntry struct {
	ID          uuid.UUID        `json:"id"`
	WalletID    uuid.UUID        `json:"wallet_id"`
	Seq         int64            `json:"seq"`
	Type        domain.EntryType `json:"type"`
	Debit       int64            `json:"debit"`
	Credit      int64            `json:"credit"`
	Balance     int64            `json:"balance"`
	Description string           `json:"description"`
	ReferenceID string           `json:"reference_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Delta is the signed funds change the entry applied.
func (e LedgerEntry) Delta() int64 {
	return e.Credit - e.Debit
}

// PayoutRequest tracks an external payout through its lifecycle. The held
// amount is Amount+Fee until the gateway confirms or rejects it.
type PayoutRequest struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	GatewayID   uuid.UUID `json:"gateway_id"`
	Amount      int64     `json:"amount"`
	Fee         int64     `json:"fee"`
	Status      string    `json:"status"`
	GatewayRef  *string   `json:"gateway_ref,omitempty"`
	ReferenceID string    `json:"reference_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CommissionSplit is one intermediary's earned spread on a transaction.
type CommissionSplit struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   domain.Role     `json:"role"`
	Rate   decimal.Decimal `json:"rate"`
	Amount int64           `json:"amount"`
}
