package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by stores for missing catalog rows.
	ErrNotFound = errors.New("not found")

	// ErrWalletNotFound is returned when a wallet does not exist for a user.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInsufficientFunds is an expected business outcome, not an exception.
	// Callers must branch on it for every debit, transfer and hold.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientHold is returned when a release or capture exceeds the
	// wallet's held funds.
	ErrInsufficientHold = errors.New("insufficient hold balance")

	// ErrSameAccount rejects transfers where source and destination match.
	ErrSameAccount = errors.New("cannot transfer to the same account")

	// ErrNoRateConfigured signals a catalog integrity failure: not even the
	// channel base cost is configured. Never defaulted over.
	ErrNoRateConfigured = errors.New("no rate configured")

	// ErrNoSlabMatch signals a non-exhaustive payout slab table.
	ErrNoSlabMatch = errors.New("no payout slab covers amount")

	// ErrDuplicatePayout is returned when a payout reference was already used
	// with a different payload.
	ErrDuplicatePayout = errors.New("payout reference already used")

	// ErrReferenceConflict is returned when a ledger reference id is reused
	// with a posting set that does not match the entries it originally wrote.
	ErrReferenceConflict = errors.New("reference id already used for a different posting")
)

// RateBelowFloorError rejects a rate write below the next rate down the
// override → schema → base chain. Floor carries the computed minimum so the
// caller can present it to the operator.
type RateBelowFloorError struct {
	Candidate decimal.Decimal
	Floor     decimal.Decimal
}

func (e *RateBelowFloorError) Error() string {
	return fmt.Sprintf("rate %s is below the floor %s", e.Candidate, e.Floor)
}

// NegativeSpreadError indicates the rate floor constraint was bypassed at
// write time. It must propagate: settling the transaction anyway would
// misprice it.
type NegativeSpreadError struct {
	ChildID    uuid.UUID
	ParentID   uuid.UUID
	ChildRate  decimal.Decimal
	ParentRate decimal.Decimal
}

func (e *NegativeSpreadError) Error() string {
	return fmt.Sprintf("negative commission spread: child %s rate %s below parent %s rate %s",
		e.ChildID, e.ChildRate, e.ParentID, e.ParentRate)
}

// HierarchyError reports a corrupted parent chain (cycle or excessive depth).
type HierarchyError struct {
	UserID uuid.UUID
	Reason string
}

func (e *HierarchyError) Error() string {
	return fmt.Sprintf("invalid user hierarchy at %s: %s", e.UserID, e.Reason)
}
