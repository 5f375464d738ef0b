package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
	"github.com/nileshk07/paygrid/internal/observability"
)

// LedgerService owns wallet balances and the append-only ledger. Every
// mutation runs under the wallet's lock and commits the balance change
// together with its entries; re-posting a previously seen reference id
// returns the original entries instead of double-applying.
type LedgerService struct {
	store WalletStore
}

func NewLedgerService(store WalletStore) *LedgerService {
	return &LedgerService{store: store}
}

// Posting is one wallet-level leg of a multi-wallet atomic post.
type Posting struct {
	UserID      uuid.UUID
	Type        domain.EntryType
	Amount      int64
	Description string
}

// Credit adds funds to a wallet and appends a CREDIT entry.
func (s *LedgerService) Credit(ctx context.Context, userID uuid.UUID, amount int64, description, refID string) (*models.LedgerEntry, error) {
	entries, err := s.post(ctx, refID, []Posting{
		{UserID: userID, Type: domain.EntryCredit, Amount: amount, Description: description},
	})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// Debit removes spendable funds and appends a DEBIT entry. It never drives
// the balance negative; callers must branch on ErrInsufficientFunds.
func (s *LedgerService) Debit(ctx context.Context, userID uuid.UUID, amount int64, description, refID string) (*models.LedgerEntry, error) {
	entries, err := s.post(ctx, refID, []Posting{
		{UserID: userID, Type: domain.EntryDebit, Amount: amount, Description: description},
	})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// Refund returns previously debited funds and appends a REFUND entry.
func (s *LedgerService) Refund(ctx context.Context, userID uuid.UUID, amount int64, description, refID string) (*models.LedgerEntry, error) {
	entries, err := s.post(ctx, refID, []Posting{
		{UserID: userID, Type: domain.EntryRefund, Amount: amount, Description: description},
	})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// Transfer atomically moves funds between two wallets. Both entries become
// visible together or not at all.
func (s *LedgerService) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount int64, description, refID string) (*models.LedgerEntry, *models.LedgerEntry, error) {
	if fromUserID == toUserID {
		return nil, nil, models.ErrSameAccount
	}
	entries, err := s.post(ctx, refID, []Posting{
		{UserID: fromUserID, Type: domain.EntryTransferOut, Amount: amount, Description: description},
		{UserID: toUserID, Type: domain.EntryTransferIn, Amount: amount, Description: description},
	})
	if err != nil {
		return nil, nil, err
	}
	return &entries[0], &entries[1], nil
}

// Post applies an arbitrary set of postings atomically under the locks of
// every wallet involved. Used by settlement to credit the owner and the
// commission chain in one unit.
func (s *LedgerService) Post(ctx context.Context, refID string, postings []Posting) ([]models.LedgerEntry, error) {
	return s.post(ctx, refID, postings)
}

func (s *LedgerService) post(ctx context.Context, refID string, postings []Posting) ([]models.LedgerEntry, error) {
	if refID == "" {
		return nil, errors.New("reference id is required")
	}
	if len(postings) == 0 {
		return nil, errors.New("no postings")
	}
	walletIDs := make([]uuid.UUID, 0, len(postings))
	for _, p := range postings {
		if p.Amount <= 0 {
			return nil, fmt.Errorf("invalid amount: %d", p.Amount)
		}
		walletIDs = append(walletIDs, p.UserID)
	}

	start := time.Now()
	var out []models.LedgerEntry
	var replayed bool
	err := s.store.RunInWalletTx(ctx, walletIDs, func(tx WalletTx) error {
		existing, err := s.existingByReference(ctx, tx, refID, postings)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			replayed = true
			return nil
		}

		for _, p := range postings {
			entry, err := applyPosting(ctx, tx, p, refID)
			if err != nil {
				return err
			}
			out = append(out, *entry)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrInsufficientFunds) {
			observability.IncrementInsufficientFunds()
		}
		return nil, err
	}

	observability.ObservePosting(time.Since(start))
	if replayed {
		observability.IncrementIdempotentReplay()
		zap.L().Info("idempotent replay", zap.String("reference_id", refID))
	}
	return out, nil
}

// existingByReference detects a replayed reference. The reference marks the
// whole posting set, so seeing it on any involved wallet means a set already
// committed under it; the stored entries must then match the current postings
// one to one, or the reference is being reused for something else.
func (s *LedgerService) existingByReference(ctx context.Context, tx WalletTx, refID string, postings []Posting) ([]models.LedgerEntry, error) {
	seen := false
	used := make(map[uuid.UUID]bool)
	out := make([]models.LedgerEntry, 0, len(postings))
	for _, p := range postings {
		entries, err := tx.EntriesByReference(ctx, p.UserID, refID)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			seen = true
		}
		for _, e := range entries {
			if e.Type == p.Type && e.Delta() == deltaFor(p) && !used[e.ID] {
				used[e.ID] = true
				out = append(out, e)
				break
			}
		}
	}
	if !seen {
		return nil, nil
	}
	if len(out) != len(postings) {
		return nil, fmt.Errorf("%w: %s", models.ErrReferenceConflict, refID)
	}
	return out, nil
}

func deltaFor(p Posting) int64 {
	if p.Type.Credits() {
		return p.Amount
	}
	return -p.Amount
}

func applyPosting(ctx context.Context, tx WalletTx, p Posting, refID string) (*models.LedgerEntry, error) {
	wallet, err := tx.Wallet(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		WalletID:    p.UserID,
		Type:        p.Type,
		Description: p.Description,
		ReferenceID: refID,
	}
	if p.Type.Credits() {
		wallet.Balance += p.Amount
		entry.Credit = p.Amount
	} else {
		if p.Amount > wallet.Balance {
			return nil, models.ErrInsufficientFunds
		}
		wallet.Balance -= p.Amount
		entry.Debit = p.Amount
	}
	entry.Balance = wallet.Total()

	if err := tx.SaveWallet(ctx, wallet); err != nil {
		return nil, err
	}
	if err := tx.AppendEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Hold reserves spendable funds against pending settlement. Hold moves are
// sum-preserving: the wallet total is unchanged, so no ledger entry is
// appended and the running-balance chain stays exact.
func (s *LedgerService) Hold(ctx context.Context, userID uuid.UUID, amount int64) error {
	return s.moveHold(ctx, userID, amount, false)
}

// Release returns held funds to the spendable balance.
func (s *LedgerService) Release(ctx context.Context, userID uuid.UUID, amount int64) error {
	return s.moveHold(ctx, userID, amount, true)
}

func (s *LedgerService) moveHold(ctx context.Context, userID uuid.UUID, amount int64, release bool) error {
	if amount <= 0 {
		return fmt.Errorf("invalid amount: %d", amount)
	}
	return s.store.RunInWalletTx(ctx, []uuid.UUID{userID}, func(tx WalletTx) error {
		wallet, err := tx.Wallet(ctx, userID)
		if err != nil {
			return err
		}
		if release {
			if amount > wallet.HoldBalance {
				return models.ErrInsufficientHold
			}
			wallet.HoldBalance -= amount
			wallet.Balance += amount
		} else {
			if amount > wallet.Balance {
				return models.ErrInsufficientFunds
			}
			wallet.Balance -= amount
			wallet.HoldBalance += amount
		}
		return tx.SaveWallet(ctx, wallet)
	})
}

// CaptureHold settles held funds out of the wallet: the hold is returned to
// the spendable balance and immediately debited with its ledger entries, all
// under one lock. fee may be zero.
func (s *LedgerService) CaptureHold(ctx context.Context, userID uuid.UUID, amount, fee int64, description, refID string) ([]models.LedgerEntry, error) {
	if refID == "" {
		return nil, errors.New("reference id is required")
	}
	if amount <= 0 || fee < 0 {
		return nil, fmt.Errorf("invalid amounts: amount=%d fee=%d", amount, fee)
	}

	var out []models.LedgerEntry
	err := s.store.RunInWalletTx(ctx, []uuid.UUID{userID}, func(tx WalletTx) error {
		existing, err := tx.EntriesByReference(ctx, userID, refID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			feeEntries, err := tx.EntriesByReference(ctx, userID, refID+":fee")
			if err != nil {
				return err
			}
			out = append(existing, feeEntries...)
			return nil
		}

		wallet, err := tx.Wallet(ctx, userID)
		if err != nil {
			return err
		}
		total := amount + fee
		if total > wallet.HoldBalance {
			return models.ErrInsufficientHold
		}
		wallet.HoldBalance -= total

		entries := []*models.LedgerEntry{{
			ID:          uuid.New(),
			WalletID:    userID,
			Type:        domain.EntryDebit,
			Debit:       amount,
			Description: description,
			ReferenceID: refID,
		}}
		if fee > 0 {
			entries = append(entries, &models.LedgerEntry{
				ID:          uuid.New(),
				WalletID:    userID,
				Type:        domain.EntryDebit,
				Debit:       fee,
				Description: description + " fee",
				ReferenceID: refID + ":fee",
			})
		}

		balance := wallet.Total() + total
		for _, e := range entries {
			balance -= e.Debit
			e.Balance = balance
		}

		if err := tx.SaveWallet(ctx, wallet); err != nil {
			return err
		}
		for _, e := range entries {
			if err := tx.AppendEntry(ctx, e); err != nil {
				return err
			}
			out = append(out, *e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Wallet returns the current balances for a user.
func (s *LedgerService) Wallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return s.store.Wallet(ctx, userID)
}

// OpenWallet creates the wallet alongside the user at onboarding.
func (s *LedgerService) OpenWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet := &models.Wallet{UserID: userID}
	if err := s.store.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}
	return s.store.Wallet(ctx, userID)
}
