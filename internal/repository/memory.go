package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nileshk07/paygrid/internal/domain"
	"github.com/nileshk07/paygrid/internal/models"
	"github.com/nileshk07/paygrid/internal/service"
)

// MemoryStore is the in-process storage driver. It implements the same
// contracts as the Postgres driver: per-wallet mutexes acquired in user-id
// order stand in for row locks, and wallet mutations stay invisible to
// readers until the enclosing unit commits.
type MemoryStore struct {
	mu          sync.RWMutex
	gateways    map[uuid.UUID]*models.Gateway
	channels    map[uuid.UUID]*models.Channel
	users       map[uuid.UUID]*models.User
	schemas     map[uuid.UUID]*models.RateSchema
	schemaRates map[rateKey]models.SchemaChannelRate
	userRates   map[rateKey]models.UserChannelRate
	slabs       map[uuid.UUID][]models.PayoutSlab
	wallets     map[uuid.UUID]*memWallet

	payoutMu     sync.Mutex
	payouts      map[uuid.UUID]*models.PayoutRequest
	payoutsByRef map[string]uuid.UUID
}

type rateKey struct {
	owner   uuid.UUID // schema or user
	channel uuid.UUID
}

type memWallet struct {
	mu      sync.Mutex
	wallet  models.Wallet
	entries []models.LedgerEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		gateways:     make(map[uuid.UUID]*models.Gateway),
		channels:     make(map[uuid.UUID]*models.Channel),
		users:        make(map[uuid.UUID]*models.User),
		schemas:      make(map[uuid.UUID]*models.RateSchema),
		schemaRates:  make(map[rateKey]models.SchemaChannelRate),
		userRates:    make(map[rateKey]models.UserChannelRate),
		slabs:        make(map[uuid.UUID][]models.PayoutSlab),
		wallets:      make(map[uuid.UUID]*memWallet),
		payouts:      make(map[uuid.UUID]*models.PayoutRequest),
		payoutsByRef: make(map[string]uuid.UUID),
	}
}

// --- catalog writes (admin/seed side) ---

func (s *MemoryStore) CreateGateway(_ context.Context, g *models.Gateway) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	cp := *g
	s.gateways[g.ID] = &cp
	return nil
}

func (s *MemoryStore) CreateChannel(_ context.Context, c *models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	cp := *c
	s.channels[c.ID] = &cp
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) CreateSchema(_ context.Context, sc *models.RateSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now()
	}
	cp := *sc
	cp.Roles = append([]domain.Role(nil), sc.Roles...)
	s.schemas[sc.ID] = &cp
	return nil
}

// --- service.RateStore ---

func (s *MemoryStore) Gateway(_ context.Context, id uuid.UUID) (*models.Gateway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.gateways[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *MemoryStore) Channel(_ context.Context, id uuid.UUID) (*models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) User(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) Schema(_ context.Context, id uuid.UUID) (*models.RateSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schemas[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *sc
	return &cp, nil
}

func (s *MemoryStore) DefaultSchemaForRole(_ context.Context, role domain.Role) (*models.RateSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.schemas {
		if sc.IsDefault && sc.AppliesTo(role) {
			cp := *sc
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) SchemaChannelRate(_ context.Context, schemaID, channelID uuid.UUID) (*models.SchemaChannelRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.schemaRates[rateKey{schemaID, channelID}]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) UpsertSchemaChannelRate(_ context.Context, rate *models.SchemaChannelRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rate.UpdatedAt = time.Now()
	s.schemaRates[rateKey{rate.SchemaID, rate.ChannelID}] = *rate
	return nil
}

func (s *MemoryStore) UserChannelRate(_ context.Context, userID, channelID uuid.UUID) (*models.UserChannelRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.userRates[rateKey{userID, channelID}]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) UpsertUserChannelRate(_ context.Context, rate *models.UserChannelRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rate.UpdatedAt = time.Now()
	s.userRates[rateKey{rate.UserID, rate.ChannelID}] = *rate
	return nil
}

func (s *MemoryStore) PayoutSlabs(_ context.Context, gatewayID uuid.UUID) ([]models.PayoutSlab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slabs := append([]models.PayoutSlab(nil), s.slabs[gatewayID]...)
	sort.Slice(slabs, func(i, j int) bool { return slabs[i].MinAmount < slabs[j].MinAmount })
	return slabs, nil
}

func (s *MemoryStore) ReplacePayoutSlabs(_ context.Context, gatewayID uuid.UUID, slabs []models.PayoutSlab) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slabs[gatewayID] = append([]models.PayoutSlab(nil), slabs...)
	return nil
}

// --- service.WalletStore ---

func (s *MemoryStore) CreateWallet(_ context.Context, wallet *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[wallet.UserID]; ok {
		return nil
	}
	wallet.UpdatedAt = time.Now()
	s.wallets[wallet.UserID] = &memWallet{wallet: *wallet}
	return nil
}

func (s *MemoryStore) Wallet(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	s.mu.RLock()
	mw, ok := s.wallets[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrWalletNotFound
	}
	mw.mu.Lock()
	defer mw.mu.Unlock()
	cp := mw.wallet
	return &cp, nil
}

func (s *MemoryStore) WalletIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.wallets))
	for id := range s.wallets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// RunInWalletTx locks the named wallets in user-id order, runs fn against a
// staged view, and publishes the staged state only when fn succeeds.
func (s *MemoryStore) RunInWalletTx(ctx context.Context, walletIDs []uuid.UUID, fn func(tx service.WalletTx) error) error {
	ids := dedupeSorted(walletIDs)

	s.mu.RLock()
	locked := make([]*memWallet, 0, len(ids))
	for _, id := range ids {
		mw, ok := s.wallets[id]
		if !ok {
			s.mu.RUnlock()
			return models.ErrWalletNotFound
		}
		locked = append(locked, mw)
	}
	s.mu.RUnlock()

	for _, mw := range locked {
		mw.mu.Lock()
	}
	defer func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].mu.Unlock()
		}
	}()

	tx := &memTx{
		store:   s,
		held:    make(map[uuid.UUID]*memWallet, len(ids)),
		staged:  make(map[uuid.UUID]*models.Wallet),
		pending: make(map[uuid.UUID][]models.LedgerEntry),
	}
	for i, id := range ids {
		tx.held[id] = locked[i]
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Commit: the locks are still held, so readers see either none or all
	// of the staged state.
	now := time.Now()
	for id, w := range tx.staged {
		mw := tx.held[id]
		w.UpdatedAt = now
		mw.wallet = *w
	}
	for id, entries := range tx.pending {
		mw := tx.held[id]
		mw.entries = append(mw.entries, entries...)
	}
	return nil
}

type memTx struct {
	store   *MemoryStore
	held    map[uuid.UUID]*memWallet
	staged  map[uuid.UUID]*models.Wallet
	pending map[uuid.UUID][]models.LedgerEntry
}

func (t *memTx) Wallet(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if w, ok := t.staged[userID]; ok {
		cp := *w
		return &cp, nil
	}
	mw, ok := t.held[userID]
	if !ok {
		return nil, models.ErrWalletNotFound
	}
	cp := mw.wallet
	return &cp, nil
}

func (t *memTx) SaveWallet(_ context.Context, wallet *models.Wallet) error {
	if _, ok := t.held[wallet.UserID]; !ok {
		return models.ErrWalletNotFound
	}
	cp := *wallet
	t.staged[wallet.UserID] = &cp
	return nil
}

func (t *memTx) AppendEntry(_ context.Context, entry *models.LedgerEntry) error {
	mw, ok := t.held[entry.WalletID]
	if !ok {
		return models.ErrWalletNotFound
	}
	entry.Seq = int64(len(mw.entries)+len(t.pending[entry.WalletID])) + 1
	entry.CreatedAt = time.Now()
	t.pending[entry.WalletID] = append(t.pending[entry.WalletID], *entry)
	return nil
}

func (t *memTx) EntriesByReference(_ context.Context, walletID uuid.UUID, refID string) ([]models.LedgerEntry, error) {
	mw, ok := t.held[walletID]
	if !ok {
		return nil, models.ErrWalletNotFound
	}
	var out []models.LedgerEntry
	for _, e := range mw.entries {
		if e.ReferenceID == refID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Entries serves read-side ledger queries. Snapshot consistency comes from
// copying each wallet's log under its own lock: a committed unit is fully
// visible or not at all.
func (s *MemoryStore) Entries(_ context.Context, filter service.LedgerFilter) ([]models.LedgerEntry, int64, error) {
	s.mu.RLock()
	targets := make([]*memWallet, 0, len(s.wallets))
	if filter.WalletID != nil {
		if mw, ok := s.wallets[*filter.WalletID]; ok {
			targets = append(targets, mw)
		}
	} else {
		for _, mw := range s.wallets {
			targets = append(targets, mw)
		}
	}
	s.mu.RUnlock()

	var matched []models.LedgerEntry
	for _, mw := range targets {
		mw.mu.Lock()
		for _, e := range mw.entries {
			if entryMatches(e, filter) {
				matched = append(matched, e)
			}
		}
		mw.mu.Unlock()
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if matched[i].WalletID != matched[j].WalletID {
			return matched[i].WalletID.String() < matched[j].WalletID.String()
		}
		return matched[i].Seq < matched[j].Seq
	})

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func entryMatches(e models.LedgerEntry, f service.LedgerFilter) bool {
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	if f.From != nil && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// --- service.PayoutStore ---

func (s *MemoryStore) CreatePayout(_ context.Context, p *models.PayoutRequest) error {
	s.payoutMu.Lock()
	defer s.payoutMu.Unlock()
	if _, ok := s.payoutsByRef[p.ReferenceID]; ok {
		return models.ErrDuplicatePayout
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	s.payouts[p.ID] = &cp
	s.payoutsByRef[p.ReferenceID] = p.ID
	return nil
}

func (s *MemoryStore) Payout(_ context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	s.payoutMu.Lock()
	defer s.payoutMu.Unlock()
	p, ok := s.payouts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) PayoutByReference(_ context.Context, refID string) (*models.PayoutRequest, error) {
	s.payoutMu.Lock()
	defer s.payoutMu.Unlock()
	id, ok := s.payoutsByRef[refID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s.payouts[id]
	return &cp, nil
}

func (s *MemoryStore) ClaimPendingPayouts(_ context.Context, limit int32) ([]models.PayoutRequest, error) {
	s.payoutMu.Lock()
	defer s.payoutMu.Unlock()
	var pending []*models.PayoutRequest
	for _, p := range s.payouts {
		if p.Status == domain.PayoutStatusPending {
			pending = append(pending, p)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if int32(len(pending)) > limit {
		pending = pending[:limit]
	}
	out := make([]models.PayoutRequest, 0, len(pending))
	for _, p := range pending {
		p.Status = domain.PayoutStatusProcessing
		p.UpdatedAt = time.Now()
		out = append(out, *p)
	}
	return out, nil
}

func (s *MemoryStore) UpdatePayout(_ context.Context, p *models.PayoutRequest) error {
	s.payoutMu.Lock()
	defer s.payoutMu.Unlock()
	if _, ok := s.payouts[p.ID]; !ok {
		return models.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	cp := *p
	s.payouts[p.ID] = &cp
	return nil
}

func dedupeSorted(ids []uuid.UUID) []uuid.UUID {
	out := append([]uuid.UUID(nil), ids...)
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].String(), out[j].String()) < 0
	})
	n := 0
	for i, id := range out {
		if i == 0 || out[n-1] != id {
			out[n] = id
			n++
		}
	}
	return out[:n]
}
