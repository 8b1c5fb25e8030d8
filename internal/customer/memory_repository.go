package customer

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// WalletLookup resolves a customer's wallet id. The memory repository uses it
// in place of a SQL join.
type WalletLookup func(ctx context.Context, customerID string) (string, error)

// MemoryRepository keeps customers and cards in maps.
type MemoryRepository struct {
	mu        sync.RWMutex
	customers map[string]Customer
	cards     map[string]Card
	walletOf  WalletLookup
}

// NewMemoryRepository builds a repository that resolves wallets through lookup.
func NewMemoryRepository(lookup WalletLookup) *MemoryRepository {
	return &MemoryRepository{
		customers: make(map[string]Customer),
		cards:     make(map[string]Card),
		walletOf:  lookup,
	}
}

func (r *MemoryRepository) Create(_ context.Context, c Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.customers {
		if existing.Phone == c.Phone || existing.IDNumber == c.IDNumber {
			return ErrExists
		}
	}
	r.customers[c.ID] = c
	return nil
}

func (r *MemoryRepository) CreateCard(_ context.Context, card Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.cards {
		if existing.Number == card.Number || existing.Token == card.Token {
			return errors.New("card exists")
		}
	}
	r.cards[card.ID] = card
	return nil
}

func (r *MemoryRepository) FindByPhone(_ context.Context, phone string) (Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.customers {
		if c.Phone == phone {
			return c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepository) ResolveByPhone(ctx context.Context, phone string) (Holder, error) {
	c, err := r.FindByPhone(ctx, phone)
	if err != nil {
		return Holder{}, err
	}
	walletID, err := r.walletOf(ctx, c.ID)
	if err != nil {
		return Holder{}, ErrNotFound
	}
	return Holder{CustomerID: c.ID, WalletID: walletID, Name: c.Name, Phone: c.Phone}, nil
}

func (r *MemoryRepository) ResolveByCardToken(ctx context.Context, token string) (Holder, error) {
	r.mu.RLock()
	var (
		card  Card
		found bool
	)
	for _, k := range r.cards {
		if k.Token == token {
			card, found = k, true
			break
		}
	}
	r.mu.RUnlock()
	if !found {
		return Holder{}, ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.customers {
		walletID, err := r.walletOf(ctx, c.ID)
		if err == nil && walletID == card.WalletID {
			return Holder{CustomerID: c.ID, WalletID: walletID, Name: c.Name, Phone: c.Phone, CardStatus: card.Status}, nil
		}
	}
	return Holder{}, ErrNotFound
}

func (r *MemoryRepository) CountActive(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.customers {
		if c.Status == StatusActive {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) List(_ context.Context, limit int) ([]Customer, error) {
	r.mu.RLock()
	out := make([]Customer, 0, len(r.customers))
	for _, c := range r.customers {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) CardByWallet(_ context.Context, walletID string) (Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		latest Card
		found  bool
	)
	for _, k := range r.cards {
		if k.WalletID == walletID && (!found || k.CreatedAt.After(latest.CreatedAt)) {
			latest, found = k, true
		}
	}
	if !found {
		return Card{}, ErrNotFound
	}
	return latest, nil
}

// Snapshot copies the current state and returns a function restoring it.
func (r *MemoryRepository) Snapshot() func() {
	r.mu.RLock()
	customers := make(map[string]Customer, len(r.customers))
	for k, v := range r.customers {
		customers[k] = v
	}
	cards := make(map[string]Card, len(r.cards))
	for k, v := range r.cards {
		cards[k] = v
	}
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.customers = customers
		r.cards = cards
		r.mu.Unlock()
	}
}
