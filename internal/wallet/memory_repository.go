package wallet

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryRepository keeps wallets in a map. Each method applies its guard and
// update under one lock, matching the single-statement Postgres updates.
type MemoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests and local runs.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{storage: make(map[string]Wallet)}
}

func (r *MemoryRepository) Create(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[w.ID]; exists {
		return errors.New("wallet exists")
	}
	for _, existing := range r.storage {
		if existing.CustomerID == w.CustomerID {
			return errors.New("customer already has a wallet")
		}
	}
	r.storage[w.ID] = w
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (r *MemoryRepository) GetByCustomer(_ context.Context, customerID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.storage {
		if w.CustomerID == customerID {
			return w, nil
		}
	}
	return Wallet{}, ErrNotFound
}

func (r *MemoryRepository) List(_ context.Context) ([]Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Wallet, 0, len(r.storage))
	for _, w := range r.storage {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Reserve(_ context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	if !amount.IsPositive() {
		return Wallet{}, ErrInvalidAmount
	}
	return r.mutate(id, func(w *Wallet) error {
		if !w.Active() || w.Spendable().LessThan(amount) {
			return reserveRejection(*w)
		}
		if w.CardType == CardPrepaid {
			w.AvailableBalance = w.AvailableBalance.Sub(amount)
		}
		w.ReservedBalance = w.ReservedBalance.Add(amount)
		return nil
	})
}

func (r *MemoryRepository) Release(_ context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	if amount.IsNegative() {
		return Wallet{}, ErrInvalidAmount
	}
	return r.mutate(id, func(w *Wallet) error {
		if w.ReservedBalance.LessThan(amount) {
			return ErrHoldExceeded
		}
		w.ReservedBalance = w.ReservedBalance.Sub(amount)
		if w.CardType == CardPrepaid {
			w.AvailableBalance = w.AvailableBalance.Add(amount)
		}
		return nil
	})
}

func (r *MemoryRepository) Debit(_ context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	if amount.IsNegative() {
		return Wallet{}, ErrInvalidAmount
	}
	return r.mutate(id, func(w *Wallet) error {
		if w.CardType != CardPrepaid {
			return ErrCardTypeMismatch
		}
		if w.AvailableBalance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		w.AvailableBalance = w.AvailableBalance.Sub(amount)
		return nil
	})
}

func (r *MemoryRepository) Credit(_ context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	if !amount.IsPositive() {
		return Wallet{}, ErrInvalidAmount
	}
	return r.mutate(id, func(w *Wallet) error {
		if w.CardType != CardPrepaid {
			return ErrCardTypeMismatch
		}
		w.AvailableBalance = w.AvailableBalance.Add(amount)
		return nil
	})
}

func (r *MemoryRepository) AdjustUsedCredit(_ context.Context, id string, delta decimal.Decimal) (Wallet, error) {
	return r.mutate(id, func(w *Wallet) error {
		if w.CardType != CardCredit {
			return ErrCardTypeMismatch
		}
		next := w.UsedCredit.Add(delta)
		if delta.IsPositive() && next.Add(w.ReservedBalance).GreaterThan(w.CreditLimit) {
			return ErrCreditLimitExceeded
		}
		if next.IsNegative() {
			next = decimal.Zero
		}
		w.UsedCredit = next
		return nil
	})
}

func (r *MemoryRepository) SetStatus(_ context.Context, id string, status Status) (Wallet, error) {
	return r.mutate(id, func(w *Wallet) error {
		w.Status = status
		return nil
	})
}

// Snapshot copies the current state and returns a function restoring it.
func (r *MemoryRepository) Snapshot() func() {
	r.mu.RLock()
	saved := make(map[string]Wallet, len(r.storage))
	for k, v := range r.storage {
		saved[k] = v
	}
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.storage = saved
		r.mu.Unlock()
	}
}

func (r *MemoryRepository) mutate(id string, apply func(*Wallet) error) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	if err := apply(&w); err != nil {
		return Wallet{}, err
	}
	w.UpdatedAt = time.Now().UTC()
	r.storage[id] = w
	return w, nil
}
