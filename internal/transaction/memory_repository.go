package transaction

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryRepository keeps transactions in a map for tests and local runs.
type MemoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Transaction
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{storage: make(map[string]Transaction)}
}

func (r *MemoryRepository) Create(_ context.Context, t Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[t.ID]; exists {
		return errors.New("transaction exists")
	}
	for _, existing := range r.storage {
		if existing.ReservationToken == t.ReservationToken {
			return errors.New("reservation token exists")
		}
		if t.IdempotencyKey != "" && existing.IdempotencyKey == t.IdempotencyKey {
			return ErrDuplicateIdempotencyKey
		}
	}
	r.storage[t.ID] = t
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.storage[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) GetByToken(_ context.Context, token string) (Transaction, error) {
	return r.find(func(t Transaction) bool { return t.ReservationToken == token })
}

func (r *MemoryRepository) FindByIdempotencyKey(_ context.Context, key string) (Transaction, error) {
	if key == "" {
		return Transaction{}, ErrNotFound
	}
	return r.find(func(t Transaction) bool { return t.IdempotencyKey == key })
}

func (r *MemoryRepository) Complete(_ context.Context, id string, c Completion) (Transaction, error) {
	return r.transition(id, StatusCompleted, func(t *Transaction) {
		t.FinalAmount = decimal.NewNullDecimal(c.FinalAmount)
		t.InterestAmount = c.InterestAmount
		t.TotalAmount = c.TotalAmount
		t.Litres = c.Litres
		t.MeterReading = c.MeterReading
		at := c.CompletedAt.UTC()
		t.CompletedAt = &at
	})
}

func (r *MemoryRepository) Close(_ context.Context, id string, status Status, reason string, at time.Time) (Transaction, error) {
	if !CanTransition(StatusReserved, status) || status == StatusCompleted {
		return Transaction{}, ErrInvalidTransition
	}
	return r.transition(id, status, func(t *Transaction) {
		t.FailureReason = reason
		closed := at.UTC()
		t.CompletedAt = &closed
	})
}

func (r *MemoryRepository) ListByWallet(_ context.Context, walletID string, limit int) ([]Transaction, error) {
	out := r.filter(func(t Transaction) bool { return t.WalletID == walletID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (r *MemoryRepository) ListStaleReservations(_ context.Context, before time.Time, limit int) ([]Transaction, error) {
	out := r.filter(func(t Transaction) bool {
		return t.Status == StatusReserved && t.CreatedAt.Before(before)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (r *MemoryRepository) SummarizeByStation(_ context.Context, from, to time.Time) ([]StationSummary, error) {
	byStation := make(map[string]*StationSummary)
	for _, t := range r.filter(func(t Transaction) bool { return completedPurchaseIn(t, from, to) }) {
		s, ok := byStation[t.StationID]
		if !ok {
			s = &StationSummary{StationID: t.StationID}
			byStation[t.StationID] = s
		}
		s.Count++
		s.Amount = s.Amount.Add(t.FinalAmount.Decimal)
		s.Interest = s.Interest.Add(t.InterestAmount)
		s.Litres = s.Litres.Add(t.Litres.Decimal)
	}

	out := make([]StationSummary, 0, len(byStation))
	for _, s := range byStation {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out, nil
}

func (r *MemoryRepository) Activity(_ context.Context, from, to time.Time) (ActivityStats, error) {
	var s ActivityStats
	for _, t := range r.filter(func(t Transaction) bool { return t.Type == TypeFuelPurchase }) {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			s.Transactions++
		}
		if completedPurchaseIn(t, from, to) {
			s.Interest = s.Interest.Add(t.InterestAmount)
		}
		if t.Status == StatusReserved {
			s.OpenHolds++
		}
	}
	return s, nil
}

// Snapshot copies the current state and returns a function restoring it.
func (r *MemoryRepository) Snapshot() func() {
	r.mu.RLock()
	saved := make(map[string]Transaction, len(r.storage))
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

func (r *MemoryRepository) transition(id string, to Status, apply func(*Transaction)) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.storage[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if t.Status != StatusReserved {
		return Transaction{}, ErrAlreadyProcessed
	}
	t.Status = to
	apply(&t)
	r.storage[id] = t
	return t, nil
}

func (r *MemoryRepository) find(match func(Transaction) bool) (Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.storage {
		if match(t) {
			return t, nil
		}
	}
	return Transaction{}, ErrNotFound
}

func (r *MemoryRepository) filter(match func(Transaction) bool) []Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Transaction
	for _, t := range r.storage {
		if match(t) {
			out = append(out, t)
		}
	}
	return out
}

func completedPurchaseIn(t Transaction, from, to time.Time) bool {
	return t.Type == TypeFuelPurchase && t.Status == StatusCompleted && t.CompletedAt != nil &&
		!t.CompletedAt.Before(from) && t.CompletedAt.Before(to)
}

func truncate(in []Transaction, limit int) []Transaction {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
