package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryLedger keeps per-wallet entry slices in append order.
type MemoryLedger struct {
	mu      sync.RWMutex
	seq     int64
	entries map[string][]Entry
}

// NewInMemory creates a concurrency-safe in-memory ledger.
func NewInMemory() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string][]Entry)}
}

func (l *MemoryLedger) Append(_ context.Context, e Entry) (Entry, error) {
	if err := validate(e); err != nil {
		return Entry{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	e.Seq = l.seq
	l.entries[e.WalletID] = append(l.entries[e.WalletID], e)
	return e, nil
}

func (l *MemoryLedger) CurrentBalance(_ context.Context, walletID string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	list := l.entries[walletID]
	if len(list) == 0 {
		return decimal.Zero, nil
	}
	return list[len(list)-1].Balance, nil
}

func (l *MemoryLedger) History(_ context.Context, walletID string, limit int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	list := l.entries[walletID]
	n := len(list)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(list) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// Snapshot copies the current state and returns a function restoring it.
func (l *MemoryLedger) Snapshot() func() {
	l.mu.RLock()
	seq := l.seq
	saved := make(map[string][]Entry, len(l.entries))
	for k, v := range l.entries {
		saved[k] = append([]Entry(nil), v...)
	}
	l.mu.RUnlock()
	return func() {
		l.mu.Lock()
		l.seq = seq
		l.entries = saved
		l.mu.Unlock()
	}
}
