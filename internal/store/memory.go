package store

import (
	"context"
	"sync"

	"github.com/fuelnow/fuelnow/internal/customer"
	"github.com/fuelnow/fuelnow/internal/ledger"
	"github.com/fuelnow/fuelnow/internal/transaction"
	"github.com/fuelnow/fuelnow/internal/wallet"
)

// Memory serializes units of work behind one mutex and restores every
// repository from a snapshot when fn fails.
type Memory struct {
	mu           sync.Mutex
	Wallets      *wallet.MemoryRepository
	Transactions *transaction.MemoryRepository
	Ledger       *ledger.MemoryLedger
	Customers    *customer.MemoryRepository
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	wallets := wallet.NewMemoryRepository()
	return &Memory{
		Wallets:      wallets,
		Transactions: transaction.NewMemoryRepository(),
		Ledger:       ledger.NewInMemory(),
		Customers: customer.NewMemoryRepository(func(ctx context.Context, customerID string) (string, error) {
			w, err := wallets.GetByCustomer(ctx, customerID)
			if err != nil {
				return "", err
			}
			return w.ID, nil
		}),
	}
}

// Do runs fn with exclusive access to all repositories.
func (m *Memory) Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	restores := []func(){
		m.Wallets.Snapshot(),
		m.Transactions.Snapshot(),
		m.Ledger.Snapshot(),
		m.Customers.Snapshot(),
	}
	if err := fn(ctx, m.repositories()); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

func (m *Memory) repositories() Repositories {
	return Repositories{
		Wallets:      m.Wallets,
		Transactions: m.Transactions,
		Ledger:       m.Ledger,
		Customers:    m.Customers,
	}
}
