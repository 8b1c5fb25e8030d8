// Package store runs engine operations as atomic units over the wallet,
// transaction, ledger and customer repositories.
package store

import (
	"context"

	"github.com/fuelnow/fuelnow/internal/customer"
	"github.com/fuelnow/fuelnow/internal/ledger"
	"github.com/fuelnow/fuelnow/internal/transaction"
	"github.com/fuelnow/fuelnow/internal/wallet"
)

// Repositories are bound to one unit of work.
type Repositories struct {
	Wallets      wallet.Repository
	Transactions transaction.Repository
	Ledger       ledger.Ledger
	Customers    customer.Repository
}

// UnitOfWork runs fn atomically. If fn returns an error nothing it wrote is
// kept.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
