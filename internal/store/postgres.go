package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fuelnow/fuelnow/internal/customer"
	"github.com/fuelnow/fuelnow/internal/ledger"
	"github.com/fuelnow/fuelnow/internal/transaction"
	"github.com/fuelnow/fuelnow/internal/wallet"
)

// Postgres runs each unit of work in one database transaction.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres builds a unit of work on a pool.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Do begins a transaction, binds fresh repositories to it and commits if fn succeeds.
func (p *Postgres) Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	repos := Repositories{
		Wallets:      wallet.NewPostgresRepository(tx),
		Transactions: transaction.NewPostgresRepository(tx),
		Ledger:       ledger.NewPostgresLedger(tx),
		Customers:    customer.NewPostgresRepository(tx),
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
