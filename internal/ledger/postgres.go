package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/fuelnow/fuelnow/internal/infra"
)

const entryColumns = `seq, id::text, COALESCE(transaction_id::text, ''), wallet_id::text, debit, credit, balance,
        description, created_at`

// PostgresLedger persists entries in the ledger table.
type PostgresLedger struct {
	db infra.DBTX
}

// NewPostgresLedger constructs a ledger on a pool or an open transaction.
func NewPostgresLedger(db infra.DBTX) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Append writes one entry and returns it with its sequence number.
func (l *PostgresLedger) Append(ctx context.Context, e Entry) (Entry, error) {
	if err := validate(e); err != nil {
		return Entry{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	var txID *string
	if e.TransactionID != "" {
		txID = &e.TransactionID
	}
	err := l.db.QueryRow(ctx, `INSERT INTO ledger (id, transaction_id, wallet_id, debit, credit, balance, description, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING seq`,
		e.ID, txID, e.WalletID, e.Debit, e.Credit, e.Balance, e.Description, e.CreatedAt.UTC()).Scan(&e.Seq)
	if err != nil {
		return Entry{}, fmt.Errorf("append ledger entry: %w", err)
	}
	return e, nil
}

// CurrentBalance returns the balance on the latest entry, or zero.
func (l *PostgresLedger) CurrentBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.db.QueryRow(ctx, `SELECT balance FROM ledger WHERE wallet_id = $1 ORDER BY seq DESC LIMIT 1`, walletID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger balance: %w", err)
	}
	return balance, nil
}

// History returns a wallet's entries newest first.
func (l *PostgresLedger) History(ctx context.Context, walletID string, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger WHERE wallet_id = $1 ORDER BY seq DESC`
	args := []any{walletID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.ID, &e.TransactionID, &e.WalletID, &e.Debit, &e.Credit, &e.Balance,
			&e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
