package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/fuelnow/fuelnow/internal/infra"
)

// Repository persists wallets. Every mutating method is a single guarded
// statement, so the balance check and the write cannot be separated by a
// concurrent writer.
type Repository interface {
	Create(ctx context.Context, w Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByCustomer(ctx context.Context, customerID string) (Wallet, error)
	List(ctx context.Context) ([]Wallet, error)
	Reserve(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error)
	Release(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error)
	Debit(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error)
	Credit(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error)
	AdjustUsedCredit(ctx context.Context, id string, delta decimal.Decimal) (Wallet, error)
	SetStatus(ctx context.Context, id string, status Status) (Wallet, error)
}

const walletColumns = `id::text, customer_id::text, card_type, credit_limit, available_balance,
        reserved_balance, used_credit, status, created_at, updated_at`

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a repository on a pool or an open transaction.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	_, err := r.db.Exec(ctx, `INSERT INTO wallets (id, customer_id, card_type, credit_limit, available_balance,
        reserved_balance, used_credit, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		w.ID, w.CustomerID, string(w.CardType), w.CreditLimit, w.AvailableBalance,
		w.ReservedBalance, w.UsedCredit, string(w.Status), w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// Get fetches a wallet by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	return r.one(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
}

// GetByCustomer fetches the wallet owned by a customer.
func (r *PostgresRepository) GetByCustomer(ctx context.Context, customerID string) (Wallet, error) {
	return r.one(ctx, `SELECT `+walletColumns+` FROM wallets WHERE customer_id = $1`, customerID)
}

// List returns every wallet ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]Wallet, error) {
	rows, err := r.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var out []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Reserve places a hold. Prepaid wallets move the amount from available to
// reserved; credit wallets only grow reserved, bounded by the unused limit.
func (r *PostgresRepository) Reserve(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	if !amount.IsPositive() {
		return Wallet{}, ErrInvalidAmount
	}
	w, err := r.one(ctx, `UPDATE wallets SET
            available_balance = CASE WHEN card_type = 'prepaid' THEN available_balance - $2::numeric ELSE available_balance END,
            reserved_balance = reserved_balance + $2::numeric,
            updated_at = $3
        WHERE id = $1 AND status = 'active' AND (
            (card_type = 'prepaid' AND available_balance >= $2::numeric) OR
            (card_type = 'credit' AND credit_limit - used_credit - reserved_balance >= $2::numeric))
        RETURNING `+walletColumns, id, amount, time.Now().UTC())
	if errors.Is(err, ErrNotFound) {
		return Wallet{}, r.explain(ctx, id, reserveRejection)
	}
	return w, err
}

// Release drops a hold. For prepaid wallets the amount returns to available.
func (r *PostgresRepository) Release(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	if amount.IsNegative() {
		return Wallet{}, ErrInvalidAmount
	}
	w, err := r.one(ctx, `UPDATE wallets SET
            reserved_balance = reserved_balance - $2::numeric,
            available_balance = CASE WHEN card_type = 'prepaid' THEN available_balance + $2::numeric ELSE available_balance END,
            updated_at = $3
        WHERE id = $1 AND reserved_balance >= $2::numeric
        RETURNING `+walletColumns, id, amount, time.Now().UTC())
	if errors.Is(err, ErrNotFound) {
		return Wallet{}, r.explain(ctx, id, func(Wallet) error { return ErrHoldExceeded })
	}
	return w, err
}

// Debit settles a prepaid purchase out of available funds.
func (r *PostgresRepository) Debit(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	if amount.IsNegative() {
		return Wallet{}, ErrInvalidAmount
	}
	w, err := r.one(ctx, `UPDATE wallets SET available_balance = available_balance - $2::numeric, updated_at = $3
        WHERE id = $1 AND card_type = 'prepaid' AND available_balance >= $2::numeric
        RETURNING `+walletColumns, id, amount, time.Now().UTC())
	if errors.Is(err, ErrNotFound) {
		return Wallet{}, r.explain(ctx, id, func(w Wallet) error {
			if w.CardType != CardPrepaid {
				return ErrCardTypeMismatch
			}
			return ErrInsufficientFunds
		})
	}
	return w, err
}

// Credit adds funds to a prepaid wallet.
func (r *PostgresRepository) Credit(ctx context.Context, id string, amount decimal.Decimal) (Wallet, error) {
	if !amount.IsPositive() {
		return Wallet{}, ErrInvalidAmount
	}
	w, err := r.one(ctx, `UPDATE wallets SET available_balance = available_balance + $2::numeric, updated_at = $3
        WHERE id = $1 AND card_type = 'prepaid'
        RETURNING `+walletColumns, id, amount, time.Now().UTC())
	if errors.Is(err, ErrNotFound) {
		return Wallet{}, r.explain(ctx, id, func(Wallet) error { return ErrCardTypeMismatch })
	}
	return w, err
}

// AdjustUsedCredit moves used credit by delta, flooring at zero. A positive
// delta must fit under the limit together with outstanding holds.
func (r *PostgresRepository) AdjustUsedCredit(ctx context.Context, id string, delta decimal.Decimal) (Wallet, error) {
	w, err := r.one(ctx, `UPDATE wallets SET used_credit = GREATEST(used_credit + $2::numeric, 0), updated_at = $3
        WHERE id = $1 AND card_type = 'credit'
            AND ($2::numeric <= 0 OR used_credit + reserved_balance + $2::numeric <= credit_limit)
        RETURNING `+walletColumns, id, delta, time.Now().UTC())
	if errors.Is(err, ErrNotFound) {
		return Wallet{}, r.explain(ctx, id, func(w Wallet) error {
			if w.CardType != CardCredit {
				return ErrCardTypeMismatch
			}
			return ErrCreditLimitExceeded
		})
	}
	return w, err
}

// SetStatus changes the wallet status.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status Status) (Wallet, error) {
	return r.one(ctx, `UPDATE wallets SET status = $2, updated_at = $3 WHERE id = $1
        RETURNING `+walletColumns, id, string(status), time.Now().UTC())
}

// explain re-reads a wallet after a guarded update matched no row.
func (r *PostgresRepository) explain(ctx context.Context, id string, reason func(Wallet) error) error {
	w, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return reason(w)
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (Wallet, error) {
	w, err := scanWallet(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrNotFound
	}
	return w, err
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w        Wallet
		cardType string
		status   string
	)
	if err := row.Scan(&w.ID, &w.CustomerID, &cardType, &w.CreditLimit, &w.AvailableBalance,
		&w.ReservedBalance, &w.UsedCredit, &status, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	w.CardType = CardType(cardType)
	w.Status = Status(status)
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}
