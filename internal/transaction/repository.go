package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fuelnow/fuelnow/internal/infra"
)

// Repository persists transactions.
type Repository interface {
	Create(ctx context.Context, tx Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)
	// GetByToken loads a reservation and locks it for the rest of the unit of work.
	GetByToken(ctx context.Context, token string) (Transaction, error)
	FindByIdempotencyKey(ctx context.Context, key string) (Transaction, error)
	// Complete moves a reserved transaction to completed; any other current
	// status yields ErrAlreadyProcessed.
	Complete(ctx context.Context, id string, c Completion) (Transaction, error)
	// Close moves a reserved transaction to failed or cancelled.
	Close(ctx context.Context, id string, status Status, reason string, at time.Time) (Transaction, error)
	ListByWallet(ctx context.Context, walletID string, limit int) ([]Transaction, error)
	ListStaleReservations(ctx context.Context, before time.Time, limit int) ([]Transaction, error)
	SummarizeByStation(ctx context.Context, from, to time.Time) ([]StationSummary, error)
	Activity(ctx context.Context, from, to time.Time) (ActivityStats, error)
}

const (
	idempotencyConstraint = "transactions_idempotency_key_key"
	txColumns             = `id::text, wallet_id::text, type, amount, interest_amount, total_amount, hold_amount,
        final_amount, station_id, attendant_id, status, reservation_token, idempotency_key, litres,
        meter_reading, failure_reason, created_at, completed_at`
)

// PostgresRepository stores transactions in PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a repository on a pool or an open transaction.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a transaction.
func (r *PostgresRepository) Create(ctx context.Context, t Transaction) error {
	_, err := r.db.Exec(ctx, `INSERT INTO transactions (id, wallet_id, type, amount, interest_amount, total_amount,
            hold_amount, final_amount, station_id, attendant_id, status, reservation_token, idempotency_key,
            litres, meter_reading, failure_reason, created_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		t.ID, t.WalletID, string(t.Type), t.Amount, t.InterestAmount, t.TotalAmount,
		t.HoldAmount, t.FinalAmount, t.StationID, t.AttendantID, string(t.Status), t.ReservationToken,
		nullable(t.IdempotencyKey), t.Litres, t.MeterReading, t.FailureReason, t.CreatedAt.UTC(), t.CompletedAt)
	if err != nil {
		if infra.IsUniqueViolation(err, idempotencyConstraint) {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Get fetches a transaction by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Transaction, error) {
	return r.one(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
}

// GetByToken fetches a transaction by reservation token with a row lock.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (Transaction, error) {
	return r.one(ctx, `SELECT `+txColumns+` FROM transactions WHERE reservation_token = $1 FOR UPDATE`, token)
}

// FindByIdempotencyKey fetches the transaction recorded under key.
func (r *PostgresRepository) FindByIdempotencyKey(ctx context.Context, key string) (Transaction, error) {
	return r.one(ctx, `SELECT `+txColumns+` FROM transactions WHERE idempotency_key = $1`, key)
}

// Complete finalizes a reservation.
func (r *PostgresRepository) Complete(ctx context.Context, id string, c Completion) (Transaction, error) {
	t, err := r.one(ctx, `UPDATE transactions SET status = 'completed', final_amount = $2, interest_amount = $3,
            total_amount = $4, litres = $5, meter_reading = $6, completed_at = $7
        WHERE id = $1 AND status = 'reserved'
        RETURNING `+txColumns,
		id, c.FinalAmount, c.InterestAmount, c.TotalAmount, c.Litres, c.MeterReading, c.CompletedAt.UTC())
	if errors.Is(err, ErrNotFound) {
		return Transaction{}, r.explain(ctx, id)
	}
	return t, err
}

// Close terminates a reservation without settling it.
func (r *PostgresRepository) Close(ctx context.Context, id string, status Status, reason string, at time.Time) (Transaction, error) {
	if !CanTransition(StatusReserved, status) || status == StatusCompleted {
		return Transaction{}, ErrInvalidTransition
	}
	t, err := r.one(ctx, `UPDATE transactions SET status = $2, failure_reason = $3, completed_at = $4
        WHERE id = $1 AND status = 'reserved'
        RETURNING `+txColumns, id, string(status), reason, at.UTC())
	if errors.Is(err, ErrNotFound) {
		return Transaction{}, r.explain(ctx, id)
	}
	return t, err
}

// ListByWallet returns the newest transactions for a wallet.
func (r *PostgresRepository) ListByWallet(ctx context.Context, walletID string, limit int) ([]Transaction, error) {
	return r.many(ctx, `SELECT `+txColumns+` FROM transactions WHERE wallet_id = $1
        ORDER BY created_at DESC, id LIMIT $2`, walletID, limit)
}

// ListStaleReservations returns reservations created before the cutoff, oldest first.
func (r *PostgresRepository) ListStaleReservations(ctx context.Context, before time.Time, limit int) ([]Transaction, error) {
	return r.many(ctx, `SELECT `+txColumns+` FROM transactions WHERE status = 'reserved' AND created_at < $1
        ORDER BY created_at LIMIT $2`, before.UTC(), limit)
}

// SummarizeByStation groups completed purchases in [from, to) by station.
func (r *PostgresRepository) SummarizeByStation(ctx context.Context, from, to time.Time) ([]StationSummary, error) {
	rows, err := r.db.Query(ctx, `SELECT station_id, COUNT(*), COALESCE(SUM(final_amount), 0),
            COALESCE(SUM(interest_amount), 0), COALESCE(SUM(litres), 0)
        FROM transactions
        WHERE type = 'fuel_purchase' AND status = 'completed' AND completed_at >= $1 AND completed_at < $2
        GROUP BY station_id
        ORDER BY station_id`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("summarize stations: %w", err)
	}
	defer rows.Close()

	var out []StationSummary
	for rows.Next() {
		var s StationSummary
		if err := rows.Scan(&s.StationID, &s.Count, &s.Amount, &s.Interest, &s.Litres); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Activity counts purchases created in [from, to), interest earned on those
// completed in the window, and reservations still open.
func (r *PostgresRepository) Activity(ctx context.Context, from, to time.Time) (ActivityStats, error) {
	var s ActivityStats
	err := r.db.QueryRow(ctx, `SELECT
            COUNT(*) FILTER (WHERE created_at >= $1 AND created_at < $2),
            COALESCE(SUM(interest_amount) FILTER (WHERE status = 'completed' AND completed_at >= $1 AND completed_at < $2), 0),
            COUNT(*) FILTER (WHERE status = 'reserved')
        FROM transactions WHERE type = 'fuel_purchase'`, from.UTC(), to.UTC()).Scan(&s.Transactions, &s.Interest, &s.OpenHolds)
	if err != nil {
		return ActivityStats{}, fmt.Errorf("transaction activity: %w", err)
	}
	return s, nil
}

// explain distinguishes a missing row from one no longer in reserved.
func (r *PostgresRepository) explain(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyProcessed
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	return t, err
}

func (r *PostgresRepository) many(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t              Transaction
		txType, status string
		idemKey        *string
	)
	if err := row.Scan(&t.ID, &t.WalletID, &txType, &t.Amount, &t.InterestAmount, &t.TotalAmount, &t.HoldAmount,
		&t.FinalAmount, &t.StationID, &t.AttendantID, &status, &t.ReservationToken, &idemKey, &t.Litres,
		&t.MeterReading, &t.FailureReason, &t.CreatedAt, &t.CompletedAt); err != nil {
		return Transaction{}, err
	}
	t.Type = Type(txType)
	t.Status = Status(status)
	if idemKey != nil {
		t.IdempotencyKey = *idemKey
	}
	t.CreatedAt = t.CreatedAt.UTC()
	if t.CompletedAt != nil {
		at := t.CompletedAt.UTC()
		t.CompletedAt = &at
	}
	return t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
