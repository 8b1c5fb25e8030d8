package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fuelnow/fuelnow/internal/infra"
)

// Repository persists attendants.
type Repository interface {
	Create(ctx context.Context, a Attendant) error
	FindByEmail(ctx context.Context, email string) (Attendant, error)
	FindByID(ctx context.Context, id string) (Attendant, error)
	BumpTokenVersion(ctx context.Context, id string) (int, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

const attendantColumns = `id::text, name, email, password_hash, station_id, role, token_version, created_at, last_login`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a Postgres-backed attendant repository.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new attendant.
func (r *PostgresRepository) Create(ctx context.Context, a Attendant) error {
	_, err := r.db.Exec(ctx, `INSERT INTO attendants (id, name, email, password_hash, station_id, role, token_version, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.StationID, a.Role, a.TokenVersion, a.CreatedAt.UTC())
	if err != nil {
		if infra.IsUniqueViolation(err, "attendants_email_key") {
			return ErrExists
		}
		return fmt.Errorf("insert attendant: %w", err)
	}
	return nil
}

// FindByEmail fetches an attendant by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Attendant, error) {
	return r.one(ctx, `SELECT `+attendantColumns+` FROM attendants WHERE email = $1`, email)
}

// FindByID fetches an attendant by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Attendant, error) {
	return r.one(ctx, `SELECT `+attendantColumns+` FROM attendants WHERE id = $1`, id)
}

// BumpTokenVersion invalidates every token issued so far.
func (r *PostgresRepository) BumpTokenVersion(ctx context.Context, id string) (int, error) {
	var v int
	err := r.db.QueryRow(ctx, `UPDATE attendants SET token_version = token_version + 1 WHERE id = $1 RETURNING token_version`, id).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return v, err
}

// TouchLastLogin records a successful login.
func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE attendants SET last_login = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (Attendant, error) {
	var a Attendant
	err := r.db.QueryRow(ctx, query, args...).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.StationID,
		&a.Role, &a.TokenVersion, &a.CreatedAt, &a.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return Attendant{}, ErrNotFound
	}
	if err != nil {
		return Attendant{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
