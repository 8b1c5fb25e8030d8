package customer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fuelnow/fuelnow/internal/infra"
)

// Repository stores customers and cards and resolves lookups to wallets.
type Repository interface {
	Create(ctx context.Context, c Customer) error
	CreateCard(ctx context.Context, card Card) error
	FindByPhone(ctx context.Context, phone string) (Customer, error)
	Get(ctx context.Context, id string) (Customer, error)
	ResolveByPhone(ctx context.Context, phone string) (Holder, error)
	ResolveByCardToken(ctx context.Context, token string) (Holder, error)
	CountActive(ctx context.Context) (int, error)
	// List returns customers newest first; limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]Customer, error)
	CardByWallet(ctx context.Context, walletID string) (Card, error)
}

const customerColumns = `id::text, name, phone, id_number, next_of_kin, status, created_at`

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a repository on a pool or an open transaction.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a customer; phone and id number are unique.
func (r *PostgresRepository) Create(ctx context.Context, c Customer) error {
	_, err := r.db.Exec(ctx, `INSERT INTO customers (id, name, phone, id_number, next_of_kin, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Phone, c.IDNumber, c.NextOfKin, c.Status, c.CreatedAt.UTC())
	if err != nil {
		if infra.IsUniqueViolation(err, "") {
			return ErrExists
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// CreateCard inserts a card.
func (r *PostgresRepository) CreateCard(ctx context.Context, card Card) error {
	_, err := r.db.Exec(ctx, `INSERT INTO cards (id, wallet_id, card_number, card_token, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		card.ID, card.WalletID, card.Number, card.Token, card.Status, card.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

// FindByPhone fetches a customer by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Customer, error) {
	return r.one(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone)
}

// Get fetches a customer by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Customer, error) {
	return r.one(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
}

// ResolveByPhone joins a customer to its wallet.
func (r *PostgresRepository) ResolveByPhone(ctx context.Context, phone string) (Holder, error) {
	return r.holder(ctx, `SELECT c.id::text, w.id::text, c.name, c.phone, ''
        FROM customers c JOIN wallets w ON w.customer_id = c.id
        WHERE c.phone = $1`, phone)
}

// ResolveByCardToken joins a card to its wallet and owner.
func (r *PostgresRepository) ResolveByCardToken(ctx context.Context, token string) (Holder, error) {
	return r.holder(ctx, `SELECT c.id::text, w.id::text, c.name, c.phone, k.status
        FROM cards k
        JOIN wallets w ON w.id = k.wallet_id
        JOIN customers c ON c.id = w.customer_id
        WHERE k.card_token = $1`, token)
}

// CountActive counts active customers.
func (r *PostgresRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE status = 'active'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return n, nil
}

// List returns customers newest first.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.IDNumber, &c.NextOfKin, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// CardByWallet returns the most recently issued card of a wallet.
func (r *PostgresRepository) CardByWallet(ctx context.Context, walletID string) (Card, error) {
	var card Card
	err := r.db.QueryRow(ctx, `SELECT id::text, wallet_id::text, card_number, card_token, status, created_at
        FROM cards WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT 1`, walletID).
		Scan(&card.ID, &card.WalletID, &card.Number, &card.Token, &card.Status, &card.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Card{}, ErrNotFound
	}
	return card, err
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (Customer, error) {
	var c Customer
	err := r.db.QueryRow(ctx, query, args...).Scan(&c.ID, &c.Name, &c.Phone, &c.IDNumber, &c.NextOfKin, &c.Status, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (r *PostgresRepository) holder(ctx context.Context, query string, args ...any) (Holder, error) {
	var h Holder
	err := r.db.QueryRow(ctx, query, args...).Scan(&h.CustomerID, &h.WalletID, &h.Name, &h.Phone, &h.CardStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return Holder{}, ErrNotFound
	}
	return h, err
}
