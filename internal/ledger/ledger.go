package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidEntry is returned for negative or empty postings.
	ErrInvalidEntry = errors.New("invalid ledger entry")
)

// Entry is one append-only line of a wallet's history. Balance is the
// wallet's computed balance immediately after the event.
type Entry struct {
	ID            string
	Seq           int64
	TransactionID string
	WalletID      string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Balance       decimal.Decimal
	Description   string
	CreatedAt     time.Time
}

// Ledger appends and reads wallet history. There is no update or delete.
type Ledger interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	CurrentBalance(ctx context.Context, walletID string) (decimal.Decimal, error)
	// History returns entries newest first; limit <= 0 returns all.
	History(ctx context.Context, walletID string, limit int) ([]Entry, error)
}

func validate(e Entry) error {
	if e.WalletID == "" || e.Debit.IsNegative() || e.Credit.IsNegative() {
		return ErrInvalidEntry
	}
	return nil
}
