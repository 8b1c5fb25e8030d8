package customer

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var (
	ErrNotFound = errors.New("customer not found")
	ErrExists   = errors.New("customer already exists")
)

// Customer is the identity record behind a wallet.
type Customer struct {
	ID        string
	Name      string
	Phone     string
	IDNumber  string
	NextOfKin string
	Status    string
	CreatedAt time.Time
}

// Card is a physical card bound to a wallet.
type Card struct {
	ID        string
	WalletID  string
	Number    string
	Token     string
	Status    string
	CreatedAt time.Time
}

// Holder is what a phone or card lookup resolves to.
type Holder struct {
	CustomerID string
	WalletID   string
	Name       string
	Phone      string
	// CardStatus is empty for phone lookups.
	CardStatus string
}

// NewCardNumber returns a printable card number with the FN prefix.
func NewCardNumber(now time.Time) string {
	return fmt.Sprintf("FN%s%s", strings.ToUpper(fmt.Sprintf("%x", now.UnixMilli())), randomSuffix(6))
}

// NewCardToken returns an opaque token for card-present lookups.
func NewCardToken() string {
	return "TKN" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func randomSuffix(n int) string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strings.ToUpper(uuid.NewString()[:n])
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}
