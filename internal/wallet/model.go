package wallet

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// CardType distinguishes balance-based wallets from limit-based ones.
type CardType string

const (
	CardPrepaid CardType = "prepaid"
	CardCredit  CardType = "credit"
)

// Valid reports whether t is a known card type.
func (t CardType) Valid() bool {
	return t == CardPrepaid || t == CardCredit
}

// Status of a wallet. Only active wallets accept new reservations.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusBlocked   Status = "blocked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusBlocked:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound            = errors.New("wallet not found")
	ErrInactive            = errors.New("wallet is not active")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
	ErrHoldExceeded        = errors.New("release exceeds reserved balance")
	ErrCardTypeMismatch    = errors.New("operation not valid for card type")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// Wallet holds the balance counters for one customer.
//
// Prepaid wallets move a hold from AvailableBalance into ReservedBalance.
// Credit wallets keep AvailableBalance at zero and hold against
// CreditLimit - UsedCredit - ReservedBalance until capture posts to UsedCredit.
type Wallet struct {
	ID               string
	CustomerID       string
	CardType         CardType
	CreditLimit      decimal.Decimal
	AvailableBalance decimal.Decimal
	ReservedBalance  decimal.Decimal
	UsedCredit       decimal.Decimal
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Balance is the figure mirrored by the ledger: available funds for prepaid
// wallets, unused limit for credit wallets.
func (w Wallet) Balance() decimal.Decimal {
	if w.CardType == CardCredit {
		return w.CreditLimit.Sub(w.UsedCredit)
	}
	return w.AvailableBalance
}

// Spendable is what a new reservation may still hold.
func (w Wallet) Spendable() decimal.Decimal {
	if w.CardType == CardCredit {
		return w.CreditLimit.Sub(w.UsedCredit).Sub(w.ReservedBalance)
	}
	return w.AvailableBalance
}

// Active reports whether the wallet accepts reservations.
func (w Wallet) Active() bool {
	return w.Status == StatusActive
}

// CheckInvariants returns an error if any counter is out of range.
func (w Wallet) CheckInvariants() error {
	if w.AvailableBalance.IsNegative() || w.ReservedBalance.IsNegative() || w.UsedCredit.IsNegative() {
		return errors.New("wallet counter is negative")
	}
	if w.CardType == CardCredit && w.UsedCredit.Add(w.ReservedBalance).GreaterThan(w.CreditLimit) {
		return errors.New("credit usage exceeds limit")
	}
	return nil
}

// reserveRejection explains why a guarded reserve did not apply to w.
func reserveRejection(w Wallet) error {
	if !w.Active() {
		return ErrInactive
	}
	if w.CardType == CardCredit {
		return ErrCreditLimitExceeded
	}
	return ErrInsufficientFunds
}
