package interest

import (
	"errors"

	"github.com/shopspring/decimal"
)

// DefaultRate is the flat margin charged on every fuel purchase.
var DefaultRate = decimal.RequireFromString("0.10")

// ErrNegativePrincipal is returned when a quote is requested for a negative amount.
var ErrNegativePrincipal = errors.New("principal must not be negative")

// Quote is the interest breakdown for one principal.
type Quote struct {
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Total     decimal.Decimal
}

// Policy computes interest at a fixed rate. Interest is rounded to cents,
// half away from zero, and total is always principal + interest exactly.
type Policy struct {
	rate decimal.Decimal
}

// NewPolicy builds a policy for the given rate.
func NewPolicy(rate decimal.Decimal) (Policy, error) {
	if rate.IsNegative() {
		return Policy{}, errors.New("interest rate must not be negative")
	}
	return Policy{rate: rate}, nil
}

// Rate returns the configured rate.
func (p Policy) Rate() decimal.Decimal {
	return p.rate
}

// Quote computes interest and total for principal.
func (p Policy) Quote(principal decimal.Decimal) (Quote, error) {
	if principal.IsNegative() {
		return Quote{}, ErrNegativePrincipal
	}
	principal = principal.Round(2)
	interest := principal.Mul(p.rate).Round(2)
	return Quote{
		Principal: principal,
		Interest:  interest,
		Total:     principal.Add(interest),
	}, nil
}
