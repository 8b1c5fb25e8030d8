package transaction

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type of a transaction.
type Type string

const (
	TypeFuelPurchase Type = "fuel_purchase"
	TypeRepayment    Type = "repayment"
	TypeTopUp        Type = "top_up"
)

// Status is a lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReserved  Status = "reserved"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusReserved, StatusFailed, StatusCancelled},
	StatusReserved: {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var (
	ErrNotFound                = errors.New("transaction not found")
	ErrAlreadyProcessed        = errors.New("transaction already processed")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrInvalidTransition       = errors.New("invalid status transition")
)

// Transaction is one purchase, repayment or top-up.
//
// Amount is the quoted principal and HoldAmount the total reserved at
// approval. Capture rewrites InterestAmount and TotalAmount to the values
// computed from FinalAmount.
type Transaction struct {
	ID               string
	WalletID         string
	Type             Type
	Amount           decimal.Decimal
	InterestAmount   decimal.Decimal
	TotalAmount      decimal.Decimal
	HoldAmount       decimal.Decimal
	FinalAmount      decimal.NullDecimal
	StationID        string
	AttendantID      string
	Status           Status
	ReservationToken string
	IdempotencyKey   string
	Litres           decimal.NullDecimal
	MeterReading     string
	FailureReason    string
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// Completion carries the values written when a reservation is captured.
type Completion struct {
	FinalAmount    decimal.Decimal
	InterestAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	Litres         decimal.NullDecimal
	MeterReading   string
	CompletedAt    time.Time
}

// StationSummary aggregates completed purchases at one station.
type StationSummary struct {
	StationID string
	Count     int
	Amount    decimal.Decimal
	Interest  decimal.Decimal
	Litres    decimal.Decimal
}

// ActivityStats is a count of purchase activity over a window.
type ActivityStats struct {
	Transactions int
	Interest     decimal.Decimal
	OpenHolds    int
}

// NewReservationToken returns a random 122-bit token.
func NewReservationToken() string {
	return uuid.NewString()
}
