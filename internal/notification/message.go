package notification

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Render turns an event into the SMS text sent to the customer.
func Render(e Event) Message {
	var body string
	switch e.Kind {
	case KindWelcome:
		body = fmt.Sprintf("Welcome to FuelNow. Your %s card is activated.", e.CardType)
		if e.Amount.IsPositive() {
			body += fmt.Sprintf(" Activation fee Ksh %s received.", money(e.Amount))
		}
		if e.CardType == "credit" {
			body += fmt.Sprintf(" Credit limit: Ksh %s.", money(e.RemainingLimit))
		}
	case KindReservation:
		body = fmt.Sprintf("Ksh %s reserved (+Ksh %s interest) at %s. Total: Ksh %s. Present your phone number or card to the attendant.",
			money(e.Amount), money(e.Interest), e.Station, money(e.Amount.Add(e.Interest)))
	case KindCompletion:
		body = fmt.Sprintf("Fuel purchase Ksh %s (+Ksh %s interest) at %s. Remaining limit: Ksh %s.",
			money(e.Amount), money(e.Interest), e.Station, money(e.RemainingLimit))
	case KindRepayment:
		body = fmt.Sprintf("Payment of Ksh %s received. New limit: Ksh %s.", money(e.Amount), money(e.RemainingLimit))
	case KindCancellation:
		body = fmt.Sprintf("Reservation of Ksh %s at %s was released. Available: Ksh %s.",
			money(e.Amount), e.Station, money(e.RemainingLimit))
	case KindTopUp:
		body = fmt.Sprintf("Top-up of Ksh %s received. Balance: Ksh %s.", money(e.Amount), money(e.RemainingLimit))
	default:
		body = fmt.Sprintf("FuelNow update: Ksh %s.", money(e.Amount))
	}
	return Message{Kind: e.Kind, Destination: e.Phone, Body: body}
}

func money(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.Truncate(0).String()
	}
	return d.StringFixed(2)
}
