package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Kind names the business event behind a notification.
type Kind string

const (
	KindWelcome      Kind = "welcome"
	KindReservation  Kind = "reservation"
	KindCompletion   Kind = "completion"
	KindRepayment    Kind = "repayment"
	KindCancellation Kind = "cancellation"
	KindTopUp        Kind = "top_up"
)

// Event is emitted after an engine operation commits.
type Event struct {
	Phone          string          `json:"phone"`
	Kind           Kind            `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Interest       decimal.Decimal `json:"interest"`
	Station        string          `json:"station,omitempty"`
	RemainingLimit decimal.Decimal `json:"remainingLimit"`
	CardType       string          `json:"cardType,omitempty"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

// Notifier accepts events for out-of-band delivery.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Message is a rendered outbound text.
type Message struct {
	Kind        Kind
	Destination string
	Body        string
}

// Sender delivers rendered messages to a gateway.
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes messages to the structured logger instead of a gateway.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging sender.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// Notify renders and logs the event.
func (n *LoggerNotifier) Notify(ctx context.Context, event Event) error {
	return n.Send(ctx, Render(event))
}

// Direct renders events and hands them straight to a Sender.
type Direct struct {
	sender Sender
}

// NewDirect builds a synchronous notifier.
func NewDirect(sender Sender) *Direct {
	return &Direct{sender: sender}
}

// Notify renders and sends the event.
func (d *Direct) Notify(ctx context.Context, event Event) error {
	return d.sender.Send(ctx, Render(event))
}
