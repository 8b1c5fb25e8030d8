// Package engine approves, captures and settles fuel purchases against
// prepaid and credit wallets. Every operation runs as one unit of work so a
// wallet mutation, its transaction row and its ledger entry commit together.
package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/customer"
	"github.com/fuelnow/fuelnow/internal/interest"
	"github.com/fuelnow/fuelnow/internal/ledger"
	"github.com/fuelnow/fuelnow/internal/notification"
	"github.com/fuelnow/fuelnow/internal/store"
	"github.com/fuelnow/fuelnow/internal/transaction"
	"github.com/fuelnow/fuelnow/internal/wallet"
)

const (
	repaymentStation   = "mpesa"
	topUpStation       = "admin"
	systemAttendant    = "system"
	defaultTimeout     = 5 * time.Second
	defaultTTL         = 30 * time.Minute
	notifyTimeout      = 3 * time.Second
	expireBatch        = 200
	reasonExpired      = "reservation expired"
	defaultCancelation = "cancelled by attendant"
)

// Config bounds engine operations.
type Config struct {
	OperationTimeout time.Duration
	ReservationTTL   time.Duration
}

// Engine is the reservation, capture and repayment service.
type Engine struct {
	uow      store.UnitOfWork
	policy   interest.Policy
	notifier notification.Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine. A nil notifier disables notifications.
func New(uow store.UnitOfWork, policy interest.Policy, notifier notification.Notifier, logger *slog.Logger, cfg Config, opts ...Option) *Engine {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultTimeout
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = defaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Engine{
		uow:      uow,
		policy:   policy,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the interest policy in use.
func (e *Engine) Policy() interest.Policy {
	return e.policy
}

// run executes fn as one bounded unit of work and classifies its failure.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context, repos store.Repositories) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	defer cancel()
	if err := e.uow.Do(ctx, fn); err != nil {
		return classify(op, err)
	}
	return nil
}

// emit hands the event to the notifier. Delivery problems are logged only.
func (e *Engine) emit(ctx context.Context, event notification.Event) {
	if e.notifier == nil || event.Phone == "" {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := e.notifier.Notify(ctx, event); err != nil {
		e.logger.Warn("notification not delivered",
			slog.String("kind", string(event.Kind)),
			slog.String("phone", event.Phone),
			slog.Any("error", err))
	}
}

func (e *Engine) appendEntry(ctx context.Context, l ledger.Ledger, txID string, w wallet.Wallet, debit, credit decimal.Decimal, description string) error {
	_, err := l.Append(ctx, ledger.Entry{
		ID:            uuid.NewString(),
		TransactionID: txID,
		WalletID:      w.ID,
		Debit:         debit,
		Credit:        credit,
		Balance:       w.Balance(),
		Description:   description,
		CreatedAt:     e.now(),
	})
	return err
}

func positive(op string, amount decimal.Decimal, field string) error {
	if !amount.IsPositive() {
		return apperror.New(apperror.KindInvalidInput, op, field+" must be greater than zero")
	}
	return nil
}

func required(op, value, field string) error {
	if value == "" {
		return apperror.New(apperror.KindInvalidInput, op, field+" is required")
	}
	return nil
}

// classify maps repository sentinels onto error kinds.
func classify(op string, err error) error {
	var appErr *apperror.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, wallet.ErrNotFound), errors.Is(err, customer.ErrNotFound):
		return apperror.Wrap(apperror.KindNotFound, op, "wallet not found", err)
	case errors.Is(err, transaction.ErrNotFound):
		return apperror.Wrap(apperror.KindNotFound, op, "transaction not found", err)
	case errors.Is(err, wallet.ErrInactive):
		return apperror.Wrap(apperror.KindInactive, op, "wallet is not active", err)
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return apperror.Wrap(apperror.KindInsufficientFunds, op, "insufficient funds", err)
	case errors.Is(err, wallet.ErrCreditLimitExceeded):
		return apperror.Wrap(apperror.KindCreditLimitExceeded, op, "credit limit exceeded", err)
	case errors.Is(err, transaction.ErrAlreadyProcessed), errors.Is(err, transaction.ErrDuplicateIdempotencyKey):
		return apperror.Wrap(apperror.KindAlreadyProcessed, op, "transaction already processed", err)
	case errors.Is(err, wallet.ErrCardTypeMismatch):
		return apperror.Wrap(apperror.KindInvalidInput, op, "operation not available for this card type", err)
	case errors.Is(err, wallet.ErrInvalidAmount), errors.Is(err, interest.ErrNegativePrincipal):
		return apperror.Wrap(apperror.KindInvalidInput, op, "amount must be greater than zero", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperror.Wrap(apperror.KindStorage, op, "operation timed out", err)
	default:
		return apperror.Wrap(apperror.KindStorage, op, "storage failure", err)
	}
}
