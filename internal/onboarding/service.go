// Package onboarding registers customers together with their wallet and card.
package onboarding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/customer"
	"github.com/fuelnow/fuelnow/internal/ledger"
	"github.com/fuelnow/fuelnow/internal/notification"
	"github.com/fuelnow/fuelnow/internal/store"
	"github.com/fuelnow/fuelnow/internal/wallet"
)

// Config holds onboarding defaults.
type Config struct {
	DefaultCreditLimit decimal.Decimal
	ActivationFee      decimal.Decimal
}

// Input is a new customer registration.
type Input struct {
	Name      string
	Phone     string
	IDNumber  string
	NextOfKin string
	CardType  wallet.CardType
	// CreditLimit overrides the default for credit wallets when positive.
	CreditLimit decimal.Decimal
}

// Account is a customer with its wallet and card.
type Account struct {
	Customer customer.Customer
	Wallet   wallet.Wallet
	Card     customer.Card
}

// Service onboards and looks up customers.
type Service struct {
	uow      store.UnitOfWork
	notifier notification.Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewService builds the onboarding service.
func NewService(uow store.UnitOfWork, notifier notification.Notifier, logger *slog.Logger, cfg Config) *Service {
	if cfg.DefaultCreditLimit.IsZero() {
		cfg.DefaultCreditLimit = decimal.NewFromInt(1000)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{uow: uow, notifier: notifier, logger: logger, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Onboard creates the customer, wallet, card and opening ledger entry in one
// unit of work and then sends the welcome message.
func (s *Service) Onboard(ctx context.Context, in Input) (Account, error) {
	const op = "onboarding.Onboard"
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" || in.Phone == "" || in.IDNumber == "" {
		return Account{}, apperror.New(apperror.KindInvalidInput, op, "name, phone and id_number are required")
	}
	if !in.CardType.Valid() {
		return Account{}, apperror.New(apperror.KindInvalidInput, op, "card_type must be prepaid or credit")
	}
	if in.CreditLimit.IsNegative() {
		return Account{}, apperror.New(apperror.KindInvalidInput, op, "credit_limit must not be negative")
	}

	limit := decimal.Zero
	if in.CardType == wallet.CardCredit {
		limit = s.cfg.DefaultCreditLimit
		if in.CreditLimit.IsPositive() {
			limit = in.CreditLimit
		}
	}

	now := s.now()
	acct := Account{
		Customer: customer.Customer{
			ID:        uuid.NewString(),
			Name:      in.Name,
			Phone:     in.Phone,
			IDNumber:  in.IDNumber,
			NextOfKin: in.NextOfKin,
			Status:    customer.StatusActive,
			CreatedAt: now,
		},
	}
	acct.Wallet = wallet.Wallet{
		ID:               uuid.NewString(),
		CustomerID:       acct.Customer.ID,
		CardType:         in.CardType,
		CreditLimit:      limit,
		AvailableBalance: decimal.Zero,
		ReservedBalance:  decimal.Zero,
		UsedCredit:       decimal.Zero,
		Status:           wallet.StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	acct.Card = customer.Card{
		ID:        uuid.NewString(),
		WalletID:  acct.Wallet.ID,
		Number:    customer.NewCardNumber(now),
		Token:     customer.NewCardToken(),
		Status:    customer.StatusActive,
		CreatedAt: now,
	}

	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		if _, err := repos.Customers.FindByPhone(ctx, in.Phone); err == nil {
			return customer.ErrExists
		} else if !errors.Is(err, customer.ErrNotFound) {
			return err
		}
		if err := repos.Customers.Create(ctx, acct.Customer); err != nil {
			return err
		}
		if err := repos.Wallets.Create(ctx, acct.Wallet); err != nil {
			return err
		}
		if err := repos.Customers.CreateCard(ctx, acct.Card); err != nil {
			return err
		}
		_, err := repos.Ledger.Append(ctx, ledger.Entry{
			ID:          uuid.NewString(),
			WalletID:    acct.Wallet.ID,
			Debit:       decimal.Zero,
			Credit:      acct.Wallet.Balance(),
			Balance:     acct.Wallet.Balance(),
			Description: "Opening balance",
			CreatedAt:   now,
		})
		return err
	})
	if err != nil {
		return Account{}, classify(op, err)
	}

	if s.notifier != nil {
		event := notification.Event{
			Phone:          acct.Customer.Phone,
			Kind:           notification.KindWelcome,
			Amount:         s.cfg.ActivationFee,
			RemainingLimit: limit,
			CardType:       string(in.CardType),
			OccurredAt:     now,
		}
		if err := s.notifier.Notify(context.WithoutCancel(ctx), event); err != nil {
			s.logger.Warn("welcome message not delivered", slog.String("phone", acct.Customer.Phone), slog.Any("error", err))
		}
	}
	return acct, nil
}

// Lookup returns the customer, wallet and card registered to phone.
func (s *Service) Lookup(ctx context.Context, phone string) (Account, error) {
	const op = "onboarding.Lookup"
	var acct Account
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		c, err := repos.Customers.FindByPhone(ctx, phone)
		if err != nil {
			return err
		}
		w, err := repos.Wallets.GetByCustomer(ctx, c.ID)
		if err != nil {
			return err
		}
		card, err := repos.Customers.CardByWallet(ctx, w.ID)
		if err != nil && !errors.Is(err, customer.ErrNotFound) {
			return err
		}
		acct = Account{Customer: c, Wallet: w, Card: card}
		return nil
	})
	if err != nil {
		return Account{}, classify(op, err)
	}
	return acct, nil
}

// List returns registered customers, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]customer.Customer, error) {
	var out []customer.Customer
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		out, err = repos.Customers.List(ctx, limit)
		return err
	})
	if err != nil {
		return nil, classify("onboarding.List", err)
	}
	return out, nil
}

// Ledger returns the ledger history of the wallet registered to phone.
func (s *Service) Ledger(ctx context.Context, phone string, limit int) ([]ledger.Entry, error) {
	const op = "onboarding.Ledger"
	var entries []ledger.Entry
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		holder, err := repos.Customers.ResolveByPhone(ctx, phone)
		if err != nil {
			return err
		}
		entries, err = repos.Ledger.History(ctx, holder.WalletID, limit)
		return err
	})
	if err != nil {
		return nil, classify(op, err)
	}
	return entries, nil
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, customer.ErrExists):
		return apperror.Wrap(apperror.KindConflict, op, "customer already exists", err)
	case errors.Is(err, customer.ErrNotFound), errors.Is(err, wallet.ErrNotFound):
		return apperror.Wrap(apperror.KindNotFound, op, "customer not found", err)
	default:
		return apperror.Wrap(apperror.KindStorage, op, "storage failure", err)
	}
}
