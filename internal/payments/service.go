package payments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/engine"
	"github.com/fuelnow/fuelnow/internal/mpesa"
	"github.com/fuelnow/fuelnow/internal/onboarding"
)

// Repayer applies received money to a wallet.
type Repayer interface {
	Repay(ctx context.Context, phone string, amount decimal.Decimal, idempotencyKey string) (engine.Repayment, error)
}

// AccountFinder resolves a phone number to a registered account.
type AccountFinder interface {
	Lookup(ctx context.Context, phone string) (onboarding.Account, error)
}

// Pusher starts an M-Pesa STK push.
type Pusher interface {
	STKPush(ctx context.Context, phone string, amount decimal.Decimal, accountReference string) (mpesa.STKResponse, error)
}

// Service turns M-Pesa payments into wallet repayments.
type Service struct {
	repayer  Repayer
	accounts AccountFinder
	pusher   Pusher
	logger   *slog.Logger
}

// NewService constructs a payment service.
func NewService(repayer Repayer, accounts AccountFinder, pusher Pusher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repayer: repayer, accounts: accounts, pusher: pusher, logger: logger}
}

// CallbackResult describes what a callback did.
type CallbackResult struct {
	Paid      bool
	Duplicate bool
	Receipt   string
	Reason    string
	Repayment engine.Repayment
}

// Initiate asks the customer to pay amount from their handset.
func (s *Service) Initiate(ctx context.Context, phone string, amount decimal.Decimal) (mpesa.STKResponse, error) {
	const op = "payments.Initiate"
	if !amount.IsPositive() {
		return mpesa.STKResponse{}, apperror.New(apperror.KindInvalidInput, op, "amount must be greater than zero")
	}
	acct, err := s.accounts.Lookup(ctx, phone)
	if err != nil {
		return mpesa.STKResponse{}, err
	}
	res, err := s.pusher.STKPush(ctx, phone, amount, fmt.Sprintf("FUELNOW-%s", acct.Wallet.ID))
	if err != nil {
		if errors.Is(err, mpesa.ErrNotConfigured) {
			return mpesa.STKResponse{}, apperror.Wrap(apperror.KindInvalidInput, op, "mpesa payments are not enabled", err)
		}
		return mpesa.STKResponse{}, apperror.Wrap(apperror.KindStorage, op, "payment gateway unavailable", err)
	}
	s.logger.Info("stk push sent", slog.String("wallet_id", acct.Wallet.ID), slog.String("checkout_request_id", res.CheckoutRequestID))
	return res, nil
}

// HandleCallback applies a Daraja callback. The receipt number is the
// repayment idempotency key, so a redelivered callback credits only once.
func (s *Service) HandleCallback(ctx context.Context, body []byte) (CallbackResult, error) {
	const op = "payments.HandleCallback"
	cb, err := mpesa.ParseCallback(body)
	if err != nil {
		return CallbackResult{}, apperror.Wrap(apperror.KindInvalidInput, op, "malformed callback", err)
	}
	if !cb.Paid() {
		s.logger.Warn("mpesa payment failed",
			slog.String("checkout_request_id", cb.CheckoutRequestID),
			slog.Int("result_code", cb.ResultCode),
			slog.String("result_desc", cb.ResultDesc))
		return CallbackResult{Paid: false, Reason: cb.ResultDesc}, nil
	}

	rep, err := s.repayer.Repay(ctx, mpesa.LocalPhone(cb.Phone), cb.Amount, cb.Receipt)
	switch {
	case err == nil:
		return CallbackResult{Paid: true, Receipt: cb.Receipt, Repayment: rep}, nil
	case apperror.Is(err, apperror.KindAlreadyProcessed):
		s.logger.Info("duplicate mpesa callback", slog.String("receipt", cb.Receipt))
		return CallbackResult{Paid: true, Duplicate: true, Receipt: cb.Receipt}, nil
	default:
		return CallbackResult{}, err
	}
}
