package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/notification"
	"github.com/fuelnow/fuelnow/internal/store"
	"github.com/fuelnow/fuelnow/internal/transaction"
	"github.com/fuelnow/fuelnow/internal/wallet"
)

// Repayment is the wallet and transaction after money was received.
type Repayment struct {
	Wallet      wallet.Wallet
	Transaction transaction.Transaction
}

// Repay credits a payment to the wallet behind phone. Credit wallets reduce
// used credit, never below zero; prepaid wallets gain available balance. A
// non-empty idempotencyKey that was already applied yields already_processed.
func (e *Engine) Repay(ctx context.Context, phone string, amount decimal.Decimal, idempotencyKey string) (Repayment, error) {
	const op = "engine.Repay"
	if err := required(op, phone, "phone"); err != nil {
		return Repayment{}, err
	}
	if err := positive(op, amount, "amount"); err != nil {
		return Repayment{}, err
	}
	amount = amount.Round(2)

	var res Repayment
	err := e.run(ctx, op, func(ctx context.Context, repos store.Repositories) error {
		if err := ensureUnused(ctx, repos.Transactions, idempotencyKey); err != nil {
			return err
		}
		holder, err := repos.Customers.ResolveByPhone(ctx, phone)
		if err != nil {
			return err
		}
		w, err := repos.Wallets.Get(ctx, holder.WalletID)
		if err != nil {
			return err
		}
		switch w.CardType {
		case wallet.CardPrepaid:
			w, err = repos.Wallets.Credit(ctx, w.ID, amount)
		case wallet.CardCredit:
			w, err = repos.Wallets.AdjustUsedCredit(ctx, w.ID, amount.Neg())
		default:
			err = wallet.ErrCardTypeMismatch
		}
		if err != nil {
			return err
		}

		tx, err := e.settled(ctx, repos, w, transaction.TypeRepayment, amount, repaymentStation, idempotencyKey)
		if err != nil {
			return err
		}
		if err := e.appendEntry(ctx, repos.Ledger, tx.ID, w, decimal.Zero, amount, "Repayment received"); err != nil {
			return err
		}
		res = Repayment{Wallet: w, Transaction: tx}
		return nil
	})
	if err != nil {
		return Repayment{}, err
	}

	e.emit(ctx, notification.Event{
		Phone:          phone,
		Kind:           notification.KindRepayment,
		Amount:         amount,
		Station:        repaymentStation,
		RemainingLimit: res.Wallet.Spendable(),
		CardType:       string(res.Wallet.CardType),
	})
	return res, nil
}

// TopUp adds funds to a prepaid wallet. Reference, when set, makes the call
// idempotent in the same way as Repay.
func (e *Engine) TopUp(ctx context.Context, phone string, amount decimal.Decimal, reference string) (Repayment, error) {
	const op = "engine.TopUp"
	if err := required(op, phone, "phone"); err != nil {
		return Repayment{}, err
	}
	if err := positive(op, amount, "amount"); err != nil {
		return Repayment{}, err
	}
	amount = amount.Round(2)

	var res Repayment
	err := e.run(ctx, op, func(ctx context.Context, repos store.Repositories) error {
		if err := ensureUnused(ctx, repos.Transactions, reference); err != nil {
			return err
		}
		holder, err := repos.Customers.ResolveByPhone(ctx, phone)
		if err != nil {
			return err
		}
		w, err := repos.Wallets.Credit(ctx, holder.WalletID, amount)
		if err != nil {
			return err
		}
		tx, err := e.settled(ctx, repos, w, transaction.TypeTopUp, amount, topUpStation, reference)
		if err != nil {
			return err
		}
		if err := e.appendEntry(ctx, repos.Ledger, tx.ID, w, decimal.Zero, amount, "Wallet top-up"); err != nil {
			return err
		}
		res = Repayment{Wallet: w, Transaction: tx}
		return nil
	})
	if err != nil {
		return Repayment{}, err
	}

	e.emit(ctx, notification.Event{
		Phone:          phone,
		Kind:           notification.KindTopUp,
		Amount:         amount,
		RemainingLimit: res.Wallet.Spendable(),
		CardType:       string(res.Wallet.CardType),
	})
	return res, nil
}

// settled records an inbound payment as an already completed transaction.
func (e *Engine) settled(ctx context.Context, repos store.Repositories, w wallet.Wallet, kind transaction.Type, amount decimal.Decimal, station, key string) (transaction.Transaction, error) {
	now := e.now()
	tx := transaction.Transaction{
		ID:               uuid.NewString(),
		WalletID:         w.ID,
		Type:             kind,
		Amount:           amount,
		InterestAmount:   decimal.Zero,
		TotalAmount:      amount,
		HoldAmount:       decimal.Zero,
		FinalAmount:      decimal.NewNullDecimal(amount),
		StationID:        station,
		AttendantID:      systemAttendant,
		Status:           transaction.StatusCompleted,
		ReservationToken: transaction.NewReservationToken(),
		IdempotencyKey:   key,
		CreatedAt:        now,
		CompletedAt:      &now,
	}
	if err := repos.Transactions.Create(ctx, tx); err != nil {
		return transaction.Transaction{}, err
	}
	return tx, nil
}

func ensureUnused(ctx context.Context, txs transaction.Repository, key string) error {
	if key == "" {
		return nil
	}
	_, err := txs.FindByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		return transaction.ErrDuplicateIdempotencyKey
	case errors.Is(err, transaction.ErrNotFound):
		return nil
	default:
		return err
	}
}

// History lists the most recent transactions of the wallet behind phone.
func (e *Engine) History(ctx context.Context, phone string, limit int) ([]transaction.Transaction, error) {
	const op = "engine.History"
	if err := required(op, phone, "phone"); err != nil {
		return nil, err
	}
	var list []transaction.Transaction
	err := e.run(ctx, op, func(ctx context.Context, repos store.Repositories) error {
		holder, err := repos.Customers.ResolveByPhone(ctx, phone)
		if err != nil {
			return err
		}
		list, err = repos.Transactions.ListByWallet(ctx, holder.WalletID, limit)
		return err
	})
	return list, err
}

// SetWalletStatus suspends, blocks or reactivates a wallet.
func (e *Engine) SetWalletStatus(ctx context.Context, walletID string, status wallet.Status) (wallet.Wallet, error) {
	const op = "engine.SetWalletStatus"
	if err := required(op, walletID, "wallet_id"); err != nil {
		return wallet.Wallet{}, err
	}
	if !status.Valid() {
		return wallet.Wallet{}, apperror.New(apperror.KindInvalidInput, op, fmt.Sprintf("unknown wallet status %q", status))
	}
	var w wallet.Wallet
	err := e.run(ctx, op, func(ctx context.Context, repos store.Repositories) error {
		var err error
		w, err = repos.Wallets.SetStatus(ctx, walletID, status)
		return err
	})
	return w, err
}
