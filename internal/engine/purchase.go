package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/customer"
	"github.com/fuelnow/fuelnow/internal/notification"
	"github.com/fuelnow/fuelnow/internal/store"
	"github.com/fuelnow/fuelnow/internal/transaction"
	"github.com/fuelnow/fuelnow/internal/wallet"
)

// ValidateInput identifies the customer and the requested purchase.
type ValidateInput struct {
	// Identifier is a phone number, or a card token when ByCard is set.
	Identifier  string
	Amount      decimal.Decimal
	StationID   string
	AttendantID string
	ByCard      bool
}

// Approval is returned when a reservation is placed.
type Approval struct {
	ReservationToken string
	TransactionID    string
	Amount           decimal.Decimal
	Interest         decimal.Decimal
	Total            decimal.Decimal
	CustomerName     string
	CustomerPhone    string
	CardType         wallet.CardType
	RemainingLimit   decimal.Decimal
}

// CaptureInput records what was actually dispensed.
type CaptureInput struct {
	ReservationToken string
	FinalAmount      decimal.Decimal
	Litres           decimal.NullDecimal
	MeterReading     string
}

// CaptureResult is the completed purchase.
type CaptureResult struct {
	Transaction    transaction.Transaction
	FinalAmount    decimal.Decimal
	Interest       decimal.Decimal
	Total          decimal.Decimal
	RemainingLimit decimal.Decimal
}

// Validate resolves the wallet, quotes interest and reserves the total.
func (e *Engine) Validate(ctx context.Context, in ValidateInput) (Approval, error) {
	const op = "engine.Validate"
	if err := required(op, in.Identifier, "identifier"); err != nil {
		return Approval{}, err
	}
	if err := required(op, in.StationID, "station_id"); err != nil {
		return Approval{}, err
	}
	if err := required(op, in.AttendantID, "attendant_id"); err != nil {
		return Approval{}, err
	}
	if err := positive(op, in.Amount, "amount"); err != nil {
		return Approval{}, err
	}
	quote, err := e.policy.Quote(in.Amount)
	if err != nil {
		return Approval{}, classify(op, err)
	}

	var approval Approval
	err = e.run(ctx, op, func(ctx context.Context, repos store.Repositories) error {
		holder, err := resolve(ctx, repos.Customers, in.Identifier, in.ByCard)
		if err != nil {
			return err
		}
		w, err := repos.Wallets.Get(ctx, holder.WalletID)
		if err != nil {
			return err
		}
		if !w.Active() {
			return wallet.ErrInactive
		}
		w, err = repos.Wallets.Reserve(ctx, w.ID, quote.Total)
		if err != nil {
			return err
		}

		tx := transaction.Transaction{
			ID:               uuid.NewString(),
			WalletID:         w.ID,
			Type:             transaction.TypeFuelPurchase,
			Amount:           quote.Principal,
			InterestAmount:   quote.Interest,
			TotalAmount:      quote.Total,
			HoldAmount:       quote.Total,
			StationID:        in.StationID,
			AttendantID:      in.AttendantID,
			Status:           transaction.StatusReserved,
			ReservationToken: transaction.NewReservationToken(),
			CreatedAt:        e.now(),
		}
		if err := repos.Transactions.Create(ctx, tx); err != nil {
			return err
		}
		if err := e.appendEntry(ctx, repos.Ledger, tx.ID, w, quote.Total, decimal.Zero,
			fmt.Sprintf("Fuel reservation at %s", in.StationID)); err != nil {
			return err
		}

		approval = Approval{
			ReservationToken: tx.ReservationToken,
			TransactionID:    tx.ID,
			Amount:           quote.Principal,
			Interest:         quote.Interest,
			Total:            quote.Total,
			CustomerName:     holder.Name,
			CustomerPhone:    holder.Phone,
			CardType:         w.CardType,
			RemainingLimit:   w.Spendable(),
		}
		return nil
	})
	if err != nil {
		return Approval{}, err
	}

	e.emit(ctx, notification.Event{
		Phone:          approval.CustomerPhone,
		Kind:           notification.KindReservation,
		Amount:         approval.Amount,
		Interest:       approval.Interest,
		Station:        in.StationID,
		RemainingLimit: approval.RemainingLimit,
		CardType:       string(approval.CardType),
	})
	return approval, nil
}

// Capture settles a reservation at the dispensed amount. Interest is
// recomputed from FinalAmount and the original hold is released in full.
func (e *Engine) Capture(ctx context.Context, in CaptureInput) (CaptureResult, error) {
	const op = "engine.Capture"
	if err := required(op, in.ReservationToken, "reservation_id"); err != nil {
		return CaptureResult{}, err
	}
	if err := positive(op, in.FinalAmount, "final_amount"); err != nil {
		return CaptureResult{}, err
	}
	if in.Litres.Valid && in.Litres.Decimal.IsNegative() {
		return CaptureResult{}, apperror.New(apperror.KindInvalidInput, op, "litres must not be negative")
	}
	quote, err := e.policy.Quote(in.FinalAmount)
	if err != nil {
		return CaptureResult{}, classify(op, err)
	}

	var (
		result CaptureResult
		phone  string
	)
	err = e.run(ctx, op, func(ctx context.Context, repos store.Repositories) error {
		tx, err := repos.Transactions.GetByToken(ctx, in.ReservationToken)
		if err != nil {
			return err
		}
		if tx.Type != transaction.TypeFuelPurchase || tx.Status != transaction.StatusReserved {
			return transaction.ErrAlreadyProcessed
		}

		w, err := repos.Wallets.Release(ctx, tx.WalletID, tx.HoldAmount)
		if err != nil {
			return err
		}
		switch w.CardType {
		case wallet.CardPrepaid:
			w, err = repos.Wallets.Debit(ctx, w.ID, quote.Total)
		case wallet.CardCredit:
			w, err = repos.Wallets.AdjustUsedCredit(ctx, w.ID, quote.Total)
		default:
			err = wallet.ErrCardTypeMismatch
		}
		if err != nil {
			return err
		}

		tx, err = repos.Transactions.Complete(ctx, tx.ID, transaction.Completion{
			FinalAmount:    quote.Principal,
			InterestAmount: quote.Interest,
			TotalAmount:    quote.Total,
			Litres:         in.Litres,
			MeterReading:   in.MeterReading,
			CompletedAt:    e.now(),
		})
		if err != nil {
			return err
		}
		if err := e.appendEntry(ctx, repos.Ledger, tx.ID, w, quote.Total, decimal.Zero,
			fmt.Sprintf("Fuel purchase at %s", tx.StationID)); err != nil {
			return err
		}

		if c, err := repos.Customers.Get(ctx, w.CustomerID); err == nil {
			phone = c.Phone
		}
		result = CaptureResult{
			Transaction:    tx,
			FinalAmount:    quote.Principal,
			Interest:       quote.Interest,
			Total:          quote.Total,
			RemainingLimit: w.Spendable(),
		}
		return nil
	})
	if err != nil {
		return CaptureResult{}, err
	}

	e.emit(ctx, notification.Event{
		Phone:          phone,
		Kind:           notification.KindCompletion,
		Amount:         result.FinalAmount,
		Interest:       result.Interest,
		Station:        result.Transaction.StationID,
		RemainingLimit: result.RemainingLimit,
	})
	return result, nil
}

// Cancel releases a reservation without charging the customer.
func (e *Engine) Cancel(ctx context.Context, token, reason string) (transaction.Transaction, error) {
	const op = "engine.Cancel"
	if err := required(op, token, "reservation_id"); err != nil {
		return transaction.Transaction{}, err
	}
	if reason == "" {
		reason = defaultCancelation
	}
	tx, event, err := e.release(ctx, op, token, transaction.StatusCancelled, reason)
	if err != nil {
		return transaction.Transaction{}, err
	}
	e.emit(ctx, event)
	return tx, nil
}

// ExpireReservations fails every reservation older than olderThan, or the
// configured TTL when olderThan is zero. Each expiry is its own unit of work.
func (e *Engine) ExpireReservations(ctx context.Context, olderThan time.Duration) (int, error) {
	const op = "engine.ExpireReservations"
	if olderThan <= 0 {
		olderThan = e.cfg.ReservationTTL
	}
	cutoff := e.now().Add(-olderThan)

	var stale []transaction.Transaction
	err := e.run(ctx, op, func(ctx context.Context, repos store.Repositories) error {
		var err error
		stale, err = repos.Transactions.ListStaleReservations(ctx, cutoff, expireBatch)
		return err
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, tx := range stale {
		if ctx.Err() != nil {
			return expired, classify(op, ctx.Err())
		}
		_, _, err := e.release(ctx, op, tx.ReservationToken, transaction.StatusFailed, reasonExpired)
		switch {
		case err == nil:
			expired++
		case apperror.Is(err, apperror.KindAlreadyProcessed):
		default:
			e.logger.Error("reservation expiry failed", slog.String("transaction_id", tx.ID), slog.Any("error", err))
		}
	}
	return expired, nil
}

func (e *Engine) release(ctx context.Context, op, token string, to transaction.Status, reason string) (transaction.Transaction, notification.Event, error) {
	var (
		closed transaction.Transaction
		event  notification.Event
	)
	err := e.run(ctx, op, func(ctx context.Context, repos store.Repositories) error {
		tx, err := repos.Transactions.GetByToken(ctx, token)
		if err != nil {
			return err
		}
		if tx.Status != transaction.StatusReserved {
			return transaction.ErrAlreadyProcessed
		}
		w, err := repos.Wallets.Release(ctx, tx.WalletID, tx.HoldAmount)
		if err != nil {
			return err
		}
		closed, err = repos.Transactions.Close(ctx, tx.ID, to, reason, e.now())
		if err != nil {
			return err
		}
		if err := e.appendEntry(ctx, repos.Ledger, tx.ID, w, decimal.Zero, tx.HoldAmount,
			fmt.Sprintf("Reservation released: %s", reason)); err != nil {
			return err
		}
		event = notification.Event{
			Kind:           notification.KindCancellation,
			Amount:         tx.HoldAmount,
			Station:        tx.StationID,
			RemainingLimit: w.Spendable(),
		}
		if c, err := repos.Customers.Get(ctx, w.CustomerID); err == nil {
			event.Phone = c.Phone
		}
		return nil
	})
	return closed, event, err
}

// Status returns the transaction behind a reservation token.
func (e *Engine) Status(ctx context.Context, token string) (transaction.Transaction, error) {
	const op = "engine.Status"
	if err := required(op, token, "reservation_id"); err != nil {
		return transaction.Transaction{}, err
	}
	var tx transaction.Transaction
	err := e.run(ctx, op, func(ctx context.Context, repos store.Repositories) error {
		var err error
		tx, err = repos.Transactions.GetByToken(ctx, token)
		return err
	})
	return tx, err
}

func resolve(ctx context.Context, customers customer.Repository, identifier string, byCard bool) (customer.Holder, error) {
	if !byCard {
		return customers.ResolveByPhone(ctx, identifier)
	}
	holder, err := customers.ResolveByCardToken(ctx, identifier)
	if err != nil {
		return customer.Holder{}, err
	}
	if holder.CardStatus != "" && holder.CardStatus != customer.StatusActive {
		return customer.Holder{}, wallet.ErrInactive
	}
	return holder, nil
}
