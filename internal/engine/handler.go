package engine

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/binding"
	"github.com/fuelnow/fuelnow/internal/transaction"
	"github.com/fuelnow/fuelnow/internal/wallet"
)

// Handler exposes engine operations over HTTP.
type Handler struct {
	engine *Engine
}

// NewHandler builds the engine HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type validateRiderRequest struct {
	Phone       string          `json:"phone" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	StationID   string          `json:"station_id"`
	AttendantID string          `json:"attendant_id"`
}

type validateCardRequest struct {
	CardToken   string          `json:"card_token" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	StationID   string          `json:"station_id"`
	AttendantID string          `json:"attendant_id"`
}

type captureRequest struct {
	ReservationID string              `json:"reservation_id" validate:"required"`
	FinalAmount   decimal.Decimal     `json:"final_amount"`
	Litres        decimal.NullDecimal `json:"litres"`
	MeterReading  string              `json:"meter_reading"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type repayRequest struct {
	Phone          string          `json:"phone" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type topUpRequest struct {
	Phone     string          `json:"phone" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended blocked"`
}

type approvalResponse struct {
	Approved       bool            `json:"approved"`
	ReservationID  string          `json:"reservation_id"`
	TransactionID  string          `json:"transaction_id"`
	Amount         decimal.Decimal `json:"amount"`
	Interest       decimal.Decimal `json:"interest"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CustomerName   string          `json:"customer_name"`
	CustomerPhone  string          `json:"customer_phone"`
	CardType       string          `json:"card_type"`
	RemainingLimit decimal.Decimal `json:"remaining_limit"`
}

type rejectionResponse struct {
	Approved bool   `json:"approved"`
	Error    string `json:"error"`
	Code     string `json:"code"`
}

type transactionResponse struct {
	ID             string           `json:"id"`
	WalletID       string           `json:"wallet_id"`
	Type           string           `json:"type"`
	Status         string           `json:"status"`
	Amount         decimal.Decimal  `json:"amount"`
	InterestAmount decimal.Decimal  `json:"interest_amount"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	FinalAmount    *decimal.Decimal `json:"final_amount,omitempty"`
	Litres         *decimal.Decimal `json:"litres,omitempty"`
	MeterReading   string           `json:"meter_reading,omitempty"`
	StationID      string           `json:"station_id"`
	AttendantID    string           `json:"attendant_id"`
	ReservationID  string           `json:"reservation_id"`
	FailureReason  string           `json:"failure_reason,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// WalletResponse is the API view of a wallet.
type WalletResponse struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id"`
	CardType         string          `json:"card_type"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	ReservedBalance  decimal.Decimal `json:"reserved_balance"`
	UsedCredit       decimal.Decimal `json:"used_credit"`
	RemainingLimit   decimal.Decimal `json:"remaining_limit"`
	Status           string          `json:"status"`
}

// ValidateRider approves a purchase for a customer identified by phone.
func (h *Handler) ValidateRider(c *fiber.Ctx) error {
	var req validateRiderRequest
	if err := binding.Body(c, &req); err != nil {
		return err
	}
	return h.validate(c, ValidateInput{
		Identifier:  req.Phone,
		Amount:      req.Amount,
		StationID:   stationOf(c, req.StationID),
		AttendantID: attendantOf(c, req.AttendantID),
	})
}

// ValidateCard approves a purchase for a presented card.
func (h *Handler) ValidateCard(c *fiber.Ctx) error {
	var req validateCardRequest
	if err := binding.Body(c, &req); err != nil {
		return err
	}
	return h.validate(c, ValidateInput{
		Identifier:  req.CardToken,
		Amount:      req.Amount,
		StationID:   stationOf(c, req.StationID),
		AttendantID: attendantOf(c, req.AttendantID),
		ByCard:      true,
	})
}

func (h *Handler) validate(c *fiber.Ctx, in ValidateInput) error {
	approval, err := h.engine.Validate(c.UserContext(), in)
	if apperror.IsBusinessRejection(err) {
		return c.Status(apperror.HTTPStatus(err)).JSON(rejectionResponse{
			Approved: false,
			Error:    apperror.PublicMessage(err),
			Code:     string(apperror.KindOf(err)),
		})
	}
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(approvalResponse{
		Approved:       true,
		ReservationID:  approval.ReservationToken,
		TransactionID:  approval.TransactionID,
		Amount:         approval.Amount,
		Interest:       approval.Interest,
		TotalAmount:    approval.Total,
		CustomerName:   approval.CustomerName,
		CustomerPhone:  approval.CustomerPhone,
		CardType:       string(approval.CardType),
		RemainingLimit: approval.RemainingLimit,
	})
}

// Capture completes a reservation with the dispensed amount.
func (h *Handler) Capture(c *fiber.Ctx) error {
	var req captureRequest
	if err := binding.Body(c, &req); err != nil {
		return err
	}
	res, err := h.engine.Capture(c.UserContext(), CaptureInput{
		ReservationToken: req.ReservationID,
		FinalAmount:      req.FinalAmount,
		Litres:           req.Litres,
		MeterReading:     req.MeterReading,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":         true,
		"transaction":     toTransactionResponse(res.Transaction),
		"final_amount":    res.FinalAmount,
		"interest":        res.Interest,
		"total_amount":    res.Total,
		"remaining_limit": res.RemainingLimit,
	})
}

// Cancel releases a reservation.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := binding.Body(c, &req); err != nil {
			return err
		}
	}
	tx, err := h.engine.Cancel(c.UserContext(), c.Params("reservationId"), req.Reason)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toTransactionResponse(tx))
}

// Status returns the transaction behind a reservation.
func (h *Handler) Status(c *fiber.Ctx) error {
	tx, err := h.engine.Status(c.UserContext(), c.Params("reservationId"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toTransactionResponse(tx))
}

// History lists a customer's recent transactions.
func (h *Handler) History(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	list, err := h.engine.History(c.UserContext(), c.Params("phone"), limit)
	if err != nil {
		return err
	}
	out := make([]transactionResponse, 0, len(list))
	for _, tx := range list {
		out = append(out, toTransactionResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

// Repay applies a manual repayment.
func (h *Handler) Repay(c *fiber.Ctx) error {
	var req repayRequest
	if err := binding.Body(c, &req); err != nil {
		return err
	}
	res, err := h.engine.Repay(c.UserContext(), req.Phone, req.Amount, req.IdempotencyKey)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":     true,
		"wallet":      ToWalletResponse(res.Wallet),
		"transaction": toTransactionResponse(res.Transaction),
	})
}

// TopUp funds a prepaid wallet.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	var req topUpRequest
	if err := binding.Body(c, &req); err != nil {
		return err
	}
	res, err := h.engine.TopUp(c.UserContext(), req.Phone, req.Amount, req.Reference)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":     true,
		"wallet":      ToWalletResponse(res.Wallet),
		"transaction": toTransactionResponse(res.Transaction),
	})
}

// SetWalletStatus changes a wallet's status.
func (h *Handler) SetWalletStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := binding.Body(c, &req); err != nil {
		return err
	}
	w, err := h.engine.SetWalletStatus(c.UserContext(), c.Params("walletId"), wallet.Status(req.Status))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(ToWalletResponse(w))
}

// ToWalletResponse renders a wallet for API clients.
func ToWalletResponse(w wallet.Wallet) WalletResponse {
	return WalletResponse{
		ID:               w.ID,
		CustomerID:       w.CustomerID,
		CardType:         string(w.CardType),
		CreditLimit:      w.CreditLimit,
		AvailableBalance: w.AvailableBalance,
		ReservedBalance:  w.ReservedBalance,
		UsedCredit:       w.UsedCredit,
		RemainingLimit:   w.Spendable(),
		Status:           string(w.Status),
	}
}

func toTransactionResponse(tx transaction.Transaction) transactionResponse {
	out := transactionResponse{
		ID:             tx.ID,
		WalletID:       tx.WalletID,
		Type:           string(tx.Type),
		Status:         string(tx.Status),
		Amount:         tx.Amount,
		InterestAmount: tx.InterestAmount,
		TotalAmount:    tx.TotalAmount,
		MeterReading:   tx.MeterReading,
		StationID:      tx.StationID,
		AttendantID:    tx.AttendantID,
		ReservationID:  tx.ReservationToken,
		FailureReason:  tx.FailureReason,
		CreatedAt:      tx.CreatedAt,
		CompletedAt:    tx.CompletedAt,
	}
	if tx.FinalAmount.Valid {
		v := tx.FinalAmount.Decimal
		out.FinalAmount = &v
	}
	if tx.Litres.Valid {
		v := tx.Litres.Decimal
		out.Litres = &v
	}
	return out
}

// attendantOf prefers the authenticated attendant over the request body.
func attendantOf(c *fiber.Ctx, fallback string) string {
	if id, ok := c.Locals("user_id").(string); ok && id != "" {
		return id
	}
	return fallback
}

// stationOf pins attendants to the station in their token; admins may name one.
func stationOf(c *fiber.Ctx, requested string) string {
	if station, ok := c.Locals("station_id").(string); ok && station != "" {
		return station
	}
	return requested
}
