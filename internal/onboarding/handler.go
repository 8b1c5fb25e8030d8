package onboarding

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/fuelnow/fuelnow/internal/binding"
	"github.com/fuelnow/fuelnow/internal/customer"
	"github.com/fuelnow/fuelnow/internal/ledger"
	"github.com/fuelnow/fuelnow/internal/wallet"
)

// Handler exposes customer endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a customer HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type onboardRequest struct {
	Name        string          `json:"name" validate:"required"`
	Phone       string          `json:"phone" validate:"required,min=9"`
	IDNumber    string          `json:"id_number" validate:"required"`
	NextOfKin   string          `json:"next_of_kin"`
	CardType    string          `json:"card_type" validate:"required,oneof=prepaid credit"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

type customerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	IDNumber  string    `json:"id_number"`
	NextOfKin string    `json:"next_of_kin,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type accountResponse struct {
	Customer customerResponse `json:"customer"`
	Wallet   fiber.Map        `json:"wallet"`
	Card     *cardResponse    `json:"card,omitempty"`
}

type cardResponse struct {
	CardNumber string `json:"card_number"`
	CardToken  string `json:"card_token"`
	Status     string `json:"status"`
}

type entryResponse struct {
	TransactionID string          `json:"transaction_id,omitempty"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Balance       decimal.Decimal `json:"balance"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Onboard registers a customer.
func (h *Handler) Onboard(c *fiber.Ctx) error {
	var req onboardRequest
	if err := binding.Body(c, &req); err != nil {
		return err
	}
	acct, err := h.service.Onboard(c.UserContext(), Input{
		Name:        req.Name,
		Phone:       req.Phone,
		IDNumber:    req.IDNumber,
		NextOfKin:   req.NextOfKin,
		CardType:    wallet.CardType(req.CardType),
		CreditLimit: req.CreditLimit,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toAccountResponse(acct))
}

// Lookup returns a customer with wallet and card.
func (h *Handler) Lookup(c *fiber.Ctx) error {
	acct, err := h.service.Lookup(c.UserContext(), c.Params("phone"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toAccountResponse(acct))
}

// List returns customers.
func (h *Handler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	list, err := h.service.List(c.UserContext(), limit)
	if err != nil {
		return err
	}
	out := make([]customerResponse, 0, len(list))
	for _, cu := range list {
		out = append(out, toCustomerResponse(cu))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"customers": out})
}

// Ledger returns a customer's ledger history, newest first.
func (h *Handler) Ledger(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	entries, err := h.service.Ledger(c.UserContext(), c.Params("phone"), limit)
	if err != nil {
		return err
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"entries": out})
}

func toAccountResponse(acct Account) accountResponse {
	w := acct.Wallet
	out := accountResponse{
		Customer: toCustomerResponse(acct.Customer),
		Wallet: fiber.Map{
			"id":                w.ID,
			"card_type":         w.CardType,
			"credit_limit":      w.CreditLimit,
			"available_balance": w.AvailableBalance,
			"reserved_balance":  w.ReservedBalance,
			"used_credit":       w.UsedCredit,
			"remaining_limit":   w.Spendable(),
			"status":            w.Status,
		},
	}
	if acct.Card.ID != "" {
		out.Card = &cardResponse{CardNumber: acct.Card.Number, CardToken: acct.Card.Token, Status: acct.Card.Status}
	}
	return out
}

func toCustomerResponse(cu customer.Customer) customerResponse {
	return customerResponse{
		ID:        cu.ID,
		Name:      cu.Name,
		Phone:     cu.Phone,
		IDNumber:  cu.IDNumber,
		NextOfKin: cu.NextOfKin,
		Status:    cu.Status,
		CreatedAt: cu.CreatedAt,
	}
}

func toEntryResponse(e ledger.Entry) entryResponse {
	return entryResponse{
		TransactionID: e.TransactionID,
		Debit:         e.Debit,
		Credit:        e.Credit,
		Balance:       e.Balance,
		Description:   e.Description,
		CreatedAt:     e.CreatedAt,
	}
}
