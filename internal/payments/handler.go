package payments

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/binding"
)

// Handler exposes M-Pesa endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type initiateRequest struct {
	Phone  string          `json:"phone" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// Initiate starts an STK push.
func (h *Handler) Initiate(c *fiber.Ctx) error {
	var req initiateRequest
	if err := binding.Body(c, &req); err != nil {
		return err
	}
	res, err := h.service.Initiate(c.UserContext(), req.Phone, req.Amount)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":             true,
		"message":             "M-Pesa payment initiated",
		"checkout_request_id": res.CheckoutRequestID,
		"merchant_request_id": res.MerchantRequestID,
		"customer_message":    res.CustomerMessage,
	})
}

// Callback receives Daraja's result. Business outcomes are acknowledged with
// 200 so the gateway stops retrying; only storage faults return an error.
func (h *Handler) Callback(c *fiber.Ctx) error {
	res, err := h.service.HandleCallback(c.UserContext(), c.Body())
	if err != nil {
		if apperror.IsRetryable(err) {
			return err
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"success": false, "error": apperror.PublicMessage(err)})
	}
	if !res.Paid {
		return c.Status(http.StatusOK).JSON(fiber.Map{"success": false, "message": "Payment failed", "error": res.Reason})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":   true,
		"message":   "Payment processed successfully",
		"receipt":   res.Receipt,
		"duplicate": res.Duplicate,
	})
}
