package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fuelnow/fuelnow/internal/engine"
	"github.com/fuelnow/fuelnow/internal/payments"
)

// RegisterPaymentCallbackRoute exposes the unauthenticated M-Pesa result URL.
func RegisterPaymentCallbackRoute(r fiber.Router, h *payments.Handler) {
	r.Post("/payments/mpesa/callback", h.Callback)
}

// RegisterPaymentRoutes wires repayment endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, e *engine.Handler, staff, admin fiber.Handler) {
	group := r.Group("/payments")
	group.Post("/repay", admin, e.Repay)
	group.Post("/mpesa/initiate", staff, h.Initiate)
}
