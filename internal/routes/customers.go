package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fuelnow/fuelnow/internal/engine"
	"github.com/fuelnow/fuelnow/internal/onboarding"
)

// RegisterCustomerRoutes wires onboarding and customer lookups.
func RegisterCustomerRoutes(r fiber.Router, h *onboarding.Handler, e *engine.Handler, staff, admin fiber.Handler) {
	group := r.Group("/customers")
	group.Post("/", staff, h.Onboard)
	group.Get("/", admin, h.List)
	group.Get("/:phone", staff, h.Lookup)
	group.Get("/:phone/ledger", staff, h.Ledger)
	group.Get("/:phone/transactions", staff, e.History)
}
