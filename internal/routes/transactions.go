package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fuelnow/fuelnow/internal/engine"
)

// RegisterTransactionRoutes wires the station purchase flow.
func RegisterTransactionRoutes(r fiber.Router, h *engine.Handler, staff fiber.Handler) {
	group := r.Group("/transactions", staff)
	group.Post("/validate_rider", h.ValidateRider)
	group.Post("/validate_card", h.ValidateCard)
	group.Post("/capture", h.Capture)
	group.Post("/:reservationId/cancel", h.Cancel)
	group.Get("/:reservationId", h.Status)
}
