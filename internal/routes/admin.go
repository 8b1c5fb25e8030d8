package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fuelnow/fuelnow/internal/auth"
	"github.com/fuelnow/fuelnow/internal/engine"
	"github.com/fuelnow/fuelnow/internal/reconciliation"
)

// RegisterAdminRoutes wires back-office reporting and wallet management.
func RegisterAdminRoutes(r fiber.Router, h *reconciliation.Handler, e *engine.Handler, a *auth.Handler, admin fiber.Handler) {
	group := r.Group("/admin", admin)
	group.Get("/reports/daily", h.Daily)
	group.Get("/reports/settlement", h.Settlement)
	group.Get("/dashboard/stats", h.Dashboard)
	group.Get("/ledger/audit", h.Audit)
	group.Post("/wallets/topup", e.TopUp)
	group.Post("/wallets/:walletId/status", e.SetWalletStatus)
	group.Post("/attendants", a.CreateAttendant)
}
