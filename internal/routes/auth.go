package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fuelnow/fuelnow/internal/auth"
)

// RegisterAuthRoutes wires attendant registration and session endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter, jwt fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register", h.Register)
	group.Post("/login", rateLimiter, h.Login)
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", jwt, h.Logout)
	group.Get("/me", jwt, h.Me)
}
