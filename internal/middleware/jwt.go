package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/auth"
)

// Locals keys set by JWTAuth.
const (
	LocalUserID    = "user_id"
	LocalRole      = "role"
	LocalStationID = "station_id"
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (*auth.Claims, error)
}

// JWTAuth validates the bearer access token and exposes the attendant's
// id, role and station to handlers.
func JWTAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < 7 || !strings.EqualFold(authz[:7], "bearer ") {
			return apperror.New(apperror.KindUnauthorized, "middleware.JWTAuth", "missing bearer token")
		}
		claims, err := verifier.Verify(c.UserContext(), strings.TrimSpace(authz[7:]))
		if err != nil {
			return err
		}
		c.Locals(LocalUserID, claims.Subject)
		c.Locals(LocalRole, claims.Role)
		c.Locals(LocalStationID, claims.StationID)
		return c.Next()
	}
}

// RequireRole rejects callers whose token carries none of roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalRole).(string)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return apperror.New(apperror.KindForbidden, "middleware.RequireRole", "insufficient role")
	}
}
