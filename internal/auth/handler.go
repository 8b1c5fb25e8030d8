package auth

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/binding"
	"github.com/fuelnow/fuelnow/internal/identity"
)

// Handler exposes attendant registration and session endpoints.
type Handler struct {
	ids *identity.Service
	svc *Service
}

// NewHandler builds the auth HTTP handler.
func NewHandler(ids *identity.Service, svc *Service) *Handler {
	return &Handler{ids: ids, svc: svc}
}

type registerRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	StationID string `json:"station_id"`
	Role      string `json:"role" validate:"omitempty,oneof=attendant admin"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type attendantResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	StationID string     `json:"station_id,omitempty"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

type sessionResponse struct {
	Attendant attendantResponse `json:"attendant"`
	TokenPair
}

// Register creates an attendant account and signs it in.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := binding.Body(c, &req); err != nil {
		return err
	}
	a, err := h.ids.Register(c.UserContext(), identity.Registration{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		StationID: req.StationID,
	})
	if err != nil {
		return err
	}
	pair, err := h.svc.Issue(a)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(sessionResponse{Attendant: toAttendantResponse(a), TokenPair: pair})
}

// CreateAttendant lets an administrator create an account with any role.
func (h *Handler) CreateAttendant(c *fiber.Ctx) error {
	var req registerRequest
	if err := binding.Body(c, &req); err != nil {
		return err
	}
	a, err := h.ids.Register(c.UserContext(), identity.Registration{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		StationID: req.StationID,
		Role:      req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toAttendantResponse(a))
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := binding.Body(c, &req); err != nil {
		return err
	}
	session, err := h.svc.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(sessionResponse{Attendant: toAttendantResponse(session.Attendant), TokenPair: session.Tokens})
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := binding.Body(c, &req); err != nil {
		return err
	}
	pair, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": pair.AccessToken, "expires_in": pair.ExpiresIn})
}

// Logout invalidates the caller's tokens.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return apperror.New(apperror.KindUnauthorized, "auth.Logout", "unauthorized")
	}
	if err := h.svc.Logout(c.UserContext(), uid); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

// Me returns the signed-in attendant.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	a, err := h.ids.Repository().FindByID(c.UserContext(), uid)
	if err != nil {
		return apperror.Wrap(apperror.KindUnauthorized, "auth.Me", "attendant not found", err)
	}
	return c.Status(http.StatusOK).JSON(toAttendantResponse(a))
}

func toAttendantResponse(a identity.Attendant) attendantResponse {
	return attendantResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		StationID: a.StationID,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		LastLogin: a.LastLogin,
	}
}
