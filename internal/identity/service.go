package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fuelnow/fuelnow/internal/apperror"
)

const minPasswordLength = 8

// Service manages attendant accounts.
type Service struct {
	repo Repository
	cost int
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// Repository returns the underlying store.
func (s *Service) Repository() Repository {
	return s.repo
}

// Register creates an account with a bcrypt password hash. An empty role
// means attendant.
func (s *Service) Register(ctx context.Context, reg Registration) (Attendant, error) {
	const op = "identity.Register"
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	if reg.Name == "" || reg.Email == "" {
		return Attendant{}, apperror.New(apperror.KindInvalidInput, op, "name and email are required")
	}
	if len(reg.Password) < minPasswordLength {
		return Attendant{}, apperror.New(apperror.KindInvalidInput, op, "password must be at least 8 characters")
	}
	if reg.Role == "" {
		reg.Role = RoleAttendant
	}
	if reg.Role != RoleAttendant && reg.Role != RoleAdmin {
		return Attendant{}, apperror.New(apperror.KindInvalidInput, op, "role must be attendant or admin")
	}
	if reg.Role == RoleAttendant && reg.StationID == "" {
		return Attendant{}, apperror.New(apperror.KindInvalidInput, op, "station_id is required for attendants")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return Attendant{}, apperror.Wrap(apperror.KindStorage, op, "hash password", err)
	}
	a := Attendant{
		ID:           uuid.NewString(),
		Name:         reg.Name,
		Email:        reg.Email,
		PasswordHash: hash,
		StationID:    reg.StationID,
		Role:         reg.Role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, ErrExists) {
			return Attendant{}, apperror.Wrap(apperror.KindConflict, op, "attendant already exists", err)
		}
		return Attendant{}, apperror.Wrap(apperror.KindStorage, op, "storage failure", err)
	}
	return a, nil
}

// Authenticate verifies credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Attendant, error) {
	const op = "identity.Authenticate"
	a, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Attendant{}, apperror.Wrap(apperror.KindUnauthorized, op, "invalid credentials", ErrInvalidCredentials)
		}
		return Attendant{}, apperror.Wrap(apperror.KindStorage, op, "storage failure", err)
	}
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return Attendant{}, apperror.Wrap(apperror.KindUnauthorized, op, "invalid credentials", ErrInvalidCredentials)
	}
	now := time.Now().UTC()
	if err := s.repo.TouchLastLogin(ctx, a.ID, now); err == nil {
		a.LastLogin = &now
	}
	return a, nil
}

// EnsureAdmin creates the bootstrap administrator if the email is unused.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.Register(ctx, Registration{Name: name, Email: email, Password: password, Role: RoleAdmin})
	if apperror.Is(err, apperror.KindConflict) {
		return nil
	}
	return err
}
