package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/identity"
)

// Config holds signing secrets and token lifetimes.
type Config struct {
	Issuer        string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Service issues and verifies attendant tokens. A token is valid only while
// its version matches the attendant's current token version.
type Service struct {
	cfg  Config
	ids  *identity.Service
	repo identity.Repository
	now  func() time.Time
}

// NewService builds the token service on top of the attendant registry.
func NewService(cfg Config, ids *identity.Service) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Service{cfg: cfg, ids: ids, repo: ids.Repository(), now: time.Now}
}

// TokenPair is returned on login and registration.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Session is an authenticated attendant with fresh tokens.
type Session struct {
	Attendant identity.Attendant
	Tokens    TokenPair
}

// Login authenticates by email and password and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	a, err := s.ids.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	pair, err := s.Issue(a)
	if err != nil {
		return Session{}, err
	}
	return Session{Attendant: a, Tokens: pair}, nil
}

// Issue signs an access and refresh token for a.
func (s *Service) Issue(a identity.Attendant) (TokenPair, error) {
	access, err := s.sign(a, tokenAccess, s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, apperror.Wrap(apperror.KindStorage, "auth.Issue", "sign token", err)
	}
	refresh, err := s.sign(a, tokenRefresh, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, apperror.Wrap(apperror.KindStorage, "auth.Issue", "sign token", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.cfg.AccessTTL.Seconds())}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	const op = "auth.Refresh"
	claims, err := parse(refreshToken, s.cfg.RefreshSecret, tokenRefresh, s.now)
	if err != nil {
		return TokenPair{}, apperror.Wrap(apperror.KindUnauthorized, op, "invalid refresh token", err)
	}
	a, err := s.current(ctx, op, claims)
	if err != nil {
		return TokenPair{}, err
	}
	access, err := s.sign(a, tokenAccess, s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, apperror.Wrap(apperror.KindStorage, op, "sign token", err)
	}
	return TokenPair{AccessToken: access, ExpiresIn: int64(s.cfg.AccessTTL.Seconds())}, nil
}

// Verify checks an access token and returns its claims.
func (s *Service) Verify(ctx context.Context, accessToken string) (*Claims, error) {
	const op = "auth.Verify"
	claims, err := parse(accessToken, s.cfg.AccessSecret, tokenAccess, s.now)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnauthorized, op, "invalid token", err)
	}
	if _, err := s.current(ctx, op, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Logout revokes every outstanding token of the attendant.
func (s *Service) Logout(ctx context.Context, attendantID string) error {
	if _, err := s.repo.BumpTokenVersion(ctx, attendantID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return apperror.Wrap(apperror.KindNotFound, "auth.Logout", "attendant not found", err)
		}
		return apperror.Wrap(apperror.KindStorage, "auth.Logout", "storage failure", err)
	}
	return nil
}

func (s *Service) current(ctx context.Context, op string, claims *Claims) (identity.Attendant, error) {
	a, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return identity.Attendant{}, apperror.Wrap(apperror.KindUnauthorized, op, "token invalidated", err)
		}
		return identity.Attendant{}, apperror.Wrap(apperror.KindStorage, op, "storage failure", err)
	}
	if a.TokenVersion != claims.Version {
		return identity.Attendant{}, apperror.New(apperror.KindUnauthorized, op, "token invalidated")
	}
	return a, nil
}

func (s *Service) sign(a identity.Attendant, typ, secret string, ttl time.Duration) (string, error) {
	now := s.now()
	return sign(Claims{
		Role:      a.Role,
		StationID: a.StationID,
		Version:   a.TokenVersion,
		Type:      typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   a.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}, secret)
}
