package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/identity"
)

type fixture struct {
	svc   *Service
	ids   *identity.Service
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	f.ids = identity.NewService(identity.NewMemoryRepository())
	f.svc = NewService(Config{
		Issuer:        "fuelnow",
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}, f.ids)
	f.svc.now = func() time.Time { return f.clock }
	_, err := f.ids.Register(context.Background(), identity.Registration{
		Name: "Wanjiru", Email: "wanjiru@station.co.ke", Password: "pump-attendant", StationID: "STN-001",
	})
	require.NoError(t, err)
	return f
}

func TestLoginIssuesVerifiableTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, "wanjiru@station.co.ke", "pump-attendant")
	require.NoError(t, err)
	assert.Equal(t, int64(900), session.Tokens.ExpiresIn)

	claims, err := f.svc.Verify(ctx, session.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.Attendant.ID, claims.Subject)
	assert.Equal(t, identity.RoleAttendant, claims.Role)
	assert.Equal(t, "STN-001", claims.StationID)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), "wanjiru@station.co.ke", "nope-nope")
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
}

func TestRefreshTokenCannotAuthenticateRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, err := f.svc.Login(ctx, "wanjiru@station.co.ke", "pump-attendant")
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, session.Tokens.RefreshToken)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
	_, err = f.svc.Refresh(ctx, session.Tokens.AccessToken)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

	pair, err := f.svc.Refresh(ctx, session.Tokens.RefreshToken)
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, pair.AccessToken)
	assert.NoError(t, err)
}

func TestAccessTokenExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, err := f.svc.Login(ctx, "wanjiru@station.co.ke", "pump-attendant")
	require.NoError(t, err)

	f.clock = f.clock.Add(16 * time.Minute)
	_, err = f.svc.Verify(ctx, session.Tokens.AccessToken)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

	pair, err := f.svc.Refresh(ctx, session.Tokens.RefreshToken)
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, pair.AccessToken)
	assert.NoError(t, err)
}

func TestLogoutRevokesOutstandingTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, err := f.svc.Login(ctx, "wanjiru@station.co.ke", "pump-attendant")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, session.Attendant.ID))

	_, err = f.svc.Verify(ctx, session.Tokens.AccessToken)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
	_, err = f.svc.Refresh(ctx, session.Tokens.RefreshToken)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

	again, err := f.svc.Login(ctx, "wanjiru@station.co.ke", "pump-attendant")
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, again.Tokens.AccessToken)
	assert.NoError(t, err)

	assert.True(t, apperror.Is(f.svc.Logout(ctx, "missing"), apperror.KindNotFound))
}

func TestTokenSignedWithOtherSecretIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, err := f.svc.Login(ctx, "wanjiru@station.co.ke", "pump-attendant")
	require.NoError(t, err)

	other := NewService(Config{AccessSecret: "different", RefreshSecret: "different"}, f.ids)
	other.now = f.svc.now
	_, err = other.Verify(ctx, session.Tokens.AccessToken)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
}
