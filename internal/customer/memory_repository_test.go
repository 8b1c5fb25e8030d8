package customer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) WalletLookup {
	return func(_ context.Context, customerID string) (string, error) {
		id, ok := m[customerID]
		if !ok {
			return "", errors.New("no wallet")
		}
		return id, nil
	}
}

func TestResolvePathsConverge(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(lookupFrom(map[string]string{"c1": "w1"}))
	require.NoError(t, repo.Create(ctx, Customer{ID: "c1", Name: "Amina", Phone: "0711000001", IDNumber: "1", Status: StatusActive}))
	require.NoError(t, repo.CreateCard(ctx, Card{ID: "k1", WalletID: "w1", Number: "FN1", Token: "TKN1", Status: StatusActive}))

	byPhone, err := repo.ResolveByPhone(ctx, "0711000001")
	require.NoError(t, err)
	byCard, err := repo.ResolveByCardToken(ctx, "TKN1")
	require.NoError(t, err)

	assert.Equal(t, "w1", byPhone.WalletID)
	assert.Equal(t, byPhone.WalletID, byCard.WalletID)
	assert.Equal(t, StatusActive, byCard.CardStatus)
	assert.Empty(t, byPhone.CardStatus)

	_, err = repo.ResolveByCardToken(ctx, "TKN2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(lookupFrom(nil))
	require.NoError(t, repo.Create(ctx, Customer{ID: "c1", Phone: "0711", IDNumber: "A"}))

	assert.ErrorIs(t, repo.Create(ctx, Customer{ID: "c2", Phone: "0711", IDNumber: "B"}), ErrExists)
	assert.ErrorIs(t, repo.Create(ctx, Customer{ID: "c3", Phone: "0722", IDNumber: "A"}), ErrExists)
}

func TestListAndCount(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(lookupFrom(nil))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, Customer{ID: "c1", Phone: "1", IDNumber: "1", Status: StatusActive, CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, Customer{ID: "c2", Phone: "2", IDNumber: "2", Status: StatusInactive, CreatedAt: base.Add(time.Hour)}))

	list, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].ID)

	n, err := repo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSnapshotRestores(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(lookupFrom(nil))
	restore := repo.Snapshot()
	require.NoError(t, repo.Create(ctx, Customer{ID: "c1", Phone: "1", IDNumber: "1"}))
	restore()

	_, err := repo.FindByPhone(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewCardIdentifiers(t *testing.T) {
	now := time.Now()
	a, b := NewCardNumber(now), NewCardNumber(now)
	assert.True(t, len(a) > 8)
	assert.Equal(t, "FN", a[:2])
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, NewCardToken(), NewCardToken())
}
