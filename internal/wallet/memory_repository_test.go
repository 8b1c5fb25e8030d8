package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(t *testing.T, repo *MemoryRepository, w Wallet) Wallet {
	t.Helper()
	w.ID = uuid.NewString()
	w.CustomerID = uuid.NewString()
	if w.Status == "" {
		w.Status = StatusActive
	}
	w.CreatedAt = time.Now().UTC()
	w.UpdatedAt = w.CreatedAt
	require.NoError(t, repo.Create(context.Background(), w))
	return w
}

func TestPrepaidReserveReleaseDebit(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	w := seed(t, repo, Wallet{CardType: CardPrepaid, AvailableBalance: amt("1000")})

	got, err := repo.Reserve(ctx, w.ID, amt("550"))
	require.NoError(t, err)
	assert.True(t, got.AvailableBalance.Equal(amt("450")))
	assert.True(t, got.ReservedBalance.Equal(amt("550")))

	got, err = repo.Release(ctx, w.ID, amt("550"))
	require.NoError(t, err)
	assert.True(t, got.AvailableBalance.Equal(amt("1000")))
	assert.True(t, got.ReservedBalance.IsZero())

	got, err = repo.Debit(ctx, w.ID, amt("528"))
	require.NoError(t, err)
	assert.True(t, got.AvailableBalance.Equal(amt("472")))
	assert.True(t, got.Balance().Equal(amt("472")))
}

func TestReserveRejections(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	prepaid := seed(t, repo, Wallet{CardType: CardPrepaid, AvailableBalance: amt("100")})
	_, err := repo.Reserve(ctx, prepaid.ID, amt("100.01"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	credit := seed(t, repo, Wallet{CardType: CardCredit, CreditLimit: amt("1000"), UsedCredit: amt("700")})
	_, err = repo.Reserve(ctx, credit.ID, amt("301"))
	assert.ErrorIs(t, err, ErrCreditLimitExceeded)

	suspended := seed(t, repo, Wallet{CardType: CardPrepaid, AvailableBalance: amt("100"), Status: StatusSuspended})
	_, err = repo.Reserve(ctx, suspended.ID, amt("1"))
	assert.ErrorIs(t, err, ErrInactive)

	_, err = repo.Reserve(ctx, uuid.NewString(), amt("1"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Reserve(ctx, prepaid.ID, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreditHoldCountsAgainstLimit(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	w := seed(t, repo, Wallet{CardType: CardCredit, CreditLimit: amt("1000")})

	got, err := repo.Reserve(ctx, w.ID, amt("330"))
	require.NoError(t, err)
	assert.True(t, got.UsedCredit.IsZero())
	assert.True(t, got.AvailableBalance.IsZero())
	assert.True(t, got.Spendable().Equal(amt("670")))
	assert.True(t, got.Balance().Equal(amt("1000")))

	_, err = repo.Reserve(ctx, w.ID, amt("671"))
	assert.ErrorIs(t, err, ErrCreditLimitExceeded)

	_, err = repo.Release(ctx, w.ID, amt("330"))
	require.NoError(t, err)
	got, err = repo.AdjustUsedCredit(ctx, w.ID, amt("330"))
	require.NoError(t, err)
	assert.True(t, got.Balance().Equal(amt("670")))
}

func TestAdjustUsedCreditFloorsAtZero(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	w := seed(t, repo, Wallet{CardType: CardCredit, CreditLimit: amt("1000"), UsedCredit: amt("100")})

	got, err := repo.AdjustUsedCredit(ctx, w.ID, amt("-330"))
	require.NoError(t, err)
	assert.True(t, got.UsedCredit.IsZero())

	_, err = repo.AdjustUsedCredit(ctx, w.ID, amt("1000.01"))
	assert.ErrorIs(t, err, ErrCreditLimitExceeded)
}

func TestCardTypeGuards(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	credit := seed(t, repo, Wallet{CardType: CardCredit, CreditLimit: amt("1000")})
	prepaid := seed(t, repo, Wallet{CardType: CardPrepaid})

	_, err := repo.Debit(ctx, credit.ID, amt("1"))
	assert.ErrorIs(t, err, ErrCardTypeMismatch)
	_, err = repo.Credit(ctx, credit.ID, amt("1"))
	assert.ErrorIs(t, err, ErrCardTypeMismatch)
	_, err = repo.AdjustUsedCredit(ctx, prepaid.ID, amt("1"))
	assert.ErrorIs(t, err, ErrCardTypeMismatch)
	_, err = repo.Release(ctx, prepaid.ID, amt("1"))
	assert.ErrorIs(t, err, ErrHoldExceeded)
}

func TestSnapshotRestore(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	w := seed(t, repo, Wallet{CardType: CardPrepaid, AvailableBalance: amt("50")})

	restore := repo.Snapshot()
	_, err := repo.Debit(ctx, w.ID, amt("20"))
	require.NoError(t, err)
	restore()

	got, err := repo.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.AvailableBalance.Equal(amt("50")))
}

func TestConcurrentReserveNeverOverdraws(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	w := seed(t, repo, Wallet{CardType: CardPrepaid, AvailableBalance: amt("1000")})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Reserve(ctx, w.ID, amt("110")); err == nil {
				mu.Lock()
				approved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, approved)
	assert.NoError(t, got.CheckInvariants())
	assert.True(t, got.AvailableBalance.Equal(amt("10")))
}
