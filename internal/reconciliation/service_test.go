package reconciliation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/ledger"
	"github.com/fuelnow/fuelnow/internal/store"
	"github.com/fuelnow/fuelnow/internal/transaction"
	"github.com/fuelnow/fuelnow/internal/wallet"
)

var eat = time.FixedZone("EAT", 3*60*60)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func purchase(t *testing.T, mem *store.Memory, station, amount, interest, litres string, status transaction.Status, completedAt time.Time) {
	t.Helper()
	tx := transaction.Transaction{
		ID:               uuid.NewString(),
		WalletID:         "w1",
		Type:             transaction.TypeFuelPurchase,
		Amount:           d(amount),
		InterestAmount:   d(interest),
		TotalAmount:      d(amount).Add(d(interest)),
		HoldAmount:       d(amount).Add(d(interest)),
		StationID:        station,
		AttendantID:      "att-1",
		Status:           status,
		ReservationToken: transaction.NewReservationToken(),
		CreatedAt:        completedAt.Add(-10 * time.Minute),
	}
	if status == transaction.StatusCompleted {
		tx.FinalAmount = decimal.NewNullDecimal(d(amount))
		tx.CompletedAt = &completedAt
		if litres != "" {
			tx.Litres = decimal.NewNullDecimal(d(litres))
		}
	}
	require.NoError(t, mem.Transactions.Create(context.Background(), tx))
}

func seedDay(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, eat)
	purchase(t, mem, "STN-002", "350", "35", "", transaction.StatusCompleted, day.Add(14*time.Hour))
	purchase(t, mem, "STN-001", "400", "40", "2.5", transaction.StatusCompleted, day.Add(1*time.Minute))
	purchase(t, mem, "STN-001", "999", "99.9", "", transaction.StatusCompleted, day.AddDate(0, 0, 1))
	purchase(t, mem, "STN-001", "100", "10", "", transaction.StatusCompleted, day.Add(-time.Second))
	purchase(t, mem, "STN-003", "100", "10", "", transaction.StatusReserved, day.Add(2*time.Hour))
	svc := NewService(mem, eat)
	svc.now = func() time.Time { return day.Add(15 * time.Hour) }
	return svc, mem
}

func TestDailyReportGroupsByStation(t *testing.T) {
	svc, _ := seedDay(t)
	date, err := svc.ParseDate("2024-03-15")
	require.NoError(t, err)

	report, err := svc.DailyReport(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, report.Stations, 2)
	assert.Equal(t, "STN-001", report.Stations[0].StationID)
	assert.Equal(t, "STN-002", report.Stations[1].StationID)

	assert.Equal(t, 2, report.Totals.Transactions)
	assert.True(t, report.Totals.Amount.Equal(d("750")))
	assert.True(t, report.Totals.Interest.Equal(d("75")))
	assert.True(t, report.Totals.Settlement.Equal(d("675")))
	assert.True(t, report.Stations[0].Settlement.Equal(d("360")))

	again, err := svc.DailyReport(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, report.Totals.Amount.String(), again.Totals.Amount.String())
	assert.Equal(t, len(report.Stations), len(again.Stations))
}

func TestSettlementExport(t *testing.T) {
	svc, _ := seedDay(t)
	date, err := svc.ParseDate("2024-03-15")
	require.NoError(t, err)

	out, err := svc.SettlementExport(context.Background(), date)
	require.NoError(t, err)
	want := "Station ID,Transactions,Amount,Interest,Litres,Settlement Amount\n" +
		"STN-001,1,400,40,2.5,360\n" +
		"STN-002,1,350,35,0,315\n" +
		"TOTAL,2,750,75,2.5,675\n"
	assert.Equal(t, want, string(out))
}

func TestSettlementExportEmptyDay(t *testing.T) {
	svc := NewService(store.NewMemory(), eat)
	date, err := svc.ParseDate("2024-01-01")
	require.NoError(t, err)
	out, err := svc.SettlementExport(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, "Station ID,Transactions,Amount,Interest,Litres,Settlement Amount\nTOTAL,0,0,0,0,0\n", string(out))
}

func TestParseDate(t *testing.T) {
	svc, _ := seedDay(t)
	_, err := svc.ParseDate("15/03/2024")
	assert.True(t, apperror.Is(err, apperror.KindInvalidInput))

	today, err := svc.ParseDate("")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", today.Format(DateLayout))
}

func TestDashboardStats(t *testing.T) {
	svc, _ := seedDay(t)
	stats, err := svc.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.OpenReservations)
	assert.True(t, stats.TodayRevenue.Equal(d("75")))
	assert.Equal(t, 0, stats.ActiveCustomers)
}

func TestAuditLedger(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	good := wallet.Wallet{ID: "w-good", CustomerID: "c1", CardType: wallet.CardPrepaid, AvailableBalance: d("100"), Status: wallet.StatusActive}
	bad := wallet.Wallet{ID: "w-bad", CustomerID: "c2", CardType: wallet.CardCredit, CreditLimit: d("1000"), UsedCredit: d("200"), Status: wallet.StatusActive}
	require.NoError(t, mem.Wallets.Create(ctx, good))
	require.NoError(t, mem.Wallets.Create(ctx, bad))
	_, err := mem.Ledger.Append(ctx, ledger.Entry{WalletID: "w-good", Credit: d("100"), Balance: d("100")})
	require.NoError(t, err)
	_, err = mem.Ledger.Append(ctx, ledger.Entry{WalletID: "w-bad", Credit: d("1000"), Balance: d("1000")})
	require.NoError(t, err)

	list, err := NewService(mem, eat).AuditLedger(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "w-bad", list[0].WalletID)
	assert.True(t, list[0].WalletBalance.Equal(d("800")))
}

func TestSettlementHandler(t *testing.T) {
	svc, _ := seedDay(t)
	app := fiber.New()
	app.Get("/settlement", NewHandler(svc).Settlement)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/settlement?date=2024-03-15", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "attachment; filename=settlement-2024-03-15.csv", resp.Header.Get("Content-Disposition"))
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "TOTAL,2,750,75,2.5,675\n")
}
