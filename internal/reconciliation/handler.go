package reconciliation

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes admin reporting endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds the reporting handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type rowResponse struct {
	StationID    string          `json:"station_id"`
	Transactions int             `json:"transactions"`
	Amount       decimal.Decimal `json:"amount"`
	Interest     decimal.Decimal `json:"interest"`
	Litres       decimal.Decimal `json:"litres"`
	Settlement   decimal.Decimal `json:"settlement_amount"`
}

// Daily returns the station breakdown for ?date=YYYY-MM-DD.
func (h *Handler) Daily(c *fiber.Ctx) error {
	date, err := h.service.ParseDate(c.Query("date"))
	if err != nil {
		return err
	}
	report, err := h.service.DailyReport(c.UserContext(), date)
	if err != nil {
		return err
	}
	stations := make([]rowResponse, 0, len(report.Stations))
	for _, row := range report.Stations {
		stations = append(stations, toRow(row))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"date":     report.Date,
		"stations": stations,
		"totals":   toRow(report.Totals),
	})
}

// Settlement downloads the settlement CSV.
func (h *Handler) Settlement(c *fiber.Ctx) error {
	date, err := h.service.ParseDate(c.Query("date"))
	if err != nil {
		return err
	}
	body, err := h.service.SettlementExport(c.UserContext(), date)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=settlement-%s.csv", date.Format(DateLayout)))
	return c.Status(http.StatusOK).Send(body)
}

// Dashboard returns today's headline numbers.
func (h *Handler) Dashboard(c *fiber.Ctx) error {
	stats, err := h.service.DashboardStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"active_customers":   stats.ActiveCustomers,
		"today_transactions": stats.TodayTransactions,
		"today_revenue":      stats.TodayRevenue,
		"open_reservations":  stats.OpenReservations,
	})
}

// Audit lists ledger/wallet disagreements.
func (h *Handler) Audit(c *fiber.Ctx) error {
	list, err := h.service.AuditLedger(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(list))
	for _, d := range list {
		out = append(out, fiber.Map{
			"wallet_id":      d.WalletID,
			"ledger_balance": d.LedgerBalance,
			"wallet_balance": d.WalletBalance,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"consistent": len(out) == 0, "discrepancies": out})
}

func toRow(r StationRow) rowResponse {
	return rowResponse{
		StationID:    r.StationID,
		Transactions: r.Transactions,
		Amount:       r.Amount,
		Interest:     r.Interest,
		Litres:       r.Litres,
		Settlement:   r.Settlement,
	}
}
