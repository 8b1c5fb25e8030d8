// Package reconciliation aggregates completed purchases into per-station
// settlement reports. It only reads.
package reconciliation

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/store"
)

// DateLayout is the calendar date format accepted by reports.
const DateLayout = "2006-01-02"

// StationRow is one station's totals for a day.
type StationRow struct {
	StationID    string
	Transactions int
	Amount       decimal.Decimal
	Interest     decimal.Decimal
	Litres       decimal.Decimal
	// Settlement is Amount less Interest; the interest is retained by the operator.
	Settlement decimal.Decimal
}

// Report is the daily station breakdown with grand totals.
type Report struct {
	Date     string
	From     time.Time
	To       time.Time
	Stations []StationRow
	Totals   StationRow
}

// Stats backs the admin dashboard.
type Stats struct {
	ActiveCustomers   int
	TodayTransactions int
	TodayRevenue      decimal.Decimal
	OpenReservations  int
}

// Discrepancy is a wallet whose latest ledger balance disagrees with its counters.
type Discrepancy struct {
	WalletID      string
	LedgerBalance decimal.Decimal
	WalletBalance decimal.Decimal
}

// Service produces reports.
type Service struct {
	uow store.UnitOfWork
	loc *time.Location
	now func() time.Time
}

// NewService builds a report service; days are cut in loc.
func NewService(uow store.UnitOfWork, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{uow: uow, loc: loc, now: time.Now}
}

// ParseDate reads a YYYY-MM-DD date in the report timezone. An empty string
// means today.
func (s *Service) ParseDate(value string) (time.Time, error) {
	if value == "" {
		y, m, d := s.now().In(s.loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, s.loc), nil
	}
	t, err := time.ParseInLocation(DateLayout, value, s.loc)
	if err != nil {
		return time.Time{}, apperror.Wrap(apperror.KindInvalidInput, "reconciliation.ParseDate", "date must be YYYY-MM-DD", err)
	}
	return t, nil
}

func (s *Service) window(date time.Time) (time.Time, time.Time) {
	y, m, d := date.In(s.loc).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return from, from.AddDate(0, 0, 1)
}

// DailyReport groups completed purchases whose completion falls on date.
func (s *Service) DailyReport(ctx context.Context, date time.Time) (Report, error) {
	from, to := s.window(date)
	report := Report{
		Date:   from.Format(DateLayout),
		From:   from,
		To:     to,
		Totals: StationRow{StationID: "TOTAL"},
	}
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		summaries, err := repos.Transactions.SummarizeByStation(ctx, from, to)
		if err != nil {
			return err
		}
		report.Stations = make([]StationRow, 0, len(summaries))
		for _, sum := range summaries {
			row := StationRow{
				StationID:    sum.StationID,
				Transactions: sum.Count,
				Amount:       sum.Amount,
				Interest:     sum.Interest,
				Litres:       sum.Litres,
				Settlement:   sum.Amount.Sub(sum.Interest),
			}
			report.Stations = append(report.Stations, row)
			report.Totals.Transactions += row.Transactions
			report.Totals.Amount = report.Totals.Amount.Add(row.Amount)
			report.Totals.Interest = report.Totals.Interest.Add(row.Interest)
			report.Totals.Litres = report.Totals.Litres.Add(row.Litres)
			report.Totals.Settlement = report.Totals.Settlement.Add(row.Settlement)
		}
		return nil
	})
	if err != nil {
		return Report{}, apperror.Wrap(apperror.KindStorage, "reconciliation.DailyReport", "storage failure", err)
	}
	return report, nil
}

// SettlementHeader is the first line of every export.
var SettlementHeader = []string{"Station ID", "Transactions", "Amount", "Interest", "Litres", "Settlement Amount"}

// SettlementExport renders the daily report as CSV: a header, one row per
// station and a TOTAL row, each terminated by a newline.
func (s *Service) SettlementExport(ctx context.Context, date time.Time) ([]byte, error) {
	report, err := s.DailyReport(ctx, date)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	records := make([][]string, 0, len(report.Stations)+2)
	records = append(records, SettlementHeader)
	for _, row := range report.Stations {
		records = append(records, record(row))
	}
	records = append(records, record(report.Totals))
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write settlement csv: %w", err)
	}
	return buf.Bytes(), nil
}

func record(row StationRow) []string {
	return []string{
		row.StationID,
		fmt.Sprint(row.Transactions),
		row.Amount.String(),
		row.Interest.String(),
		row.Litres.String(),
		row.Settlement.String(),
	}
}

// DashboardStats summarizes today's activity.
func (s *Service) DashboardStats(ctx context.Context) (Stats, error) {
	from, to := s.window(s.now())
	var stats Stats
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		active, err := repos.Customers.CountActive(ctx)
		if err != nil {
			return err
		}
		activity, err := repos.Transactions.Activity(ctx, from, to)
		if err != nil {
			return err
		}
		stats = Stats{
			ActiveCustomers:   active,
			TodayTransactions: activity.Transactions,
			TodayRevenue:      activity.Interest,
			OpenReservations:  activity.OpenHolds,
		}
		return nil
	})
	if err != nil {
		return Stats{}, apperror.Wrap(apperror.KindStorage, "reconciliation.DashboardStats", "storage failure", err)
	}
	return stats, nil
}

// AuditLedger lists wallets whose latest ledger balance differs from the
// balance computed from the wallet row.
func (s *Service) AuditLedger(ctx context.Context) ([]Discrepancy, error) {
	var out []Discrepancy
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		wallets, err := repos.Wallets.List(ctx)
		if err != nil {
			return err
		}
		for _, w := range wallets {
			bal, err := repos.Ledger.CurrentBalance(ctx, w.ID)
			if err != nil {
				return err
			}
			if !bal.Equal(w.Balance()) {
				out = append(out, Discrepancy{WalletID: w.ID, LedgerBalance: bal, WalletBalance: w.Balance()})
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindStorage, "reconciliation.AuditLedger", "storage failure", err)
	}
	return out, nil
}
