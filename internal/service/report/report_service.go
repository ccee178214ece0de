// internal/service/report/report_service.go
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"parking-service/internal/domain/parking"
	"parking-service/internal/domain/report"
	"parking-service/internal/pkg/clock"
	xerrors "parking-service/internal/pkg/errors"
	"parking-service/internal/service/billing"

	"go.uber.org/zap"
	"gopkg.in/guregu/null.v4"
)

const (
	ticketListLimit = 100
	trendDays       = 7
)

// ReportService derives read-only views from ticket and payment history.
type ReportService struct {
	reader parking.Reader
	fees   *billing.Calculator
	clock  clock.Clock
	logger *zap.Logger
}

func NewReportService(reader parking.Reader, fees *billing.Calculator, clk clock.Clock, logger *zap.Logger) *ReportService {
	return &ReportService{
		reader: reader,
		fees:   fees,
		clock:  clk,
		logger: logger,
	}
}

// DashboardSummary returns spot capacity overall, per lot and per size.
func (s *ReportService) DashboardSummary(ctx context.Context) (*report.DashboardSummary, error) {
	lots, err := s.reader.ListLots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	spots, err := s.reader.ListSpots(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list spots: %w", err)
	}

	lotNames := make(map[int64]string, len(lots))
	for _, l := range lots {
		lotNames[l.ID] = l.Name
	}

	summary := &report.DashboardSummary{
		BreakdownByLot:  make(map[string]report.Capacity),
		BreakdownBySize: make(map[string]report.Capacity),
	}

	for _, spot := range spots {
		occupied := spot.Status == parking.SpotOccupied

		summary.TotalSpots++
		if occupied {
			summary.OccupiedSpots++
		}

		lotName := lotNames[spot.LotID]
		summary.BreakdownByLot[lotName] = addSpot(summary.BreakdownByLot[lotName], occupied)
		summary.BreakdownBySize[string(spot.Size)] = addSpot(summary.BreakdownBySize[string(spot.Size)], occupied)
	}
	summary.AvailableSpots = summary.TotalSpots - summary.OccupiedSpots

	return summary, nil
}

func addSpot(c report.Capacity, occupied bool) report.Capacity {
	c.Total++
	if occupied {
		c.Occupied++
	} else {
		c.Available++
	}
	return c
}

// DashboardTrends counts entries and exits per UTC day over the last week,
// today included.
func (s *ReportService) DashboardTrends(ctx context.Context) (*report.DashboardTrends, error) {
	now := s.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	first := today.AddDate(0, 0, -(trendDays - 1))
	last := today.AddDate(0, 0, 1).Add(-time.Nanosecond)

	entered, err := s.reader.ListTicketViews(ctx, &parking.TicketFilter{EntryFrom: &first, EntryTo: &last})
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	exited, err := s.reader.ListTicketViews(ctx, &parking.TicketFilter{ExitFrom: &first, ExitTo: &last})
	if err != nil {
		return nil, fmt.Errorf("failed to load exits: %w", err)
	}

	trends := &report.DashboardTrends{
		Labels:      make([]string, trendDays),
		Dates:       make([]string, trendDays),
		EntriesData: make([]int, trendDays),
		ExitsData:   make([]int, trendDays),
	}
	for i := 0; i < trendDays; i++ {
		day := first.AddDate(0, 0, i)
		trends.Labels[i] = day.Format("Mon")
		trends.Dates[i] = day.Format("2006-01-02")
	}

	dayIndex := func(t time.Time) int {
		return int(t.UTC().Sub(first) / (24 * time.Hour))
	}
	for _, t := range entered {
		if i := dayIndex(t.EntryTime); i >= 0 && i < trendDays {
			trends.EntriesData[i]++
		}
	}
	for _, t := range exited {
		if !t.ExitTime.Valid {
			continue
		}
		if i := dayIndex(t.ExitTime.Time); i >= 0 && i < trendDays {
			trends.ExitsData[i]++
		}
	}

	return trends, nil
}

// LotMap returns every spot of a lot in spot order.
func (s *ReportService) LotMap(ctx context.Context, lotID int64) (*report.LotMap, error) {
	lot, err := s.reader.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}

	spots, err := s.reader.ListSpots(ctx, &parking.SpotFilter{LotID: &lotID})
	if err != nil {
		return nil, fmt.Errorf("failed to list spots: %w", err)
	}
	if spots == nil {
		spots = []parking.Spot{}
	}

	return &report.LotMap{LotID: lot.ID, LotName: lot.Name, Spots: spots}, nil
}

// ListTickets returns at most 100 tickets. Active tickets carry their
// live fee in TotalAmount.
func (s *ReportService) ListTickets(ctx context.Context, q *report.TicketQuery) ([]parking.TicketView, error) {
	filter := &parking.TicketFilter{Limit: ticketListLimit}

	if q != nil {
		if q.Status != "" {
			status := parking.TicketStatus(strings.ToLower(strings.TrimSpace(q.Status)))
			switch status {
			case parking.TicketActive, parking.TicketPaid, parking.TicketExpired:
			default:
				return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "unknown ticket status "+q.Status)
			}
			filter.Statuses = []parking.TicketStatus{status}
		}
		filter.VehicleNumber = strings.TrimSpace(q.VehicleNumber)
		filter.SpotID = q.SpotID

		switch q.SortBy {
		case "", "entry_time_desc":
		case "entry_time_asc":
			filter.SortAsc = true
		default:
			return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "unknown sort order "+q.SortBy)
		}
	}

	views, err := s.reader.ListTicketViews(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	now := s.clock.Now()
	for i := range views {
		if views[i].Status == parking.TicketActive {
			views[i].TotalAmount = null.FloatFrom(s.liveFee(&views[i], now))
		}
	}
	if views == nil {
		views = []parking.TicketView{}
	}
	return views, nil
}

// TicketDetail returns one ticket with its payment, if any.
func (s *ReportService) TicketDetail(ctx context.Context, ticketID int64) (*report.TicketDetail, error) {
	view, err := s.reader.GetTicketView(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	detail := &report.TicketDetail{TicketView: *view}

	end := s.clock.Now()
	if view.ExitTime.Valid {
		end = view.ExitTime.Time
	}
	detail.DurationMinutes = int(end.Sub(view.EntryTime) / time.Minute)

	if view.Status == parking.TicketActive {
		detail.CurrentFee = null.FloatFrom(s.fees.Fee(detail.DurationMinutes, view.VehicleType))
		return detail, nil
	}

	payment, err := s.reader.GetPaymentByTicket(ctx, ticketID)
	if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	detail.Payment = payment

	return detail, nil
}

// RevenueReport sums payments with a transaction time in [from, to].
// Revenue per lot uses the base fee, penalties are reported apart.
func (s *ReportService) RevenueReport(ctx context.Context, from, to time.Time) (*report.RevenueReport, error) {
	if to.Before(from) {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "end date is before start date")
	}

	payments, err := s.reader.ListPaymentViews(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	rep := &report.RevenueReport{
		ReportPeriod:           report.Period{StartDate: from, EndDate: to},
		RevenueByPaymentMethod: make(map[string]float64),
		RevenueByLot:           make(map[string]float64),
	}

	for _, p := range payments {
		rep.TotalTransactions++
		rep.TotalRevenue += p.TotalAmount
		rep.RevenueByPaymentMethod[p.PaymentMethod] += p.TotalAmount
		if p.LotName.Valid {
			rep.RevenueByLot[p.LotName.String] += p.BaseFee
		}
		if p.PenaltyAmount.Valid {
			rep.RevenueFromPenalties += p.PenaltyAmount.Float64
		}
	}
	if rep.TotalTransactions > 0 {
		rep.AverageTicket = rep.TotalRevenue / float64(rep.TotalTransactions)
	}

	return rep, nil
}

// OccupancyReport covers tickets that entered in [from, to].
func (s *ReportService) OccupancyReport(ctx context.Context, from, to time.Time) (*report.OccupancyReport, error) {
	if to.Before(from) {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "end date is before start date")
	}

	views, err := s.reader.ListTicketViews(ctx, &parking.TicketFilter{EntryFrom: &from, EntryTo: &to, SortAsc: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	rep := &report.OccupancyReport{
		ReportPeriod:                 report.Period{StartDate: from, EndDate: to},
		PeakHoursData:                make(map[int]int),
		OccupancyByLot:               make(map[string]int),
		AverageDurationByVehicleType: make(map[string]float64),
	}

	type acc struct {
		minutes float64
		n       int
	}
	durations := make(map[string]*acc)

	for _, v := range views {
		rep.PeakHoursData[v.EntryTime.UTC().Hour()]++
		rep.OccupancyByLot[v.LotName]++

		if !v.ExitTime.Valid {
			continue
		}
		a, ok := durations[string(v.VehicleType)]
		if !ok {
			a = &acc{}
			durations[string(v.VehicleType)] = a
		}
		a.minutes += v.ExitTime.Time.Sub(v.EntryTime).Minutes()
		a.n++
	}

	for vtype, a := range durations {
		rep.AverageDurationByVehicleType[vtype] = a.minutes / float64(a.n)
	}

	return rep, nil
}

func (s *ReportService) liveFee(v *parking.TicketView, now time.Time) float64 {
	minutes := int(now.Sub(v.EntryTime) / time.Minute)
	return s.fees.Fee(minutes, v.VehicleType)
}
