// internal/domain/report/dto.go
package report

import (
	"time"

	"parking-service/internal/domain/parking"

	"gopkg.in/guregu/null.v4"
)

type Capacity struct {
	Total     int `json:"total"`
	Occupied  int `json:"occupied"`
	Available int `json:"available"`
}

type DashboardSummary struct {
	TotalSpots      int                 `json:"total_spots"`
	OccupiedSpots   int                 `json:"occupied_spots"`
	AvailableSpots  int                 `json:"available_spots"`
	BreakdownByLot  map[string]Capacity `json:"breakdown_by_lot"`
	BreakdownBySize map[string]Capacity `json:"breakdown_by_size"`
}

type DashboardTrends struct {
	Labels      []string `json:"labels"`
	Dates       []string `json:"dates"`
	EntriesData []int    `json:"entries_data"`
	ExitsData   []int    `json:"exits_data"`
}

type LotMap struct {
	LotID   int64          `json:"lot_id"`
	LotName string         `json:"lot_name"`
	Spots   []parking.Spot `json:"spots_array"`
}

// TicketQuery filters the admin ticket list.
type TicketQuery struct {
	Status        string `form:"status"`
	VehicleNumber string `form:"vehicle_number"`
	SpotID        *int64 `form:"spot_id"`
	SortBy        string `form:"sort_by"` // entry_time_desc (default), entry_time_asc
}

type TicketDetail struct {
	parking.TicketView
	DurationMinutes int                  `json:"duration_minutes"`
	CurrentFee      null.Float           `json:"current_fee"`
	Payment         *parking.PaymentView `json:"payment,omitempty"`
}

type Period struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type RevenueReport struct {
	ReportPeriod           Period             `json:"report_period"`
	TotalRevenue           float64            `json:"total_revenue"`
	TotalTransactions      int                `json:"total_transactions"`
	AverageTicket          float64            `json:"average_ticket"`
	RevenueByPaymentMethod map[string]float64 `json:"revenue_by_payment_method"`
	RevenueByLot           map[string]float64 `json:"revenue_by_lot"`
	RevenueFromPenalties   float64            `json:"revenue_from_penalties"`
}

type OccupancyReport struct {
	ReportPeriod                 Period             `json:"report_period"`
	PeakHoursData                map[int]int        `json:"peak_hours_data"`
	OccupancyByLot               map[string]int     `json:"occupancy_by_lot"`
	AverageDurationByVehicleType map[string]float64 `json:"average_duration_by_vehicle_type"`
}
