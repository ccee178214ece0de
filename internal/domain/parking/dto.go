// internal/domain/parking/dto.go
package parking

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// ========== Engine inputs / outputs ==========

type OpenTicketRequest struct {
	VehicleNumber string `json:"vehicle_number" binding:"required"`
	VehicleType   string `json:"vehicle_type" binding:"required"`
}

// TicketHandle is what the entry terminal prints.
type TicketHandle struct {
	TicketID   int64     `json:"ticket_id"`
	SpotID     int64     `json:"spot_id"`
	SpotNumber string    `json:"spot_number"`
	EntryTime  time.Time `json:"entry_time"`
	QRCodeData string    `json:"qr_code_data"`
}

type ExitQuote struct {
	TicketID        int64     `json:"ticket_id"`
	VehicleNumber   string    `json:"vehicle_number"`
	EntryTime       time.Time `json:"entry_time"`
	CurrentTime     time.Time `json:"current_time"`
	DurationMinutes int       `json:"duration_minutes"`
	CalculatedFee   float64   `json:"calculated_fee"`
}

type CloseTicketRequest struct {
	TicketID      int64   `json:"ticket_id" binding:"required"`
	AmountPaid    float64 `json:"amount_paid"`
	PaymentMethod string  `json:"payment_method" binding:"required"`
}

type AssistedExitRequest struct {
	VehicleNumber string  `json:"vehicle_number" binding:"required"`
	ExitReason    string  `json:"exit_reason" binding:"required"`
	PaymentMethod string  `json:"payment_method" binding:"required"`
	AmountPaid    float64 `json:"amount_paid"`
	OperatorID    int64   `json:"-"`
}

type AssistedExitResult struct {
	Payment        *Payment   `json:"payment"`
	TicketID       null.Int   `json:"ticket_id"`
	TotalCharge    float64    `json:"total_amount_charged"`
	BaseFee        float64    `json:"base_fee"`
	PenaltyApplied null.Float `json:"penalty_applied"`
}

// ========== Read models ==========

type TicketView struct {
	TicketID      int64        `json:"ticket_id"`
	VehicleNumber string       `json:"vehicle_number"`
	VehicleType   SizeClass    `json:"vehicle_type"`
	SpotID        int64        `json:"spot_id"`
	SpotNumber    string       `json:"spot_number"`
	LotID         int64        `json:"lot_id"`
	LotName       string       `json:"lot_name"`
	EntryTime     time.Time    `json:"entry_time"`
	ExitTime      null.Time    `json:"exit_time"`
	TotalAmount   null.Float   `json:"total_amount"`
	Status        TicketStatus `json:"status"`
}

type PaymentView struct {
	Payment
	PenaltyAmount null.Float  `json:"penalty_amount"`
	LotName       null.String `json:"lot_name"`
}

type SpotFilter struct {
	LotID  *int64
	Size   *SizeClass
	Status *SpotStatus
}

type TicketFilter struct {
	Statuses      []TicketStatus
	VehicleNumber string
	SpotID        *int64
	EntryFrom     *time.Time
	EntryTo       *time.Time
	ExitFrom      *time.Time
	ExitTo        *time.Time
	SortAsc       bool
	Limit         int
}

// ========== Provisioning ==========

type SeedData struct {
	Lots      []LotSeed
	Penalties []Penalty
}

type LotSeed struct {
	Name  string
	Spots []SpotSeed
}

type SpotSeed struct {
	SpotNumber string
	Size       SizeClass
}

// ========== Terminal configuration ==========

type ClassTariff struct {
	FirstHour         float64 `json:"first_hour"`
	SubsequentHour    float64 `json:"subsequent_hour"`
	LostTicketPenalty float64 `json:"lost_ticket_penalty"`
}

// EntryConfig is what the entry terminal displays before issuing tickets.
type EntryConfig struct {
	VehicleTypes []SizeClass               `json:"supported_vehicle_types"`
	Rates        map[SizeClass]ClassTariff `json:"fee_structure_details"`
}
