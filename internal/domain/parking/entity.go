// internal/domain/parking/entity.go
package parking

import (
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"
)

// SizeClass is both the spot size and the billing tier of a vehicle.
type SizeClass string

const (
	SizeMotorcycle SizeClass = "Motorcycle"
	SizeCompact    SizeClass = "Compact"
	SizeLarge      SizeClass = "Large"
)

// SupportedSizeClasses lists the classes in display order.
var SupportedSizeClasses = []SizeClass{SizeMotorcycle, SizeCompact, SizeLarge}

// ParseSizeClass maps a vehicle type string onto a size class.
func ParseSizeClass(s string) (SizeClass, error) {
	for _, c := range SupportedSizeClasses {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, nil
		}
	}
	return "", ErrUnsupportedVehicleType
}

type SpotStatus string

const (
	SpotAvailable SpotStatus = "available"
	SpotOccupied  SpotStatus = "occupied"
)

type TicketStatus string

const (
	TicketActive  TicketStatus = "active"
	TicketPaid    TicketStatus = "paid"
	TicketExpired TicketStatus = "expired"
)

// IsTerminal reports whether no transition may leave the status.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketPaid || s == TicketExpired
}

type PaymentStatus string

const (
	PaymentSuccessful PaymentStatus = "successful"
	PaymentFailed     PaymentStatus = "failed"
)

// ExitReason selects the assisted exit policy.
type ExitReason string

const (
	ExitLostTicket    ExitReason = "LOST_TICKET"
	ExitNoRecordFound ExitReason = "NO_RECORD_FOUND"
)

func ParseExitReason(s string) (ExitReason, error) {
	switch ExitReason(strings.ToUpper(strings.TrimSpace(s))) {
	case ExitLostTicket:
		return ExitLostTicket, nil
	case ExitNoRecordFound:
		return ExitNoRecordFound, nil
	}
	return "", ErrInvalidExitReason
}

type Lot struct {
	ID   int64  `json:"lot_id" db:"lot_id"`
	Name string `json:"name" db:"name"`
}

type Spot struct {
	ID         int64      `json:"spot_id" db:"spot_id"`
	LotID      int64      `json:"lot_id" db:"lot_id"`
	SpotNumber string     `json:"spot_number" db:"spot_number"`
	Size       SizeClass  `json:"spot_size" db:"spot_size"`
	Status     SpotStatus `json:"status" db:"status"`
}

type Vehicle struct {
	ID            int64     `json:"vehicle_id" db:"vehicle_id"`
	VehicleNumber string    `json:"vehicle_number" db:"vehicle_number"`
	VehicleType   SizeClass `json:"vehicle_type" db:"vehicle_type"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Ticket struct {
	ID        int64        `json:"ticket_id" db:"ticket_id"`
	VehicleID int64        `json:"vehicle_id" db:"vehicle_id"`
	SpotID    int64        `json:"spot_id" db:"spot_id"`
	EntryTime time.Time    `json:"entry_time" db:"entry_time"`
	ExitTime  null.Time    `json:"exit_time" db:"exit_time"`
	Status    TicketStatus `json:"status" db:"status"`
}

// DurationMinutes returns whole elapsed minutes between entry and now.
func (t *Ticket) DurationMinutes(now time.Time) int {
	return int(now.Sub(t.EntryTime) / time.Minute)
}

type Payment struct {
	ID              int64         `json:"payment_id" db:"payment_id"`
	Reference       string        `json:"reference" db:"reference"`
	TicketID        null.Int      `json:"ticket_id" db:"ticket_id"`
	BaseFee         float64       `json:"base_fee" db:"base_fee"`
	PenaltyID       null.Int      `json:"penalty_id" db:"penalty_id"`
	TotalAmount     float64       `json:"total_amount" db:"total_amount"`
	PaymentMethod   string        `json:"payment_method" db:"payment_method"`
	PaymentStatus   PaymentStatus `json:"payment_status" db:"payment_status"`
	TransactionTime time.Time     `json:"transaction_time" db:"transaction_time"`
	ProcessedBy     null.Int      `json:"processed_by_user_id" db:"processed_by_user_id"`
}

type Penalty struct {
	ID          int64   `json:"penalty_id" db:"penalty_id"`
	PenaltyType string  `json:"penalty_type" db:"penalty_type"`
	Amount      float64 `json:"amount" db:"amount"`
}

// PenaltyType composes the catalog key for an exception kind and class,
// e.g. LOST_TICKET_LARGE.
func PenaltyType(reason ExitReason, class SizeClass) string {
	return string(reason) + "_" + strings.ToUpper(string(class))
}
