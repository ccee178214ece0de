// internal/domain/parking/repository.go
package parking

import (
	"context"
	"time"
)

// Store is the transactional record store the engine runs on.
type Store interface {
	// WithinTx runs fn against a single transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Seed provisions lots, spots and penalties. It is a no-op for
	// whatever already exists.
	Seed(ctx context.Context, data *SeedData) error

	Reader
}

// Tx is the write-path handle handed out by Store.WithinTx.
type Tx interface {
	// ReserveSpot flips the lowest-id available spot of the class to
	// occupied. Returns ErrNoSpotAvailable when none is free.
	ReserveSpot(ctx context.Context, size SizeClass) (*Spot, error)
	// ReleaseSpot marks the spot available. Releasing an available spot
	// succeeds.
	ReleaseSpot(ctx context.Context, spotID int64) error

	GetOrCreateVehicle(ctx context.Context, vehicleNumber string, vehicleType SizeClass) (*Vehicle, error)
	FindVehicleByNumber(ctx context.Context, vehicleNumber string) (*Vehicle, error)
	GetVehicle(ctx context.Context, id int64) (*Vehicle, error)

	// FindActiveTicketByVehicle returns ErrTicketNotFound when the
	// vehicle is not parked.
	FindActiveTicketByVehicle(ctx context.Context, vehicleID int64) (*Ticket, error)
	// LockTicket loads a ticket and holds it until the transaction ends.
	LockTicket(ctx context.Context, ticketID int64) (*Ticket, error)
	// CreateTicket returns ErrDuplicateActiveTicket if the vehicle
	// already holds an active ticket.
	CreateTicket(ctx context.Context, ticket *Ticket) error
	// CloseTicket moves an active ticket into a terminal status.
	// Returns ErrTicketNotFound if the ticket is not active.
	CloseTicket(ctx context.Context, ticketID int64, status TicketStatus, exitTime time.Time) error

	CreatePayment(ctx context.Context, payment *Payment) error
}

// Reader exposes the read-only history used by reporting.
type Reader interface {
	GetTicket(ctx context.Context, id int64) (*Ticket, error)
	GetTicketView(ctx context.Context, id int64) (*TicketView, error)
	GetVehicleByID(ctx context.Context, id int64) (*Vehicle, error)
	GetPaymentByTicket(ctx context.Context, ticketID int64) (*PaymentView, error)

	ListLots(ctx context.Context) ([]Lot, error)
	GetLot(ctx context.Context, id int64) (*Lot, error)
	ListSpots(ctx context.Context, filter *SpotFilter) ([]Spot, error)
	ListTicketViews(ctx context.Context, filter *TicketFilter) ([]TicketView, error)
	ListPaymentViews(ctx context.Context, from, to time.Time) ([]PaymentView, error)
	ListPenalties(ctx context.Context) ([]Penalty, error)
}
