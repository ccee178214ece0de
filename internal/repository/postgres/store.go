// internal/repository/postgres/store.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"parking-service/internal/domain/parking"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Store implements parking.Store on PostgreSQL.
type Store struct {
	db     *DB
	logger *zap.Logger

	lots      *LotRepository
	spots     *SpotRepository
	vehicles  *VehicleRepository
	tickets   *TicketRepository
	payments  *PaymentRepository
	penalties *PenaltyRepository
}

func NewStore(db *DB, logger *zap.Logger) *Store {
	pool := db.Pool()
	return &Store{
		db:        db,
		logger:    logger,
		lots:      NewLotRepository(pool),
		spots:     NewSpotRepository(pool),
		vehicles:  NewVehicleRepository(pool),
		tickets:   NewTicketRepository(pool),
		payments:  NewPaymentRepository(pool),
		penalties: NewPenaltyRepository(pool),
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx parking.Tx) error) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapWriteError(err))
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx, s: s}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapWriteError(err))
	}
	return nil
}

// Seed provisions lots with their spots and the penalty catalog. Spots
// are only inserted for lots created by this call.
func (s *Store) Seed(ctx context.Context, data *parking.SeedData) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ls := range data.Lots {
		lot, created, err := s.lots.EnsureWithTx(ctx, tx, ls.Name)
		if err != nil {
			return err
		}
		if !created {
			continue
		}
		if err := s.spots.CreateBatchWithTx(ctx, tx, lot.ID, ls.Spots); err != nil {
			return err
		}
		s.logger.Info("lot provisioned",
			zap.Int64("lot_id", lot.ID),
			zap.String("name", lot.Name),
			zap.Int("spots", len(ls.Spots)),
		)
	}

	for _, p := range data.Penalties {
		if err := s.penalties.EnsureWithTx(ctx, tx, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	return nil
}

// ========== Reader ==========

func (s *Store) GetTicket(ctx context.Context, id int64) (*parking.Ticket, error) {
	return s.tickets.FindByID(ctx, id)
}

func (s *Store) GetTicketView(ctx context.Context, id int64) (*parking.TicketView, error) {
	return s.tickets.FindView(ctx, id)
}

func (s *Store) GetVehicleByID(ctx context.Context, id int64) (*parking.Vehicle, error) {
	return s.vehicles.FindByID(ctx, id)
}

func (s *Store) GetPaymentByTicket(ctx context.Context, ticketID int64) (*parking.PaymentView, error) {
	return s.payments.FindByTicket(ctx, ticketID)
}

func (s *Store) ListLots(ctx context.Context) ([]parking.Lot, error) {
	return s.lots.List(ctx)
}

func (s *Store) GetLot(ctx context.Context, id int64) (*parking.Lot, error) {
	return s.lots.FindByID(ctx, id)
}

func (s *Store) ListSpots(ctx context.Context, filter *parking.SpotFilter) ([]parking.Spot, error) {
	return s.spots.List(ctx, filter)
}

func (s *Store) ListTicketViews(ctx context.Context, filter *parking.TicketFilter) ([]parking.TicketView, error) {
	return s.tickets.ListViews(ctx, filter)
}

func (s *Store) ListPaymentViews(ctx context.Context, from, to time.Time) ([]parking.PaymentView, error) {
	return s.payments.ListBetween(ctx, from, to)
}

func (s *Store) ListPenalties(ctx context.Context) ([]parking.Penalty, error) {
	return s.penalties.List(ctx)
}

// pgTx binds the repositories to one pgx transaction.
type pgTx struct {
	tx pgx.Tx
	s  *Store
}

func (t *pgTx) ReserveSpot(ctx context.Context, size parking.SizeClass) (*parking.Spot, error) {
	return t.s.spots.ReserveWithTx(ctx, t.tx, size)
}

func (t *pgTx) ReleaseSpot(ctx context.Context, spotID int64) error {
	return t.s.spots.ReleaseWithTx(ctx, t.tx, spotID)
}

func (t *pgTx) GetOrCreateVehicle(ctx context.Context, vehicleNumber string, vehicleType parking.SizeClass) (*parking.Vehicle, error) {
	return t.s.vehicles.GetOrCreateWithTx(ctx, t.tx, vehicleNumber, vehicleType)
}

func (t *pgTx) FindVehicleByNumber(ctx context.Context, vehicleNumber string) (*parking.Vehicle, error) {
	return t.s.vehicles.FindByNumberWithTx(ctx, t.tx, vehicleNumber)
}

func (t *pgTx) GetVehicle(ctx context.Context, id int64) (*parking.Vehicle, error) {
	return t.s.vehicles.FindByIDWithTx(ctx, t.tx, id)
}

func (t *pgTx) FindActiveTicketByVehicle(ctx context.Context, vehicleID int64) (*parking.Ticket, error) {
	return t.s.tickets.FindActiveByVehicleWithTx(ctx, t.tx, vehicleID)
}

func (t *pgTx) LockTicket(ctx context.Context, ticketID int64) (*parking.Ticket, error) {
	return t.s.tickets.LockWithTx(ctx, t.tx, ticketID)
}

func (t *pgTx) CreateTicket(ctx context.Context, ticket *parking.Ticket) error {
	return t.s.tickets.CreateWithTx(ctx, t.tx, ticket)
}

func (t *pgTx) CloseTicket(ctx context.Context, ticketID int64, status parking.TicketStatus, exitTime time.Time) error {
	return t.s.tickets.CloseWithTx(ctx, t.tx, ticketID, status, exitTime)
}

func (t *pgTx) CreatePayment(ctx context.Context, payment *parking.Payment) error {
	return t.s.payments.CreateWithTx(ctx, t.tx, payment)
}

var _ parking.Store = (*Store)(nil)
