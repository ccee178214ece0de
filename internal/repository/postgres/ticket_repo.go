// internal/repository/postgres/ticket_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parking-service/internal/domain/parking"
	xerrors "parking-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type TicketRepository struct {
	db *pgxpool.Pool
}

func NewTicketRepository(db *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `ticket_id, vehicle_id, spot_id, entry_time, exit_time, status`

func scanTicket(row pgx.Row) (*parking.Ticket, error) {
	var t parking.Ticket
	if err := row.Scan(&t.ID, &t.VehicleID, &t.SpotID, &t.EntryTime, &t.ExitTime, &t.Status); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateWithTx inserts an active ticket. The partial unique index on
// (vehicle_id) WHERE status = 'active' rejects a second active ticket.
func (r *TicketRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, ticket *parking.Ticket) error {
	query := `
		INSERT INTO tickets (vehicle_id, spot_id, entry_time, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ticket_id
	`

	err := tx.QueryRow(ctx, query, ticket.VehicleID, ticket.SpotID, ticket.EntryTime, ticket.Status).Scan(&ticket.ID)
	if err != nil {
		mapped := mapWriteError(err)
		if errors.Is(mapped, parking.ErrDuplicateActiveTicket) {
			return mapped
		}
		return fmt.Errorf("failed to create ticket: %w", mapped)
	}

	return nil
}

// FindActiveByVehicleWithTx locks and returns the vehicle's active ticket.
func (r *TicketRepository) FindActiveByVehicleWithTx(ctx context.Context, tx pgx.Tx, vehicleID int64) (*parking.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE vehicle_id = $1 AND status = $2 FOR UPDATE`

	t, err := scanTicket(tx.QueryRow(ctx, query, vehicleID, parking.TicketActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, parking.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active ticket: %w", mapWriteError(err))
	}
	return t, nil
}

// LockWithTx loads a ticket with a row lock held until the transaction ends.
func (r *TicketRepository) LockWithTx(ctx context.Context, tx pgx.Tx, ticketID int64) (*parking.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id = $1 FOR UPDATE`

	t, err := scanTicket(tx.QueryRow(ctx, query, ticketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, parking.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock ticket: %w", mapWriteError(err))
	}
	return t, nil
}

// CloseWithTx moves an active ticket into a terminal status.
func (r *TicketRepository) CloseWithTx(ctx context.Context, tx pgx.Tx, ticketID int64, status parking.TicketStatus, exitTime time.Time) error {
	if !status.IsTerminal() {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "ticket can only be closed into a terminal status")
	}

	query := `UPDATE tickets SET status = $1, exit_time = $2 WHERE ticket_id = $3 AND status = $4`

	result, err := tx.Exec(ctx, query, status, exitTime, ticketID, parking.TicketActive)
	if err != nil {
		return fmt.Errorf("failed to close ticket: %w", mapWriteError(err))
	}
	if result.RowsAffected() == 0 {
		return parking.ErrTicketNotFound
	}

	return nil
}

func (r *TicketRepository) FindByID(ctx context.Context, id int64) (*parking.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id = $1`

	t, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, parking.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ticket: %w", err)
	}
	return t, nil
}

const ticketViewSelect = `
	SELECT t.ticket_id, v.vehicle_number, v.vehicle_type, t.spot_id, s.spot_number, s.lot_id, l.name,
	       t.entry_time, t.exit_time, p.total_amount::float8, t.status
	FROM tickets t
	JOIN vehicles v ON v.vehicle_id = t.vehicle_id
	JOIN parking_spots s ON s.spot_id = t.spot_id
	JOIN parking_lots l ON l.lot_id = s.lot_id
	LEFT JOIN payments p ON p.ticket_id = t.ticket_id
`

func scanTicketView(row pgx.Row) (*parking.TicketView, error) {
	var v parking.TicketView
	err := row.Scan(
		&v.TicketID, &v.VehicleNumber, &v.VehicleType, &v.SpotID, &v.SpotNumber, &v.LotID, &v.LotName,
		&v.EntryTime, &v.ExitTime, &v.TotalAmount, &v.Status,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *TicketRepository) FindView(ctx context.Context, id int64) (*parking.TicketView, error) {
	view, err := scanTicketView(r.db.QueryRow(ctx, ticketViewSelect+` WHERE t.ticket_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ticket: %w", err)
	}
	return view, nil
}

// ListViews retrieves joined ticket rows with filters
func (r *TicketRepository) ListViews(ctx context.Context, filter *parking.TicketFilter) ([]parking.TicketView, error) {
	if filter == nil {
		filter = &parking.TicketFilter{}
	}

	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("t.status = ANY($%d)", argPos))
		args = append(args, pq.Array(statuses))
		argPos++
	}

	if filter.VehicleNumber != "" {
		conditions = append(conditions, fmt.Sprintf("v.vehicle_number ILIKE $%d", argPos))
		args = append(args, "%"+filter.VehicleNumber+"%")
		argPos++
	}

	if filter.SpotID != nil {
		conditions = append(conditions, fmt.Sprintf("t.spot_id = $%d", argPos))
		args = append(args, *filter.SpotID)
		argPos++
	}

	if filter.EntryFrom != nil {
		conditions = append(conditions, fmt.Sprintf("t.entry_time >= $%d", argPos))
		args = append(args, *filter.EntryFrom)
		argPos++
	}

	if filter.EntryTo != nil {
		conditions = append(conditions, fmt.Sprintf("t.entry_time <= $%d", argPos))
		args = append(args, *filter.EntryTo)
		argPos++
	}

	if filter.ExitFrom != nil {
		conditions = append(conditions, fmt.Sprintf("t.exit_time >= $%d", argPos))
		args = append(args, *filter.ExitFrom)
		argPos++
	}

	if filter.ExitTo != nil {
		conditions = append(conditions, fmt.Sprintf("t.exit_time <= $%d", argPos))
		args = append(args, *filter.ExitTo)
		argPos++
	}

	order := "DESC"
	if filter.SortAsc {
		order = "ASC"
	}

	query := ticketViewSelect + fmt.Sprintf(` WHERE %s ORDER BY t.entry_time %s, t.ticket_id %s`,
		strings.Join(conditions, " AND "), order, order)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var views []parking.TicketView
	for rows.Next() {
		view, err := scanTicketView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		views = append(views, *view)
	}

	return views, rows.Err()
}
