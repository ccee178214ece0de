// internal/repository/postgres/payment_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parking-service/internal/domain/parking"
	xerrors "parking-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreateWithTx records a payment. payments.ticket_id is unique, so a
// second payment for the same ticket is a conflict.
func (r *PaymentRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, p *parking.Payment) error {
	query := `
		INSERT INTO payments (
			reference, ticket_id, base_fee, penalty_id, total_amount,
			payment_method, payment_status, transaction_time, processed_by_user_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING payment_id
	`

	err := tx.QueryRow(
		ctx, query,
		p.Reference, p.TicketID, p.BaseFee, p.PenaltyID, p.TotalAmount,
		p.PaymentMethod, p.PaymentStatus, p.TransactionTime, p.ProcessedBy,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", mapWriteError(err))
	}

	return nil
}

const paymentViewSelect = `
	SELECT p.payment_id, p.reference, p.ticket_id, p.base_fee::float8, p.penalty_id, p.total_amount::float8,
	       p.payment_method, p.payment_status, p.transaction_time, p.processed_by_user_id,
	       pen.amount::float8, l.name
	FROM payments p
	LEFT JOIN penalties pen ON pen.penalty_id = p.penalty_id
	LEFT JOIN tickets t ON t.ticket_id = p.ticket_id
	LEFT JOIN parking_spots s ON s.spot_id = t.spot_id
	LEFT JOIN parking_lots l ON l.lot_id = s.lot_id
`

func scanPaymentView(row pgx.Row) (*parking.PaymentView, error) {
	var v parking.PaymentView
	err := row.Scan(
		&v.ID, &v.Reference, &v.TicketID, &v.BaseFee, &v.PenaltyID, &v.TotalAmount,
		&v.PaymentMethod, &v.PaymentStatus, &v.TransactionTime, &v.ProcessedBy,
		&v.PenaltyAmount, &v.LotName,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *PaymentRepository) FindByTicket(ctx context.Context, ticketID int64) (*parking.PaymentView, error) {
	view, err := scanPaymentView(r.db.QueryRow(ctx, paymentViewSelect+` WHERE p.ticket_id = $1`, ticketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return view, nil
}

// ListBetween retrieves payments whose transaction time falls in [from, to].
func (r *PaymentRepository) ListBetween(ctx context.Context, from, to time.Time) ([]parking.PaymentView, error) {
	rows, err := r.db.Query(ctx,
		paymentViewSelect+` WHERE p.transaction_time BETWEEN $1 AND $2 ORDER BY p.payment_id`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var views []parking.PaymentView
	for rows.Next() {
		view, err := scanPaymentView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		views = append(views, *view)
	}

	return views, rows.Err()
}
