// internal/repository/postgres/lot_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"parking-service/internal/domain/parking"
	xerrors "parking-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LotRepository struct {
	db *pgxpool.Pool
}

func NewLotRepository(db *pgxpool.Pool) *LotRepository {
	return &LotRepository{db: db}
}

// EnsureWithTx creates the lot if missing. created reports whether the
// row is new.
func (r *LotRepository) EnsureWithTx(ctx context.Context, tx pgx.Tx, name string) (lot *parking.Lot, created bool, err error) {
	lot = &parking.Lot{Name: name}

	err = tx.QueryRow(ctx,
		`INSERT INTO parking_lots (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING lot_id`,
		name,
	).Scan(&lot.ID)
	if err == nil {
		return lot, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create lot: %w", err)
	}

	if err := tx.QueryRow(ctx, `SELECT lot_id FROM parking_lots WHERE name = $1`, name).Scan(&lot.ID); err != nil {
		return nil, false, fmt.Errorf("failed to find lot: %w", err)
	}
	return lot, false, nil
}

func (r *LotRepository) FindByID(ctx context.Context, id int64) (*parking.Lot, error) {
	var lot parking.Lot
	err := r.db.QueryRow(ctx, `SELECT lot_id, name FROM parking_lots WHERE lot_id = $1`, id).Scan(&lot.ID, &lot.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lot: %w", err)
	}
	return &lot, nil
}

func (r *LotRepository) List(ctx context.Context) ([]parking.Lot, error) {
	rows, err := r.db.Query(ctx, `SELECT lot_id, name FROM parking_lots ORDER BY lot_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	defer rows.Close()

	var lots []parking.Lot
	for rows.Next() {
		var lot parking.Lot
		if err := rows.Scan(&lot.ID, &lot.Name); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}
