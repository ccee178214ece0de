// internal/repository/postgres/spot_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"parking-service/internal/domain/parking"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SpotRepository struct {
	db *pgxpool.Pool
}

func NewSpotRepository(db *pgxpool.Pool) *SpotRepository {
	return &SpotRepository{db: db}
}

// ReserveWithTx occupies the lowest-id available spot of the size.
// Rows locked by a concurrent reservation are skipped, so two callers
// never get the same spot.
func (r *SpotRepository) ReserveWithTx(ctx context.Context, tx pgx.Tx, size parking.SizeClass) (*parking.Spot, error) {
	query := `
		UPDATE parking_spots
		SET status = $1, updated_at = now()
		WHERE spot_id = (
			SELECT spot_id FROM parking_spots
			WHERE spot_size = $2 AND status = $3
			ORDER BY spot_id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING spot_id, lot_id, spot_number, spot_size, status
	`

	var s parking.Spot
	err := tx.QueryRow(ctx, query, parking.SpotOccupied, size, parking.SpotAvailable).Scan(
		&s.ID, &s.LotID, &s.SpotNumber, &s.Size, &s.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, parking.ErrNoSpotAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reserve spot: %w", mapWriteError(err))
	}

	return &s, nil
}

// ReleaseWithTx marks a spot available. Already-available spots are left
// as they are.
func (r *SpotRepository) ReleaseWithTx(ctx context.Context, tx pgx.Tx, spotID int64) error {
	query := `UPDATE parking_spots SET status = $1, updated_at = now() WHERE spot_id = $2`

	result, err := tx.Exec(ctx, query, parking.SpotAvailable, spotID)
	if err != nil {
		return fmt.Errorf("failed to release spot: %w", mapWriteError(err))
	}
	if result.RowsAffected() == 0 {
		return parking.ErrSpotNotFound
	}

	return nil
}

// CreateBatchWithTx inserts the spots of a newly provisioned lot.
func (r *SpotRepository) CreateBatchWithTx(ctx context.Context, tx pgx.Tx, lotID int64, spots []parking.SpotSeed) error {
	batch := &pgx.Batch{}
	for _, s := range spots {
		batch.Queue(
			`INSERT INTO parking_spots (lot_id, spot_number, spot_size, status) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (lot_id, spot_number) DO NOTHING`,
			lotID, s.SpotNumber, s.Size, parking.SpotAvailable,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to create spots: %w", err)
	}
	return nil
}

// List retrieves spots with optional filters, ordered by spot number.
func (r *SpotRepository) List(ctx context.Context, filter *parking.SpotFilter) ([]parking.Spot, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filter != nil {
		if filter.LotID != nil {
			conditions = append(conditions, fmt.Sprintf("lot_id = $%d", argPos))
			args = append(args, *filter.LotID)
			argPos++
		}
		if filter.Size != nil {
			conditions = append(conditions, fmt.Sprintf("spot_size = $%d", argPos))
			args = append(args, *filter.Size)
			argPos++
		}
		if filter.Status != nil {
			conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
			args = append(args, *filter.Status)
			argPos++
		}
	}

	query := fmt.Sprintf(`
		SELECT spot_id, lot_id, spot_number, spot_size, status
		FROM parking_spots
		WHERE %s
		ORDER BY spot_id
	`, strings.Join(conditions, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list spots: %w", err)
	}
	defer rows.Close()

	var spots []parking.Spot
	for rows.Next() {
		var s parking.Spot
		if err := rows.Scan(&s.ID, &s.LotID, &s.SpotNumber, &s.Size, &s.Status); err != nil {
			return nil, fmt.Errorf("failed to scan spot: %w", err)
		}
		spots = append(spots, s)
	}

	return spots, rows.Err()
}
