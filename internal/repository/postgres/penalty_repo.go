// internal/repository/postgres/penalty_repo.go
package postgres

import (
	"context"
	"fmt"

	"parking-service/internal/domain/parking"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PenaltyRepository struct {
	db *pgxpool.Pool
}

func NewPenaltyRepository(db *pgxpool.Pool) *PenaltyRepository {
	return &PenaltyRepository{db: db}
}

// EnsureWithTx inserts the penalty type if it is not configured yet.
// Existing amounts are kept.
func (r *PenaltyRepository) EnsureWithTx(ctx context.Context, tx pgx.Tx, p parking.Penalty) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO penalties (penalty_type, amount) VALUES ($1, $2) ON CONFLICT (penalty_type) DO NOTHING`,
		p.PenaltyType, p.Amount,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure penalty %s: %w", p.PenaltyType, err)
	}
	return nil
}

func (r *PenaltyRepository) List(ctx context.Context) ([]parking.Penalty, error) {
	rows, err := r.db.Query(ctx, `SELECT penalty_id, penalty_type, amount::float8 FROM penalties ORDER BY penalty_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list penalties: %w", err)
	}
	defer rows.Close()

	var penalties []parking.Penalty
	for rows.Next() {
		var p parking.Penalty
		if err := rows.Scan(&p.ID, &p.PenaltyType, &p.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan penalty: %w", err)
		}
		penalties = append(penalties, p)
	}
	return penalties, rows.Err()
}
