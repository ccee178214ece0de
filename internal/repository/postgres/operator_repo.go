// internal/repository/postgres/operator_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"parking-service/internal/domain/auth"
	xerrors "parking-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OperatorRepository struct {
	db *pgxpool.Pool
}

func NewOperatorRepository(db *pgxpool.Pool) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// FindByUsername retrieves an operator by username, case-insensitively
func (r *OperatorRepository) FindByUsername(ctx context.Context, username string) (*auth.Operator, error) {
	query := `
		SELECT user_id, username, password_hash, role, created_at
		FROM operators
		WHERE LOWER(username) = LOWER($1)
	`

	var op auth.Operator
	err := r.db.QueryRow(ctx, query, username).Scan(&op.ID, &op.Username, &op.PasswordHash, &op.Role, &op.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find operator: %w", err)
	}

	return &op, nil
}

func (r *OperatorRepository) Ensure(ctx context.Context, op *auth.Operator) (*auth.Operator, error) {
	query := `
		INSERT INTO operators (username, password_hash, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, op.Username, op.PasswordHash, op.Role); err != nil {
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}

	return r.FindByUsername(ctx, op.Username)
}
