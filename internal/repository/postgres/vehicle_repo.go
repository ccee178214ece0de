// internal/repository/postgres/vehicle_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"parking-service/internal/domain/parking"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VehicleRepository struct {
	db *pgxpool.Pool
}

func NewVehicleRepository(db *pgxpool.Pool) *VehicleRepository {
	return &VehicleRepository{db: db}
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetOrCreateWithTx inserts the vehicle unless the number is taken. A
// writer losing the insert race waits for the winner and reads its row.
func (r *VehicleRepository) GetOrCreateWithTx(ctx context.Context, tx pgx.Tx, vehicleNumber string, vehicleType parking.SizeClass) (*parking.Vehicle, error) {
	query := `
		INSERT INTO vehicles (vehicle_number, vehicle_type)
		VALUES ($1, $2)
		ON CONFLICT (vehicle_number) DO NOTHING
		RETURNING vehicle_id, vehicle_number, vehicle_type, created_at
	`

	var v parking.Vehicle
	err := tx.QueryRow(ctx, query, vehicleNumber, vehicleType).Scan(&v.ID, &v.VehicleNumber, &v.VehicleType, &v.CreatedAt)
	if err == nil {
		return &v, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to create vehicle: %w", mapWriteError(err))
	}

	return r.FindByNumberWithTx(ctx, tx, vehicleNumber)
}

func (r *VehicleRepository) FindByNumberWithTx(ctx context.Context, tx pgx.Tx, vehicleNumber string) (*parking.Vehicle, error) {
	return r.findOne(ctx, tx, `WHERE vehicle_number = $1`, vehicleNumber)
}

func (r *VehicleRepository) FindByIDWithTx(ctx context.Context, tx pgx.Tx, id int64) (*parking.Vehicle, error) {
	return r.findOne(ctx, tx, `WHERE vehicle_id = $1`, id)
}

func (r *VehicleRepository) FindByID(ctx context.Context, id int64) (*parking.Vehicle, error) {
	return r.findOne(ctx, r.db, `WHERE vehicle_id = $1`, id)
}

func (r *VehicleRepository) findOne(ctx context.Context, q rowQuerier, where string, arg interface{}) (*parking.Vehicle, error) {
	query := `SELECT vehicle_id, vehicle_number, vehicle_type, created_at FROM vehicles ` + where

	var v parking.Vehicle
	err := q.QueryRow(ctx, query, arg).Scan(&v.ID, &v.VehicleNumber, &v.VehicleType, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, parking.ErrVehicleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vehicle: %w", err)
	}
	return &v, nil
}
