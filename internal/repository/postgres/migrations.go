// internal/repository/postgres/migrations.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS parking_lots (
		lot_id BIGSERIAL PRIMARY KEY,
		name   VARCHAR(255) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS parking_spots (
		spot_id     BIGSERIAL PRIMARY KEY,
		lot_id      BIGINT NOT NULL REFERENCES parking_lots(lot_id),
		spot_number VARCHAR(50) NOT NULL,
		spot_size   VARCHAR(50) NOT NULL,
		status      VARCHAR(50) NOT NULL DEFAULT 'available',
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (lot_id, spot_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_parking_spots_size_status ON parking_spots (spot_size, status, spot_id)`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		vehicle_id     BIGSERIAL PRIMARY KEY,
		vehicle_number VARCHAR(50) NOT NULL UNIQUE,
		vehicle_type   VARCHAR(50) NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS operators (
		user_id       BIGSERIAL PRIMARY KEY,
		username      VARCHAR(100) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(50) NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		ticket_id  BIGSERIAL PRIMARY KEY,
		vehicle_id BIGINT NOT NULL REFERENCES vehicles(vehicle_id),
		spot_id    BIGINT NOT NULL REFERENCES parking_spots(spot_id),
		entry_time TIMESTAMPTZ NOT NULL,
		exit_time  TIMESTAMPTZ,
		status     VARCHAR(50) NOT NULL DEFAULT 'active'
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + constraintActiveVehicle + ` ON tickets (vehicle_id) WHERE status = 'active'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + constraintActiveSpot + ` ON tickets (spot_id) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_entry_time ON tickets (entry_time)`,
	`CREATE TABLE IF NOT EXISTS penalties (
		penalty_id   BIGSERIAL PRIMARY KEY,
		penalty_type VARCHAR(100) NOT NULL UNIQUE,
		amount       NUMERIC(10, 2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		payment_id           BIGSERIAL PRIMARY KEY,
		reference            VARCHAR(32) NOT NULL UNIQUE,
		ticket_id            BIGINT UNIQUE REFERENCES tickets(ticket_id),
		base_fee             NUMERIC(10, 2) NOT NULL,
		penalty_id           BIGINT REFERENCES penalties(penalty_id),
		total_amount         NUMERIC(10, 2) NOT NULL,
		payment_method       VARCHAR(50) NOT NULL,
		payment_status       VARCHAR(50) NOT NULL,
		transaction_time     TIMESTAMPTZ NOT NULL,
		processed_by_user_id BIGINT REFERENCES operators(user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_transaction_time ON payments (transaction_time)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i, err)
		}
	}
	return nil
}
