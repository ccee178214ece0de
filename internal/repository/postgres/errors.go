// internal/repository/postgres/errors.go
package postgres

import (
	"errors"
	"fmt"

	"parking-service/internal/domain/parking"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	constraintActiveVehicle = "uq_tickets_active_vehicle"
	constraintActiveSpot    = "uq_tickets_active_spot"
)

// mapWriteError turns lost races into ErrStoreConflict and the active
// ticket index into ErrDuplicateActiveTicket. Anything else is returned
// unchanged.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pq.ErrorCode(pgErr.Code).Name() {
	case "serialization_failure", "deadlock_detected", "lock_not_available":
		return fmt.Errorf("%w: %s", parking.ErrStoreConflict, pgErr.Message)
	case "unique_violation":
		switch pgErr.ConstraintName {
		case constraintActiveVehicle:
			return parking.ErrDuplicateActiveTicket
		case constraintActiveSpot:
			return fmt.Errorf("%w: spot already held by an active ticket", parking.ErrStoreConflict)
		}
		return fmt.Errorf("%w: %s", parking.ErrStoreConflict, pgErr.ConstraintName)
	}
	return err
}
