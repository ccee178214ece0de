// internal/domain/parking/errors.go
package parking

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIdentifier           = errors.New("invalid vehicle number")
	ErrUnsupportedVehicleType      = errors.New("unsupported vehicle type")
	ErrNoSpotAvailable             = errors.New("no available spot for vehicle type")
	ErrDuplicateActiveTicket       = errors.New("vehicle already has an active ticket")
	ErrTicketNotFound              = errors.New("active ticket not found")
	ErrInsufficientPayment         = errors.New("insufficient payment")
	ErrInconsistentExceptionReason = errors.New("found an active ticket, use LOST_TICKET reason instead")
	ErrInvalidExitReason           = errors.New("invalid exit reason")
	ErrSpotNotFound                = errors.New("spot not found")
	ErrVehicleNotFound             = errors.New("vehicle not found")

	// ErrStoreConflict marks a lost race inside the store. The whole
	// operation may be retried.
	ErrStoreConflict = errors.New("store conflict")
)

// InsufficientPaymentError carries the amounts of a rejected close.
type InsufficientPaymentError struct {
	Required float64
	Paid     float64
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment. Required: %.2f, Paid: %.2f", e.Required, e.Paid)
}

func (e *InsufficientPaymentError) Unwrap() error {
	return ErrInsufficientPayment
}
