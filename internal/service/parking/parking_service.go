// internal/service/parking/parking_service.go
package parking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"parking-service/internal/domain/parking"
	wstypes "parking-service/internal/domain/websocket"
	"parking-service/internal/pkg/clock"
	xerrors "parking-service/internal/pkg/errors"
	"parking-service/internal/pkg/metrics"
	"parking-service/internal/service/billing"
	"parking-service/internal/service/penalty"
	"parking-service/internal/service/registry"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gopkg.in/guregu/null.v4"
)

const (
	exitKindNormal   = "normal"
	exitKindAssisted = "assisted"
)

type ParkingService struct {
	store     parking.Store
	fees      *billing.Calculator
	penalties *penalty.Catalog
	validator *registry.Validator
	clock     clock.Clock
	events    EventPublisher
	logger    *zap.Logger

	// Configuration
	conflictRetries            int
	requireFullAssistedPayment bool
}

func NewParkingService(
	store parking.Store,
	fees *billing.Calculator,
	penalties *penalty.Catalog,
	validator *registry.Validator,
	clk clock.Clock,
	events EventPublisher,
	logger *zap.Logger,
) *ParkingService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ParkingService{
		store:           store,
		fees:            fees,
		penalties:       penalties,
		validator:       validator,
		clock:           clk,
		events:          events,
		logger:          logger,
		conflictRetries: 1,
	}
}

// SetConflictRetries bounds how often an operation is re-run after a
// store conflict.
func (s *ParkingService) SetConflictRetries(n int) {
	if n < 0 {
		n = 0
	}
	s.conflictRetries = n
}

// SetRequireFullAssistedPayment makes assisted exits reject amounts
// below the total charge. Off by default: assisted exits are operator
// overrides.
func (s *ParkingService) SetRequireFullAssistedPayment(require bool) {
	s.requireFullAssistedPayment = require
}

// EntryConfig lists the supported classes with their tariff and
// lost-ticket surcharge.
func (s *ParkingService) EntryConfig() *parking.EntryConfig {
	cfg := &parking.EntryConfig{
		VehicleTypes: append([]parking.SizeClass(nil), parking.SupportedSizeClasses...),
		Rates:        make(map[parking.SizeClass]parking.ClassTariff, len(parking.SupportedSizeClasses)),
	}
	for _, class := range parking.SupportedSizeClasses {
		rate := s.fees.RateFor(class)
		tariff := parking.ClassTariff{
			FirstHour:      rate.FirstHour,
			SubsequentHour: rate.SubsequentHour,
		}
		if p, ok := s.penalties.Lookup(parking.ExitLostTicket, class); ok {
			tariff.LostTicketPenalty = p.Amount
		}
		cfg.Rates[class] = tariff
	}
	return cfg
}

// withRetry runs fn in a transaction, re-running it after a lost race.
func (s *ParkingService) withRetry(ctx context.Context, op string, fn func(ctx context.Context, tx parking.Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := s.store.WithinTx(ctx, fn)
		if err == nil || !errors.Is(err, parking.ErrStoreConflict) || attempt >= s.conflictRetries {
			return err
		}
		metrics.StoreConflictRetriesTotal.Inc()
		s.logger.Warn("store conflict, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
}

// ========== Entry ==========

// OpenTicket allocates a spot of the requested class and issues an
// active ticket.
func (s *ParkingService) OpenTicket(ctx context.Context, req *parking.OpenTicketRequest) (*parking.TicketHandle, error) {
	class, err := parking.ParseSizeClass(req.VehicleType)
	if err != nil {
		s.rejectEntry(err)
		return nil, err
	}

	vehicleNumber, err := s.validator.Validate(req.VehicleNumber)
	if err != nil {
		s.rejectEntry(err)
		return nil, err
	}

	var (
		ticket *parking.Ticket
		spot   *parking.Spot
	)

	err = s.withRetry(ctx, "open_ticket", func(ctx context.Context, tx parking.Tx) error {
		vehicle, err := tx.GetOrCreateVehicle(ctx, vehicleNumber, class)
		if err != nil {
			return err
		}

		_, err = tx.FindActiveTicketByVehicle(ctx, vehicle.ID)
		if err == nil {
			return parking.ErrDuplicateActiveTicket
		}
		if !errors.Is(err, parking.ErrTicketNotFound) {
			return err
		}

		spot, err = tx.ReserveSpot(ctx, class)
		if err != nil {
			return err
		}

		ticket = &parking.Ticket{
			VehicleID: vehicle.ID,
			SpotID:    spot.ID,
			EntryTime: s.clock.Now(),
			Status:    parking.TicketActive,
		}
		return tx.CreateTicket(ctx, ticket)
	})
	if err != nil {
		s.rejectEntry(err)
		return nil, s.surface("open ticket", err)
	}

	metrics.TicketsOpenedTotal.WithLabelValues(string(class)).Inc()

	s.events.PublishOccupancy(wstypes.EventTypeSpotOccupied, wstypes.SpotEventData{
		SpotID:     spot.ID,
		SpotNumber: spot.SpotNumber,
		LotID:      spot.LotID,
		Size:       string(spot.Size),
	})
	s.events.PublishOccupancy(wstypes.EventTypeTicketOpened, wstypes.TicketEventData{
		TicketID:      ticket.ID,
		VehicleNumber: vehicleNumber,
		SpotID:        spot.ID,
		Status:        string(ticket.Status),
	})

	s.logger.Info("ticket opened",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("vehicle_number", vehicleNumber),
		zap.String("vehicle_type", string(class)),
		zap.Int64("spot_id", spot.ID),
		zap.String("spot_number", spot.SpotNumber),
	)

	return &parking.TicketHandle{
		TicketID:   ticket.ID,
		SpotID:     spot.ID,
		SpotNumber: spot.SpotNumber,
		EntryTime:  ticket.EntryTime,
		QRCodeData: strconv.FormatInt(ticket.ID, 10),
	}, nil
}

// ========== Normal exit ==========

// QuoteExit prices an active ticket as of now. Nothing is written.
func (s *ParkingService) QuoteExit(ctx context.Context, ticketID int64) (*parking.ExitQuote, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, s.surface("quote exit", err)
	}
	if ticket.Status != parking.TicketActive {
		return nil, parking.ErrTicketNotFound
	}

	vehicle, err := s.store.GetVehicleByID(ctx, ticket.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle for ticket %d: %w", ticketID, err)
	}

	now := s.clock.Now()
	minutes := ticket.DurationMinutes(now)

	return &parking.ExitQuote{
		TicketID:        ticket.ID,
		VehicleNumber:   vehicle.VehicleNumber,
		EntryTime:       ticket.EntryTime,
		CurrentTime:     now,
		DurationMinutes: minutes,
		CalculatedFee:   s.fees.Fee(minutes, vehicle.VehicleType),
	}, nil
}

// CloseTicket settles an active ticket. The payment, the ticket closure
// and the spot release commit together or not at all.
func (s *ParkingService) CloseTicket(ctx context.Context, req *parking.CloseTicketRequest) (*parking.Payment, error) {
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "payment method is required")
	}
	if req.AmountPaid < 0 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "amount paid cannot be negative")
	}

	var (
		payment *parking.Payment
		ticket  *parking.Ticket
		vehicle *parking.Vehicle
	)

	err := s.withRetry(ctx, "close_ticket", func(ctx context.Context, tx parking.Tx) error {
		var err error
		ticket, err = tx.LockTicket(ctx, req.TicketID)
		if err != nil {
			return err
		}
		if ticket.Status != parking.TicketActive {
			return parking.ErrTicketNotFound
		}

		vehicle, err = tx.GetVehicle(ctx, ticket.VehicleID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		fee := s.fees.Fee(ticket.DurationMinutes(now), vehicle.VehicleType)
		if req.AmountPaid < fee {
			return &parking.InsufficientPaymentError{Required: fee, Paid: req.AmountPaid}
		}

		payment = &parking.Payment{
			Reference:       newReference(),
			TicketID:        null.IntFrom(ticket.ID),
			BaseFee:         fee,
			TotalAmount:     req.AmountPaid,
			PaymentMethod:   method,
			PaymentStatus:   parking.PaymentSuccessful,
			TransactionTime: now,
		}
		return s.settle(ctx, tx, payment, ticket)
	})
	if err != nil {
		return nil, s.surface("close ticket", err)
	}

	s.afterClose(exitKindNormal, payment, ticket, vehicle.VehicleNumber)

	s.logger.Info("ticket closed",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("vehicle_number", vehicle.VehicleNumber),
		zap.Float64("fee", payment.BaseFee),
		zap.Float64("amount_paid", payment.TotalAmount),
		zap.String("payment_method", payment.PaymentMethod),
	)

	return payment, nil
}

// ========== Assisted exit ==========

// ResolveAssistedExit settles an exit for a vehicle that cannot present
// its ticket.
func (s *ParkingService) ResolveAssistedExit(ctx context.Context, req *parking.AssistedExitRequest) (*parking.AssistedExitResult, error) {
	reason, err := parking.ParseExitReason(req.ExitReason)
	if err != nil {
		return nil, err
	}

	vehicleNumber := registry.Normalize(req.VehicleNumber)
	if vehicleNumber == "" {
		return nil, parking.ErrInvalidIdentifier
	}

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "payment method is required")
	}
	if req.AmountPaid < 0 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "amount paid cannot be negative")
	}

	var (
		result *parking.AssistedExitResult
		ticket *parking.Ticket
	)

	err = s.withRetry(ctx, "assisted_exit", func(ctx context.Context, tx parking.Tx) error {
		ticket = nil

		vehicle, err := tx.FindVehicleByNumber(ctx, vehicleNumber)
		if err != nil && !errors.Is(err, parking.ErrVehicleNotFound) {
			return err
		}
		if vehicle != nil {
			ticket, err = tx.FindActiveTicketByVehicle(ctx, vehicle.ID)
			if err != nil && !errors.Is(err, parking.ErrTicketNotFound) {
				return err
			}
		}

		if reason == parking.ExitNoRecordFound && ticket != nil {
			return parking.ErrInconsistentExceptionReason
		}
		if ticket == nil && reason != parking.ExitNoRecordFound {
			return parking.ErrTicketNotFound
		}

		now := s.clock.Now()

		var baseFee float64
		if ticket != nil {
			baseFee = s.fees.Fee(ticket.DurationMinutes(now), vehicle.VehicleType)
		}

		var (
			penaltyAmount float64
			penaltyID     null.Int
		)
		if reason == parking.ExitLostTicket {
			if p, ok := s.penalties.Lookup(reason, vehicle.VehicleType); ok {
				penaltyAmount = p.Amount
				penaltyID = null.IntFrom(p.ID)
			}
		}

		total := baseFee + penaltyAmount
		if s.requireFullAssistedPayment && req.AmountPaid < total {
			return &parking.InsufficientPaymentError{Required: total, Paid: req.AmountPaid}
		}

		payment := &parking.Payment{
			Reference:       newReference(),
			BaseFee:         baseFee,
			PenaltyID:       penaltyID,
			TotalAmount:     req.AmountPaid,
			PaymentMethod:   method,
			PaymentStatus:   parking.PaymentSuccessful,
			TransactionTime: now,
		}
		if req.OperatorID > 0 {
			payment.ProcessedBy = null.IntFrom(req.OperatorID)
		}

		result = &parking.AssistedExitResult{
			Payment:     payment,
			TotalCharge: total,
			BaseFee:     baseFee,
		}
		if penaltyAmount > 0 {
			result.PenaltyApplied = null.FloatFrom(penaltyAmount)
		}

		if ticket == nil {
			return tx.CreatePayment(ctx, payment)
		}

		payment.TicketID = null.IntFrom(ticket.ID)
		result.TicketID = payment.TicketID
		return s.settle(ctx, tx, payment, ticket)
	})
	if err != nil {
		return nil, s.surface("resolve assisted exit", err)
	}

	if ticket != nil {
		s.afterClose(exitKindAssisted, result.Payment, ticket, vehicleNumber)
	} else {
		metrics.TicketsClosedTotal.WithLabelValues(exitKindAssisted).Inc()
		metrics.RevenueTotal.Add(result.Payment.TotalAmount)
	}

	s.logger.Info("assisted exit resolved",
		zap.String("vehicle_number", vehicleNumber),
		zap.String("reason", string(reason)),
		zap.Int64("payment_id", result.Payment.ID),
		zap.Bool("ticket_linked", ticket != nil),
		zap.Float64("base_fee", result.BaseFee),
		zap.Float64("total_charge", result.TotalCharge),
		zap.Float64("amount_paid", result.Payment.TotalAmount),
		zap.Int64("operator_id", req.OperatorID),
	)

	return result, nil
}

// ========== Helpers ==========

// settle records the payment, closes the ticket and frees its spot.
func (s *ParkingService) settle(ctx context.Context, tx parking.Tx, payment *parking.Payment, ticket *parking.Ticket) error {
	if err := tx.CreatePayment(ctx, payment); err != nil {
		return err
	}
	if err := tx.CloseTicket(ctx, ticket.ID, parking.TicketPaid, payment.TransactionTime); err != nil {
		return err
	}
	ticket.Status = parking.TicketPaid
	ticket.ExitTime = null.TimeFrom(payment.TransactionTime)
	return tx.ReleaseSpot(ctx, ticket.SpotID)
}

func (s *ParkingService) afterClose(kind string, payment *parking.Payment, ticket *parking.Ticket, vehicleNumber string) {
	metrics.TicketsClosedTotal.WithLabelValues(kind).Inc()
	metrics.RevenueTotal.Add(payment.TotalAmount)

	amount := payment.TotalAmount
	s.events.PublishOccupancy(wstypes.EventTypeTicketClosed, wstypes.TicketEventData{
		TicketID:      ticket.ID,
		VehicleNumber: vehicleNumber,
		SpotID:        ticket.SpotID,
		Status:        string(ticket.Status),
		Amount:        &amount,
		ExitKind:      kind,
	})
	s.events.PublishOccupancy(wstypes.EventTypeSpotReleased, wstypes.SpotEventData{
		SpotID: ticket.SpotID,
	})
}

// surface passes engine errors through untouched and logs anything else.
func (s *ParkingService) surface(op string, err error) error {
	if isEngineError(err) {
		return err
	}
	s.logger.Error("unexpected store failure", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isEngineError(err error) bool {
	for _, target := range []error{
		parking.ErrInvalidIdentifier,
		parking.ErrUnsupportedVehicleType,
		parking.ErrNoSpotAvailable,
		parking.ErrDuplicateActiveTicket,
		parking.ErrTicketNotFound,
		parking.ErrInsufficientPayment,
		parking.ErrInconsistentExceptionReason,
		parking.ErrInvalidExitReason,
		parking.ErrStoreConflict,
		xerrors.ErrInvalidInput,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *ParkingService) rejectEntry(err error) {
	reason := "other"
	switch {
	case errors.Is(err, parking.ErrUnsupportedVehicleType):
		reason = "unsupported_vehicle_type"
	case errors.Is(err, parking.ErrInvalidIdentifier):
		reason = "invalid_identifier"
	case errors.Is(err, parking.ErrNoSpotAvailable):
		reason = "no_spot_available"
	case errors.Is(err, parking.ErrDuplicateActiveTicket):
		reason = "duplicate_active_ticket"
	case errors.Is(err, parking.ErrStoreConflict):
		reason = "store_conflict"
	}
	metrics.EntryRejectedTotal.WithLabelValues(reason).Inc()
}

func newReference() string {
	return "PAY-" + ulid.Make().String()
}
