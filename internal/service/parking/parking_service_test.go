package parking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"parking-service/internal/domain/parking"
	wstypes "parking-service/internal/domain/websocket"
	"parking-service/internal/pkg/clock"
	"parking-service/internal/repository/memory"
	"parking-service/internal/service/billing"
	"parking-service/internal/service/penalty"
	"parking-service/internal/service/registry"

	"go.uber.org/zap"
)

var testStart = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []wstypes.EventType
}

func (p *recordingPublisher) PublishOccupancy(eventType wstypes.EventType, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) types() []wstypes.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]wstypes.EventType(nil), p.events...)
}

type fixture struct {
	svc    *ParkingService
	store  *memory.Store
	clock  *clock.Manual
	events *recordingPublisher
}

// newFixture provisions one lot with 2 motorcycle, compact and 1 large spots.
func newFixture(t *testing.T, compact int, penalties map[parking.SizeClass]float64) *fixture {
	t.Helper()

	lot := parking.LotSeed{Name: "Test Lot"}
	add := func(class parking.SizeClass, n int) {
		for i := 0; i < n; i++ {
			lot.Spots = append(lot.Spots, parking.SpotSeed{
				SpotNumber: fmt.Sprintf("T-%d", len(lot.Spots)+1),
				Size:       class,
			})
		}
	}
	add(parking.SizeMotorcycle, 2)
	add(parking.SizeCompact, compact)
	add(parking.SizeLarge, 1)

	store := memory.New()
	ctx := context.Background()
	if err := store.Seed(ctx, &parking.SeedData{
		Lots:      []parking.LotSeed{lot},
		Penalties: penalty.SeedPenalties(penalties),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rows, err := store.ListPenalties(ctx)
	if err != nil {
		t.Fatalf("list penalties: %v", err)
	}

	clk := clock.NewManual(testStart)
	events := &recordingPublisher{}
	svc := NewParkingService(
		store,
		billing.NewCalculator(billing.DefaultRates()),
		penalty.NewCatalog(rows),
		registry.NewValidator(registry.DefaultRegionCodes, 2),
		clk,
		events,
		zap.NewNop(),
	)

	return &fixture{svc: svc, store: store, clock: clk, events: events}
}

func (f *fixture) open(t *testing.T, number string, class parking.SizeClass) *parking.TicketHandle {
	t.Helper()
	h, err := f.svc.OpenTicket(context.Background(), &parking.OpenTicketRequest{
		VehicleNumber: number,
		VehicleType:   string(class),
	})
	if err != nil {
		t.Fatalf("OpenTicket(%s): %v", number, err)
	}
	return h
}

func (f *fixture) spotStatus(t *testing.T, spotID int64) parking.SpotStatus {
	t.Helper()
	spots, err := f.store.ListSpots(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range spots {
		if s.ID == spotID {
			return s.Status
		}
	}
	t.Fatalf("spot %d not found", spotID)
	return ""
}

func TestOpenTicketNormalizesAndAllocates(t *testing.T) {
	f := newFixture(t, 3, penalty.DefaultLostTicket)

	h := f.open(t, "  dl01ab1234 ", parking.SizeCompact)

	if h.SpotNumber != "T-3" {
		t.Errorf("expected lowest compact spot T-3, got %s", h.SpotNumber)
	}
	if !h.EntryTime.Equal(testStart) {
		t.Errorf("entry time = %v, want %v", h.EntryTime, testStart)
	}
	if h.QRCodeData != fmt.Sprint(h.TicketID) {
		t.Errorf("qr payload = %q", h.QRCodeData)
	}
	if got := f.spotStatus(t, h.SpotID); got != parking.SpotOccupied {
		t.Errorf("spot status = %s, want occupied", got)
	}

	view, err := f.store.GetTicketView(context.Background(), h.TicketID)
	if err != nil {
		t.Fatal(err)
	}
	if view.VehicleNumber != "DL01AB1234" {
		t.Errorf("vehicle number = %q, want DL01AB1234", view.VehicleNumber)
	}

	got := f.events.types()
	if len(got) != 2 || got[0] != wstypes.EventTypeSpotOccupied || got[1] != wstypes.EventTypeTicketOpened {
		t.Errorf("unexpected events %v", got)
	}
}

func TestOpenTicketRejectsBadInput(t *testing.T) {
	f := newFixture(t, 1, penalty.DefaultLostTicket)

	tests := []struct {
		name    string
		number  string
		vtype   string
		wantErr error
	}{
		{"unsupported type", "DL01AB1234", "Bus", parking.ErrUnsupportedVehicleType},
		{"unknown region", "XX01AB1234", "Compact", parking.ErrInvalidIdentifier},
		{"too short", "D", "Compact", parking.ErrInvalidIdentifier},
		{"blank", "   ", "Compact", parking.ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.OpenTicket(context.Background(), &parking.OpenTicketRequest{
				VehicleNumber: tt.number,
				VehicleType:   tt.vtype,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenTicketDuplicateLeavesNoStrandedSpot(t *testing.T) {
	f := newFixture(t, 2, penalty.DefaultLostTicket)
	first := f.open(t, "KA05MN0001", parking.SizeCompact)

	_, err := f.svc.OpenTicket(context.Background(), &parking.OpenTicketRequest{
		VehicleNumber: "ka05mn0001",
		VehicleType:   "Compact",
	})
	if !errors.Is(err, parking.ErrDuplicateActiveTicket) {
		t.Fatalf("got %v, want ErrDuplicateActiveTicket", err)
	}

	occupied := parking.SpotOccupied
	spots, _ := f.store.ListSpots(context.Background(), &parking.SpotFilter{Status: &occupied})
	if len(spots) != 1 || spots[0].ID != first.SpotID {
		t.Fatalf("expected only spot %d occupied, got %+v", first.SpotID, spots)
	}
}

func TestConcurrentEntrySameVehicle(t *testing.T) {
	f := newFixture(t, 5, penalty.DefaultLostTicket)

	const callers = 2
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.OpenTicket(context.Background(), &parking.OpenTicketRequest{
				VehicleNumber: "MH12XY9999",
				VehicleType:   "Compact",
			})
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, parking.ErrDuplicateActiveTicket):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != 1 {
		t.Fatalf("ok=%d dup=%d, want 1 and 1", ok, dup)
	}
}

func TestConcurrentEntryExhaustsCapacity(t *testing.T) {
	const free, callers = 4, 10
	f := newFixture(t, free, penalty.DefaultLostTicket)

	type outcome struct {
		handle *parking.TicketHandle
		err    error
	}
	results := make([]outcome, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := f.svc.OpenTicket(context.Background(), &parking.OpenTicketRequest{
				VehicleNumber: fmt.Sprintf("TN09CC%04d", i),
				VehicleType:   "Compact",
			})
			results[i] = outcome{h, err}
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	var ok, full int
	for _, r := range results {
		switch {
		case r.err == nil:
			ok++
			if seen[r.handle.SpotID] {
				t.Fatalf("spot %d assigned twice", r.handle.SpotID)
			}
			seen[r.handle.SpotID] = true
		case errors.Is(r.err, parking.ErrNoSpotAvailable):
			full++
		default:
			t.Fatalf("unexpected error: %v", r.err)
		}
	}
	if ok != free || full != callers-free {
		t.Fatalf("ok=%d full=%d, want %d and %d", ok, full, free, callers-free)
	}
}

func TestCloseTicketTwice(t *testing.T) {
	f := newFixture(t, 1, penalty.DefaultLostTicket)
	h := f.open(t, "GJ01AA0001", parking.SizeMotorcycle)
	f.clock.Advance(10 * time.Minute)

	req := &parking.CloseTicketRequest{TicketID: h.TicketID, AmountPaid: 10, PaymentMethod: "Cash"}
	if _, err := f.svc.CloseTicket(context.Background(), req); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if _, err := f.svc.CloseTicket(context.Background(), req); !errors.Is(err, parking.ErrTicketNotFound) {
		t.Fatalf("second close: got %v, want ErrTicketNotFound", err)
	}
}

func TestCloseTicketInsufficientPayment(t *testing.T) {
	f := newFixture(t, 1, penalty.DefaultLostTicket)
	h := f.open(t, "DL02CD5678", parking.SizeCompact)
	f.clock.Advance(30 * time.Minute)

	_, err := f.svc.CloseTicket(context.Background(), &parking.CloseTicketRequest{
		TicketID: h.TicketID, AmountPaid: 20, PaymentMethod: "Card",
	})

	var insufficient *parking.InsufficientPaymentError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientPaymentError", err)
	}
	if insufficient.Required != 25 || insufficient.Paid != 20 {
		t.Errorf("required=%v paid=%v", insufficient.Required, insufficient.Paid)
	}
	if !errors.Is(err, parking.ErrInsufficientPayment) {
		t.Error("should match ErrInsufficientPayment")
	}

	ticket, _ := f.store.GetTicket(context.Background(), h.TicketID)
	if ticket.Status != parking.TicketActive || ticket.ExitTime.Valid {
		t.Errorf("ticket changed: %+v", ticket)
	}
	if _, err := f.store.GetPaymentByTicket(context.Background(), h.TicketID); err == nil {
		t.Error("no payment should be recorded")
	}
	if got := f.spotStatus(t, h.SpotID); got != parking.SpotOccupied {
		t.Errorf("spot status = %s, want occupied", got)
	}
}

func TestEndToEndNinetyMinutes(t *testing.T) {
	f := newFixture(t, 1, penalty.DefaultLostTicket)
	ctx := context.Background()

	h := f.open(t, "DL01AB1234", parking.SizeCompact)
	f.clock.Advance(90 * time.Minute)

	quote, err := f.svc.QuoteExit(ctx, h.TicketID)
	if err != nil {
		t.Fatal(err)
	}
	if quote.DurationMinutes != 90 || quote.CalculatedFee != 37 {
		t.Fatalf("quote = %+v, want 90 minutes / 37.0", quote)
	}

	payment, err := f.svc.CloseTicket(ctx, &parking.CloseTicketRequest{
		TicketID: h.TicketID, AmountPaid: 37.0, PaymentMethod: "Cash",
	})
	if err != nil {
		t.Fatal(err)
	}
	if payment.TotalAmount != 37.0 || payment.BaseFee != 37.0 {
		t.Errorf("payment = %+v", payment)
	}
	if payment.TicketID.Int64 != h.TicketID || payment.PaymentStatus != parking.PaymentSuccessful {
		t.Errorf("payment = %+v", payment)
	}

	ticket, _ := f.store.GetTicket(ctx, h.TicketID)
	if ticket.Status != parking.TicketPaid {
		t.Errorf("ticket status = %s, want paid", ticket.Status)
	}
	if !ticket.ExitTime.Valid || !ticket.ExitTime.Time.Equal(testStart.Add(90*time.Minute)) {
		t.Errorf("exit time = %v", ticket.ExitTime)
	}
	if got := f.spotStatus(t, h.SpotID); got != parking.SpotAvailable {
		t.Errorf("spot status = %s, want available", got)
	}

	if _, err := f.svc.QuoteExit(ctx, h.TicketID); !errors.Is(err, parking.ErrTicketNotFound) {
		t.Errorf("quote on paid ticket: got %v", err)
	}

	next := f.open(t, "KA01ZZ0002", parking.SizeCompact)
	if next.SpotID != h.SpotID {
		t.Errorf("released spot should be reusable, got %d want %d", next.SpotID, h.SpotID)
	}
}

func TestBillingUsesFirstRecordedType(t *testing.T) {
	f := newFixture(t, 1, penalty.DefaultLostTicket)
	ctx := context.Background()

	h := f.open(t, "RJ14AB0001", parking.SizeCompact)
	f.clock.Advance(5 * time.Minute)
	if _, err := f.svc.CloseTicket(ctx, &parking.CloseTicketRequest{TicketID: h.TicketID, AmountPaid: 25, PaymentMethod: "Cash"}); err != nil {
		t.Fatal(err)
	}

	h2 := f.open(t, "RJ14AB0001", parking.SizeLarge)
	f.clock.Advance(30 * time.Minute)

	quote, err := f.svc.QuoteExit(ctx, h2.TicketID)
	if err != nil {
		t.Fatal(err)
	}
	if quote.CalculatedFee != 25 {
		t.Errorf("fee = %v, want the Compact rate 25", quote.CalculatedFee)
	}
}

func TestAssistedExit(t *testing.T) {
	ctx := context.Background()

	t.Run("lost ticket without active ticket", func(t *testing.T) {
		f := newFixture(t, 1, penalty.DefaultLostTicket)
		_, err := f.svc.ResolveAssistedExit(ctx, &parking.AssistedExitRequest{
			VehicleNumber: "DL09ZZ0001", ExitReason: "LOST_TICKET", PaymentMethod: "Cash", AmountPaid: 250,
		})
		if !errors.Is(err, parking.ErrTicketNotFound) {
			t.Fatalf("got %v, want ErrTicketNotFound", err)
		}
	})

	t.Run("no record found without active ticket", func(t *testing.T) {
		f := newFixture(t, 1, penalty.DefaultLostTicket)
		res, err := f.svc.ResolveAssistedExit(ctx, &parking.AssistedExitRequest{
			VehicleNumber: "DL09ZZ0001", ExitReason: "NO_RECORD_FOUND", PaymentMethod: "Cash", AmountPaid: 50, OperatorID: 3,
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.BaseFee != 0 || res.TicketID.Valid || res.Payment.TicketID.Valid {
			t.Errorf("result = %+v", res)
		}
		if res.PenaltyApplied.Valid || res.TotalCharge != 0 {
			t.Errorf("no penalty expected, got %+v", res)
		}
		if res.Payment.TotalAmount != 50 || res.Payment.ProcessedBy.Int64 != 3 {
			t.Errorf("payment = %+v", res.Payment)
		}
	})

	t.Run("no record found with active ticket", func(t *testing.T) {
		f := newFixture(t, 1, penalty.DefaultLostTicket)
		h := f.open(t, "HR26DK0001", parking.SizeCompact)
		_, err := f.svc.ResolveAssistedExit(ctx, &parking.AssistedExitRequest{
			VehicleNumber: "hr26dk0001", ExitReason: "NO_RECORD_FOUND", PaymentMethod: "Cash",
		})
		if !errors.Is(err, parking.ErrInconsistentExceptionReason) {
			t.Fatalf("got %v, want ErrInconsistentExceptionReason", err)
		}
		if got := f.spotStatus(t, h.SpotID); got != parking.SpotOccupied {
			t.Errorf("spot status = %s, want occupied", got)
		}
	})

	t.Run("lost ticket with active ticket", func(t *testing.T) {
		f := newFixture(t, 1, penalty.DefaultLostTicket)
		h := f.open(t, "UP16AA0001", parking.SizeCompact)
		f.clock.Advance(61 * time.Minute)

		res, err := f.svc.ResolveAssistedExit(ctx, &parking.AssistedExitRequest{
			VehicleNumber: "UP16AA0001", ExitReason: "lost_ticket", PaymentMethod: "Card", AmountPaid: 100, OperatorID: 1,
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.BaseFee != 37 || res.PenaltyApplied.Float64 != 250 || res.TotalCharge != 287 {
			t.Errorf("result = %+v", res)
		}
		if res.Payment.TotalAmount != 100 {
			t.Errorf("recorded amount = %v, want the asserted 100", res.Payment.TotalAmount)
		}
		if !res.Payment.PenaltyID.Valid || res.TicketID.Int64 != h.TicketID {
			t.Errorf("payment = %+v", res.Payment)
		}

		ticket, _ := f.store.GetTicket(ctx, h.TicketID)
		if ticket.Status != parking.TicketPaid {
			t.Errorf("ticket status = %s", ticket.Status)
		}
		if got := f.spotStatus(t, h.SpotID); got != parking.SpotAvailable {
			t.Errorf("spot status = %s, want available", got)
		}
	})

	t.Run("missing penalty contributes zero", func(t *testing.T) {
		f := newFixture(t, 1, map[parking.SizeClass]float64{parking.SizeLarge: 500})
		f.open(t, "WB02AA0001", parking.SizeCompact)
		f.clock.Advance(20 * time.Minute)

		res, err := f.svc.ResolveAssistedExit(ctx, &parking.AssistedExitRequest{
			VehicleNumber: "WB02AA0001", ExitReason: "LOST_TICKET", PaymentMethod: "Cash", AmountPaid: 25,
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.PenaltyApplied.Valid || res.Payment.PenaltyID.Valid || res.TotalCharge != 25 {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("invalid reason", func(t *testing.T) {
		f := newFixture(t, 1, penalty.DefaultLostTicket)
		_, err := f.svc.ResolveAssistedExit(ctx, &parking.AssistedExitRequest{
			VehicleNumber: "DL01AB1234", ExitReason: "STOLEN", PaymentMethod: "Cash",
		})
		if !errors.Is(err, parking.ErrInvalidExitReason) {
			t.Fatalf("got %v, want ErrInvalidExitReason", err)
		}
	})

	t.Run("strict mode rejects short payment", func(t *testing.T) {
		f := newFixture(t, 1, penalty.DefaultLostTicket)
		f.svc.SetRequireFullAssistedPayment(true)
		h := f.open(t, "KL07AB0001", parking.SizeCompact)
		f.clock.Advance(61 * time.Minute)

		_, err := f.svc.ResolveAssistedExit(ctx, &parking.AssistedExitRequest{
			VehicleNumber: "KL07AB0001", ExitReason: "LOST_TICKET", PaymentMethod: "Cash", AmountPaid: 100,
		})
		if !errors.Is(err, parking.ErrInsufficientPayment) {
			t.Fatalf("got %v, want ErrInsufficientPayment", err)
		}
		ticket, _ := f.store.GetTicket(ctx, h.TicketID)
		if ticket.Status != parking.TicketActive {
			t.Errorf("ticket status = %s, want active", ticket.Status)
		}
	})
}

// conflictingStore fails the first n transactions with a store conflict.
type conflictingStore struct {
	*memory.Store
	mu        sync.Mutex
	remaining int
	calls     int
}

func (s *conflictingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx parking.Tx) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.remaining > 0
	if fail {
		s.remaining--
	}
	s.mu.Unlock()

	if fail {
		return s.Store.WithinTx(ctx, func(ctx context.Context, tx parking.Tx) error {
			if err := fn(ctx, tx); err != nil {
				return err
			}
			return parking.ErrStoreConflict
		})
	}
	return s.Store.WithinTx(ctx, fn)
}

func TestStoreConflictIsRetriedOnce(t *testing.T) {
	tests := []struct {
		name      string
		conflicts int
		wantErr   error
		wantCalls int
	}{
		{"one conflict recovers", 1, nil, 2},
		{"two conflicts surface", 2, parking.ErrStoreConflict, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1, penalty.DefaultLostTicket)
			store := &conflictingStore{Store: f.store, remaining: tt.conflicts}
			f.svc.store = store

			h, err := f.svc.OpenTicket(context.Background(), &parking.OpenTicketRequest{
				VehicleNumber: "AP09CD1111", VehicleType: "Compact",
			})
			if !errors.Is(err, tt.wantErr) && !(tt.wantErr == nil && err == nil) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if store.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", store.calls, tt.wantCalls)
			}

			occupied := parking.SpotOccupied
			spots, _ := f.store.ListSpots(context.Background(), &parking.SpotFilter{Status: &occupied})
			if tt.wantErr == nil {
				if len(spots) != 1 || spots[0].ID != h.SpotID {
					t.Errorf("occupied spots = %+v", spots)
				}
			} else if len(spots) != 0 {
				t.Errorf("conflicting attempts must not leave occupied spots: %+v", spots)
			}
		})
	}
}

func TestDemoSeedLayout(t *testing.T) {
	data := DemoSeed()
	if len(data.Lots) != 3 {
		t.Fatalf("lots = %d", len(data.Lots))
	}
	sizes := []int{100, 60, 100}
	for i, lot := range data.Lots {
		if len(lot.Spots) != sizes[i] {
			t.Errorf("%s has %d spots, want %d", lot.Name, len(lot.Spots), sizes[i])
		}
	}
	if data.Lots[1].Spots[30].SpotNumber != "B41" {
		t.Errorf("first compact spot of Lot B = %s", data.Lots[1].Spots[30].SpotNumber)
	}
	if len(data.Penalties) != 3 {
		t.Errorf("penalties = %d", len(data.Penalties))
	}
}

func TestEntryConfig(t *testing.T) {
	f := newFixture(t, 1, map[parking.SizeClass]float64{parking.SizeLarge: 500})

	cfg := f.svc.EntryConfig()
	if len(cfg.VehicleTypes) != 3 {
		t.Fatalf("vehicle types = %v", cfg.VehicleTypes)
	}

	tests := []struct {
		class   parking.SizeClass
		first   float64
		next    float64
		penalty float64
	}{
		{parking.SizeMotorcycle, 10, 5, 0},
		{parking.SizeCompact, 25, 12, 0},
		{parking.SizeLarge, 50, 25, 500},
	}
	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			got := cfg.Rates[tt.class]
			if got.FirstHour != tt.first || got.SubsequentHour != tt.next || got.LostTicketPenalty != tt.penalty {
				t.Errorf("tariff = %+v", got)
			}
		})
	}
}
