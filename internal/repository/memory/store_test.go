package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"parking-service/internal/domain/parking"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	err := s.Seed(context.Background(), &parking.SeedData{
		Lots: []parking.LotSeed{{
			Name: "Main Lot A",
			Spots: []parking.SpotSeed{
				{SpotNumber: "A1", Size: parking.SizeCompact},
				{SpotNumber: "A2", Size: parking.SizeCompact},
				{SpotNumber: "A3", Size: parking.SizeLarge},
			},
		}},
		Penalties: []parking.Penalty{{PenaltyType: "LOST_TICKET_COMPACT", Amount: 250}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestReserveLowestIDFirst(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	var got []string
	err := s.WithinTx(ctx, func(ctx context.Context, tx parking.Tx) error {
		for i := 0; i < 2; i++ {
			spot, err := tx.ReserveSpot(ctx, parking.SizeCompact)
			if err != nil {
				return err
			}
			got = append(got, spot.SpotNumber)
		}
		_, err := tx.ReserveSpot(ctx, parking.SizeCompact)
		if !errors.Is(err, parking.ErrNoSpotAvailable) {
			t.Errorf("third reserve: got %v, want ErrNoSpotAvailable", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if len(got) != 2 || got[0] != "A1" || got[1] != "A2" {
		t.Errorf("got %v, want [A1 A2]", got)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, tx parking.Tx) error {
		spot, err := tx.ReserveSpot(ctx, parking.SizeLarge)
		if err != nil {
			return err
		}
		if err := tx.ReleaseSpot(ctx, spot.ID); err != nil {
			return err
		}
		return tx.ReleaseSpot(ctx, spot.ID)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	err = s.WithinTx(ctx, func(ctx context.Context, tx parking.Tx) error {
		return tx.ReleaseSpot(ctx, 999)
	})
	if !errors.Is(err, parking.ErrSpotNotFound) {
		t.Errorf("got %v, want ErrSpotNotFound", err)
	}
}

func TestFailedTxLeavesNoTrace(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx parking.Tx) error {
		v, err := tx.GetOrCreateVehicle(ctx, "DL01AB1234", parking.SizeCompact)
		if err != nil {
			return err
		}
		spot, err := tx.ReserveSpot(ctx, parking.SizeCompact)
		if err != nil {
			return err
		}
		ticket := &parking.Ticket{VehicleID: v.ID, SpotID: spot.ID, EntryTime: time.Now(), Status: parking.TicketActive}
		if err := tx.CreateTicket(ctx, ticket); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}

	occupied := parking.SpotOccupied
	spots, _ := s.ListSpots(ctx, &parking.SpotFilter{Status: &occupied})
	if len(spots) != 0 {
		t.Errorf("spots still occupied after rollback: %+v", spots)
	}
	tickets, _ := s.ListTicketViews(ctx, nil)
	if len(tickets) != 0 {
		t.Errorf("tickets survived rollback: %+v", tickets)
	}
	err = s.WithinTx(ctx, func(ctx context.Context, tx parking.Tx) error {
		_, err := tx.FindVehicleByNumber(ctx, "DL01AB1234")
		return err
	})
	if !errors.Is(err, parking.ErrVehicleNotFound) {
		t.Errorf("vehicle survived rollback: %v", err)
	}
}

func TestCloseTicketOnlyOnce(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	var ticketID int64
	err := s.WithinTx(ctx, func(ctx context.Context, tx parking.Tx) error {
		v, _ := tx.GetOrCreateVehicle(ctx, "MH12DE1433", parking.SizeLarge)
		spot, err := tx.ReserveSpot(ctx, parking.SizeLarge)
		if err != nil {
			return err
		}
		ticket := &parking.Ticket{VehicleID: v.ID, SpotID: spot.ID, EntryTime: time.Now(), Status: parking.TicketActive}
		if err := tx.CreateTicket(ctx, ticket); err != nil {
			return err
		}
		ticketID = ticket.ID
		dup := &parking.Ticket{VehicleID: v.ID, SpotID: spot.ID, EntryTime: time.Now(), Status: parking.TicketActive}
		if err := tx.CreateTicket(ctx, dup); !errors.Is(err, parking.ErrDuplicateActiveTicket) {
			t.Errorf("duplicate create: got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	closeOnce := func() error {
		return s.WithinTx(ctx, func(ctx context.Context, tx parking.Tx) error {
			return tx.CloseTicket(ctx, ticketID, parking.TicketExpired, time.Now())
		})
	}
	if err := closeOnce(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := closeOnce(); !errors.Is(err, parking.ErrTicketNotFound) {
		t.Errorf("second close: got %v, want ErrTicketNotFound", err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	if err := s.Seed(ctx, &parking.SeedData{
		Lots:      []parking.LotSeed{{Name: "Main Lot A", Spots: []parking.SpotSeed{{SpotNumber: "A9", Size: parking.SizeLarge}}}},
		Penalties: []parking.Penalty{{PenaltyType: "LOST_TICKET_COMPACT", Amount: 1}},
	}); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	spots, _ := s.ListSpots(ctx, nil)
	if len(spots) != 3 {
		t.Errorf("got %d spots, want 3", len(spots))
	}
	penalties, _ := s.ListPenalties(ctx)
	if len(penalties) != 1 || penalties[0].Amount != 250 {
		t.Errorf("penalties changed on reseed: %+v", penalties)
	}
}
