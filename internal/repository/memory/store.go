// internal/repository/memory/store.go
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"parking-service/internal/domain/parking"
	xerrors "parking-service/internal/pkg/errors"

	"gopkg.in/guregu/null.v4"
)

// Store keeps every table in process memory. Write transactions are
// serialized by a single lock and undone from a journal on failure.
type Store struct {
	mu sync.RWMutex

	lots      map[int64]*parking.Lot
	spots     map[int64]*parking.Spot
	spotOrder []int64

	vehicles        map[int64]*parking.Vehicle
	vehicleByNumber map[string]int64

	tickets         map[int64]*parking.Ticket
	activeByVehicle map[int64]int64

	payments        map[int64]*parking.Payment
	paymentByTicket map[int64]int64

	penalties     map[int64]*parking.Penalty
	penaltyByType map[string]int64

	lastID map[string]int64
}

func New() *Store {
	return &Store{
		lots:            make(map[int64]*parking.Lot),
		spots:           make(map[int64]*parking.Spot),
		vehicles:        make(map[int64]*parking.Vehicle),
		vehicleByNumber: make(map[string]int64),
		tickets:         make(map[int64]*parking.Ticket),
		activeByVehicle: make(map[int64]int64),
		payments:        make(map[int64]*parking.Payment),
		paymentByTicket: make(map[int64]int64),
		penalties:       make(map[int64]*parking.Penalty),
		penaltyByType:   make(map[string]int64),
		lastID:          make(map[string]int64),
	}
}

// nextID mimics a sequence: values are never handed out twice, even
// after a rollback.
func (s *Store) nextID(table string) int64 {
	s.lastID[table]++
	return s.lastID[table]
}

// ========== Transactions ==========

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx parking.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s}
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

type tx struct {
	s    *Store
	undo []func()
}

func (t *tx) onRollback(f func()) {
	t.undo = append(t.undo, f)
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) ReserveSpot(_ context.Context, size parking.SizeClass) (*parking.Spot, error) {
	for _, id := range t.s.spotOrder {
		spot := t.s.spots[id]
		if spot.Size != size || spot.Status != parking.SpotAvailable {
			continue
		}
		spot.Status = parking.SpotOccupied
		t.onRollback(func() { spot.Status = parking.SpotAvailable })
		cp := *spot
		return &cp, nil
	}
	return nil, parking.ErrNoSpotAvailable
}

func (t *tx) ReleaseSpot(_ context.Context, spotID int64) error {
	spot, ok := t.s.spots[spotID]
	if !ok {
		return parking.ErrSpotNotFound
	}
	if spot.Status == parking.SpotAvailable {
		return nil
	}
	prev := spot.Status
	spot.Status = parking.SpotAvailable
	t.onRollback(func() { spot.Status = prev })
	return nil
}

func (t *tx) GetOrCreateVehicle(_ context.Context, vehicleNumber string, vehicleType parking.SizeClass) (*parking.Vehicle, error) {
	if id, ok := t.s.vehicleByNumber[vehicleNumber]; ok {
		cp := *t.s.vehicles[id]
		return &cp, nil
	}

	v := &parking.Vehicle{
		ID:            t.s.nextID("vehicle"),
		VehicleNumber: vehicleNumber,
		VehicleType:   vehicleType,
		CreatedAt:     time.Now().UTC(),
	}
	t.s.vehicles[v.ID] = v
	t.s.vehicleByNumber[vehicleNumber] = v.ID
	t.onRollback(func() {
		delete(t.s.vehicles, v.ID)
		delete(t.s.vehicleByNumber, vehicleNumber)
	})

	cp := *v
	return &cp, nil
}

func (t *tx) FindVehicleByNumber(_ context.Context, vehicleNumber string) (*parking.Vehicle, error) {
	id, ok := t.s.vehicleByNumber[vehicleNumber]
	if !ok {
		return nil, parking.ErrVehicleNotFound
	}
	cp := *t.s.vehicles[id]
	return &cp, nil
}

func (t *tx) GetVehicle(_ context.Context, id int64) (*parking.Vehicle, error) {
	v, ok := t.s.vehicles[id]
	if !ok {
		return nil, parking.ErrVehicleNotFound
	}
	cp := *v
	return &cp, nil
}

func (t *tx) FindActiveTicketByVehicle(_ context.Context, vehicleID int64) (*parking.Ticket, error) {
	id, ok := t.s.activeByVehicle[vehicleID]
	if !ok {
		return nil, parking.ErrTicketNotFound
	}
	cp := *t.s.tickets[id]
	return &cp, nil
}

func (t *tx) LockTicket(_ context.Context, ticketID int64) (*parking.Ticket, error) {
	ticket, ok := t.s.tickets[ticketID]
	if !ok {
		return nil, parking.ErrTicketNotFound
	}
	cp := *ticket
	return &cp, nil
}

func (t *tx) CreateTicket(_ context.Context, ticket *parking.Ticket) error {
	if _, ok := t.s.activeByVehicle[ticket.VehicleID]; ok {
		return parking.ErrDuplicateActiveTicket
	}
	if _, ok := t.s.vehicles[ticket.VehicleID]; !ok {
		return parking.ErrVehicleNotFound
	}
	if _, ok := t.s.spots[ticket.SpotID]; !ok {
		return parking.ErrSpotNotFound
	}

	ticket.ID = t.s.nextID("ticket")
	stored := *ticket
	t.s.tickets[ticket.ID] = &stored
	if stored.Status == parking.TicketActive {
		t.s.activeByVehicle[stored.VehicleID] = stored.ID
	}
	t.onRollback(func() {
		delete(t.s.tickets, stored.ID)
		if t.s.activeByVehicle[stored.VehicleID] == stored.ID {
			delete(t.s.activeByVehicle, stored.VehicleID)
		}
	})
	return nil
}

func (t *tx) CloseTicket(_ context.Context, ticketID int64, status parking.TicketStatus, exitTime time.Time) error {
	if !status.IsTerminal() {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "ticket can only be closed into a terminal status")
	}

	ticket, ok := t.s.tickets[ticketID]
	if !ok || ticket.Status != parking.TicketActive {
		return parking.ErrTicketNotFound
	}

	prev := *ticket
	ticket.Status = status
	ticket.ExitTime = null.TimeFrom(exitTime)
	delete(t.s.activeByVehicle, ticket.VehicleID)
	t.onRollback(func() {
		*ticket = prev
		t.s.activeByVehicle[prev.VehicleID] = prev.ID
	})
	return nil
}

func (t *tx) CreatePayment(_ context.Context, payment *parking.Payment) error {
	if payment.TicketID.Valid {
		if _, exists := t.s.paymentByTicket[payment.TicketID.Int64]; exists {
			return parking.ErrStoreConflict
		}
	}

	payment.ID = t.s.nextID("payment")
	stored := *payment
	t.s.payments[stored.ID] = &stored
	if stored.TicketID.Valid {
		t.s.paymentByTicket[stored.TicketID.Int64] = stored.ID
	}
	t.onRollback(func() {
		delete(t.s.payments, stored.ID)
		if stored.TicketID.Valid {
			delete(t.s.paymentByTicket, stored.TicketID.Int64)
		}
	})
	return nil
}

// ========== Provisioning ==========

func (s *Store) Seed(ctx context.Context, data *parking.SeedData) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ls := range data.Lots {
		if s.lotByName(ls.Name) != nil {
			continue
		}
		lot := &parking.Lot{ID: s.nextID("lot"), Name: ls.Name}
		s.lots[lot.ID] = lot

		for _, ss := range ls.Spots {
			spot := &parking.Spot{
				ID:         s.nextID("spot"),
				LotID:      lot.ID,
				SpotNumber: ss.SpotNumber,
				Size:       ss.Size,
				Status:     parking.SpotAvailable,
			}
			s.spots[spot.ID] = spot
			s.spotOrder = append(s.spotOrder, spot.ID)
		}
	}

	for _, p := range data.Penalties {
		if _, ok := s.penaltyByType[p.PenaltyType]; ok {
			continue
		}
		stored := p
		stored.ID = s.nextID("penalty")
		s.penalties[stored.ID] = &stored
		s.penaltyByType[stored.PenaltyType] = stored.ID
	}

	return nil
}

func (s *Store) lotByName(name string) *parking.Lot {
	for _, l := range s.lots {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// ========== Reader ==========

func (s *Store) GetTicket(_ context.Context, id int64) (*parking.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, parking.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) GetTicketView(_ context.Context, id int64) (*parking.TicketView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	view := s.ticketView(t)
	return &view, nil
}

func (s *Store) GetVehicleByID(_ context.Context, id int64) (*parking.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, parking.ErrVehicleNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *Store) GetPaymentByTicket(_ context.Context, ticketID int64) (*parking.PaymentView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.paymentByTicket[ticketID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	view := s.paymentView(s.payments[id])
	return &view, nil
}

func (s *Store) ListLots(_ context.Context) ([]parking.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lots := make([]parking.Lot, 0, len(s.lots))
	for _, l := range s.lots {
		lots = append(lots, *l)
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].ID < lots[j].ID })
	return lots, nil
}

func (s *Store) GetLot(_ context.Context, id int64) (*parking.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lots[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) ListSpots(_ context.Context, filter *parking.SpotFilter) ([]parking.Spot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter == nil {
		filter = &parking.SpotFilter{}
	}

	var spots []parking.Spot
	for _, id := range s.spotOrder {
		spot := s.spots[id]
		if filter.LotID != nil && spot.LotID != *filter.LotID {
			continue
		}
		if filter.Size != nil && spot.Size != *filter.Size {
			continue
		}
		if filter.Status != nil && spot.Status != *filter.Status {
			continue
		}
		spots = append(spots, *spot)
	}
	return spots, nil
}

func (s *Store) ListTicketViews(_ context.Context, filter *parking.TicketFilter) ([]parking.TicketView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter == nil {
		filter = &parking.TicketFilter{}
	}

	var views []parking.TicketView
	for _, t := range s.tickets {
		if !matchesTicket(t, filter) {
			continue
		}
		view := s.ticketView(t)
		if filter.VehicleNumber != "" &&
			!strings.Contains(strings.ToUpper(view.VehicleNumber), strings.ToUpper(filter.VehicleNumber)) {
			continue
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if !a.EntryTime.Equal(b.EntryTime) {
			if filter.SortAsc {
				return a.EntryTime.Before(b.EntryTime)
			}
			return a.EntryTime.After(b.EntryTime)
		}
		if filter.SortAsc {
			return a.TicketID < b.TicketID
		}
		return a.TicketID > b.TicketID
	})

	if filter.Limit > 0 && len(views) > filter.Limit {
		views = views[:filter.Limit]
	}
	return views, nil
}

func matchesTicket(t *parking.Ticket, f *parking.TicketFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if t.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.SpotID != nil && t.SpotID != *f.SpotID {
		return false
	}
	if f.EntryFrom != nil && t.EntryTime.Before(*f.EntryFrom) {
		return false
	}
	if f.EntryTo != nil && t.EntryTime.After(*f.EntryTo) {
		return false
	}
	if f.ExitFrom != nil && (!t.ExitTime.Valid || t.ExitTime.Time.Before(*f.ExitFrom)) {
		return false
	}
	if f.ExitTo != nil && (!t.ExitTime.Valid || t.ExitTime.Time.After(*f.ExitTo)) {
		return false
	}
	return true
}

func (s *Store) ListPaymentViews(_ context.Context, from, to time.Time) ([]parking.PaymentView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var views []parking.PaymentView
	for _, p := range s.payments {
		if p.TransactionTime.Before(from) || p.TransactionTime.After(to) {
			continue
		}
		views = append(views, s.paymentView(p))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views, nil
}

func (s *Store) ListPenalties(_ context.Context) ([]parking.Penalty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]parking.Penalty, 0, len(s.penalties))
	for _, p := range s.penalties {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ticketView(t *parking.Ticket) parking.TicketView {
	view := parking.TicketView{
		TicketID:  t.ID,
		SpotID:    t.SpotID,
		EntryTime: t.EntryTime,
		ExitTime:  t.ExitTime,
		Status:    t.Status,
	}
	if v, ok := s.vehicles[t.VehicleID]; ok {
		view.VehicleNumber = v.VehicleNumber
		view.VehicleType = v.VehicleType
	}
	if spot, ok := s.spots[t.SpotID]; ok {
		view.SpotNumber = spot.SpotNumber
		view.LotID = spot.LotID
		if lot, ok := s.lots[spot.LotID]; ok {
			view.LotName = lot.Name
		}
	}
	if pid, ok := s.paymentByTicket[t.ID]; ok {
		view.TotalAmount = null.FloatFrom(s.payments[pid].TotalAmount)
	}
	return view
}

func (s *Store) paymentView(p *parking.Payment) parking.PaymentView {
	view := parking.PaymentView{Payment: *p}
	if p.PenaltyID.Valid {
		if pen, ok := s.penalties[p.PenaltyID.Int64]; ok {
			view.PenaltyAmount = null.FloatFrom(pen.Amount)
		}
	}
	if p.TicketID.Valid {
		if t, ok := s.tickets[p.TicketID.Int64]; ok {
			if spot, ok := s.spots[t.SpotID]; ok {
				if lot, ok := s.lots[spot.LotID]; ok {
					view.LotName = null.StringFrom(lot.Name)
				}
			}
		}
	}
	return view
}
