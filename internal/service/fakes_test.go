package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/busline/backend/internal/domain"
	"github.com/pkordes/busline/backend/internal/repo"
)

// memLedger is an in-memory stand-in for the Postgres trip source, ledger and
// transactor. WithTx serializes units of work on one mutex, which is what the
// per-trip row lock gives the real implementation.
type memLedger struct {
	txMu sync.Mutex

	mu           sync.Mutex
	trips        map[uuid.UUID]domain.Trip
	reservations map[uuid.UUID]domain.Reservation

	// tallyHook, when set, runs after every TallySeats read. Tests use it to
	// widen the window between the capacity check and the insert.
	tallyHook func()
}

func newMemLedger() *memLedger {
	return &memLedger{
		trips:        map[uuid.UUID]domain.Trip{},
		reservations: map[uuid.UUID]domain.Reservation{},
	}
}

var (
	_ repo.Transactor      = (*memLedger)(nil)
	_ repo.TripRepo        = (*memLedger)(nil)
	_ repo.ReservationRepo = (*memLedger)(nil)
)

func (l *memLedger) addTrip(capacity int) domain.Trip {
	return l.addTripWithStatus(capacity, domain.TripScheduled)
}

func (l *memLedger) addTripWithStatus(capacity int, status domain.TripStatus) domain.Trip {
	l.mu.Lock()
	defer l.mu.Unlock()
	trip := domain.Trip{
		ID:        uuid.New(),
		Code:      "SCH-" + uuid.NewString()[:8],
		BusNumber: "NB-1",
		Capacity:  capacity,
		RouteDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Status:    status,
	}
	l.trips[trip.ID] = trip
	return trip
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reservations)
}

func (l *memLedger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	return fn(ctx)
}

func (l *memLedger) GetByID(_ context.Context, id uuid.UUID) (domain.Trip, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	trip, ok := l.trips[id]
	if !ok {
		return domain.Trip{}, domain.ErrTripNotFound
	}
	return trip, nil
}

func (l *memLedger) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return l.GetByID(ctx, id)
}

func (l *memLedger) CreateHold(_ context.Context, hold domain.Reservation) (domain.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reservations[hold.ID] = hold
	return hold, nil
}

func (l *memLedger) TallySeats(_ context.Context, tripID uuid.UUID, now time.Time) (domain.SeatTally, error) {
	l.mu.Lock()
	all := make([]domain.Reservation, 0, len(l.reservations))
	for _, r := range l.reservations {
		all = append(all, r)
	}
	hook := l.tallyHook
	l.mu.Unlock()

	if hook != nil {
		hook()
	}
	return domain.TallyOf(tripID, all, now), nil
}

func (l *memLedger) ConfirmHold(_ context.Context, id uuid.UUID, holderID string, now time.Time) (domain.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reservations[id]
	if !ok || !r.ConfirmableAt(holderID, now) {
		return domain.Reservation{}, domain.ErrHoldNotFoundOrExpired
	}
	confirmedAt := now
	r.Status = domain.StatusConfirmed
	r.HoldExpiresAt = nil
	r.ConfirmedAt = &confirmedAt
	l.reservations[id] = r
	return r, nil
}

func (l *memLedger) DeleteExpiredHolds(_ context.Context, now time.Time, limit int) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for id, r := range l.reservations {
		if n >= int64(limit) {
			break
		}
		if r.Status == domain.StatusHold && !r.LiveAt(now) {
			delete(l.reservations, id)
			n++
		}
	}
	return n, nil
}

func (l *memLedger) GetConfirmed(_ context.Context, id uuid.UUID) (domain.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reservations[id]
	if !ok || r.Status != domain.StatusConfirmed {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return r, nil
}

func (l *memLedger) ListConfirmed(_ context.Context, holderID string, p domain.PaginationParams) ([]domain.Reservation, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var matched []domain.Reservation
	for _, r := range l.reservations {
		if r.Status != domain.StatusConfirmed || (holderID != "" && r.HolderID != holderID) {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ConfirmedAt.After(*matched[j].ConfirmedAt)
	})
	total := int64(len(matched))
	start := p.Offset()
	if start >= len(matched) {
		return nil, total, nil
	}
	end := min(start+p.Limit, len(matched))
	return matched[start:end], total, nil
}

// mockSeatCache is a hand-written test double for service.SeatInfoCache.
type mockSeatCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]domain.SeatInfo
	maxAges     map[uuid.UUID]time.Duration
	getErr      error
	invalidated []uuid.UUID
}

func newMockSeatCache() *mockSeatCache {
	return &mockSeatCache{
		entries: map[uuid.UUID]domain.SeatInfo{},
		maxAges: map[uuid.UUID]time.Duration{},
	}
}

func (c *mockSeatCache) Get(_ context.Context, tripID uuid.UUID) (domain.SeatInfo, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return domain.SeatInfo{}, false, c.getErr
	}
	info, ok := c.entries[tripID]
	return info, ok, nil
}

func (c *mockSeatCache) Set(_ context.Context, info domain.SeatInfo, maxAge time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[info.TripID] = info
	c.maxAges[info.TripID] = maxAge
	return nil
}

func (c *mockSeatCache) Invalidate(_ context.Context, tripID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tripID)
	c.invalidated = append(c.invalidated, tripID)
	return nil
}

// recordingDispatcher collects every confirmation it is handed.
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []domain.Confirmation
}

func (d *recordingDispatcher) Dispatch(c domain.Confirmation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, c)
}

func (d *recordingDispatcher) all() []domain.Confirmation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Confirmation(nil), d.sent...)
}
