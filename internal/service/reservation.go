package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/busline/backend/internal/domain"
	"github.com/pkordes/busline/backend/internal/repo"
)

// minCacheAge is the shortest entry lifetime worth writing; Redis rejects
// sub-millisecond expiries.
const minCacheAge = time.Millisecond

// SeatInfoCache stores recently computed availability views. It is advisory:
// the ledger stays the source of truth and cache errors never fail a request.
type SeatInfoCache interface {
	Get(ctx context.Context, tripID uuid.UUID) (domain.SeatInfo, bool, error)
	// Set stores info. A positive maxAge shorter than the cache's own TTL
	// bounds the entry's lifetime.
	Set(ctx context.Context, info domain.SeatInfo, maxAge time.Duration) error
	Invalidate(ctx context.Context, tripID uuid.UUID) error
}

// ConfirmationDispatcher hands a confirmed reservation to the notification
// collaborator without blocking the caller.
type ConfirmationDispatcher interface {
	Dispatch(c domain.Confirmation)
}

// ReservationService is the reservation controller: it exposes reserve,
// confirm and the read operations, and coordinates the Accountant and the
// HoldManager under a per-trip transaction.
type ReservationService struct {
	tx           repo.Transactor
	trips        repo.TripRepo
	reservations repo.ReservationRepo
	holds        *HoldManager
	accountant   *Accountant
	cache        SeatInfoCache
	dispatcher   ConfirmationDispatcher
	log          *slog.Logger
}

// Option customises a ReservationService.
type Option func(*ReservationService)

// WithSeatInfoCache serves SeatInfo from c and invalidates it after writes.
func WithSeatInfoCache(c SeatInfoCache) Option {
	return func(s *ReservationService) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithDispatcher sends confirmations to d.
func WithDispatcher(d ConfirmationDispatcher) Option {
	return func(s *ReservationService) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithLogger sets the logger used for recoverable side-effect failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *ReservationService) {
		if l != nil {
			s.log = l
		}
	}
}

// NewReservationService constructs a ReservationService. The Accountant
// shares the HoldManager's clock so capacity checks and expiry agree on "now".
func NewReservationService(tx repo.Transactor, trips repo.TripRepo, reservations repo.ReservationRepo, holds *HoldManager, opts ...Option) *ReservationService {
	s := &ReservationService{
		tx:           tx,
		trips:        trips,
		reservations: reservations,
		holds:        holds,
		accountant:   NewAccountant(reservations, holds.clock),
		cache:        noopCache{},
		dispatcher:   noopDispatcher{},
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reserve places a hold of seats seats on tripID for principal p.
//
// The trip row is locked, the committed total is read and the hold inserted
// in one transaction, so concurrent reserves on the same trip are serialized
// and can never jointly overbook it. Reserves on different trips do not wait
// for each other.
//
// Returns domain.ErrInvalidInput for a non-positive seat count,
// domain.ErrTripNotFound for unknown or canceled trips and
// domain.ErrInsufficientCapacity when the hold does not fit.
func (s *ReservationService) Reserve(ctx context.Context, p domain.Principal, tripID uuid.UUID, seats int) (domain.Reservation, error) {
	if p.ID == "" {
		return domain.Reservation{}, fmt.Errorf("service.ReservationService.Reserve: %w", domain.ErrUnauthorized)
	}
	if seats <= 0 {
		return domain.Reservation{}, fmt.Errorf("service.ReservationService.Reserve: %w: seat_count must be a positive integer", domain.ErrInvalidInput)
	}

	var result domain.Reservation
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		trip, err := s.trips.GetForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !trip.Bookable() {
			return domain.ErrTripNotFound
		}

		// Read the clock only once the trip lock is held.
		now := s.holds.Now()
		if err := s.accountant.CheckFits(ctx, trip, seats, now); err != nil {
			return err
		}

		result, err = s.holds.Place(ctx, s.holds.NewHold(trip.ID, p.ID, seats, now))
		return err
	})
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("service.ReservationService.Reserve: %w", err)
	}

	s.invalidate(ctx, tripID)
	return result, nil
}

// Confirm finalizes the hold id for principal p. Any reason the hold cannot
// be confirmed (unknown, already confirmed, expired, someone else's) yields
// domain.ErrHoldNotFoundOrExpired.
//
// On success the confirmation is handed to the notification dispatcher;
// delivery happens asynchronously and its failure never undoes the confirm.
func (s *ReservationService) Confirm(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Reservation, error) {
	if p.ID == "" {
		return domain.Reservation{}, fmt.Errorf("service.ReservationService.Confirm: %w", domain.ErrUnauthorized)
	}

	res, err := s.holds.Confirm(ctx, id, p.ID)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("service.ReservationService.Confirm: %w", err)
	}

	s.invalidate(ctx, res.TripID)
	s.dispatcher.Dispatch(domain.Confirmation{Reservation: res, Contact: p.Email})
	return res, nil
}

// SeatInfo returns capacity, confirmed, live-held and available seats of tripID.
// Returns domain.ErrTripNotFound if the trip does not exist.
func (s *ReservationService) SeatInfo(ctx context.Context, tripID uuid.UUID) (domain.SeatInfo, error) {
	if info, ok, err := s.cache.Get(ctx, tripID); err != nil {
		s.log.WarnContext(ctx, "seat info cache read failed", "trip_id", tripID, "error", err)
	} else if ok {
		return info, nil
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return domain.SeatInfo{}, fmt.Errorf("service.ReservationService.SeatInfo: %w", err)
	}
	now := s.holds.Now()
	tally, err := s.accountant.TallyAt(ctx, tripID, now)
	if err != nil {
		return domain.SeatInfo{}, fmt.Errorf("service.ReservationService.SeatInfo: %w", err)
	}

	info := domain.NewSeatInfo(trip, tally)
	s.store(ctx, info, tally, now)
	return info, nil
}

// Get returns a confirmed reservation. Holds, unknown IDs and reservations
// of other holders all return domain.ErrNotFound; admins may read any
// confirmed reservation.
func (s *ReservationService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Reservation, error) {
	if p.ID == "" {
		return domain.Reservation{}, fmt.Errorf("service.ReservationService.Get: %w", domain.ErrUnauthorized)
	}

	res, err := s.reservations.GetConfirmed(ctx, id)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("service.ReservationService.Get: %w", err)
	}
	if !p.IsAdmin() && res.HolderID != p.ID {
		return domain.Reservation{}, fmt.Errorf("service.ReservationService.Get: %w", domain.ErrNotFound)
	}
	return res, nil
}

// List returns one page of confirmed reservations visible to p (their own,
// or all of them for admins) and the total count.
// Always returns a non-nil slice so callers can safely range over it.
func (s *ReservationService) List(ctx context.Context, p domain.Principal, page domain.PaginationParams) ([]domain.Reservation, int64, error) {
	if p.ID == "" {
		return nil, 0, fmt.Errorf("service.ReservationService.List: %w", domain.ErrUnauthorized)
	}

	holder := p.ID
	if p.IsAdmin() {
		holder = ""
	}

	items, total, err := s.reservations.ListConfirmed(ctx, holder, page)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ReservationService.List: %w", err)
	}
	if items == nil {
		items = []domain.Reservation{}
	}
	return items, total, nil
}

// store caches info no longer than its earliest live hold stays live, so a
// lapsed hold is never served as held from the cache.
func (s *ReservationService) store(ctx context.Context, info domain.SeatInfo, tally domain.SeatTally, now time.Time) {
	maxAge, bounded := tally.ValidFor(now)
	if bounded && maxAge < minCacheAge {
		return
	}
	if err := s.cache.Set(ctx, info, maxAge); err != nil {
		s.log.WarnContext(ctx, "seat info cache write failed", "trip_id", info.TripID, "error", err)
	}
}

// invalidate drops the cached availability of tripID after a write.
func (s *ReservationService) invalidate(ctx context.Context, tripID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, tripID); err != nil {
		s.log.WarnContext(ctx, "seat info cache invalidation failed", "trip_id", tripID, "error", err)
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID) (domain.SeatInfo, bool, error) {
	return domain.SeatInfo{}, false, nil
}
func (noopCache) Set(context.Context, domain.SeatInfo, time.Duration) error { return nil }
func (noopCache) Invalidate(context.Context, uuid.UUID) error               { return nil }

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(domain.Confirmation) {}
