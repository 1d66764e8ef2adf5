package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/busline/backend/internal/clock"
	"github.com/pkordes/busline/backend/internal/domain"
	"github.com/pkordes/busline/backend/internal/repo"
)

// HoldManager owns the hold lifecycle: it creates holds, confirms them and
// reclaims the expired ones. It is the only component that changes a
// reservation's status, and it owns the hold TTL policy.
//
// Expiry is declarative. A hold stops counting against capacity the instant
// its expiry passes; no timer fires and reclamation is only cleanup.
type HoldManager struct {
	reservations repo.ReservationRepo
	clock        clock.Clock
	ttl          time.Duration
}

// HoldOption customises a HoldManager.
type HoldOption func(*HoldManager)

// WithHoldTTL overrides the default hold duration for all trips.
// Non-positive durations are ignored.
func WithHoldTTL(d time.Duration) HoldOption {
	return func(m *HoldManager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// NewHoldManager constructs a HoldManager writing to the given ledger.
func NewHoldManager(reservations repo.ReservationRepo, clk clock.Clock, opts ...HoldOption) *HoldManager {
	m := &HoldManager{
		reservations: reservations,
		clock:        clk,
		ttl:          domain.DefaultHoldTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the hold duration applied to new holds.
func (m *HoldManager) TTL() time.Duration {
	return m.ttl
}

// Now returns the instant used for every expiry decision.
func (m *HoldManager) Now() time.Time {
	return m.clock.Now()
}

// NewHold builds (but does not persist) a hold created at now.
func (m *HoldManager) NewHold(tripID uuid.UUID, holderID string, seats int, now time.Time) domain.Reservation {
	expiresAt := now.Add(m.ttl)
	return domain.Reservation{
		ID:            uuid.New(),
		TripID:        tripID,
		HolderID:      holderID,
		SeatCount:     seats,
		Status:        domain.StatusHold,
		HoldExpiresAt: &expiresAt,
		CreatedAt:     now,
	}
}

// Place persists a hold built by NewHold.
func (m *HoldManager) Place(ctx context.Context, hold domain.Reservation) (domain.Reservation, error) {
	if hold.Status != domain.StatusHold || hold.HoldExpiresAt == nil || hold.SeatCount <= 0 {
		return domain.Reservation{}, fmt.Errorf("service.HoldManager.Place: %w: malformed hold", domain.ErrInvalidInput)
	}
	created, err := m.reservations.CreateHold(ctx, hold)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("service.HoldManager.Place: %w", err)
	}
	return created, nil
}

// Confirm promotes the hold id to confirmed on behalf of holderID.
// The status, holder and expiry checks happen inside one conditional write,
// so of several concurrent confirms exactly one succeeds, and a confirm that
// arrives after expiry always fails. Every failure to match is reported as
// domain.ErrHoldNotFoundOrExpired.
func (m *HoldManager) Confirm(ctx context.Context, id uuid.UUID, holderID string) (domain.Reservation, error) {
	res, err := m.reservations.ConfirmHold(ctx, id, holderID, m.clock.Now())
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("service.HoldManager.Confirm: %w", err)
	}
	return res, nil
}

// Reclaim deletes expired holds in batches of batchSize until a batch comes
// back short, and returns the number removed. Running it again immediately
// removes nothing.
func (m *HoldManager) Reclaim(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = defaultReclaimBatch
	}
	now := m.clock.Now()

	var total int64
	for {
		n, err := m.reservations.DeleteExpiredHolds(ctx, now, batchSize)
		total += n
		if err != nil {
			return total, fmt.Errorf("service.HoldManager.Reclaim: %w", err)
		}
		if n < int64(batchSize) {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("service.HoldManager.Reclaim: %w", err)
		}
	}
}
