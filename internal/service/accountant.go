// Package service contains the business logic for the reservation service.
// Services validate inputs, enforce capacity rules, and orchestrate repo calls.
// No SQL lives here — services depend on repo interfaces, not implementations.
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

// Accountant computes how many seats of a trip are committed: confirmed
// seats plus seats of holds that have not yet expired. It has no side effects.
//
// When called with a context from repo.Transactor.WithTx the tally is read
// on that transaction, which is what makes Reserve's check-then-insert atomic.
type Accountant struct {
	reservations repo.ReservationRepo
	clock        clock.Clock
}

// NewAccountant constructs an Accountant reading from the given ledger.
func NewAccountant(reservations repo.ReservationRepo, clk clock.Clock) *Accountant {
	return &Accountant{reservations: reservations, clock: clk}
}

// Committed returns the committed seat count of tripID at the current instant.
func (a *Accountant) Committed(ctx context.Context, tripID uuid.UUID) (int, error) {
	return a.CommittedAt(ctx, tripID, a.clock.Now())
}

// CommittedAt returns the committed seat count of tripID at now. It is the
// figure CheckFits admits a request against.
func (a *Accountant) CommittedAt(ctx context.Context, tripID uuid.UUID, now time.Time) (int, error) {
	t, err := a.TallyAt(ctx, tripID, now)
	if err != nil {
		return 0, err
	}
	return t.Committed(), nil
}

// TallyAt returns the confirmed and live-held seat counts of tripID, treating
// holds that expire at or before now as released.
func (a *Accountant) TallyAt(ctx context.Context, tripID uuid.UUID, now time.Time) (domain.SeatTally, error) {
	t, err := a.reservations.TallySeats(ctx, tripID, now)
	if err != nil {
		return domain.SeatTally{}, fmt.Errorf("service.Accountant.TallyAt: %w", err)
	}
	return t, nil
}

// CheckFits returns domain.ErrInsufficientCapacity unless seats more seats fit
// on trip at now, that is unless committed + seats <= capacity.
func (a *Accountant) CheckFits(ctx context.Context, trip domain.Trip, seats int, now time.Time) error {
	committed, err := a.CommittedAt(ctx, trip.ID, now)
	if err != nil {
		return err
	}
	if free := max(trip.Capacity-committed, 0); seats <= 0 || seats > free {
		return fmt.Errorf("%w: %d requested, %d available", domain.ErrInsufficientCapacity, seats, free)
	}
	return nil
}
