package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pkordes/busline/backend/internal/domain"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func hold(tripID uuid.UUID, seats int, expiresAt time.Time) domain.Reservation {
	return domain.Reservation{
		ID:            uuid.New(),
		TripID:        tripID,
		HolderID:      "user-1",
		SeatCount:     seats,
		Status:        domain.StatusHold,
		HoldExpiresAt: &expiresAt,
		CreatedAt:     expiresAt.Add(-domain.DefaultHoldTTL),
	}
}

func confirmed(tripID uuid.UUID, seats int) domain.Reservation {
	at := now.Add(-time.Hour)
	return domain.Reservation{
		ID:          uuid.New(),
		TripID:      tripID,
		HolderID:    "user-2",
		SeatCount:   seats,
		Status:      domain.StatusConfirmed,
		CreatedAt:   at,
		ConfirmedAt: &at,
	}
}

func TestTallyOf_CountsConfirmedAndLiveHolds(t *testing.T) {
	trip := uuid.New()
	other := uuid.New()

	tally := domain.TallyOf(trip, []domain.Reservation{
		confirmed(trip, 4),
		hold(trip, 3, now.Add(time.Minute)),
		hold(trip, 5, now.Add(-time.Minute)), // expired
		hold(trip, 2, now),                   // expires exactly now: not live
		confirmed(other, 7),
	}, now)

	assert.Equal(t, 4, tally.Confirmed)
	assert.Equal(t, 3, tally.Held)
	assert.Equal(t, 7, tally.Committed())
}

func TestTallyOf_NextExpiryIsEarliestLiveHold(t *testing.T) {
	trip := uuid.New()

	tally := domain.TallyOf(trip, []domain.Reservation{
		hold(trip, 1, now.Add(5*time.Minute)),
		hold(trip, 1, now.Add(90*time.Second)),
		hold(trip, 1, now.Add(-time.Second)), // expired, ignored
		confirmed(trip, 2),
	}, now)

	if assert.NotNil(t, tally.NextExpiry) {
		assert.Equal(t, now.Add(90*time.Second), *tally.NextExpiry)
	}
	d, bounded := tally.ValidFor(now)
	assert.True(t, bounded)
	assert.Equal(t, 90*time.Second, d)
}

func TestSeatTally_ValidFor_NoLiveHolds(t *testing.T) {
	trip := uuid.New()

	tally := domain.TallyOf(trip, []domain.Reservation{confirmed(trip, 2)}, now)

	assert.Nil(t, tally.NextExpiry)
	_, bounded := tally.ValidFor(now)
	assert.False(t, bounded)
}

func TestSeatTally_ValidFor_PastExpiryIsZero(t *testing.T) {
	exp := now.Add(-time.Second)
	tally := domain.SeatTally{Held: 1, NextExpiry: &exp}

	d, bounded := tally.ValidFor(now)

	assert.True(t, bounded)
	assert.Zero(t, d)
}

func TestSeatTally_AvailableNeverNegative(t *testing.T) {
	tally := domain.SeatTally{Confirmed: 8, Held: 4}

	assert.Equal(t, 0, tally.Available(10))
	assert.Equal(t, 3, tally.Available(15))
}

func TestNewSeatInfo(t *testing.T) {
	trip := domain.Trip{ID: uuid.New(), Capacity: 10, Status: domain.TripScheduled}

	info := domain.NewSeatInfo(trip, domain.SeatTally{Confirmed: 2, Held: 5})

	assert.Equal(t, domain.SeatInfo{TripID: trip.ID, Capacity: 10, Confirmed: 2, Held: 5, Available: 3}, info)
}
