package domain

import (
	"time"

	"github.com/google/uuid"
)

// SeatTally is the committed seat count of one trip split by status.
// Held only ever includes live holds.
type SeatTally struct {
	Confirmed int
	Held      int

	// NextExpiry is the earliest expiry among the live holds, nil when there
	// are none. Held drops once that instant passes.
	NextExpiry *time.Time
}

// ValidFor returns how long after now the tally stays accurate when nothing
// is written. The bool is false when no live hold can lapse.
func (t SeatTally) ValidFor(now time.Time) (time.Duration, bool) {
	if t.NextExpiry == nil {
		return 0, false
	}
	return max(t.NextExpiry.Sub(now), 0), true
}

// Committed returns confirmed plus live-held seats.
func (t SeatTally) Committed() int {
	return t.Confirmed + t.Held
}

// Available returns the seats still free out of capacity. It is never negative.
func (t SeatTally) Available(capacity int) int {
	free := capacity - t.Committed()
	if free < 0 {
		return 0
	}
	return free
}

// TallyOf computes the tally of a trip from its reservation records.
// Records belonging to other trips are ignored.
func TallyOf(tripID uuid.UUID, reservations []Reservation, now time.Time) SeatTally {
	var t SeatTally
	for _, r := range reservations {
		if r.TripID != tripID || !r.LiveAt(now) {
			continue
		}
		if r.Status == StatusConfirmed {
			t.Confirmed += r.SeatCount
			continue
		}
		t.Held += r.SeatCount
		if r.HoldExpiresAt != nil && (t.NextExpiry == nil || r.HoldExpiresAt.Before(*t.NextExpiry)) {
			exp := *r.HoldExpiresAt
			t.NextExpiry = &exp
		}
	}
	return t
}

// SeatInfo is the public availability view of a trip.
type SeatInfo struct {
	TripID    uuid.UUID `json:"trip_id"`
	Capacity  int       `json:"capacity"`
	Confirmed int       `json:"confirmed"`
	Held      int       `json:"held"`
	Available int       `json:"available"`
}

// NewSeatInfo builds the availability view for a trip from its tally.
func NewSeatInfo(trip Trip, t SeatTally) SeatInfo {
	return SeatInfo{
		TripID:    trip.ID,
		Capacity:  trip.Capacity,
		Confirmed: t.Confirmed,
		Held:      t.Held,
		Available: t.Available(trip.Capacity),
	}
}
