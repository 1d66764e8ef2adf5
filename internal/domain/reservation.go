package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle state of a Reservation.
// Expiry is not a stored status: a hold whose HoldExpiresAt has passed is
// simply no longer live.
type ReservationStatus string

const (
	StatusHold      ReservationStatus = "hold"
	StatusConfirmed ReservationStatus = "confirmed"
)

// DefaultHoldTTL is how long a hold keeps its seats before it lapses.
const DefaultHoldTTL = 10 * time.Minute

// Reservation is a claim on SeatCount seats of a trip.
// HoldExpiresAt is non-nil iff Status is StatusHold.
// ConfirmedAt is non-nil iff Status is StatusConfirmed.
type Reservation struct {
	ID            uuid.UUID
	TripID        uuid.UUID
	HolderID      string
	SeatCount     int
	Status        ReservationStatus
	HoldExpiresAt *time.Time
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
}

// LiveAt reports whether the reservation counts against trip capacity at now.
// Confirmed reservations always do; holds only while their expiry is strictly
// after now.
func (r Reservation) LiveAt(now time.Time) bool {
	switch r.Status {
	case StatusConfirmed:
		return true
	case StatusHold:
		return r.HoldExpiresAt != nil && r.HoldExpiresAt.After(now)
	default:
		return false
	}
}

// ConfirmableAt reports whether holderID may confirm the reservation at now.
func (r Reservation) ConfirmableAt(holderID string, now time.Time) bool {
	return r.Status == StatusHold && r.HolderID == holderID && r.LiveAt(now)
}

// Confirmation is handed to the notification collaborator after a hold has
// been confirmed. Contact is the address the ticket should be delivered to.
type Confirmation struct {
	Reservation Reservation
	Contact     string
}
