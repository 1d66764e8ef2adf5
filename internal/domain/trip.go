// Package domain contains the core data types for the bus reservation service.
// This package has no dependencies on other internal packages and is imported
// by every other internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus mirrors the schedule status maintained by the schedule CRUD
// collaborator.
type TripStatus string

const (
	TripScheduled TripStatus = "scheduled"
	TripCanceled  TripStatus = "canceled"
)

// Trip is a scheduled bus run. It is read-only from the point of view of the
// reservation core: Capacity is the seating capacity of the bus assigned to
// the schedule and does not change while a reservation decision is made.
type Trip struct {
	ID        uuid.UUID
	Code      string
	BusNumber string
	Capacity  int
	RouteDate time.Time
	Status    TripStatus
}

// Bookable reports whether new holds may be placed on the trip.
func (t Trip) Bookable() bool {
	return t.Status == TripScheduled
}
