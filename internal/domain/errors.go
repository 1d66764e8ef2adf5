package domain

import "errors"

// ErrNotFound is returned when a requested reservation does not exist or is
// not visible to the caller. Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned when a request fails validation before any
// state is read (non-positive seat count, malformed identifiers).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrInvalidInput = errors.New("invalid input")

// ErrTripNotFound is returned when the referenced trip does not exist or has
// been canceled.
var ErrTripNotFound = errors.New("trip not found")

// ErrInsufficientCapacity is returned by Reserve when the trip does not have
// enough free seats at evaluation time.
var ErrInsufficientCapacity = errors.New("insufficient capacity")

// ErrHoldNotFoundOrExpired is the single failure reported by Confirm.
// It deliberately covers "never existed", "already confirmed", "expired" and
// "held by someone else" so callers cannot probe other users' reservations.
var ErrHoldNotFoundOrExpired = errors.New("hold not found or expired")

// ErrUnauthorized is returned when a request carries no valid principal.
var ErrUnauthorized = errors.New("unauthorized")

// ErrStorageUnavailable wraps transient persistence failures. An operation
// failing with it has left the ledger unchanged.
var ErrStorageUnavailable = errors.New("storage unavailable")
