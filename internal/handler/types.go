package handler

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/busline/backend/internal/domain"
)

// Request and response bodies, mirroring the schemas in openapi/openapi.yaml.

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ReserveRequest struct {
	TripID    *openapi_types.UUID `json:"trip_id"`
	SeatCount *int                `json:"seat_count"`
}

type ConfirmRequest struct {
	ReservationID *openapi_types.UUID `json:"reservation_id"`
}

type Reservation struct {
	ID            openapi_types.UUID `json:"id"`
	TripID        openapi_types.UUID `json:"trip_id"`
	HolderID      string             `json:"holder_id"`
	SeatCount     int                `json:"seat_count"`
	Status        string             `json:"status"`
	HoldExpiresAt *time.Time         `json:"hold_expires_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	ConfirmedAt   *time.Time         `json:"confirmed_at,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type ReservationList struct {
	Data       []Reservation `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// reservationToResponse converts a domain.Reservation into its JSON shape.
func reservationToResponse(r domain.Reservation) Reservation {
	return Reservation{
		ID:            r.ID,
		TripID:        r.TripID,
		HolderID:      r.HolderID,
		SeatCount:     r.SeatCount,
		Status:        string(r.Status),
		HoldExpiresAt: r.HoldExpiresAt,
		CreatedAt:     r.CreatedAt,
		ConfirmedAt:   r.ConfirmedAt,
	}
}
