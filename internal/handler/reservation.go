package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/busline/backend/internal/auth"
	"github.com/pkordes/busline/backend/internal/domain"
)

// Reserve handles POST /reservations/reserve.
func (s *Server) Reserve(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	var body ReserveRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.TripID == nil {
		invalidInput(w, "trip_id is required")
		return
	}
	if body.SeatCount == nil {
		invalidInput(w, "seat_count is required")
		return
	}

	hold, err := s.reservations.Reserve(r.Context(), p, *body.TripID, *body.SeatCount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationToResponse(hold))
}

// Confirm handles POST /reservations/confirm.
func (s *Server) Confirm(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	var body ConfirmRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.ReservationID == nil {
		invalidInput(w, "reservation_id is required")
		return
	}

	confirmed, err := s.reservations.Confirm(r.Context(), p, *body.ReservationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationToResponse(confirmed))
}

// GetSeatInfo handles GET /reservations/seat-info/{tripID}.
func (s *Server) GetSeatInfo(w http.ResponseWriter, r *http.Request) {
	tripID, ok := pathUUID(w, r, "tripID")
	if !ok {
		return
	}

	info, err := s.reservations.SeatInfo(r.Context(), tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ListReservations handles GET /reservations.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListReservations(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}

	var page, limit *int
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "page", query, &page); err != nil {
		invalidInput(w, "page must be an integer")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		invalidInput(w, "limit must be an integer")
		return
	}
	params := domain.NewPaginationParams(page, limit)

	items, total, err := s.reservations.List(r.Context(), p, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data := make([]Reservation, len(items))
	for i, res := range items {
		data[i] = reservationToResponse(res)
	}
	writeJSON(w, http.StatusOK, ReservationList{
		Data: data,
		Pagination: Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: int(total),
		},
	})
}

// GetReservation handles GET /reservations/{id}.
func (s *Server) GetReservation(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	res, err := s.reservations.Get(r.Context(), p, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationToResponse(res))
}

// --- request helpers --------------------------------------------------------

// principal returns the caller placed in the context by the auth middleware.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		s.writeError(w, r, domain.ErrUnauthorized)
	}
	return p, ok
}

// decode reads a JSON body into dst, responding 413 or 422 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		s.writeError(w, r, err)
	case errors.Is(err, io.EOF):
		invalidInput(w, "request body is required")
	default:
		invalidInput(w, "malformed JSON body")
	}
	return false
}

// pathUUID binds the named path parameter as a UUID, responding 422 if it
// is malformed.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (openapi_types.UUID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		invalidInput(w, name+" must be a UUID")
		return openapi_types.UUID{}, false
	}
	return id, true
}
