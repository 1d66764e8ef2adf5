package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pkordes/busline/backend/internal/domain"
)

// errorMapping ties a domain sentinel to its HTTP status and error code.
type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{domain.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input"},
	{domain.ErrTripNotFound, http.StatusNotFound, "trip_not_found"},
	{domain.ErrInsufficientCapacity, http.StatusConflict, "insufficient_capacity"},
	{domain.ErrHoldNotFoundOrExpired, http.StatusNotFound, "hold_not_found_or_expired"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
}

func errorBody(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// invalidInput responds 422 for a request rejected before reaching the service.
func invalidInput(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorBody("invalid_input", message))
}

// writeError maps err onto the error envelope. Unknown errors are logged
// and reported as a generic 500 so internals never leak to clients.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request_too_large", "request body too large"))
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				s.log.ErrorContext(r.Context(), "request failed", "error", err)
			}
			writeJSON(w, m.status, errorBody(m.code, unwrapMessage(err, m.err)))
			return
		}
	}

	s.log.ErrorContext(r.Context(), "unhandled error", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", "internal server error"))
}

// unwrapMessage extracts the human-readable part of a wrapped sentinel error.
// e.g. "service.ReservationService.Reserve: insufficient capacity: 3 requested, 2 available"
// → "insufficient capacity: 3 requested, 2 available"
func unwrapMessage(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()); i >= 0 {
		msg = msg[i:]
	}
	// Drop driver causes appended after the storage sentinel.
	if errors.Is(sentinel, domain.ErrStorageUnavailable) {
		return sentinel.Error()
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
