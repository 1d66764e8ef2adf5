// Package handler implements the HTTP handlers for the reservation API.
// All handlers are methods on Server. Methods are split into files by
// resource (health.go, reservation.go) but share the same Server struct so
// they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/busline/backend/internal/domain"
)

// ReservationServicer defines the business operations the reservation
// handlers depend on. Defining the interface here (in the consumer package)
// lets handler tests inject a mock without touching the database.
type ReservationServicer interface {
	Reserve(ctx context.Context, p domain.Principal, tripID uuid.UUID, seats int) (domain.Reservation, error)
	Confirm(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Reservation, error)
	SeatInfo(ctx context.Context, tripID uuid.UUID) (domain.SeatInfo, error)
	Get(ctx context.Context, p domain.Principal, id uuid.UUID) (domain.Reservation, error)
	List(ctx context.Context, p domain.Principal, page domain.PaginationParams) ([]domain.Reservation, int64, error)
}

// Server holds the dependencies shared by every handler.
type Server struct {
	reservations ReservationServicer
	log          *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(reservations ReservationServicer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{reservations: reservations, log: log}
}

// Routes returns the API router. authenticate guards every route that needs
// a caller identity; health, the API description and seat info are public.
func (s *Server) Routes(authenticate func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/reservations", func(r chi.Router) {
		r.Get("/seat-info/{tripID}", s.GetSeatInfo)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/reserve", s.Reserve)
			r.Post("/confirm", s.Confirm)
			r.Get("/", s.ListReservations)
			r.Get("/{id}", s.GetReservation)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not_found", "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method_not_allowed", "method not allowed"))
	})

	return r
}
