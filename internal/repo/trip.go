package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/busline/backend/internal/domain"
)

// TripRepo is the read-only trip capacity source. Schedules and buses are
// maintained by the fleet CRUD collaborator; this repo only reads them.
type TripRepo interface {
	// GetByID returns the trip with its bus capacity.
	// Returns domain.ErrTripNotFound if no schedule with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// GetForUpdate is GetByID plus a row lock on the schedule held until the
	// surrounding transaction ends. Concurrent reservations on the same trip
	// queue behind it; other trips are unaffected.
	// Must be called with a context obtained from Transactor.WithTx.
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error)
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `s.id, s.schedule_code, b.bus_number, b.seating_capacity, s.route_date, s.status`

// GetByID reads a trip without locking it.
func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	const q = `
		SELECT ` + tripColumns + `
		FROM schedules s
		JOIN buses b ON b.id = s.bus_id
		WHERE s.id = @id`

	row := conn(ctx, r.db).QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, tripErr("repo.TripRepo.GetByID", err)
	}
	return result, nil
}

// GetForUpdate reads a trip and locks its schedule row.
func (r *pgTripRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	const q = `
		SELECT ` + tripColumns + `
		FROM schedules s
		JOIN buses b ON b.id = s.bus_id
		WHERE s.id = @id
		FOR UPDATE OF s`

	row := conn(ctx, r.db).QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanTrip(row)
	if err != nil {
		return domain.Trip{}, tripErr("repo.TripRepo.GetForUpdate", err)
	}
	return result, nil
}

func tripErr(op string, err error) error {
	if errors.Is(err, domain.ErrTripNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return storageErr(op, err)
}

// scanTrip maps a single database row into a domain.Trip.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t         domain.Trip
		id        pgtype.UUID
		routeDate pgtype.Date
		status    string
	)

	err := s.Scan(&id, &t.Code, &t.BusNumber, &t.Capacity, &routeDate, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrTripNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	t.RouteDate = routeDate.Time
	t.Status = domain.TripStatus(status)
	return t, nil
}
