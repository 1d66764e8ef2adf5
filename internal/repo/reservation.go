package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/busline/backend/internal/domain"
)

// ReservationRepo is the reservation ledger: the only store of hold and
// confirmed reservations and the source of truth for capacity accounting.
type ReservationRepo interface {
	// CreateHold inserts a new hold and returns the persisted record.
	CreateHold(ctx context.Context, hold domain.Reservation) (domain.Reservation, error)

	// TallySeats sums confirmed seats and seats of holds expiring strictly
	// after now for one trip, and reports the earliest of those expiries.
	// Inside Transactor.WithTx it reads the transaction's snapshot.
	TallySeats(ctx context.Context, tripID uuid.UUID, now time.Time) (domain.SeatTally, error)

	// ConfirmHold turns a hold into a confirmed reservation in one conditional
	// update: the row must be a hold owned by holderID whose expiry is after
	// now. Returns domain.ErrHoldNotFoundOrExpired when no row matches.
	ConfirmHold(ctx context.Context, id uuid.UUID, holderID string, now time.Time) (domain.Reservation, error)

	// DeleteExpiredHolds removes at most limit holds whose expiry is at or
	// before now and returns how many were removed. Rows locked by a
	// concurrent confirm are skipped and picked up by a later pass.
	DeleteExpiredHolds(ctx context.Context, now time.Time, limit int) (int64, error)

	// GetConfirmed returns a confirmed reservation by ID.
	// Returns domain.ErrNotFound for unknown IDs and for holds.
	GetConfirmed(ctx context.Context, id uuid.UUID) (domain.Reservation, error)

	// ListConfirmed returns one page of confirmed reservations, newest first,
	// and the total count. An empty holderID lists every holder.
	ListConfirmed(ctx context.Context, holderID string, p domain.PaginationParams) ([]domain.Reservation, int64, error)
}

// pgReservationRepo is the Postgres implementation of ReservationRepo.
type pgReservationRepo struct {
	db db
}

// NewReservationRepo constructs a ReservationRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewReservationRepo(db db) ReservationRepo {
	return &pgReservationRepo{db: db}
}

const reservationColumns = `id, schedule_id, holder_id, seat_count, status, hold_expires_at, created_at, confirmed_at`

// CreateHold inserts a hold row.
func (r *pgReservationRepo) CreateHold(ctx context.Context, hold domain.Reservation) (domain.Reservation, error) {
	const q = `
		INSERT INTO reservations (id, schedule_id, holder_id, seat_count, status, hold_expires_at, created_at)
		VALUES (@id, @schedule_id, @holder_id, @seat_count, 'hold', @hold_expires_at, @created_at)
		RETURNING ` + reservationColumns

	args := pgx.NamedArgs{
		"id":              hold.ID,
		"schedule_id":     hold.TripID,
		"holder_id":       hold.HolderID,
		"seat_count":      hold.SeatCount,
		"hold_expires_at": hold.HoldExpiresAt,
		"created_at":      hold.CreatedAt,
	}

	result, err := scanReservation(conn(ctx, r.db).QueryRow(ctx, q, args))
	if err != nil {
		return domain.Reservation{}, storageErr("repo.ReservationRepo.CreateHold", err)
	}
	return result, nil
}

// TallySeats aggregates committed seats for a trip in a single statement.
func (r *pgReservationRepo) TallySeats(ctx context.Context, tripID uuid.UUID, now time.Time) (domain.SeatTally, error) {
	const q = `
		SELECT
			COALESCE(SUM(seat_count) FILTER (WHERE status = 'confirmed'), 0),
			COALESCE(SUM(seat_count) FILTER (WHERE status = 'hold' AND hold_expires_at > @now), 0),
			MIN(hold_expires_at) FILTER (WHERE status = 'hold' AND hold_expires_at > @now)
		FROM reservations
		WHERE schedule_id = @schedule_id`

	var t domain.SeatTally
	err := conn(ctx, r.db).QueryRow(ctx, q, pgx.NamedArgs{"schedule_id": tripID, "now": now}).
		Scan(&t.Confirmed, &t.Held, &t.NextExpiry)
	if err != nil {
		return domain.SeatTally{}, storageErr("repo.ReservationRepo.TallySeats", err)
	}
	return t, nil
}

// ConfirmHold performs the hold → confirmed compare-and-swap.
func (r *pgReservationRepo) ConfirmHold(ctx context.Context, id uuid.UUID, holderID string, now time.Time) (domain.Reservation, error) {
	const q = `
		UPDATE reservations
		SET status          = 'confirmed',
		    hold_expires_at = NULL,
		    confirmed_at    = @now
		WHERE id              = @id
		  AND holder_id       = @holder_id
		  AND status          = 'hold'
		  AND hold_expires_at > @now
		RETURNING ` + reservationColumns

	args := pgx.NamedArgs{"id": id, "holder_id": holderID, "now": now}
	result, err := scanReservation(conn(ctx, r.db).QueryRow(ctx, q, args))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, fmt.Errorf("repo.ReservationRepo.ConfirmHold: %w", domain.ErrHoldNotFoundOrExpired)
		}
		return domain.Reservation{}, storageErr("repo.ReservationRepo.ConfirmHold", err)
	}
	return result, nil
}

// DeleteExpiredHolds removes one batch of expired holds.
func (r *pgReservationRepo) DeleteExpiredHolds(ctx context.Context, now time.Time, limit int) (int64, error) {
	const q = `
		DELETE FROM reservations
		WHERE id IN (
			SELECT id
			FROM reservations
			WHERE status = 'hold'
			  AND hold_expires_at <= @now
			ORDER BY hold_expires_at
			LIMIT @limit
			FOR UPDATE SKIP LOCKED
		)`

	tag, err := conn(ctx, r.db).Exec(ctx, q, pgx.NamedArgs{"now": now, "limit": limit})
	if err != nil {
		return 0, storageErr("repo.ReservationRepo.DeleteExpiredHolds", err)
	}
	return tag.RowsAffected(), nil
}

// GetConfirmed retrieves a confirmed reservation by primary key.
func (r *pgReservationRepo) GetConfirmed(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	const q = `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE id = @id AND status = 'confirmed'`

	result, err := scanReservation(conn(ctx, r.db).QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, fmt.Errorf("repo.ReservationRepo.GetConfirmed: %w", domain.ErrNotFound)
		}
		return domain.Reservation{}, storageErr("repo.ReservationRepo.GetConfirmed", err)
	}
	return result, nil
}

// ListConfirmed returns a page of confirmed reservations and the total count.
func (r *pgReservationRepo) ListConfirmed(ctx context.Context, holderID string, p domain.PaginationParams) ([]domain.Reservation, int64, error) {
	const countQ = `
		SELECT COUNT(*)
		FROM reservations
		WHERE status = 'confirmed'
		  AND (@holder_id = '' OR holder_id = @holder_id)`

	const q = `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'confirmed'
		  AND (@holder_id = '' OR holder_id = @holder_id)
		ORDER BY confirmed_at DESC, id
		LIMIT @limit OFFSET @offset`

	c := conn(ctx, r.db)

	var total int64
	if err := c.QueryRow(ctx, countQ, pgx.NamedArgs{"holder_id": holderID}).Scan(&total); err != nil {
		return nil, 0, storageErr("repo.ReservationRepo.ListConfirmed: count", err)
	}

	rows, err := c.Query(ctx, q, pgx.NamedArgs{
		"holder_id": holderID,
		"limit":     p.Limit,
		"offset":    p.Offset(),
	})
	if err != nil {
		return nil, 0, storageErr("repo.ReservationRepo.ListConfirmed", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, 0, storageErr("repo.ReservationRepo.ListConfirmed: scan", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("repo.ReservationRepo.ListConfirmed: rows", err)
	}

	return out, total, nil
}

// scanReservation maps a single database row into a domain.Reservation.
// pgx.ErrNoRows is returned unchanged so callers can pick the right sentinel.
func scanReservation(s scanner) (domain.Reservation, error) {
	var (
		res      domain.Reservation
		id       pgtype.UUID
		schedule pgtype.UUID
		status   string
	)

	err := s.Scan(&id, &schedule, &res.HolderID, &res.SeatCount, &status,
		&res.HoldExpiresAt, &res.CreatedAt, &res.ConfirmedAt)
	if err != nil {
		return domain.Reservation{}, err
	}

	res.ID = uuid.UUID(id.Bytes)
	res.TripID = uuid.UUID(schedule.Bytes)
	res.Status = domain.ReservationStatus(status)
	return res, nil
}
