// Package notify delivers ticket notifications for confirmed reservations.
// Delivery is best effort and happens off the request path.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pkordes/busline/backend/internal/domain"
)

// DefaultStream is the Redis stream confirmations are published to.
const DefaultStream = "reservations.confirmed"

// Notifier delivers one confirmation.
type Notifier interface {
	Notify(ctx context.Context, c domain.Confirmation) error
}

// Ticket is the payload encoded on the ticket handed to the passenger.
type Ticket struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"userId"`
	ScheduleID uuid.UUID `json:"scheduleId"`
}

// TicketFor builds the ticket payload of a confirmed reservation.
func TicketFor(r domain.Reservation) Ticket {
	return Ticket{ID: r.ID, UserID: r.HolderID, ScheduleID: r.TripID}
}

// RedisStream publishes confirmations to a Redis stream. A mailer or any
// other consumer group reads from there.
type RedisStream struct {
	rdb    redis.Cmdable
	stream string
}

// NewRedisStream returns a Notifier appending to stream.
// An empty stream name falls back to DefaultStream.
func NewRedisStream(rdb redis.Cmdable, stream string) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{rdb: rdb, stream: stream}
}

// XAddArgs returns the stream entry written for c.
func (n *RedisStream) XAddArgs(c domain.Confirmation) (*redis.XAddArgs, error) {
	ticket, err := json.Marshal(TicketFor(c.Reservation))
	if err != nil {
		return nil, err
	}
	return &redis.XAddArgs{
		Stream: n.stream,
		Values: []string{
			"reservation_id", c.Reservation.ID.String(),
			"contact", c.Contact,
			"ticket", string(ticket),
		},
	}, nil
}

func (n *RedisStream) Notify(ctx context.Context, c domain.Confirmation) error {
	args, err := n.XAddArgs(c)
	if err != nil {
		return fmt.Errorf("notify.RedisStream.Notify: encode: %w", err)
	}
	if err := n.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("notify.RedisStream.Notify: %w", err)
	}
	return nil
}

// Log writes confirmations to the structured log. It is used when no Redis
// is configured.
type Log struct {
	log *slog.Logger
}

// NewLog returns a Notifier writing to log.
func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{log: log}
}

func (n *Log) Notify(ctx context.Context, c domain.Confirmation) error {
	n.log.InfoContext(ctx, "reservation confirmed",
		"reservation_id", c.Reservation.ID,
		"trip_id", c.Reservation.TripID,
		"holder_id", c.Reservation.HolderID,
		"seat_count", c.Reservation.SeatCount,
		"contact", c.Contact,
	)
	return nil
}
