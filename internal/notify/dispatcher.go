package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkordes/busline/backend/internal/domain"
)

const (
	defaultWorkers  = 4
	queuePerWorker  = 64
	deliveryTimeout = 5 * time.Second
)

// Dispatcher runs a fixed pool of workers that hand confirmations to a
// Notifier. Dispatch never blocks: when the queue is full or the dispatcher
// is closed the confirmation is dropped and logged.
type Dispatcher struct {
	notifier Notifier
	log      *slog.Logger
	queue    chan domain.Confirmation
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines delivering through n.
func NewDispatcher(n Notifier, workers int, log *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		notifier: n,
		log:      log,
		queue:    make(chan domain.Confirmation, workers*queuePerWorker),
	}
	d.wg.Add(workers)
	for range workers {
		go d.work()
	}
	return d
}

// Dispatch queues c for delivery.
func (d *Dispatcher) Dispatch(c domain.Confirmation) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notification dropped: dispatcher closed", "reservation_id", c.Reservation.ID)
		return
	}
	select {
	case d.queue <- c:
	default:
		d.log.Warn("notification dropped: queue full", "reservation_id", c.Reservation.ID)
	}
}

// Close stops accepting confirmations and waits until the queued ones are
// delivered or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for c := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := d.notifier.Notify(ctx, c); err != nil {
			d.log.Error("notification failed", "reservation_id", c.Reservation.ID, "error", err)
		}
		cancel()
	}
}
