package service

import (
	"context"
	"log/slog"
	"time"
)

// defaultReclaimBatch is the number of expired holds deleted per statement.
const defaultReclaimBatch = 500

// defaultReclaimInterval is how often Run sweeps when no interval is given.
const defaultReclaimInterval = time.Minute

// Reclaimer periodically deletes expired holds from the ledger.
// Capacity never depends on it running; it only keeps the table small.
type Reclaimer struct {
	holds    *HoldManager
	interval time.Duration
	batch    int
	log      *slog.Logger
}

// NewReclaimer constructs a Reclaimer. Non-positive interval or batch values
// fall back to the defaults.
func NewReclaimer(holds *HoldManager, interval time.Duration, batch int, log *slog.Logger) *Reclaimer {
	if interval <= 0 {
		interval = defaultReclaimInterval
	}
	if batch <= 0 {
		batch = defaultReclaimBatch
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reclaimer{holds: holds, interval: interval, batch: batch, log: log}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
// Sweep failures are logged and retried on the next tick.
func (r *Reclaimer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.InfoContext(ctx, "hold reclaimer started", "interval", r.interval.String(), "batch_size", r.batch)
	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			r.log.ErrorContext(ctx, "hold reclaim failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.log.InfoContext(context.WithoutCancel(ctx), "hold reclaimer stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes every hold expired at the current instant and returns how
// many were removed.
func (r *Reclaimer) Sweep(ctx context.Context) (int64, error) {
	n, err := r.holds.Reclaim(ctx, r.batch)
	if n > 0 {
		r.log.InfoContext(ctx, "reclaimed expired holds", "count", n)
	}
	return n, err
}
