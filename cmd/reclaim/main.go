// Command reclaim deletes expired reservation holds. It runs the same sweep
// the API server runs in the background, for deployments that prefer a
// separate cron job or want to trigger a sweep by hand.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"

	"github.com/pkordes/busline/backend/internal/clock"
	"github.com/pkordes/busline/backend/internal/config"
	"github.com/pkordes/busline/backend/internal/repo"
	"github.com/pkordes/busline/backend/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reclaim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	env, err := config.LoadReclaim()
	if err != nil {
		return err
	}

	var (
		databaseURL string
		once        bool
		interval    time.Duration
		batchSize   int
		verbose     bool
	)

	flagSet := pflag.NewFlagSet("reclaim", pflag.ContinueOnError)
	flagSet.StringVar(&databaseURL, "database-url", env.DatabaseURL, "Postgres connection string (default $DATABASE_URL)")
	flagSet.BoolVar(&once, "once", false, "run a single sweep and exit")
	flagSet.DurationVar(&interval, "interval", env.Interval, "time between sweeps (default $RECLAIM_INTERVAL)")
	flagSet.IntVar(&batchSize, "batch-size", env.BatchSize, "rows deleted per statement (default $RECLAIM_BATCH_SIZE)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if databaseURL == "" {
		return fmt.Errorf("--database-url or DATABASE_URL is required")
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	defer pool.Close()

	holds := service.NewHoldManager(repo.NewReservationRepo(pool), clock.NewSystem())
	reclaimer := service.NewReclaimer(holds, interval, batchSize, logger)

	if once {
		n, err := reclaimer.Sweep(ctx)
		if err != nil {
			return err
		}
		logger.Info("sweep finished", "removed", n)
		return nil
	}

	reclaimer.Run(ctx)
	return nil
}
