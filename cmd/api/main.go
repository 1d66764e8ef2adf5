// Package main is the entry point for the bus reservation API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/pkordes/busline/backend/internal/auth"
	"github.com/pkordes/busline/backend/internal/cache"
	"github.com/pkordes/busline/backend/internal/clock"
	"github.com/pkordes/busline/backend/internal/config"
	"github.com/pkordes/busline/backend/internal/handler"
	"github.com/pkordes/busline/backend/internal/middleware"
	"github.com/pkordes/busline/backend/internal/notify"
	"github.com/pkordes/busline/backend/internal/repo"
	"github.com/pkordes/busline/backend/internal/service"
	"github.com/pkordes/busline/backend/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if cfg.MigrateOnStart {
		// goose drives database/sql; borrow a connection from the pool.
		sqlDB := stdlib.OpenDBFromPool(pool)
		applied, err := migrations.Up(ctx, sqlDB)
		_ = sqlDB.Close()
		if err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations applied", "count", applied)
	}

	// --- Redis (optional) -------------------------------------------------
	var (
		opts     []service.Option
		notifier notify.Notifier = notify.NewLog(logger)
	)
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		slog.Info("redis connection established")

		opts = append(opts, service.WithSeatInfoCache(cache.NewSeatInfo(rdb, cfg.SeatCacheTTL)))
		notifier = notify.NewRedisStream(rdb, cfg.NotifyStream)
	}

	dispatcher := notify.NewDispatcher(notifier, cfg.NotifyWorkers, logger)
	opts = append(opts, service.WithDispatcher(dispatcher), service.WithLogger(logger))

	// --- Services ---------------------------------------------------------
	clk := clock.NewSystem()
	reservationRepo := repo.NewReservationRepo(pool)
	holds := service.NewHoldManager(reservationRepo, clk, service.WithHoldTTL(cfg.HoldTTL))
	reservations := service.NewReservationService(
		repo.NewTransactor(pool),
		repo.NewTripRepo(pool),
		reservationRepo,
		holds,
		opts...,
	)

	reclaimer := service.NewReclaimer(holds, cfg.ReclaimInterval, cfg.ReclaimBatchSize, logger)
	reclaimDone := make(chan struct{})
	go func() {
		defer close(reclaimDone)
		reclaimer.Run(ctx)
	}()

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → CORS → body limit. Authentication is applied per route by the handler.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	authn := auth.NewAuthenticator(cfg.JWTSecret, clk)
	server := handler.NewServer(reservations, logger)
	r.Mount("/", server.Routes(auth.Middleware(authn)))

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	// Give in-flight requests and queued notifications up to 15 seconds.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	<-reclaimDone
	if err := dispatcher.Close(shutdownCtx); err != nil {
		slog.Warn("notifications still queued at shutdown", "error", err)
	}
	slog.Info("server stopped")
}
