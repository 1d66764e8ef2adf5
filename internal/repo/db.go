// Package repo contains all database access logic for the reservation service.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here — only SQL, type mapping and transaction plumbing.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"

	"github.com/pkordes/busline/backend/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool and pgx.Tx.
// Accepting it instead of *pgxpool.Pool lets integration tests pass a
// transaction that is rolled back after each test; Begin on a pgx.Tx opens a
// savepoint, so WithTx still behaves transactionally inside such a test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Transactor runs a unit of work atomically. Repositories called with the
// context handed to fn execute on the same transaction.
type Transactor interface {
	// WithTx runs fn inside a transaction. The transaction is committed when fn
	// returns nil and rolled back otherwise. Serialization failures and
	// deadlocks are retried a bounded number of times; if they persist the
	// returned error wraps domain.ErrStorageUnavailable.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// maxTxAttempts bounds how often a contended transaction is re-run.
const maxTxAttempts = 3

// txBaseDelay is the first backoff step between attempts.
const txBaseDelay = 10 * time.Millisecond

type txKey struct{}

type pgTransactor struct {
	db db
}

// NewTransactor constructs a Transactor backed by the provided db connection.
func NewTransactor(db db) Transactor {
	return &pgTransactor{db: db}
}

func (t *pgTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	backoff := retry.WithMaxRetries(maxTxAttempts-1, retry.NewExponential(txBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := runTx(ctx, t.db, fn)
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && isRetryable(err) {
		return storageErr("repo.WithTx: retries exhausted", err)
	}
	return err
}

// runTx executes one attempt of fn on a fresh transaction.
func runTx(ctx context.Context, base db, fn func(ctx context.Context) error) error {
	tx, err := base.Begin(ctx)
	if err != nil {
		return storageErr("repo.WithTx: begin", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr("repo.WithTx: commit", err)
	}
	return nil
}

// conn returns the transaction carried by ctx, or base when there is none.
func conn(ctx context.Context, base db) db {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return base
}

// isRetryable reports whether err is a Postgres serialization failure or
// deadlock, both of which succeed when the transaction is simply re-run.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// storageErr tags a driver error as domain.ErrStorageUnavailable while keeping
// the original cause in the chain.
func storageErr(op string, err error) error {
	if errors.Is(err, domain.ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scan helpers to
// be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}
