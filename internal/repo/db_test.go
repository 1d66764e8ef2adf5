package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/busline/backend/internal/domain"
)

// fakeTx is a pgx.Tx whose Commit returns the next queued error.
// Methods other than Commit and Rollback are never called by WithTx.
type fakeTx struct {
	pgx.Tx
	commit     func() error
	rolledBack *int
}

func (f *fakeTx) Commit(context.Context) error { return f.commit() }
func (f *fakeTx) Rollback(context.Context) error {
	*f.rolledBack++
	return nil
}

// fakeDB counts Begin calls and hands out fakeTx values.
type fakeDB struct {
	db
	begins     int
	rollbacks  int
	commitErrs []error
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	attempt := f.begins
	f.begins++
	return &fakeTx{
		commit: func() error {
			if attempt < len(f.commitErrs) {
				return f.commitErrs[attempt]
			}
			return nil
		},
		rolledBack: &f.rollbacks,
	}, nil
}

func serializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
}

func TestWithTx_RetriesExhaustedIsStorageUnavailable(t *testing.T) {
	fdb := &fakeDB{commitErrs: []error{serializationFailure(), serializationFailure(), serializationFailure(), serializationFailure()}}
	calls := 0

	err := NewTransactor(fdb).WithTx(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr, "the driver cause stays in the chain")
	assert.Equal(t, "40001", pgErr.Code)
	assert.Equal(t, maxTxAttempts, fdb.begins)
	assert.Equal(t, maxTxAttempts, calls)
}

func TestWithTx_DeadlockRetriedThenSucceeds(t *testing.T) {
	fdb := &fakeDB{commitErrs: []error{&pgconn.PgError{Code: "40P01"}}}
	calls := 0

	err := NewTransactor(fdb).WithTx(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, fdb.begins)
	assert.Equal(t, 2, calls)
}

func TestWithTx_NonRetryableErrorReturnedUnchanged(t *testing.T) {
	fdb := &fakeDB{}
	sentinel := errors.New("insufficient")

	err := NewTransactor(fdb).WithTx(context.Background(), func(context.Context) error {
		return sentinel
	})

	assert.Same(t, sentinel, err)
	assert.NotErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, 1, fdb.begins)
	assert.Equal(t, 1, fdb.rollbacks, "a failed unit of work is rolled back")
}

func TestWithTx_DomainErrorNotRetried(t *testing.T) {
	fdb := &fakeDB{}

	err := NewTransactor(fdb).WithTx(context.Background(), func(context.Context) error {
		return domain.ErrInsufficientCapacity
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientCapacity)
	assert.NotErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, 1, fdb.begins)
}

func TestWithTx_NestedReusesOuterTx(t *testing.T) {
	fdb := &fakeDB{}
	tr := NewTransactor(fdb)

	err := tr.WithTx(context.Background(), func(ctx context.Context) error {
		return tr.WithTx(ctx, func(inner context.Context) error {
			assert.Same(t, ctx.Value(txKey{}), inner.Value(txKey{}))
			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, 1, fdb.begins)
}
