package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/roadmap-ai/orchestrator/internal/errkind"
)

// UnitOfWork opens scoped transactions around repository operations,
// enforcing a wall-clock timeout and supporting nested savepoints with
// classified rollback, per the Unit of Work component design.
type UnitOfWork struct {
	db             *sqlx.DB
	defaultTimeout time.Duration
}

// New creates a UnitOfWork backed by db, defaulting every Do() call to
// timeout unless a shorter one is requested via DoWithTimeout.
func New(db *sqlx.DB, timeout time.Duration) *UnitOfWork {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &UnitOfWork{db: db, defaultTimeout: timeout}
}

// Fn is the body of a unit of work; it receives a Repo bound to the
// transaction and a derived, timeout-bearing context.
type Fn func(ctx context.Context, repo *Repo) error

// Do runs fn inside a new transaction using the UnitOfWork's default
// timeout, committing on a nil return and rolling back otherwise.
func (u *UnitOfWork) Do(ctx context.Context, fn Fn) error {
	return u.DoWithTimeout(ctx, u.defaultTimeout, fn)
}

// DoWithTimeout is Do with an explicit timeout override.
func (u *UnitOfWork) DoWithTimeout(ctx context.Context, timeout time.Duration, fn Fn) error {
	txCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := u.db.BeginTxx(txCtx, nil)
	if err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "begin transaction")
	}

	repo := &Repo{tx: tx}
	runErr := fn(txCtx, repo)

	if runErr != nil || repo.poisoned {
		_ = tx.Rollback()
		if runErr != nil {
			return runErr
		}
		return errkind.New(errkind.System, "transaction rolled back: a nested block raised a system error")
	}

	if err := tx.Commit(); err != nil {
		if errors.Is(txCtx.Err(), context.DeadlineExceeded) {
			return errkind.Wrap(err, errkind.Recoverable, "transaction timeout exceeded")
		}
		return errkind.Wrap(err, errkind.Recoverable, "commit transaction")
	}
	return nil
}

// Repo wraps a single transaction and exposes the table-scoped repository
// methods plus nested-savepoint support.
type Repo struct {
	tx           *sqlx.Tx
	savepointSeq int64
	poisoned     bool
}

// Nested runs fn inside a SAVEPOINT. A Recoverable or Validation error rolls
// back only that savepoint, and Nested returns the error unchanged for the
// caller to inspect or retry. A System or Unknown error also rolls back only
// the savepoint immediately, but additionally poisons the enclosing
// transaction so the owning Do() call aborts entirely even if the caller
// does not re-propagate the error.
func (r *Repo) Nested(ctx context.Context, fn func(ctx context.Context, repo *Repo) error) error {
	sp := fmt.Sprintf("sp_%d", atomic.AddInt64(&r.savepointSeq, 1))

	if _, err := r.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "create savepoint")
	}

	err := fn(ctx, r)
	if err != nil {
		_, _ = r.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp)
		_, _ = r.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp)
		if errkind.RollsBackWholeTransaction(errkind.Classify(err)) {
			r.poisoned = true
		}
		return err
	}

	if _, err := r.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "release savepoint")
	}
	return nil
}
