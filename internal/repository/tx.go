package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of database/sql operations shared by *sql.DB and
// *sql.Tx. Repository methods that must run inside a transaction accept a
// Querier so the caller controls the transaction boundary.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxManager runs a function inside a single database transaction. The
// function's mutations commit or roll back as one unit; nothing it does is
// visible to other connections before commit.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(q Querier) error) error
}

type txManager struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewTxManager creates a TxManager over the given database. A positive
// lockTimeout bounds how long a statement may wait on a row lock before the
// transaction aborts with a lock_not_available error.
func NewTxManager(db *sql.DB, lockTimeout time.Duration) TxManager {
	return &txManager{db: db, lockTimeout: lockTimeout}
}

// WithinTx begins a transaction, runs fn with it, and commits if fn returns
// nil. Any error from fn rolls the transaction back and is returned as-is so
// callers can inspect sentinel and typed errors.
func (m *txManager) WithinTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if m.lockTimeout > 0 {
		// SET LOCAL scopes the timeout to this transaction only
		setStmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, setStmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback failed after %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Postgres SQLSTATE codes that indicate transient lock contention
const (
	sqlstateLockNotAvailable     = "55P03"
	sqlstateDeadlockDetected     = "40P01"
	sqlstateSerializationFailure = "40001"
)

// IsContention reports whether err is a transient lock-contention failure
// (lock wait timeout, deadlock, serialization conflict). Transactions that
// fail this way are safe to retry whole.
func IsContention(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case sqlstateLockNotAvailable, sqlstateDeadlockDetected, sqlstateSerializationFailure:
		return true
	}
	return false
}
