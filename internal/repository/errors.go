// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow the service layer to
// distinguish between different failure scenarios without inspecting
// driver-specific error types; Classify translates MySQL and SQLite errors
// into them.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrResidentNotFound is returned when no resident_participation_stats row
// exists for the requested resident.
var ErrResidentNotFound = errors.New("resident not found")

// ErrRewardNotFound is returned when the rewards table has no such id.
var ErrRewardNotFound = errors.New("reward not found")

// ErrRewardTypeLocked is returned when an update would move an owned reward
// into a different slot category.
var ErrRewardTypeLocked = errors.New("reward type locked by existing redemptions")

// ErrRedemptionNotFound is returned when the resident does not own the reward.
var ErrRedemptionNotFound = errors.New("redemption not found")

// ErrInsufficientBalance is returned by the guarded debit when the balance
// no longer covers the amount.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrDuplicate is returned when an insert hits a unique constraint, e.g. a
// second redemption of the same reward by the same resident.
var ErrDuplicate = errors.New("duplicate row")

// ErrConflict is returned for transient lock conflicts (deadlock, lock wait
// timeout, SQLITE_BUSY).  The whole transaction may be retried.
var ErrConflict = errors.New("lock conflict")

// MySQL server error numbers.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// Classify maps a driver error onto ErrDuplicate or ErrConflict, keeping the
// original error in the chain.  Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return fmt.Errorf("%w: %w", ErrDuplicate, err)
		case mysqlDeadlock, mysqlLockWaitTimeout:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return err
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		switch {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
			code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE constraint failed"):
			return fmt.Errorf("%w: %w", ErrDuplicate, err)
		case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
	}
	return err
}

// Querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
