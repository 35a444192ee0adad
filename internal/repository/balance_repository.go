package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/barangay-rewards/internal/model"
)

// BalanceRepo reads and mutates resident_participation_stats.  A resident's
// row doubles as the per-resident lock for redeem and equip transactions:
// the first UPDATE against it inside a transaction serialises every other
// writer for the same resident until commit.
type BalanceRepo struct {
	db *sql.DB
}

// NewBalanceRepo returns a new BalanceRepo bound to the given database.
func NewBalanceRepo(db *sql.DB) *BalanceRepo { return &BalanceRepo{db: db} }

const balanceCols = `resident_id, credit_points, redeemable_points, updated_at`

// Get returns the balance for residentID or ErrResidentNotFound.
func (r *BalanceRepo) Get(ctx context.Context, residentID int64) (*model.PointsBalance, error) {
	return getBalance(ctx, r.db, residentID)
}

// GetTx is Get inside the caller's transaction.
func (r *BalanceRepo) GetTx(ctx context.Context, tx *sql.Tx, residentID int64) (*model.PointsBalance, error) {
	return getBalance(ctx, tx, residentID)
}

func getBalance(ctx context.Context, q Querier, residentID int64) (*model.PointsBalance, error) {
	var b model.PointsBalance
	err := q.QueryRowContext(ctx,
		`SELECT `+balanceCols+` FROM resident_participation_stats WHERE resident_id = ?`, residentID,
	).Scan(&b.ResidentID, &b.CreditPoints, &b.RedeemablePoints, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResidentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", Classify(err))
	}
	return &b, nil
}

// DebitTx atomically subtracts amount from the redeemable balance.  The
// WHERE clause guards the non-negative invariant, so the read and the write
// are a single statement; zero matched rows means the balance (or the row)
// is gone and ErrInsufficientBalance is returned.
func (r *BalanceRepo) DebitTx(ctx context.Context, tx *sql.Tx, residentID int64, amount int, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE resident_participation_stats
		    SET redeemable_points = redeemable_points - ?, updated_at = ?
		  WHERE resident_id = ? AND redeemable_points >= ?`,
		amount, now, residentID, amount,
	)
	if err != nil {
		return fmt.Errorf("debit balance: %w", Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit rows affected: %w", err)
	}
	if n == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// LockTx takes the resident's row lock without changing balances by
// touching updated_at.  It returns ErrResidentNotFound when there is no row.
func (r *BalanceRepo) LockTx(ctx context.Context, tx *sql.Tx, residentID int64, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE resident_participation_stats SET updated_at = ? WHERE resident_id = ?`,
		now, residentID,
	)
	if err != nil {
		return fmt.Errorf("lock resident: %w", Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lock rows affected: %w", err)
	}
	if n == 0 {
		return ErrResidentNotFound
	}
	return nil
}

// Provision inserts a stats row.  In production rows are created by the
// onboarding flow; this is used by cmd/seed and tests.
func (r *BalanceRepo) Provision(ctx context.Context, residentID int64, credit, redeemable int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resident_participation_stats (resident_id, credit_points, redeemable_points, updated_at)
		 VALUES (?, ?, ?, ?)`,
		residentID, credit, redeemable, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("provision balance: %w", Classify(err))
	}
	return nil
}
