package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/barangay-rewards/internal/model"
)

// RewardRepo provides CRUD operations for the reward catalog.  There is no
// delete: archived rewards stay in the table so existing redemptions keep
// pointing at a valid row.
type RewardRepo struct {
	db *sql.DB
}

// NewRewardRepo returns a new RewardRepo bound to the given database.
func NewRewardRepo(db *sql.DB) *RewardRepo { return &RewardRepo{db: db} }

const rewardCols = `id, name, description, reward_type, points_required, is_active, is_archived,
	activation_date, expiration_date, created_at, updated_at`

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var rw model.Reward
	var slot string
	var activation, expiration sql.NullTime
	err := scanner.Scan(&rw.ID, &rw.Name, &rw.Description, &slot, &rw.PointsRequired,
		&rw.Active, &rw.Archived, &activation, &expiration, &rw.CreatedAt, &rw.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rw.SlotCategory = model.SlotCategory(slot)
	if activation.Valid {
		t := activation.Time.UTC()
		rw.ActivationDate = &t
	}
	if expiration.Valid {
		t := expiration.Time.UTC()
		rw.ExpirationDate = &t
	}
	return &rw, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Create inserts a reward and populates its generated ID and timestamps.
func (r *RewardRepo) Create(ctx context.Context, rw *model.Reward) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rewards (name, description, reward_type, points_required, is_active, is_archived,
		                      activation_date, expiration_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rw.Name, rw.Description, string(rw.SlotCategory), rw.PointsRequired, rw.Active, rw.Archived,
		nullTime(rw.ActivationDate), nullTime(rw.ExpirationDate), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert reward: %w", Classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rw.ID = id
	rw.CreatedAt = now
	rw.UpdatedAt = now
	return nil
}

// Update overwrites the editable columns of an existing reward.  Archival
// is changed through SetArchived only.  The reward_type may only change
// while nobody owns the reward; otherwise ErrRewardTypeLocked is returned
// and nothing is written.
func (r *RewardRepo) Update(ctx context.Context, rw *model.Reward) error {
	now := time.Now().UTC()
	slot := string(rw.SlotCategory)
	res, err := r.db.ExecContext(ctx,
		`UPDATE rewards
		    SET name = ?, description = ?, reward_type = ?, points_required = ?, is_active = ?,
		        activation_date = ?, expiration_date = ?, updated_at = ?
		  WHERE id = ?
		    AND (reward_type = ?
		         OR NOT EXISTS (SELECT 1 FROM reward_redemptions WHERE reward_id = ?))`,
		rw.Name, rw.Description, slot, rw.PointsRequired, rw.Active,
		nullTime(rw.ActivationDate), nullTime(rw.ExpirationDate), now, rw.ID,
		slot, rw.ID,
	)
	if err != nil {
		return fmt.Errorf("update reward: %w", Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM rewards WHERE id = ?`, rw.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRewardNotFound
		}
		if err != nil {
			return fmt.Errorf("check reward: %w", Classify(err))
		}
		return ErrRewardTypeLocked
	}
	rw.UpdatedAt = now
	return nil
}

// SetArchived flips the archived flag.
func (r *RewardRepo) SetArchived(ctx context.Context, id int64, archived bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rewards SET is_archived = ?, updated_at = ? WHERE id = ?`,
		archived, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("archive reward: %w", Classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRewardNotFound
	}
	return nil
}

// GetByID returns the reward or ErrRewardNotFound.
func (r *RewardRepo) GetByID(ctx context.Context, id int64) (*model.Reward, error) {
	return getReward(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *RewardRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Reward, error) {
	return getReward(ctx, tx, id)
}

func getReward(ctx context.Context, q Querier, id int64) (*model.Reward, error) {
	rw, err := scanReward(q.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRewardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", Classify(err))
	}
	return rw, nil
}

// ListActive returns active, non-archived rewards ordered by cost, cheapest
// first.  A non-empty slot restricts the result to that category.  The
// activation window is not applied here; callers filter with the clock they
// trust.
func (r *RewardRepo) ListActive(ctx context.Context, slot model.SlotCategory) ([]model.Reward, error) {
	q := `SELECT ` + rewardCols + ` FROM rewards WHERE is_active = 1 AND is_archived = 0`
	args := []any{}
	if slot != "" {
		q += ` AND reward_type = ?`
		args = append(args, string(slot))
	}
	q += ` ORDER BY points_required ASC, id ASC`
	return r.list(ctx, q, args...)
}

// List returns every reward for the admin screens: live rewards first, then
// archived, newest first within each group.
func (r *RewardRepo) List(ctx context.Context) ([]model.Reward, error) {
	return r.list(ctx, `SELECT `+rewardCols+` FROM rewards ORDER BY is_archived ASC, id DESC`)
}

func (r *RewardRepo) list(ctx context.Context, q string, args ...any) ([]model.Reward, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", Classify(err))
	}
	defer rows.Close()

	rewards := make([]model.Reward, 0)
	for rows.Next() {
		rw, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *rw)
	}
	return rewards, rows.Err()
}
