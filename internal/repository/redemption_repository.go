package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/barangay-rewards/internal/model"
)

// RedemptionRepo manages reward_redemptions: one row per owned reward,
// unique on (resident_id, reward_id), carrying the equip flag.  All mutating
// methods take the caller's transaction; the service is responsible for
// holding the resident lock before calling them.
type RedemptionRepo struct {
	db *sql.DB
}

// NewRedemptionRepo returns a new RedemptionRepo bound to the given database.
func NewRedemptionRepo(db *sql.DB) *RedemptionRepo { return &RedemptionRepo{db: db} }

const redemptionJoinCols = `rr.id, rr.resident_id, rr.reward_id, rw.name, rw.reward_type,
	rr.points_used, rr.redeemed_at, rr.is_equipped`

const redemptionJoin = ` FROM reward_redemptions rr JOIN rewards rw ON rw.id = rr.reward_id `

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.Redemption, error) {
	var rd model.Redemption
	var slot string
	err := scanner.Scan(&rd.ID, &rd.ResidentID, &rd.RewardID, &rd.RewardName, &slot,
		&rd.PointsUsed, &rd.RedeemedAt, &rd.IsEquipped)
	if err != nil {
		return nil, err
	}
	rd.SlotCategory = model.SlotCategory(slot)
	rd.RedeemedAt = rd.RedeemedAt.UTC()
	return &rd, nil
}

// CreateTx inserts a redemption and populates its ID.  A second redemption of
// the same pair fails with ErrDuplicate.
func (r *RedemptionRepo) CreateTx(ctx context.Context, tx *sql.Tx, rd *model.Redemption) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO reward_redemptions (resident_id, reward_id, points_used, redeemed_at, is_equipped)
		 VALUES (?, ?, ?, ?, ?)`,
		rd.ResidentID, rd.RewardID, rd.PointsUsed, rd.RedeemedAt, rd.IsEquipped,
	)
	if err != nil {
		return fmt.Errorf("insert redemption: %w", Classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rd.ID = id
	return nil
}

// ExistsTx reports whether the resident already owns the reward.
func (r *RedemptionRepo) ExistsTx(ctx context.Context, tx *sql.Tx, residentID, rewardID int64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM reward_redemptions WHERE resident_id = ? AND reward_id = ?`,
		residentID, rewardID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check redemption: %w", Classify(err))
	}
	return true, nil
}

// GetTx returns the resident's redemption of rewardID or
// ErrRedemptionNotFound.
func (r *RedemptionRepo) GetTx(ctx context.Context, tx *sql.Tx, residentID, rewardID int64) (*model.Redemption, error) {
	rd, err := scanRedemption(tx.QueryRowContext(ctx,
		`SELECT `+redemptionJoinCols+redemptionJoin+`WHERE rr.resident_id = ? AND rr.reward_id = ?`,
		residentID, rewardID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRedemptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", Classify(err))
	}
	return rd, nil
}

// EquippedInSlotTx returns the resident's equipped redemption in slot, or
// nil when the slot is empty.  If the invariant was ever broken and several
// rows match, the earliest redemption is returned.
func (r *RedemptionRepo) EquippedInSlotTx(ctx context.Context, tx *sql.Tx, residentID int64, slot model.SlotCategory) (*model.Redemption, error) {
	rd, err := scanRedemption(tx.QueryRowContext(ctx,
		`SELECT `+redemptionJoinCols+redemptionJoin+
			`WHERE rr.resident_id = ? AND rr.is_equipped = 1 AND rw.reward_type = ?
			 ORDER BY rr.id ASC LIMIT 1`,
		residentID, string(slot),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("equipped in slot: %w", Classify(err))
	}
	return rd, nil
}

// SetEquippedTx sets the equip flag of one redemption.
func (r *RedemptionRepo) SetEquippedTx(ctx context.Context, tx *sql.Tx, redemptionID int64, equipped bool) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE reward_redemptions SET is_equipped = ? WHERE id = ?`, equipped, redemptionID,
	); err != nil {
		return fmt.Errorf("set equipped: %w", Classify(err))
	}
	return nil
}

// UnequipSlotTx clears the equip flag on every redemption the resident holds
// in slot except exceptRewardID, and returns how many rows changed.
func (r *RedemptionRepo) UnequipSlotTx(ctx context.Context, tx *sql.Tx, residentID int64, slot model.SlotCategory, exceptRewardID int64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE reward_redemptions
		    SET is_equipped = 0
		  WHERE resident_id = ? AND reward_id <> ? AND is_equipped = 1
		    AND reward_id IN (SELECT id FROM rewards WHERE reward_type = ?)`,
		residentID, exceptRewardID, string(slot),
	)
	if err != nil {
		return 0, fmt.Errorf("unequip slot: %w", Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("unequip rows affected: %w", err)
	}
	return n, nil
}

// ListEquipped returns the resident's equipped redemptions in redemption
// order.  q may be the DB or an open transaction.
func (r *RedemptionRepo) ListEquipped(ctx context.Context, q Querier, residentID int64) ([]model.Redemption, error) {
	return listRedemptions(ctx, q,
		`SELECT `+redemptionJoinCols+redemptionJoin+`WHERE rr.resident_id = ? AND rr.is_equipped = 1 ORDER BY rr.id ASC`,
		residentID,
	)
}

// ListByResident returns all of the resident's redemptions, newest first.
func (r *RedemptionRepo) ListByResident(ctx context.Context, residentID int64) ([]model.Redemption, error) {
	return listRedemptions(ctx, r.db,
		`SELECT `+redemptionJoinCols+redemptionJoin+`WHERE rr.resident_id = ? ORDER BY rr.redeemed_at DESC, rr.id DESC`,
		residentID,
	)
}

// CountEquippedInSlot counts equipped rows for a resident and slot.  The
// equip invariant keeps this at most one for exclusive slots.
func (r *RedemptionRepo) CountEquippedInSlot(ctx context.Context, residentID int64, slot model.SlotCategory) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)`+redemptionJoin+`WHERE rr.resident_id = ? AND rr.is_equipped = 1 AND rw.reward_type = ?`,
		residentID, string(slot),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count equipped: %w", Classify(err))
	}
	return n, nil
}

func listRedemptions(ctx context.Context, q Querier, query string, args ...any) ([]model.Redemption, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", Classify(err))
	}
	defer rows.Close()

	out := make([]model.Redemption, 0)
	for rows.Next() {
		rd, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		out = append(out, *rd)
	}
	return out, rows.Err()
}
