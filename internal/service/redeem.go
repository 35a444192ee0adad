package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/barangay-rewards/internal/model"
	"github.com/iliyamo/barangay-rewards/internal/queue"
	"github.com/iliyamo/barangay-rewards/internal/repository"
)

// RedeemResult is what a successful redemption reports back.
type RedeemResult struct {
	RewardID            int64              `json:"reward_id"`
	RewardName          string             `json:"reward_name"`
	RewardType          model.SlotCategory `json:"reward_type"`
	PointsUsed          int                `json:"points_used"`
	NewRedeemablePoints int                `json:"new_redeemable_points"`
	IsEquipped          bool               `json:"is_equipped"`
	// NeedsConfirmation is set when the new frame or title was left
	// unequipped because another item already occupies the slot;
	// CurrentEquipped names that item so the client can ask before
	// swapping via ToggleEquip.
	NeedsConfirmation bool                `json:"needs_confirmation"`
	CurrentEquipped   *model.EquippedItem `json:"current_equipped,omitempty"`
	RedeemedAt        time.Time           `json:"redeemed_at"`
}

// Redeem spends the resident's redeemable points on a reward.  Checks run in
// order: reward availability, prior ownership, balance.  The debit, the
// redemption row and the default equip state commit together or not at all.
func (s *Service) Redeem(ctx context.Context, residentID, rewardID int64) (*RedeemResult, error) {
	var res *RedeemResult
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		r, err := s.redeemTx(ctx, tx, residentID, rewardID)
		res = r
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"resident_id": residentID,
		"reward_id":   rewardID,
		"points_used": res.PointsUsed,
		"is_equipped": res.IsEquipped,
	}).Info("reward redeemed")

	if err := s.events.PublishRedeemed(ctx, queue.RewardRedeemedEvent{
		ResidentID:          residentID,
		RewardID:            res.RewardID,
		RewardName:          res.RewardName,
		RewardType:          string(res.RewardType),
		PointsUsed:          res.PointsUsed,
		NewRedeemablePoints: res.NewRedeemablePoints,
		IsEquipped:          res.IsEquipped,
		RedeemedAt:          res.RedeemedAt.Format(time.RFC3339),
	}); err != nil {
		s.log.WithError(err).Warn("publish reward.redeemed failed")
	}
	return res, nil
}

func (s *Service) redeemTx(ctx context.Context, tx *sql.Tx, residentID, rewardID int64) (*RedeemResult, error) {
	now := s.clock()

	reward, err := s.rewards.GetByIDTx(ctx, tx, rewardID)
	if errors.Is(err, repository.ErrRewardNotFound) {
		return nil, ErrRewardUnavailable
	}
	if err != nil {
		return nil, err
	}
	if !reward.AvailableAt(now) {
		return nil, ErrRewardUnavailable
	}

	// Ownership is checked before the balance: the first redemption may
	// have spent the points a second attempt would need, and the caller
	// must still hear that the reward is already theirs.
	owned, err := s.owns(ctx, tx, residentID, rewardID)
	if err != nil {
		return nil, err
	}
	if owned {
		return nil, ErrAlreadyRedeemed
	}

	bal, err := s.balances.GetTx(ctx, tx, residentID)
	if errors.Is(err, repository.ErrResidentNotFound) {
		return nil, ErrResidentNotFound
	}
	if err != nil {
		return nil, err
	}
	if bal.RedeemablePoints < reward.PointsRequired {
		return nil, ErrInsufficientPoints
	}

	// The guarded debit is also the resident lock: everything after this
	// line is serialised against other redeem/equip calls for the resident.
	if err := s.balances.DebitTx(ctx, tx, residentID, reward.PointsRequired, now); err != nil {
		if !errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, err
		}
		// A concurrent redeem of the same pair committed while we waited
		// for the lock and spent the balance.
		if owned, oerr := s.redemptions.ExistsTx(ctx, tx, residentID, rewardID); oerr == nil && owned {
			return nil, ErrAlreadyRedeemed
		}
		return nil, ErrInsufficientPoints
	}

	res := &RedeemResult{
		RewardID:   reward.ID,
		RewardName: reward.Name,
		RewardType: reward.SlotCategory,
		PointsUsed: reward.PointsRequired,
		RedeemedAt: now,
	}
	switch {
	case reward.SlotCategory == model.SlotTrophy:
		res.IsEquipped = true
	case reward.SlotCategory.Exclusive():
		current, err := s.redemptions.EquippedInSlotTx(ctx, tx, residentID, reward.SlotCategory)
		if err != nil {
			return nil, err
		}
		if current == nil {
			res.IsEquipped = true
		} else {
			res.NeedsConfirmation = true
			res.CurrentEquipped = &model.EquippedItem{
				RewardID:     current.RewardID,
				RewardName:   current.RewardName,
				SlotCategory: current.SlotCategory,
			}
		}
	}

	rd := &model.Redemption{
		ResidentID: residentID,
		RewardID:   reward.ID,
		PointsUsed: reward.PointsRequired,
		RedeemedAt: now,
		IsEquipped: res.IsEquipped,
	}
	// A concurrent redemption of the same pair that slipped past ExistsTx
	// fails here with repository.ErrDuplicate; inTx rolls back the debit
	// and retries.
	if err := s.redemptions.CreateTx(ctx, tx, rd); err != nil {
		return nil, err
	}

	after, err := s.balances.GetTx(ctx, tx, residentID)
	if err != nil {
		return nil, err
	}
	res.NewRedeemablePoints = after.RedeemablePoints
	return res, nil
}
