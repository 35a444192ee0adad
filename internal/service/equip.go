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

// ToggleResult reports what ToggleEquip did and the resident's equip state
// afterwards.
type ToggleResult struct {
	RewardID   int64               `json:"reward_id"`
	RewardName string              `json:"reward_name"`
	RewardType model.SlotCategory  `json:"reward_type"`
	Action     model.EquipAction   `json:"action"`
	IsEquipped bool                `json:"is_equipped"`
	Snapshot   model.EquipSnapshot `json:"equipped_snapshot"`
}

// ToggleEquip flips the equip state of an owned frame or title.  Equipping
// first unequips every other item the resident holds in the same slot, so
// the one-per-slot invariant holds after every call.  Trophies are always
// worn and goods/tickets have no equip state; both are rejected with
// ErrNotEquippable.
//
// Unlike Redeem, this does not ask for confirmation before displacing the
// current item: the confirmation prompt is the client's job between the
// two calls.
func (s *Service) ToggleEquip(ctx context.Context, residentID, rewardID int64) (*ToggleResult, error) {
	var res *ToggleResult
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		r, err := s.toggleTx(ctx, tx, residentID, rewardID)
		res = r
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"resident_id": residentID,
		"reward_id":   rewardID,
		"action":      res.Action,
	}).Info("reward equip toggled")

	if err := s.events.PublishEquipToggled(ctx, queue.EquipToggledEvent{
		ResidentID: residentID,
		RewardID:   res.RewardID,
		RewardName: res.RewardName,
		RewardType: string(res.RewardType),
		Action:     string(res.Action),
		ToggledAt:  s.clock().Format(time.RFC3339),
	}); err != nil {
		s.log.WithError(err).Warn("publish reward.equip_toggled failed")
	}
	return res, nil
}

func (s *Service) toggleTx(ctx context.Context, tx *sql.Tx, residentID, rewardID int64) (*ToggleResult, error) {
	now := s.clock()

	if err := s.balances.LockTx(ctx, tx, residentID, now); err != nil {
		if errors.Is(err, repository.ErrResidentNotFound) {
			return nil, ErrResidentNotFound
		}
		return nil, err
	}

	rd, err := s.redemptions.GetTx(ctx, tx, residentID, rewardID)
	if errors.Is(err, repository.ErrRedemptionNotFound) {
		return nil, ErrNotRedeemed
	}
	if err != nil {
		return nil, err
	}
	if !rd.SlotCategory.Exclusive() {
		return nil, ErrNotEquippable
	}

	res := &ToggleResult{RewardID: rd.RewardID, RewardName: rd.RewardName, RewardType: rd.SlotCategory}
	if rd.IsEquipped {
		if err := s.redemptions.SetEquippedTx(ctx, tx, rd.ID, false); err != nil {
			return nil, err
		}
		res.Action = model.ActionUnequipped
	} else {
		if _, err := s.redemptions.UnequipSlotTx(ctx, tx, residentID, rd.SlotCategory, rd.RewardID); err != nil {
			return nil, err
		}
		if err := s.redemptions.SetEquippedTx(ctx, tx, rd.ID, true); err != nil {
			return nil, err
		}
		res.Action = model.ActionEquipped
		res.IsEquipped = true
	}

	if err := s.audit.AppendTx(ctx, tx, &model.EquipAuditEntry{
		ResidentID: residentID,
		RewardID:   rewardID,
		Action:     res.Action,
		CreatedAt:  now,
	}); err != nil {
		return nil, err
	}

	equipped, err := s.redemptions.ListEquipped(ctx, tx, residentID)
	if err != nil {
		return nil, err
	}
	res.Snapshot = model.NewEquipSnapshot(equipped)
	return res, nil
}
