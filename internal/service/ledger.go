package service

import (
	"context"
	"errors"

	"github.com/iliyamo/barangay-rewards/internal/model"
	"github.com/iliyamo/barangay-rewards/internal/repository"
)

// GetBalance returns the resident's credit and redeemable points.
func (s *Service) GetBalance(ctx context.Context, residentID int64) (*model.PointsBalance, error) {
	bal, err := s.balances.Get(ctx, residentID)
	if errors.Is(err, repository.ErrResidentNotFound) {
		return nil, ErrResidentNotFound
	}
	if err != nil {
		return nil, err
	}
	return bal, nil
}

// OwnedRewards is a resident's inventory: every redemption, newest first,
// and the equip snapshot derived from it.
type OwnedRewards struct {
	Items    []model.Redemption  `json:"items"`
	Snapshot model.EquipSnapshot `json:"equipped_snapshot"`
}

// ListOwned returns the resident's redeemed rewards with their equip state.
func (s *Service) ListOwned(ctx context.Context, residentID int64) (*OwnedRewards, error) {
	if _, err := s.GetBalance(ctx, residentID); err != nil {
		return nil, err
	}
	items, err := s.redemptions.ListByResident(ctx, residentID)
	if err != nil {
		return nil, err
	}
	return &OwnedRewards{Items: items, Snapshot: model.NewEquipSnapshot(items)}, nil
}
