package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/barangay-rewards/internal/model"
	"github.com/iliyamo/barangay-rewards/internal/repository"
)

// RewardInput carries the editable fields of a catalog entry.
type RewardInput struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	RewardType     string     `json:"reward_type"`
	PointsRequired int        `json:"points_required"`
	Active         *bool      `json:"is_active"`
	ActivationDate *time.Time `json:"activation_date"`
	ExpirationDate *time.Time `json:"expiration_date"`
}

func (in RewardInput) toReward() (*model.Reward, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidReward)
	}
	if len(name) > 120 {
		return nil, fmt.Errorf("%w: name is longer than 120 characters", ErrInvalidReward)
	}
	slot, err := model.ParseSlotCategory(in.RewardType)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown reward_type %q", ErrInvalidReward, in.RewardType)
	}
	if in.PointsRequired <= 0 {
		return nil, fmt.Errorf("%w: points_required must be positive", ErrInvalidReward)
	}
	if in.ActivationDate != nil && in.ExpirationDate != nil && !in.ExpirationDate.After(*in.ActivationDate) {
		return nil, fmt.Errorf("%w: expiration_date must be after activation_date", ErrInvalidReward)
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return &model.Reward{
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		SlotCategory:   slot,
		PointsRequired: in.PointsRequired,
		Active:         active,
		ActivationDate: in.ActivationDate,
		ExpirationDate: in.ExpirationDate,
	}, nil
}

// CreateReward adds a catalog entry.
func (s *Service) CreateReward(ctx context.Context, in RewardInput) (*model.Reward, error) {
	rw, err := in.toReward()
	if err != nil {
		return nil, err
	}
	if err := s.rewards.Create(ctx, rw); err != nil {
		return nil, err
	}
	s.catalog.Invalidate(ctx)
	s.log.WithFields(logrus.Fields{"reward_id": rw.ID, "reward_type": rw.SlotCategory}).Info("reward created")
	return s.GetReward(ctx, rw.ID)
}

// UpdateReward replaces the editable fields of a reward.  Existing
// redemptions keep the points_used they were charged.
func (s *Service) UpdateReward(ctx context.Context, id int64, in RewardInput) (*model.Reward, error) {
	rw, err := in.toReward()
	if err != nil {
		return nil, err
	}
	rw.ID = id
	if err := s.rewards.Update(ctx, rw); err != nil {
		if errors.Is(err, repository.ErrRewardNotFound) {
			return nil, ErrRewardNotFound
		}
		if errors.Is(err, repository.ErrRewardTypeLocked) {
			return nil, fmt.Errorf("%w: reward_type cannot change after the reward has been redeemed", ErrInvalidReward)
		}
		return nil, err
	}
	s.catalog.Invalidate(ctx)
	s.log.WithField("reward_id", id).Info("reward updated")
	return s.GetReward(ctx, id)
}

// SetRewardArchived archives or restores a reward.  Archived rewards vanish
// from the catalog and cannot be redeemed; owners keep them.
func (s *Service) SetRewardArchived(ctx context.Context, id int64, archived bool) (*model.Reward, error) {
	if err := s.rewards.SetArchived(ctx, id, archived); err != nil {
		if errors.Is(err, repository.ErrRewardNotFound) {
			return nil, ErrRewardNotFound
		}
		return nil, err
	}
	s.catalog.Invalidate(ctx)
	s.log.WithFields(logrus.Fields{"reward_id": id, "archived": archived}).Info("reward archive flag changed")
	return s.GetReward(ctx, id)
}

// GetReward returns any reward, archived or not.
func (s *Service) GetReward(ctx context.Context, id int64) (*model.Reward, error) {
	rw, err := s.rewards.GetByID(ctx, id)
	if errors.Is(err, repository.ErrRewardNotFound) {
		return nil, ErrRewardNotFound
	}
	if err != nil {
		return nil, err
	}
	return rw, nil
}

// ListRewards returns the whole catalog including archived entries.
func (s *Service) ListRewards(ctx context.Context) ([]model.Reward, error) {
	return s.rewards.List(ctx)
}
