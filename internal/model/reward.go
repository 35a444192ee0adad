package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SlotCategory is the reward_type column.  It decides whether a redeemed
// reward can be equipped and, if so, whether equipping it displaces another
// item of the same category.
type SlotCategory string

const (
	SlotTrophy SlotCategory = "trophy" // equippable, additive
	SlotFrame  SlotCategory = "frame"  // equippable, one per resident
	SlotTitle  SlotCategory = "title"  // equippable, one per resident
	SlotGoods  SlotCategory = "goods"  // physical item, never equipped
	SlotTicket SlotCategory = "ticket" // event/service ticket, never equipped
)

// ErrUnknownSlot is returned by ParseSlotCategory for values outside the
// known set.
var ErrUnknownSlot = errors.New("unknown slot category")

// ParseSlotCategory normalises s and checks it against the known categories.
func ParseSlotCategory(s string) (SlotCategory, error) {
	c := SlotCategory(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSlot, s)
	}
	return c, nil
}

func (c SlotCategory) Valid() bool {
	switch c {
	case SlotTrophy, SlotFrame, SlotTitle, SlotGoods, SlotTicket:
		return true
	}
	return false
}

// Equippable reports whether owning the reward gives it an equip state.
func (c SlotCategory) Equippable() bool {
	return c == SlotTrophy || c == SlotFrame || c == SlotTitle
}

// Exclusive reports whether at most one reward of this category may be
// equipped per resident.
func (c SlotCategory) Exclusive() bool {
	return c == SlotFrame || c == SlotTitle
}

// Reward mirrors a row of the rewards table.  Rewards are never deleted;
// administrators archive them instead.
type Reward struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	SlotCategory   SlotCategory `json:"reward_type"`
	PointsRequired int          `json:"points_required"`
	Active         bool         `json:"is_active"`
	Archived       bool         `json:"is_archived"`
	ActivationDate *time.Time   `json:"activation_date,omitempty"`
	ExpirationDate *time.Time   `json:"expiration_date,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// AvailableAt reports whether the reward can be redeemed at now: active, not
// archived and inside its [activation, expiration) window.
func (r Reward) AvailableAt(now time.Time) bool {
	if !r.Active || r.Archived {
		return false
	}
	return r.InWindow(now)
}

// InWindow checks only the calendar window.  A missing bound is open.
func (r Reward) InWindow(now time.Time) bool {
	if r.ActivationDate != nil && now.Before(*r.ActivationDate) {
		return false
	}
	if r.ExpirationDate != nil && !now.Before(*r.ExpirationDate) {
		return false
	}
	return true
}
