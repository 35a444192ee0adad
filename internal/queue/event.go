// Package queue defines message payloads exchanged over the message broker.
package queue

import "encoding/json"

// EventsQueue is the durable queue both event types are published to.
const EventsQueue = "rewards.events"

// Event type names carried in Envelope.Type.
const (
	TypeRewardRedeemed    = "reward.redeemed"
	TypeRewardEquipToggle = "reward.equip_toggled"
)

// Envelope wraps every message so a single consumer can dispatch on Type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RewardRedeemedEvent is published after a redemption commits.
type RewardRedeemedEvent struct {
	ResidentID          int64  `json:"resident_id"`
	RewardID            int64  `json:"reward_id"`
	RewardName          string `json:"reward_name"`
	RewardType          string `json:"reward_type"`
	PointsUsed          int    `json:"points_used"`
	NewRedeemablePoints int    `json:"new_redeemable_points"`
	IsEquipped          bool   `json:"is_equipped"`
	RedeemedAt          string `json:"redeemed_at"`
}

// EquipToggledEvent is published after an equip toggle commits.  It mirrors
// the equip_audit_log row written in the same transaction.
type EquipToggledEvent struct {
	ResidentID int64  `json:"resident_id"`
	RewardID   int64  `json:"reward_id"`
	RewardName string `json:"reward_name"`
	RewardType string `json:"reward_type"`
	Action     string `json:"action"`
	ToggledAt  string `json:"toggled_at"`
}
