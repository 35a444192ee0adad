package model

import "time"

// Redemption is one owned reward: the (resident, reward) pair is unique.
// RewardName and SlotCategory are joined from rewards for display and for
// the equip rules; PointsUsed is the price at redemption time and is not
// touched by later catalog edits.
type Redemption struct {
	ID           int64        `json:"id"`
	ResidentID   int64        `json:"resident_id"`
	RewardID     int64        `json:"reward_id"`
	RewardName   string       `json:"reward_name"`
	SlotCategory SlotCategory `json:"reward_type"`
	PointsUsed   int          `json:"points_used"`
	RedeemedAt   time.Time    `json:"redeemed_at"`
	IsEquipped   bool         `json:"is_equipped"`
}

// EquippedItem identifies a worn reward in an EquipSnapshot.
type EquippedItem struct {
	RewardID     int64        `json:"reward_id"`
	RewardName   string       `json:"reward_name"`
	SlotCategory SlotCategory `json:"reward_type"`
}

// EquipSnapshot is a resident's complete equip state: the single frame and
// title slots plus every equipped trophy.
type EquipSnapshot struct {
	Frame    *EquippedItem  `json:"frame"`
	Title    *EquippedItem  `json:"title"`
	Trophies []EquippedItem `json:"trophies"`
}

// NewEquipSnapshot folds equipped redemptions into a snapshot.  Rows that are
// not equipped or not equippable are ignored.
func NewEquipSnapshot(rows []Redemption) EquipSnapshot {
	snap := EquipSnapshot{Trophies: []EquippedItem{}}
	for _, r := range rows {
		if !r.IsEquipped {
			continue
		}
		item := EquippedItem{RewardID: r.RewardID, RewardName: r.RewardName, SlotCategory: r.SlotCategory}
		switch r.SlotCategory {
		case SlotFrame:
			snap.Frame = &item
		case SlotTitle:
			snap.Title = &item
		case SlotTrophy:
			snap.Trophies = append(snap.Trophies, item)
		}
	}
	return snap
}

// EquipAction is what a toggle did.
type EquipAction string

const (
	ActionEquipped   EquipAction = "equipped"
	ActionUnequipped EquipAction = "unequipped"
)

// EquipAuditEntry is a row of the append-only equip_audit_log table.
type EquipAuditEntry struct {
	ID         int64
	ResidentID int64
	RewardID   int64
	Action     EquipAction
	CreatedAt  time.Time
}
