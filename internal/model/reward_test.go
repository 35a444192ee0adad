package model

import (
	"errors"
	"testing"
	"time"
)

func TestParseSlotCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    SlotCategory
		wantErr bool
	}{
		{"frame", SlotFrame, false},
		{" Title ", SlotTitle, false},
		{"TROPHY", SlotTrophy, false},
		{"goods", SlotGoods, false},
		{"ticket", SlotTicket, false},
		{"badge", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := ParseSlotCategory(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownSlot) {
				t.Fatalf("ParseSlotCategory(%q): got err %v, want ErrUnknownSlot", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseSlotCategory(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestSlotRules(t *testing.T) {
	for _, c := range []SlotCategory{SlotFrame, SlotTitle} {
		if !c.Equippable() || !c.Exclusive() {
			t.Fatalf("%s should be equippable and exclusive", c)
		}
	}
	if !SlotTrophy.Equippable() || SlotTrophy.Exclusive() {
		t.Fatalf("trophy should be equippable and additive")
	}
	for _, c := range []SlotCategory{SlotGoods, SlotTicket} {
		if c.Equippable() || c.Exclusive() {
			t.Fatalf("%s should not be equippable", c)
		}
	}
}

func TestRewardAvailableAt(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Minute)
	after := now.Add(time.Minute)

	tests := []struct {
		name string
		rw   Reward
		want bool
	}{
		{"open window", Reward{Active: true}, true},
		{"inactive", Reward{Active: false}, false},
		{"archived", Reward{Active: true, Archived: true}, false},
		{"starts now", Reward{Active: true, ActivationDate: &now}, true},
		{"starts later", Reward{Active: true, ActivationDate: &after}, false},
		{"expires now", Reward{Active: true, ExpirationDate: &now}, false},
		{"expires later", Reward{Active: true, ActivationDate: &before, ExpirationDate: &after}, true},
		{"expired", Reward{Active: true, ExpirationDate: &before}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rw.AvailableAt(now); got != tc.want {
				t.Fatalf("AvailableAt = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewEquipSnapshot(t *testing.T) {
	rows := []Redemption{
		{RewardID: 1, RewardName: "Frame A", SlotCategory: SlotFrame, IsEquipped: true},
		{RewardID: 2, RewardName: "Frame B", SlotCategory: SlotFrame, IsEquipped: false},
		{RewardID: 3, RewardName: "Hero", SlotCategory: SlotTitle, IsEquipped: true},
		{RewardID: 4, RewardName: "Trophy 1", SlotCategory: SlotTrophy, IsEquipped: true},
		{RewardID: 5, RewardName: "Trophy 2", SlotCategory: SlotTrophy, IsEquipped: true},
		{RewardID: 6, RewardName: "Rice", SlotCategory: SlotGoods, IsEquipped: true},
	}
	snap := NewEquipSnapshot(rows)
	if snap.Frame == nil || snap.Frame.RewardID != 1 {
		t.Fatalf("frame = %+v, want reward 1", snap.Frame)
	}
	if snap.Title == nil || snap.Title.RewardID != 3 {
		t.Fatalf("title = %+v, want reward 3", snap.Title)
	}
	if len(snap.Trophies) != 2 {
		t.Fatalf("got %d trophies, want 2", len(snap.Trophies))
	}

	empty := NewEquipSnapshot(nil)
	if empty.Frame != nil || empty.Title != nil || empty.Trophies == nil || len(empty.Trophies) != 0 {
		t.Fatalf("empty snapshot = %+v", empty)
	}
}
