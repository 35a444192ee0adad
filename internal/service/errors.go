package service

import "errors"

// Errors returned by the ledger, redemption and equip engines.  Each carries
// a stable kind string (see Kind) that the HTTP layer reports to clients.
var (
	ErrResidentNotFound    = errors.New("resident has no points record")
	ErrRewardNotFound      = errors.New("reward not found")
	ErrRewardUnavailable   = errors.New("reward is not available for redemption")
	ErrInsufficientPoints  = errors.New("not enough redeemable points")
	ErrAlreadyRedeemed     = errors.New("reward already redeemed")
	ErrNotRedeemed         = errors.New("reward has not been redeemed")
	ErrNotEquippable       = errors.New("reward cannot be equipped or unequipped")
	ErrConcurrencyConflict = errors.New("request conflicted with another update, please try again")
	ErrInvalidSlot         = errors.New("invalid slot category")
	ErrInvalidReward       = errors.New("invalid reward")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrResidentNotFound, "resident_not_found"},
	{ErrRewardNotFound, "reward_not_found"},
	{ErrRewardUnavailable, "reward_unavailable"},
	{ErrInsufficientPoints, "insufficient_points"},
	{ErrAlreadyRedeemed, "already_redeemed"},
	{ErrNotRedeemed, "not_redeemed"},
	{ErrNotEquippable, "not_equippable"},
	{ErrConcurrencyConflict, "concurrency_conflict"},
	{ErrInvalidSlot, "invalid_slot"},
	{ErrInvalidReward, "invalid_reward"},
}

// Kind returns the stable error kind for err, or "" when err is not one of
// the service errors.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}
