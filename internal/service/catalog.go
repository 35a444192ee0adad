package service

import (
	"context"
	"strings"

	"github.com/iliyamo/barangay-rewards/internal/model"
)

// ListCatalog returns the rewards a resident can redeem right now: active,
// not archived and inside their activation window, cheapest first.  An empty
// slot lists every category; an unknown one is ErrInvalidSlot.
func (s *Service) ListCatalog(ctx context.Context, slot string) ([]model.Reward, error) {
	var cat model.SlotCategory
	if strings.TrimSpace(slot) != "" {
		c, err := model.ParseSlotCategory(slot)
		if err != nil {
			return nil, ErrInvalidSlot
		}
		cat = c
	}

	rows, ok := s.catalog.Get(ctx, cat)
	if !ok {
		var err error
		rows, err = s.rewards.ListActive(ctx, cat)
		if err != nil {
			return nil, err
		}
		s.catalog.Set(ctx, cat, rows)
	}

	now := s.clock()
	out := make([]model.Reward, 0, len(rows))
	for _, rw := range rows {
		if rw.AvailableAt(now) {
			out = append(out, rw)
		}
	}
	return out, nil
}
