package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/barangay-rewards/internal/database"
	"github.com/iliyamo/barangay-rewards/internal/logger"
	"github.com/iliyamo/barangay-rewards/internal/model"
	"github.com/iliyamo/barangay-rewards/internal/queue"
	"github.com/iliyamo/barangay-rewards/internal/repository"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu       sync.Mutex
	redeemed []queue.RewardRedeemedEvent
	toggled  []queue.EquipToggledEvent
}

func (p *recordingPublisher) PublishRedeemed(_ context.Context, ev queue.RewardRedeemedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.redeemed = append(p.redeemed, ev)
	return nil
}

func (p *recordingPublisher) PublishEquipToggled(_ context.Context, ev queue.EquipToggledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toggled = append(p.toggled, ev)
	return nil
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "rewards.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithRetry(3, time.Millisecond),
	}, opts...)
	return New(db, database.SQLite, logger.NewWithOutput("error", io.Discard), opts...)
}

func provision(t *testing.T, s *Service, residentID int64, points int) {
	t.Helper()
	if err := s.balances.Provision(context.Background(), residentID, points, points); err != nil {
		t.Fatalf("provision resident %d: %v", residentID, err)
	}
}

func createReward(t *testing.T, s *Service, name string, slot model.SlotCategory, cost int) *model.Reward {
	t.Helper()
	rw, err := s.CreateReward(context.Background(), RewardInput{Name: name, RewardType: string(slot), PointsRequired: cost})
	if err != nil {
		t.Fatalf("create reward %q: %v", name, err)
	}
	return rw
}

func balanceOf(t *testing.T, s *Service, residentID int64) int {
	t.Helper()
	bal, err := s.GetBalance(context.Background(), residentID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return bal.RedeemablePoints
}

// assertSlotsExclusive checks that no resident wears two frames or two titles.
func assertSlotsExclusive(t *testing.T, s *Service, residentID int64) {
	t.Helper()
	for _, slot := range []model.SlotCategory{model.SlotFrame, model.SlotTitle} {
		n, err := s.redemptions.CountEquippedInSlot(context.Background(), residentID, slot)
		if err != nil {
			t.Fatalf("count equipped %s: %v", slot, err)
		}
		if n > 1 {
			t.Fatalf("resident %d has %d equipped %s items, want at most 1", residentID, n, slot)
		}
	}
}

func TestRedeemDebitsOnceAndRejectsSecondRedeem(t *testing.T) {
	pub := &recordingPublisher{}
	s := newTestService(t, WithPublisher(pub))
	ctx := context.Background()
	provision(t, s, 1, 100)
	trophy := createReward(t, s, "Clean-up Trophy", model.SlotTrophy, 30)

	res, err := s.Redeem(ctx, 1, trophy.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.PointsUsed != 30 || res.NewRedeemablePoints != 70 {
		t.Fatalf("got points_used=%d balance=%d, want 30 and 70", res.PointsUsed, res.NewRedeemablePoints)
	}
	if !res.IsEquipped {
		t.Fatalf("trophy should be equipped on redeem")
	}
	if !res.RedeemedAt.Equal(testNow) {
		t.Fatalf("redeemed_at = %v, want %v", res.RedeemedAt, testNow)
	}

	_, err = s.Redeem(ctx, 1, trophy.ID)
	if !errors.Is(err, ErrAlreadyRedeemed) {
		t.Fatalf("second redeem: got %v, want ErrAlreadyRedeemed", err)
	}
	if got := balanceOf(t, s, 1); got != 70 {
		t.Fatalf("balance after rejected redeem = %d, want 70", got)
	}
	if len(pub.redeemed) != 1 {
		t.Fatalf("published %d redeem events, want 1", len(pub.redeemed))
	}
	if ev := pub.redeemed[0]; ev.ResidentID != 1 || ev.RewardID != trophy.ID || ev.NewRedeemablePoints != 70 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRedeemInsufficientPoints(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 5)
	frame := createReward(t, s, "Gold Frame", model.SlotFrame, 10)

	if _, err := s.Redeem(ctx, 1, frame.ID); !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("got %v, want ErrInsufficientPoints", err)
	}
	if got := balanceOf(t, s, 1); got != 5 {
		t.Fatalf("balance = %d, want 5", got)
	}
	owned, err := s.ListOwned(ctx, 1)
	if err != nil {
		t.Fatalf("list owned: %v", err)
	}
	if len(owned.Items) != 0 {
		t.Fatalf("got %d redemptions, want none", len(owned.Items))
	}
}

func TestRedeemExactBalance(t *testing.T) {
	s := newTestService(t)
	provision(t, s, 1, 40)
	title := createReward(t, s, "Bayanihan Hero", model.SlotTitle, 40)

	res, err := s.Redeem(context.Background(), 1, title.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.NewRedeemablePoints != 0 {
		t.Fatalf("balance = %d, want 0", res.NewRedeemablePoints)
	}
}

func TestRedeemUnavailableRewards(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 1000)

	future := testNow.Add(24 * time.Hour)
	past := testNow.Add(-24 * time.Hour)
	inactive := false

	notYet, err := s.CreateReward(ctx, RewardInput{Name: "Fiesta Frame", RewardType: "frame", PointsRequired: 10, ActivationDate: &future})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	expired, err := s.CreateReward(ctx, RewardInput{Name: "Old Ticket", RewardType: "ticket", PointsRequired: 10, ExpirationDate: &testNow})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	disabled, err := s.CreateReward(ctx, RewardInput{Name: "Hidden Goods", RewardType: "goods", PointsRequired: 10, Active: &inactive})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	archived := createReward(t, s, "Retired Title", model.SlotTitle, 10)
	if _, err := s.SetRewardArchived(ctx, archived.ID, true); err != nil {
		t.Fatalf("archive: %v", err)
	}
	live, err := s.CreateReward(ctx, RewardInput{Name: "Live Ticket", RewardType: "ticket", PointsRequired: 10, ActivationDate: &past, ExpirationDate: &future})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name     string
		rewardID int64
	}{
		{"before activation", notYet.ID},
		{"at expiration", expired.ID},
		{"inactive", disabled.ID},
		{"archived", archived.ID},
		{"unknown id", 9999},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Redeem(ctx, 1, tc.rewardID); !errors.Is(err, ErrRewardUnavailable) {
				t.Fatalf("got %v, want ErrRewardUnavailable", err)
			}
		})
	}
	if got := balanceOf(t, s, 1); got != 1000 {
		t.Fatalf("balance = %d, want 1000", got)
	}
	if _, err := s.Redeem(ctx, 1, live.ID); err != nil {
		t.Fatalf("redeem inside window: %v", err)
	}
}

func TestRedeemChecksRewardBeforeResident(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	frame := createReward(t, s, "Frame", model.SlotFrame, 10)

	if _, err := s.Redeem(ctx, 42, frame.ID); !errors.Is(err, ErrResidentNotFound) {
		t.Fatalf("got %v, want ErrResidentNotFound", err)
	}
	if _, err := s.Redeem(ctx, 42, 9999); !errors.Is(err, ErrRewardUnavailable) {
		t.Fatalf("got %v, want ErrRewardUnavailable", err)
	}
}

func TestFrameSwapScenario(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 100)
	frameX := createReward(t, s, "Frame X", model.SlotFrame, 80)
	frameY := createReward(t, s, "Frame Y", model.SlotFrame, 10)

	first, err := s.Redeem(ctx, 1, frameX.ID)
	if err != nil {
		t.Fatalf("redeem X: %v", err)
	}
	if !first.IsEquipped || first.NeedsConfirmation || first.NewRedeemablePoints != 20 {
		t.Fatalf("redeem X = %+v, want equipped, no confirmation, balance 20", first)
	}

	second, err := s.Redeem(ctx, 1, frameY.ID)
	if err != nil {
		t.Fatalf("redeem Y: %v", err)
	}
	if second.IsEquipped || !second.NeedsConfirmation {
		t.Fatalf("redeem Y = %+v, want unequipped with needs_confirmation", second)
	}
	if second.CurrentEquipped == nil || second.CurrentEquipped.RewardID != frameX.ID {
		t.Fatalf("current_equipped = %+v, want frame X", second.CurrentEquipped)
	}
	if second.NewRedeemablePoints != 10 {
		t.Fatalf("balance = %d, want 10", second.NewRedeemablePoints)
	}

	tog, err := s.ToggleEquip(ctx, 1, frameY.ID)
	if err != nil {
		t.Fatalf("toggle Y: %v", err)
	}
	if tog.Action != model.ActionEquipped || !tog.IsEquipped {
		t.Fatalf("toggle Y = %+v, want equipped", tog)
	}
	if tog.Snapshot.Frame == nil || tog.Snapshot.Frame.RewardID != frameY.ID {
		t.Fatalf("snapshot frame = %+v, want frame Y", tog.Snapshot.Frame)
	}
	assertSlotsExclusive(t, s, 1)

	owned, err := s.ListOwned(ctx, 1)
	if err != nil {
		t.Fatalf("list owned: %v", err)
	}
	for _, it := range owned.Items {
		if it.RewardID == frameX.ID && it.IsEquipped {
			t.Fatalf("frame X still equipped after swap")
		}
	}
}

func TestToggleTwiceRestoresState(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 100)
	title := createReward(t, s, "Kapitan's Helper", model.SlotTitle, 10)
	if _, err := s.Redeem(ctx, 1, title.ID); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	off, err := s.ToggleEquip(ctx, 1, title.ID)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if off.Action != model.ActionUnequipped || off.Snapshot.Title != nil {
		t.Fatalf("first toggle = %+v, want unequipped and empty title slot", off)
	}
	on, err := s.ToggleEquip(ctx, 1, title.ID)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if on.Action != model.ActionEquipped || on.Snapshot.Title == nil || on.Snapshot.Title.RewardID != title.ID {
		t.Fatalf("second toggle = %+v, want title equipped again", on)
	}

	entries, err := s.audit.ListByResident(ctx, 1)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d audit rows, want 2", len(entries))
	}
	if entries[0].Action != model.ActionUnequipped || entries[1].Action != model.ActionEquipped {
		t.Fatalf("audit actions = %s, %s", entries[0].Action, entries[1].Action)
	}
}

func TestTrophiesAreAdditive(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 100)
	a := createReward(t, s, "Tree Planting Trophy", model.SlotTrophy, 10)
	b := createReward(t, s, "Blood Drive Trophy", model.SlotTrophy, 10)

	for _, rw := range []*model.Reward{a, b} {
		res, err := s.Redeem(ctx, 1, rw.ID)
		if err != nil {
			t.Fatalf("redeem %s: %v", rw.Name, err)
		}
		if !res.IsEquipped || res.NeedsConfirmation {
			t.Fatalf("redeem %s = %+v, want equipped without confirmation", rw.Name, res)
		}
	}
	owned, err := s.ListOwned(ctx, 1)
	if err != nil {
		t.Fatalf("list owned: %v", err)
	}
	if got := len(owned.Snapshot.Trophies); got != 2 {
		t.Fatalf("got %d equipped trophies, want 2", got)
	}
	if _, err := s.ToggleEquip(ctx, 1, a.ID); !errors.Is(err, ErrNotEquippable) {
		t.Fatalf("toggle trophy: got %v, want ErrNotEquippable", err)
	}
}

func TestGoodsAndTicketsHaveNoEquipState(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 100)

	for _, slot := range []model.SlotCategory{model.SlotGoods, model.SlotTicket} {
		rw := createReward(t, s, "Item "+string(slot), slot, 10)
		res, err := s.Redeem(ctx, 1, rw.ID)
		if err != nil {
			t.Fatalf("redeem %s: %v", slot, err)
		}
		if res.IsEquipped || res.NeedsConfirmation {
			t.Fatalf("redeem %s = %+v, want unequipped without confirmation", slot, res)
		}
		if _, err := s.ToggleEquip(ctx, 1, rw.ID); !errors.Is(err, ErrNotEquippable) {
			t.Fatalf("toggle %s: got %v, want ErrNotEquippable", slot, err)
		}
	}
}

func TestToggleErrors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 100)
	frame := createReward(t, s, "Frame", model.SlotFrame, 10)

	if _, err := s.ToggleEquip(ctx, 1, frame.ID); !errors.Is(err, ErrNotRedeemed) {
		t.Fatalf("toggle unowned: got %v, want ErrNotRedeemed", err)
	}
	if _, err := s.ToggleEquip(ctx, 77, frame.ID); !errors.Is(err, ErrResidentNotFound) {
		t.Fatalf("toggle for unknown resident: got %v, want ErrResidentNotFound", err)
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 100)
	frame := createReward(t, s, "Frame", model.SlotFrame, 10)
	title := createReward(t, s, "Title", model.SlotTitle, 10)
	title2 := createReward(t, s, "Other Title", model.SlotTitle, 10)

	for _, id := range []int64{frame.ID, title.ID, title2.ID} {
		if _, err := s.Redeem(ctx, 1, id); err != nil {
			t.Fatalf("redeem %d: %v", id, err)
		}
		assertSlotsExclusive(t, s, 1)
	}
	res, err := s.ToggleEquip(ctx, 1, title2.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if res.Snapshot.Frame == nil || res.Snapshot.Frame.RewardID != frame.ID {
		t.Fatalf("frame changed by a title toggle: %+v", res.Snapshot.Frame)
	}
	if res.Snapshot.Title == nil || res.Snapshot.Title.RewardID != title2.ID {
		t.Fatalf("title = %+v, want %d", res.Snapshot.Title, title2.ID)
	}
	assertSlotsExclusive(t, s, 1)
}

func TestConcurrentRedeemOfSamePair(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 100)
	frame := createReward(t, s, "Frame", model.SlotFrame, 30)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Redeem(ctx, 1, frame.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyRedeemed), errors.Is(err, ErrConcurrencyConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("got %d successful redeems, want 1", ok)
	}
	if got := balanceOf(t, s, 1); got != 70 {
		t.Fatalf("balance = %d, want 70", got)
	}
}

func TestConcurrentRedeemsNeverOverspend(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 100)

	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, createReward(t, s, "Ticket", model.SlotTicket, 30).ID)
	}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = s.Redeem(ctx, 1, id)
		}(i, id)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrInsufficientPoints) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 3 {
		t.Fatalf("got %d successes, want 3", ok)
	}
	if got := balanceOf(t, s, 1); got != 10 {
		t.Fatalf("balance = %d, want 10", got)
	}
}

func TestInTxRetriesTransientErrors(t *testing.T) {
	s := newTestService(t, WithRetry(2, time.Millisecond))
	ctx := context.Background()

	attempts := 0
	err := s.inTx(ctx, func(ctx context.Context, _ *sql.Tx) error {
		attempts++
		return fmt.Errorf("insert: %w", repository.ErrDuplicate)
	})
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("got %v, want ErrConcurrencyConflict", err)
	}
	if attempts != 3 {
		t.Fatalf("got %d attempts, want 3", attempts)
	}

	attempts = 0
	err = s.inTx(ctx, func(ctx context.Context, _ *sql.Tx) error {
		attempts++
		if attempts == 1 {
			return repository.ErrConflict
		}
		return nil
	})
	if err != nil || attempts != 2 {
		t.Fatalf("got err=%v attempts=%d, want nil and 2", err, attempts)
	}

	attempts = 0
	err = s.inTx(ctx, func(ctx context.Context, _ *sql.Tx) error {
		attempts++
		return ErrNotRedeemed
	})
	if !errors.Is(err, ErrNotRedeemed) || attempts != 1 {
		t.Fatalf("got err=%v attempts=%d, want ErrNotRedeemed after 1 attempt", err, attempts)
	}
}

func TestSecondRedeemReportsOwnershipBeforeBalance(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 100)
	frame := createReward(t, s, "Frame X", model.SlotFrame, 80)

	if _, err := s.Redeem(ctx, 1, frame.ID); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, err := s.Redeem(ctx, 1, frame.ID); !errors.Is(err, ErrAlreadyRedeemed) {
		t.Fatalf("second redeem: got %v, want ErrAlreadyRedeemed", err)
	}
	if got := balanceOf(t, s, 1); got != 20 {
		t.Fatalf("balance = %d, want 20", got)
	}
}

func TestConcurrentRedeemWhenLoserCannotAffordIt(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 100)
	frame := createReward(t, s, "Frame X", model.SlotFrame, 80)

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Redeem(ctx, 1, frame.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyRedeemed), errors.Is(err, ErrConcurrencyConflict):
		default:
			t.Fatalf("loser got %v (kind %q), want already_redeemed or concurrency_conflict", err, Kind(err))
		}
	}
	if ok != 1 {
		t.Fatalf("got %d successful redeems, want 1", ok)
	}
	if got := balanceOf(t, s, 1); got != 20 {
		t.Fatalf("balance = %d, want 20", got)
	}
}

func TestRedeemLosingInsertRaceIsRetried(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	provision(t, s, 1, 100)
	frame := createReward(t, s, "Frame", model.SlotFrame, 30)

	// Another request already committed the pair, but our first ownership
	// check ran before it did.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.redemptions.CreateTx(ctx, tx, &model.Redemption{
		ResidentID: 1, RewardID: frame.ID, PointsUsed: 30, RedeemedAt: testNow, IsEquipped: true,
	}); err != nil {
		t.Fatalf("insert winner: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	checks := 0
	s.owns = func(ctx context.Context, tx *sql.Tx, residentID, rewardID int64) (bool, error) {
		checks++
		if checks == 1 {
			return false, nil
		}
		return s.redemptions.ExistsTx(ctx, tx, residentID, rewardID)
	}

	if _, err := s.Redeem(ctx, 1, frame.ID); !errors.Is(err, ErrAlreadyRedeemed) {
		t.Fatalf("got %v, want ErrAlreadyRedeemed", err)
	}
	if checks != 2 {
		t.Fatalf("ownership checked %d times, want 2 (one retry after the duplicate insert)", checks)
	}
	if got := balanceOf(t, s, 1); got != 100 {
		t.Fatalf("balance = %d, want 100: the losing debit must roll back", got)
	}
}
