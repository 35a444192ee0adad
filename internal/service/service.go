// Package service implements the rewards engine: the points ledger read
// path, the reward catalog, the redemption engine and the equip-slot
// engine.  Every mutating operation runs as one database transaction that
// re-checks its preconditions after taking the resident's row lock, so
// correctness does not depend on any in-process locking.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/barangay-rewards/internal/database"
	"github.com/iliyamo/barangay-rewards/internal/model"
	"github.com/iliyamo/barangay-rewards/internal/queue"
	"github.com/iliyamo/barangay-rewards/internal/repository"
)

// EventPublisher receives events after their transaction commits.
type EventPublisher interface {
	PublishRedeemed(ctx context.Context, ev queue.RewardRedeemedEvent) error
	PublishEquipToggled(ctx context.Context, ev queue.EquipToggledEvent) error
}

// CatalogCache caches the active catalog per slot filter.
type CatalogCache interface {
	Get(ctx context.Context, slot model.SlotCategory) ([]model.Reward, bool)
	Set(ctx context.Context, slot model.SlotCategory, rewards []model.Reward)
	Invalidate(ctx context.Context)
}

// Service is the rewards engine.  It is stateless apart from its
// dependencies and safe for concurrent use.
type Service struct {
	db     *sql.DB
	txOpts *sql.TxOptions

	balances    *repository.BalanceRepo
	rewards     *repository.RewardRepo
	redemptions *repository.RedemptionRepo
	audit       *repository.AuditRepo

	// owns is the ownership pre-check; tests replace it to lose a race.
	owns func(ctx context.Context, tx *sql.Tx, residentID, rewardID int64) (bool, error)

	catalog CatalogCache
	events  EventPublisher
	log     *logrus.Logger
	now     func() time.Time

	maxRetries uint64
	retryBase  time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithCatalogCache installs a catalog cache.
func WithCatalogCache(c CatalogCache) Option { return func(s *Service) { s.catalog = c } }

// WithPublisher installs the post-commit event publisher.
func WithPublisher(p EventPublisher) Option { return func(s *Service) { s.events = p } }

// WithClock overrides time.Now; tests use it to move around activation
// windows.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRetry sets how often a conflicting transaction is re-run and the base
// delay of the exponential backoff between attempts.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(s *Service) {
		s.maxRetries = maxRetries
		if base > 0 {
			s.retryBase = base
		}
	}
}

// New wires a Service on top of db.
func New(db *sql.DB, dialect database.Dialect, log *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		db:          db,
		txOpts:      database.TxOptions(dialect),
		balances:    repository.NewBalanceRepo(db),
		rewards:     repository.NewRewardRepo(db),
		redemptions: repository.NewRedemptionRepo(db),
		audit:       repository.NewAuditRepo(db),
		catalog:     noCache{},
		events:      queue.NopPublisher{},
		log:         log,
		now:         time.Now,
		maxRetries:  3,
		retryBase:   25 * time.Millisecond,
	}
	s.owns = s.redemptions.ExistsTx
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// inTx runs fn in a transaction, retrying the whole transaction when it
// fails on a uniqueness violation or a lock conflict.  A retried redeem
// re-runs its checks and reports ErrAlreadyRedeemed on the next attempt;
// if every attempt conflicts the caller gets ErrConcurrencyConflict.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	b := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := s.runTx(ctx, fn)
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if isTransient(err) {
		s.log.WithError(err).Warn("transaction retries exhausted")
		return ErrConcurrencyConflict
	}
	return err
}

func (s *Service) runTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.txOpts)
	if err != nil {
		return repository.Classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return repository.Classify(err)
	}
	committed = true
	return nil
}

func isTransient(err error) bool {
	return errors.Is(err, repository.ErrDuplicate) || errors.Is(err, repository.ErrConflict)
}

type noCache struct{}

func (noCache) Get(context.Context, model.SlotCategory) ([]model.Reward, bool) { return nil, false }
func (noCache) Set(context.Context, model.SlotCategory, []model.Reward)        {}
func (noCache) Invalidate(context.Context)                                      {}
