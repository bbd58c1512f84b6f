// Package store is the shared data store: one in-memory snapshot of goals,
// transactions and their metrics, refreshed on a timer and after every
// mutation, with changes announced on an event bus.
//
// The snapshot has a single writer, RefreshData. Mutations go through the
// resource services and then refresh; nothing edits the snapshot in place.
// Events are published while a refresh holds its lock, so handlers must not
// call RefreshData or a mutation synchronously.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/dvloznov/finance-dashboard/internal/insights"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultRefreshInterval is how often the snapshot is rebuilt from the backend.
const DefaultRefreshInterval = 30 * time.Second

// ErrDestroyed is returned by every operation after Destroy.
var ErrDestroyed = errors.New("store destroyed")

// GoalSource is the goal side of the backend.
type GoalSource interface {
	Fetch(ctx context.Context) ([]domain.Goal, error)
	Create(ctx context.Context, in domain.GoalInput) (domain.Goal, error)
	Update(ctx context.Context, id string, patch domain.GoalPatch) (domain.Goal, error)
	Delete(ctx context.Context, id string) error
}

// TransactionSource is the transaction side of the backend.
type TransactionSource interface {
	Fetch(ctx context.Context) ([]domain.Transaction, error)
	Create(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error)
	Update(ctx context.Context, id string, in domain.TransactionInput) (domain.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// Refresh outcomes reported to a RefreshObserver.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// RefreshObserver is told about every completed refresh.
type RefreshObserver interface {
	ObserveRefresh(outcome string, d time.Duration, goals, transactions int)
}

// RefreshError reports which half of a refresh failed. When only one half
// failed the snapshot was still updated with the other.
type RefreshError struct {
	Goals        error
	Transactions error
}

func (e *RefreshError) Error() string {
	switch {
	case e.Goals != nil && e.Transactions != nil:
		return fmt.Sprintf("refresh failed: goals: %v; transactions: %v", e.Goals, e.Transactions)
	case e.Goals != nil:
		return fmt.Sprintf("refresh partially failed: goals: %v", e.Goals)
	default:
		return fmt.Sprintf("refresh partially failed: transactions: %v", e.Transactions)
	}
}

func (e *RefreshError) Unwrap() []error {
	var errs []error
	if e.Goals != nil {
		errs = append(errs, e.Goals)
	}
	if e.Transactions != nil {
		errs = append(errs, e.Transactions)
	}
	return errs
}

// Partial reports whether one half of the refresh succeeded.
func (e *RefreshError) Partial() bool {
	return (e.Goals == nil) != (e.Transactions == nil)
}

// Option configures a Store.
type Option func(*Store)

// WithInterval overrides DefaultRefreshInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithScheduler replaces the cron scheduler.
func WithScheduler(sch Scheduler) Option {
	return func(s *Store) { s.scheduler = sch }
}

// WithLogger sets the store's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock sets the time source used for lastUpdate.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRefreshObserver attaches refresh metrics.
func WithRefreshObserver(o RefreshObserver) Option {
	return func(s *Store) { s.observer = o }
}

// Store holds the current snapshot. Construct one per application with New.
type Store struct {
	goals     GoalSource
	txs       TransactionSource
	bus       *events.Bus
	scheduler Scheduler
	interval  time.Duration
	log       zerolog.Logger
	now       func() time.Time
	observer  RefreshObserver

	snap      atomic.Pointer[domain.Snapshot]
	refreshMu sync.Mutex
	loading   atomic.Bool

	initMu      sync.Mutex
	initialized bool
	destroyed   atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a store with an empty snapshot. Nothing is fetched until
// Initialize or RefreshData.
func New(goals GoalSource, txs TransactionSource, bus *events.Bus, opts ...Option) *Store {
	s := &Store{
		goals:    goals,
		txs:      txs,
		bus:      bus,
		interval: DefaultRefreshInterval,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scheduler == nil {
		s.scheduler = NewCronScheduler(s.log)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.snap.Store(&domain.Snapshot{
		Goals:        []domain.Goal{},
		Transactions: []domain.Transaction{},
	})
	return s
}

// Initialize performs the first refresh and starts the periodic one.
// Only the first call does anything. A failed first refresh is reported
// through the error event, not returned.
func (s *Store) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	if s.initialized || s.destroyed.Load() {
		s.initMu.Unlock()
		return nil
	}
	s.initialized = true
	s.initMu.Unlock()

	s.setLoading(true)
	defer s.setLoading(false)

	if err := s.RefreshData(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Initial refresh failed")
	}

	if err := s.scheduler.Start(s.interval, s.tick); err != nil {
		return fmt.Errorf("Initialize: start scheduler: %w", err)
	}
	s.log.Info().Dur("interval", s.interval).Msg("Shared data store initialized")
	return nil
}

func (s *Store) tick() {
	if s.destroyed.Load() {
		return
	}
	if err := s.RefreshData(s.ctx); err != nil && !errors.Is(err, ErrDestroyed) {
		s.log.Warn().Err(err).Msg("Periodic refresh failed")
	}
}

// RefreshData fetches goals and transactions concurrently and replaces the
// snapshot. Refreshes are serialized. If one fetch fails the other half is
// still applied; if both fail the snapshot is left as it was. Failures are
// published as error events and returned as *RefreshError.
func (s *Store) RefreshData(ctx context.Context) error {
	if s.destroyed.Load() {
		return ErrDestroyed
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.destroyed.Load() {
		return ErrDestroyed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	start := time.Now()

	var (
		g        errgroup.Group
		goals    []domain.Goal
		txs      []domain.Transaction
		goalsErr error
		txsErr   error
	)
	g.Go(func() error {
		goals, goalsErr = s.goals.Fetch(ctx)
		return nil
	})
	g.Go(func() error {
		txs, txsErr = s.txs.Fetch(ctx)
		return nil
	})
	_ = g.Wait()

	if s.destroyed.Load() {
		return ErrDestroyed
	}

	prev := s.snap.Load()
	if goalsErr != nil && txsErr != nil {
		err := &RefreshError{Goals: goalsErr, Transactions: txsErr}
		s.observe(OutcomeFailed, start, prev)
		s.emitError("refresh", err)
		return fmt.Errorf("RefreshData: %w", err)
	}

	next := &domain.Snapshot{Goals: prev.Goals, Transactions: prev.Transactions}
	if goalsErr == nil {
		next.Goals = goals
	}
	if txsErr == nil {
		next.Transactions = txs
	}
	next.Metrics = insights.ComputeMetrics(next.Goals, next.Transactions)
	next.LastUpdate = s.now()
	s.snap.Store(next)

	s.log.Debug().
		Int("goals", len(next.Goals)).
		Int("transactions", len(next.Transactions)).
		Msg("Snapshot refreshed")

	s.bus.Emit(events.DataUpdated, next.Clone())

	if goalsErr != nil || txsErr != nil {
		err := &RefreshError{Goals: goalsErr, Transactions: txsErr}
		s.observe(OutcomePartial, start, next)
		s.emitError("refresh", err)
		return fmt.Errorf("RefreshData: %w", err)
	}
	s.observe(OutcomeOK, start, next)
	return nil
}

// AddGoal creates a goal and refreshes.
func (s *Store) AddGoal(ctx context.Context, in domain.GoalInput) (domain.Goal, error) {
	if s.destroyed.Load() {
		return domain.Goal{}, ErrDestroyed
	}
	goal, err := s.goals.Create(ctx, in)
	if err != nil {
		s.emitError("addGoal", err)
		return domain.Goal{}, fmt.Errorf("AddGoal: %w", err)
	}
	s.refreshAfter(ctx, "addGoal")
	s.bus.Emit(events.GoalAdded, goal)
	return goal, nil
}

// UpdateGoal applies a partial update and refreshes.
func (s *Store) UpdateGoal(ctx context.Context, id string, patch domain.GoalPatch) (domain.Goal, error) {
	if s.destroyed.Load() {
		return domain.Goal{}, ErrDestroyed
	}
	goal, err := s.goals.Update(ctx, id, patch)
	if err != nil {
		s.emitError("updateGoal", err)
		return domain.Goal{}, fmt.Errorf("UpdateGoal: %w", err)
	}
	s.refreshAfter(ctx, "updateGoal")
	s.bus.Emit(events.GoalUpdated, events.GoalUpdatedPayload{ID: id, Goal: goal})
	return goal, nil
}

// DeleteGoal removes a goal and refreshes.
func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	if s.destroyed.Load() {
		return ErrDestroyed
	}
	if err := s.goals.Delete(ctx, id); err != nil {
		s.emitError("deleteGoal", err)
		return fmt.Errorf("DeleteGoal: %w", err)
	}
	s.refreshAfter(ctx, "deleteGoal")
	s.bus.Emit(events.GoalDeleted, events.DeletedPayload{ID: id})
	return nil
}

// AddTransaction records a transaction and refreshes. Blank category and
// method are filled with their defaults first.
func (s *Store) AddTransaction(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error) {
	if s.destroyed.Load() {
		return domain.Transaction{}, ErrDestroyed
	}
	tx, err := s.txs.Create(ctx, in.Normalize())
	if err != nil {
		s.emitError("addTransaction", err)
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
	}
	s.refreshAfter(ctx, "addTransaction")
	s.bus.Emit(events.TransactionAdded, tx)
	return tx, nil
}

// UpdateTransaction replaces a transaction and refreshes.
func (s *Store) UpdateTransaction(ctx context.Context, id string, in domain.TransactionInput) (domain.Transaction, error) {
	if s.destroyed.Load() {
		return domain.Transaction{}, ErrDestroyed
	}
	tx, err := s.txs.Update(ctx, id, in.Normalize())
	if err != nil {
		s.emitError("updateTransaction", err)
		return domain.Transaction{}, fmt.Errorf("UpdateTransaction: %w", err)
	}
	s.refreshAfter(ctx, "updateTransaction")
	s.bus.Emit(events.TransactionUpdated, tx)
	return tx, nil
}

// DeleteTransaction removes a transaction and refreshes.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	if s.destroyed.Load() {
		return ErrDestroyed
	}
	if err := s.txs.Delete(ctx, id); err != nil {
		s.emitError("deleteTransaction", err)
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	s.refreshAfter(ctx, "deleteTransaction")
	s.bus.Emit(events.TransactionDeleted, events.DeletedPayload{ID: id})
	return nil
}

// refreshAfter refreshes following a successful mutation. The mutation has
// already happened, so a failed refresh is only logged; RefreshData has
// published the error event.
func (s *Store) refreshAfter(ctx context.Context, op string) {
	if err := s.RefreshData(ctx); err != nil {
		s.log.Warn().Err(err).Str("op", op).Msg("Refresh after mutation failed")
	}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() domain.Snapshot {
	return s.snap.Load().Clone()
}

// InsightsData is the snapshot handed to insight views.
func (s *Store) InsightsData() domain.Snapshot {
	return s.Snapshot()
}

// Goals returns a copy of the cached goals in server order.
func (s *Store) Goals() []domain.Goal {
	return domain.CloneGoals(s.snap.Load().Goals)
}

// Transactions returns a copy of the cached transactions in server order.
func (s *Store) Transactions() []domain.Transaction {
	return domain.CloneTransactions(s.snap.Load().Transactions)
}

// Metrics returns the metrics of the current snapshot.
func (s *Store) Metrics() domain.Metrics {
	return s.snap.Load().Metrics
}

// LastUpdate is the time of the last successful refresh; zero before the first.
func (s *Store) LastUpdate() time.Time {
	return s.snap.Load().LastUpdate
}

// Loading reports whether Initialize is in progress.
func (s *Store) Loading() bool {
	return s.loading.Load()
}

// Subscribe registers h for one event type.
func (s *Store) Subscribe(t events.Type, h events.Handler) func() {
	return s.bus.Subscribe(t, h)
}

// SubscribeAll registers h for every event.
func (s *Store) SubscribeAll(h events.Handler) func() {
	return s.bus.SubscribeAll(h)
}

// Destroy stops the periodic refresh, cancels any refresh in flight and
// drops all subscriptions. A tick already queued when Destroy runs does
// nothing. Destroy is idempotent.
func (s *Store) Destroy() {
	if !s.destroyed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	s.scheduler.Stop()
	s.bus.Close()
	s.log.Info().Msg("Shared data store destroyed")
}

func (s *Store) setLoading(v bool) {
	s.loading.Store(v)
	s.bus.Emit(events.Loading, events.LoadingPayload{Loading: v})
}

func (s *Store) emitError(op string, err error) {
	s.log.Error().Err(err).Str("op", op).Msg("Store operation failed")
	s.bus.Emit(events.Error, events.ErrorPayload{Op: op, Message: err.Error(), Err: err})
}

func (s *Store) observe(outcome string, start time.Time, snap *domain.Snapshot) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveRefresh(outcome, time.Since(start), len(snap.Goals), len(snap.Transactions))
}
