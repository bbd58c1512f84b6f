// Package history keeps a time series of dashboard metrics. A Recorder listens
// for snapshot refreshes and writes at most one entry per interval to a Sink.
package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/dvloznov/finance-dashboard/internal/insights"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultMinInterval limits how often refreshes are persisted.
const DefaultMinInterval = 15 * time.Minute

// Entry is one persisted metrics sample.
type Entry struct {
	ID               string         `json:"id"`
	RecordedAt       time.Time      `json:"recordedAt"`
	SnapshotAt       time.Time      `json:"snapshotAt"`
	Metrics          domain.Metrics `json:"metrics"`
	Goals            int            `json:"goals"`
	Transactions     int            `json:"transactions"`
	CurrentSavings   float64        `json:"currentMonthSavings"`
	LastMonthSavings float64        `json:"lastMonthSavings"`
	Trend            insights.Trend `json:"trend"`
}

// NewEntry summarizes a snapshot as of now.
func NewEntry(snap domain.Snapshot, now time.Time) Entry {
	trend := insights.MonthlySavingsTrend(snap.Transactions, now)
	return Entry{
		ID:               uuid.NewString(),
		RecordedAt:       now,
		SnapshotAt:       snap.LastUpdate,
		Metrics:          snap.Metrics,
		Goals:            len(snap.Goals),
		Transactions:     len(snap.Transactions),
		CurrentSavings:   trend.CurrentMonth,
		LastMonthSavings: trend.LastMonth,
		Trend:            trend.Trend,
	}
}

// Sink persists entries.
type Sink interface {
	InsertSnapshot(ctx context.Context, e Entry) error
}

// Reader lists persisted entries, newest first.
type Reader interface {
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

// Config tunes a Recorder.
type Config struct {
	MinInterval time.Duration
	BufferSize  int
}

// Recorder turns dataUpdated events into sink writes. Writes happen on the
// goroutine running Run, never on the publisher's.
type Recorder struct {
	sink     Sink
	log      zerolog.Logger
	now      func() time.Time
	throttle *rate.Sometimes
	entries  chan Entry
	mu       sync.Mutex
	written  int
	dropped  int
}

// NewRecorder creates a recorder. A zero MinInterval records every refresh.
func NewRecorder(sink Sink, cfg Config, log zerolog.Logger) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	throttle := &rate.Sometimes{Interval: cfg.MinInterval}
	if cfg.MinInterval <= 0 {
		throttle = &rate.Sometimes{Every: 1}
	}
	return &Recorder{
		sink:     sink,
		log:      log,
		now:      time.Now,
		throttle: throttle,
		entries:  make(chan Entry, cfg.BufferSize),
	}
}

// Attach subscribes the recorder to bus and returns the unsubscribe func.
func (r *Recorder) Attach(bus *events.Bus) func() {
	return bus.Subscribe(events.DataUpdated, r.handle)
}

func (r *Recorder) handle(e events.Event) {
	snap, ok := e.Payload.(domain.Snapshot)
	if !ok {
		return
	}
	r.throttle.Do(func() {
		entry := NewEntry(snap, r.now())
		select {
		case r.entries <- entry:
		default:
			r.mu.Lock()
			r.dropped++
			r.mu.Unlock()
			r.log.Warn().Str("entry_id", entry.ID).Msg("History buffer full, dropping entry")
		}
	})
}

// Run writes queued entries until ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry := <-r.entries:
			if err := r.sink.InsertSnapshot(ctx, entry); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				r.log.Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to write metrics history")
				continue
			}
			r.mu.Lock()
			r.written++
			r.mu.Unlock()
			r.log.Debug().Str("entry_id", entry.ID).Msg("Metrics history written")
		}
	}
}

// Stats returns how many entries were written and dropped.
func (r *Recorder) Stats() (written, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written, r.dropped
}

// MemorySink keeps entries in memory. It is used when no warehouse is configured.
type MemorySink struct {
	mu      sync.RWMutex
	entries []Entry
	limit   int
}

// NewMemorySink keeps at most limit entries (0 means unbounded).
func NewMemorySink(limit int) *MemorySink {
	return &MemorySink{limit: limit}
}

// InsertSnapshot implements Sink.
func (m *MemorySink) InsertSnapshot(_ context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("InsertSnapshot: entry id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if m.limit > 0 && len(m.entries) > m.limit {
		m.entries = append([]Entry(nil), m.entries[len(m.entries)-m.limit:]...)
	}
	return nil
}

// ListRecent implements Reader.
func (m *MemorySink) ListRecent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
