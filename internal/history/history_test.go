package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/dvloznov/finance-dashboard/internal/insights"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC)

func snapshot() domain.Snapshot {
	txs := []domain.Transaction{
		{ID: "1", Type: domain.TransactionIncome, Amount: domain.MoneyFromFloat(5000), Date: "2026-10-02"},
		{ID: "2", Type: domain.TransactionExpense, Amount: domain.MoneyFromFloat(1000), Date: "2026-10-03"},
		{ID: "3", Type: domain.TransactionIncome, Amount: domain.MoneyFromFloat(2000), Date: "2026-09-10"},
	}
	return domain.Snapshot{
		Goals:        []domain.Goal{{ID: "g"}},
		Transactions: txs,
		Metrics:      insights.ComputeMetrics(nil, txs),
		LastUpdate:   now.Add(-time.Second),
	}
}

func TestNewEntry(t *testing.T) {
	e := NewEntry(snapshot(), now)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, now, e.RecordedAt)
	assert.Equal(t, now.Add(-time.Second), e.SnapshotAt)
	assert.Equal(t, 1, e.Goals)
	assert.Equal(t, 3, e.Transactions)
	assert.Equal(t, 4000.0, e.CurrentSavings)
	assert.Equal(t, 2000.0, e.LastMonthSavings)
	assert.Equal(t, insights.TrendUp, e.Trend)
	assert.Equal(t, 1000.0, e.Metrics.TotalSpending)
}

type chanSink struct {
	mu   sync.Mutex
	got  []Entry
	err  error
	seen chan struct{}
}

func newChanSink() *chanSink {
	return &chanSink{seen: make(chan struct{}, 16)}
}

func (s *chanSink) InsertSnapshot(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		s.seen <- struct{}{}
	}()
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, e)
	return nil
}

func (s *chanSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func runRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestRecorder_WritesOnDataUpdated(t *testing.T) {
	sink := newChanSink()
	r := NewRecorder(sink, Config{}, zerolog.Nop())
	r.now = func() time.Time { return now }
	bus := events.NewBus(zerolog.Nop())
	unsubscribe := r.Attach(bus)
	runRecorder(t, r)

	bus.Emit(events.DataUpdated, snapshot())
	bus.Emit(events.Error, events.ErrorPayload{Message: "ignored"})
	bus.Emit(events.DataUpdated, snapshot())

	<-sink.seen
	<-sink.seen
	assert.Equal(t, 2, sink.count())

	unsubscribe()
	bus.Emit(events.DataUpdated, snapshot())
	assert.Equal(t, 2, sink.count())
}

func TestRecorder_Throttles(t *testing.T) {
	sink := newChanSink()
	r := NewRecorder(sink, Config{MinInterval: time.Hour}, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	r.Attach(bus)
	runRecorder(t, r)

	for i := 0; i < 5; i++ {
		bus.Emit(events.DataUpdated, snapshot())
	}
	<-sink.seen

	require.Eventually(t, func() bool {
		written, _ := r.Stats()
		return written == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, sink.count())
}

func TestRecorder_DropsWhenBufferFull(t *testing.T) {
	r := NewRecorder(newChanSink(), Config{BufferSize: 1}, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	r.Attach(bus)

	bus.Emit(events.DataUpdated, snapshot())
	bus.Emit(events.DataUpdated, snapshot())
	bus.Emit(events.DataUpdated, snapshot())

	written, dropped := r.Stats()
	assert.Zero(t, written)
	assert.Equal(t, 2, dropped)
}

func TestRecorder_SinkErrorIsLogged(t *testing.T) {
	sink := newChanSink()
	sink.err = errors.New("quota exceeded")
	r := NewRecorder(sink, Config{}, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	r.Attach(bus)
	runRecorder(t, r)

	bus.Emit(events.DataUpdated, snapshot())
	<-sink.seen

	written, _ := r.Stats()
	assert.Zero(t, written)
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink(2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := NewEntry(snapshot(), now.Add(time.Duration(i)*time.Hour))
		require.NoError(t, sink.InsertSnapshot(ctx, e))
	}
	assert.Error(t, sink.InsertSnapshot(ctx, Entry{}))

	got, err := sink.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, now.Add(2*time.Hour), got[0].RecordedAt)
	assert.Equal(t, now.Add(time.Hour), got[1].RecordedAt)

	got, err = sink.ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
