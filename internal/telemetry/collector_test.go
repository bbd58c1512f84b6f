package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/dvloznov/finance-dashboard/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	c := NewCollector(false)

	c.ObserveRequest("goals.list", http.MethodGet, 200, 120*time.Millisecond)
	c.ObserveRequest("goals.list", http.MethodGet, 200, 80*time.Millisecond)
	c.ObserveRequest("goals.create", http.MethodPost, 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.apiRequests.WithLabelValues("goals.list", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.apiRequests.WithLabelValues("goals.create", "POST", "0")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.apiDuration))
}

func TestObserveRefresh(t *testing.T) {
	c := NewCollector(false)

	c.ObserveRefresh(store.OutcomeOK, 10*time.Millisecond, 3, 12)
	c.ObserveRefresh(store.OutcomeFailed, 10*time.Millisecond, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.refreshes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.refreshes.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.snapshotGoals), "failed refresh keeps the previous size")
	assert.Equal(t, 12.0, testutil.ToFloat64(c.snapshotTxs))
}

func TestObserveEvent_ThroughBus(t *testing.T) {
	c := NewCollector(false)
	bus := events.NewBus(zerolog.Nop())
	bus.SetObserver(c)
	bus.Subscribe(events.DataUpdated, func(events.Event) {})
	bus.SubscribeAll(func(events.Event) {})

	bus.Emit(events.DataUpdated, nil)
	bus.Emit(events.Error, nil)
	bus.Emit(events.DataUpdated, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.eventsPublished.WithLabelValues("dataUpdated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.eventListeners.WithLabelValues("dataUpdated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventListeners.WithLabelValues("error")))
}

func TestHandler(t *testing.T) {
	c := NewCollector(true)
	c.ObserveRefresh(store.OutcomePartial, time.Millisecond, 1, 1)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `findash_store_refreshes_total{outcome="partial"} 1`))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
