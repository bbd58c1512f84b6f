// Package telemetry exposes prometheus metrics for backend calls, snapshot
// refreshes and published events.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/apiclient"
	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/dvloznov/finance-dashboard/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "findash"

var (
	_ apiclient.Observer    = (*Collector)(nil)
	_ events.Observer       = (*Collector)(nil)
	_ store.RefreshObserver = (*Collector)(nil)
)

// Collector owns a private registry so tests and multiple instances never
// collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	apiRequests     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	snapshotGoals   prometheus.Gauge
	snapshotTxs     prometheus.Gauge
	eventsPublished *prometheus.CounterVec
	eventListeners  *prometheus.GaugeVec
}

// NewCollector creates and registers all metrics. withRuntime adds the Go
// runtime and process collectors.
func NewCollector(withRuntime bool) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Backend API calls by operation and HTTP status (0 when no response arrived).",
		},
		[]string{"operation", "method", "status"},
	)
	c.apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Backend API call latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	c.refreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "refreshes_total",
			Help:      "Snapshot refreshes by outcome (ok, partial, failed).",
		},
		[]string{"outcome"},
	)
	c.refreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "refresh_duration_seconds",
			Help:      "Time spent fetching and rebuilding the snapshot.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	c.snapshotGoals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "snapshot_goals",
			Help:      "Goals in the current snapshot.",
		},
	)
	c.snapshotTxs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "snapshot_transactions",
			Help:      "Transactions in the current snapshot.",
		},
	)
	c.eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events published on the store bus by type.",
		},
		[]string{"type"},
	)
	c.eventListeners = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "events",
			Name:      "last_subscribers",
			Help:      "Handlers that received the most recent event of each type.",
		},
		[]string{"type"},
	)

	c.registry.MustRegister(
		c.apiRequests,
		c.apiDuration,
		c.refreshes,
		c.refreshDuration,
		c.snapshotGoals,
		c.snapshotTxs,
		c.eventsPublished,
		c.eventListeners,
	)
	if withRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// ObserveRequest implements apiclient.Observer.
func (c *Collector) ObserveRequest(name, method string, status int, d time.Duration) {
	c.apiRequests.WithLabelValues(name, method, strconv.Itoa(status)).Inc()
	c.apiDuration.WithLabelValues(name).Observe(d.Seconds())
}

// ObserveEvent implements events.Observer.
func (c *Collector) ObserveEvent(t events.Type, subscribers int) {
	c.eventsPublished.WithLabelValues(string(t)).Inc()
	c.eventListeners.WithLabelValues(string(t)).Set(float64(subscribers))
}

// ObserveRefresh implements store.RefreshObserver. Snapshot sizes are only
// updated when the snapshot actually changed.
func (c *Collector) ObserveRefresh(outcome string, d time.Duration, goals, transactions int) {
	c.refreshes.WithLabelValues(outcome).Inc()
	c.refreshDuration.Observe(d.Seconds())
	if outcome != store.OutcomeFailed {
		c.snapshotGoals.Set(float64(goals))
		c.snapshotTxs.Set(float64(transactions))
	}
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
