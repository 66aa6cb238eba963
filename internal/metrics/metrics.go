// Package metrics exposes Prometheus counters for the sync layer.
//
// Metrics are registered on an explicit registerer passed to New; there is
// no package-level registry. A nil *Metrics is valid and records nothing, so
// components can take metrics as an optional dependency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "qwsync"

// Result labels.
const (
	ResultOK       = "ok"
	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultError    = "error"
	ResultNotFound = "not_found"
	ResultSkipped  = "skipped"
	ResultFallback = "fallback"
)

// Metrics holds the sync layer counters.
type Metrics struct {
	cacheReads   *prometheus.CounterVec
	cacheWrites  *prometheus.CounterVec
	remoteReads  *prometheus.CounterVec
	remoteWrites *prometheus.CounterVec
	migrations   *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cacheReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_reads_total",
			Help:      "Cache reads by result (hit, miss, error).",
		}, []string{"result"}),
		cacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Cache writes by result (ok, error).",
		}, []string{"result"}),
		remoteReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_reads_total",
			Help:      "Remote document reads by result (ok, not_found, error).",
		}, []string{"result"}),
		remoteWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_writes_total",
			Help:      "Remote merge-writes by result (ok, skipped, fallback, error).",
		}, []string{"result"}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Anonymous cache migrations per path by outcome.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Document server requests by method and status code.",
		}, []string{"method", "code"}),
	}

	for _, c := range []prometheus.Collector{
		m.cacheReads, m.cacheWrites, m.remoteReads, m.remoteWrites, m.migrations, m.httpRequests,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CacheRead counts a cache read.
func (m *Metrics) CacheRead(result string) {
	if m == nil {
		return
	}
	m.cacheReads.WithLabelValues(result).Inc()
}

// CacheWrite counts a cache write.
func (m *Metrics) CacheWrite(result string) {
	if m == nil {
		return
	}
	m.cacheWrites.WithLabelValues(result).Inc()
}

// RemoteRead counts a remote Get.
func (m *Metrics) RemoteRead(result string) {
	if m == nil {
		return
	}
	m.remoteReads.WithLabelValues(result).Inc()
}

// RemoteWrite counts a remote merge-write attempt.
func (m *Metrics) RemoteWrite(result string) {
	if m == nil {
		return
	}
	m.remoteWrites.WithLabelValues(result).Inc()
}

// Migration counts one path processed by a migration.
func (m *Metrics) Migration(result string) {
	if m == nil {
		return
	}
	m.migrations.WithLabelValues(result).Inc()
}

// HTTPRequest counts a served request.
func (m *Metrics) HTTPRequest(method, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, code).Inc()
}
