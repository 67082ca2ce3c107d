// Package metrics exposes prometheus collectors for the dual-storage
// write path and the repository cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors so they can be injected rather than
// registered through package globals.
type Metrics struct {
	DualWriteLatency *prometheus.HistogramVec
	DualWriteTotal   *prometheus.CounterVec
	RollbackTotal    prometheus.Counter
	RollbackFailed   prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheEvictions   prometheus.Counter
}

// New creates and registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DualWriteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyreel_dual_write_latency_seconds",
			Help:    "Latency of one logical dual-storage write.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "strategy"}),
		DualWriteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyreel_dual_write_total",
			Help: "Dual-storage writes by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RollbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_rollback_total",
			Help: "Compensating rollbacks executed after secondary write failures.",
		}),
		RollbackFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_rollback_failed_total",
			Help: "Rollbacks that themselves failed, leaving stores inconsistent.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_repository_cache_hits_total",
			Help: "Repository cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_repository_cache_misses_total",
			Help: "Repository cache misses, including expiries.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_repository_cache_evictions_total",
			Help: "Entries evicted because the cache was at capacity.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.DualWriteLatency,
			m.DualWriteTotal,
			m.RollbackTotal,
			m.RollbackFailed,
			m.CacheHits,
			m.CacheMisses,
			m.CacheEvictions,
		)
	}
	return m
}

// NewNop creates unregistered collectors for tests.
func NewNop() *Metrics {
	return New(nil)
}
