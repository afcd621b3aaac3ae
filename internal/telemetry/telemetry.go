// Package telemetry exposes prometheus metrics for request traffic, cache
// effectiveness and security rejections.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the registered collectors. Register once per process.
type Metrics struct {
	Requests      *prometheus.CounterVec
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	BlockedQuery  prometheus.Counter
	RateLimited   prometheus.Counter
	QueryDuration prometheus.Histogram

	mu       sync.Mutex
	requests map[string]uint64
}

// New creates and registers the metric set on reg. Pass
// prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialecho_requests_total",
			Help: "HTTP requests by endpoint and status.",
		}, []string{"endpoint", "status"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialecho_cache_hits_total",
			Help: "Query cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialecho_cache_misses_total",
			Help: "Query cache misses.",
		}),
		BlockedQuery: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialecho_blocked_queries_total",
			Help: "Queries rejected by validation.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialecho_rate_limited_total",
			Help: "Requests rejected by rate limiting.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "socialecho_query_duration_seconds",
			Help:    "End-to-end query processing time.",
			Buckets: prometheus.DefBuckets,
		}),
		requests: make(map[string]uint64),
	}
	reg.MustRegister(m.Requests, m.CacheHits, m.CacheMisses, m.BlockedQuery, m.RateLimited, m.QueryDuration)
	return m
}

// CountRequest records one request for both prometheus and the local
// snapshot used by the info endpoint.
func (m *Metrics) CountRequest(endpoint, status string) {
	m.Requests.WithLabelValues(endpoint, status).Inc()
	m.mu.Lock()
	m.requests[endpoint+":"+status]++
	m.mu.Unlock()
}

// RequestSnapshot returns a copy of the per-endpoint request counts.
func (m *Metrics) RequestSnapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.requests))
	for k, v := range m.requests {
		out[k] = v
	}
	return out
}
