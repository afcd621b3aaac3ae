package guard

import (
	"sync"
	"time"

	"github.com/mohammad-safakhou/socialecho/config"
)

// RateLimiter enforces per-(client, endpoint) sliding-window limits. Each key
// keeps a log of request timestamps pruned to the trailing window; a request
// is allowed iff fewer than the endpoint's max remain after pruning.
type RateLimiter struct {
	defaultLimit   config.EndpointLimit
	endpointLimits map[string]config.EndpointLimit

	mu       sync.Mutex
	requests map[string][]time.Time
	now      func() time.Time
}

// NewRateLimiter builds a limiter from per-endpoint configs.
func NewRateLimiter(defaultLimit config.EndpointLimit, endpointLimits map[string]config.EndpointLimit) *RateLimiter {
	return &RateLimiter{
		defaultLimit:   defaultLimit,
		endpointLimits: endpointLimits,
		requests:       make(map[string][]time.Time),
		now:            time.Now,
	}
}

func (r *RateLimiter) limitFor(endpoint string) config.EndpointLimit {
	if l, ok := r.endpointLimits[endpoint]; ok {
		return l
	}
	return r.defaultLimit
}

// Allow records and admits the request when the client is under the
// endpoint's limit.
func (r *RateLimiter) Allow(clientID, endpoint string) bool {
	limit := r.limitFor(endpoint)
	key := clientID + ":" + endpoint
	now := r.now()
	cutoff := now.Add(-limit.Window)

	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.requests[key]
	for len(log) > 0 && log[0].Before(cutoff) {
		log = log[1:]
	}
	if len(log) >= limit.MaxRequests {
		r.requests[key] = log
		return false
	}
	r.requests[key] = append(log, now)
	return true
}

// RetryAfter reports how long until the oldest recorded request leaves the
// window, as a hint for rejected clients.
func (r *RateLimiter) RetryAfter(clientID, endpoint string) time.Duration {
	limit := r.limitFor(endpoint)
	key := clientID + ":" + endpoint

	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.requests[key]
	if len(log) == 0 {
		return 0
	}
	reset := log[0].Add(limit.Window).Sub(r.now())
	if reset < 0 {
		return 0
	}
	return reset
}
