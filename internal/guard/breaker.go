package guard

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned for calls rejected while the breaker is open.
var ErrOpen = gobreaker.ErrOpenState

// Breaker guards one class of external dependency. After the configured
// number of consecutive failures it opens and rejects calls immediately;
// after the recovery timeout one probe call is let through.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker named after its dependency class.
func NewBreaker(name string, failureThreshold uint32, recoveryTimeout time.Duration) *Breaker {
	return &Breaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: recoveryTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failureThreshold
			},
		}),
	}
}

// Do runs fn under breaker protection. Context cancellation counts as a
// failure like any other error.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// Name returns the dependency class this breaker guards.
func (b *Breaker) Name() string { return b.cb.Name() }

// State reports "closed", "half-open" or "open".
func (b *Breaker) State() string { return b.cb.State().String() }

// BreakerGroup holds the per-dependency-class breakers so the server can
// report their states.
type BreakerGroup struct {
	breakers []*Breaker
}

// NewBreakerGroup builds one breaker per name with shared thresholds.
func NewBreakerGroup(failureThreshold uint32, recoveryTimeout time.Duration, names ...string) *BreakerGroup {
	g := &BreakerGroup{}
	for _, name := range names {
		g.breakers = append(g.breakers, NewBreaker(name, failureThreshold, recoveryTimeout))
	}
	return g
}

// Get returns the breaker with the given name, or nil.
func (g *BreakerGroup) Get(name string) *Breaker {
	for _, b := range g.breakers {
		if b.Name() == name {
			return b
		}
	}
	return nil
}

// States returns a name -> state snapshot.
func (g *BreakerGroup) States() map[string]string {
	out := make(map[string]string, len(g.breakers))
	for _, b := range g.breakers {
		out[b.Name()] = b.State()
	}
	return out
}
