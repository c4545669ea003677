package retry

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Breakers is a keyed registry of circuit breakers, one per generation
// backend, so a backend stuck in PERMANENT failure trips independently
// of any other backend. This supplements the Python original (which had
// no circuit breaker of its own) with a pattern grounded on
// kubernaut's sony/gobreaker dependency, since M2 adapters each call out
// to an independent remote service.
type Breakers struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewBreakers() *Breakers {
	return &Breakers{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (b *Breakers) For(key string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[key]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	b.breakers[key] = cb
	return cb
}

// Execute runs fn through the named breaker, short-circuiting without
// calling fn at all when the breaker is open.
func (b *Breakers) Execute(key string, fn func() (interface{}, error)) (interface{}, error) {
	return b.For(key).Execute(fn)
}
