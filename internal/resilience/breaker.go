// Package resilience guards outbound calls to the model proxy and the
// vector index with a circuit breaker.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned instead of running the call while the
// breaker is rejecting traffic. Callers match it with errors.Is.
var ErrCircuitOpen = errors.New("circuit breaker is open")

const (
	circuitClosed uint8 = iota
	circuitOpen
	circuitHalfOpen
)

// Breaker trips after a run of consecutive failures and rejects calls
// until the cooldown elapses. The first call after the cooldown runs as
// a probe: if it succeeds the circuit closes, if it fails the cooldown
// restarts. While a probe is in flight other calls are still rejected.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	clock     func() time.Time

	mu       sync.Mutex
	circuit  uint8
	streak   int
	probing  bool
	openedAt time.Time
}

// NewBreaker returns a closed breaker that opens after threshold
// consecutive failures and cools down for the given duration.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Execute runs fn unless the circuit is open, and feeds the outcome
// back into the breaker.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.circuit {
	case circuitClosed:
		return nil
	case circuitOpen:
		if b.clock().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.circuit = circuitHalfOpen
		b.probing = true
		return nil
	default: // half-open
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err == nil {
		b.circuit = circuitClosed
		b.streak = 0
		return
	}

	b.streak++
	if b.circuit == circuitHalfOpen || b.streak >= b.threshold {
		b.circuit = circuitOpen
		b.openedAt = b.clock()
	}
}
