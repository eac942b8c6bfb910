// Package resilience guards calls to upstream model providers.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned instead of calling the provider while its
// breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// Breaker cuts a provider off after consecutive failures. While open, calls
// fail fast with ErrCircuitOpen so one dead backend cannot tie recognition
// requests up in connection timeouts. After the cooldown a trial call is let
// through: success closes the circuit, failure reopens it.
type Breaker struct {
	mu       sync.Mutex
	state    circuitState
	failures int
	openedAt time.Time

	maxFailures int
	cooldown    time.Duration

	now func() time.Time // for testing
}

// NewBreaker creates a breaker that opens after maxFailures consecutive
// failures and admits a trial call once cooldown has elapsed.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Execute runs call and feeds the outcome back into the circuit. The
// provider's own error passes through unchanged; ErrCircuitOpen means call
// was never invoked.
func (b *Breaker) Execute(call func() error) error {
	if !b.admit() {
		return ErrCircuitOpen
	}

	err := call()
	b.record(err)
	return err
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == circuitOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = circuitHalfOpen
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.state = circuitClosed
		return
	}

	b.failures++
	if b.state == circuitHalfOpen || b.failures >= b.maxFailures {
		b.state = circuitOpen
		b.openedAt = b.now()
	}
}
