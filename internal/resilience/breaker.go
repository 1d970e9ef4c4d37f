// Package resilience guards optional side paths, such as the relay journal,
// so a failing dependency degrades to a no-op instead of slowing fan-out.
package resilience

import (
	"context"
	"sync"
	"time"

	"advisory-canvas/internal/errors"
)

// State represents the state of a circuit breaker.
type State string

const (
	StateClosed   State = "closed"    // calls pass through
	StateOpen     State = "open"      // calls are rejected
	StateHalfOpen State = "half_open" // probing whether the dependency recovered
)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that close it again.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the default configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern. Calls run on the caller's
// goroutine.
type Breaker struct {
	name   string
	config BreakerConfig
	now    func() time.Time

	mu         sync.Mutex
	state      State
	failures   int
	successes  int
	openedAt   time.Time
	lastChange time.Time
	calls      int64
	failed     int64
	rejected   int64
}

// NewBreaker creates a closed circuit breaker.
func NewBreaker(name string, config BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	return &Breaker{
		name:       name,
		config:     config,
		now:        time.Now,
		state:      StateClosed,
		lastChange: time.Now(),
	}
}

// Do runs fn unless the circuit is open, in which case it returns
// errors.ErrCircuitOpen without calling fn.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		b.record(false)
		return err
	}
	b.record(true)
	return nil
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			b.rejected++
			return errors.Wrapf(errors.ErrCircuitOpen, "%s", b.name)
		}
		b.transition(StateHalfOpen)
	}
	b.calls++
	return nil
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		switch b.state {
		case StateHalfOpen:
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.transition(StateClosed)
			}
		case StateClosed:
			b.failures = 0
		}
		return
	}

	b.failed++
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(state State) {
	b.state = state
	b.lastChange = b.now()
	b.failures = 0
	b.successes = 0
	if state == StateOpen {
		b.openedAt = b.lastChange
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// BreakerStats holds circuit breaker statistics.
type BreakerStats struct {
	Name       string    `json:"name"`
	State      State     `json:"state"`
	Calls      int64     `json:"calls"`
	Failed     int64     `json:"failed"`
	Rejected   int64     `json:"rejected"`
	LastChange time.Time `json:"last_change"`
}

// Stats returns circuit breaker statistics.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		Name:       b.name,
		State:      b.state,
		Calls:      b.calls,
		Failed:     b.failed,
		Rejected:   b.rejected,
		LastChange: b.lastChange,
	}
}

// Reset closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
}
