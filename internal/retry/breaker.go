package retry

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned by Breaker.Execute while the breaker is open.
var ErrOpen = errors.New("breaker open")

// ── Breaker state ────────────────────────────────────────────────────

// State is the operational state of a Breaker.
type State int

const (
	// StateClosed passes every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets probe calls through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.  Zero fields take defaults.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the
	// breaker (default 3).
	Threshold int
	// Cooldown is how long the breaker stays open (default 30s).
	Cooldown time.Duration
	// Probes is the number of consecutive half-open successes that
	// close it again (default 1).
	Probes int
	// OnStateChange runs under the breaker lock on every transition.
	OnStateChange func(from, to State)
}

// ── Breaker ──────────────────────────────────────────────────────────

// Breaker stops calling a failing dependency after Threshold
// consecutive failures and lets a probe through once Cooldown passes.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	probes    int
	onChange  func(from, to State)
	now       func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// NewBreaker returns a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	b := &Breaker{
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		probes:    cfg.Probes,
		onChange:  cfg.OnStateChange,
		now:       time.Now,
	}
	if b.threshold <= 0 {
		b.threshold = 3
	}
	if b.cooldown <= 0 {
		b.cooldown = 30 * time.Second
	}
	if b.probes <= 0 {
		b.probes = 1
	}
	return b
}

// Execute runs fn unless the breaker is open, in which case it returns
// an error wrapping ErrOpen without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.successes = 0
	b.transition(StateClosed)
}

// ── internal ─────────────────────────────────────────────────────────

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	elapsed := b.now().Sub(b.openedAt)
	if elapsed >= b.cooldown {
		b.transition(StateHalfOpen)
		return nil
	}
	return fmt.Errorf("%w after %d failures, next probe in %v",
		ErrOpen, b.failures, (b.cooldown - elapsed).Truncate(time.Millisecond))
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.successes = 0
		if b.state == StateHalfOpen || b.failures >= b.threshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
		return
	}

	b.successes++
	switch b.state {
	case StateHalfOpen:
		if b.successes >= b.probes {
			b.failures = 0
			b.transition(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onChange != nil {
		b.onChange(from, to)
	}
}
