package breaker

import (
	"sync"
	"time"
)

// State represents the circuit breaker state
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config holds circuit breaker thresholds
type Config struct {
	// FailureThreshold is the number of consecutive failures in CLOSED
	// that opens the circuit
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes in HALF_OPEN
	// that closes the circuit
	SuccessThreshold int

	// Timeout is the cooldown before an open circuit admits a probe call
	Timeout time.Duration
}

// DefaultConfig returns the thresholds used when none are configured
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
	}
}

// Snapshot is a point-in-time view of breaker state for observability
type Snapshot struct {
	State            State     `json:"state"`
	FailureCount     int       `json:"failure_count"`
	SuccessCount     int       `json:"success_count"`
	FailureThreshold int       `json:"failure_threshold"`
	SuccessThreshold int       `json:"success_threshold"`
	OpenedAt         time.Time `json:"opened_at,omitempty"`
}

// CircuitBreaker is a per-provider admission gate.
//
// Transitions are pull-based: an open circuit moves to HALF_OPEN on the first
// Allow() call after the cooldown, not via a background timer. Safe for
// concurrent use.
type CircuitBreaker struct {
	mu sync.Mutex

	config    Config
	state     State
	failures  int
	successes int
	openedAt  time.Time

	now func() time.Time
}

// New creates a circuit breaker in the CLOSED state
func New(config Config) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = DefaultConfig().SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Allow reports whether a call may be attempted. When the circuit is open and
// the cooldown has elapsed, the breaker transitions to HALF_OPEN and admits
// the call as a probe.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.config.Timeout {
			b.state = StateHalfOpen
			b.successes = 0
			return true
		}
		return false
	}
	return false
}

// RecordSuccess records a successful call outcome
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	}
}

// RecordFailure records a failed call outcome
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	case StateHalfOpen:
		// A single failure during probing reopens the circuit
		b.state = StateOpen
		b.successes = 0
		b.openedAt = b.now()
	}
}

// Status returns a snapshot of the breaker state
func (b *CircuitBreaker) Status() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		State:            b.state,
		FailureCount:     b.failures,
		SuccessCount:     b.successes,
		FailureThreshold: b.config.FailureThreshold,
		SuccessThreshold: b.config.SuccessThreshold,
		OpenedAt:         b.openedAt,
	}
}

// Reset forces the breaker back to CLOSED with all counters zeroed.
// Administrative use only.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.openedAt = time.Time{}
}

// SetClock overrides the time source. Test use only.
func (b *CircuitBreaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}
