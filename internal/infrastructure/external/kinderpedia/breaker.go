package kinderpedia

import (
	"errors"
	"sync"
	"time"
)

// circuitState represents the state of the circuit breaker.
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case circuitClosed:
		return "closed"
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit is open and requests fail fast.
var ErrCircuitOpen = errors.New("kinderpedia: circuit breaker is open")

// CircuitBreakerConfig contains configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	FailureThreshold int

	// SuccessThreshold is the number of successes in half-open needed to
	// close the circuit again.
	SuccessThreshold int

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
	}
}

// circuitBreaker protects the Kinderpedia API from request storms while
// it is failing. A tripped breaker surfaces as a transient error, so walk
// and poll loops simply try again next cycle.
type circuitBreaker struct {
	mu sync.Mutex

	config CircuitBreakerConfig

	state           circuitState
	failures        int
	successes       int
	lastStateChange time.Time
}

func newCircuitBreaker(config CircuitBreakerConfig) *circuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &circuitBreaker{
		config:          config,
		state:           circuitClosed,
		lastStateChange: time.Now(),
	}
}

// allow reports whether a request may proceed.
func (cb *circuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitOpen:
		if time.Since(cb.lastStateChange) > cb.config.Timeout {
			cb.transition(circuitHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

// recordSuccess records a successful request.
func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transition(circuitClosed)
		}
	case circuitClosed:
		cb.failures = 0
	}
}

// recordFailure records a failed request.
func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch cb.state {
	case circuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transition(circuitOpen)
		}
	case circuitHalfOpen:
		cb.transition(circuitOpen)
	}
}

// transition must be called with the lock held.
func (cb *circuitBreaker) transition(state circuitState) {
	cb.state = state
	cb.failures = 0
	cb.successes = 0
	cb.lastStateChange = time.Now()
}
