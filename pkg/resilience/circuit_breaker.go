package resilience

import (
	"sync"
	"time"

	"github.com/catherinevee/prodflow/pkg/apierr"
)

// State is one of the three circuit-breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreakerConfig tunes the trip/reset thresholds.
type CircuitBreakerConfig struct {
	FailureThreshold uint32        // consecutive failures to open the circuit
	SuccessThreshold uint32        // consecutive half-open successes to close it
	OpenTimeout      time.Duration // how long the circuit stays open before probing
}

// DefaultCircuitBreakerConfig matches the teacher's internal/resilience
// defaults, tuned down for external collaborators (JIRA auth, Slack
// webhooks) that this pipeline calls far less often than a storage query.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, OpenTimeout: 30 * time.Second}
}

// CircuitBreaker guards a single external collaborator (a JIRA
// installation's auth endpoint, a Slack webhook) so a sustained outage
// fails fast instead of queuing retries behind it. Adapted from the
// teacher's internal/resilience/circuit_breaker.go, trimmed to the
// consecutive-failure/consecutive-success counters this pipeline needs.
type CircuitBreaker struct {
	name   string
	cfg    *CircuitBreakerConfig
	mu     sync.Mutex
	state  State
	fails  uint32
	oks    uint32
	openAt time.Time
}

// NewCircuitBreaker builds a closed circuit breaker named name.
func NewCircuitBreaker(name string, cfg *CircuitBreakerConfig) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{name: name, cfg: cfg, state: StateClosed}
}

// Allow reports whether a call should be attempted, transitioning
// open->half-open once cfg.OpenTimeout has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.openAt) >= cb.cfg.OpenTimeout {
			cb.state = StateHalfOpen
			cb.oks = 0
			return true
		}
		return false
	default:
		return true
	}
}

// Execute runs fn if the breaker allows it, recording the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return apierr.Upstreamf(nil, "circuit breaker %q is open", cb.name)
	}
	err := fn()
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		cb.fails = 0
		if cb.state == StateHalfOpen {
			cb.oks++
			if cb.oks >= cb.cfg.SuccessThreshold {
				cb.state = StateClosed
			}
		}
		return
	}

	cb.oks = 0
	if cb.state == StateHalfOpen {
		cb.state = StateOpen
		cb.openAt = time.Now()
		return
	}
	cb.fails++
	if cb.fails >= cb.cfg.FailureThreshold {
		cb.state = StateOpen
		cb.openAt = time.Now()
	}
}

// State reports the breaker's current state, mainly for tests/metrics.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
