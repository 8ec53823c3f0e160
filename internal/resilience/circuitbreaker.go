// Package resilience provides the rate-limiter, retry, and circuit-breaker
// decorators used to guard calls to flaky external APIs (places, embeddings).
// All types are safe for concurrent use.
package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// State is the operating mode of a CircuitBreaker.
type State int

const (
	// StateClosed is the normal operating state — all calls are forwarded.
	StateClosed State = iota

	// StateOpen rejects calls immediately until openWait elapses.
	StateOpen

	// StateHalfOpen allows a limited number of probe calls through to decide
	// whether to close or re-open.
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

// CircuitBreakerConfig tunes a CircuitBreaker. Zero-value fields fall back
// to the defaults from spec §4.5.
type CircuitBreakerConfig struct {
	// Name labels log lines for this breaker.
	Name string

	// Window is the number of most-recent calls tracked for the failure-rate
	// calculation. Default: 100.
	Window int

	// MinCalls is the minimum number of calls in the window before the
	// failure rate is evaluated at all. Default: 10.
	MinCalls int

	// FailureRate is the fraction (0..1) of failures in the window that
	// trips the breaker. Default: 0.5.
	FailureRate float64

	// OpenWait is how long the breaker stays open before probing. Default: 30s.
	OpenWait time.Duration

	// HalfOpenMax is the number of probe calls allowed in the half-open
	// state. Default: 10.
	HalfOpenMax int
}

// CircuitBreaker trips when, over a sliding window of the most recent calls,
// the failure rate reaches or exceeds a configured threshold (and the window has seen
// at least MinCalls). It differs from a classic consecutive-failure breaker
// by tolerating an intermittent failure as long as the overall rate stays
// below threshold — matching the spec's "50% failure over a sliding window
// of 100 calls (min 10)" policy.
type CircuitBreaker struct {
	name        string
	window      int
	minCalls    int
	failureRate float64
	openWait    time.Duration
	halfOpenMax int

	mu            sync.Mutex
	state         State
	results       []bool // true = success, ring buffer of the last `window` calls
	pos           int
	filled        int
	openedAt      time.Time
	halfOpenCalls int
	halfOpenFails int
}

// NewCircuitBreaker constructs a CircuitBreaker with defaults applied.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Window <= 0 {
		cfg.Window = 100
	}
	if cfg.MinCalls <= 0 {
		cfg.MinCalls = 10
	}
	if cfg.FailureRate <= 0 {
		cfg.FailureRate = 0.5
	}
	if cfg.OpenWait <= 0 {
		cfg.OpenWait = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 10
	}
	return &CircuitBreaker{
		name:        cfg.Name,
		window:      cfg.Window,
		minCalls:    cfg.MinCalls,
		failureRate: cfg.FailureRate,
		openWait:    cfg.OpenWait,
		halfOpenMax: cfg.HalfOpenMax,
		results:     make([]bool, cfg.Window),
		state:       StateClosed,
	}
}

// Allow reports whether a call may proceed. Callers that are allowed through
// must report the outcome via Report. Use Execute for the common case of
// wrapping a single function call.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.openWait {
			cb.state = StateHalfOpen
			cb.halfOpenCalls = 1 // this call is the first probe
			cb.halfOpenFails = 0
			slog.Info("circuit breaker transitioning to half-open", "name", cb.name)
		} else {
			return false
		}
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMax {
			return false
		}
		cb.halfOpenCalls++
	}
	return true
}

// Report records the outcome of a call that Allow permitted.
func (cb *CircuitBreaker) Report(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		if !success {
			cb.halfOpenFails++
			cb.state = StateOpen
			cb.openedAt = time.Now()
			cb.resetWindow()
			slog.Warn("circuit breaker re-opened from half-open", "name", cb.name)
			return
		}
		if cb.halfOpenCalls-cb.halfOpenFails >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.resetWindow()
			slog.Info("circuit breaker closed after successful probes", "name", cb.name)
		}
		return
	}

	cb.results[cb.pos] = success
	cb.pos = (cb.pos + 1) % cb.window
	if cb.filled < cb.window {
		cb.filled++
	}

	if cb.filled >= cb.minCalls && cb.failureFraction() >= cb.failureRate {
		cb.state = StateOpen
		cb.openedAt = time.Now()
		slog.Warn("circuit breaker opened", "name", cb.name, "failure_fraction", cb.failureFraction())
	}
}

func (cb *CircuitBreaker) failureFraction() float64 {
	failures := 0
	for i := 0; i < cb.filled; i++ {
		if !cb.results[i] {
			failures++
		}
	}
	return float64(failures) / float64(cb.filled)
}

func (cb *CircuitBreaker) resetWindow() {
	cb.pos = 0
	cb.filled = 0
	cb.halfOpenCalls = 0
	cb.halfOpenFails = 0
}

// Execute runs fn if the breaker allows it, and records the outcome.
// ErrCircuitOpen is returned without calling fn when the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return errCircuitOpen
	}
	err := fn()
	cb.Report(err == nil)
	return err
}

// State returns the current state. If open and the wait has elapsed, it
// reports half-open (the actual transition happens on the next Allow call).
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.openWait {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to StateClosed, clearing all history.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.resetWindow()
}
