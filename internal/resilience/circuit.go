// Package resilience provides the circuit breaker and retry policies that
// guard calls to upstream search APIs.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state — requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means too many consecutive failures — requests are
	// rejected immediately until the reopen timeout elapses.
	CircuitOpen
	// CircuitHalfOpen allows a trial request to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before
	// opening the circuit. Default: 3.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before allowing a
	// trial request. A failed trial doubles the current timeout, capped
	// at MaxResetTimeout; closing the circuit restores the base value.
	// Default: 60s.
	ResetTimeout time.Duration

	// MaxResetTimeout caps the doubled reopen timeout. Default: 8x ResetTimeout.
	MaxResetTimeout time.Duration

	// ShouldTrip optionally restricts which errors count toward the
	// failure threshold. If nil, every non-nil error counts.
	ShouldTrip func(err error) bool

	// OnStateChange is called when the circuit transitions between states.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the default breaker policy.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     60 * time.Second,
	}
}

// Snapshot is a read-only view of one breaker for monitoring.
type Snapshot struct {
	State               string     `json:"state"`
	IsOpen              bool       `json:"is_open"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	ReopenNotBefore     *time.Time `json:"reopen_not_before,omitempty"`
}

// CircuitBreaker implements the circuit breaker pattern for one source.
type CircuitBreaker struct {
	cfg   CircuitBreakerConfig
	mu    sync.Mutex
	state CircuitState

	consecutiveFailures int
	lastFailureTime     time.Time
	currentResetTimeout time.Duration

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	if cfg.MaxResetTimeout <= 0 {
		cfg.MaxResetTimeout = 8 * cfg.ResetTimeout
	}
	return &CircuitBreaker{
		cfg:                 cfg,
		state:               CircuitClosed,
		currentResetTimeout: cfg.ResetTimeout,
		nowFunc:             time.Now,
	}
}

// Execute runs fn through the circuit breaker. Returns ErrCircuitOpen if
// the circuit rejects the call; otherwise the call's outcome drives the
// state transitions.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.allowRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.recordResult(err)
	return err
}

// ExecuteVal is like Execute but preserves a return value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allowRequest(); err != nil {
		return zero, err
	}

	val, err := fn(ctx)
	cb.recordResult(err)
	return val, err
}

// State returns the current circuit state, accounting for reopen timeout expiry.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.nowFunc().Sub(cb.lastFailureTime) >= cb.currentResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset forces the circuit back to closed and restores the base reopen
// timeout. Used by recovery strategies and tests.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	old := cb.state
	cb.state = CircuitClosed
	cb.consecutiveFailures = 0
	cb.currentResetTimeout = cb.cfg.ResetTimeout
	if old != CircuitClosed && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(old, CircuitClosed)
	}
}

// Snapshot returns a read-only view of the breaker.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.state
	if state == CircuitOpen && cb.nowFunc().Sub(cb.lastFailureTime) >= cb.currentResetTimeout {
		state = CircuitHalfOpen
	}

	snap := Snapshot{
		State:               state.String(),
		IsOpen:              state == CircuitOpen,
		ConsecutiveFailures: cb.consecutiveFailures,
	}
	if !cb.lastFailureTime.IsZero() {
		t := cb.lastFailureTime
		snap.LastFailureAt = &t
		if cb.state == CircuitOpen {
			reopen := cb.lastFailureTime.Add(cb.currentResetTimeout)
			snap.ReopenNotBefore = &reopen
		}
	}
	return snap
}

func (cb *CircuitBreaker) allowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.nowFunc().Sub(cb.lastFailureTime) >= cb.currentResetTimeout {
			cb.transition(CircuitHalfOpen)
			return nil // trial request
		}
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	shouldTrip := cb.cfg.ShouldTrip
	if shouldTrip == nil {
		shouldTrip = func(e error) bool { return e != nil }
	}

	if err == nil || !shouldTrip(err) {
		// A single success fully resets the breaker.
		cb.consecutiveFailures = 0
		cb.currentResetTimeout = cb.cfg.ResetTimeout
		if cb.state != CircuitClosed {
			cb.transition(CircuitClosed)
		}
		return
	}

	cb.consecutiveFailures++
	cb.lastFailureTime = cb.nowFunc()

	switch cb.state {
	case CircuitClosed:
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		// A failed trial reopens with a doubled timeout.
		cb.currentResetTimeout *= 2
		if cb.currentResetTimeout > cb.cfg.MaxResetTimeout {
			cb.currentResetTimeout = cb.cfg.MaxResetTimeout
		}
		cb.transition(CircuitOpen)
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

// SourceBreakers manages circuit breakers keyed by source id.
type SourceBreakers struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	cfg      CircuitBreakerConfig
}

// NewSourceBreakers creates a registry of per-source circuit breakers.
func NewSourceBreakers(cfg CircuitBreakerConfig) *SourceBreakers {
	return &SourceBreakers{
		breakers: make(map[string]*CircuitBreaker),
		cfg:      cfg,
	}
}

// Get returns the circuit breaker for the source, creating one if needed.
func (sb *SourceBreakers) Get(sourceID string) *CircuitBreaker {
	sb.mu.RLock()
	cb, ok := sb.breakers[sourceID]
	sb.mu.RUnlock()
	if ok {
		return cb
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	// Double-check after acquiring write lock.
	if cb, ok = sb.breakers[sourceID]; ok {
		return cb
	}
	cb = NewCircuitBreaker(sb.cfg)
	sb.breakers[sourceID] = cb
	return cb
}

// Reset closes the breaker for one source, if it exists.
func (sb *SourceBreakers) Reset(sourceID string) {
	sb.mu.RLock()
	cb := sb.breakers[sourceID]
	sb.mu.RUnlock()
	if cb != nil {
		cb.Reset()
	}
}

// Snapshots returns a read-only snapshot of every breaker.
func (sb *SourceBreakers) Snapshots() map[string]Snapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	out := make(map[string]Snapshot, len(sb.breakers))
	for id, cb := range sb.breakers {
		out[id] = cb.Snapshot()
	}
	return out
}
