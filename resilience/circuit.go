package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is short-circuiting all requests.
	StateOpen
	// StateHalfOpen means a single probe is testing recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
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

// SwitchDisabler forces a named safety switch off. It is implemented by
// the safety switch registry; the breaker holds a reference, not
// ownership.
type SwitchDisabler interface {
	Set(name string, enabled bool) error
}

// Clock provides the current time, substitutable in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the guarded operation.
	Name string

	// FailureThreshold is the number of consecutive failures before the
	// circuit opens. Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before a probe
	// is allowed. Default: 30 seconds
	RecoveryTimeout time.Duration

	// MonitoringPeriod is the advisory observation window surfaced in
	// stats snapshots; it does not affect the state machine.
	MonitoringPeriod time.Duration

	// BoundSwitch names a safety switch to disable when the circuit
	// opens. Requires Switches.
	BoundSwitch string

	// Switches receives the cascading disable for BoundSwitch.
	Switches SwitchDisabler

	// OnStateChange is called after the circuit state changes, outside
	// the breaker's lock.
	OnStateChange func(name string, from, to State)

	// IsFailure determines if an error counts as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// Clock supplies the current time. Default: the system clock.
	Clock Clock
}

// CircuitBreakerStats is a serializable snapshot of breaker state.
// The cumulative counters track the breaker's lifetime and survive
// Reset; only attempted calls count toward TotalRequests, while
// short-circuited calls accumulate in Rejected.
type CircuitBreakerStats struct {
	Name                string        `json:"name"`
	State               string        `json:"state"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	LastFailure         time.Time     `json:"lastFailure,omitzero"`
	NextAttempt         time.Time     `json:"nextAttempt,omitzero"`
	TotalRequests       uint64        `json:"totalRequests"`
	Successes           uint64        `json:"successCount"`
	Failures            uint64        `json:"failureCount"`
	Rejected            uint64        `json:"rejected"`
	MonitoringPeriod    time.Duration `json:"monitoringPeriod,omitempty"`
}

// CircuitBreaker implements the circuit breaker pattern with an optional
// bound safety switch that is disabled when the circuit opens.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	failures    int // consecutive, since last success or reset
	probes      int // probes admitted in the current half-open window
	lastFailure time.Time
	nextAttempt time.Time

	total     uint64
	successes uint64
	failed    uint64
	rejected  uint64
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Clock == nil {
		config.Clock = systemClock{}
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Execute runs the operation through the circuit breaker.
//
// While the circuit is open and the recovery timeout has not elapsed,
// Execute returns ErrCircuitOpen without invoking op; such calls do not
// count toward TotalRequests. Once the timeout elapses the circuit moves
// to half-open and exactly one probe runs. Failures from op propagate to
// the caller unchanged in every state.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state. The open-to-half-open
// transition happens lazily on the next attempted call, so an open
// circuit reports open here even after the recovery timeout elapses.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of breaker statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		Name:                cb.config.Name,
		State:               cb.state.String(),
		ConsecutiveFailures: cb.failures,
		LastFailure:         cb.lastFailure,
		NextAttempt:         cb.nextAttempt,
		TotalRequests:       cb.total,
		Successes:           cb.successes,
		Failures:            cb.failed,
		Rejected:            cb.rejected,
		MonitoringPeriod:    cb.config.MonitoringPeriod,
	}
}

// Reset returns the breaker to closed unconditionally, zeroing the
// consecutive failure count and the failure/attempt timestamps. The
// cumulative counters are untouched. Intended for manual operator
// recovery.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	oldState := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.lastFailure = time.Time{}
	cb.nextAttempt = time.Time{}
	cb.mu.Unlock()

	cb.notify(oldState, StateClosed)
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()

	now := cb.config.Clock.Now()
	oldState := cb.state

	switch cb.state {
	case StateOpen:
		if now.Before(cb.nextAttempt) {
			cb.rejected++
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		// Recovery timeout elapsed: this call becomes the probe.
		cb.state = StateHalfOpen
		cb.probes = 1

	case StateHalfOpen:
		if cb.probes >= 1 {
			cb.rejected++
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probes++
	}

	cb.total++
	newState := cb.state
	cb.mu.Unlock()

	cb.notify(oldState, newState)
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()

	now := cb.config.Clock.Now()
	oldState := cb.state
	tripped := false

	if cb.config.IsFailure(err) {
		cb.failed++
		cb.failures++
		cb.lastFailure = now

		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.config.FailureThreshold {
				cb.state = StateOpen
				cb.nextAttempt = now.Add(cb.config.RecoveryTimeout)
				tripped = true
			}
		case StateHalfOpen:
			// Failed probe: re-open with a fresh recovery window.
			cb.state = StateOpen
			cb.nextAttempt = now.Add(cb.config.RecoveryTimeout)
			tripped = true
		}
	} else {
		cb.successes++
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.state = StateClosed
			cb.probes = 0
			cb.nextAttempt = time.Time{}
		}
	}

	newState := cb.state
	cb.mu.Unlock()

	if tripped {
		cb.disableBoundSwitch()
	}
	cb.notify(oldState, newState)
}

// disableBoundSwitch cascades the trip into the bound safety switch.
// Called outside the breaker's lock so switch observers may read the
// breaker freely.
func (cb *CircuitBreaker) disableBoundSwitch() {
	if cb.config.BoundSwitch == "" || cb.config.Switches == nil {
		return
	}
	_ = cb.config.Switches.Set(cb.config.BoundSwitch, false)
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
