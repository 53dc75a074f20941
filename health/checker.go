package health

import (
	"context"
	"time"
)

// Status classifies a component's condition.
type Status int

const (
	// StatusHealthy indicates the component is operating normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component works but needs attention.
	StatusDegraded
	// StatusUnhealthy indicates the component is not operational.
	StatusUnhealthy
)

// MarshalJSON encodes the status as its string form so serialized
// snapshots stay readable.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of one health check.
type Result struct {
	// Status is the component's condition.
	Status Status `json:"status"`

	// Message gives the operator-facing reason for the status.
	Message string `json:"message,omitempty"`

	// Details holds check-specific metadata.
	Details map[string]any `json:"details,omitempty"`

	// Duration is how long the check took.
	Duration time.Duration `json:"duration,omitempty"`

	// Timestamp is when the check ran.
	Timestamp time.Time `json:"timestamp,omitzero"`

	// Error carries the failure when the check itself errored.
	Error error `json:"-"`
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message, Timestamp: time.Now()}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// WithDetails attaches metadata to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker is a single component health check.
//
// Contract:
// - Concurrency: Check may be called concurrently.
// - Context: Check should honor cancellation; the aggregator enforces
//   a deadline around it either way.
type Checker interface {
	// Name identifies the component being checked.
	Name() string

	// Check reports the component's current condition.
	Check(ctx context.Context) Result
}

// CheckerFunc adapts an ordinary function into a Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc wraps fn as a named Checker.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name identifies the component being checked.
func (f *CheckerFunc) Name() string { return f.name }

// Check reports the component's current condition.
func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }
