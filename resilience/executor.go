package resilience

import (
	"context"
	"time"
)

// Executor composes resilience patterns around a single operation,
// typically the fetch function behind a cached resource.
type Executor struct {
	circuitBreaker *CircuitBreaker
	retry          *Retry
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.circuitBreaker = cb
	}
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithTimeout adds a timeout to the executor.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
	}
}

// Execute runs the operation through the configured patterns, from the
// outside in: circuit breaker, then retry, then timeout. The breaker
// sits outermost so an open circuit rejects before any retries are
// spent, and each retry attempt gets its own timeout window.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	execute := op

	if e.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.timeout.Execute(ctx, inner)
		}
	}

	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	if e.circuitBreaker != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.circuitBreaker.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}

// Fetch adapts a value-returning fetch so it can run through the
// executor, for use with the cache facade's cache-aside wrapper.
func (e *Executor) Fetch(ctx context.Context, fetch func(context.Context) (any, error)) (any, error) {
	var value any
	err := e.Execute(ctx, func(ctx context.Context) error {
		v, ferr := fetch(ctx)
		if ferr != nil {
			return ferr
		}
		value = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}
