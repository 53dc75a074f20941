// Package resilience guards calls into misbehaving subsystems.
//
// The centerpiece is a three-state circuit breaker: consecutive failures
// past a threshold open the circuit, short-circuiting further calls until
// a recovery timeout elapses and a single probe is allowed through. A
// breaker can be bound to a safety switch, so tripping automatically
// disables the dependent feature for the rest of the application.
//
// Retry and timeout wrappers, and an Executor composing them with a
// breaker, cover the fetch functions that populate the response cache:
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    Name:             "card-events",
//	    FailureThreshold: 3,
//	    RecoveryTimeout:  time.Minute,
//	    BoundSwitch:      "cardEvents",
//	    Switches:         switches,
//	})
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return loadCardEvents(ctx)
//	})
//
// A short-circuited call returns ErrCircuitOpen without invoking the
// operation, so callers can tell "the operation failed" apart from "the
// operation was never attempted."
package resilience
