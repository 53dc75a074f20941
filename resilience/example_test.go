package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/branden-thompson/the-stack-conversation-tracker-sub004/resilience"
)

func ExampleNewCircuitBreaker() {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "card-events",
		FailureThreshold: 2,
		RecoveryTimeout:  30 * time.Second,
	})

	backendDown := errors.New("events backend down")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, func(context.Context) error { return backendDown })
		fmt.Printf("attempt %d: %v\n", i+1, err)
	}
	fmt.Println("state:", cb.State())
	// Output:
	// attempt 1: events backend down
	// attempt 2: events backend down
	// attempt 3: resilience: circuit breaker is open
	// state: open
}

func ExampleCircuitBreaker_Stats() {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "card-events",
		FailureThreshold: 5,
	})

	ctx := context.Background()
	_ = cb.Execute(ctx, func(context.Context) error { return nil })
	_ = cb.Execute(ctx, func(context.Context) error { return errors.New("flaky") })

	stats := cb.Stats()
	fmt.Println("total:", stats.TotalRequests)
	fmt.Println("successes:", stats.Successes)
	fmt.Println("failures:", stats.Failures)
	// Output:
	// total: 2
	// successes: 1
	// failures: 1
}

func ExampleExecutor() {
	executor := resilience.NewExecutor(
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "card-events",
			FailureThreshold: 5,
		})),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
		})),
		resilience.WithTimeout(time.Second),
	)

	attempts := 0
	err := executor.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	fmt.Println("err:", err)
	fmt.Println("attempts:", attempts)
	// Output:
	// err: <nil>
	// attempts: 3
}
