package resilience

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the process's named circuit breakers. Construct one at
// start-up and hand it to consumers; it replaces ad-hoc global breaker
// state.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a new breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker)}
}

// Register adds a breaker under its configured name.
func (r *Registry) Register(cb *CircuitBreaker) error {
	if cb == nil || strings.TrimSpace(cb.Name()) == "" {
		return errors.New("resilience: breaker with a non-empty name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := cb.Name()
	if _, exists := r.breakers[name]; exists {
		return fmt.Errorf("resilience: breaker %q already registered", name)
	}
	r.breakers[name] = cb
	return nil
}

// Get returns the breaker registered under name.
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cb, ok := r.breakers[name]
	return cb, ok
}

// List returns registered breaker names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns stats for every registered breaker, keyed by name.
func (r *Registry) Snapshot() map[string]CircuitBreakerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]CircuitBreakerStats, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.Stats()
	}
	return out
}

// ResetAll resets every registered breaker to closed. Operator escape
// hatch; cumulative stats are untouched.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.RUnlock()

	for _, cb := range breakers {
		cb.Reset()
	}
}
