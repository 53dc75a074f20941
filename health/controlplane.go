package health

import (
	"context"
	"fmt"
	"sort"

	"github.com/branden-thompson/the-stack-conversation-tracker-sub004/cache"
	"github.com/branden-thompson/the-stack-conversation-tracker-sub004/resilience"
	"github.com/branden-thompson/the-stack-conversation-tracker-sub004/safety"
)

// BreakerChecker reports on every circuit breaker in a registry. Any
// open circuit makes the check unhealthy; a half-open circuit still
// probing makes it degraded.
type BreakerChecker struct {
	registry *resilience.Registry
}

// NewBreakerChecker creates a checker over the breaker registry.
func NewBreakerChecker(registry *resilience.Registry) *BreakerChecker {
	return &BreakerChecker{registry: registry}
}

// Name identifies the component being checked.
func (c *BreakerChecker) Name() string { return "circuit-breakers" }

// Check reports the registry's current condition.
func (c *BreakerChecker) Check(ctx context.Context) Result {
	snapshot := c.registry.Snapshot()

	var open, halfOpen []string
	details := make(map[string]any, len(snapshot))
	for name, stats := range snapshot {
		details[name] = stats
		switch stats.State {
		case resilience.StateOpen.String():
			open = append(open, name)
		case resilience.StateHalfOpen.String():
			halfOpen = append(halfOpen, name)
		}
	}
	sort.Strings(open)
	sort.Strings(halfOpen)

	switch {
	case len(open) > 0:
		return Unhealthy(fmt.Sprintf("open circuits: %v", open), nil).WithDetails(details)
	case len(halfOpen) > 0:
		return Degraded(fmt.Sprintf("recovering circuits: %v", halfOpen)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("%d circuits closed", len(snapshot))).WithDetails(details)
	}
}

// SafetyChecker reports on the safety switch registry. The global
// emergency disable makes the check unhealthy; any individually
// disabled switch makes it degraded.
type SafetyChecker struct {
	registry *safety.Registry
}

// NewSafetyChecker creates a checker over the switch registry.
func NewSafetyChecker(registry *safety.Registry) *SafetyChecker {
	return &SafetyChecker{registry: registry}
}

// Name identifies the component being checked.
func (c *SafetyChecker) Name() string { return "safety-switches" }

// Check reports the registry's current condition.
func (c *SafetyChecker) Check(ctx context.Context) Result {
	snap := c.registry.SnapshotState()

	details := map[string]any{
		"emergency": snap.Emergency,
		"switches":  snap.Switches,
	}

	if snap.Emergency {
		return Unhealthy("emergency disable active", nil).WithDetails(details)
	}

	var disabled []string
	for name, enabled := range snap.Switches {
		if !enabled {
			disabled = append(disabled, name)
		}
	}
	if len(disabled) > 0 {
		sort.Strings(disabled)
		return Degraded(fmt.Sprintf("disabled switches: %v", disabled)).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d switches enabled", len(snap.Switches))).WithDetails(details)
}

// CacheCheckerConfig tunes the degraded thresholds for a cache checker.
type CacheCheckerConfig struct {
	// CapacityPct degrades the check once Size/MaxSize meets this
	// fraction. Default: 0.9
	CapacityPct float64

	// MinHitRate degrades the check once the hit rate falls below this
	// fraction. Ignored until MinSamples lookups have happened.
	// Default: 0.25
	MinHitRate float64

	// MinSamples is the lookup count below which the hit rate is not
	// judged. Default: 100
	MinSamples uint64
}

// CacheChecker reports on a bounded cache. A cache near capacity or
// with a persistently low hit rate is degraded, never unhealthy; a
// struggling cache slows the application but does not break it.
type CacheChecker struct {
	name   string
	cache  *cache.BoundedCache
	config CacheCheckerConfig
}

// NewCacheChecker creates a checker for one named cache.
func NewCacheChecker(name string, c *cache.BoundedCache, config ...CacheCheckerConfig) *CacheChecker {
	cfg := CacheCheckerConfig{
		CapacityPct: 0.9,
		MinHitRate:  0.25,
		MinSamples:  100,
	}
	if len(config) > 0 {
		cfg = config[0]
		if cfg.CapacityPct <= 0 {
			cfg.CapacityPct = 0.9
		}
		if cfg.MinHitRate <= 0 {
			cfg.MinHitRate = 0.25
		}
		if cfg.MinSamples == 0 {
			cfg.MinSamples = 100
		}
	}
	return &CacheChecker{name: name, cache: c, config: cfg}
}

// Name identifies the component being checked.
func (c *CacheChecker) Name() string { return "cache:" + c.name }

// Check reports the cache's current condition.
func (c *CacheChecker) Check(ctx context.Context) Result {
	stats := c.cache.Stats()
	details := map[string]any{"stats": stats}

	if stats.MaxSize > 0 {
		fill := float64(stats.Size) / float64(stats.MaxSize)
		if fill >= c.config.CapacityPct {
			return Degraded(fmt.Sprintf("near capacity: %d/%d entries", stats.Size, stats.MaxSize)).
				WithDetails(details)
		}
	}

	if lookups := stats.Hits + stats.Misses; lookups >= c.config.MinSamples && stats.HitRate < c.config.MinHitRate {
		return Degraded(fmt.Sprintf("low hit rate: %.2f", stats.HitRate)).WithDetails(details)
	}

	return Healthy(fmt.Sprintf("%d/%d entries", stats.Size, stats.MaxSize)).WithDetails(details)
}

// Interface checks
var (
	_ Checker = (*BreakerChecker)(nil)
	_ Checker = (*SafetyChecker)(nil)
	_ Checker = (*CacheChecker)(nil)
)
