package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/branden-thompson/the-stack-conversation-tracker-sub004/cache"
)

// ControlPlaneMetrics records cache, breaker, and safety-switch metrics.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: recording must not panic; failed instrument creation is
//   reported once, at construction.
type ControlPlaneMetrics struct {
	cacheEvents    metric.Int64Counter
	breakerChanges metric.Int64Counter
	switchChanges  metric.Int64Counter
}

// NewControlPlaneMetrics creates the control-plane instruments on meter.
func NewControlPlaneMetrics(meter metric.Meter) (*ControlPlaneMetrics, error) {
	cacheEvents, err := meter.Int64Counter(
		"controlplane.cache.events",
		metric.WithDescription("Cache events by kind (hit, miss, expired, evicted, set)"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	breakerChanges, err := meter.Int64Counter(
		"controlplane.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	switchChanges, err := meter.Int64Counter(
		"controlplane.switch.changes",
		metric.WithDescription("Safety switch effective-state changes"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	return &ControlPlaneMetrics{
		cacheEvents:    cacheEvents,
		breakerChanges: breakerChanges,
		switchChanges:  switchChanges,
	}, nil
}

// RecordCacheEvent records one cache event for the named cache.
func (m *ControlPlaneMetrics) RecordCacheEvent(ctx context.Context, cacheName string, kind cache.EventKind) {
	m.cacheEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.name", cacheName),
		attribute.String("cache.event", kind.String()),
	))
}

// RecordBreakerTransition records one circuit state transition.
func (m *ControlPlaneMetrics) RecordBreakerTransition(ctx context.Context, breaker, from, to string) {
	m.breakerChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker.name", breaker),
		attribute.String("breaker.from", from),
		attribute.String("breaker.to", to),
	))
}

// RecordSwitchChange records one safety-switch effective-state change.
func (m *ControlPlaneMetrics) RecordSwitchChange(ctx context.Context, name string, enabled bool) {
	m.switchChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("switch.name", name),
		attribute.Bool("switch.enabled", enabled),
	))
}

// CacheEventHook adapts the metrics recorder to the cache's OnEvent
// hook. Wire it into cache.Config.OnEvent at construction.
func CacheEventHook(m *ControlPlaneMetrics, cacheName string) func(cache.Event) {
	return func(ev cache.Event) {
		m.RecordCacheEvent(context.Background(), cacheName, ev.Kind)
	}
}
