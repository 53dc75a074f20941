package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Sentinel errors for resource cache configuration.
var (
	ErrUnknownResource    = errors.New("cache: unknown resource type")
	ErrIdentifierRequired = errors.New("cache: resource requires an identifier")
)

// KeyKind selects how a resource type maps to a cache key.
type KeyKind int

const (
	// Fixed resources map to a single fixed key; identifiers are ignored.
	Fixed KeyKind = iota
	// Prefixed resources map to prefix+identifier; the identifier is required.
	Prefixed
)

// KeySpec is the static key configuration for one resource type.
type KeySpec struct {
	Kind KeyKind

	// Key is the fixed cache key. Required for Fixed specs.
	Key string

	// Prefix is prepended to the identifier. Required for Prefixed specs.
	Prefix string

	// TTL is the per-type time-to-live. Zero falls back to the cache's
	// default TTL.
	TTL time.Duration
}

// ResourceConfig configures a ResourceCache.
type ResourceConfig struct {
	// Specs maps resource type names to their key specs. Required.
	Specs map[string]KeySpec

	// SingleFlight de-duplicates concurrent Around fetches for the same
	// key: callers that miss simultaneously share one fetch and its
	// result. Without it, concurrent misses each run their own fetch.
	SingleFlight bool

	// Tracer, when set, records a span per Around call.
	Tracer trace.Tracer
}

// ResourceCache maps logical resource types to cache keys and wraps
// fetch functions with the cache-aside idiom.
type ResourceCache struct {
	cfg   ResourceConfig
	cache *BoundedCache
	group singleflight.Group
}

// Fetch is the contract for fetch functions passed to Around: produce a
// value or report a failure. Nothing else is assumed; any timeout is the
// caller's responsibility.
type Fetch func(ctx context.Context) (any, error)

// NewResourceCache creates a resource cache over c. Every spec must
// resolve to exactly one of fixed key or prefix; violations are
// configuration errors reported here.
func NewResourceCache(c *BoundedCache, cfg ResourceConfig) (*ResourceCache, error) {
	if c == nil {
		return nil, errors.New("cache: bounded cache is required")
	}
	if len(cfg.Specs) == 0 {
		return nil, errors.New("cache: at least one resource spec is required")
	}

	for name, spec := range cfg.Specs {
		if err := validateSpec(spec); err != nil {
			return nil, fmt.Errorf("cache: resource %q: %w", name, err)
		}
	}

	return &ResourceCache{cfg: cfg, cache: c}, nil
}

func validateSpec(spec KeySpec) error {
	if spec.TTL < 0 {
		return ErrNegativeTTL
	}
	switch spec.Kind {
	case Fixed:
		if spec.Prefix != "" {
			return errors.New("fixed spec must not set a prefix")
		}
		return ValidateKey(spec.Key)
	case Prefixed:
		if spec.Key != "" {
			return errors.New("prefixed spec must not set a fixed key")
		}
		if spec.Prefix == "" {
			return errors.New("prefixed spec requires a prefix")
		}
		return nil
	default:
		return fmt.Errorf("unknown key kind %d", spec.Kind)
	}
}

// KeyFor resolves the cache key for a resource type and optional
// identifier. Using a Prefixed type with an empty identifier is a
// configuration error.
func (r *ResourceCache) KeyFor(resource, id string) (string, error) {
	spec, ok := r.cfg.Specs[resource]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}

	switch spec.Kind {
	case Prefixed:
		if strings.TrimSpace(id) == "" {
			return "", fmt.Errorf("%w: %q", ErrIdentifierRequired, resource)
		}
		key := spec.Prefix + id
		if err := ValidateKey(key); err != nil {
			return "", err
		}
		return key, nil
	default:
		return spec.Key, nil
	}
}

// Read returns the cached value for the resource, or absent.
func (r *ResourceCache) Read(ctx context.Context, resource, id string) (any, bool, error) {
	key, err := r.KeyFor(resource, id)
	if err != nil {
		return nil, false, err
	}
	v, ok := r.cache.Get(ctx, key)
	return v, ok, nil
}

// Write stores a value for the resource with the resource type's TTL.
func (r *ResourceCache) Write(ctx context.Context, resource string, value any, id string) error {
	key, err := r.KeyFor(resource, id)
	if err != nil {
		return err
	}
	return r.cache.Set(ctx, key, value, r.cfg.Specs[resource].TTL)
}

// Invalidate removes the cached value for the resource and reports
// whether it was present.
func (r *ResourceCache) Invalidate(ctx context.Context, resource, id string) (bool, error) {
	key, err := r.KeyFor(resource, id)
	if err != nil {
		return false, err
	}
	return r.cache.Delete(ctx, key), nil
}

// InvalidateByPrefix removes every cached entry whose key starts with
// prefix and returns the count removed. Use it when a mutation affects
// an unknown set of descendant keys.
func (r *ResourceCache) InvalidateByPrefix(ctx context.Context, prefix string) int {
	keys := make([]string, 0)
	for key := range r.cache.All() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	n := 0
	for _, key := range keys {
		if r.cache.Delete(ctx, key) {
			n++
		}
	}
	return n
}

// Around is the cache-aside idiom: return the cached value if present,
// otherwise run fetch and, on success, populate the cache before
// returning. Failed fetches are never cached and their errors propagate
// unchanged. The fetch runs outside any cache lock.
func (r *ResourceCache) Around(ctx context.Context, resource, id string, fetch Fetch) (any, error) {
	key, err := r.KeyFor(resource, id)
	if err != nil {
		return nil, err
	}

	ctx, span := r.startSpan(ctx, resource)
	defer span.End()

	if v, ok := r.cache.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return v, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	ttl := r.cfg.Specs[resource].TTL
	if r.cfg.SingleFlight {
		v, err, _ := r.group.Do(key, func() (any, error) {
			return r.fetchAndStore(ctx, key, ttl, fetch)
		})
		return v, err
	}
	return r.fetchAndStore(ctx, key, ttl, fetch)
}

func (r *ResourceCache) fetchAndStore(ctx context.Context, key string, ttl time.Duration, fetch Fetch) (any, error) {
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	_ = r.cache.Set(ctx, key, v, ttl)
	return v, nil
}

func (r *ResourceCache) startSpan(ctx context.Context, resource string) (context.Context, trace.Span) {
	if r.cfg.Tracer == nil {
		// No tracer configured; SpanFromContext yields a no-op span.
		return ctx, trace.SpanFromContext(ctx)
	}
	return r.cfg.Tracer.Start(ctx, "cache.around",
		trace.WithAttributes(attribute.String("cache.resource", resource)))
}
