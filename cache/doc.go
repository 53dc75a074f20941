// Package cache provides the bounded response cache for the control plane.
//
// It provides a capacity- and TTL-limited store with least-recently-used
// eviction, lifetime hit/miss statistics, and a resource facade that maps
// logical resource types to cache keys and wraps fetch functions with the
// cache-aside idiom.
package cache
