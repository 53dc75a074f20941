// Package observe provides observability primitives for the resilience
// control plane.
//
// It is a pure instrumentation library: no execution, no transport, no
// I/O beyond exporter setup. Consumers wire the observer's logger,
// tracer, and control-plane metrics into the cache, breaker, and safety
// registry through their hook points.
package observe
