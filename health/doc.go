// Package health reports on the control plane's own components. It
// aggregates per-component checkers into a single snapshot an operator
// surface can render or serialize.
//
// Checkers exist for the three control-plane primitives: circuit
// breakers (an open circuit is unhealthy, a probing one degraded),
// the safety switch registry (the global emergency disable is
// unhealthy, individually disabled switches degraded), and bounded
// caches (near-capacity or low hit rate is degraded).
//
// The package produces snapshots only; exposing them over a transport
// is the host application's concern.
package health
