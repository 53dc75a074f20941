// Package safety provides the safety-switch registry: named feature
// flags resolved through a layered precedence chain.
//
// Effective state resolves highest-precedence first: the global
// emergency disable forces every switch off; an explicit per-switch
// override (set by an operator or by a tripped circuit breaker) comes
// next; the compiled-in default is the fallback. Unknown switch names
// resolve to enabled with a logged warning, never an error.
//
// Overrides can be persisted through an injected Store so they survive
// restarts. Observers subscribe to effective-state changes, including
// cascading disables and emergency transitions, so consumers react
// without polling.
package safety
