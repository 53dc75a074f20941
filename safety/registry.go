package safety

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/branden-thompson/the-stack-conversation-tracker-sub004/observe"
)

// Change describes one effective-state change, delivered to observers.
type Change struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Observer receives effective-state changes. Observers run
// synchronously, in subscription order, outside the registry's lock;
// they may read the registry but should return quickly.
type Observer func(Change)

// Config configures a Registry.
type Config struct {
	// Defaults maps switch names to their compiled-in default state.
	// Required, non-empty.
	Defaults map[string]bool

	// Store persists overrides across restarts. Optional; without it
	// overrides are process-lifetime-only.
	Store Store

	// Logger receives warnings for unknown switch lookups. Optional.
	Logger observe.Logger
}

// Snapshot is a serializable view of the registry for operator surfaces.
type Snapshot struct {
	Emergency bool            `json:"emergency"`
	Switches  map[string]bool `json:"switches"`
	Overrides map[string]bool `json:"overrides"`
}

// Registry resolves the effective state of named safety switches.
// Construct one at process start and inject it everywhere a consumer
// gates on a switch.
type Registry struct {
	store  Store
	logger observe.Logger

	mu        sync.Mutex
	defaults  map[string]bool
	overrides map[string]bool
	emergency bool
	observers []Observer

	warned map[string]bool // unknown names already warned about
}

// NewRegistry creates a registry from compiled-in defaults, loading any
// persisted overrides from the store.
func NewRegistry(cfg Config) (*Registry, error) {
	if len(cfg.Defaults) == 0 {
		return nil, errors.New("safety: at least one switch default is required")
	}
	for name := range cfg.Defaults {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("safety: switch names must be non-empty")
		}
	}

	defaults := make(map[string]bool, len(cfg.Defaults))
	for k, v := range cfg.Defaults {
		defaults[k] = v
	}

	overrides := make(map[string]bool)
	if cfg.Store != nil {
		loaded, err := cfg.Store.Load()
		if err != nil {
			return nil, fmt.Errorf("safety: load overrides: %w", err)
		}
		for k, v := range loaded {
			overrides[k] = v
		}
	}

	return &Registry{
		store:     cfg.Store,
		logger:    cfg.Logger,
		defaults:  defaults,
		overrides: overrides,
		warned:    make(map[string]bool),
	}, nil
}

// Get resolves the effective state of a switch. Precedence: the global
// emergency disable, then an explicit override, then the compiled-in
// default. Unknown names resolve to true with a warning; a lookup miss
// is not an error.
func (r *Registry) Get(name string) bool {
	r.mu.Lock()

	if r.emergency {
		r.mu.Unlock()
		return false
	}
	if v, ok := r.overrides[name]; ok {
		r.mu.Unlock()
		return v
	}
	if v, ok := r.defaults[name]; ok {
		r.mu.Unlock()
		return v
	}

	warn := !r.warned[name]
	r.warned[name] = true
	r.mu.Unlock()

	if warn && r.logger != nil {
		r.logger.Warn(context.Background(), "unknown safety switch, defaulting to enabled",
			observe.Field{Key: "switch", Value: name})
	}
	return true
}

// Set stores an explicit override and notifies observers of the new
// effective state. Circuit breakers call this with enabled=false when
// they trip. The override is persisted when a store is configured.
func (r *Registry) Set(name string, enabled bool) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("safety: switch name is required")
	}

	r.mu.Lock()
	r.overrides[name] = enabled
	effective := enabled && !r.emergency
	observers := r.observersLocked()
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Save(name, enabled); err != nil {
			return fmt.Errorf("safety: persist override %q: %w", name, err)
		}
	}

	notify(observers, Change{Name: name, Enabled: effective})
	return nil
}

// ClearOverride removes the explicit override for name, restoring the
// compiled-in default, and notifies observers if the effective state
// changed. The injected store is not updated; a durable override
// reappears on restart unless the store is cleared out of band.
func (r *Registry) ClearOverride(name string) {
	r.mu.Lock()
	prev, had := r.overrides[name]
	delete(r.overrides, name)
	effective := r.effectiveLocked(name)
	changed := had && prev != effective && !r.emergency
	observers := r.observersLocked()
	r.mu.Unlock()

	if changed {
		notify(observers, Change{Name: name, Enabled: effective})
	}
}

// GetAll returns the effective state of every known switch (defaults
// plus any overridden names).
func (r *Registry) GetAll() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]bool, len(r.defaults))
	for name := range r.known() {
		out[name] = r.effectiveLocked(name)
	}
	return out
}

// EmergencyDisableAll sets the global emergency flag, forcing every
// switch off. Individual overrides are untouched, so EmergencyRecover
// restores the prior per-switch state rather than defaults. Observers
// are notified for each switch whose effective value flipped.
func (r *Registry) EmergencyDisableAll() {
	r.changeEmergency(true)
}

// EmergencyRecover clears the global emergency flag and notifies
// observers of every switch whose effective value came back.
func (r *Registry) EmergencyRecover() {
	r.changeEmergency(false)
}

// EmergencyDisabled reports whether the global emergency flag is set.
func (r *Registry) EmergencyDisabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emergency
}

// Subscribe registers an observer for effective-state changes.
func (r *Registry) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs)
}

// SnapshotState returns a serializable view for operator surfaces.
func (r *Registry) SnapshotState() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Emergency: r.emergency,
		Switches:  make(map[string]bool, len(r.defaults)),
		Overrides: make(map[string]bool, len(r.overrides)),
	}
	for name := range r.known() {
		snap.Switches[name] = r.effectiveLocked(name)
	}
	for k, v := range r.overrides {
		snap.Overrides[k] = v
	}
	return snap
}

// Names returns all known switch names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.defaults))
	for name := range r.known() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) changeEmergency(active bool) {
	r.mu.Lock()
	if r.emergency == active {
		r.mu.Unlock()
		return
	}

	// Effective values before the flip, to notify only real changes.
	before := make(map[string]bool)
	for name := range r.known() {
		before[name] = r.effectiveLocked(name)
	}

	r.emergency = active

	var changes []Change
	for name := range r.known() {
		if now := r.effectiveLocked(name); now != before[name] {
			changes = append(changes, Change{Name: name, Enabled: now})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Name < changes[j].Name })
	observers := r.observersLocked()
	r.mu.Unlock()

	for _, ch := range changes {
		notify(observers, ch)
	}
}

// known iterates the union of default and overridden switch names.
func (r *Registry) known() map[string]struct{} {
	names := make(map[string]struct{}, len(r.defaults)+len(r.overrides))
	for name := range r.defaults {
		names[name] = struct{}{}
	}
	for name := range r.overrides {
		names[name] = struct{}{}
	}
	return names
}

func (r *Registry) effectiveLocked(name string) bool {
	if r.emergency {
		return false
	}
	if v, ok := r.overrides[name]; ok {
		return v
	}
	if v, ok := r.defaults[name]; ok {
		return v
	}
	return true
}

func (r *Registry) observersLocked() []Observer {
	out := make([]Observer, len(r.observers))
	copy(out, r.observers)
	return out
}

func notify(observers []Observer, ch Change) {
	for _, obs := range observers {
		obs(ch)
	}
}
