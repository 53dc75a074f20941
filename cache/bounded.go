package cache

import (
	"container/list"
	"context"
	"fmt"
	"iter"
	"sync"
	"time"
)

// EventKind identifies a cache event.
type EventKind int

const (
	// EventHit is emitted when Get finds a live entry.
	EventHit EventKind = iota
	// EventMiss is emitted when Get finds no entry.
	EventMiss
	// EventExpired is emitted when a dead entry is removed.
	EventExpired
	// EventEvicted is emitted when an entry is removed for capacity.
	EventEvicted
	// EventSet is emitted when an entry is stored.
	EventSet
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventHit:
		return "hit"
	case EventMiss:
		return "miss"
	case EventExpired:
		return "expired"
	case EventEvicted:
		return "evicted"
	case EventSet:
		return "set"
	default:
		return "unknown"
	}
}

// Event describes a single cache event, for metrics hooks.
type Event struct {
	Kind EventKind
	Key  string
}

// Config configures a BoundedCache.
type Config struct {
	// MaxSize is the entry capacity. Must be positive.
	MaxSize int

	// DefaultTTL is applied when Set is called with ttl=0.
	// A zero DefaultTTL means such entries never expire; they remain
	// subject to capacity eviction.
	DefaultTTL time.Duration

	// Clock supplies the current time. Default: the system clock.
	Clock Clock

	// Schedule backs best-effort scheduled expiry of entries.
	// Default: time.AfterFunc. Use NoSchedule to disable.
	Schedule ScheduleFunc

	// OnEvent is called synchronously for every cache event, while the
	// cache lock is held. It must not call back into the cache.
	OnEvent func(Event)
}

// Entry is an observer-facing snapshot of a cache entry.
type Entry struct {
	Value     any
	CreatedAt time.Time
	// ExpiresAt is the expiry deadline. Zero means the entry never expires.
	ExpiresAt time.Time
}

// entry is the stored representation.
type entry struct {
	key       string
	value     any
	createdAt time.Time
	expiresAt time.Time
}

// Stats is a snapshot of cache statistics. The counters are cumulative
// for the cache's lifetime and survive Clear.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Expired   uint64  `json:"expired"`
	Sets      uint64  `json:"sets"`
	Size      int     `json:"size"`
	MaxSize   int     `json:"maxSize"`
	HitRate   float64 `json:"hitRate"`
}

// BoundedCache is a capacity- and TTL-limited key/value store with
// least-recently-used eviction.
//
// Recency is updated on Get hits and on Set; Has and iteration do not
// touch it. Expiry is checked lazily on every read, with scheduled
// callbacks as a best-effort optimization; Cleanup reclaims cold
// expired entries eagerly.
type BoundedCache struct {
	cfg Config

	mu     sync.Mutex
	items  map[string]*list.Element
	order  *list.List // front = least recently used, back = most recently used
	timers map[string]func()

	hits      uint64
	misses    uint64
	evictions uint64
	expired   uint64
	sets      uint64
}

// NewBounded creates a new bounded cache. MaxSize must be positive and
// DefaultTTL non-negative; violations are configuration errors reported
// here, never at call time.
func NewBounded(cfg Config) (*BoundedCache, error) {
	if cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("cache: max size must be positive, got %d", cfg.MaxSize)
	}
	if cfg.DefaultTTL < 0 {
		return nil, fmt.Errorf("cache: default ttl must be non-negative, got %v: %w", cfg.DefaultTTL, ErrNegativeTTL)
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Schedule == nil {
		cfg.Schedule = timerSchedule
	}

	return &BoundedCache{
		cfg:    cfg,
		items:  make(map[string]*list.Element),
		order:  list.New(),
		timers: make(map[string]func()),
	}, nil
}

// Get retrieves a value. An expired entry is removed and reported as a
// miss. A hit moves the entry to the most-recently-used position.
func (c *BoundedCache) Get(_ context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		c.emit(Event{Kind: EventMiss, Key: key})
		return nil, false
	}

	ent := el.Value.(*entry)
	if c.deadLocked(ent) {
		c.removeLocked(el)
		c.expired++
		c.misses++
		c.emit(Event{Kind: EventExpired, Key: key})
		return nil, false
	}

	c.hits++
	c.order.MoveToBack(el)
	c.emit(Event{Kind: EventHit, Key: key})
	return ent.value, true
}

// Set stores a value. An existing entry for the key is removed first, so
// the new entry starts fresh at the most-recently-used position. The
// least-recently-used entries are evicted until the capacity invariant
// holds. ttl=0 falls back to DefaultTTL; negative ttl is rejected.
func (c *BoundedCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("cache: set %q: %w", key, ErrNegativeTTL)
	}
	if ttl == 0 {
		ttl = c.cfg.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}

	for len(c.items) >= c.cfg.MaxSize {
		lru := c.order.Front()
		c.emit(Event{Kind: EventEvicted, Key: lru.Value.(*entry).key})
		c.removeLocked(lru)
		c.evictions++
	}

	now := c.cfg.Clock.Now()
	ent := &entry{
		key:       key,
		value:     value,
		createdAt: now,
	}
	if ttl > 0 {
		ent.expiresAt = now.Add(ttl)
	}

	el := c.order.PushBack(ent)
	c.items[key] = el
	c.sets++
	c.emit(Event{Kind: EventSet, Key: key})

	if ttl > 0 {
		c.timers[key] = c.cfg.Schedule(ttl, func() { c.expireScheduled(key, el) })
	}

	return nil
}

// Delete removes the entry if present and reports whether it was
// present. Any pending scheduled expiry for the key is cancelled.
func (c *BoundedCache) Delete(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if ok {
		c.removeLocked(el)
	}
	return ok
}

// Has reports whether a live entry exists. An expired entry is removed
// as a side effect but is not counted as a miss, and a live entry is
// neither counted as a hit nor moved in recency order.
func (c *BoundedCache) Has(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	if c.deadLocked(el.Value.(*entry)) {
		c.removeLocked(el)
		c.expired++
		c.emit(Event{Kind: EventExpired, Key: key})
		return false
	}
	return true
}

// Clear removes all entries and cancels all pending scheduled expiry.
// It returns the number of entries removed. Statistics counters are not
// reset; they track the cache's lifetime for long-run monitoring.
func (c *BoundedCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	for _, cancel := range c.timers {
		cancel()
	}
	c.items = make(map[string]*list.Element)
	c.timers = make(map[string]func())
	c.order.Init()
	return n
}

// Cleanup eagerly removes every currently-expired entry and returns the
// count removed. Lazy expiry alone leaves dead entries occupying
// capacity if they are never read; Cleanup exists to reclaim them.
func (c *BoundedCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		ent := el.Value.(*entry)
		if c.deadLocked(ent) {
			c.removeLocked(el)
			c.expired++
			n++
			c.emit(Event{Kind: EventExpired, Key: ent.key})
		}
		el = next
	}
	return n
}

// Size returns the current number of entries, including any expired
// entries not yet reclaimed.
func (c *BoundedCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of cache statistics. HitRate is 0 when no
// lookups have occurred.
func (c *BoundedCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
		Sets:      c.sets,
		Size:      len(c.items),
		MaxSize:   c.cfg.MaxSize,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// All returns a lazy, restartable sequence of (key, entry) pairs in
// recency order, least recently used first. Expired entries are skipped.
// Iterating does not count as access and does not reorder entries; each
// restart observes a fresh snapshot.
func (c *BoundedCache) All() iter.Seq2[string, Entry] {
	return func(yield func(string, Entry) bool) {
		c.mu.Lock()
		now := c.cfg.Clock.Now()
		snapshot := make([]*entry, 0, c.order.Len())
		for el := c.order.Front(); el != nil; el = el.Next() {
			ent := el.Value.(*entry)
			if !ent.expiresAt.IsZero() && now.After(ent.expiresAt) {
				continue
			}
			snapshot = append(snapshot, ent)
		}
		c.mu.Unlock()

		for _, ent := range snapshot {
			e := Entry{
				Value:     ent.value,
				CreatedAt: ent.createdAt,
				ExpiresAt: ent.expiresAt,
			}
			if !yield(ent.key, e) {
				return
			}
		}
	}
}

// expireScheduled is the scheduled-expiry callback for a key. The check
// against the stored element guards against the key having been re-set
// or deleted since scheduling.
func (c *BoundedCache) expireScheduled(key string, el *list.Element) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.items[key]
	if !ok || current != el {
		return
	}
	if !c.deadLocked(el.Value.(*entry)) {
		return
	}
	c.removeLocked(el)
	c.expired++
	c.emit(Event{Kind: EventExpired, Key: key})
}

func (c *BoundedCache) deadLocked(ent *entry) bool {
	return !ent.expiresAt.IsZero() && c.cfg.Clock.Now().After(ent.expiresAt)
}

func (c *BoundedCache) removeLocked(el *list.Element) {
	ent := el.Value.(*entry)
	delete(c.items, ent.key)
	c.order.Remove(el)
	if cancel, ok := c.timers[ent.key]; ok {
		cancel()
		delete(c.timers, ent.key)
	}
}

func (c *BoundedCache) emit(ev Event) {
	if c.cfg.OnEvent != nil {
		c.cfg.OnEvent(ev)
	}
}

// Ensure BoundedCache implements Cache
var _ Cache = (*BoundedCache)(nil)
