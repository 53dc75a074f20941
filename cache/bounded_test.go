package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock is a controllable clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, maxSize int, clock Clock) *BoundedCache {
	t.Helper()
	c, err := NewBounded(Config{
		MaxSize:  maxSize,
		Clock:    clock,
		Schedule: NoSchedule,
	})
	if err != nil {
		t.Fatalf("NewBounded() error = %v", err)
	}
	return c
}

func TestNewBounded_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{MaxSize: 10}, false},
		{"zero max size", Config{MaxSize: 0}, true},
		{"negative max size", Config{MaxSize: -1}, true},
		{"negative default ttl", Config{MaxSize: 10, DefaultTTL: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBounded(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewBounded() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBoundedCache_GetSet(t *testing.T) {
	c := newTestCache(t, 4, newFakeClock())
	ctx := context.Background()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("Get(missing) = true, want false")
	}

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok := c.Get(ctx, "k")
	if !ok || v != "v" {
		t.Errorf("Get(k) = (%v, %v), want (v, true)", v, ok)
	}
}

func TestBoundedCache_SetNegativeTTL(t *testing.T) {
	c := newTestCache(t, 4, newFakeClock())

	err := c.Set(context.Background(), "k", "v", -time.Second)
	if err == nil {
		t.Fatal("Set() with negative ttl: error = nil, want ErrNegativeTTL")
	}
}

// Capacity invariant: size never exceeds MaxSize after any Set.
func TestBoundedCache_CapacityInvariant(t *testing.T) {
	c := newTestCache(t, 3, newFakeClock())
	ctx := context.Background()

	keys := []string{"a", "b", "c", "d", "e", "a", "f", "b"}
	for _, k := range keys {
		if err := c.Set(ctx, k, k, 0); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
		if c.Size() > 3 {
			t.Fatalf("after Set(%q): size = %d, want <= 3", k, c.Size())
		}
	}
}

// LRU correctness: with maxSize=3, inserting k1..k4 evicts k1; if k1 is
// read between k3 and k4, k2 is evicted instead.
func TestBoundedCache_LRUEviction(t *testing.T) {
	ctx := context.Background()

	t.Run("insertion order", func(t *testing.T) {
		c := newTestCache(t, 3, newFakeClock())
		for _, k := range []string{"k1", "k2", "k3", "k4"} {
			_ = c.Set(ctx, k, k, 0)
		}
		if c.Has(ctx, "k1") {
			t.Error("k1 still present, want evicted")
		}
		for _, k := range []string{"k2", "k3", "k4"} {
			if !c.Has(ctx, k) {
				t.Errorf("%s absent, want present", k)
			}
		}
	})

	t.Run("hot key survives", func(t *testing.T) {
		c := newTestCache(t, 3, newFakeClock())
		_ = c.Set(ctx, "k1", "k1", 0)
		_ = c.Set(ctx, "k2", "k2", 0)
		_ = c.Set(ctx, "k3", "k3", 0)
		if _, ok := c.Get(ctx, "k1"); !ok {
			t.Fatal("Get(k1) = false, want true")
		}
		_ = c.Set(ctx, "k4", "k4", 0)

		if c.Has(ctx, "k2") {
			t.Error("k2 still present, want evicted")
		}
		if !c.Has(ctx, "k1") {
			t.Error("k1 absent, want present (recently read)")
		}
	})

	t.Run("eviction counter", func(t *testing.T) {
		c := newTestCache(t, 2, newFakeClock())
		for _, k := range []string{"a", "b", "c", "d"} {
			_ = c.Set(ctx, k, k, 0)
		}
		if got := c.Stats().Evictions; got != 2 {
			t.Errorf("Evictions = %d, want 2", got)
		}
	})
}

// TTL correctness: an entry set with ttl=50ms, read after 80ms, is
// absent and bumps both expired and misses.
func TestBoundedCache_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 4, clock)
	ctx := context.Background()

	_ = c.Set(ctx, "k", "v", 50*time.Millisecond)
	clock.Advance(80 * time.Millisecond)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get(k) after expiry = true, want false")
	}

	stats := c.Stats()
	if stats.Expired != 1 {
		t.Errorf("Expired = %d, want 1", stats.Expired)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.Size != 0 {
		t.Errorf("Size = %d, want 0 (expired entry removed)", stats.Size)
	}
}

func TestBoundedCache_TTLZeroUsesDefault(t *testing.T) {
	clock := newFakeClock()
	c, err := NewBounded(Config{
		MaxSize:    4,
		DefaultTTL: time.Minute,
		Clock:      clock,
		Schedule:   NoSchedule,
	})
	if err != nil {
		t.Fatalf("NewBounded() error = %v", err)
	}
	ctx := context.Background()

	_ = c.Set(ctx, "k", "v", 0)
	clock.Advance(2 * time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("entry with ttl=0 did not expire after DefaultTTL")
	}
}

// With a zero DefaultTTL, ttl=0 pins the entry: it never expires and is
// reclaimed only by eviction or deletion.
func TestBoundedCache_TTLZeroNoDefaultNeverExpires(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 4, clock)
	ctx := context.Background()

	_ = c.Set(ctx, "k", "v", 0)
	clock.Advance(24 * time.Hour)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Error("entry with ttl=0 and no default expired, want pinned")
	}
}

func TestBoundedCache_SetReplacesEntry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 4, clock)
	ctx := context.Background()

	_ = c.Set(ctx, "k", "old", 50*time.Millisecond)
	clock.Advance(40 * time.Millisecond)
	// Re-set restarts the expiry window; the old 50ms deadline is gone.
	_ = c.Set(ctx, "k", "new", 50*time.Millisecond)
	clock.Advance(40 * time.Millisecond)

	v, ok := c.Get(ctx, "k")
	if !ok || v != "new" {
		t.Errorf("Get(k) = (%v, %v), want (new, true)", v, ok)
	}
}

func TestBoundedCache_Delete(t *testing.T) {
	c := newTestCache(t, 4, newFakeClock())
	ctx := context.Background()

	_ = c.Set(ctx, "k", "v", 0)
	if !c.Delete(ctx, "k") {
		t.Error("Delete(k) = false, want true")
	}
	if c.Delete(ctx, "k") {
		t.Error("second Delete(k) = true, want false")
	}
}

func TestBoundedCache_Has(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 4, clock)
	ctx := context.Background()

	_ = c.Set(ctx, "a", 1, 0)
	_ = c.Set(ctx, "b", 2, 0)

	if !c.Has(ctx, "a") {
		t.Error("Has(a) = false, want true")
	}

	// Has must not promote "a": inserting two more keys should evict it.
	c2 := newTestCache(t, 2, clock)
	_ = c2.Set(ctx, "a", 1, 0)
	_ = c2.Set(ctx, "b", 2, 0)
	_ = c2.Has(ctx, "a")
	_ = c2.Set(ctx, "c", 3, 0)
	if c2.Has(ctx, "a") {
		t.Error("Has promoted entry in recency order")
	}

	// Has must not count as hit or miss.
	before := c.Stats()
	_ = c.Has(ctx, "a")
	_ = c.Has(ctx, "missing")
	after := c.Stats()
	if after.Hits != before.Hits || after.Misses != before.Misses {
		t.Errorf("Has changed hit/miss counters: %+v -> %+v", before, after)
	}
}

func TestBoundedCache_HasRemovesExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 4, clock)
	ctx := context.Background()

	_ = c.Set(ctx, "k", "v", time.Second)
	clock.Advance(2 * time.Second)

	if c.Has(ctx, "k") {
		t.Error("Has(expired) = true, want false")
	}
	if got := c.Stats().Expired; got != 1 {
		t.Errorf("Expired = %d, want 1", got)
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0", c.Size())
	}
}

func TestBoundedCache_ClearKeepsCounters(t *testing.T) {
	c := newTestCache(t, 4, newFakeClock())
	ctx := context.Background()

	_ = c.Set(ctx, "a", 1, 0)
	_ = c.Set(ctx, "b", 2, 0)
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "missing")

	if n := c.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size after Clear = %d, want 0", c.Size())
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 2 {
		t.Errorf("counters reset by Clear: %+v", stats)
	}
}

func TestBoundedCache_Cleanup(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 8, clock)
	ctx := context.Background()

	_ = c.Set(ctx, "short1", 1, time.Second)
	_ = c.Set(ctx, "short2", 2, time.Second)
	_ = c.Set(ctx, "long", 3, time.Hour)
	_ = c.Set(ctx, "pinned", 4, 0)

	clock.Advance(time.Minute)

	if n := c.Cleanup(); n != 2 {
		t.Errorf("Cleanup() = %d, want 2", n)
	}
	if got := c.Stats().Expired; got != 2 {
		t.Errorf("Expired = %d, want 2", got)
	}
	if !c.Has(ctx, "long") || !c.Has(ctx, "pinned") {
		t.Error("Cleanup removed live entries")
	}
	// Idempotent once reclaimed.
	if n := c.Cleanup(); n != 0 {
		t.Errorf("second Cleanup() = %d, want 0", n)
	}
}

func TestBoundedCache_ScheduledExpiry(t *testing.T) {
	clock := newFakeClock()

	// Collect scheduled callbacks so the test can fire them by hand.
	var mu sync.Mutex
	var pending []func()
	schedule := func(_ time.Duration, fn func()) func() {
		mu.Lock()
		pending = append(pending, fn)
		mu.Unlock()
		return func() {}
	}

	c, err := NewBounded(Config{MaxSize: 4, Clock: clock, Schedule: schedule})
	if err != nil {
		t.Fatalf("NewBounded() error = %v", err)
	}
	ctx := context.Background()

	_ = c.Set(ctx, "k", "v", time.Second)

	// Firing before the deadline is a no-op.
	mu.Lock()
	fire := pending[0]
	mu.Unlock()
	fire()
	if !c.Has(ctx, "k") {
		t.Fatal("scheduled callback removed a live entry")
	}

	clock.Advance(2 * time.Second)
	fire()
	if c.Size() != 0 {
		t.Error("scheduled callback did not reclaim expired entry")
	}
	if got := c.Stats().Expired; got != 1 {
		t.Errorf("Expired = %d, want 1", got)
	}
}

func TestBoundedCache_ScheduledExpiryIgnoresReset(t *testing.T) {
	clock := newFakeClock()

	var mu sync.Mutex
	var pending []func()
	schedule := func(_ time.Duration, fn func()) func() {
		mu.Lock()
		pending = append(pending, fn)
		mu.Unlock()
		return func() {}
	}

	c, err := NewBounded(Config{MaxSize: 4, Clock: clock, Schedule: schedule})
	if err != nil {
		t.Fatalf("NewBounded() error = %v", err)
	}
	ctx := context.Background()

	_ = c.Set(ctx, "k", "old", time.Second)
	_ = c.Set(ctx, "k", "new", time.Hour)
	clock.Advance(2 * time.Second)

	// The stale callback from the first Set must not remove the re-set entry.
	mu.Lock()
	stale := pending[0]
	mu.Unlock()
	stale()

	v, ok := c.Get(ctx, "k")
	if !ok || v != "new" {
		t.Errorf("Get(k) = (%v, %v), want (new, true)", v, ok)
	}
}

func TestBoundedCache_Stats(t *testing.T) {
	c := newTestCache(t, 4, newFakeClock())
	ctx := context.Background()

	if got := c.Stats().HitRate; got != 0 {
		t.Errorf("HitRate with no lookups = %v, want 0", got)
	}

	_ = c.Set(ctx, "k", "v", 0)
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "missing")
	_, _ = c.Get(ctx, "missing")

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 2 {
		t.Errorf("Hits/Misses = %d/%d, want 2/2", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", stats.HitRate)
	}
	if stats.Sets != 1 || stats.MaxSize != 4 || stats.Size != 1 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestBoundedCache_All(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, 8, clock)
	ctx := context.Background()

	_ = c.Set(ctx, "a", 1, 0)
	_ = c.Set(ctx, "b", 2, 0)
	_ = c.Set(ctx, "c", 3, time.Second)
	_, _ = c.Get(ctx, "a") // a becomes most recently used

	var keys []string
	for k := range c.All() {
		keys = append(keys, k)
	}
	want := []string{"b", "c", "a"}
	if len(keys) != len(want) {
		t.Fatalf("All() keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, keys[i], want[i])
		}
	}

	// Iteration must not touch recency order or counters.
	before := c.Stats()
	for range c.All() {
	}
	after := c.Stats()
	if after.Hits != before.Hits || after.Misses != before.Misses {
		t.Error("iteration changed hit/miss counters")
	}

	// Expired entries are skipped; restart observes the fresh state.
	clock.Advance(time.Minute)
	n := 0
	for range c.All() {
		n++
	}
	if n != 2 {
		t.Errorf("All() after expiry yields %d entries, want 2", n)
	}
}

func TestBoundedCache_AllEarlyBreak(t *testing.T) {
	c := newTestCache(t, 8, newFakeClock())
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_ = c.Set(ctx, k, k, 0)
	}

	n := 0
	for range c.All() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("early break yielded %d entries, want 1", n)
	}
}

func TestBoundedCache_OnEvent(t *testing.T) {
	clock := newFakeClock()
	var events []Event
	c, err := NewBounded(Config{
		MaxSize:  2,
		Clock:    clock,
		Schedule: NoSchedule,
		OnEvent:  func(ev Event) { events = append(events, ev) },
	})
	if err != nil {
		t.Fatalf("NewBounded() error = %v", err)
	}
	ctx := context.Background()

	_ = c.Set(ctx, "a", 1, 0)
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "missing")
	_ = c.Set(ctx, "b", 2, 0)
	_ = c.Set(ctx, "c", 3, 0) // evicts a

	counts := make(map[EventKind]int)
	for _, ev := range events {
		counts[ev.Kind]++
	}
	if counts[EventSet] != 3 || counts[EventHit] != 1 || counts[EventMiss] != 1 || counts[EventEvicted] != 1 {
		t.Errorf("event counts = %v", counts)
	}
}

func TestBoundedCache_ConcurrentAccess(t *testing.T) {
	c := newTestCache(t, 32, newFakeClock())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n))
			for j := 0; j < 100; j++ {
				_ = c.Set(ctx, key, j, 0)
				_, _ = c.Get(ctx, key)
				_ = c.Has(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if c.Size() > 32 {
		t.Errorf("Size = %d, want <= 32", c.Size())
	}
}
