package cache

import (
	"context"
	"testing"
	"time"
)

func TestNormalizeQuery(t *testing.T) {
	cases := map[string]string{
		"What do people think about Go?":   "what do people think about go",
		"  what do   people think about go!!! ": "what do people think about go",
		"what do people think about go.":   "what do people think about go",
	}
	for in, want := range cases {
		if got := NormalizeQuery(in); got != want {
			t.Fatalf("NormalizeQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLRUGetSet(t *testing.T) {
	c := NewLRU(10, time.Minute)
	c.Set("k", "v")
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss for absent key")
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	// Touch a so b becomes the eviction candidate.
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected hit for a")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("expected c to be present")
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU(10, time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("k", "v")

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not removed lazily, len = %d", c.Len())
	}
}

func TestLRUCleanupExpired(t *testing.T) {
	c := NewLRU(10, time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("old", 1)

	c.now = func() time.Time { return base.Add(30 * time.Second) }
	c.Set("fresh", 2)

	c.now = func() time.Time { return base.Add(70 * time.Second) }
	removed := c.CleanupExpired()
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatalf("fresh entry should survive sweep")
	}
}

func TestLRUStats(t *testing.T) {
	c := NewLRU(10, time.Minute)
	c.Set("k", "v")
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	if stats["hits"].(uint64) != 1 || stats["misses"].(uint64) != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	if stats["hit_rate"].(float64) != 0.5 {
		t.Fatalf("hit_rate = %v, want 0.5", stats["hit_rate"])
	}
}

func TestQueryCacheSharesNormalizedSlot(t *testing.T) {
	qc := NewQueryCache(&memoryStore{lru: NewLRU(10, time.Minute)})
	ctx := context.Background()

	if err := qc.Set(ctx, "What is Go?", "answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := qc.Get(ctx, "  what is   go ")
	if !ok || got != "answer" {
		t.Fatalf("normalized variant should hit: %v, %v", got, ok)
	}
}
