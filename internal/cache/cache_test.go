package cache

import (
	"testing"
	"time"
)

func TestLRUGetSet(t *testing.T) {
	c := NewLRU(4, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("empty cache should miss")
	}

	c.Set("a", 1)
	got, ok := c.Get("a")
	if !ok || got.(int) != 1 {
		t.Errorf("Get(a) = (%v, %v), want (1, true)", got, ok)
	}

	c.Set("a", 2)
	if got, _ := c.Get("a"); got.(int) != 2 {
		t.Errorf("Set should overwrite, got %v", got)
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewLRU(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	// Touch a so b becomes the oldest.
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a was recently used and should survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c was just inserted and should be present")
	}
	if size := c.Stats().Size; size != 2 {
		t.Errorf("size = %d, want capacity 2", size)
	}
}

func TestLRUTTLExpiry(t *testing.T) {
	c := NewLRU(4, 20*time.Millisecond)
	c.Set("a", 1)

	if _, ok := c.Get("a"); !ok {
		t.Fatal("fresh entry should hit")
	}

	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry should miss")
	}
	// Expired entries are removed on read.
	if size := c.Stats().Size; size != 0 {
		t.Errorf("size after expiry read = %d, want 0", size)
	}
}

func TestLRUSetRefreshesTTL(t *testing.T) {
	c := NewLRU(4, 50*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(30 * time.Millisecond)
	c.Set("a", 2)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("a"); !ok {
		t.Error("overwrite should reset the entry's TTL")
	}
}

func TestLRUDeleteAndClear(t *testing.T) {
	c := NewLRU(4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	c.Delete("a") // idempotent
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key should miss")
	}

	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Error("cleared cache should miss")
	}
	if size := c.Stats().Size; size != 0 {
		t.Errorf("size after clear = %d, want 0", size)
	}
}

func TestLRUStats(t *testing.T) {
	c := NewLRU(4, time.Minute)
	c.Set("a", 1)

	c.Get("a")       // hit
	c.Get("a")       // hit
	c.Get("missing") // miss

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 2 hits and 1 miss", stats)
	}
	if want := 2.0 / 3.0; stats.HitRate != want {
		t.Errorf("hit rate = %f, want %f", stats.HitRate, want)
	}
}
