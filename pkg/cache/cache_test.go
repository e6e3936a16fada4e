// SPDX-License-Identifier: Apache-2.0
package cache

import (
	"fmt"
	"testing"
	"time"
)

func newTestCache(maxEntries int) *ResponseCache {
	return New(Config{
		Enabled:       true,
		DefaultTTL:    time.Minute,
		MaxEntries:    maxEntries,
		SweepInterval: time.Hour,
		StaleGrace:    time.Minute,
	})
}

func TestFingerprintParamOrder(t *testing.T) {
	a := NewFingerprint("search", map[string]interface{}{"q": "miranda", "court": "scotus"})
	b := NewFingerprint("search", map[string]interface{}{"court": "scotus", "q": "miranda"})
	if a != b {
		t.Errorf("expected identical fingerprints for permuted params")
	}

	c := NewFingerprint("search", map[string]interface{}{"q": "miranda"})
	if a == c {
		t.Errorf("expected different fingerprints for different params")
	}

	if NewFingerprint("courts", nil) != NewFingerprint("courts", map[string]interface{}{}) {
		t.Errorf("expected nil and empty params to collapse to the same fingerprint")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	c := newTestCache(10)
	c.Set("search", map[string]interface{}{"a": 1, "b": 2}, "result", 0)

	got, ok := c.Get("search", map[string]interface{}{"b": 2, "a": 1})
	if !ok {
		t.Fatalf("expected hit with permuted param order")
	}
	if got != "result" {
		t.Errorf("expected %q, got %v", "result", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(10)
	c.Set("opinions", nil, "doc", 100*time.Millisecond)

	if _, ok := c.Get("opinions", nil); !ok {
		t.Fatalf("expected immediate hit")
	}

	time.Sleep(150 * time.Millisecond)
	if _, ok := c.Get("opinions", nil); ok {
		t.Errorf("expected miss after TTL expiry")
	}
}

func TestLRUEviction(t *testing.T) {
	c := newTestCache(5)
	for i := 0; i < 5; i++ {
		c.Set("ep", map[string]interface{}{"i": i}, i, 0)
	}

	// Touch key 0 so key 1 becomes the LRU victim.
	if _, ok := c.Get("ep", map[string]interface{}{"i": 0}); !ok {
		t.Fatalf("expected hit for key 0")
	}

	c.Set("ep", map[string]interface{}{"i": 5}, 5, 0)

	if _, ok := c.Get("ep", map[string]interface{}{"i": 0}); !ok {
		t.Errorf("recently accessed key 0 should survive eviction")
	}
	if _, ok := c.Get("ep", map[string]interface{}{"i": 1}); ok {
		t.Errorf("least recently used key 1 should have been evicted")
	}
	for i := 2; i <= 5; i++ {
		if _, ok := c.Get("ep", map[string]interface{}{"i": i}); !ok {
			t.Errorf("key %d should still be present", i)
		}
	}
}

func TestGetStale(t *testing.T) {
	c := newTestCache(10)
	c.Set("dockets", map[string]interface{}{"id": 7}, "stale-doc", 50*time.Millisecond)

	time.Sleep(80 * time.Millisecond)

	if _, ok := c.Get("dockets", map[string]interface{}{"id": 7}); ok {
		t.Fatalf("expected regular Get to miss after expiry")
	}
	got, ok := c.GetStale("dockets", map[string]interface{}{"id": 7}, time.Second)
	if !ok {
		t.Fatalf("expected stale hit within window")
	}
	if got != "stale-doc" {
		t.Errorf("expected stale payload, got %v", got)
	}

	if _, ok := c.GetStale("dockets", map[string]interface{}{"id": 7}, time.Nanosecond); ok {
		t.Errorf("expected stale miss outside window")
	}
}

func TestDisabledMode(t *testing.T) {
	c := New(Config{Enabled: false})
	c.Set("search", nil, "v", 0)
	if _, ok := c.Get("search", nil); ok {
		t.Errorf("disabled cache must always miss")
	}
	if s := c.Stats(); s.Total != 0 {
		t.Errorf("disabled cache must stay empty, got %d entries", s.Total)
	}
}

func TestClearAndStats(t *testing.T) {
	c := newTestCache(10)
	c.Set("a", nil, 1, 0)
	c.Set("b", nil, 2, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	s := c.Stats()
	if s.Total != 2 || s.Valid != 1 || s.Expired != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.MaxSize != 10 {
		t.Errorf("expected max size 10, got %d", s.MaxSize)
	}

	c.Clear()
	if s := c.Stats(); s.Total != 0 {
		t.Errorf("expected empty cache after Clear, got %d", s.Total)
	}
}

func TestSweepRemovesDeadEntries(t *testing.T) {
	c := New(Config{
		Enabled:       true,
		DefaultTTL:    time.Minute,
		MaxEntries:    10,
		SweepInterval: time.Hour,
		StaleGrace:    10 * time.Millisecond,
	})
	c.Set("x", nil, 1, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if removed := c.sweep(); removed != 1 {
		t.Errorf("expected sweep to remove 1 entry, removed %d", removed)
	}
	if s := c.Stats(); s.Total != 0 {
		t.Errorf("expected no entries after sweep, got %d", s.Total)
	}
}

func TestStartStop(t *testing.T) {
	c := New(Config{
		Enabled:       true,
		DefaultTTL:    time.Minute,
		MaxEntries:    10,
		SweepInterval: 10 * time.Millisecond,
		StaleGrace:    0,
	})
	c.Start()
	c.Set("y", nil, 1, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	c.Stop()
	c.Stop() // idempotent

	if s := c.Stats(); s.Total != 0 {
		t.Errorf("expected background sweep to purge entry, got %d", s.Total)
	}
}

func BenchmarkCacheGet(b *testing.B) {
	c := newTestCache(1000)
	params := map[string]interface{}{"q": "habeas corpus", "page": 1}
	c.Set("search", params, "result", 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := c.Get("search", params); !ok {
			b.Fatal(fmt.Errorf("unexpected miss"))
		}
	}
}
