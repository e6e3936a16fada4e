// SPDX-License-Identifier: Apache-2.0
// Package cache provides the in-memory response cache for upstream calls,
// with per-entry TTL, LRU eviction under a size cap, and a periodic sweep.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Config controls cache behavior.
type Config struct {
	// Enabled turns caching on. When false, Get always misses and Set is a no-op.
	Enabled bool

	// DefaultTTL applies to writes that do not override the TTL.
	DefaultTTL time.Duration

	// MaxEntries caps the entry count; the least-recently-used entry is
	// evicted before an insert that would exceed it.
	MaxEntries int

	// SweepInterval is how often the background sweep purges dead entries.
	SweepInterval time.Duration

	// StaleGrace is how long an expired entry remains resident for stale
	// fallback reads before the sweep or a lazy read removes it.
	StaleGrace time.Duration
}

// DefaultConfig returns the cache defaults used by the gateway.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		DefaultTTL:    5 * time.Minute,
		MaxEntries:    1000,
		SweepInterval: 60 * time.Second,
		StaleGrace:    10 * time.Minute,
	}
}

type entry struct {
	payload   interface{}
	storedAt  time.Time
	expiresAt time.Time
	access    uint64
}

// Stats reports cache occupancy.
type Stats struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Expired int `json:"expired"`
	MaxSize int `json:"max_size"`
}

// ResponseCache maps (endpoint, parameter-set) fingerprints to previously
// fetched responses. Safe for concurrent use. The sweep goroutine must be
// started with Start and stopped with Stop by whoever owns the instance.
type ResponseCache struct {
	cfg     Config
	mu      sync.Mutex
	entries map[Fingerprint]*entry
	counter uint64

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a ResponseCache. The sweep is not started until Start is called.
func New(cfg Config) *ResponseCache {
	if cfg.MaxEntries < 1 {
		cfg.MaxEntries = 1000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 60 * time.Second
	}
	return &ResponseCache{
		cfg:     cfg,
		entries: make(map[Fingerprint]*entry),
		done:    make(chan struct{}),
	}
}

// Get returns the cached value for the request, or ok=false on a miss.
// Entries past their expiry are treated as a miss; entries expired beyond the
// stale grace window are removed lazily on access.
func (c *ResponseCache) Get(endpoint string, params map[string]interface{}) (interface{}, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}
	fp := NewFingerprint(endpoint, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fp]
	if !ok {
		return nil, false
	}
	now := time.Now()
	if now.After(e.expiresAt) {
		if now.After(e.expiresAt.Add(c.cfg.StaleGrace)) {
			delete(c.entries, fp)
		}
		return nil, false
	}
	c.counter++
	e.access = c.counter
	return e.payload, true
}

// GetStale returns a value whose TTL has lapsed but whose expiry is within
// window, for fallback use. A still-valid entry is also returned.
func (c *ResponseCache) GetStale(endpoint string, params map[string]interface{}, window time.Duration) (interface{}, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}
	fp := NewFingerprint(endpoint, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fp]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt.Add(window)) {
		return nil, false
	}
	c.counter++
	e.access = c.counter
	return e.payload, true
}

// Set stores value under the request fingerprint. A ttl of 0 uses the
// cache default. Values are replaced, never mutated in place.
func (c *ResponseCache) Set(endpoint string, params map[string]interface{}, value interface{}, ttl time.Duration) {
	if !c.cfg.Enabled {
		return
	}
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	fp := NewFingerprint(endpoint, params)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fp]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		c.evictLRU()
	}
	c.counter++
	c.entries[fp] = &entry{
		payload:   value,
		storedAt:  now,
		expiresAt: now.Add(ttl),
		access:    c.counter,
	}
}

// Clear removes every entry.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Fingerprint]*entry)
}

// Stats returns a snapshot of occupancy counts.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	s := Stats{Total: len(c.entries), MaxSize: c.cfg.MaxEntries}
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			s.Expired++
		} else {
			s.Valid++
		}
	}
	return s
}

// evictLRU removes the entry with the minimum access counter.
// Must be called under lock.
func (c *ResponseCache) evictLRU() {
	var victim Fingerprint
	var min uint64
	first := true
	for fp, e := range c.entries {
		if first || e.access < min {
			victim = fp
			min = e.access
			first = false
		}
	}
	if !first {
		delete(c.entries, victim)
	}
}

// Start launches the periodic sweep that purges entries expired beyond the
// stale grace window. Callers own the lifecycle and must call Stop.
func (c *ResponseCache) Start() {
	if !c.cfg.Enabled {
		return
	}
	go func() {
		ticker := time.NewTicker(c.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				removed := c.sweep()
				if removed > 0 {
					slog.Debug("cache.sweep", slog.Int("removed", removed))
				}
			}
		}
	}()
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (c *ResponseCache) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *ResponseCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for fp, e := range c.entries {
		if now.After(e.expiresAt.Add(c.cfg.StaleGrace)) {
			delete(c.entries, fp)
			removed++
		}
	}
	return removed
}
