// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

// Package respcache is the TTL-keyed response cache in front of the hub
// pipeline. Only data classes that tolerate staleness go through it; the
// dynamic (telemetry) tier bypasses it entirely - that is a policy, not a
// short TTL.
//
// Keys are namespaced per refresh tier so a dynamic-tier lookup can never be
// satisfied by static-tier data or vice versa. Expired entries are lazily
// evicted on the next lookup; the background sweep only bounds memory, it is
// not needed for correctness.
package respcache

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/rknightion/merakimirror/internal/metrics"
)

// Entry is a cached value with its expiration.
type Entry struct {
	Data      interface{}
	ExpiresAt time.Time
}

// Stats tracks cache performance counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	TotalKeys int64
}

// Cache is a thread-safe in-memory TTL store.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry

	statsMu sync.Mutex
	stats   Stats

	// now is swapped in tests to drive expiry deterministically.
	now func() time.Time

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// New creates an empty cache. If sweepInterval is positive, a background
// goroutine evicts expired entries on that cadence until Close is called.
func New(sweepInterval time.Duration) *Cache {
	c := &Cache{
		entries:   make(map[string]Entry),
		now:       time.Now,
		stopSweep: make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	}
	return c
}

// Close stops the background sweep, if any.
func (c *Cache) Close() {
	c.sweepOnce.Do(func() { close(c.stopSweep) })
}

// Get retrieves a value by key, lazily evicting it if expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss(key)
		return nil, false
	}

	if c.now().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		c.recordMiss(key)
		c.recordEvictions(1)
		return nil, false
	}

	c.recordHit(key)
	return entry.Data, true
}

// Set stores a value with the given TTL.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = Entry{
		Data:      value,
		ExpiresAt: c.now().Add(ttl),
	}
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.TotalKeys = total
	c.statsMu.Unlock()
}

// GetOrCompute returns the cached value for key if present and unexpired;
// otherwise it runs compute, stores the result with the TTL, and returns it.
// compute errors are not cached.
func (c *Cache) GetOrCompute(key string, ttl time.Duration, compute func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := compute()
	if err != nil {
		return nil, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// GetOrCompute is the typed variant of Cache.GetOrCompute.
func GetOrCompute[T any](c *Cache, key string, ttl time.Duration, compute func() (T, error)) (T, error) {
	v, err := c.GetOrCompute(key, ttl, func() (interface{}, error) { return compute() })
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("respcache: unexpected cached type %T for key %s", v, key)
	}
	return typed, nil
}

// Delete removes one entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.recordEvictions(1)
}

// Invalidate removes every entry whose key starts with prefix. Forced
// refreshes use this to make the next fetch observably hit the transport.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	var evictions int64
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			evictions++
		}
	}
	c.mu.Unlock()
	c.recordEvictions(evictions)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	evictions := int64(len(c.entries))
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.Evictions += evictions
	c.stats.TotalKeys = 0
	c.statsMu.Unlock()
}

// GetStats returns a snapshot of the counters.
func (c *Cache) GetStats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// sweepLoop periodically removes expired entries to bound memory.
func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopSweep:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := c.now()
	c.mu.Lock()
	var evictions int64
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			evictions++
		}
	}
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.Evictions += evictions
	c.stats.TotalKeys = total
	c.statsMu.Unlock()
}

func (c *Cache) recordHit(key string) {
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
	metrics.CacheRequests.WithLabelValues(namespaceOf(key), "hit").Inc()
}

func (c *Cache) recordMiss(key string) {
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
	metrics.CacheRequests.WithLabelValues(namespaceOf(key), "miss").Inc()
}

func (c *Cache) recordEvictions(n int64) {
	if n == 0 {
		return
	}
	c.statsMu.Lock()
	c.stats.Evictions += n
	c.statsMu.Unlock()
}

// Key builds a composite cache key: namespace (tier), hub identity,
// operation, and a compact hash of the parameter signature.
func Key(namespace, hubID, operation string, params interface{}) string {
	prefix := fmt.Sprintf("%s:%s:%s", namespace, hubID, operation)
	if params == nil {
		return prefix
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", prefix, params)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", prefix, hash[:16])
}

// NamespacePrefix returns the key prefix covering every entry of one
// namespace + hub pair, for use with Invalidate.
func NamespacePrefix(namespace, hubID string) string {
	return fmt.Sprintf("%s:%s:", namespace, hubID)
}

func namespaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "unknown"
}
