// Package cache holds the two best-effort result caches in front of the
// durable store: a process-local TTL map (L1) and a shared keyspace (L2).
// Neither is a correctness mechanism; either may be empty at any time.
package cache

import (
	"encoding/json"
	"sync"
	"time"

	"encore.dev/rlog"
)

// Entry is a completed, reusable result. JobID is the durable row the
// content came from, so cache hits hand back the same polling handle as the
// original execution.
type Entry struct {
	Key          string          `json:"key"`
	JobID        string          `json:"job_id"`
	Content      json.RawMessage `json:"content"`
	ArtifactType string          `json:"artifact_type"`
	Cost         int64           `json:"cost"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// TTLTable maps artifact types to their reuse window. Unknown artifact
// types fall back to Default.
type TTLTable struct {
	Default    time.Duration
	ByArtifact map[string]time.Duration
}

// TTLFor returns the configured TTL for an artifact type.
func (t TTLTable) TTLFor(artifactType string) time.Duration {
	if ttl, ok := t.ByArtifact[artifactType]; ok {
		return ttl
	}
	return t.Default
}

// DefaultTTLTable reflects how quickly each artifact's content goes stale.
// Timeless artifacts keep for a day; period-scoped ones refresh hourly.
func DefaultTTLTable() TTLTable {
	return TTLTable{
		Default: time.Hour,
		ByArtifact: map[string]time.Duration{
			"life-summary":  24 * time.Hour,
			"year-forecast": time.Hour,
			"day-forecast":  10 * time.Minute,
		},
	}
}

// ResultCache is the process-local L1. Expired entries are evicted lazily on
// read and in bulk by Sweep, which an Encore cron job drives at an interval
// coarser than any TTL.
type ResultCache struct {
	mu    sync.RWMutex
	byKey map[string]*Entry
	ttls  TTLTable
	now   func() time.Time
}

// NewResultCache creates an empty cache with the given TTL table.
func NewResultCache(ttls TTLTable) *ResultCache {
	return &ResultCache{
		byKey: make(map[string]*Entry),
		ttls:  ttls,
		now:   time.Now,
	}
}

// Get returns the live entry for key, or (nil, false). An expired entry is
// evicted on the spot and never returned.
func (c *ResultCache) Get(key string) (*Entry, bool) {
	c.mu.RLock()
	entry, ok := c.byKey[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().After(entry.ExpiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// replaced the entry with a fresh one.
		if current, ok := c.byKey[key]; ok && c.now().After(current.ExpiresAt) {
			delete(c.byKey, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return entry, true
}

// Set stores a completed result under key with the artifact type's TTL.
func (c *ResultCache) Set(key, jobID string, content json.RawMessage, artifactType string, cost int64) {
	now := c.now()
	entry := &Entry{
		Key:          key,
		JobID:        jobID,
		Content:      content,
		ArtifactType: artifactType,
		Cost:         cost,
		CreatedAt:    now,
		ExpiresAt:    now.Add(c.ttls.TTLFor(artifactType)),
	}

	c.mu.Lock()
	c.byKey[key] = entry
	c.mu.Unlock()
}

// Invalidate removes an entry regardless of expiry.
func (c *ResultCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.byKey, key)
	c.mu.Unlock()
}

// Sweep evicts all expired entries and returns how many were removed.
func (c *ResultCache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, entry := range c.byKey {
		if now.After(entry.ExpiresAt) {
			delete(c.byKey, key)
			evicted++
		}
	}
	if evicted > 0 {
		rlog.Debug("result cache sweep", "evicted", evicted, "remaining", len(c.byKey))
	}
	return evicted
}

// Len reports the current number of entries, live or expired.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byKey)
}
