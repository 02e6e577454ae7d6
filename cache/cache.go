// Package cache keeps recently produced run reports in memory so the
// API can answer report lookups and repeat probes of the same target
// without re-running the channels.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/leakgate/models"
)

// entry holds a cached report with its creation timestamp.
type entry struct {
	report    *models.RunReport
	createdAt time.Time
}

// Cache is an in-memory run-report cache. It is safe for concurrent
// use. Reports are retrievable both by run ID and by target key.
type Cache struct {
	mu         sync.RWMutex
	byRun      map[string]*entry
	byTarget   map[string]*entry
	maxEntries int
}

// New creates a Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict entries older
// than 1 hour.
func New(maxEntries int) *Cache {
	c := &Cache{
		byRun:      make(map[string]*entry),
		byTarget:   make(map[string]*entry),
		maxEntries: maxEntries,
	}
	go c.cleanupLoop()
	return c
}

// TargetKey generates the cache key for a probe of one target with one
// channel configuration.
func TargetKey(targetURL string, disableArchive bool) string {
	h := sha256.New()
	h.Write([]byte(targetURL))
	h.Write([]byte("|"))
	if disableArchive {
		h.Write([]byte("noarchive"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// GetRun retrieves a cached report by run ID.
func (c *Cache) GetRun(runID string) (*models.RunReport, bool) {
	c.mu.RLock()
	e, ok := c.byRun[runID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.report, true
}

// GetTarget retrieves a cached report by target key if it is younger
// than maxAge. maxAge <= 0 disables the lookup.
func (c *Cache) GetTarget(key string, maxAge time.Duration) (*models.RunReport, bool) {
	if maxAge <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.byTarget[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > maxAge {
		return nil, false
	}
	return e.report, true
}

// Put stores a report under both its run ID and the given target key.
// If the cache is at capacity, a random run entry is evicted to make
// room.
func (c *Cache) Put(targetKey string, report *models.RunReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if len(c.byRun) >= c.maxEntries {
		for k, e := range c.byRun {
			delete(c.byRun, k)
			c.dropTargetEntry(e)
			break
		}
	}

	e := &entry{report: report, createdAt: time.Now()}
	c.byRun[report.RunID] = e
	if targetKey != "" {
		c.byTarget[targetKey] = e
	}
}

// dropTargetEntry removes the target mapping pointing at e. Caller
// holds the lock.
func (c *Cache) dropTargetEntry(e *entry) {
	for k, te := range c.byTarget {
		if te == e {
			delete(c.byTarget, k)
			return
		}
	}
}

// cleanupLoop evicts entries older than 1 hour every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-1 * time.Hour)
		c.mu.Lock()
		for k, e := range c.byRun {
			if e.createdAt.Before(cutoff) {
				delete(c.byRun, k)
				c.dropTargetEntry(e)
			}
		}
		c.mu.Unlock()
	}
}
