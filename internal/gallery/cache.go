package gallery

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Key builds the cohort cache key. Cohorts are identified by department and
// batch year only; section filtering happens downstream against the roster.
func Key(department string, batchYear int) string {
	return fmt.Sprintf("%s_%d", strings.TrimSpace(department), batchYear)
}

// FileName returns the gallery file name for a cohort.
func FileName(department string, batchYear int) string {
	return "gallery_" + Key(department, batchYear) + ".json"
}

// CacheStats is a point-in-time view of the cache for health reporting.
type CacheStats struct {
	Cached int      `json:"cached"`
	Hits   uint64   `json:"hits"`
	Misses uint64   `json:"misses"`
	Keys   []string `json:"keys,omitempty"`
}

type cacheEntry struct {
	ready   chan struct{}
	gallery Gallery
	err     error
}

// Cache loads gallery files on demand and keeps them in memory per cohort.
// Concurrent requests for the same cohort share a single load. A missing
// file is cached as an empty gallery until invalidated; a failed load is
// not cached, so the next request retries.
type Cache struct {
	dir      string
	logStats bool

	mu        sync.Mutex
	galleries map[string]*cacheEntry
	hits      uint64
	misses    uint64
}

// NewCache creates a cache reading gallery files from dir.
func NewCache(dir string, logStats bool) *Cache {
	return &Cache{
		dir:       dir,
		logStats:  logStats,
		galleries: make(map[string]*cacheEntry),
	}
}

// Get returns the cohort's gallery, loading it on first use.
func (c *Cache) Get(department string, batchYear int) (Gallery, error) {
	key := Key(department, batchYear)

	c.mu.Lock()
	if e, ok := c.galleries[key]; ok {
		c.hits++
		c.mu.Unlock()
		<-e.ready
		return e.gallery, e.err
	}

	e := &cacheEntry{ready: make(chan struct{})}
	c.galleries[key] = e
	c.misses++
	c.mu.Unlock()

	path := filepath.Join(c.dir, FileName(department, batchYear))
	e.gallery, e.err = c.load(key, path)
	close(e.ready)

	if e.err != nil {
		// Drop the entry so the next request retries
		c.mu.Lock()
		if c.galleries[key] == e {
			delete(c.galleries, key)
		}
		c.mu.Unlock()
	}
	return e.gallery, e.err
}

func (c *Cache) load(key, path string) (Gallery, error) {
	g, err := Load(path)
	if os.IsNotExist(err) {
		log.Printf("⚠️  No gallery file for %s (%s), using empty gallery", key, path)
		return Gallery{}, nil
	}
	if err != nil {
		return Gallery{}, err
	}

	if c.logStats {
		log.Printf("📦 Gallery %s loaded: %d identities, dim %d", key, g.Len(), g.Dim())
	}
	return g, nil
}

// Invalidate drops one cohort from the cache, reporting whether it was
// present. The next Get re-reads the file.
func (c *Cache) Invalidate(department string, batchYear int) bool {
	key := Key(department, batchYear)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.galleries[key]; !ok {
		return false
	}
	delete(c.galleries, key)
	return true
}

// InvalidateAll empties the cache and returns how many cohorts were dropped.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.galleries)
	c.galleries = make(map[string]*cacheEntry)
	return n
}

// Stats snapshots cache contents and hit counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.galleries))
	for k := range c.galleries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return CacheStats{
		Cached: len(keys),
		Hits:   c.hits,
		Misses: c.misses,
		Keys:   keys,
	}
}
