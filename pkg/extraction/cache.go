package extraction

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// fileCache memoizes per-file scan results keyed by content hash, so
// repeated runs over an unchanged tree skip re-parsing. Entries for changed
// content are replaced wholesale.
type fileCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	sum     uint64
	results []astResult
}

func newFileCache() *fileCache {
	return &fileCache{entries: make(map[string]cacheEntry)}
}

func (c *fileCache) get(file, text string) ([]astResult, bool) {
	sum := xxhash.Sum64String(text)
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[file]
	if !ok || e.sum != sum {
		return nil, false
	}
	return e.results, true
}

func (c *fileCache) put(file, text string, results []astResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[file] = cacheEntry{sum: xxhash.Sum64String(text), results: results}
}
