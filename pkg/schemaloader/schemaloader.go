// Package schemaloader loads GraphQL SDL documents by path or URL with an
// LRU cache bounded by estimated byte size and TTL-based expiry. Two load
// strategies run in order: a schema-registry manifest lookup, then the raw
// file (or URL) itself.
package schemaloader

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jensneuse/abstractlogger"
	"github.com/tidwall/gjson"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

type Config struct {
	// MaxCacheBytes bounds the cache by the summed SDL sizes. Zero selects
	// the default of 8 MiB.
	MaxCacheBytes int64
	// TTL expires cached schemas; zero selects 5 minutes.
	TTL time.Duration
	// Client performs URL loads; timeouts are the caller's to configure.
	Client *http.Client
	// RegistryManifest is an optional JSON file mapping schema names to
	// their locations: {"schemas": {"name": "./schema.graphql"}}.
	RegistryManifest string
}

// Result reports one load. Cached distinguishes cache hits.
type Result struct {
	Schema   *ast.Schema
	Raw      string
	Cached   bool
	LoadTime time.Duration
}

type cacheEntry struct {
	schema  *ast.Schema
	raw     string
	expires time.Time
}

// Loader is caller-owned; construct one at the composition root and inject
// it. There is deliberately no package-level default instance.
type Loader struct {
	cfg   Config
	cache *lru.Cache
	log   abstractlogger.Logger

	mu         sync.Mutex
	totalBytes int64
}

func NewLoader(cfg Config, logger abstractlogger.Logger) (*Loader, error) {
	if cfg.MaxCacheBytes <= 0 {
		cfg.MaxCacheBytes = 8 << 20
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if logger == nil {
		logger = abstractlogger.Noop{}
	}
	cache, err := lru.New(256)
	if err != nil {
		return nil, err
	}
	return &Loader{cfg: cfg, cache: cache, log: logger}, nil
}

// Load resolves, fetches, parses, and caches one schema source.
func (l *Loader) Load(source string) (*Result, error) {
	started := time.Now()

	if v, ok := l.cache.Get(source); ok {
		entry := v.(*cacheEntry)
		if time.Now().Before(entry.expires) {
			return &Result{
				Schema:   entry.schema,
				Raw:      entry.raw,
				Cached:   true,
				LoadTime: time.Since(started),
			}, nil
		}
		l.evict(source, entry)
	}

	location := l.resolve(source)
	raw, err := l.fetch(location)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", source, err)
	}

	schema, gqlErr := gqlparser.LoadSchema(&ast.Source{Name: location, Input: raw})
	if gqlErr != nil {
		return nil, fmt.Errorf("parse schema %s: %w", source, gqlErr)
	}

	l.store(source, &cacheEntry{
		schema:  schema,
		raw:     raw,
		expires: time.Now().Add(l.cfg.TTL),
	})
	l.log.Debug("schema loaded",
		abstractlogger.String("source", source),
		abstractlogger.Any("bytes", len(raw)),
	)
	return &Result{Schema: schema, Raw: raw, LoadTime: time.Since(started)}, nil
}

// resolve applies the registry strategy: a manifest entry wins, otherwise
// the source is its own location.
func (l *Loader) resolve(source string) string {
	if l.cfg.RegistryManifest == "" {
		return source
	}
	data, err := os.ReadFile(l.cfg.RegistryManifest)
	if err != nil {
		l.log.Debug("registry manifest unavailable", abstractlogger.Error(err))
		return source
	}
	if entry := gjson.GetBytes(data, "schemas."+source); entry.Exists() {
		return entry.String()
	}
	return source
}

func (l *Loader) fetch(location string) (string, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		resp, err := l.cfg.Client.Get(location)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (l *Loader) store(source string, entry *cacheEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Add(source, entry)
	l.totalBytes += int64(len(entry.raw))
	for l.totalBytes > l.cfg.MaxCacheBytes && l.cache.Len() > 1 {
		_, v, ok := l.cache.RemoveOldest()
		if !ok {
			break
		}
		l.totalBytes -= int64(len(v.(*cacheEntry).raw))
	}
}

func (l *Loader) evict(source string, entry *cacheEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cache.Remove(source) {
		l.totalBytes -= int64(len(entry.raw))
	}
}
