// Package cache keeps recent search results (and poster images) in a
// two-tier cache: a bounded in-memory LRU in front of one file per entry on
// disk. Disk file mtime is the authoritative stored-at timestamp.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"mteam-client/internal/domain"
)

const (
	DefaultTTL       = 300 * time.Second
	defaultCapacity  = 100
	memoryCostLimit  = 50 * 1024 * 1024
	diskQuota        = 200 * 1024 * 1024
	cacheFileSuffix  = ".cache"
	imageFileSuffix  = ".img"
	sweepInterval    = 10 * time.Minute
)

// ResultCache is safe for concurrent use. Entries are never mutated in
// place; a put replaces the whole entry.
type ResultCache struct {
	dir    string
	ttl    time.Duration
	quota  int64
	memory *lru
	logger *logrus.Logger
	now    func() time.Time
}

// Option adjusts cache construction; used by tests to shrink limits and
// control time.
type Option func(*ResultCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *ResultCache) { c.ttl = ttl }
}

func WithQuota(quota int64) Option {
	return func(c *ResultCache) { c.quota = quota }
}

func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

// New creates the cache directory if needed and runs one maintenance sweep.
func New(dir string, logger *logrus.Logger, opts ...Option) (*ResultCache, error) {
	if logger == nil {
		logger = logrus.New()
	}
	c := &ResultCache{
		dir:    dir,
		ttl:    DefaultTTL,
		quota:  diskQuota,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.memory = newLRU(defaultCapacity, memoryCostLimit, c.ttl, c.now)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c.Sweep()
	return c, nil
}

// StartMaintenance sweeps periodically until the context is cancelled.
func (c *ResultCache) StartMaintenance(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Get returns the cached page for the query, or nil on a miss. Expired
// entries are purged on the way out; a corrupt disk entry is a miss.
func (c *ResultCache) Get(query domain.SearchQuery) *domain.ResultPage {
	key := query.CacheKey()
	if v, ok := c.memory.get(key); ok {
		if page, ok := v.(*domain.ResultPage); ok {
			return page
		}
	}
	return c.loadFromDisk(key)
}

// Put stores the page in both tiers. The disk write is best effort.
func (c *ResultCache) Put(query domain.SearchQuery, page *domain.ResultPage) {
	key := query.CacheKey()
	c.memory.set(key, page, pageCost(page))

	data, err := json.Marshal(page)
	if err != nil {
		c.logger.Warnf("encode cache entry %s: %v", key, err)
		return
	}
	if err := writeFileAtomic(c.filePath(key, cacheFileSuffix), data); err != nil {
		c.logger.Warnf("write cache entry %s: %v", key, err)
	}
}

// PutImage caches raw image bytes for a URL.
func (c *ResultCache) PutImage(url string, data []byte) {
	key := "img_" + url
	c.memory.set(key, data, int64(len(data)))
	if err := writeFileAtomic(c.filePath(key, imageFileSuffix), data); err != nil {
		c.logger.Warnf("write image cache %s: %v", url, err)
	}
}

// GetImage returns cached image bytes, or nil.
func (c *ResultCache) GetImage(url string) []byte {
	key := "img_" + url
	if v, ok := c.memory.get(key); ok {
		if data, ok := v.([]byte); ok {
			return data
		}
	}

	path := c.filePath(key, imageFileSuffix)
	if c.expiredOnDisk(path) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	c.memory.set(key, data, int64(len(data)))
	return data
}

// Clear drops every memory entry and deletes every file in the cache dir.
func (c *ResultCache) Clear() {
	c.memory.clear()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Warnf("read cache dir: %v", err)
		return
	}
	for _, entry := range entries {
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			c.logger.Warnf("remove cache file %s: %v", entry.Name(), err)
		}
	}
}

// Sweep deletes disk entries older than the TTL, then wipes the whole cache
// if what remains still exceeds the disk quota.
func (c *ResultCache) Sweep() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}

	cutoff := c.now().Add(-c.ttl)
	var total int64
	for _, entry := range entries {
		path := filepath.Join(c.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				c.logger.Warnf("sweep cache file %s: %v", entry.Name(), err)
			}
			continue
		}
		total += info.Size()
	}

	if total > c.quota {
		c.logger.Infof("cache disk usage %d exceeds quota %d, clearing", total, c.quota)
		c.Clear()
	}
}

func (c *ResultCache) loadFromDisk(key string) *domain.ResultPage {
	path := c.filePath(key, cacheFileSuffix)
	if c.expiredOnDisk(path) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var page domain.ResultPage
	if err := json.Unmarshal(data, &page); err != nil {
		// corrupt entry: drop it and report a miss
		_ = os.Remove(path)
		return nil
	}

	c.memory.set(key, &page, pageCost(&page))
	return &page
}

// expiredOnDisk checks the file's mtime against the TTL, deleting it when
// stale. Returns true when the caller should treat the path as absent.
func (c *ResultCache) expiredOnDisk(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	if c.now().Sub(info.ModTime()) > c.ttl {
		_ = os.Remove(path)
		return true
	}
	return false
}

func (c *ResultCache) filePath(key, suffix string) string {
	h := fnv.New64a()
	h.Write([]byte(key))
	return filepath.Join(c.dir, fmt.Sprintf("%016x%s", h.Sum64(), suffix))
}

// writeFileAtomic replaces the destination in one rename so a concurrent
// reader never observes a partial entry.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func pageCost(page *domain.ResultPage) int64 {
	var cost int64
	for _, r := range page.Releases {
		cost += int64(len(r.Name) + len(r.SmallDescr) + len(r.Size) + 128)
	}
	if cost == 0 {
		cost = 64
	}
	return cost
}
