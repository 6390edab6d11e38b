package analyzer

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqltypes"
)

type cacheEntry struct {
	mtime time.Time
	file  *AnalyzedFile
}

// Cache is a copy-on-write, atomically-swapped map keyed by canonical path.
// Analyzed files and compiled templates share this pattern throughout the
// pipeline: readers never lock, a writer replaces the whole map on change.
type Cache struct {
	m atomic.Pointer[map[string]cacheEntry]

	// OnInvalidate, if set, is called whenever a path is re-analyzed or
	// dropped — the hook the liveview hub uses to notify connected clients.
	OnInvalidate func(path string)

	// Distributed, if set, backs invalidation across multiple sqlpage
	// instances sharing one web_root (e.g. behind a load balancer): each
	// process still keeps its own in-memory map for lock-free reads, but
	// checks Distributed for a version token newer than what it holds
	// before trusting a locally-cached entry.
	Distributed DistributedBacking
}

// DistributedBacking is the subset of pkg/cache.Provider the analyzer cache
// needs: a byte-value key/value store used to hold the SourceHash last
// written for a path. Tokens are written with ttl 0, which pkg/cache
// providers replace with their DefaultTTL; once a token has expired, Get
// misses and the locally-cached entry is trusted.
type DistributedBacking interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func NewCache() *Cache {
	c := &Cache{}
	empty := map[string]cacheEntry{}
	c.m.Store(&empty)
	return c
}

func distributedKey(path string) string { return "sqlpage:analyzed:" + path }

// Analyze loads path from disk, analyzing it if absent from the cache or if
// its mtime has advanced since the cached entry, and stores the fresh result.
// When Distributed is configured, a locally-fresh entry is still discarded if
// the distributed version token no longer matches the entry's SourceHash —
// another instance re-analyzed path and published a newer token.
func (c *Cache) Analyze(path string, dialect sqltypes.Dialect) (*AnalyzedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	mtime := info.ModTime()

	wasCached := false
	if m := c.m.Load(); m != nil {
		if entry, ok := (*m)[path]; ok {
			wasCached = true
			if entry.mtime.Equal(mtime) && c.distributedTokenMatches(path, entry.file.SourceHash) {
				return entry.file, nil
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	af, err := AnalyzeSource(path, string(data), dialect)
	if err != nil {
		return af, err
	}

	for {
		old := c.m.Load()
		next := make(map[string]cacheEntry, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[path] = cacheEntry{mtime: mtime, file: af}
		if c.m.CompareAndSwap(old, &next) {
			break
		}
	}
	c.publishDistributedToken(path, af.SourceHash)
	if wasCached && c.OnInvalidate != nil {
		c.OnInvalidate(path)
	}
	return af, nil
}

func (c *Cache) distributedTokenMatches(path, sourceHash string) bool {
	if c.Distributed == nil {
		return true
	}
	token, ok := c.Distributed.Get(context.Background(), distributedKey(path))
	if !ok {
		return true // nothing published yet — trust the local cache
	}
	return string(token) == sourceHash
}

func (c *Cache) publishDistributedToken(path, sourceHash string) {
	if c.Distributed == nil {
		return
	}
	_ = c.Distributed.Set(context.Background(), distributedKey(path), []byte(sourceHash), 0)
}

// Invalidate drops a single path so the next Analyze call re-reads it.
func (c *Cache) Invalidate(path string) {
	for {
		old := c.m.Load()
		if _, ok := (*old)[path]; !ok {
			return
		}
		next := make(map[string]cacheEntry, len(*old))
		for k, v := range *old {
			if k != path {
				next[k] = v
			}
		}
		if c.m.CompareAndSwap(old, &next) {
			if c.OnInvalidate != nil {
				c.OnInvalidate(path)
			}
			return
		}
	}
}
