package search

import (
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rubiojr/craftsearch/pkg/core"
)

// resultCache keeps successful per-space block lists keyed by space, match
// expression and limit. Cached slices are shared and must not be modified.
//
// Every purge starts a new epoch. A result is only added if no purge happened
// since its search started, so a search that raced an index change cannot put
// the old rows back.
type resultCache struct {
	lru *expirable.LRU[string, []core.Block]

	mu    sync.Mutex
	epoch uint64
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size <= 0 {
		return nil
	}
	return &resultCache{lru: expirable.NewLRU[string, []core.Block](size, nil, ttl)}
}

func cacheKey(spaceID, match string, limit int) string {
	return spaceID + "\x00" + strconv.Itoa(limit) + "\x00" + match
}

func (c *resultCache) get(key string) ([]core.Block, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

// currentEpoch returns the epoch to pass to add for a search starting now.
func (c *resultCache) currentEpoch() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// add caches blocks unless the cache was purged after epoch.
func (c *resultCache) add(key string, blocks []core.Block, epoch uint64) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return false
	}
	c.lru.Add(key, blocks)
	return true
}

func (c *resultCache) purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.lru.Purge()
}

func (c *resultCache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
