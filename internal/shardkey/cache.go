// Package shardkey caches per-space sharding metadata behind a
// single-flight gate so the expensive cluster round trip runs at most
// once per process at a time.
package shardkey

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/shardq/shardq/model"
)

// Fetcher performs the cluster metadata round trip.
type Fetcher func(ctx context.Context) (map[string]model.ShardingInfo, error)

// Cache holds sharding metadata for all spaces.
//
// The cache populates at most once per epoch: the first caller fetches,
// concurrent callers wait on the in-flight fetch bounded by their own
// context, and only Invalidate triggers another fetch. A failed fetch
// leaves the cache unpopulated and is reported to every current waiter;
// the next caller starts a fresh attempt.
type Cache struct {
	fetch Fetcher

	group singleflight.Group

	mu        sync.RWMutex
	info      map[string]model.ShardingInfo
	populated bool
	epoch     uint64
}

// New builds a cache around a metadata fetcher.
func New(fetch Fetcher) *Cache {
	return &Cache{fetch: fetch}
}

// Key returns the sharding key definition for a space, nil when the space
// shards by primary key.
func (c *Cache) Key(ctx context.Context, space string) (*model.ShardingKeyDef, error) {
	info, err := c.space(ctx, space)
	if err != nil {
		return nil, err
	}
	return info.Key, nil
}

// Func returns the custom sharding function for a space, nil when the
// built-in hash applies.
func (c *Cache) Func(ctx context.Context, space string) (*model.ShardingFuncDef, error) {
	info, err := c.space(ctx, space)
	if err != nil {
		return nil, err
	}
	return info.Func, nil
}

// Invalidate drops all cached entries and opens a new epoch. The next
// caller refetches; a fetch already in flight cannot repopulate the old
// epoch.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.info = nil
	c.populated = false
	c.epoch++
	c.mu.Unlock()
}

func (c *Cache) space(ctx context.Context, space string) (model.ShardingInfo, error) {
	c.mu.RLock()
	if c.populated {
		info := c.info[space]
		c.mu.RUnlock()
		return info, nil
	}
	epoch := c.epoch
	c.mu.RUnlock()

	// The winning caller's context governs the fetch itself; losers only
	// wait, each bounded by its own deadline. A late joiner may time out
	// here while the fetch keeps running for the others.
	ch := c.group.DoChan("sharding_metadata", func() (any, error) {
		info, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.epoch == epoch {
			c.info = info
			c.populated = true
		}
		c.mu.Unlock()
		return info, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.ShardingInfo{}, res.Err
		}
		info, _ := res.Val.(map[string]model.ShardingInfo)
		return info[space], nil
	case <-ctx.Done():
		return model.ShardingInfo{}, ctx.Err()
	}
}
