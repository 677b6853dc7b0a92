package catalog

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xenking/techstore/internal/domain/voucher"
)

var _ voucher.Catalog = (*CachedSource)(nil)

const defaultRefreshTimeout = 10 * time.Second

// CachedSource keeps the last catalog fetched from src for TTL. Concurrent
// misses share one upstream call. When a refresh fails, data younger than
// TTL+MaxStale is served instead of the error.
type CachedSource struct {
	src      voucher.Catalog
	ttl      time.Duration
	maxStale time.Duration
	now      func() time.Time
	group    singleflight.Group
	// refreshTimeout bounds one upstream call.
	refreshTimeout time.Duration

	mu      sync.RWMutex
	items   []voucher.Voucher
	fetched time.Time
	loaded  bool
	// gen is bumped by Invalidate. Refreshes started under an older
	// generation do not store their result.
	gen uint64
}

// NewCachedSource wraps src with a TTL cache.
func NewCachedSource(src voucher.Catalog, ttl, maxStale time.Duration) *CachedSource {
	return &CachedSource{
		src:      src,
		ttl:      ttl,
		maxStale: maxStale,
		now:      time.Now,

		refreshTimeout: defaultRefreshTimeout,
	}
}

// List returns the cached catalog, refreshing it when older than TTL.
func (c *CachedSource) List(ctx context.Context) ([]voucher.Voucher, error) {
	c.mu.RLock()
	items, fetched, loaded, gen := c.items, c.fetched, c.loaded, c.gen
	c.mu.RUnlock()

	age := c.now().Sub(fetched)
	if loaded && age < c.ttl {
		return slices.Clone(items), nil
	}

	// Shared by every waiting caller, not tied to the one that started it.
	refreshCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(refreshCtx, c.refreshTimeout)
		defer cancel()

		fresh, err := c.src.List(refreshCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.items, c.fetched, c.loaded = fresh, c.now(), true
		}
		c.mu.Unlock()
		return fresh, nil
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return slices.Clone(res.Val.([]voucher.Voucher)), nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if loaded && age < c.ttl+c.maxStale {
		return slices.Clone(items), nil
	}
	return nil, err
}

// Invalidate drops the cached catalog so the next List refetches it.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	c.items, c.loaded = nil, false
	c.gen++
	c.mu.Unlock()
}
