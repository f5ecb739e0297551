package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/opd-ai/fxswitch/effect"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// CreateHook observes every factory invocation made by a Cache.
type CreateHook func(id effect.ID, err error)

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCreateHook registers a hook called after each factory invocation.
func WithCreateHook(hook CreateHook) CacheOption {
	return func(c *Cache) {
		c.onCreate = hook
	}
}

// Cache keeps at most one handle per effect.
//
// Entries are keyed by effect value. Concurrent GetOrCreate calls for the
// same uncached effect share one factory invocation. EvictAll empties and
// seals the cache; nothing is inserted afterwards.
type Cache struct {
	factory  Factory
	group    singleflight.Group
	onCreate CreateHook

	mu      sync.Mutex
	entries map[effect.ID]Handle
	sealed  bool
}

// NewCache creates an empty cache backed by factory.
func NewCache(factory Factory, opts ...CacheOption) *Cache {
	c := &Cache{
		factory: factory,
		entries: make(map[effect.ID]Handle),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached handle for id, if any.
func (c *Cache) Get(id effect.ID) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.entries[id]
	return h, ok
}

// Len returns the number of cached handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrCreate returns the cached handle for id, creating it on first use.
//
// The factory call is detached from ctx: if ctx ends first, GetOrCreate
// returns ctx.Err() while the creation finishes and lands in the cache.
func (c *Cache) GetOrCreate(ctx context.Context, id effect.ID) (Handle, error) {
	if h, ok, err := c.lookup(id); ok {
		return h, err
	}

	creation := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id.String(), func() (interface{}, error) {
		return c.create(creation, id)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) lookup(id effect.ID) (Handle, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return nil, true, ErrCacheClosed
	}
	if h, ok := c.entries[id]; ok {
		return h, true, nil
	}
	return nil, false, nil
}

func (c *Cache) create(ctx context.Context, id effect.ID) (Handle, error) {
	// A previous flight for the same key may have finished between lookup
	// and DoChan.
	if h, ok, err := c.lookup(id); ok {
		return h, err
	}

	h, err := c.factory.Create(ctx, id)
	if err == nil && h == nil {
		err = fmt.Errorf("factory returned no handle for %s", id)
	}
	if err != nil && !errors.Is(err, ErrCreation) {
		err = fmt.Errorf("%w: %s: %w", ErrCreation, id, err)
	}
	if c.onCreate != nil {
		c.onCreate(id, err)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.sealed {
		c.mu.Unlock()
		c.discard(h)
		return nil, ErrCacheClosed
	}
	c.entries[id] = h
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Cache.create",
		"effect":   id.String(),
	}).Debug("Processor cached")

	return h, nil
}

// discard releases a handle that finished creation after the cache was
// sealed.
func (c *Cache) discard(h Handle) {
	fields := logrus.Fields{
		"function": "Cache.discard",
		"effect":   h.Effect().String(),
	}
	if err := h.Close(); err != nil {
		logrus.WithFields(fields).WithError(err).Warn("Failed to close late processor")
	}
	if err := h.Destroy(context.Background()); err != nil {
		logrus.WithFields(fields).WithError(err).Warn("Failed to destroy late processor")
	}
	logrus.WithFields(fields).Info("Released processor created after cache eviction")
}

// EvictAll removes and returns every cached handle and seals the cache.
func (c *Cache) EvictAll() []Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sealed = true
	ids := make([]effect.ID, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	handles := make([]Handle, 0, len(ids))
	for _, id := range ids {
		handles = append(handles, c.entries[id])
	}
	c.entries = make(map[effect.ID]Handle)
	return handles
}
