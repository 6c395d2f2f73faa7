// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/AMD-AGI/primus-papi/pkg/model"
)

const (
	metadataTTL = 6 * time.Hour
	listTTL     = 15 * time.Minute
)

// Cached wraps a Catalog with per-operation TTLs and request coalescing:
// concurrent requests for the same key share one upstream fetch. Expiry is
// checked against an injectable clock so tests can advance time.
type Cached struct {
	inner Catalog
	store *gocache.Cache
	group singleflight.Group
	now   func() time.Time
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

func NewCached(inner Catalog) *Cached {
	return &Cached{
		inner: inner,
		// go-cache's own janitor evicts long-dead entries; freshness is
		// decided against our clock below.
		store: gocache.New(metadataTTL, metadataTTL*2),
		now:   time.Now,
	}
}

// SetClock replaces the expiry clock. Test hook only.
func (c *Cached) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Cached) get(key string) (interface{}, bool) {
	raw, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	entry := raw.(cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.store.Delete(key)
		return nil, false
	}
	return entry.value, true
}

func (c *Cached) put(key string, value interface{}, ttl time.Duration) {
	c.store.Set(key, cacheEntry{value: value, expiresAt: c.now().Add(ttl)}, 2*ttl)
}

// fetch returns the cached value or coalesces a single upstream call per
// key. Errors are never cached.
func (c *Cached) fetch(key string, ttl time.Duration, load func() (interface{}, error)) (interface{}, error) {
	if value, ok := c.get(key); ok {
		return value, nil
	}
	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		if value, ok := c.get(key); ok {
			return value, nil
		}
		value, err := load()
		if err != nil {
			return nil, err
		}
		c.put(key, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func listKey(kind model.Kind) string     { return fmt.Sprintf("list/%s", kind) }
func detailKey(kind model.Kind) string   { return fmt.Sprintf("detail/%s", kind) }
func metadataKey(kind model.Kind, name string) string {
	return fmt.Sprintf("metadata/%s/%s", kind, name)
}
func schemaKey(kind model.Kind, name string) string {
	return fmt.Sprintf("schema/%s/%s", kind, name)
}

func (c *Cached) List(ctx context.Context, kind model.Kind) ([]string, error) {
	value, err := c.fetch(listKey(kind), listTTL, func() (interface{}, error) {
		return c.inner.List(ctx, kind)
	})
	if err != nil {
		return nil, err
	}
	return value.([]string), nil
}

func (c *Cached) Detail(ctx context.Context, kind model.Kind) ([]model.CatalogSummary, error) {
	value, err := c.fetch(detailKey(kind), listTTL, func() (interface{}, error) {
		return c.inner.Detail(ctx, kind)
	})
	if err != nil {
		return nil, err
	}
	return value.([]model.CatalogSummary), nil
}

func (c *Cached) Metadata(ctx context.Context, kind model.Kind, name string) (*model.CatalogItem, error) {
	value, err := c.fetch(metadataKey(kind, name), metadataTTL, func() (interface{}, error) {
		return c.inner.Metadata(ctx, kind, name)
	})
	if err != nil {
		return nil, err
	}
	return value.(*model.CatalogItem), nil
}

func (c *Cached) ConfigTemplate(ctx context.Context, kind model.Kind, name string) (ConfigSchema, error) {
	value, err := c.fetch(schemaKey(kind, name), metadataTTL, func() (interface{}, error) {
		return c.inner.ConfigTemplate(ctx, kind, name)
	})
	if err != nil {
		return nil, err
	}
	return value.(ConfigSchema), nil
}

// Refresh drops the matching keys, then forwards so a stateful inner
// variant can refetch eagerly if it wants to.
func (c *Cached) Refresh(ctx context.Context, kind model.Kind, name string) error {
	prefix := ""
	switch {
	case kind == "" && name == "":
		c.store.Flush()
	case name == "":
		prefix = fmt.Sprintf("/%s", kind)
	default:
		prefix = fmt.Sprintf("/%s/%s", kind, name)
	}
	if prefix != "" {
		for key := range c.store.Items() {
			if strings.HasSuffix(key, prefix) || strings.Contains(key, prefix+"/") {
				c.store.Delete(key)
			}
		}
		// item-level refresh also invalidates the kind's list views
		if name != "" {
			c.store.Delete(listKey(kind))
			c.store.Delete(detailKey(kind))
		}
	}
	return c.inner.Refresh(ctx, kind, name)
}
