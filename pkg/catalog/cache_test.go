// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

// countingCatalog wraps Static and counts upstream hits.
type countingCatalog struct {
	*Static
	metadataCalls int64
	listCalls     int64
}

func (c *countingCatalog) Metadata(ctx context.Context, kind model.Kind, name string) (*model.CatalogItem, error) {
	atomic.AddInt64(&c.metadataCalls, 1)
	return c.Static.Metadata(ctx, kind, name)
}

func (c *countingCatalog) List(ctx context.Context, kind model.Kind) ([]string, error) {
	atomic.AddInt64(&c.listCalls, 1)
	return c.Static.List(ctx, kind)
}

func newCountingCached() (*countingCatalog, *Cached) {
	counting := &countingCatalog{
		Static: NewStatic([]model.CatalogItem{demoItem()}, nil),
	}
	return counting, NewCached(counting)
}

func TestCached_MetadataTTL(t *testing.T) {
	counting, cached := newCountingCached()
	ctx := context.Background()

	now := time.Now()
	cached.SetClock(func() time.Time { return now })

	_, err := cached.Metadata(ctx, model.KindModule, "demo-app")
	require.NoError(t, err)
	_, err = cached.Metadata(ctx, model.KindModule, "demo-app")
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&counting.metadataCalls))

	// under the 6h TTL: still cached
	now = now.Add(5 * time.Hour)
	_, err = cached.Metadata(ctx, model.KindModule, "demo-app")
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&counting.metadataCalls))

	// past it: refetched
	now = now.Add(2 * time.Hour)
	_, err = cached.Metadata(ctx, model.KindModule, "demo-app")
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&counting.metadataCalls))
}

func TestCached_ListTTLShorterThanMetadata(t *testing.T) {
	counting, cached := newCountingCached()
	ctx := context.Background()

	now := time.Now()
	cached.SetClock(func() time.Time { return now })

	_, err := cached.List(ctx, model.KindModule)
	require.NoError(t, err)
	now = now.Add(16 * time.Minute)
	_, err = cached.List(ctx, model.KindModule)
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&counting.listCalls))
}

func TestCached_RefreshInvalidates(t *testing.T) {
	counting, cached := newCountingCached()
	ctx := context.Background()

	_, err := cached.Metadata(ctx, model.KindModule, "demo-app")
	require.NoError(t, err)
	require.NoError(t, cached.Refresh(ctx, model.KindModule, "demo-app"))
	_, err = cached.Metadata(ctx, model.KindModule, "demo-app")
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&counting.metadataCalls))
}

func TestCached_RefreshAll(t *testing.T) {
	counting, cached := newCountingCached()
	ctx := context.Background()

	_, _ = cached.Metadata(ctx, model.KindModule, "demo-app")
	_, _ = cached.List(ctx, model.KindModule)
	require.NoError(t, cached.Refresh(ctx, "", ""))
	_, _ = cached.Metadata(ctx, model.KindModule, "demo-app")
	_, _ = cached.List(ctx, model.KindModule)

	assert.Equal(t, int64(2), atomic.LoadInt64(&counting.metadataCalls))
	assert.Equal(t, int64(2), atomic.LoadInt64(&counting.listCalls))
}

func TestCached_ErrorsNotCached(t *testing.T) {
	counting, cached := newCountingCached()
	ctx := context.Background()

	_, err := cached.Metadata(ctx, model.KindModule, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	_, err = cached.Metadata(ctx, model.KindModule, "missing")
	require.Error(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&counting.metadataCalls))
}

// slowCatalog blocks metadata fetches until released, to observe
// coalescing.
type slowCatalog struct {
	*Static
	calls   int64
	release chan struct{}
}

func (c *slowCatalog) Metadata(ctx context.Context, kind model.Kind, name string) (*model.CatalogItem, error) {
	atomic.AddInt64(&c.calls, 1)
	<-c.release
	return c.Static.Metadata(ctx, kind, name)
}

func TestCached_SingleFlight(t *testing.T) {
	slow := &slowCatalog{
		Static:  NewStatic([]model.CatalogItem{demoItem()}, nil),
		release: make(chan struct{}),
	}
	cached := NewCached(slow)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.Metadata(ctx, model.KindModule, "demo-app")
			assert.NoError(t, err)
		}()
	}
	// let the goroutines pile onto the same key, then release
	time.Sleep(50 * time.Millisecond)
	close(slow.release)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&slow.calls))
}
