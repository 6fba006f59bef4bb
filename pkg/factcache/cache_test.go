package factcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/prodflow/pkg/telemetry"
)

func newTestCache() *Cache {
	return New(Config{LocalTTL: time.Minute, LocalMaxSize: 100, FormatVersion: 1}, telemetry.New(telemetry.Config{ServiceName: "test"}))
}

func TestCache_PutThenGetHits(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	c.Put(ctx, "fp1", []byte("payload"))

	e, ok := c.Get(ctx, "prs", "fp1")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), e.Payload)
}

func TestCache_MissOnUnknownFingerprint(t *testing.T) {
	c := newTestCache()
	_, ok := c.Get(context.Background(), "prs", "nope")
	assert.False(t, ok)
}

func TestCache_FormatVersionMismatchIsMiss(t *testing.T) {
	c := newTestCache()
	ctx := context.Background()
	c.Put(ctx, "fp1", []byte("payload"))
	c.formatVersion = 2 // simulate a code upgrade bumping the format version

	_, ok := c.Get(ctx, "prs", "fp1")
	assert.False(t, ok)
}

func TestCache_GetOrBuild_CoalescesConcurrentBuilds(t *testing.T) {
	c := newTestCache()
	var buildCount int32
	var wg sync.WaitGroup

	build := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&buildCount, 1)
		time.Sleep(20 * time.Millisecond)
		return []byte("mined"), nil
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := c.GetOrBuild(context.Background(), "prs", "shared-fp", build)
			require.NoError(t, err)
			assert.Equal(t, []byte("mined"), payload)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&buildCount))
}

func TestCache_GetOrBuild_CachesResult(t *testing.T) {
	c := newTestCache()
	calls := 0
	build := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("v1"), nil
	}

	_, err := c.GetOrBuild(context.Background(), "prs", "fp-once", build)
	require.NoError(t, err)
	_, err = c.GetOrBuild(context.Background(), "prs", "fp-once", build)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}
