package factcache

import (
	"context"
	"fmt"
	"path"

	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/catherinevee/prodflow/pkg/obslog"
)

// BuildFunc mines the facts for fingerprint when the cache misses.
type BuildFunc func(ctx context.Context) ([]byte, error)

// GetOrBuild returns the cached entry for fingerprint, or runs build and
// caches its result. Concurrent callers for the same fingerprint coalesce
// on a single in-flight build (spec §5's keyed-lock requirement) instead of
// mining the same facts twice. When the Cache carries an etcd client,
// builds additionally coalesce across processes: the first caller to reach
// a distributed lease checks the cache again before mining, so a second
// heater process racing on the same fingerprint picks up the first
// process's result instead of repeating the build.
func (c *Cache) GetOrBuild(ctx context.Context, topic, fingerprint string, build BuildFunc) ([]byte, error) {
	if e, ok := c.Get(ctx, topic, fingerprint); ok {
		return e.Payload, nil
	}

	if c.etcdClient != nil {
		release, err := c.acquireDistributedBuildLease(ctx, fingerprint)
		if err != nil {
			c.log.Warn("factcache: distributed build lease unavailable, coalescing in-process only", obslog.Any("error", err.Error()))
		} else {
			defer release()
			if e, ok := c.Get(ctx, topic, fingerprint); ok {
				return e.Payload, nil
			}
		}
	}

	fut, leader := c.claimBuild(fingerprint)
	if leader {
		payload, err := build(ctx)
		fut.err = err
		if err == nil {
			fut.entry = Entry{Payload: payload, FormatVersion: c.formatVersion}
			c.Put(ctx, fingerprint, payload)
		}
		c.releaseBuild(fingerprint, fut)
		return payload, err
	}

	select {
	case <-fut.done:
		return fut.entry.Payload, fut.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// claimBuild returns the in-flight build future for fingerprint, creating
// one and reporting leader=true if the caller is the first to ask.
func (c *Cache) claimBuild(fingerprint string) (*buildFuture, bool) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	if fut, ok := c.builds[fingerprint]; ok {
		return fut, false
	}
	fut := &buildFuture{done: make(chan struct{})}
	c.builds[fingerprint] = fut
	return fut, true
}

func (c *Cache) releaseBuild(fingerprint string, fut *buildFuture) {
	c.buildMu.Lock()
	delete(c.builds, fingerprint)
	c.buildMu.Unlock()
	close(fut.done)
}

// acquireDistributedBuildLease takes an etcd-backed mutex scoped to
// fingerprint, so the same build-coalescing guarantee GetOrBuild gives
// goroutines within one process also holds across heater processes.
// Grounded on the teacher's internal/state.DistributedStateManager.AcquireLock:
// a concurrency.Session with a bounded TTL backing a concurrency.Mutex,
// released via the returned func once the caller either becomes the
// build's leader or observes a fresh cache hit.
func (c *Cache) acquireDistributedBuildLease(ctx context.Context, fingerprint string) (release func(), err error) {
	session, err := concurrency.NewSession(c.etcdClient, concurrency.WithTTL(int(c.etcdLockTTL.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("factcache: open etcd session: %w", err)
	}
	mutex := concurrency.NewMutex(session, path.Join("/factcache/builds", fingerprint))
	if err := mutex.Lock(ctx); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("factcache: acquire distributed build lease: %w", err)
	}
	return func() {
		_ = mutex.Unlock(context.Background())
		_ = session.Close()
	}, nil
}
