// Package factcache is the hit/miss substrate for every mining call: a
// short-lived process-local tier backed by an optional durable/shared
// Redis tier, keyed by the content fingerprint described in spec §2/§4.5.
// Adapted from the teacher's internal/cache/cache.go (TTL map + eviction)
// for the local tier and internal/infrastructure/persistence/cache/redis_cache.go
// for the shared tier.
package factcache

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/catherinevee/prodflow/pkg/obslog"
	"github.com/catherinevee/prodflow/pkg/telemetry"
)

// defaultEtcdLockTTL is the lease lifetime for a distributed build lock
// when Config.EtcdLockTTL is left unset.
const defaultEtcdLockTTL = 30 * time.Second

// Entry is a cached payload plus the format version it was built with. A
// format-version mismatch is treated as a miss, per spec invariant.
type Entry struct {
	Payload       []byte
	FormatVersion int
	UpdatedAt     time.Time
}

type localEntry struct {
	entry     Entry
	expiresAt time.Time
}

// Cache is the two-tier fact cache: an in-process TTL map checked first,
// falling through to an optional Redis client for cross-process sharing.
// At most one build runs per fingerprint at a time; concurrent callers for
// the same fingerprint coalesce on a single in-flight build (spec §5).
type Cache struct {
	mu      sync.RWMutex
	local   map[string]localEntry
	ttl     time.Duration
	maxSize int

	redis  redis.UniversalClient // nil disables the shared tier
	prefix string

	formatVersion int
	telemetry     *telemetry.Telemetry
	log           obslog.Logger

	buildMu sync.Mutex
	builds  map[string]*buildFuture

	etcdClient  *clientv3.Client // optional: coalesces builds across processes, not just goroutines
	etcdLockTTL time.Duration
}

type buildFuture struct {
	done    chan struct{}
	entry   Entry
	err     error
}

// Config configures a Cache.
type Config struct {
	LocalTTL      time.Duration
	LocalMaxSize  int
	FormatVersion int
	Redis         redis.UniversalClient // optional
	KeyPrefix     string

	// Etcd, when set, backs GetOrBuild's keyed build lock with a
	// distributed lease (via etcd's concurrency package) in addition to
	// the in-process lock, so two different prodflow-heater processes
	// racing on the same fingerprint coalesce too. Left nil, GetOrBuild
	// still coalesces concurrent callers within one process.
	Etcd        *clientv3.Client
	EtcdLockTTL time.Duration
}

// New builds a Cache. Passing a nil Redis client disables the shared tier;
// the cache still functions as a process-local-only cache.
func New(cfg Config, tel *telemetry.Telemetry) *Cache {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "factcache:"
	}
	lockTTL := cfg.EtcdLockTTL
	if lockTTL <= 0 {
		lockTTL = defaultEtcdLockTTL
	}
	return &Cache{
		local:         make(map[string]localEntry),
		ttl:           cfg.LocalTTL,
		maxSize:       cfg.LocalMaxSize,
		redis:         cfg.Redis,
		prefix:        prefix,
		formatVersion: cfg.FormatVersion,
		telemetry:     tel,
		log:           obslog.New("factcache"),
		builds:        make(map[string]*buildFuture),
		etcdClient:    cfg.Etcd,
		etcdLockTTL:   lockTTL,
	}
}

// Get looks up fingerprint under topic, checking the local tier then the
// shared tier. A format-version mismatch at either tier is a miss.
func (c *Cache) Get(ctx context.Context, topic, fingerprint string) (Entry, bool) {
	if e, ok := c.getLocal(fingerprint); ok {
		c.recordHit(ctx, topic)
		return e, true
	}

	if c.redis != nil {
		if e, ok := c.getRemote(ctx, fingerprint); ok {
			c.setLocal(fingerprint, e)
			c.recordHit(ctx, topic)
			return e, true
		}
	}

	c.recordMiss(ctx, topic)
	return Entry{}, false
}

// Put stores payload under fingerprint in both tiers.
func (c *Cache) Put(ctx context.Context, fingerprint string, payload []byte) {
	e := Entry{Payload: payload, FormatVersion: c.formatVersion, UpdatedAt: time.Now()}
	c.setLocal(fingerprint, e)
	if c.redis != nil {
		c.setRemote(ctx, fingerprint, e)
	}
}

func (c *Cache) getLocal(fingerprint string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	le, ok := c.local[fingerprint]
	if !ok {
		return Entry{}, false
	}
	if time.Now().After(le.expiresAt) {
		return Entry{}, false
	}
	if le.entry.FormatVersion != c.formatVersion {
		return Entry{}, false
	}
	return le.entry, true
}

func (c *Cache) setLocal(fingerprint string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.local) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.local[fingerprint] = localEntry{entry: e, expiresAt: time.Now().Add(c.ttl)}
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for k, v := range c.local {
		if oldestKey == "" || v.expiresAt.Before(oldestAt) {
			oldestKey, oldestAt = k, v.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.local, oldestKey)
	}
}

func (c *Cache) recordHit(ctx context.Context, topic string) {
	if c.telemetry != nil {
		c.telemetry.RecordHit(ctx, topic)
	}
}

func (c *Cache) recordMiss(ctx context.Context, topic string) {
	if c.telemetry != nil {
		c.telemetry.RecordMiss(ctx, topic)
	}
}
