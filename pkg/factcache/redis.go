package factcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/catherinevee/prodflow/pkg/obslog"
)

type wireEntry struct {
	Payload       []byte    `json:"payload"`
	FormatVersion int       `json:"format_version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c *Cache) getRemote(ctx context.Context, fingerprint string) (Entry, bool) {
	raw, err := c.redis.Get(ctx, c.prefix+fingerprint).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("redis get failed", obslog.String("error", err.Error()))
		}
		return Entry{}, false
	}
	var w wireEntry
	if err := json.Unmarshal(raw, &w); err != nil {
		c.log.Warn("redis entry unmarshal failed", obslog.String("error", err.Error()))
		return Entry{}, false
	}
	if w.FormatVersion != c.formatVersion {
		return Entry{}, false
	}
	return Entry{Payload: w.Payload, FormatVersion: w.FormatVersion, UpdatedAt: w.UpdatedAt}, true
}

func (c *Cache) setRemote(ctx context.Context, fingerprint string, e Entry) {
	raw, err := json.Marshal(wireEntry{Payload: e.Payload, FormatVersion: e.FormatVersion, UpdatedAt: e.UpdatedAt})
	if err != nil {
		c.log.Warn("redis entry marshal failed", obslog.String("error", err.Error()))
		return
	}
	if err := c.redis.Set(ctx, c.prefix+fingerprint, raw, c.ttl).Err(); err != nil {
		c.log.Warn("redis set failed", obslog.String("error", err.Error()))
	}
}
