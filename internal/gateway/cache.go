package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

// Cache stores validated Gateway responses keyed by call content.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (noopCache) Set(context.Context, string, []byte)         {}

// NoopCache never stores anything.
func NoopCache() Cache { return noopCache{} }

type redisCache struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache returns a Redis-backed cache. Cache failures are logged and
// treated as misses.
func NewRedisCache(rdb *goredis.Client, log *logger.Logger, ttl time.Duration) Cache {
	if rdb == nil {
		return NoopCache()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisCache{rdb: rdb, prefix: "competency:gateway:", ttl: ttl, log: log.With("service", "GatewayCache")}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("gateway cache get failed", "error", err)
		}
		return nil, false
	}
	return raw, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.rdb.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		c.log.Warn("gateway cache set failed", "error", err)
	}
}

func cacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
