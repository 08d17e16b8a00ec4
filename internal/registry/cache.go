package registry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix  = "gcs:env:"
	DefaultCacheTTL = 5 * time.Minute
)

// CachedLookup shares environment lookups between requests and processes
// through redis. Cache failures fall through to the wrapped lookup.
type CachedLookup struct {
	inner  Lookup
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ Lookup = (*CachedLookup)(nil)

// OpenRedis returns a client after verifying the server answers.
func OpenRedis(ctx context.Context, address, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, Error.New("redis ping failed: %v", err)
	}
	return client, nil
}

// NewCachedLookup wraps inner with a redis cache.
func NewCachedLookup(inner Lookup, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedLookup {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedLookup{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *CachedLookup) Environment(ctx context.Context, code string) (_ *Environment, err error) {
	defer mon.Task()(&ctx)(&err)

	key := cacheKeyPrefix + NormalizeCode(code)
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var env Environment
		if decodeErr := json.Unmarshal(data, &env); decodeErr == nil {
			return &env, nil
		}
		c.logger.Warn("discarding undecodable registry cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("registry cache read failed", "key", key, "error", err)
	}

	env, err := c.inner.Environment(ctx, code)
	if err != nil || env == nil {
		return env, err
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return env, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("registry cache write failed", "key", key, "error", err)
	}
	return env, nil
}

// Invalidate drops the cached entry of code.
func (c *CachedLookup) Invalidate(ctx context.Context, code string) error {
	return Error.Wrap(c.client.Del(ctx, cacheKeyPrefix+NormalizeCode(code)).Err())
}
