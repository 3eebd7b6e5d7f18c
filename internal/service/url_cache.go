package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/artdirector-api/internal/observability"
	"github.com/noah-isme/artdirector-api/pkg/storage"
)

const readURLCachePrefix = "artdirector:read_url:"

// readURLCache resolves blob handles to read URLs, caching signed URLs in
// Redis for half of their lifetime so a cached URL is never served expired.
type readURLCache struct {
	store  storage.Store
	redis  *redis.Client
	urlTTL time.Duration
	logger zerolog.Logger
}

func newReadURLCache(store storage.Store, client *redis.Client, urlTTL time.Duration, logger zerolog.Logger) *readURLCache {
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &readURLCache{
		store:  store,
		redis:  client,
		urlTTL: urlTTL,
		logger: logger.With().Str("component", "read_url_cache").Logger(),
	}
}

func (c *readURLCache) Resolve(ctx context.Context, handle string) (string, error) {
	key := readURLCachePrefix + handle
	if c.redis != nil {
		cached, err := c.redis.Get(ctx, key).Result()
		if err == nil && cached != "" {
			observability.ReadURLCache().WithLabelValues("hit").Inc()
			return cached, nil
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read url cache")
		}
		observability.ReadURLCache().WithLabelValues("miss").Inc()
	}

	url, err := c.store.ReadURL(ctx, handle, c.urlTTL)
	if err != nil {
		return "", err
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, key, url, c.urlTTL/2).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to store url cache")
		}
	}
	return url, nil
}

func (c *readURLCache) Invalidate(ctx context.Context, handle string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, readURLCachePrefix+handle).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate url cache")
	}
}
