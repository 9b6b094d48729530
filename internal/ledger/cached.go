package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"CircleLayer-Assistant/internal/cache"
	"CircleLayer-Assistant/pkg/logger"
)

const networkInfoKey = "ledger:network_info"

// CachedClient decorates a Client and keeps NetworkInfo in a cache for ttl.
// All other calls go straight to the wrapped client.
type CachedClient struct {
	Client
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachedClient wraps inner. A nil cache disables caching.
func NewCachedClient(inner Client, c cache.Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{Client: inner, cache: c, ttl: ttl, log: logger.Named("ledger.cache")}
}

// NetworkInfo serves from the cache when a fresh entry exists. Cache errors
// are logged and fall through to the chain.
func (c *CachedClient) NetworkInfo(ctx context.Context) (NetworkInfo, error) {
	if c.cache == nil {
		return c.Client.NetworkInfo(ctx)
	}

	if raw, ok, err := c.cache.Get(ctx, networkInfoKey); err != nil {
		c.log.Warn("read network info cache failed", slog.Any("error", err))
	} else if ok {
		var info NetworkInfo
		if err := json.Unmarshal(raw, &info); err == nil {
			return info, nil
		}
	}

	info, err := c.Client.NetworkInfo(ctx)
	if err != nil {
		return NetworkInfo{}, err
	}
	if raw, err := json.Marshal(info); err == nil {
		if err := c.cache.Set(ctx, networkInfoKey, raw, c.ttl); err != nil {
			c.log.Warn("write network info cache failed", slog.Any("error", err))
		}
	}
	return info, nil
}

// Close closes the wrapped client and the cache.
func (c *CachedClient) Close() {
	c.Client.Close()
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			c.log.Warn("close cache failed", slog.Any("error", err))
		}
	}
}
