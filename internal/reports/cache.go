package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheVersionKey = "reports:version"
	bumpChannel     = "reports.bump"
	fillTimeout     = 30 * time.Second
)

// Cache wraps Redis based caching with versioning controls. Bumping the
// version orphans every cached rollup at once; the TTL reclaims them.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"reports"}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader. Concurrent
// misses on the same key share one loader call.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Shared by every waiter on key; detached from the caller that started it.
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()
		value, err := loader(fillCtx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(fillCtx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dest)
	}
}

// Bump invalidates the cache by incrementing the global version and publishing an event.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

func roundTrip(value, dest interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
