package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// GetValue decodes the value stored by PutValue under key. An entry that
// cannot be decoded as T reads as absent and is removed.
func GetValue[T any](ctx context.Context, c *ResponseCache, key string) (bool, T, error) {
	var result T
	buf, ok := c.Get(ctx, key)
	if !ok {
		return false, result, nil
	}
	if err := msgpack.Unmarshal(buf, &result); err != nil {
		c.Remove(ctx, key)
		var zero T
		return false, zero, errors.Wrap(err, "cache: failed to unmarshal value")
	}
	return true, result, nil
}

// PutValue stores val under key encoded with msgpack.
func PutValue[T any](ctx context.Context, c *ResponseCache, key string, val T, ttl time.Duration, sessionScoped bool) error {
	buf, err := msgpack.Marshal(val)
	if err != nil {
		return errors.Wrap(err, "cache: failed to marshal value")
	}
	c.Put(ctx, key, buf, ttl, sessionScoped)
	return nil
}

// CacheConfig configures the Exec helper.
type CacheConfig struct {
	// Expires is the TTL for cached values. Zero or less uses the cache's default TTL.
	Expires time.Duration
	// Key is the cache key. Required.
	Key           string
	SessionScoped bool
}

// Invoker is a function that produces a value of type T.
// The bool return indicates whether a value was found. Return false to signal
// "not found" without caching a zero value.
type Invoker[T any] func(ctx context.Context) (T, bool, error)

// Exec is a cache-aside helper. A hit returns the cached value. A miss calls
// invoke and caches what it found. Errors from invoke are returned and
// nothing is cached.
func Exec[T any](ctx context.Context, config CacheConfig, c *ResponseCache, invoke Invoker[T]) (bool, T, error) {
	found, val, err := GetValue[T](ctx, c, config.Key)
	if err == nil && found {
		return true, val, nil
	}
	result, ok, err := invoke(ctx)
	if err != nil || !ok {
		var zero T
		return false, zero, err
	}
	expires := config.Expires
	if expires <= 0 {
		expires = c.DefaultExpires()
	}
	// The caller got their value even when it cannot be cached.
	_ = PutValue(ctx, c, config.Key, result, expires, config.SessionScoped)
	return true, result, nil
}
