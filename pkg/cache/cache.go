package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is a TTL key/value cache. Values round-trip through JSON so every
// layer returns the same shape a caller stored.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Remember returns the cached value for key, or computes, stores and returns
// it. Cache failures never fail the call.
func Remember[T any](ctx context.Context, c Service, key string, ttl time.Duration, load func() (T, error)) (T, bool, error) {
	var v T
	if c != nil {
		if err := c.Get(ctx, key, &v); err == nil {
			return v, true, nil
		}
	}
	v, err := load()
	if err != nil {
		return v, false, err
	}
	if c != nil {
		_ = c.Set(ctx, key, v, ttl)
	}
	return v, false, nil
}

func encode(value interface{}) ([]byte, error) {
	if s, ok := value.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(value)
}

func decode(data []byte, dest interface{}) error {
	if s, ok := dest.(*string); ok {
		*s = string(data)
		return nil
	}
	return json.Unmarshal(data, dest)
}
