package cache

import (
	"context"
	"time"
)

// LayeredCache reads through a local L1 into a shared L2. L2 may be nil, in
// which case it degrades to the memory layer alone.
type LayeredCache struct {
	mem       *MemoryCache
	remote    Service
	memoryTTL time.Duration
}

func NewLayeredCache(remote Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		mem:       NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		remote:    remote,
		memoryTTL: cfg.MemoryTTL,
	}
}

// Set writes through to L2 first. An L2 failure is returned after L1 has
// still been populated.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var err error
	if lc.remote != nil {
		err = lc.remote.Set(ctx, key, value, ttl)
	}
	_ = lc.mem.Set(ctx, key, value, lc.l1TTL(ttl))
	return err
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	}
	if lc.remote == nil {
		return ErrCacheMiss
	}
	if err := lc.remote.Get(ctx, key, dest); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, dest, lc.memoryTTL)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	if lc.remote == nil {
		return nil
	}
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	if lc.remote != nil {
		return lc.remote.Close()
	}
	return nil
}

// l1TTL keeps L1 from outliving its memoryTTL cap while L2 is shared.
func (lc *LayeredCache) l1TTL(ttl time.Duration) time.Duration {
	if lc.remote == nil {
		return ttl
	}
	if lc.memoryTTL > 0 && (ttl <= 0 || lc.memoryTTL < ttl) {
		return lc.memoryTTL
	}
	return ttl
}
