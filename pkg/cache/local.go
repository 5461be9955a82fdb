package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// localCache is a bounded in-process cache. The LRU applies the configured
// default expiration to every entry; per-call expirations are ignored.
type localCache struct {
	lru *expirable.LRU[string, interface{}]
	mu  sync.Mutex // serializes Increment read-modify-write
}

func NewLocalCache(config LocalConfig) Cache {
	config = config.withDefaults()
	return &localCache{
		lru: expirable.NewLRU[string, interface{}](config.MaxSize, nil, config.DefaultExpiration),
	}
}

func (lc *localCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return lc.lru.Get(key)
}

func (lc *localCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	lc.lru.Add(key, value)
	return nil
}

func (lc *localCache) Delete(ctx context.Context, key string) error {
	lc.lru.Remove(key)
	return nil
}

func (lc *localCache) Exists(ctx context.Context, key string) bool {
	return lc.lru.Contains(key)
}

func (lc *localCache) Clear(ctx context.Context) error {
	lc.lru.Purge()
	return nil
}

func (lc *localCache) Increment(ctx context.Context, key string, value int64) (int64, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	var current int64
	if v, ok := lc.lru.Get(key); ok {
		if n, ok := v.(int64); ok {
			current = n
		}
	}
	current += value
	lc.lru.Add(key, current)
	return current, nil
}

func (lc *localCache) Close() error { return nil }
