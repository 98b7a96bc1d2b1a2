// Package ristretto backs the cache port with an in-process ristretto
// cache, used as the L1 for user profiles in front of Postgres.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/redmag-edu/mentoria/internal/port/cache"
)

type Cache struct {
	inner *ristretto.Cache[string, []byte]
}

var _ cache.Cache = (*Cache)(nil)

// New sizes the cache by total value bytes. Profiles are a few hundred
// bytes each, so the counter estimate assumes ~100-byte entries.
func New(maxBytes int64) (*Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxBytes / 10,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.inner.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.inner.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.inner.Del(key)
	return nil
}

func (c *Cache) Close() {
	c.inner.Close()
}
