package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// Local is a size-bounded in-process cache with per-entry TTL.
type Local[V any] struct {
	lru *lru.Cache[string, item[V]]
	now func() time.Time
}

func NewLocal[V any](size int) (*Local[V], error) {
	l, err := lru.New[string, item[V]](size)
	if err != nil {
		return nil, err
	}
	return &Local[V]{lru: l, now: time.Now}, nil
}

func (c *Local[V]) Set(key string, v V, ttl time.Duration) {
	c.lru.Add(key, item[V]{value: v, expiresAt: c.now().Add(ttl)})
}

// Get returns the cached value, dropping it if it has expired.
func (c *Local[V]) Get(key string) (V, bool) {
	var zero V
	it, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(it.expiresAt) {
		c.lru.Remove(key)
		return zero, false
	}
	return it.value, true
}

func (c *Local[V]) Delete(keys ...string) {
	for _, k := range keys {
		c.lru.Remove(k)
	}
}

func (c *Local[V]) Len() int {
	return c.lru.Len()
}
