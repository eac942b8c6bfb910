// Package nopcache implements the cache port as a no-op, used when caching
// is disabled by configuration: Get always misses and Set does nothing.
package nopcache

import (
	"context"
	"time"
)

// Cache is the disabled-cache implementation.
type Cache struct{}

// New creates a no-op cache.
func New() *Cache { return &Cache{} }

func (*Cache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (*Cache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (*Cache) Delete(context.Context, string) error { return nil }

func (*Cache) Clear(context.Context) error { return nil }
