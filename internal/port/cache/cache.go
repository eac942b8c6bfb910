// Package cache defines the port interface for result caching and the key
// derivation helpers shared by the pipelines.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Cache is the port interface for key-value caching. A Get never mutates the
// stored value and a miss never creates an entry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// HashContent returns the hex SHA-256 of arbitrary content. Used to derive
// deterministic, collision-resistant cache keys.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Key builds a cache key from a pipeline stage name and its semantically
// relevant inputs. Identical inputs always produce the identical key.
func Key(stage string, parts ...string) string {
	key := stage
	for _, p := range parts {
		key = fmt.Sprintf("%s_%s", key, p)
	}
	return key
}
