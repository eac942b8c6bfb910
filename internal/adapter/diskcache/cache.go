// Package diskcache implements the durable cache tier as one JSON envelope
// file per key. Entries survive restarts; expiry is evaluated lazily at read
// time and expired entries are deleted on sight.
package diskcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// envelope is the persisted record format: {value, expires_at}.
type envelope struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Cache is a file-per-key durable cache.
type Cache struct {
	dir string
	now func() time.Time // for testing
}

// New creates a disk cache rooted at dir, creating it if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, now: time.Now}, nil
}

// Get reads a value. An entry past its expiry is treated as absent and
// removed from disk.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	path := c.path(key)

	raw, err := os.ReadFile(path) //nolint:gosec // G304: path derived from hashed key
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		// A truncated or corrupt entry is treated as a miss.
		_ = os.Remove(path)
		return nil, false, nil
	}

	if !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(c.now()) {
		_ = os.Remove(path)
		return nil, false, nil
	}

	return e.Value, true, nil
}

// Set writes a value atomically (temp file + rename) so concurrent readers
// never observe truncated data. A non-positive ttl stores without expiry.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := envelope{Key: key, Value: value}
	if ttl > 0 {
		e.ExpiresAt = c.now().Add(ttl)
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp entry: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache entry: %w", err)
	}
	return nil
}

// Delete removes a value.
func (c *Cache) Delete(_ context.Context, key string) error {
	err := os.Remove(c.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every entry file.
func (c *Cache) Clear(_ context.Context) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// path maps a key to its file. Keys are hashed so model identifiers with
// path-hostile characters stay safe.
func (c *Cache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}
