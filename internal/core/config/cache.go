package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CacheKey identifies one version of a file on disk.
type CacheKey struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// KeyFor stats path and builds its cache key.
func KeyFor(path string) (CacheKey, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return CacheKey{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return CacheKey{}, err
	}
	return CacheKey{Path: abs, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Cache holds the value derived from the most recently loaded file. It keeps a
// single slot: loading a different path, or the same path after it changed on
// disk, replaces the entry. The zero value is ready to use.
type Cache[T any] struct {
	mu    sync.Mutex
	key   CacheKey
	value T
	valid bool
}

// Get returns the cached value for path, calling load when the file's path,
// size or modification time differs from the cached key. Load errors leave
// the previous entry in place.
func (c *Cache[T]) Get(path string, load func(path string) (T, error)) (T, bool, error) {
	var zero T
	key, err := KeyFor(path)
	if err != nil {
		return zero, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.key.Path == key.Path && c.key.Size == key.Size && c.key.ModTime.Equal(key.ModTime) {
		return c.value, true, nil
	}
	v, err := load(key.Path)
	if err != nil {
		return zero, false, err
	}
	c.key, c.value, c.valid = key, v, true
	return v, false, nil
}

// Invalidate drops the cached entry.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.key, c.value, c.valid = CacheKey{}, zero, false
}
