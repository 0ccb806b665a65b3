package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrCacheMiss is returned by Lookup when no entry exists for a key.
	ErrCacheMiss = errors.New("extraction: cache miss")
	// ErrCacheCorrupt marks an entry that exists but cannot be decoded.
	// Callers treat it as a miss.
	ErrCacheCorrupt = errors.New("extraction: cache entry corrupt")
)

// Cache persists extraction results by key. Store overwrites; concurrent
// writers on one key resolve last-writer-wins.
type Cache interface {
	Lookup(ctx context.Context, key string) (Result, error)
	Store(ctx context.Context, key string, result Result) error
	Close() error
}

func decodeEntry(key string, data []byte) (Result, error) {
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrCacheCorrupt, key, err)
	}
	return res, nil
}

// MemoryCache keeps results in process memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (c *MemoryCache) Lookup(_ context.Context, key string) (Result, error) {
	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Result{}, ErrCacheMiss
	}
	return decodeEntry(key, data)
}

func (c *MemoryCache) Store(_ context.Context, key string, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = data
	c.mu.Unlock()
	return nil
}

// Put stores raw bytes under key. Tests use it to plant corrupt entries.
func (c *MemoryCache) Put(key string, raw []byte) {
	c.mu.Lock()
	c.entries[key] = raw
	c.mu.Unlock()
}

func (c *MemoryCache) Close() error { return nil }

// FileCache writes one JSON file per key under dir.
type FileCache struct {
	dir string
}

// NewFileCache creates dir if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("extraction: cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("extraction: ensure cache dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *FileCache) Lookup(_ context.Context, key string) (Result, error) {
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return Result{}, ErrCacheMiss
	}
	if err != nil {
		return Result{}, err
	}
	return decodeEntry(key, data)
}

// Store writes through a temp file and rename so readers never see a torn entry.
func (c *FileCache) Store(_ context.Context, key string, result Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}

func (c *FileCache) Close() error { return nil }
