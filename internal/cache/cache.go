// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists intermediate document parse state between runs so
// that reprocessing a document does not repeat expensive parsing.
//
// Entries are YAML files in a flat directory, one per source document,
// named by a hash of the document path.
package cache

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/property-extractor/internal/document"
)

var (
	// ErrMiss is returned by Hydrate when no entry exists for the path.
	ErrMiss = errors.New("cache miss")

	// ErrUnsupported is returned when the document type cannot be cached.
	ErrUnsupported = errors.New("document does not support caching")

	// ErrExists is returned by Store when an entry exists and overwrite is false.
	ErrExists = errors.New("cache entry exists")
)

// entry is the on-disk form of one cached document.
type entry struct {
	SourcePath string    `yaml:"source_path"`
	CachedAt   time.Time `yaml:"cached_at"`
	State      string    `yaml:"state"`
}

// Cache reads and writes cache entries under one directory.
type Cache struct {
	dir string
}

// New returns a Cache rooted at dir, creating the directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Hydrate restores the cached parse state for the document loaded from
// path. It returns ErrUnsupported, ErrMiss, or a decode error when the
// document cannot be hydrated; callers treat any error as a cold start.
func (c *Cache) Hydrate(doc document.Document, path string) error {
	cd, ok := doc.(document.Cacheable)
	if !ok {
		return ErrUnsupported
	}

	data, err := os.ReadFile(c.entryPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrMiss
		}
		return fmt.Errorf("reading cache entry: %w", err)
	}

	var e entry
	if err := yaml.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("decoding cache entry: %w", err)
	}
	if e.SourcePath != canonical(path) {
		return fmt.Errorf("%w: entry belongs to %s", ErrMiss, e.SourcePath)
	}

	return cd.RestoreCacheState(e.State)
}

// Store writes the document's parse state for path. An existing entry is
// replaced only when overwrite is true.
func (c *Cache) Store(doc document.Document, path string, overwrite bool) error {
	cd, ok := doc.(document.Cacheable)
	if !ok {
		return ErrUnsupported
	}

	dest := c.entryPath(path)
	if !overwrite {
		if _, err := os.Stat(dest); err == nil {
			return ErrExists
		}
	}

	state, err := cd.CacheState()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(entry{
		SourcePath: canonical(path),
		CachedAt:   time.Now().UTC(),
		State:      state,
	})
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".entry-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing cache entry: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming cache entry: %w", err)
	}
	return nil
}

// entryPath is the entry file for a document path: the first 16 hex
// characters of SHA-256 over the absolute path.
func (c *Cache) entryPath(path string) string {
	sum := sha256.Sum256([]byte(canonical(path)))
	return filepath.Join(c.dir, fmt.Sprintf("%x", sum[:8])+".yaml")
}

func canonical(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
