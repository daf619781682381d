package table

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when the table's backing data does not exist.
var ErrNotFound = errors.New("probability table not found")

// Source produces a fresh Table on every call.
type Source interface {
	Load(ctx context.Context) (Table, error)
}

// FileSource reads a JSON probability table from disk.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source backed by the JSON file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load reads and parses the file.
func (f *FileSource) Load(ctx context.Context) (Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, f.Path)
		}
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return decode(data)
}

// decode parses a JSON document into a Table.
func decode(data []byte) (Table, error) {
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in probability table: %w", err)
	}
	return Parse(raw)
}

// Loader applies the degrade policy on top of a Source: any failure is
// logged and an empty table is returned.
type Loader struct {
	src Source
	log logrus.FieldLogger
}

// NewLoader wraps src.
func NewLoader(src Source, log logrus.FieldLogger) *Loader {
	return &Loader{src: src, log: log}
}

// Load never fails. Callers get an empty table when the source is missing
// or corrupt, which the resolver turns into default probabilities.
func (l *Loader) Load(ctx context.Context) Table {
	t, err := l.src.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			l.log.WithError(err).Warn("probability table file not found")
		} else {
			l.log.WithError(err).Warn("failed to load probability table")
		}
		return Table{}
	}
	return t
}

// Reload forwards to the source when it supports explicit reloading.
// It reports whether the source is cached.
func (l *Loader) Reload(ctx context.Context) (bool, error) {
	c, ok := l.src.(*Cache)
	if !ok {
		return false, nil
	}
	return true, c.Reload(ctx)
}

// Cache holds the last table read from a Source. Once a read has succeeded
// it only refreshes on Reload.
type Cache struct {
	src Source

	mu     sync.RWMutex
	table  Table
	loaded bool
}

// NewCache wraps src. The first successful Load populates the cache.
func NewCache(src Source) *Cache {
	return &Cache{src: src}
}

// Load returns the cached table. Until a read succeeds every call goes to
// the source, so a table that was missing at startup is picked up as soon as
// it appears.
func (c *Cache) Load(ctx context.Context) (Table, error) {
	c.mu.RLock()
	if c.loaded {
		t := c.table
		c.mu.RUnlock()
		return t, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.table, nil
	}
	t, err := c.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.table, c.loaded = t, true
	return t, nil
}

// Reload re-reads the source. On failure the previously cached table is kept
// and the error returned.
func (c *Cache) Reload(ctx context.Context) error {
	t, err := c.src.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.table, c.loaded = t, true
	return nil
}
