package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/onboard-cli/internal/model"
)

// CacheStore remembers the last registry-query attempt per CNPJ. Expired
// entries are never returned; implementations delete them lazily on read.
type CacheStore interface {
	Get(ctx context.Context, cnpj string) (*model.CacheEntry, error)
	Put(ctx context.Context, entry model.CacheEntry) error
	Delete(ctx context.Context, cnpj string) error
	List(ctx context.Context) ([]model.CacheEntry, error)
	Clear(ctx context.Context) error
	Close() error
}

// CacheOptions selects and configures a CacheStore backend.
type CacheOptions struct {
	Backend       string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewCache builds the configured CacheStore ("file" or "redis").
func NewCache(ctx context.Context, opts CacheOptions) (CacheStore, error) {
	switch opts.Backend {
	case "", "file":
		return NewFileCache(opts.Path)
	case "redis":
		return NewRedisCache(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	default:
		return nil, eris.Errorf("store: unknown cache backend %q", opts.Backend)
	}
}

// FileCache keeps every entry in a single JSON object keyed by CNPJ. The file
// is rewritten atomically on each change.
type FileCache struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewFileCache opens (or lazily creates) the cache file at path.
func NewFileCache(path string) (*FileCache, error) {
	if path == "" {
		path = "cache.json"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "store: create cache dir %s", dir)
		}
	}
	return &FileCache{path: path, now: time.Now}, nil
}

func (c *FileCache) load() (map[string]model.CacheEntry, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]model.CacheEntry{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: read cache %s", c.path)
	}
	entries := map[string]model.CacheEntry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "store: decode cache %s", c.path)
	}
	return entries, nil
}

func (c *FileCache) save(entries map[string]model.CacheEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "store: encode cache")
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".cache-*.json")
	if err != nil {
		return eris.Wrap(err, "store: create temp cache")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrap(err, "store: write temp cache")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrap(err, "store: close temp cache")
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrapf(err, "store: replace cache %s", c.path)
	}
	return nil
}

func (c *FileCache) Get(_ context.Context, cnpj string) (*model.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load()
	if err != nil {
		return nil, err
	}
	key := model.NormalizeCNPJ(cnpj)
	e, ok := entries[key]
	if !ok {
		return nil, nil
	}
	if e.Expired(c.now()) {
		delete(entries, key)
		return nil, c.save(entries)
	}
	return &e, nil
}

func (c *FileCache) Put(_ context.Context, entry model.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load()
	if err != nil {
		return err
	}
	entry.CNPJ = model.NormalizeCNPJ(entry.CNPJ)
	entries[entry.CNPJ] = entry
	return c.save(entries)
}

func (c *FileCache) Delete(_ context.Context, cnpj string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load()
	if err != nil {
		return err
	}
	key := model.NormalizeCNPJ(cnpj)
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return c.save(entries)
}

// List returns the live entries ordered by consultation time, newest first.
func (c *FileCache) List(_ context.Context) ([]model.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load()
	if err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]model.CacheEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Expired(now) {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (c *FileCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(map[string]model.CacheEntry{})
}

func (c *FileCache) Close() error { return nil }

func sortEntries(entries []model.CacheEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ConsultedAt.Equal(entries[j].ConsultedAt) {
			return entries[i].CNPJ < entries[j].CNPJ
		}
		return entries[i].ConsultedAt.After(entries[j].ConsultedAt)
	})
}
