package contentservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

var (
	ErrEntryNotFound        = errors.New("cache entry not found")
	ErrCacheVersionMismatch = errors.New("cache version mismatch")
	errEntryStale           = errors.New("cache entry stale")
)

type CacheEntry struct {
	Slug             string            `json:"slug"`
	Title            string            `json:"title"`
	Excerpt          string            `json:"excerpt"`
	Date             string            `json:"date"`
	Image            string            `json:"image"`
	ReadTime         string            `json:"readTime"`
	Keywords         []string          `json:"keywords"`
	Season           string            `json:"season,omitempty"`
	Priority         *int              `json:"priority,omitempty"`
	CompiledDocument *CompiledDocument `json:"compiledDocument"`
	CacheVersion     string            `json:"cacheVersion"`
	LastModified     time.Time         `json:"lastModified"`
	SourceHash       string            `json:"sourceHash"`
	Warnings         []string          `json:"warnings,omitempty"`
}

// check reports whether the entry may be served for a source last modified at sourceModifiedAt.
func (e *CacheEntry) check(sourceModifiedAt time.Time) error {
	if e.CacheVersion != CacheVersion {
		return ErrCacheVersionMismatch
	}
	if e.LastModified.Before(sourceModifiedAt) {
		return errEntryStale
	}

	return nil
}

func (e *CacheEntry) summary() PostSummary {
	return PostSummary{
		Slug:     e.Slug,
		Title:    e.Title,
		Excerpt:  e.Excerpt,
		Date:     e.Date,
		Image:    e.Image,
		ReadTime: e.ReadTime,
	}
}

type PostSummary struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
	Date     string `json:"date"`
	Image    string `json:"image"`
	ReadTime string `json:"readTime"`
}

type BuildStats struct {
	TotalFiles int `json:"totalFiles"`
	Compiled   int `json:"compiled"`
	Failed     int `json:"failed"`
	Workers    int `json:"workers"`
}

type CacheIndex struct {
	Posts        []PostSummary `json:"posts"`
	LastUpdated  time.Time     `json:"lastUpdated"`
	TotalPosts   int           `json:"totalPosts"`
	CacheVersion string        `json:"cacheVersion"`
	BuildStats   *BuildStats   `json:"buildStats,omitempty"`
}

// Store persists compiled entries and the index. Implementations must never expose a partially written record.
type Store interface {
	Get(ctx context.Context, slug string) (*CacheEntry, error)
	Put(ctx context.Context, entry *CacheEntry) error
	GetIndex(ctx context.Context) (*CacheIndex, error)
	PutIndex(ctx context.Context, index *CacheIndex) error
}

// FileStore keeps one JSON file per slug under dir/posts and the index at dir/index.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "posts"), 0o755); err != nil {
		return nil, fmt.Errorf("could not create cache dir: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

func (s *FileStore) entryPath(slug string) string {
	return filepath.Join(s.dir, "posts", slug+".json")
}

func (s *FileStore) indexPath() string {
	return filepath.Join(s.dir, "index.json")
}

func (s *FileStore) Get(ctx context.Context, slug string) (*CacheEntry, error) {
	var entry CacheEntry
	if err := s.read(s.entryPath(slug), &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (s *FileStore) Put(ctx context.Context, entry *CacheEntry) error {
	return s.write(s.entryPath(entry.Slug), entry)
}

func (s *FileStore) GetIndex(ctx context.Context) (*CacheIndex, error) {
	var index CacheIndex
	if err := s.read(s.indexPath(), &index); err != nil {
		return nil, err
	}

	return &index, nil
}

func (s *FileStore) PutIndex(ctx context.Context, index *CacheIndex) error {
	return s.write(s.indexPath(), index)
}

func (s *FileStore) read(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("could not read cache file: %w", err)
	}

	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("could not decode cache file %s: %w", filepath.Base(path), err)
	}

	return nil
}

// write replaces path atomically: readers see either the old file or the new one.
func (s *FileStore) write(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode cache record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write cache record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("could not sync cache record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close cache record: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("could not replace cache record: %w", err)
	}

	return nil
}

// OpenStore selects the backend named by backend: "file" (the default) under cacheDir, or "redis" on client.
func OpenStore(backend, cacheDir string, redisClient func() (*redis.Client, error)) (Store, error) {
	switch backend {
	case "", "file":
		store, err := NewFileStore(cacheDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		client, err := redisClient()
		if err != nil {
			return nil, fmt.Errorf("could not connect to redis: %w", err)
		}
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
