package contentservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"
	"time"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
)

var ErrContentUnavailable = errors.New("content unavailable")

// MaxWorkers caps the rebuild pool regardless of core count.
const MaxWorkers = 4

// Manager is a read-through cache over a Source, a Compiler and a Store, with an in-process hot layer.
type Manager struct {
	source   Source
	store    Store
	compiler *Compiler
	stats    *Stats
	hot      *common.Cache
	logger   *slog.Logger
	workers  int
	now      func() time.Time
}

// NewManager builds a manager. workers <= 0 selects min(NumCPU, MaxWorkers).
func NewManager(source Source, store Store, compiler *Compiler, stats *Stats, hot *common.Cache, logger *slog.Logger, workers int) *Manager {
	if workers <= 0 {
		workers = min(runtime.NumCPU(), MaxWorkers)
	}

	return &Manager{
		source:   source,
		store:    store,
		compiler: compiler,
		stats:    stats,
		hot:      hot,
		logger:   logger,
		workers:  workers,
		now:      time.Now,
	}
}

func (m *Manager) Stats() StatsSnapshot {
	return m.stats.Snapshot()
}

func (m *Manager) Workers() int {
	return m.workers
}

// GetCompiled returns the compiled entry for slug, compiling on a miss.
// When the source cannot be read or compiled, a previously cached entry is served instead if one exists.
func (m *Manager) GetCompiled(ctx context.Context, slug string) (*CacheEntry, error) {
	entry, cause := m.lookup(ctx, slug)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrContentUnavailable, slug, cause)
	}

	return entry, nil
}

// lookup returns the entry to serve and, when the source could not be compiled, the cause.
// A non-nil entry with a non-nil cause is a stale fallback.
func (m *Manager) lookup(ctx context.Context, slug string) (*CacheEntry, error) {
	m.stats.requests.Add(1)

	var fallback *CacheEntry

	modAt, err := m.source.Stat(ctx, slug)
	if err == nil {
		if entry, ok := m.hotEntry(slug); ok {
			if entry.check(modAt) == nil {
				m.stats.hits.Add(1)
				return entry, nil
			}
			fallback = entry
		}

		entry, err := m.store.Get(ctx, slug)
		switch {
		case err == nil:
			if entry.check(modAt) == nil {
				m.hot.Set(common.CacheKeyContent(slug), entry)
				m.stats.hits.Add(1)
				return entry, nil
			}
			if fallback == nil && entry.CacheVersion == CacheVersion {
				fallback = entry
			}
		case !errors.Is(err, ErrEntryNotFound):
			m.logger.Warn("failed to read cache entry", slog.String("slug", slug), slog.String("error", err.Error()))
		}
	}

	entry, err := m.build(ctx, slug)
	if err != nil {
		m.stats.errors.Add(1)

		if fallback == nil {
			fallback = m.staleEntry(ctx, slug)
		}
		if fallback != nil {
			m.stats.fallbacks.Add(1)
			m.logger.Warn("serving stale content", slog.String("slug", slug), slog.String("error", err.Error()))
			return fallback, err
		}

		return nil, err
	}

	m.stats.misses.Add(1)

	if err := m.store.Put(ctx, entry); err != nil {
		m.logger.Error("failed to write cache entry", slog.String("slug", slug), slog.String("error", err.Error()))
	}
	m.hot.Set(common.CacheKeyContent(slug), entry)

	return entry, nil
}

func (m *Manager) hotEntry(slug string) (*CacheEntry, bool) {
	v, ok := m.hot.Get(common.CacheKeyContent(slug))
	if !ok {
		return nil, false
	}

	entry, ok := v.(*CacheEntry)
	return entry, ok
}

// staleEntry finds any current-version entry for slug regardless of its timestamp.
func (m *Manager) staleEntry(ctx context.Context, slug string) *CacheEntry {
	if entry, ok := m.hotEntry(slug); ok && entry.CacheVersion == CacheVersion {
		return entry
	}

	entry, err := m.store.Get(ctx, slug)
	if err != nil || entry.CacheVersion != CacheVersion {
		return nil
	}

	return entry
}

// build loads and compiles slug into a fresh entry.
func (m *Manager) build(ctx context.Context, slug string) (*CacheEntry, error) {
	rec, err := m.source.Load(ctx, slug)
	if err != nil {
		return nil, err
	}

	doc, err := m.compiler.Compile(rec.RawBody)
	if err != nil {
		return nil, err
	}

	lastModified := m.now()
	if rec.SourceModifiedAt.After(lastModified) {
		lastModified = rec.SourceModifiedAt
	}

	keywords := rec.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	return &CacheEntry{
		Slug:             rec.Slug,
		Title:            rec.Title,
		Excerpt:          rec.Excerpt,
		Date:             rec.PublishDate,
		Image:            rec.HeroImage,
		ReadTime:         rec.ReadTime,
		Keywords:         keywords,
		Season:           rec.Season,
		Priority:         rec.Priority,
		CompiledDocument: doc,
		CacheVersion:     CacheVersion,
		LastModified:     lastModified,
		SourceHash:       rec.SourceHash,
		Warnings:         doc.Warnings,
	}, nil
}

// Invalidate drops the hot copy of slug so the next lookup consults the store and source again.
func (m *Manager) Invalidate(slug string) {
	m.hot.Delete(common.CacheKeyContent(slug))
}

// ListPosts returns the index, building it first when none has been written.
func (m *Manager) ListPosts(ctx context.Context) (*CacheIndex, error) {
	if v, ok := m.hot.Get(common.CacheKeyContentIndex()); ok {
		if index, ok := v.(*CacheIndex); ok {
			return index, nil
		}
	}

	index, err := m.store.GetIndex(ctx)
	switch {
	case err == nil && index.CacheVersion == CacheVersion:
		m.hot.Set(common.CacheKeyContentIndex(), index)
		return index, nil
	case err != nil && !errors.Is(err, ErrEntryNotFound):
		m.logger.Warn("failed to read cache index", slog.String("error", err.Error()))
	}

	report, err := m.RebuildAll(ctx)
	if err != nil {
		return nil, err
	}

	return report.Index, nil
}

// Exists reports whether slug has a source file.
func (m *Manager) Exists(ctx context.Context, slug string) (bool, error) {
	_, err := m.source.Stat(ctx, slug)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrContentNotFound), errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
