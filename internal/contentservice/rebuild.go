package contentservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
	"golang.org/x/sync/errgroup"
)

type ItemFailure struct {
	Slug string
	Err  error
}

type RebuildReport struct {
	Index    *CacheIndex
	Failures []ItemFailure
	Duration time.Duration
}

type itemResult struct {
	entry *CacheEntry
	err   error
}

// RebuildAll compiles every content file on a bounded pool and writes a fresh index once all items finish.
// Per-item failures are collected in the report; only enumeration, cancellation or the index write fail the pass.
func (m *Manager) RebuildAll(ctx context.Context) (*RebuildReport, error) {
	start := time.Now()

	slugs, err := m.source.Slugs(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]itemResult, len(slugs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, slug := range slugs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			entry, err := m.lookup(gctx, slug)
			results[i] = itemResult{entry: entry, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &RebuildReport{}
	var entries []*CacheEntry
	for i, r := range results {
		if r.err != nil {
			report.Failures = append(report.Failures, ItemFailure{Slug: slugs[i], Err: r.err})
			m.logger.Error("failed to compile content", slog.String("slug", slugs[i]), slog.String("error", r.err.Error()))
			continue
		}
		entries = append(entries, r.entry)
	}

	index := buildIndex(entries, m.now())
	index.BuildStats = &BuildStats{
		TotalFiles: len(slugs),
		Compiled:   len(entries),
		Failed:     len(report.Failures),
		Workers:    m.workers,
	}

	if err := m.store.PutIndex(ctx, index); err != nil {
		return nil, fmt.Errorf("could not write cache index: %w", err)
	}
	m.hot.Set(common.CacheKeyContentIndex(), index)

	report.Index = index
	report.Duration = time.Since(start)

	m.logger.Info("content cache rebuilt",
		slog.Int("posts", index.TotalPosts),
		slog.Int("failed", len(report.Failures)),
		slog.Int("workers", m.workers),
		slog.Duration("duration", report.Duration))

	return report, nil
}

// buildIndex sorts newest first, breaking date ties by slug so worker completion order never shows.
func buildIndex(entries []*CacheEntry, now time.Time) *CacheIndex {
	posts := make([]PostSummary, 0, len(entries))
	for _, e := range entries {
		posts = append(posts, e.summary())
	}

	sort.SliceStable(posts, func(i, j int) bool {
		ti, tj := publishTime(posts[i].Date), publishTime(posts[j].Date)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return posts[i].Slug < posts[j].Slug
	})

	return &CacheIndex{
		Posts:        posts,
		LastUpdated:  now.UTC().Truncate(time.Second),
		TotalPosts:   len(posts),
		CacheVersion: CacheVersion,
	}
}

type Freshness struct {
	Stale        bool
	Reason       string
	LastUpdated  time.Time
	NewestSource time.Time
}

// CheckFreshness compares the written index against the newest source file without compiling anything.
func (m *Manager) CheckFreshness(ctx context.Context) (*Freshness, error) {
	slugs, err := m.source.Slugs(ctx)
	if err != nil {
		return nil, err
	}

	f := &Freshness{}
	for _, slug := range slugs {
		modAt, err := m.source.Stat(ctx, slug)
		if err != nil {
			return nil, err
		}
		if modAt.After(f.NewestSource) {
			f.NewestSource = modAt
		}
	}

	index, err := m.store.GetIndex(ctx)
	switch {
	case errors.Is(err, ErrEntryNotFound):
		f.Stale, f.Reason = true, "index missing"
	case err != nil:
		return nil, err
	case index.CacheVersion != CacheVersion:
		f.Stale, f.Reason = true, "index written by cache version "+index.CacheVersion
		f.LastUpdated = index.LastUpdated
	case index.LastUpdated.Before(f.NewestSource.Truncate(time.Second)):
		f.Stale, f.Reason = true, "sources modified after last rebuild"
		f.LastUpdated = index.LastUpdated
	default:
		f.LastUpdated = index.LastUpdated
	}

	return f, nil
}
