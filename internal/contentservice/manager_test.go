package contentservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCompiled_MissThenHit(t *testing.T) {
	m, _, dir := setupTestEnvironment(t)
	ctx := context.Background()

	writeContent(t, dir, "hello", frontMatterFor("Hello", "2025-01-01")+"# Hi\n")

	first, err := m.GetCompiled(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello", first.Title)
	assert.Equal(t, CacheVersion, first.CacheVersion)

	second, err := m.GetCompiled(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, first.CompiledDocument, second.CompiledDocument)

	stats := m.Stats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestGetCompiled_ServedFromStoreAfterRestart(t *testing.T) {
	m, store, dir := setupTestEnvironment(t)
	ctx := context.Background()

	writeContent(t, dir, "hello", frontMatterFor("Hello", "2025-01-01")+"# Hi\n")
	_, err := m.GetCompiled(ctx, "hello")
	require.NoError(t, err)

	compiler, err := NewCompiler(DefaultCompileOptions())
	require.NoError(t, err)
	restarted := NewManager(NewContentStore(dir), store, compiler, NewStats(), common.NewCache(time.Minute, time.Minute), testLogger(), 1)

	_, err = restarted.GetCompiled(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), restarted.Stats().Hits)
	assert.Equal(t, int64(0), restarted.Stats().Misses)
}

func TestGetCompiled_Staleness(t *testing.T) {
	m, _, dir := setupTestEnvironment(t)
	ctx := context.Background()

	path := writeContent(t, dir, "update", frontMatterFor("Update", "2025-01-01")+"old body\n")
	_, err := m.GetCompiled(ctx, "update")
	require.NoError(t, err)

	writeContent(t, dir, "update", frontMatterFor("Update", "2025-01-01")+"new body\n")
	touch(t, path, time.Hour)

	entry, err := m.GetCompiled(ctx, "update")
	require.NoError(t, err)
	assert.Equal(t, "new body", plainText(entry.CompiledDocument.Nodes))
	assert.Equal(t, int64(2), m.Stats().Misses)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, entry.LastModified.Before(info.ModTime()))
}

func TestGetCompiled_VersionInvalidation(t *testing.T) {
	m, store, dir := setupTestEnvironment(t)
	ctx := context.Background()

	writeContent(t, dir, "versioned", frontMatterFor("Versioned", "2025-01-01")+"body\n")

	old := sampleEntry("versioned")
	old.CacheVersion = "1.1.0"
	old.LastModified = time.Now().Add(24 * time.Hour)
	require.NoError(t, store.Put(ctx, old))

	entry, err := m.GetCompiled(ctx, "versioned")
	require.NoError(t, err)
	assert.Equal(t, CacheVersion, entry.CacheVersion)
	assert.Equal(t, "Versioned", entry.Title)
	assert.Equal(t, int64(1), m.Stats().Misses)
	assert.Equal(t, int64(0), m.Stats().Hits)
}

func TestGetCompiled_FallbackToStale(t *testing.T) {
	m, _, dir := setupTestEnvironment(t)
	ctx := context.Background()

	path := writeContent(t, dir, "faq", frontMatterFor("FAQ", "2025-01-01")+"good body\n")
	good, err := m.GetCompiled(ctx, "faq")
	require.NoError(t, err)

	writeContent(t, dir, "faq", frontMatterFor("FAQ", "2025-01-01")+"<Callout>\nnever closed\n")
	touch(t, path, time.Hour)

	entry, err := m.GetCompiled(ctx, "faq")
	require.NoError(t, err)
	assert.Equal(t, good.CompiledDocument, entry.CompiledDocument)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, int64(1), stats.Fallbacks)
	assert.InDelta(t, 0.5, stats.FallbackRate, 0.0001)
}

func TestGetCompiled_Unavailable(t *testing.T) {
	m, _, dir := setupTestEnvironment(t)
	ctx := context.Background()

	writeContent(t, dir, "broken", "no front matter here\n")

	testCases := []struct {
		name  string
		slug  string
		cause error
	}{
		{name: "missing source", slug: "missing", cause: ErrContentNotFound},
		{name: "invalid front matter", slug: "broken", cause: ErrInvalidFrontMatter},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entry, err := m.GetCompiled(ctx, tc.slug)
			assert.Nil(t, entry)
			assert.ErrorIs(t, err, ErrContentUnavailable)
			assert.ErrorIs(t, err, tc.cause)
		})
	}

	assert.Equal(t, int64(2), m.Stats().Errors)
	assert.Equal(t, int64(0), m.Stats().Fallbacks)
}

type failingStore struct {
	Store
}

func (s failingStore) Put(ctx context.Context, entry *CacheEntry) error {
	return errors.New("disk full")
}

func TestGetCompiled_WriteFailureStillServes(t *testing.T) {
	dir := t.TempDir()
	inner, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	compiler, err := NewCompiler(DefaultCompileOptions())
	require.NoError(t, err)

	m := NewManager(NewContentStore(dir), failingStore{inner}, compiler, NewStats(), common.NewCache(time.Minute, time.Minute), testLogger(), 1)
	writeContent(t, dir, "post", frontMatterFor("Post", "2025-01-01")+"body\n")

	entry, err := m.GetCompiled(context.Background(), "post")
	require.NoError(t, err)
	assert.Equal(t, "Post", entry.Title)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(0), stats.Errors)
}

func TestGetCompiled_ConcurrentColdCache(t *testing.T) {
	m, _, dir := setupTestEnvironment(t)
	writeContent(t, dir, "x", frontMatterFor("X", "2025-01-01")+"<FAQ items={[1]} />\n\nSome *text*.\n")

	const callers = 8
	var wg sync.WaitGroup
	docs := make([]*CompiledDocument, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := m.GetCompiled(context.Background(), "x")
			errs[i] = err
			if entry != nil {
				docs[i] = entry.CompiledDocument
			}
		}()
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, docs[0], docs[i])
	}
	assert.Equal(t, int64(callers), m.Stats().TotalRequests)
}

func TestRebuildAll_ComponentPostIndexed(t *testing.T) {
	m, store, dir := setupTestEnvironment(t)
	ctx := context.Background()

	writeContent(t, dir, "older-post", frontMatterFor("Older", "2024-06-01")+"Old news.\n")
	report, err := m.RebuildAll(ctx)
	require.NoError(t, err)
	before := report.Index.TotalPosts

	writeContent(t, dir, "hill-crest-update", frontMatterFor("Update", "2025-01-01")+
		"Latest progress.\n\n<FAQ items={[{\"q\": \"Handover?\", \"a\": \"2025\"}]} />\n")

	report, err = m.RebuildAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Failures)
	assert.Equal(t, before+1, report.Index.TotalPosts)
	assert.Equal(t, "hill-crest-update", report.Index.Posts[0].Slug)

	entry, err := store.Get(ctx, "hill-crest-update")
	require.NoError(t, err)

	var faq *Node
	for i := range entry.CompiledDocument.Nodes {
		if entry.CompiledDocument.Nodes[i].Component == "FAQ" {
			faq = &entry.CompiledDocument.Nodes[i]
		}
	}
	require.NotNil(t, faq)
	assert.Equal(t, []any{map[string]any{"q": "Handover?", "a": "2025"}}, faq.Props["items"])
}

func TestRebuildAll_Idempotent(t *testing.T) {
	m, store, dir := setupTestEnvironment(t)
	ctx := context.Background()

	for _, p := range []struct{ slug, date string }{
		{"alpha", "2025-02-01"},
		{"beta", "2025-03-01"},
		{"gamma", "2025-02-01"},
		{"delta", "2024-12-31"},
	} {
		writeContent(t, dir, p.slug, frontMatterFor(p.slug, p.date)+"# "+p.slug+"\n\n<Callout>\nbody\n</Callout>\n")
	}

	first, err := m.RebuildAll(ctx)
	require.NoError(t, err)
	firstEntries := map[string][]byte{}
	for _, slug := range []string{"alpha", "beta", "gamma", "delta"} {
		b, err := os.ReadFile(filepath.Join(store.dir, "posts", slug+".json"))
		require.NoError(t, err)
		firstEntries[slug] = b
	}

	second, err := m.RebuildAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.Index.Posts, second.Index.Posts)
	assert.Equal(t, first.Index.BuildStats, second.Index.BuildStats)
	for slug, b := range firstEntries {
		after, err := os.ReadFile(filepath.Join(store.dir, "posts", slug+".json"))
		require.NoError(t, err)
		assert.Equal(t, b, after, slug)
	}

	var order []string
	for _, p := range second.Index.Posts {
		order = append(order, p.Slug)
	}
	assert.Equal(t, []string{"beta", "alpha", "gamma", "delta"}, order)
}

func TestRebuildAll_CollectsFailures(t *testing.T) {
	m, store, dir := setupTestEnvironment(t)
	ctx := context.Background()

	writeContent(t, dir, "good", frontMatterFor("Good", "2025-01-01")+"fine\n")
	writeContent(t, dir, "bad-fence", frontMatterFor("Bad", "2025-01-02")+"```\nunterminated\n")
	writeContent(t, dir, "bad-meta", "---\ntitle: only\n---\n")

	report, err := m.RebuildAll(ctx)
	require.NoError(t, err)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, "bad-fence", report.Failures[0].Slug)
	var cerr *CompileError
	assert.ErrorAs(t, report.Failures[0].Err, &cerr)
	assert.Equal(t, "bad-meta", report.Failures[1].Slug)
	assert.ErrorIs(t, report.Failures[1].Err, ErrInvalidFrontMatter)

	assert.Equal(t, 1, report.Index.TotalPosts)
	assert.Equal(t, &BuildStats{TotalFiles: 3, Compiled: 1, Failed: 2, Workers: m.Workers()}, report.Index.BuildStats)

	written, err := store.GetIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.Index.Posts, written.Posts)
}

func TestRebuildAll_Cancelled(t *testing.T) {
	m, store, dir := setupTestEnvironment(t)
	writeContent(t, dir, "post", frontMatterFor("Post", "2025-01-01")+"body\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.RebuildAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.GetIndex(context.Background())
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestListPostsBuildsMissingIndex(t *testing.T) {
	m, _, dir := setupTestEnvironment(t)
	writeContent(t, dir, "post", frontMatterFor("Post", "2025-01-01")+"body\n")

	index, err := m.ListPosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, index.TotalPosts)
	assert.Equal(t, "Post", index.Posts[0].Title)
}

func TestExists(t *testing.T) {
	m, _, dir := setupTestEnvironment(t)
	writeContent(t, dir, "post", frontMatterFor("Post", "2025-01-01")+"body\n")

	testCases := []struct {
		slug string
		want bool
	}{
		{slug: "post", want: true},
		{slug: "missing", want: false},
		{slug: "../etc/passwd", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.slug, func(t *testing.T) {
			ok, err := m.Exists(context.Background(), tc.slug)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestCheckFreshness(t *testing.T) {
	m, _, dir := setupTestEnvironment(t)
	ctx := context.Background()

	path := writeContent(t, dir, "post", frontMatterFor("Post", "2025-01-01")+"body\n")
	touch(t, path, -time.Hour)

	f, err := m.CheckFreshness(ctx)
	require.NoError(t, err)
	assert.True(t, f.Stale)
	assert.Equal(t, "index missing", f.Reason)

	_, err = m.RebuildAll(ctx)
	require.NoError(t, err)

	f, err = m.CheckFreshness(ctx)
	require.NoError(t, err)
	assert.False(t, f.Stale)

	touch(t, path, time.Hour)
	f, err = m.CheckFreshness(ctx)
	require.NoError(t, err)
	assert.True(t, f.Stale)
}

func TestStatsReset(t *testing.T) {
	s := NewStats()
	s.requests.Add(4)
	s.hits.Add(3)
	s.misses.Add(1)

	snap := s.Snapshot()
	assert.Equal(t, 0.75, snap.HitRate)

	s.Reset()
	assert.Equal(t, StatsSnapshot{}, s.Snapshot())
}
