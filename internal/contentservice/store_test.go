package contentservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry(slug string) *CacheEntry {
	return &CacheEntry{
		Slug:     slug,
		Title:    "Title " + slug,
		Excerpt:  "...",
		Date:     "2025-01-01",
		Image:    "/x.webp",
		ReadTime: "5 min read",
		Keywords: []string{"a"},
		CompiledDocument: &CompiledDocument{
			Version:  CacheVersion,
			Nodes:    []Node{{Type: "component", Component: "FAQ", Props: map[string]any{"open": true}}},
			Headings: []Heading{},
		},
		CacheVersion: CacheVersion,
		LastModified: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		SourceHash:   "abc",
	}
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = s.GetIndex(ctx)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	entry := sampleEntry("hill-crest-update")
	require.NoError(t, s.Put(ctx, entry))

	got, err := s.Get(ctx, "hill-crest-update")
	require.NoError(t, err)
	assert.Equal(t, entry.CompiledDocument, got.CompiledDocument)
	assert.True(t, entry.LastModified.Equal(got.LastModified))
	assert.Equal(t, CacheVersion, got.CacheVersion)

	index := buildIndex([]*CacheEntry{entry}, time.Now())
	require.NoError(t, s.PutIndex(ctx, index))

	gotIndex, err := s.GetIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, index.Posts, gotIndex.Posts)
	assert.Equal(t, 1, gotIndex.TotalPosts)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	testStore(t, s)

	t.Run("no temp files left behind", func(t *testing.T) {
		matches, err := filepath.Glob(filepath.Join(dir, "posts", ".tmp-*"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("corrupt record", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "posts", "broken.json"), []byte("{"), 0o644))
		_, err := s.Get(context.Background(), "broken")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrEntryNotFound)
	})
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	testStore(t, NewRedisStore(common.TestRedis(t)))
}

func TestCacheEntryCheck(t *testing.T) {
	source := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name         string
		version      string
		lastModified time.Time
		expectedErr  error
	}{
		{name: "fresh", version: CacheVersion, lastModified: source.Add(time.Minute)},
		{name: "same instant", version: CacheVersion, lastModified: source},
		{name: "stale", version: CacheVersion, lastModified: source.Add(-time.Minute), expectedErr: errEntryStale},
		{name: "old version", version: "1.1.0", lastModified: source.Add(time.Hour), expectedErr: ErrCacheVersionMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := &CacheEntry{CacheVersion: tc.version, LastModified: tc.lastModified}
			assert.Equal(t, tc.expectedErr, e.check(source))
		})
	}
}

func TestOpenStore(t *testing.T) {
	noRedis := func() (*redis.Client, error) {
		return nil, errors.New("redis not configured")
	}

	testCases := []struct {
		name    string
		backend string
		want    any
		wantErr bool
	}{
		{name: "default", backend: "", want: &FileStore{}},
		{name: "file", backend: "file", want: &FileStore{}},
		{name: "redis unavailable", backend: "redis", wantErr: true},
		{name: "unknown", backend: "memcached", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := OpenStore(tc.backend, t.TempDir(), noRedis)
			if tc.wantErr {
				assert.Error(t, err)
				assert.Nil(t, store)
				return
			}

			require.NoError(t, err)
			assert.IsType(t, tc.want, store)
		})
	}
}
