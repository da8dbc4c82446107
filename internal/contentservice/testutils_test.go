package contentservice

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func frontMatterFor(title, date string) string {
	return fmt.Sprintf("---\ntitle: %q\nexcerpt: \"...\"\ndate: %s\nimage: /x.webp\nreadTime: 5 min read\n---\n", title, date)
}

// writeContent writes dir/<slug>.mdx and returns its path.
func writeContent(t *testing.T, dir, slug, content string) string {
	t.Helper()

	path := filepath.Join(dir, slug+".mdx")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// touch moves a file's modification time by d relative to now.
func touch(t *testing.T, path string, d time.Duration) {
	t.Helper()

	ts := time.Now().Add(d)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func setupTestEnvironment(t *testing.T) (*Manager, *FileStore, string) {
	t.Helper()

	contentDir := t.TempDir()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	compiler, err := NewCompiler(DefaultCompileOptions())
	require.NoError(t, err)

	m := NewManager(NewContentStore(contentDir), store, compiler, NewStats(), common.NewCache(5*time.Minute, 10*time.Minute), testLogger(), 0)
	return m, store, contentDir
}
