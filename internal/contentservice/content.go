package contentservice

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

var (
	ErrContentNotFound    = errors.New("content not found")
	ErrInvalidFrontMatter = errors.New("invalid front matter")
)

var (
	SlugRX = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

	// .mdx wins over .md when both exist for a slug.
	contentExtensions = []string{".mdx", ".md"}

	frontMatterDelim = []byte("---")
)

// ContentRecord is one source file with its front matter split from the body.
type ContentRecord struct {
	Slug             string
	Title            string
	Excerpt          string
	PublishDate      string
	HeroImage        string
	ReadTime         string
	Keywords         []string
	Season           string
	Priority         *int
	RawBody          string
	SourceHash       string
	SourceModifiedAt time.Time
}

// Source is the read-only side of the content directory.
type Source interface {
	Slugs(ctx context.Context) ([]string, error)
	Stat(ctx context.Context, slug string) (time.Time, error)
	Load(ctx context.Context, slug string) (*ContentRecord, error)
}

type frontMatter struct {
	Title    string      `yaml:"title"`
	Excerpt  string      `yaml:"excerpt"`
	Date     string      `yaml:"date"`
	Image    string      `yaml:"image"`
	ReadTime string      `yaml:"readTime"`
	Keywords keywordList `yaml:"keywords"`
	Season   string      `yaml:"season"`
	Priority *int        `yaml:"priority"`
}

// keywordList accepts either a YAML sequence or a comma separated string.
type keywordList []string

func (k *keywordList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*k = list
	case yaml.ScalarNode:
		var list []string
		for _, s := range strings.Split(value.Value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				list = append(list, s)
			}
		}
		*k = list
	default:
		return fmt.Errorf("keywords must be a list or a string")
	}

	return nil
}

// ContentStore reads content files from a single flat directory.
type ContentStore struct {
	dir string
}

func NewContentStore(dir string) *ContentStore {
	return &ContentStore{dir: dir}
}

func (s *ContentStore) Dir() string {
	return s.dir
}

// Slugs lists every content file in the directory, sorted.
func (s *ContentStore) Slugs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("could not read content dir: %w", err)
	}

	seen := make(map[string]bool)
	var slugs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		slug, ok := SlugFromPath(e.Name())
		if !ok || seen[slug] {
			continue
		}
		seen[slug] = true
		slugs = append(slugs, slug)
	}

	sort.Strings(slugs)
	return slugs, nil
}

func (s *ContentStore) Stat(ctx context.Context, slug string) (time.Time, error) {
	path, err := s.path(slug)
	if err != nil {
		return time.Time{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}

	return info.ModTime(), nil
}

func (s *ContentStore) Load(ctx context.Context, slug string) (*ContentRecord, error) {
	path, err := s.path(slug)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	rec, err := ParseContent(slug, raw)
	if err != nil {
		return nil, err
	}
	rec.SourceModifiedAt = info.ModTime()

	return rec, nil
}

// path resolves slug to an existing file, trying each known extension in order.
func (s *ContentStore) path(slug string) (string, error) {
	if !SlugRX.MatchString(slug) {
		return "", ErrContentNotFound
	}

	for _, ext := range contentExtensions {
		p := filepath.Join(s.dir, slug+ext)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}

	return "", ErrContentNotFound
}

// SlugFromPath returns the slug for a content file name and whether the name is a content file at all.
func SlugFromPath(name string) (string, bool) {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	for _, e := range contentExtensions {
		if ext == e {
			slug := strings.TrimSuffix(base, ext)
			return slug, SlugRX.MatchString(slug)
		}
	}

	return "", false
}

// HashSource fingerprints raw file bytes.
func HashSource(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ParseContent splits raw into front matter and body and checks the required keys.
func ParseContent(slug string, raw []byte) (*ContentRecord, error) {
	header, body, err := splitFrontMatter(raw)
	if err != nil {
		return nil, err
	}

	var fm frontMatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFrontMatter, slug, err)
	}

	var missing []string
	for _, f := range []struct{ key, value string }{
		{"title", fm.Title},
		{"excerpt", fm.Excerpt},
		{"date", fm.Date},
		{"image", fm.Image},
		{"readTime", fm.ReadTime},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s: missing %s", ErrInvalidFrontMatter, slug, strings.Join(missing, ", "))
	}

	return &ContentRecord{
		Slug:        slug,
		Title:       fm.Title,
		Excerpt:     fm.Excerpt,
		PublishDate: fm.Date,
		HeroImage:   fm.Image,
		ReadTime:    fm.ReadTime,
		Keywords:    []string(fm.Keywords),
		Season:      fm.Season,
		Priority:    fm.Priority,
		RawBody:     string(body),
		SourceHash:  HashSource(raw),
	}, nil
}

func splitFrontMatter(raw []byte) ([]byte, []byte, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))

	if !bytes.HasPrefix(raw, append(frontMatterDelim, '\n')) {
		return nil, nil, fmt.Errorf("%w: missing opening delimiter", ErrInvalidFrontMatter)
	}
	rest := raw[len(frontMatterDelim)+1:]

	// The closing delimiter may be the very first line when the header is empty.
	if bytes.HasPrefix(rest, append(frontMatterDelim, '\n')) {
		return nil, rest[len(frontMatterDelim)+1:], nil
	}

	end := bytes.Index(rest, append([]byte("\n"), frontMatterDelim...))
	if end < 0 {
		return nil, nil, fmt.Errorf("%w: missing closing delimiter", ErrInvalidFrontMatter)
	}

	header := rest[:end]
	body := rest[end+1+len(frontMatterDelim):]
	if len(body) > 0 && body[0] != '\n' {
		return nil, nil, fmt.Errorf("%w: missing closing delimiter", ErrInvalidFrontMatter)
	}
	body = bytes.TrimPrefix(body, []byte("\n"))

	return header, body, nil
}

// publishTime parses the front matter date; unparsable dates sort last.
func publishTime(date string) time.Time {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t
		}
	}

	return time.Time{}
}
