package posts

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/eringen/folio/collation"
)

const defaultSummary = "No summary yet"

// Reader lists and loads notes under Root. It keeps no state between calls
// and is safe for concurrent use.
type Reader struct {
	Root   string // content/posts
	Logger *slog.Logger
}

// NewReader returns a Reader rooted at root.
func NewReader(root string) *Reader {
	return &Reader{Root: root}
}

func (r *Reader) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// ListAll returns every note, newest first. Drafts are left out unless
// includeDraft is set. A missing root yields an empty slice.
func (r *Reader) ListAll(includeDraft bool) ([]Post, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Post{}, nil
		}
		return nil, err
	}

	var years []string
	for _, e := range entries {
		if e.IsDir() {
			years = append(years, e.Name())
		}
	}
	slices.Sort(years)
	slices.Reverse(years)

	out := []Post{}
	for _, year := range years {
		files, err := os.ReadDir(filepath.Join(r.Root, year))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", year, err)
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !strings.HasSuffix(name, Ext) {
				continue
			}
			p, err := r.readFile(year, strings.TrimSuffix(name, Ext))
			if err != nil {
				r.logger().Warn("skip unreadable note", "year", year, "file", name, "error", err)
				continue
			}
			if p.Draft && !includeDraft {
				continue
			}
			out = append(out, p)
		}
	}

	Sort(out)
	return out, nil
}

// GetBySlug loads one note. Any failure, including a malformed year or slug,
// is reported as ErrNotFound.
func (r *Reader) GetBySlug(year, slug string, includeDraft bool) (Post, error) {
	if !ValidYear(year) || !ValidSlug(slug) {
		return Post{}, ErrNotFound
	}
	p, err := r.readFile(year, slug)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger().Warn("note unreadable", "year", year, "slug", slug, "error", err)
		}
		return Post{}, ErrNotFound
	}
	if p.Draft && !includeDraft {
		return Post{}, ErrNotFound
	}
	return p, nil
}

func (r *Reader) readFile(year, slug string) (Post, error) {
	raw, err := os.ReadFile(filepath.Join(r.Root, year, slug+Ext))
	if err != nil {
		return Post{}, err
	}
	return Parse(year, slug, raw)
}

// Parse builds a Post from the raw contents of <year>/<slug>.mdx.
func Parse(year, slug string, raw []byte) (Post, error) {
	var fm frontMatter
	rest, err := frontmatter.Parse(bytes.NewReader(raw), &fm)
	if err != nil {
		return Post{}, fmt.Errorf("front matter: %w", err)
	}
	body := strings.TrimSpace(string(rest))

	p := Post{
		Year:             year,
		Slug:             slug,
		URL:              URLFor(year, slug),
		Title:            strings.TrimSpace(fm.Title),
		Date:             strings.TrimSpace(fm.Date),
		Summary:          strings.TrimSpace(fm.Summary),
		Tags:             fm.Tags,
		Draft:            fm.Draft,
		Cover:            fm.Cover,
		UpdatedAt:        strings.TrimSpace(fm.UpdatedAt),
		RequiresPassword: fm.RequiresPassword,
		PasswordHint:     fm.PasswordHint,
		WordCount:        CountWords(body),
		Body:             body,
	}
	if p.Title == "" {
		p.Title = slug
	}
	if p.Date == "" {
		p.Date = year + "-01-01"
	}
	if p.Summary == "" {
		p.Summary = defaultSummary
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p, nil
}

// Sort orders notes by date descending, then title in collation order.
func Sort(list []Post) {
	slices.SortStableFunc(list, func(a, b Post) int {
		return collation.Dated(a.Date, a.Title, b.Date, b.Title)
	})
}
