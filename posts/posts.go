// Package posts reads notes from content/posts/<year>/<slug>.mdx. Every call
// goes back to the filesystem; there is no cache.
package posts

import (
	"errors"
	"regexp"
	"strings"
)

// Ext is the extension of note files.
const Ext = ".mdx"

// ErrNotFound is returned for a missing, malformed, unparsable or hidden
// draft note. Callers render it as a generic not-found page.
var ErrNotFound = errors.New("post not found")

var (
	yearPattern = regexp.MustCompile(`^\d{4}$`)
	slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// ValidYear reports whether year is exactly four ASCII digits.
func ValidYear(year string) bool { return yearPattern.MatchString(year) }

// ValidSlug reports whether slug is lowercase alphanumerics and hyphens.
func ValidSlug(slug string) bool { return slugPattern.MatchString(slug) }

// Post is a parsed note. Year and Slug together identify it.
type Post struct {
	Year             string
	Slug             string
	URL              string
	Title            string
	Date             string
	Summary          string
	Tags             []string
	Draft            bool
	Cover            string
	UpdatedAt        string
	RequiresPassword bool
	PasswordHint     string
	WordCount        int
	Body             string
}

// Public reports whether the note may appear in feeds, sitemaps and search.
func (p Post) Public() bool { return !p.Draft && !p.RequiresPassword }

// URLFor returns the site path of the note with the given identity.
func URLFor(year, slug string) string {
	return "/notes/" + year + "/" + slug
}

// frontMatter is the YAML header of a note.
type frontMatter struct {
	Title            string `yaml:"title"`
	Date             string `yaml:"date"`
	Summary          string `yaml:"summary"`
	Tags             Tags   `yaml:"tags"`
	Draft            bool   `yaml:"draft"`
	Cover            string `yaml:"cover"`
	UpdatedAt        string `yaml:"updatedAt"`
	RequiresPassword bool   `yaml:"requiresPassword"`
	PasswordHint     string `yaml:"passwordHint"`
}

// Tags accepts either a YAML list or a single comma-separated string.
type Tags []string

// UnmarshalYAML implements the yaml.v2 Unmarshaler used by the front-matter
// decoder.
func (t *Tags) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var list []string
	if err := unmarshal(&list); err == nil {
		*t = cleanTags(list)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	*t = cleanTags(strings.Split(s, ","))
	return nil
}

func cleanTags(vals []string) []string {
	out := []string{}
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
