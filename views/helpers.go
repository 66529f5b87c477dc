package views

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"net/url"
	"path"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/folio/posts"
)

// BuildURL joins path segments onto a base URL.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block using cfg values.
func WebsiteJsonLD(cfg SiteConfig) template.JS {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      BuildURL(cfg.URL),
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	return marshalJS(data)
}

// NoteJsonLD produces a Schema.org BlogPosting JSON-LD block for a note.
func NoteJsonLD(cfg SiteConfig, post posts.Post) template.JS {
	postURL := BuildURL(cfg.URL, post.URL)
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   post.Summary,
		"datePublished": post.Date,
		"wordCount":     post.WordCount,
		"url":           postURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if post.UpdatedAt != "" {
		data["dateModified"] = post.UpdatedAt
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	if len(post.Tags) > 0 {
		data["keywords"] = strings.Join(post.Tags, ", ")
	}
	return marshalJS(data)
}

func marshalJS(v any) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return template.JS(b)
}

// renderComponent inlines a templ component into an html/template page.
func renderComponent(ctx context.Context) func(templ.Component) (template.HTML, error) {
	return func(c templ.Component) (template.HTML, error) {
		if c == nil {
			return "", nil
		}
		var buf bytes.Buffer
		if err := c.Render(ctx, &buf); err != nil {
			return "", err
		}
		return template.HTML(buf.String()), nil
	}
}
