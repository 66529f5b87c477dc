// Package views renders the site's pages. Pages are html/template files
// embedded in the binary and exposed as templ components, so handlers treat
// them like any other component.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/folio/posts"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page template names.
const (
	HomePage     = "home"
	NotesPage    = "notes"
	NotePage     = "note"
	AlbumsPage   = "albums"
	AlbumPage    = "album"
	UnlockPage   = "unlock"
	ProjectsPage = "projects"
	MomentsPage  = "moments"
	StatusPage   = "status"
)

var pageNames = []string{
	HomePage, NotesPage, NotePage, AlbumsPage, AlbumPage,
	UnlockPage, ProjectsPage, MomentsPage, StatusPage,
}

var baseFuncs = template.FuncMap{
	"formatDate": posts.FormatDate,
	"wordCount":  posts.FormatWordCount,
	"join":       strings.Join,
	"year": func(date string) string {
		if len(date) >= 4 {
			return date[:4]
		}
		return date
	},
	"component": func(templ.Component) (template.HTML, error) {
		return "", fmt.Errorf("component called outside a render")
	},
}

// Views holds the parsed page templates. It is safe for concurrent use.
type Views struct {
	pages map[string]*template.Template
}

// New parses every page against the shared layout.
func New() (*Views, error) {
	v := &Views{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(baseFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

// Page returns a component rendering the named page inside the layout.
func (v *Views) Page(name string, p Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		base, ok := v.pages[name]
		if !ok {
			return fmt.Errorf("views: unknown page %q", name)
		}
		t, err := base.Clone()
		if err != nil {
			return err
		}
		t.Funcs(template.FuncMap{"component": renderComponent(ctx)})
		return t.ExecuteTemplate(w, "layout.html", p)
	})
}
