package folio

import (
	"bytes"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/views"
)

func (a *App) site() views.SiteConfig {
	return views.SiteConfig{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		Author:      a.Config.Author,
		Language:    a.Config.Language,
	}
}

// page assembles the layout data for a named page.
func (a *App) page(section string, meta views.PageMeta, data any) views.Page {
	return views.Page{
		Site:    a.site(),
		Meta:    meta,
		Section: section,
		Data:    data,
	}
}

// renderPage renders into a buffer first so a template failure can still
// become an error page instead of a truncated response.
func (a *App) renderPage(c echo.Context, code int, name string, p views.Page) error {
	var buf bytes.Buffer
	if err := a.Views.Page(name, p).Render(c.Request().Context(), &buf); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return c.HTMLBlob(code, buf.Bytes())
}
