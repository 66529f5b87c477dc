package folio

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/views"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// buildSitemap lists the index pages plus every post and album that is
// reachable without a password.
func (a *App) buildSitemap() (sitemapURLSet, error) {
	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: views.BuildURL(base)},
		{Loc: views.BuildURL(base, "/notes")},
		{Loc: views.BuildURL(base, "/albums")},
		{Loc: views.BuildURL(base, "/projects")},
		{Loc: views.BuildURL(base, "/moments")},
	}

	list, err := a.Posts.ListAll(false)
	if err != nil {
		return sitemapURLSet{}, err
	}
	if a.Config.NotesPassword == "" {
		for _, p := range list {
			if !p.Public() {
				continue
			}
			urls = append(urls, sitemapURL{Loc: views.BuildURL(base, p.URL), LastMod: postDate(p)})
		}
	}

	listing, err := a.Albums.List()
	if err != nil {
		return sitemapURLSet{}, err
	}
	if a.Config.AlbumsPassword == "" {
		for _, s := range listing.Albums {
			if s.RequiresPassword {
				continue
			}
			urls = append(urls, sitemapURL{Loc: views.BuildURL(base, "/albums", s.Slug), LastMod: s.Date})
		}
	}

	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}, nil
}

func (a *App) handleSitemap(c echo.Context) error {
	sitemap, err := a.buildSitemap()
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
