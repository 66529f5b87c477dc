package folio

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/albums"
	"github.com/eringen/folio/posts"
	"github.com/eringen/folio/profile"
	"github.com/eringen/folio/views"
)

const (
	homeNotes  = 5
	homeAlbums = 6
)

func (a *App) canonical(p string) string {
	return views.BuildURL(a.Config.URL, p)
}

func (a *App) handleHome(c echo.Context) error {
	list, err := a.Posts.ListAll(a.Config.IncludeDrafts())
	if err != nil {
		return err
	}
	if len(list) > homeNotes {
		list = list[:homeNotes]
	}
	listing, err := a.Albums.List()
	if err != nil {
		return err
	}
	albs := listing.Albums
	if len(albs) > homeAlbums {
		albs = albs[:homeAlbums]
	}
	p := a.page("home", views.PageMeta{URL: a.canonical("/")}, views.HomeData{Posts: list, Albums: albs})
	p.JSONLD = views.WebsiteJsonLD(a.site())
	return a.renderPage(c, http.StatusOK, views.HomePage, p)
}

func (a *App) handleNotes(c echo.Context) error {
	list, err := a.Posts.ListAll(a.Config.IncludeDrafts())
	if err != nil {
		return err
	}
	meta := views.PageMeta{Title: "Notes", URL: a.canonical("/notes")}
	data := views.NotesData{Groups: posts.GroupByYear(list), Total: len(list)}
	return a.renderPage(c, http.StatusOK, views.NotesPage, a.page(SectionNotes, meta, data))
}

func (a *App) handleNote(c echo.Context) error {
	post, err := a.Posts.GetBySlug(c.Param("year"), c.Param("slug"), a.Config.IncludeDrafts())
	if errors.Is(err, posts.ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}

	content, err := a.Markdown.Render(post.Body)
	if err != nil {
		return err
	}

	data := views.NoteData{Post: post, Content: content}
	if list, err := a.Posts.ListAll(a.Config.IncludeDrafts()); err == nil {
		data.Prev, data.Next = neighbours(list, post)
	}

	meta := views.PageMeta{
		Title:       post.Title,
		Description: post.Summary,
		URL:         a.canonical(post.URL),
		OGType:      "article",
		NoIndex:     post.Draft || post.RequiresPassword,
	}
	p := a.page(SectionNotes, meta, data)
	p.JSONLD = views.NoteJsonLD(a.site(), post)
	return a.renderPage(c, http.StatusOK, views.NotePage, p)
}

// neighbours returns the older and newer posts around current in a list
// sorted newest first.
func neighbours(list []posts.Post, current posts.Post) (older, newer *posts.Post) {
	for i := range list {
		if list[i].Year != current.Year || list[i].Slug != current.Slug {
			continue
		}
		if i+1 < len(list) {
			older = &list[i+1]
		}
		if i > 0 {
			newer = &list[i-1]
		}
		break
	}
	return older, newer
}

func (a *App) handleAlbums(c echo.Context) error {
	listing, err := a.Albums.List()
	if err != nil {
		return err
	}
	meta := views.PageMeta{Title: "Albums", URL: a.canonical("/albums")}
	data := views.AlbumsData{Albums: listing.Albums, Unreadable: listing.UnreadableCount}
	return a.renderPage(c, http.StatusOK, views.AlbumsPage, a.page(SectionAlbums, meta, data))
}

func (a *App) handleAlbum(c echo.Context) error {
	detail, err := a.Albums.Detail(c.Param("slug"))
	if errors.Is(err, albums.ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	meta := views.PageMeta{
		Title:       detail.Title,
		Description: detail.Description,
		URL:         a.canonical("/albums/" + detail.Slug),
		NoIndex:     detail.RequiresPassword,
	}
	return a.renderPage(c, http.StatusOK, views.AlbumPage, a.page(SectionAlbums, meta, views.AlbumData{Album: detail}))
}

// handleAlbumFile serves generated derivatives and manifests from the album
// output root. Hidden files and paths leaving the album are not served.
func (a *App) handleAlbumFile(c echo.Context) error {
	slug := c.Param("slug")
	rest := c.Param("*")
	if !albums.ValidSlug(slug) || rest == "" {
		return echo.ErrNotFound
	}
	name := slug + "/" + rest
	if !fs.ValidPath(name) {
		return echo.ErrNotFound
	}
	for _, part := range strings.Split(rest, "/") {
		if strings.HasPrefix(part, ".") {
			return echo.ErrNotFound
		}
	}
	return echo.StaticFileHandler(name, os.DirFS(a.Config.AlbumsPublicDir()))(c)
}

func (a *App) handleProjects(c echo.Context) error {
	list, err := profile.LoadProjects(a.Config.ContentDir)
	if err != nil {
		return err
	}
	meta := views.PageMeta{Title: "Projects", URL: a.canonical("/projects")}
	return a.renderPage(c, http.StatusOK, views.ProjectsPage, a.page("projects", meta, views.ProjectsData{Projects: list}))
}

func (a *App) handleMoments(c echo.Context) error {
	list, err := profile.LoadMoments(a.Config.ContentDir)
	if err != nil {
		return err
	}
	meta := views.PageMeta{Title: "Moments", URL: a.canonical("/moments")}
	return a.renderPage(c, http.StatusOK, views.MomentsPage, a.page("moments", meta, views.MomentsData{Moments: list}))
}

func (a *App) handleRobots(c echo.Context) error {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	for _, s := range []string{SectionNotes, SectionAlbums} {
		if a.sectionPassword(s) != "" {
			b.WriteString("Disallow: /" + s + "\n")
		}
	}
	b.WriteString("Disallow: /api/\n\n")
	b.WriteString("Sitemap: " + a.canonical("/sitemap.xml") + "\n")
	return c.String(http.StatusOK, b.String())
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}

	// JSON endpoints keep echo's JSON error bodies.
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		a.Echo.DefaultHTTPErrorHandler(err, c)
		return
	}

	var msg string
	switch {
	case code == http.StatusNotFound:
		msg = "This page could not be found."
	case code >= 500:
		a.Logger.Error("server error", "path", c.Request().URL.Path, "error", err)
		code = http.StatusInternalServerError
		msg = "Something went wrong on our side."
	default:
		a.Echo.DefaultHTTPErrorHandler(err, c)
		return
	}

	meta := views.PageMeta{Title: http.StatusText(code), NoIndex: true}
	p := a.page("", meta, views.StatusData{Code: code, Message: msg})
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if rerr := a.renderPage(c, code, views.StatusPage, p); rerr != nil {
		a.Logger.Error("render error page", "error", rerr)
		_ = c.String(code, http.StatusText(code))
	}
}
