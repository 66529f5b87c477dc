package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/albums"
	"github.com/eringen/folio/posts"
)

func renderPage(t *testing.T, name string, p Page) string {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, v.Page(name, p).Render(context.Background(), &buf))
	return buf.String()
}

var site = SiteConfig{Name: "Folio", URL: "https://example.com", Language: "en"}

func TestEveryPageParses(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	for _, name := range pageNames {
		assert.Contains(t, v.pages, name)
	}
}

func TestNotePageInlinesContent(t *testing.T) {
	post := posts.Post{Title: "Hello <World>", Date: "2026-02-08", URL: "/notes/2026/hello", WordCount: 1204, Tags: []string{"go", "web"}}
	out := renderPage(t, NotePage, Page{
		Site:   site,
		Meta:   PageMeta{Title: post.Title, OGType: "article"},
		JSONLD: NoteJsonLD(site, post),
		Data:   NoteData{Post: post, Content: templ.Raw("<p>body <b>bold</b></p>")},
	})
	assert.Contains(t, out, "<p>body <b>bold</b></p>")
	assert.Contains(t, out, "Hello &lt;World&gt;")
	assert.Contains(t, out, "Feb 8, 2026")
	assert.Contains(t, out, "1,204 words")
	assert.Contains(t, out, "go, web")
	assert.Contains(t, out, `"@type":"BlogPosting"`)
}

func TestAlbumsPageShowsUnreadableNotice(t *testing.T) {
	out := renderPage(t, AlbumsPage, Page{
		Site: site,
		Data: AlbumsData{
			Albums:     []albums.Summary{{Slug: "trip", Title: "Trip", CoverSrc: "/albums/trip/cover/cover.webp", ImageCount: 3}},
			Unreadable: 2,
		},
	})
	assert.Contains(t, out, "2 album(s) could not be read")
	assert.Contains(t, out, `href="/albums/trip"`)
	assert.Contains(t, out, "3 photos")
}

func TestAlbumPageDimensions(t *testing.T) {
	w, h := 800, 600
	out := renderPage(t, AlbumPage, Page{
		Site: site,
		Data: AlbumData{Album: albums.Detail{
			Summary: albums.Summary{Slug: "trip", Title: "Trip"},
			Images: []albums.ManifestImage{
				{ID: "a", Filename: "a.jpg", Width: &w, Height: &h, WebP: "/albums/trip/webp/a.webp", Thumb: "/albums/trip/thumbs/a.webp"},
				{ID: "b", Filename: "b.avif", WebP: "/albums/trip/webp/b.webp", Thumb: "/albums/trip/thumbs/b.webp"},
			},
		}},
	})
	assert.Contains(t, out, `width="800" height="600"`)
	assert.Equal(t, 1, strings.Count(out, `width="`))
}

func TestUnlockPage(t *testing.T) {
	out := renderPage(t, UnlockPage, Page{Site: site, Data: UnlockData{Section: "albums", From: "/albums/trip", Hint: "dog"}})
	assert.Contains(t, out, `data-unlock="/api/albums/unlock"`)
	assert.Contains(t, out, `data-from="/albums/trip"`)
	assert.Contains(t, out, "Hint: dog")
}

func TestUnknownPage(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	err = v.Page("nope", Page{}).Render(context.Background(), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "https://example.com/", BuildURL("https://example.com"))
	assert.Equal(t, "https://example.com/notes/2026/a", BuildURL("https://example.com/", "/notes/2026/a"))
	assert.Equal(t, "https://example.com/blog/albums", BuildURL("https://example.com/blog", "albums"))
}
