package views

import (
	"html/template"

	"github.com/a-h/templ"

	"github.com/eringen/folio/albums"
	"github.com/eringen/folio/posts"
	"github.com/eringen/folio/profile"
)

// SiteConfig holds the site-wide settings every page needs.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
	Author      string
	Language    string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	NoIndex     bool
}

// Page is what the layout renders. Data holds the page-specific struct.
type Page struct {
	Site    SiteConfig
	Meta    PageMeta
	Section string // "home", "notes", "albums", "projects" or "moments"
	JSONLD  template.JS
	Data    any
}

type HomeData struct {
	Posts  []posts.Post
	Albums []albums.Summary
}

type NotesData struct {
	Groups []posts.YearGroup
	Total  int
}

type NoteData struct {
	Post    posts.Post
	Content templ.Component
	Prev    *posts.Post
	Next    *posts.Post
}

type AlbumsData struct {
	Albums     []albums.Summary
	Unreadable int
}

type AlbumData struct {
	Album albums.Detail
}

// UnlockData drives the password form of a protected section.
type UnlockData struct {
	Section string // "notes" or "albums"
	From    string
	Hint    string
}

type ProjectsData struct {
	Projects []profile.Project
}

type MomentsData struct {
	Moments []profile.Moment
}

type StatusData struct {
	Code    int
	Message string
}
