package folio

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/posts"
	"github.com/eringen/folio/views"
)

const atomNS = "http://www.w3.org/2005/Atom"

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Self          atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	PubDate     string  `xml:"pubDate"`
	Description string  `xml:"description"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// feedDate formats a front-matter date for RSS. Plain dates are taken as UTC
// midnight; anything unparsable falls back to now.
func feedDate(s string, now time.Time) string {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC1123Z)
		}
	}
	return now.UTC().Format(time.RFC1123Z)
}

func postDate(p posts.Post) string {
	if p.UpdatedAt != "" {
		return p.UpdatedAt
	}
	return p.Date
}

// buildFeed lists published, unprotected posts, newest first.
func (a *App) buildFeed(list []posts.Post, now time.Time) rssXML {
	base := a.Config.URL
	items := make([]rssItem, 0, len(list))
	lastBuild := now.UTC().Format(time.RFC1123Z)
	for _, p := range list {
		if !p.Public() {
			continue
		}
		if len(items) == 0 {
			lastBuild = feedDate(postDate(p), now)
		}
		link := views.BuildURL(base, p.URL)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        link,
			GUID:        rssGUID{Value: link, IsPermaLink: true},
			PubDate:     feedDate(postDate(p), now),
			Description: p.Summary,
		})
	}
	return rssXML{
		Version: "2.0",
		Atom:    atomNS,
		Channel: rssChannel{
			Title:         a.Config.Name,
			Link:          views.BuildURL(base),
			Description:   a.Config.Description,
			Language:      a.Config.Language,
			LastBuildDate: lastBuild,
			Self:          atomLink{Href: views.BuildURL(base, "/rss.xml"), Rel: "self", Type: "application/rss+xml"},
			Items:         items,
		},
	}
}

func (a *App) handleFeed(c echo.Context) error {
	// drafts never reach the feed, whatever the environment
	list, err := a.Posts.ListAll(false)
	if err != nil {
		return err
	}
	feed := a.buildFeed(list, time.Now())
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
