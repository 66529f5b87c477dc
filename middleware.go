package folio

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	sessionName   = "folio_session"
	sessionMaxAge = 60 * 60 * 24 * 30
	csrfCookie    = "_csrf"
)

// Protected sections.
const (
	SectionNotes  = "notes"
	SectionAlbums = "albums"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())
	e.Pre(middleware.RemoveTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
	}))

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				a.Logger.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			a.Logger.Info("request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return strings.HasPrefix(p, "/albums/") && strings.Contains(p, ".")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self'; connect-src 'self'",
		HSTSMaxAge:            31536000,
	}))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     csrfCookie,
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.CookieSecure,
		ErrorHandler: func(err error, c echo.Context) error {
			return c.JSON(http.StatusForbidden, map[string]string{"message": "Forbidden"})
		},
	}))

	e.Use(cacheControlMiddleware)
	e.Use(a.sectionGate)

	if a.analytics != nil {
		e.Use(a.analytics.Middleware)
	}
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p := c.Request().URL.Path
		h := c.Response().Header()
		switch {
		case strings.HasPrefix(p, "/_folio/"):
			h.Set("Cache-Control", "public, max-age=86400")
		case strings.HasPrefix(p, "/albums/") && strings.Contains(p, "."):
			h.Set("Cache-Control", "public, max-age=31536000, immutable")
		case p == "/sitemap.xml" || p == "/robots.txt":
			h.Set("Cache-Control", "public, max-age=86400")
		case p == "/rss.xml":
			h.Set("Cache-Control", "public, max-age=3600, stale-while-revalidate=86400")
		case strings.HasPrefix(p, "/api/"), strings.HasSuffix(p, "/unlock"):
			h.Set("Cache-Control", "no-store")
		case strings.HasPrefix(p, "/notes"), strings.HasPrefix(p, "/albums"):
			// gated pages must not be shared between unlocked and locked visitors
			h.Set("Cache-Control", "private, no-cache")
		default:
			h.Set("Cache-Control", "public, max-age=3600")
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   sessionMaxAge,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// sectionPassword returns the configured password for a section, or "" when
// the section is public.
func (a *App) sectionPassword(section string) string {
	switch section {
	case SectionNotes:
		return a.Config.NotesPassword
	case SectionAlbums:
		return a.Config.AlbumsPassword
	}
	return ""
}

// sectionOf maps a request path to the section it belongs to.
func sectionOf(p string) string {
	for _, s := range []string{SectionNotes, SectionAlbums} {
		base := "/" + s
		if p == base || strings.HasPrefix(p, base+"/") {
			return s
		}
	}
	return ""
}

// sectionGate redirects requests under a password-protected section to its
// unlock page until the session has been unlocked. Sections without a
// configured password are open.
func (a *App) sectionGate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p := c.Request().URL.Path
		section := sectionOf(p)
		if section == "" || a.sectionPassword(section) == "" {
			return next(c)
		}
		if p == "/"+section+"/unlock" || IsUnlocked(c, section) {
			return next(c)
		}
		from := p
		if q := c.Request().URL.RawQuery; q != "" {
			from += "?" + q
		}
		return c.Redirect(http.StatusFound, "/"+section+"/unlock?from="+url.QueryEscape(from))
	}
}

// IsUnlocked reports whether the session has unlocked section.
func IsUnlocked(c echo.Context, section string) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	ok, _ := sess.Values[section].(bool)
	return ok
}

func setUnlocked(c echo.Context, section string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values[section] = true
	return sess.Save(c.Request(), c.Response())
}

// safeFrom returns from when it points inside the section, otherwise the
// section's index.
func safeFrom(section, from string) string {
	base := "/" + section
	u, err := url.Parse(from)
	if err != nil || u.Scheme != "" || u.Host != "" || strings.HasPrefix(from, "//") {
		return base
	}
	if u.Path != base && !strings.HasPrefix(u.Path, base+"/") {
		return base
	}
	if u.Path == base+"/unlock" {
		return base
	}
	return from
}
