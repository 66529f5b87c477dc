// Package folio serves a personal site of Markdown notes and photo albums
// with Echo. Content is read from the filesystem on every request; the
// album derivatives are produced offline by the assets package.
package folio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/language"

	"github.com/eringen/folio/albums"
	"github.com/eringen/folio/analytics"
	"github.com/eringen/folio/collation"
	"github.com/eringen/folio/markdown"
	"github.com/eringen/folio/posts"
	"github.com/eringen/folio/views"
)

const (
	analyticsRetentionDays = 365
	shutdownTimeout        = 10 * time.Second
)

// Option configures additional App behavior.
type Option func(*App)

// WithLogger sets the application logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are registered.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// App is the central folio application. It wires together the content
// readers, renderer, search index, analytics, handlers and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Logger *slog.Logger

	Posts    *posts.Reader
	Albums   *albums.Reader
	Markdown *markdown.Renderer
	Views    *views.Views
	Search   *SearchIndex

	unlockLimiter  *LoginLimiter
	statsLimiter   *LoginLimiter
	analyticsStore *analytics.Store
	analytics      *analytics.Handler
	stopCleanup    func()
	customRoutes   []func(*App)
}

// New creates a folio App with its middleware and routes registered.
// The returned App serves requests through Echo without Start being called,
// which is how tests drive it.
func New(cfg SiteConfig, opts ...Option) (*App, error) {
	cfg.setDefaults()
	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.SessionSecret = secret
		cfg.ephemeralSecret = true
	}

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	tag := collation.DefaultLanguage
	if cfg.Collation != "" {
		parsed, err := language.Parse(cfg.Collation)
		if err != nil {
			a.Logger.Warn("unknown collation locale, using default", "collation", cfg.Collation, "error", err)
		} else {
			tag = parsed
		}
	}
	collation.SetLanguage(tag)

	vs, err := views.New()
	if err != nil {
		return nil, fmt.Errorf("folio: load views: %w", err)
	}
	a.Views = vs
	a.Markdown = markdown.New()

	a.Posts = posts.NewReader(cfg.PostsDir())
	a.Posts.Logger = a.Logger
	a.Albums = albums.NewReader(cfg.AlbumsPublicDir(), cfg.AlbumsContentDir())
	a.Albums.Logger = a.Logger

	a.Search = NewSearchIndex(a.Posts, a.Logger)
	if err := a.Search.Rebuild(); err != nil {
		a.Logger.Warn("search index unavailable", "error", err)
	}

	a.unlockLimiter = NewLoginLimiter(5, time.Minute)
	a.statsLimiter = NewLoginLimiter(30, time.Minute)

	if cfg.AnalyticsEnabled {
		if err := a.initAnalytics(); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.NotesPassword == "" && cfg.AlbumsPassword == "" {
		a.Logger.Info("no section passwords configured; notes and albums are public")
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return a, nil
}

func (a *App) initAnalytics() error {
	if err := os.MkdirAll(a.Config.DataDir, 0o755); err != nil {
		return fmt.Errorf("folio: create data dir: %w", err)
	}
	store, err := analytics.NewStore(a.Config.AnalyticsDatabasePath())
	if err != nil {
		return fmt.Errorf("folio: init analytics: %w", err)
	}
	a.analyticsStore = store
	if err := analytics.InitSalt(context.Background(), store); err != nil {
		return fmt.Errorf("folio: init analytics salt: %w", err)
	}
	a.analytics = analytics.NewHandler(store, a.Config.StatsToken, a.statsLimiter, a.Logger)
	a.stopCleanup = store.StartCleanupScheduler(analyticsRetentionDays, 24*time.Hour, a.Logger)
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	embedded, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.GET("/_folio/chroma.css", handleChromaCSS)
	e.GET("/_folio/*", echo.WrapHandler(http.StripPrefix("/_folio/", http.FileServer(http.FS(embedded)))))

	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/rss.xml", a.handleFeed)

	e.GET("/", a.handleHome)
	e.GET("/notes", a.handleNotes)
	e.GET("/notes/unlock", a.handleUnlockPage(SectionNotes))
	e.GET("/notes/:year/:slug", a.handleNote)
	e.GET("/albums", a.handleAlbums)
	e.GET("/albums/unlock", a.handleUnlockPage(SectionAlbums))
	e.GET("/albums/:slug", a.handleAlbum)
	e.GET("/albums/:slug/*", a.handleAlbumFile)
	e.GET("/projects", a.handleProjects)
	e.GET("/moments", a.handleMoments)

	e.POST("/api/notes/unlock", a.handleUnlock(SectionNotes))
	e.POST("/api/albums/unlock", a.handleUnlock(SectionAlbums))
	e.GET("/api/search", a.handleSearch)
	e.GET("/api/stats", a.handleStats)

	// favicon and any other files under the public directory
	e.Static("/", a.Config.PublicDir)
}

func handleChromaCSS(c echo.Context) error {
	css, err := markdown.StyleCSS()
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/css; charset=utf-8", css)
}

func (a *App) handleStats(c echo.Context) error {
	if a.analytics == nil {
		return echo.ErrNotFound
	}
	return a.analytics.Stats(c)
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
// The search index follows changes under the posts directory meanwhile.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := a.Search.Watch(ctx, a.Config.PostsDir()); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Warn("search watcher stopped", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", "addr", a.Config.Addr, "url", a.Config.URL)
		errCh <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("folio: shutdown: %w", err)
	}
	return nil
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if a.unlockLimiter != nil {
		a.unlockLimiter.Stop()
	}
	if a.statsLimiter != nil {
		a.statsLimiter.Stop()
	}
	if a.Search != nil {
		a.Search.Close()
	}
	if a.analyticsStore != nil {
		return a.analyticsStore.Close()
	}
	return nil
}
