package folio

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/eringen/folio/assets"
)

// ErrInvalidConfig is returned when a configuration source cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultConfigFile is read when present in the working directory.
const DefaultConfigFile = "folio.toml"

// SiteConfig holds all configuration for a folio site.
type SiteConfig struct {
	Name        string `toml:"name"`        // Site name (default "Folio")
	URL         string `toml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `toml:"description"` // Site description for RSS and meta tags
	Author      string `toml:"author"`      // Author name for JSON-LD
	Language    string `toml:"language"`    // Content language (default "en")
	Collation   string `toml:"collation"`   // Title sort locale (default "zh-Hans")

	Addr       string `toml:"addr"`        // Listen address (default ":3000")
	ContentDir string `toml:"content_dir"` // default "content"
	PublicDir  string `toml:"public_dir"`  // default "public"
	DataDir    string `toml:"data_dir"`    // default "data"
	Production bool   `toml:"production"`  // hides drafts

	SessionSecret  string `toml:"session_secret"`
	CookieSecure   bool   `toml:"cookie_secure"` // Set true for HTTPS
	NotesPassword  string `toml:"notes_password"`
	AlbumsPassword string `toml:"albums_password"`

	AnalyticsEnabled bool   `toml:"analytics_enabled"`
	StatsToken       string `toml:"stats_token"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Albums AlbumConfig `toml:"albums"`

	// ephemeralSecret is set when SessionSecret was generated at startup.
	ephemeralSecret bool
}

// AlbumConfig holds the asset pipeline settings.
type AlbumConfig struct {
	ThumbWidth       int    `toml:"thumb_width"`
	ThumbQuality     int    `toml:"thumb_quality"`
	WebPWidth        int    `toml:"webp_width"`
	WebPQuality      int    `toml:"webp_quality"`
	CoverWidth       int    `toml:"cover_width"`
	CoverHeight      int    `toml:"cover_height"`
	CoverWebPQuality int    `toml:"cover_webp_quality"`
	CoverJPEGQuality int    `toml:"cover_jpeg_quality"`
	Workers          int    `toml:"workers"`
	ThumbnailBin     string `toml:"vips_thumbnail_bin"`
	HeaderBin        string `toml:"vips_header_bin"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() SiteConfig {
	var c SiteConfig
	c.setDefaults()
	return c
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Folio"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.Collation == "" {
		c.Collation = "zh-Hans"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.ContentDir == "" {
		c.ContentDir = "content"
	}
	if c.PublicDir == "" {
		c.PublicDir = "public"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "auto"
	}
	d := assets.DefaultOptions()
	a := &c.Albums
	setInt(&a.ThumbWidth, d.Thumb.Width)
	setInt(&a.ThumbQuality, d.Thumb.Quality)
	setInt(&a.WebPWidth, d.Full.Width)
	setInt(&a.WebPQuality, d.Full.Quality)
	setInt(&a.CoverWidth, d.Cover.Width)
	setInt(&a.CoverHeight, d.Cover.Height)
	setInt(&a.CoverWebPQuality, d.Cover.WebPQuality)
	setInt(&a.CoverJPEGQuality, d.Cover.JPEGQuality)
	setInt(&a.Workers, d.Workers)
	if a.ThumbnailBin == "" {
		a.ThumbnailBin = "vipsthumbnail"
	}
	if a.HeaderBin == "" {
		a.HeaderBin = "vipsheader"
	}
}

func setInt(v *int, d int) {
	if *v <= 0 {
		*v = d
	}
}

// PostsDir is where notes live.
func (c SiteConfig) PostsDir() string { return filepath.Join(c.ContentDir, "posts") }

// AlbumsContentDir is where album sources live.
func (c SiteConfig) AlbumsContentDir() string { return filepath.Join(c.ContentDir, "albums") }

// AlbumsPublicDir is where album derivatives and manifests are written.
func (c SiteConfig) AlbumsPublicDir() string { return filepath.Join(c.PublicDir, "albums") }

// AnalyticsDatabasePath is the analytics SQLite file.
func (c SiteConfig) AnalyticsDatabasePath() string { return filepath.Join(c.DataDir, "analytics.db") }

// IncludeDrafts reports whether drafts are listed and served.
func (c SiteConfig) IncludeDrafts() bool { return !c.Production }

// EphemeralSecret reports whether the session secret was generated at
// startup, so unlocked sessions will not survive a restart.
func (c SiteConfig) EphemeralSecret() bool { return c.ephemeralSecret }

// AssetOptions derives the asset pipeline options.
func (c SiteConfig) AssetOptions(logger *slog.Logger) assets.Options {
	a := c.Albums
	return assets.Options{
		ContentRoot: c.AlbumsContentDir(),
		PublicRoot:  c.AlbumsPublicDir(),
		Thumb:       assets.Size{Width: a.ThumbWidth, Quality: a.ThumbQuality},
		Full:        assets.Size{Width: a.WebPWidth, Quality: a.WebPQuality},
		Cover: assets.CoverOptions{
			Width:       a.CoverWidth,
			Height:      a.CoverHeight,
			WebPQuality: a.CoverWebPQuality,
			JPEGQuality: a.CoverJPEGQuality,
		},
		Workers: a.Workers,
		Logger:  logger,
	}
}

// Codec returns the libvips codec configured for the pipeline.
func (c SiteConfig) Codec() assets.VipsCodec {
	return assets.VipsCodec{ThumbnailBin: c.Albums.ThumbnailBin, HeaderBin: c.Albums.HeaderBin}
}

// LoadOptions controls LoadConfig.
type LoadOptions struct {
	// ConfigFile is a TOML file; when empty DefaultConfigFile is used if present.
	ConfigFile string
	// EnvFile is a dotenv file; when empty ".env" is used if present.
	EnvFile string
	// Lookup reads the process environment; defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
	Logger *slog.Logger
}

// LoadConfig builds the site configuration. Sources are layered from lowest
// to highest precedence: defaults, the TOML file, the dotenv file, then the
// process environment.
func LoadConfig(opts LoadOptions) (SiteConfig, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var cfg SiteConfig
	if err := readTOML(&cfg, opts.ConfigFile); err != nil {
		return SiteConfig{}, err
	}

	dotenv, err := readDotenv(opts.EnvFile)
	if err != nil {
		return SiteConfig{}, err
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	applyEnv(&cfg, env, logger)
	cfg.setDefaults()

	if cfg.SessionSecret == "" && (cfg.NotesPassword != "" || cfg.AlbumsPassword != "") {
		secret, err := randomSecret()
		if err != nil {
			return SiteConfig{}, err
		}
		cfg.SessionSecret = secret
		cfg.ephemeralSecret = true
		logger.Warn("SESSION_SECRET is not set; using an ephemeral secret, unlocked sessions end on restart")
	}
	return cfg, nil
}

func readTOML(cfg *SiteConfig, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("%w: open config: %v", ErrInvalidConfig, err)
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func readDotenv(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}
	return vals, nil
}

func applyEnv(cfg *SiteConfig, env func(string) (string, bool), logger *slog.Logger) {
	str := func(key string, dst *string) {
		if v, ok := env(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				logger.Warn("ignoring unparsable boolean", "key", key, "value", v)
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n <= 0 {
				logger.Warn("ignoring unparsable number, keeping default", "key", key, "value", v)
				return
			}
			*dst = n
		}
	}

	str("SITE_NAME", &cfg.Name)
	str("SITE_URL", &cfg.URL)
	str("SITE_DESCRIPTION", &cfg.Description)
	str("SITE_AUTHOR", &cfg.Author)
	str("SITE_LANGUAGE", &cfg.Language)
	str("COLLATION", &cfg.Collation)
	str("ADDR", &cfg.Addr)
	str("CONTENT_DIR", &cfg.ContentDir)
	str("PUBLIC_DIR", &cfg.PublicDir)
	str("DATA_DIR", &cfg.DataDir)
	if v, ok := env("APP_ENV"); ok {
		cfg.Production = strings.EqualFold(strings.TrimSpace(v), "production")
	}
	str("SESSION_SECRET", &cfg.SessionSecret)
	boolean("COOKIE_SECURE", &cfg.CookieSecure)
	str("NOTES_PASSWORD", &cfg.NotesPassword)
	str("ALBUMS_PASSWORD", &cfg.AlbumsPassword)
	boolean("ANALYTICS_ENABLED", &cfg.AnalyticsEnabled)
	str("STATS_TOKEN", &cfg.StatsToken)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	a := &cfg.Albums
	integer("ALBUM_THUMB_WIDTH", &a.ThumbWidth)
	integer("ALBUM_THUMB_QUALITY", &a.ThumbQuality)
	integer("ALBUM_WEBP_WIDTH", &a.WebPWidth)
	integer("ALBUM_WEBP_QUALITY", &a.WebPQuality)
	integer("ALBUM_COVER_WIDTH", &a.CoverWidth)
	integer("ALBUM_COVER_HEIGHT", &a.CoverHeight)
	integer("ALBUM_COVER_WEBP_QUALITY", &a.CoverWebPQuality)
	integer("ALBUM_COVER_JPEG_QUALITY", &a.CoverJPEGQuality)
	integer("ALBUM_WORKERS", &a.Workers)
	str("VIPS_THUMBNAIL_BIN", &a.ThumbnailBin)
	str("VIPS_HEADER_BIN", &a.HeaderBin)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
