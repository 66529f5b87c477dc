// Package assets turns album sources under content/albums into the
// derivative images and manifest served from public/albums.
package assets

import (
	"log/slog"
	"path/filepath"
	"strings"
)

// Size is a width cap and lossy quality for one rendition.
type Size struct {
	Width   int
	Quality int
}

// CoverOptions configures the fixed cover box and its two encodings.
type CoverOptions struct {
	Width       int
	Height      int
	WebPQuality int
	JPEGQuality int
}

// Options configures a Pipeline.
type Options struct {
	ContentRoot string // content/albums
	PublicRoot  string // public/albums

	Thumb Size
	Full  Size
	Cover CoverOptions

	// Workers bounds how many images of one album render at once.
	// Values below 2 process images sequentially.
	Workers int

	Logger *slog.Logger
}

// DefaultOptions returns the stock rendition settings rooted at the
// conventional content and public directories.
func DefaultOptions() Options {
	return Options{
		ContentRoot: filepath.Join("content", "albums"),
		PublicRoot:  filepath.Join("public", "albums"),
		Thumb:       Size{Width: 480, Quality: 72},
		Full:        Size{Width: 1600, Quality: 82},
		Cover:       CoverOptions{Width: 1200, Height: 800, WebPQuality: 84, JPEGQuality: 86},
		Workers:     1,
	}
}

func (o *Options) setDefaults() {
	d := DefaultOptions()
	if o.ContentRoot == "" {
		o.ContentRoot = d.ContentRoot
	}
	if o.PublicRoot == "" {
		o.PublicRoot = d.PublicRoot
	}
	fillSize(&o.Thumb, d.Thumb)
	fillSize(&o.Full, d.Full)
	if o.Cover.Width <= 0 {
		o.Cover.Width = d.Cover.Width
	}
	if o.Cover.Height <= 0 {
		o.Cover.Height = d.Cover.Height
	}
	if o.Cover.WebPQuality <= 0 {
		o.Cover.WebPQuality = d.Cover.WebPQuality
	}
	if o.Cover.JPEGQuality <= 0 {
		o.Cover.JPEGQuality = d.Cover.JPEGQuality
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func fillSize(s *Size, d Size) {
	if s.Width <= 0 {
		s.Width = d.Width
	}
	if s.Quality <= 0 {
		s.Quality = d.Quality
	}
}

var supportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".avif": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Supported reports whether name has an image extension the pipeline
// accepts, ignoring case.
func Supported(name string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(name))]
}
