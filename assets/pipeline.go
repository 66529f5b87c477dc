package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/folio/albums"
)

// LockFile is created inside an album's content folder while it is being
// processed.
const LockFile = ".assets.lock"

var (
	// ErrAlbumLocked means another run holds the album's lock.
	ErrAlbumLocked = errors.New("album is being processed by another run")
	// ErrAlbumNotFound means a named batch target has no content folder.
	ErrAlbumNotFound = errors.New("album not found")
)

// SkipError reports an album whose inputs are missing or malformed. Batch
// runs log it and move on.
type SkipError struct {
	Folder string
	Reason string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skip %s: %s", e.Folder, e.Reason)
}

func skip(folder, format string, args ...any) error {
	return &SkipError{Folder: folder, Reason: fmt.Sprintf(format, args...)}
}

// Result describes one processed album.
type Result struct {
	Folder   string
	Slug     string
	Images   int
	Manifest string
}

// Pipeline generates album derivatives with a Codec.
type Pipeline struct {
	opts  Options
	codec Codec
}

// New returns a Pipeline. Zero fields in opts take their defaults.
func New(opts Options, codec Codec) *Pipeline {
	opts.setDefaults()
	return &Pipeline{opts: opts, codec: codec}
}

// Options returns the effective settings.
func (p *Pipeline) Options() Options { return p.opts }

// Preflight verifies the codec can run before any album is touched.
func (p *Pipeline) Preflight() error {
	return p.codec.Check()
}

type source struct {
	name string
	id   string
	path string
	dims *Dimensions
}

// ProcessAlbum regenerates every derivative and the manifest for one
// content folder. Missing or malformed inputs return a *SkipError.
func (p *Pipeline) ProcessAlbum(ctx context.Context, folder string) (Result, error) {
	albumDir := filepath.Join(p.opts.ContentRoot, folder)

	desc, err := albums.ReadDescriptor(filepath.Join(albumDir, albums.DescriptorFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, skip(folder, "missing %s", albums.DescriptorFile)
		}
		return Result{}, skip(folder, "invalid %s: %v", albums.DescriptorFile, err)
	}

	originalDir := filepath.Join(albumDir, albums.OriginalDir)
	entries, err := os.ReadDir(originalDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, skip(folder, "missing %s/", albums.OriginalDir)
		}
		return Result{}, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && Supported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return Result{}, skip(folder, "no supported images in %s/", albums.OriginalDir)
	}
	slices.Sort(names)

	slug := desc.Slug
	if slug == "" {
		slug = folder
	}
	if !albums.ValidSlug(slug) {
		return Result{}, skip(folder, "invalid slug %q", slug)
	}

	sources := make([]source, len(names))
	seen := make(map[string]string, len(names))
	for i, name := range names {
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if prev, dup := seen[id]; dup {
			return Result{}, skip(folder, "%s and %s share the id %q", prev, name, id)
		}
		seen[id] = name
		sources[i] = source{name: name, id: id, path: filepath.Join(originalDir, name)}
	}

	lock := flock.New(filepath.Join(albumDir, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return Result{}, fmt.Errorf("lock %s: %w", folder, err)
	}
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", folder, ErrAlbumLocked)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.opts.Logger.Warn("release album lock", "folder", folder, "error", err)
		}
	}()

	outDir := filepath.Join(p.opts.PublicRoot, slug)
	for _, sub := range []string{albums.CoverDir, albums.ThumbsDir, albums.WebPDir} {
		if err := os.MkdirAll(filepath.Join(outDir, sub), 0o755); err != nil {
			return Result{}, err
		}
	}

	if err := p.renderImages(ctx, outDir, sources); err != nil {
		return Result{}, fmt.Errorf("%s: %w", folder, err)
	}

	cover := sources[0]
	if i := slices.IndexFunc(sources, func(s source) bool { return s.name == desc.Cover }); i >= 0 {
		cover = sources[i]
	}
	if err := p.renderCover(ctx, outDir, cover); err != nil {
		return Result{}, fmt.Errorf("%s: cover: %w", folder, err)
	}

	manifest := buildManifest(slug, desc, cover, sources, p.opts.Cover)
	manifestPath := filepath.Join(outDir, albums.ManifestFile)
	if err := writeManifest(manifestPath, manifest); err != nil {
		return Result{}, fmt.Errorf("%s: %w", folder, err)
	}

	p.prune(outDir, seen)
	p.opts.Logger.Info("album processed", "folder", folder, "slug", slug, "images", len(sources))
	return Result{Folder: folder, Slug: slug, Images: len(sources), Manifest: manifestPath}, nil
}

func (p *Pipeline) renderImages(ctx context.Context, outDir string, sources []source) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i := range sources {
		src := &sources[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if d, err := Probe(ctx, src.path, p.codec); err != nil {
				p.opts.Logger.Debug("probe failed", "file", src.name, "error", err)
			} else {
				src.dims = &d
			}

			var dims Dimensions
			if src.dims != nil {
				dims = *src.dims
			}
			full := Rendition{Width: fitWidth(p.opts.Full.Width, dims), Quality: p.opts.Full.Quality, Format: WebP}
			if err := p.codec.Render(ctx, src.path, filepath.Join(outDir, albums.WebPDir, src.id+".webp"), full); err != nil {
				return err
			}
			thumb := Rendition{Width: fitWidth(p.opts.Thumb.Width, dims), Quality: p.opts.Thumb.Quality, Format: WebP}
			return p.codec.Render(ctx, src.path, filepath.Join(outDir, albums.ThumbsDir, src.id+".webp"), thumb)
		})
	}
	return g.Wait()
}

func (p *Pipeline) renderCover(ctx context.Context, outDir string, cover source) error {
	c := p.opts.Cover
	dir := filepath.Join(outDir, albums.CoverDir)
	webp := Rendition{Width: c.Width, Height: c.Height, Crop: true, Quality: c.WebPQuality, Format: WebP}
	if err := p.codec.Render(ctx, cover.path, filepath.Join(dir, "cover.webp"), webp); err != nil {
		return err
	}
	jpg := Rendition{Width: c.Width, Height: c.Height, Crop: true, Quality: c.JPEGQuality, Format: JPEG}
	return p.codec.Render(ctx, cover.path, filepath.Join(dir, "cover.jpg"), jpg)
}

func buildManifest(slug string, desc albums.Descriptor, cover source, sources []source, c CoverOptions) albums.Manifest {
	m := albums.Manifest{
		Slug:        slug,
		Title:       desc.Title,
		Description: desc.Description,
		Cover: &albums.Cover{
			Source: cover.name,
			WebP:   albums.WebPath(slug, albums.CoverDir, "cover.webp"),
			JPG:    albums.WebPath(slug, albums.CoverDir, "cover.jpg"),
			Width:  c.Width,
			Height: c.Height,
		},
		Images: make([]albums.ManifestImage, 0, len(sources)),
	}
	if m.Title == "" {
		m.Title = slug
	}
	if desc.Date != "" {
		date := desc.Date
		m.Date = &date
	}
	for _, s := range sources {
		img := albums.ManifestImage{
			ID:       s.id,
			Filename: s.name,
			WebP:     albums.WebPath(slug, albums.WebPDir, s.id+".webp"),
			Thumb:    albums.WebPath(slug, albums.ThumbsDir, s.id+".webp"),
		}
		if s.dims != nil {
			w, h := s.dims.Width, s.dims.Height
			img.Width, img.Height = &w, &h
		}
		m.Images = append(m.Images, img)
	}
	return m
}

// writeManifest replaces the manifest through a temp file so readers never
// see a partial document.
func writeManifest(path string, m albums.Manifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// prune removes derivatives left over from sources that no longer exist.
func (p *Pipeline) prune(outDir string, ids map[string]string) {
	for _, sub := range []string{albums.ThumbsDir, albums.WebPDir} {
		dir := filepath.Join(outDir, sub)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || filepath.Ext(name) != ".webp" {
				continue
			}
			if _, ok := ids[strings.TrimSuffix(name, ".webp")]; ok {
				continue
			}
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				p.opts.Logger.Warn("remove stale derivative", "file", name, "error", err)
			}
		}
	}
}
