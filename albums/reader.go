package albums

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/eringen/folio/collation"
)

const defaultDescription = "No description yet"

// Summary is one entry of the album index page.
type Summary struct {
	Slug             string
	Title            string
	Description      string
	Date             string // empty when the album is undated
	CoverSrc         string
	ImageCount       int
	RequiresPassword bool
}

// Detail is a single album with its images.
type Detail struct {
	Summary
	PasswordHint string
	Images       []ManifestImage
}

// Listing is the result of Reader.List. UnreadableCount counts output
// folders whose manifest was missing or corrupt.
type Listing struct {
	Albums          []Summary
	UnreadableCount int
}

// Reader merges generated manifests with descriptor access metadata.
// It holds no state besides its roots and is safe for concurrent use.
type Reader struct {
	PublicRoot  string // public/albums
	ContentRoot string // content/albums
	Logger      *slog.Logger
}

// NewReader returns a Reader over the given output and content roots.
func NewReader(publicRoot, contentRoot string) *Reader {
	return &Reader{PublicRoot: publicRoot, ContentRoot: contentRoot}
}

func (r *Reader) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// List returns every readable album sorted newest first. A missing output
// root yields an empty listing.
func (r *Reader) List() (Listing, error) {
	entries, err := os.ReadDir(r.PublicRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Listing{}, nil
		}
		return Listing{}, err
	}

	var out Listing
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder := entry.Name()
		m, err := ReadManifest(filepath.Join(r.PublicRoot, folder, ManifestFile))
		if err != nil {
			r.logger().Warn("album manifest unreadable", "folder", folder, "error", err)
			out.UnreadableCount++
			continue
		}
		slug := r.manifestSlug(m, folder)
		meta := r.access(folder, slug)
		out.Albums = append(out.Albums, summarize(m, slug, meta))
	}

	slices.SortStableFunc(out.Albums, func(a, b Summary) int {
		return collation.Dated(a.Date, a.Title, b.Date, b.Title)
	})
	return out, nil
}

// Detail returns one album by slug, or ErrNotFound.
func (r *Reader) Detail(slug string) (Detail, error) {
	if !ValidSlug(slug) {
		return Detail{}, ErrNotFound
	}
	m, err := ReadManifest(filepath.Join(r.PublicRoot, slug, ManifestFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger().Warn("album manifest unreadable", "slug", slug, "error", err)
		}
		return Detail{}, ErrNotFound
	}
	normalized := r.manifestSlug(m, slug)
	meta := r.access(slug, normalized)
	images := m.Images
	if images == nil {
		images = []ManifestImage{}
	}
	return Detail{
		Summary:      summarize(m, normalized, meta),
		PasswordHint: meta.PasswordHint,
		Images:       images,
	}, nil
}

// manifestSlug is the slug a manifest declares, or its folder name when the
// manifest has none or declares one that is not a valid slug.
func (r *Reader) manifestSlug(m Manifest, folder string) string {
	if m.Slug == "" {
		return folder
	}
	if !ValidSlug(m.Slug) {
		r.logger().Warn("album manifest slug invalid, using folder", "folder", folder, "slug", m.Slug)
		return folder
	}
	return m.Slug
}

// access resolves the descriptor for an album, checking the manifest's slug
// first and then the output folder name when the two differ. An album with
// no readable descriptor is treated as public.
func (r *Reader) access(folder, slug string) Descriptor {
	if !ValidSlug(slug) {
		slug = folder
	}
	d, err := ReadDescriptor(filepath.Join(r.ContentRoot, slug, DescriptorFile))
	if err == nil {
		return d
	}
	if slug != folder {
		if d, err := ReadDescriptor(filepath.Join(r.ContentRoot, folder, DescriptorFile)); err == nil {
			r.logger().Warn("album folder and slug differ", "folder", folder, "slug", slug)
			return d
		}
	}
	return Descriptor{}
}

func summarize(m Manifest, slug string, meta Descriptor) Summary {
	s := Summary{
		Slug:             slug,
		Title:            m.Title,
		Description:      m.Description,
		ImageCount:       len(m.Images),
		RequiresPassword: meta.RequiresPassword,
	}
	if s.Title == "" {
		s.Title = slug
	}
	if s.Description == "" {
		s.Description = defaultDescription
	}
	if m.Date != nil {
		s.Date = *m.Date
	}
	switch {
	case m.Cover != nil && m.Cover.WebP != "":
		s.CoverSrc = m.Cover.WebP
	case m.Cover != nil && m.Cover.JPG != "":
		s.CoverSrc = m.Cover.JPG
	default:
		s.CoverSrc = WebPath(slug, CoverDir, "cover.jpg")
	}
	return s
}
