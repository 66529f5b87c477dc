// Package albums reads photo albums from disk. An album is split across two
// trees: the author-owned descriptor under content/albums/<slug>/album.json
// and the generated manifest under public/albums/<slug>/manifest.json.
// Access control lives only in the descriptor, so regenerating images never
// changes who can see an album.
package albums

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// File names that make up the on-disk contract.
const (
	DescriptorFile = "album.json"
	ManifestFile   = "manifest.json"
	OriginalDir    = "original"
	CoverDir       = "cover"
	ThumbsDir      = "thumbs"
	WebPDir        = "webp"
)

// ErrNotFound is returned when an album does not exist, its slug is
// malformed, or its manifest cannot be read.
var ErrNotFound = errors.New("album not found")

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidSlug reports whether slug is safe to interpolate into a path.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// Descriptor is the author-written album.json.
type Descriptor struct {
	Slug             string `json:"slug"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Date             string `json:"date,omitempty"`
	Cover            string `json:"cover"`
	RequiresPassword bool   `json:"requiresPassword"`
	PasswordHint     string `json:"passwordHint,omitempty"`
}

// Manifest is the generated manifest.json describing derivative images.
type Manifest struct {
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Date        *string         `json:"date"`
	Cover       *Cover          `json:"cover,omitempty"`
	Images      []ManifestImage `json:"images"`
}

// Cover points at the two cover renditions.
type Cover struct {
	Source string `json:"source,omitempty"`
	WebP   string `json:"webp,omitempty"`
	JPG    string `json:"jpg,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ManifestImage is one source photo and its derivatives.
type ManifestImage struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Width    *int   `json:"width"`
	Height   *int   `json:"height"`
	WebP     string `json:"webp"`
	Thumb    string `json:"thumb"`
}

// WebPath returns the public URL of a file inside an album's output tree.
func WebPath(slug string, parts ...string) string {
	p := "/albums/" + slug
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// ReadDescriptor decodes an album.json file.
func ReadDescriptor(path string) (Descriptor, error) {
	var d Descriptor
	if err := readJSON(path, &d); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// ReadManifest decodes a manifest.json file.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	if err := readJSON(path, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
