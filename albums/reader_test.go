package albums

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	public  string
	content string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		public:  filepath.Join(root, "public", "albums"),
		content: filepath.Join(root, "content", "albums"),
	}
	require.NoError(t, os.MkdirAll(f.public, 0o755))
	require.NoError(t, os.MkdirAll(f.content, 0o755))
	return f
}

func (f fixture) manifest(t *testing.T, folder string, m Manifest) {
	t.Helper()
	dir := filepath.Join(f.public, folder)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), raw, 0o644))
}

func (f fixture) descriptor(t *testing.T, folder string, d Descriptor) {
	t.Helper()
	dir := filepath.Join(f.content, folder)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFile), raw, 0o644))
}

func (f fixture) reader() *Reader {
	return NewReader(f.public, f.content)
}

func strp(s string) *string { return &s }

func TestListSortsDatedBeforeUndated(t *testing.T) {
	f := newFixture(t)
	f.manifest(t, "old", Manifest{Slug: "old", Title: "Old", Date: strp("2024-05-01")})
	f.manifest(t, "new", Manifest{Slug: "new", Title: "New", Date: strp("2026-01-10")})
	f.manifest(t, "undated", Manifest{Slug: "undated", Title: "Loose"})
	f.manifest(t, "same-b", Manifest{Slug: "same-b", Title: "B", Date: strp("2025-03-03")})
	f.manifest(t, "same-a", Manifest{Slug: "same-a", Title: "A", Date: strp("2025-03-03")})

	got, err := f.reader().List()
	require.NoError(t, err)
	require.Zero(t, got.UnreadableCount)

	var slugs []string
	for _, a := range got.Albums {
		slugs = append(slugs, a.Slug)
	}
	assert.Equal(t, []string{"new", "same-a", "same-b", "old", "undated"}, slugs)
}

func TestListCountsCorruptManifest(t *testing.T) {
	f := newFixture(t)
	f.manifest(t, "good", Manifest{Slug: "good", Title: "Good"})
	require.NoError(t, os.MkdirAll(filepath.Join(f.public, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.public, "broken", ManifestFile), []byte("{not json"), 0o644))

	got, err := f.reader().List()
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadableCount)
	require.Len(t, got.Albums, 1)
	assert.Equal(t, "good", got.Albums[0].Slug)
}

func TestListCountsFolderWithoutManifest(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.public, "empty"), 0o755))

	got, err := f.reader().List()
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadableCount)
	assert.Empty(t, got.Albums)
}

func TestListMissingRootIsEmpty(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "nope"), t.TempDir())
	got, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, got.Albums)
	assert.Zero(t, got.UnreadableCount)
}

func TestSummaryDefaultsAndCoverFallback(t *testing.T) {
	f := newFixture(t)
	f.manifest(t, "webp", Manifest{Slug: "webp", Cover: &Cover{WebP: "/albums/webp/cover/cover.webp", JPG: "/albums/webp/cover/cover.jpg"}})
	f.manifest(t, "jpg", Manifest{Slug: "jpg", Cover: &Cover{JPG: "/albums/jpg/cover/cover.jpg"}})
	f.manifest(t, "bare", Manifest{Slug: "bare", Images: []ManifestImage{{ID: "a"}, {ID: "b"}}})

	got, err := f.reader().List()
	require.NoError(t, err)

	bySlug := map[string]Summary{}
	for _, a := range got.Albums {
		bySlug[a.Slug] = a
	}
	assert.Equal(t, "/albums/webp/cover/cover.webp", bySlug["webp"].CoverSrc)
	assert.Equal(t, "/albums/jpg/cover/cover.jpg", bySlug["jpg"].CoverSrc)
	assert.Equal(t, "/albums/bare/cover/cover.jpg", bySlug["bare"].CoverSrc)
	assert.Equal(t, 2, bySlug["bare"].ImageCount)
	assert.Equal(t, "bare", bySlug["bare"].Title)
	assert.Equal(t, defaultDescription, bySlug["bare"].Description)
}

func TestAccessComesFromDescriptor(t *testing.T) {
	f := newFixture(t)
	f.manifest(t, "private", Manifest{Slug: "private", Title: "Private"})
	f.descriptor(t, "private", Descriptor{Slug: "private", RequiresPassword: true, PasswordHint: "first pet"})

	d, err := f.reader().Detail("private")
	require.NoError(t, err)
	assert.True(t, d.RequiresPassword)
	assert.Equal(t, "first pet", d.PasswordHint)
	assert.NotNil(t, d.Images)
}

func TestAccessFallsBackToFolderName(t *testing.T) {
	f := newFixture(t)
	f.manifest(t, "trip", Manifest{Slug: "renamed-trip", Title: "Trip"})
	f.descriptor(t, "trip", Descriptor{Slug: "trip", RequiresPassword: true})

	got, err := f.reader().List()
	require.NoError(t, err)
	require.Len(t, got.Albums, 1)
	assert.Equal(t, "renamed-trip", got.Albums[0].Slug)
	assert.True(t, got.Albums[0].RequiresPassword)
}

func TestManifestSlugOutsideContentIsIgnored(t *testing.T) {
	f := newFixture(t)
	// a descriptor one level above the content root must never be consulted
	outside := filepath.Join(filepath.Dir(f.content), "x")
	require.NoError(t, os.MkdirAll(outside, 0o755))
	raw, err := json.Marshal(Descriptor{Slug: "x", RequiresPassword: true, PasswordHint: "leaked"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(outside, DescriptorFile), raw, 0o644))

	f.manifest(t, "beach", Manifest{Slug: "../x", Title: "Beach"})
	f.manifest(t, "hills", Manifest{Slug: "../x", Title: "Hills"})
	f.descriptor(t, "hills", Descriptor{Slug: "hills", RequiresPassword: true, PasswordHint: "own"})

	got, err := f.reader().List()
	require.NoError(t, err)
	require.Len(t, got.Albums, 2)
	bySlug := map[string]Summary{}
	for _, a := range got.Albums {
		bySlug[a.Slug] = a
	}
	require.Contains(t, bySlug, "beach")
	require.Contains(t, bySlug, "hills")
	assert.False(t, bySlug["beach"].RequiresPassword)
	assert.True(t, bySlug["hills"].RequiresPassword)

	d, err := f.reader().Detail("beach")
	require.NoError(t, err)
	assert.Equal(t, "beach", d.Slug)
	assert.False(t, d.RequiresPassword)
	assert.Empty(t, d.PasswordHint)

	d, err = f.reader().Detail("hills")
	require.NoError(t, err)
	assert.Equal(t, "own", d.PasswordHint)
}

func TestDetailRejectsUnsafeSlugs(t *testing.T) {
	f := newFixture(t)
	f.manifest(t, "ok", Manifest{Slug: "ok"})

	for _, slug := range []string{"../ok", "a/b", "..", "OK", "Ok-Album", ""} {
		_, err := f.reader().Detail(slug)
		assert.Truef(t, errors.Is(err, ErrNotFound), "slug %q: got %v", slug, err)
	}
}

func TestDetailNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.reader().Detail("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.MkdirAll(filepath.Join(f.public, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.public, "broken", ManifestFile), []byte("["), 0o644))
	_, err = f.reader().Detail("broken")
	assert.ErrorIs(t, err, ErrNotFound)
}
