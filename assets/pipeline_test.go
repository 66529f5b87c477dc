package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/eringen/folio/albums"
)

type call struct {
	src, dst string
	r        Rendition
}

type fakeCodec struct {
	mu       sync.Mutex
	calls    []call
	checkErr error
	failOn   string
}

func (f *fakeCodec) Check() error { return f.checkErr }

func (f *fakeCodec) Render(_ context.Context, src, dst string, r Rendition) error {
	if f.failOn != "" && filepath.Base(src) == f.failOn {
		return errors.New("decode failed")
	}
	f.mu.Lock()
	f.calls = append(f.calls, call{src: src, dst: dst, r: r})
	f.mu.Unlock()
	return os.WriteFile(dst, []byte(r.Format.String()), 0o644)
}

func (f *fakeCodec) byDst(suffix string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if strings.HasSuffix(filepath.ToSlash(c.dst), suffix) {
			out = append(out, c)
		}
	}
	return out
}

type site struct {
	content string
	public  string
}

func newSite(t *testing.T) site {
	t.Helper()
	root := t.TempDir()
	s := site{
		content: filepath.Join(root, "content", "albums"),
		public:  filepath.Join(root, "public", "albums"),
	}
	require.NoError(t, os.MkdirAll(s.content, 0o755))
	return s
}

func (s site) album(t *testing.T, folder string, d albums.Descriptor) string {
	t.Helper()
	dir := filepath.Join(s.content, folder, albums.OriginalDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.content, folder, albums.DescriptorFile), raw, 0o644))
	return dir
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeBMP(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func (s site) pipeline(codec Codec, workers int) *Pipeline {
	opts := DefaultOptions()
	opts.ContentRoot = s.content
	opts.PublicRoot = s.public
	opts.Workers = workers
	return New(opts, codec)
}

func readManifest(t *testing.T, path string) albums.Manifest {
	t.Helper()
	m, err := albums.ReadManifest(path)
	require.NoError(t, err)
	return m
}

func TestProcessAlbumWidthsNeverExceedCapsOrSource(t *testing.T) {
	s := newSite(t)
	orig := s.album(t, "trip", albums.Descriptor{Slug: "trip", Title: "Trip"})
	writePNG(t, filepath.Join(orig, "a-small.png"), 300, 200)
	writePNG(t, filepath.Join(orig, "b-medium.png"), 900, 600)
	writeBMP(t, filepath.Join(orig, "c-large.bmp"), 2000, 1000)

	codec := &fakeCodec{}
	p := s.pipeline(codec, 1)
	_, err := p.ProcessAlbum(context.Background(), "trip")
	require.NoError(t, err)

	want := map[string][2]int{ // thumb, full
		"a-small.webp":  {300, 300},
		"b-medium.webp": {480, 900},
		"c-large.webp":  {480, 1600},
	}
	for name, widths := range want {
		thumbs := codec.byDst("thumbs/" + name)
		full := codec.byDst("webp/" + name)
		require.Len(t, thumbs, 1, name)
		require.Len(t, full, 1, name)
		assert.Equal(t, widths[0], thumbs[0].r.Width, "thumb %s", name)
		assert.Equal(t, widths[1], full[0].r.Width, "full %s", name)
		assert.Equal(t, 72, thumbs[0].r.Quality)
		assert.Equal(t, 82, full[0].r.Quality)
		assert.False(t, thumbs[0].r.Crop)
	}
	for _, c := range codec.calls {
		if c.r.Crop {
			continue
		}
		assert.LessOrEqual(t, c.r.Width, 1600)
	}
}

func TestProcessAlbumManifestOrderAndShape(t *testing.T) {
	s := newSite(t)
	orig := s.album(t, "city", albums.Descriptor{Slug: "city-walk", Title: "City", Description: "Streets", Date: "2026-01-05", Cover: "b.png"})
	writePNG(t, filepath.Join(orig, "c.png"), 10, 10)
	writePNG(t, filepath.Join(orig, "a.PNG"), 20, 10)
	writePNG(t, filepath.Join(orig, "b.png"), 30, 40)
	require.NoError(t, os.WriteFile(filepath.Join(orig, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(orig, "d.avif"), []byte("not really"), 0o644))

	codec := &fakeCodec{}
	res, err := s.pipeline(codec, 3).ProcessAlbum(context.Background(), "city")
	require.NoError(t, err)
	assert.Equal(t, "city-walk", res.Slug)
	assert.Equal(t, 4, res.Images)

	m := readManifest(t, filepath.Join(s.public, "city-walk", albums.ManifestFile))
	require.Len(t, m.Images, 4)
	var files []string
	for _, img := range m.Images {
		files = append(files, img.Filename)
	}
	assert.Equal(t, []string{"a.PNG", "b.png", "c.png", "d.avif"}, files)

	a := m.Images[0]
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "/albums/city-walk/webp/a.webp", a.WebP)
	assert.Equal(t, "/albums/city-walk/thumbs/a.webp", a.Thumb)
	require.NotNil(t, a.Width)
	assert.Equal(t, 20, *a.Width)
	assert.Equal(t, 10, *a.Height)
	assert.Nil(t, m.Images[3].Width, "undecodable source has no dimensions")

	for _, img := range m.Images {
		assert.FileExists(t, filepath.Join(s.public, "city-walk", albums.WebPDir, img.ID+".webp"))
		assert.FileExists(t, filepath.Join(s.public, "city-walk", albums.ThumbsDir, img.ID+".webp"))
	}

	require.NotNil(t, m.Date)
	assert.Equal(t, "2026-01-05", *m.Date)
	assert.Equal(t, "City", m.Title)
	assert.Equal(t, "Streets", m.Description)
	require.NotNil(t, m.Cover)
	assert.Equal(t, "b.png", m.Cover.Source)
	assert.Equal(t, "/albums/city-walk/cover/cover.webp", m.Cover.WebP)
	assert.Equal(t, "/albums/city-walk/cover/cover.jpg", m.Cover.JPG)
	assert.Equal(t, 1200, m.Cover.Width)
	assert.Equal(t, 800, m.Cover.Height)

	covers := codec.byDst("cover/cover.webp")
	require.Len(t, covers, 1)
	assert.True(t, covers[0].r.Crop)
	assert.Equal(t, 84, covers[0].r.Quality)
	assert.Equal(t, "b.png", filepath.Base(covers[0].src))
	jpg := codec.byDst("cover/cover.jpg")
	require.Len(t, jpg, 1)
	assert.Equal(t, JPEG, jpg[0].r.Format)
	assert.Equal(t, 86, jpg[0].r.Quality)
}

func TestProcessAlbumDefaultsCoverAndTitle(t *testing.T) {
	s := newSite(t)
	orig := s.album(t, "plain", albums.Descriptor{Cover: "missing.jpg"})
	writePNG(t, filepath.Join(orig, "z.png"), 5, 5)
	writePNG(t, filepath.Join(orig, "m.png"), 5, 5)

	codec := &fakeCodec{}
	_, err := s.pipeline(codec, 1).ProcessAlbum(context.Background(), "plain")
	require.NoError(t, err)

	m := readManifest(t, filepath.Join(s.public, "plain", albums.ManifestFile))
	assert.Equal(t, "plain", m.Slug)
	assert.Equal(t, "plain", m.Title)
	assert.Equal(t, "", m.Description)
	assert.Nil(t, m.Date)
	assert.Equal(t, "m.png", m.Cover.Source)

	raw, err := os.ReadFile(filepath.Join(s.public, "plain", albums.ManifestFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"date": null`)
	assert.True(t, strings.HasSuffix(string(raw), "}\n"))
}

func TestProcessAlbumIsIdempotent(t *testing.T) {
	s := newSite(t)
	orig := s.album(t, "again", albums.Descriptor{Slug: "again", Date: "2025-07-01"})
	writePNG(t, filepath.Join(orig, "1.png"), 64, 48)
	writePNG(t, filepath.Join(orig, "2.png"), 48, 64)

	p := s.pipeline(&fakeCodec{}, 2)
	manifest := filepath.Join(s.public, "again", albums.ManifestFile)

	_, err := p.ProcessAlbum(context.Background(), "again")
	require.NoError(t, err)
	first, err := os.ReadFile(manifest)
	require.NoError(t, err)

	_, err = p.ProcessAlbum(context.Background(), "again")
	require.NoError(t, err)
	second, err := os.ReadFile(manifest)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestProcessAlbumPrunesRemovedSources(t *testing.T) {
	s := newSite(t)
	orig := s.album(t, "prune", albums.Descriptor{})
	writePNG(t, filepath.Join(orig, "keep.png"), 8, 8)
	writePNG(t, filepath.Join(orig, "drop.png"), 8, 8)

	p := s.pipeline(&fakeCodec{}, 1)
	_, err := p.ProcessAlbum(context.Background(), "prune")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(orig, "drop.png")))
	_, err = p.ProcessAlbum(context.Background(), "prune")
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(s.public, "prune", albums.ThumbsDir, "drop.webp"))
	assert.FileExists(t, filepath.Join(s.public, "prune", albums.ThumbsDir, "keep.webp"))
	m := readManifest(t, filepath.Join(s.public, "prune", albums.ManifestFile))
	assert.Len(t, m.Images, 1)
}

func TestProcessAlbumSkips(t *testing.T) {
	s := newSite(t)

	require.NoError(t, os.MkdirAll(filepath.Join(s.content, "no-descriptor", albums.OriginalDir), 0o755))

	require.NoError(t, os.MkdirAll(filepath.Join(s.content, "no-original"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.content, "no-original", albums.DescriptorFile), []byte(`{}`), 0o644))

	empty := s.album(t, "no-images", albums.Descriptor{})
	require.NoError(t, os.WriteFile(filepath.Join(empty, "readme.md"), []byte("x"), 0o644))

	bad := s.album(t, "bad-slug", albums.Descriptor{Slug: "Bad Slug"})
	writePNG(t, filepath.Join(bad, "a.png"), 4, 4)

	dup := s.album(t, "dup", albums.Descriptor{})
	writePNG(t, filepath.Join(dup, "a.png"), 4, 4)
	writePNG(t, filepath.Join(dup, "a.jpg"), 4, 4)

	p := s.pipeline(&fakeCodec{}, 1)
	for _, folder := range []string{"no-descriptor", "no-original", "no-images", "bad-slug", "dup"} {
		_, err := p.ProcessAlbum(context.Background(), folder)
		var sk *SkipError
		require.ErrorAs(t, err, &sk, folder)
		assert.Equal(t, folder, sk.Folder)
	}
	_, err := os.Stat(s.public)
	assert.True(t, os.IsNotExist(err), "skipped albums write nothing")
}

func TestProcessAlbumLocked(t *testing.T) {
	s := newSite(t)
	orig := s.album(t, "busy", albums.Descriptor{})
	writePNG(t, filepath.Join(orig, "a.png"), 4, 4)

	held := flock.New(filepath.Join(s.content, "busy", LockFile))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	_, err = s.pipeline(&fakeCodec{}, 1).ProcessAlbum(context.Background(), "busy")
	assert.ErrorIs(t, err, ErrAlbumLocked)
}

func TestRunIsolatesFailures(t *testing.T) {
	s := newSite(t)
	good := s.album(t, "good", albums.Descriptor{})
	writePNG(t, filepath.Join(good, "a.png"), 4, 4)
	broken := s.album(t, "broken", albums.Descriptor{})
	writePNG(t, filepath.Join(broken, "boom.png"), 4, 4)
	require.NoError(t, os.MkdirAll(filepath.Join(s.content, "empty"), 0o755))

	sum, err := s.pipeline(&fakeCodec{failOn: "boom.png"}, 1).Run(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, sum.Processed, 1)
	assert.Equal(t, "good", sum.Processed[0].Folder)
	require.Len(t, sum.Skipped, 1)
	assert.Equal(t, "empty", sum.Skipped[0].Folder)
	require.Len(t, sum.Failed, 1)
	assert.Equal(t, "broken", sum.Failed[0].Folder)
	assert.Error(t, sum.Err())

	table := sum.Table()
	assert.Contains(t, table, "good")
	assert.Contains(t, table, "skipped")
	assert.Contains(t, table, "1/1/1")
}

func TestRunTarget(t *testing.T) {
	s := newSite(t)
	one := s.album(t, "one", albums.Descriptor{})
	writePNG(t, filepath.Join(one, "a.png"), 4, 4)
	two := s.album(t, "two", albums.Descriptor{})
	writePNG(t, filepath.Join(two, "a.png"), 4, 4)

	p := s.pipeline(&fakeCodec{}, 1)
	sum, err := p.Run(context.Background(), "two")
	require.NoError(t, err)
	require.Len(t, sum.Processed, 1)
	assert.Equal(t, "two", sum.Processed[0].Slug)
	assert.NoDirExists(t, filepath.Join(s.public, "one"))

	_, err = p.Run(context.Background(), "three")
	assert.ErrorIs(t, err, ErrAlbumNotFound)
}

func TestRunSetupErrors(t *testing.T) {
	s := newSite(t)
	_, err := s.pipeline(&fakeCodec{checkErr: ErrCodecUnavailable}, 1).Run(context.Background(), "")
	assert.ErrorIs(t, err, ErrCodecUnavailable)

	opts := DefaultOptions()
	opts.ContentRoot = filepath.Join(t.TempDir(), "missing")
	_, err = New(opts, &fakeCodec{}).Run(context.Background(), "")
	assert.Error(t, err)
}

func TestAlbumFolders(t *testing.T) {
	root := filepath.Join("content", "albums")
	got := albumFolders(root, []string{
		filepath.Join(root, "b", "original", "x.jpg"),
		filepath.Join(root, "a", "album.json"),
		filepath.Join(root, "b", "album.json"),
		filepath.Join("elsewhere", "c"),
		root,
	})
	assert.Equal(t, []string{"a", "b"}, got)
}
