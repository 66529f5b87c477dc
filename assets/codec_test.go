package assets

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVipsCodecCheckMissingBinary(t *testing.T) {
	c := VipsCodec{ThumbnailBin: "clearly-not-a-vips-binary", HeaderBin: "also-missing"}
	err := c.Check()
	require.ErrorIs(t, err, ErrCodecUnavailable)
	assert.Contains(t, err.Error(), "clearly-not-a-vips-binary")
}

func TestOutputOptions(t *testing.T) {
	assert.Equal(t, "[Q=72,strip]", outputOptions(Rendition{Quality: 72, Format: WebP}))
	assert.Equal(t, "[Q=86,interlace,optimize_coding,strip]", outputOptions(Rendition{Quality: 86, Format: JPEG}))
}

func TestUprightAndFitWidth(t *testing.T) {
	tests := []struct {
		name  string
		dims  Dimensions
		limit int
		want  int
	}{
		{"landscape under cap", Dimensions{Width: 300, Height: 200, Orientation: 1}, 480, 300},
		{"landscape over cap", Dimensions{Width: 4000, Height: 3000, Orientation: 1}, 1600, 1600},
		{"rotated uses height", Dimensions{Width: 4000, Height: 300, Orientation: 6}, 480, 300},
		{"mirrored keeps width", Dimensions{Width: 300, Height: 4000, Orientation: 2}, 480, 300},
		{"unknown size", Dimensions{}, 480, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fitWidth(tt.limit, tt.dims))
		})
	}
}

func TestProbeReadsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.png")
	writePNG(t, path, 123, 45)

	d, err := Probe(context.Background(), path, &fakeCodec{})
	require.NoError(t, err)
	assert.Equal(t, Dimensions{Width: 123, Height: 45, Orientation: 1}, d)
}

func TestSupported(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "d.webp", "e.avif", "f.bmp", "g.tif", "h.TIFF"} {
		assert.True(t, Supported(name), name)
	}
	for _, name := range []string{"a.gif", "b.heic", "notes.txt", "noext"} {
		assert.False(t, Supported(name), name)
	}
}

// writeScript installs an executable shell script and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts stand in for libvips")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestVipsCodecRenderArguments(t *testing.T) {
	bin := t.TempDir()
	argsFile := filepath.Join(bin, "args")
	thumb := writeScript(t, bin, "vipsthumbnail", `for a in "$@"; do printf '%s\n' "$a"; done > `+argsFile+"\n")
	c := VipsCodec{ThumbnailBin: thumb}

	work := t.TempDir()
	t.Chdir(work)
	cwd, err := os.Getwd()
	require.NoError(t, err)

	src := filepath.Join("content", "albums", "trip", "original", "a.jpg")
	tests := []struct {
		name string
		dst  string
		r    Rendition
		want []string
	}{
		{
			name: "relative output is made absolute",
			dst:  filepath.Join("public", "albums", "trip", "webp", "a.webp"),
			r:    Rendition{Width: 480, Quality: 72, Format: WebP},
			want: []string{src, "--size", "480x>", "-o", filepath.Join(cwd, "public", "albums", "trip", "webp", "a.webp") + "[Q=72,strip]"},
		},
		{
			name: "percent is escaped",
			dst:  filepath.Join("public", "albums", "trip", "thumbs", "100%s.webp"),
			r:    Rendition{Width: 480, Quality: 72, Format: WebP},
			want: []string{src, "--size", "480x>", "-o", filepath.Join(cwd, "public", "albums", "trip", "thumbs", "100%%s.webp") + "[Q=72,strip]"},
		},
		{
			name: "cover crop",
			dst:  filepath.Join(cwd, "cover.jpg"),
			r:    Rendition{Width: 1200, Height: 800, Crop: true, Quality: 86, Format: JPEG},
			want: []string{src, "--size", "1200x800", "--smartcrop", "attention", "-o", filepath.Join(cwd, "cover.jpg") + "[Q=86,interlace,optimize_coding,strip]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.Render(context.Background(), src, tt.dst, tt.r))
			raw, err := os.ReadFile(argsFile)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n"))
		})
	}
}

func TestVipsCodecRenderReportsStderr(t *testing.T) {
	thumb := writeScript(t, t.TempDir(), "vipsthumbnail", "echo 'unsupported image format' >&2\nexit 1\n")
	err := VipsCodec{ThumbnailBin: thumb}.Render(context.Background(), "a.heic", filepath.Join(t.TempDir(), "a.webp"), Rendition{Width: 10, Quality: 80})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image format")
}
