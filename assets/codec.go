package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrCodecUnavailable means the image codec binaries are not installed.
var ErrCodecUnavailable = errors.New("image codec unavailable")

// Format is an output encoding.
type Format int

const (
	WebP Format = iota
	JPEG
)

func (f Format) String() string {
	if f == JPEG {
		return "jpeg"
	}
	return "webp"
}

// Rendition describes one derivative. Without Crop the image is scaled to
// Width keeping its aspect ratio. With Crop it fills Width x Height,
// trimming toward the most salient region.
type Rendition struct {
	Width   int
	Height  int
	Crop    bool
	Quality int
	Format  Format
}

// Codec decodes, orients, resizes and encodes images. Implementations must
// rotate to the stored orientation and drop metadata from the output.
type Codec interface {
	// Check reports ErrCodecUnavailable when the codec cannot run at all.
	Check() error
	Render(ctx context.Context, src, dst string, r Rendition) error
}

// Prober is implemented by codecs that can report dimensions of formats the
// native decoders do not understand.
type Prober interface {
	Dimensions(ctx context.Context, src string) (width, height int, err error)
}

// VipsCodec drives the libvips command line tools.
type VipsCodec struct {
	ThumbnailBin string // default "vipsthumbnail"
	HeaderBin    string // default "vipsheader"
}

func (v VipsCodec) thumbnailBin() string {
	if v.ThumbnailBin != "" {
		return v.ThumbnailBin
	}
	return "vipsthumbnail"
}

func (v VipsCodec) headerBin() string {
	if v.HeaderBin != "" {
		return v.HeaderBin
	}
	return "vipsheader"
}

// Check looks both binaries up on PATH.
func (v VipsCodec) Check() error {
	for _, bin := range []string{v.thumbnailBin(), v.headerBin()} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: binary %q not found (install libvips-tools)", ErrCodecUnavailable, bin)
		}
	}
	return nil
}

// Render runs vipsthumbnail, which applies EXIF orientation on load.
func (v VipsCodec) Render(ctx context.Context, src, dst string, r Rendition) error {
	out, err := outputPath(dst)
	if err != nil {
		return err
	}
	args := []string{src}
	if r.Crop {
		args = append(args, "--size", fmt.Sprintf("%dx%d", r.Width, r.Height), "--smartcrop", "attention")
	} else {
		// ">" only ever shrinks.
		args = append(args, "--size", fmt.Sprintf("%dx>", r.Width))
	}
	args = append(args, "-o", out+outputOptions(r))

	cmd := exec.CommandContext(ctx, v.thumbnailBin(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("vipsthumbnail %s: %w: %s", src, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// outputPath turns dst into a vipsthumbnail -o value. vipsthumbnail
// resolves relative output paths against the input's directory and expands
// %s, so the path is made absolute and % is escaped.
func outputPath(dst string) (string, error) {
	abs, err := filepath.Abs(dst)
	if err != nil {
		return "", fmt.Errorf("resolve output %s: %w", dst, err)
	}
	return strings.ReplaceAll(abs, "%", "%%"), nil
}

func outputOptions(r Rendition) string {
	if r.Format == JPEG {
		return fmt.Sprintf("[Q=%d,interlace,optimize_coding,strip]", r.Quality)
	}
	return fmt.Sprintf("[Q=%d,strip]", r.Quality)
}

// Dimensions reads the stored width and height with vipsheader.
func (v VipsCodec) Dimensions(ctx context.Context, src string) (int, int, error) {
	w, err := v.headerField(ctx, src, "width")
	if err != nil {
		return 0, 0, err
	}
	h, err := v.headerField(ctx, src, "height")
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func (v VipsCodec) headerField(ctx context.Context, src, field string) (int, error) {
	out, err := exec.CommandContext(ctx, v.headerBin(), "-f", field, src).Output()
	if err != nil {
		return 0, fmt.Errorf("vipsheader %s: %w", field, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("vipsheader %s: %w", field, err)
	}
	return n, nil
}
