package assets

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Dimensions are the stored pixel dimensions of a source and its EXIF
// orientation (1 when absent).
type Dimensions struct {
	Width       int
	Height      int
	Orientation int
}

// Upright returns the width and height after orientation is applied.
// Orientations 5 through 8 rotate by a quarter turn.
func (d Dimensions) Upright() (int, int) {
	if d.Orientation >= 5 && d.Orientation <= 8 {
		return d.Height, d.Width
	}
	return d.Width, d.Height
}

// Probe reads dimensions from the image header without decoding pixels.
// Formats without a native decoder fall back to the codec when it
// implements Prober.
func Probe(ctx context.Context, path string, codec Codec) (Dimensions, error) {
	d := Dimensions{Orientation: orientation(path)}

	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}, err
	}
	cfg, _, decErr := image.DecodeConfig(f)
	f.Close()
	if decErr == nil {
		d.Width, d.Height = cfg.Width, cfg.Height
		return d, nil
	}

	p, ok := codec.(Prober)
	if !ok {
		return Dimensions{}, decErr
	}
	w, h, err := p.Dimensions(ctx, path)
	if err != nil {
		return Dimensions{}, err
	}
	d.Width, d.Height = w, h
	return d, nil
}

func orientation(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// fitWidth is the output width for a width-capped rendition: the cap, or the
// upright source width when that is smaller.
func fitWidth(limit int, d Dimensions) int {
	w, _ := d.Upright()
	if w > 0 && w < limit {
		return w
	}
	return limit
}
