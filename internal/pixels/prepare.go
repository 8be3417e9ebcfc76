// Package pixels prepares decoded frames for encoding: it resizes them to
// the exact render pixel size, applies the alpha policy and exposes the
// result as flat row-major arrays.
package pixels

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"

	"github.com/llehouerou/termimage/internal/imgerr"
)

// RGB is one opaque colour sample.
type RGB struct {
	R, G, B uint8
}

// Prepared is a frame ready for encoding.
type Prepared struct {
	// Image holds the final pixels; Image.Pix is the RGBA byte buffer.
	Image *image.NRGBA
	// RGB and Alpha are row-major with Width*Height entries.
	RGB   []RGB
	Alpha []uint8

	Width  int
	Height int
	// Transparent is true when any pixel has alpha below 255.
	Transparent bool
}

// At returns the colour and alpha of the pixel at (x, y).
func (p *Prepared) At(x, y int) (RGB, uint8) {
	i := y*p.Width + x
	return p.RGB[i], p.Alpha[i]
}

// RGBBytes returns the packed 3-byte-per-pixel buffer.
func (p *Prepared) RGBBytes() []byte {
	out := make([]byte, 0, len(p.RGB)*3)
	for _, c := range p.RGB {
		out = append(out, c.R, c.G, c.B)
	}
	return out
}

// RGBABytes returns the packed 4-byte-per-pixel buffer.
func (p *Prepared) RGBABytes() []byte {
	return p.Image.Pix
}

// Options configures Prepare.
type Options struct {
	Alpha AlphaPolicy
	// Filter used for resizing; Lanczos3 when nil.
	Filter *Filter
	// TerminalBg is the terminal default background, nil when unknown.
	TerminalBg *color.RGBA
}

func (o Options) alpha() AlphaPolicy {
	if o.Alpha == nil {
		return Threshold{}
	}
	return o.Alpha
}

// Prepare resizes src to width x height and applies the alpha policy.
// src is never modified.
func Prepare(src image.Image, width, height int, opts Options) (*Prepared, error) {
	if width <= 0 || height <= 0 {
		return nil, &imgerr.SizeError{Cols: width, Rows: height}
	}
	resized, err := Resize(src, width, height, opts.Filter)
	if err != nil {
		return nil, err
	}
	return PrepareResized(resized, opts), nil
}

// PrepareResized applies the alpha policy to an image that already has the
// target size. img is modified in place and owned by the result.
func PrepareResized(img *image.NRGBA, opts Options) *Prepared {
	opts.alpha().apply(img, opts.TerminalBg)

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	p := &Prepared{
		Image:  img,
		RGB:    make([]RGB, w*h),
		Alpha:  make([]uint8, w*h),
		Width:  w,
		Height: h,
	}
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := range w {
			i := y*w + x
			px := row[x*4 : x*4+4]
			p.RGB[i] = RGB{px[0], px[1], px[2]}
			p.Alpha[i] = px[3]
			if px[3] != 255 {
				p.Transparent = true
			}
		}
	}
	return p
}

// Resize returns a fresh NRGBA copy of src scaled to width x height.
func Resize(src image.Image, width, height int, filter *Filter) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, &imgerr.SizeError{Cols: width, Rows: height}
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, &imgerr.DecodeError{Err: fmt.Errorf("empty source image")}
	}

	var scaled image.Image = src
	if b.Dx() != width || b.Dy() != height {
		scaled = resize.Resize(uint(width), uint(height), src, filter.interpFunc()) //nolint:gosec // positive
	}
	return toNRGBA(scaled), nil
}

// toNRGBA always copies so callers may mutate the result.
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
