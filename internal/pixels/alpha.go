package pixels

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultCutoff is the alpha threshold used when none is given.
const DefaultCutoff = 0.4

// AlphaPolicy decides what happens to translucent pixels.
// It is one of Disabled, Threshold or Blend.
type AlphaPolicy interface {
	// Key identifies the policy in cache keys.
	Key() string
	apply(img *image.NRGBA, termBg *color.RGBA)
}

// Disabled flattens the image onto Background, or onto the terminal
// background when Background is nil (black when that is unknown).
type Disabled struct {
	Background color.Color
}

// Threshold makes pixels with alpha below Cutoff fully transparent and every
// other pixel fully opaque. A zero Cutoff means DefaultCutoff.
type Threshold struct {
	Cutoff float64
}

// Blend composites translucent pixels against Background (terminal
// background when nil). Round selects round-to-nearest over truncation.
type Blend struct {
	Background color.Color
	Round      bool
}

func (d Disabled) Key() string { return "disabled:" + bgKey(d.Background) }

func (t Threshold) Key() string { return fmt.Sprintf("threshold:%g", t.cutoff()) }

func (b Blend) Key() string {
	if b.Round {
		return "blend:" + bgKey(b.Background) + ":round"
	}
	return "blend:" + bgKey(b.Background)
}

func (t Threshold) cutoff() float64 {
	if t.Cutoff <= 0 {
		return DefaultCutoff
	}
	return t.Cutoff
}

func (d Disabled) apply(img *image.NRGBA, termBg *color.RGBA) {
	composite(img, background(d.Background, termBg), true)
}

func (b Blend) apply(img *image.NRGBA, termBg *color.RGBA) {
	composite(img, background(b.Background, termBg), b.Round)
}

func (t Threshold) apply(img *image.NRGBA, _ *color.RGBA) {
	limit := t.cutoff() * 255
	for i := 3; i < len(img.Pix); i += 4 {
		if float64(img.Pix[i]) < limit {
			img.Pix[i] = 0
		} else {
			img.Pix[i] = 255
		}
	}
}

// composite blends every pixel onto bg and makes it opaque.
func composite(img *image.NRGBA, bg colorful.Color, round bool) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		a := img.Pix[i+3]
		switch a {
		case 255:
			continue
		case 0:
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = to8(bg.R, true), to8(bg.G, true), to8(bg.B, true)
		default:
			fg := colorful.Color{
				R: float64(img.Pix[i]) / 255,
				G: float64(img.Pix[i+1]) / 255,
				B: float64(img.Pix[i+2]) / 255,
			}
			c := fg.BlendRgb(bg, 1-float64(a)/255)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = to8(c.R, round), to8(c.G, round), to8(c.B, round)
		}
		img.Pix[i+3] = 255
	}
}

func to8(v float64, round bool) uint8 {
	v = max(0, min(1, v)) * 255
	if round {
		v += 0.5
	}
	return uint8(v)
}

func background(c color.Color, termBg *color.RGBA) colorful.Color {
	if c != nil {
		if cf, ok := colorful.MakeColor(c); ok {
			return cf
		}
	}
	if termBg != nil {
		cf, _ := colorful.MakeColor(*termBg)
		return cf
	}
	return colorful.Color{}
}

func bgKey(c color.Color) string {
	if c == nil {
		return "term"
	}
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return "term"
	}
	return cf.Hex()
}

// ParseColor parses a "#rrggbb" colour. An empty string means
// "terminal background" and yields nil.
func ParseColor(s string) (color.Color, error) {
	if s == "" {
		return nil, nil
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("parse colour %q: %w", s, err)
	}
	return c, nil
}
