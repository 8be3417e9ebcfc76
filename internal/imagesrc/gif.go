package imagesrc

import (
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"
	"time"

	// Registered decoders.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// minDelay is the shortest frame delay honoured; shorter delays are shown
// at defaultDelay the way browsers do.
const (
	minDelay     = 20 * time.Millisecond
	defaultDelay = 100 * time.Millisecond
)

// decodeGIF composites every GIF layer onto the logical screen, honouring
// the disposal method of each frame.
func decodeGIF(r io.Reader) ([]image.Image, []time.Duration, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, nil, err
	}
	if len(g.Image) == 0 {
		return nil, nil, fmt.Errorf("gif has no frames")
	}

	rect := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if rect.Empty() {
		rect = g.Image[0].Rect
	}
	canvas := image.NewNRGBA(rect)

	frames := make([]image.Image, 0, len(g.Image))
	delays := make([]time.Duration, 0, len(g.Image))
	for n, layer := range g.Image {
		var disposal byte
		if n < len(g.Disposal) {
			disposal = g.Disposal[n]
		}
		var prev *image.NRGBA
		if disposal == gif.DisposalPrevious {
			prev = cloneNRGBA(canvas)
		}

		lrect := layer.Bounds()
		draw.Draw(canvas, lrect, layer, lrect.Min, draw.Over)
		frames = append(frames, cloneNRGBA(canvas))

		delay := defaultDelay
		if n < len(g.Delay) {
			if d := time.Duration(g.Delay[n]) * 10 * time.Millisecond; d >= minDelay {
				delay = d
			}
		}
		delays = append(delays, delay)

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, lrect, image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = prev
		}
	}
	return frames, delays, nil
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	cp := *src
	cp.Pix = make([]uint8, len(src.Pix))
	copy(cp.Pix, src.Pix)
	return &cp
}
