package imagesrc

import (
	"fmt"
	"image"
	"math"

	"github.com/llehouerou/termimage/internal/imgerr"
)

// Mode selects how a render size is derived.
type Mode int

const (
	// FitFrame scales the image to fit inside the available frame,
	// keeping its aspect ratio.
	FitFrame Mode = iota
	// Explicit uses Cols and Rows as given.
	Explicit
	// Original maps the image at its native pixel size.
	Original
	// FitWidth fills the frame width; the height may exceed the frame.
	FitWidth
)

func (m Mode) String() string {
	switch m {
	case FitFrame:
		return "fit"
	case Explicit:
		return "explicit"
	case Original:
		return "original"
	case FitWidth:
		return "fit-width"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as used in configuration.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "fit":
		return FitFrame, nil
	case "original":
		return Original, nil
	case "fit-width":
		return FitWidth, nil
	case "explicit":
		return Explicit, nil
	}
	return 0, fmt.Errorf("unknown size mode %q", s)
}

// Size is a requested render size. The zero value fits the frame.
type Size struct {
	Mode Mode
	Cols int
	Rows int
}

// Cells returns an explicit size of cols x rows cells.
func Cells(cols, rows int) Size {
	return Size{Mode: Explicit, Cols: cols, Rows: rows}
}

// Key returns a stable representation for cache keys.
func (s Size) Key() string {
	if s.Mode == Explicit {
		return fmt.Sprintf("%dx%d", s.Cols, s.Rows)
	}
	return s.Mode.String()
}

// Geometry carries what is needed to resolve a Size into cells.
type Geometry struct {
	// Frame is the available area in cells.
	Frame image.Point
	// CellPixels is the number of image pixels one cell covers at
	// original size.
	CellPixels image.Point
}

// Ratio is the cell aspect ratio (height / width) implied by CellPixels.
func (g Geometry) Ratio() float64 {
	if g.CellPixels.X <= 0 || g.CellPixels.Y <= 0 {
		return 2
	}
	return float64(g.CellPixels.Y) / float64(g.CellPixels.X)
}

// Resolve converts s into a concrete (cols, rows) for an image whose
// original pixel size is orig.
func (s Size) Resolve(orig image.Point, g Geometry) (cols, rows int, err error) {
	if orig.X <= 0 || orig.Y <= 0 {
		return 0, 0, &imgerr.SizeError{Reason: "image has no pixels"}
	}
	// Image aspect measured in cells: cols per row.
	aspect := float64(orig.X) / float64(orig.Y) * g.Ratio()

	switch s.Mode {
	case Explicit:
		cols, rows = s.Cols, s.Rows
	case Original:
		cp := g.CellPixels
		if cp.X <= 0 || cp.Y <= 0 {
			cp = image.Pt(1, 2)
		}
		cols = ceilDiv(orig.X, cp.X)
		rows = ceilDiv(orig.Y, cp.Y)
	case FitWidth:
		if g.Frame.X <= 0 {
			return 0, 0, &imgerr.SizeError{Cols: g.Frame.X, Rows: g.Frame.Y, Reason: "no frame width"}
		}
		cols = g.Frame.X
		rows = max(1, round(float64(cols)/aspect))
	case FitFrame:
		if g.Frame.X <= 0 || g.Frame.Y <= 0 {
			return 0, 0, &imgerr.SizeError{Cols: g.Frame.X, Rows: g.Frame.Y, Reason: "empty frame"}
		}
		if float64(g.Frame.X)/float64(g.Frame.Y) > aspect {
			rows = g.Frame.Y
			cols = max(1, min(g.Frame.X, round(float64(rows)*aspect)))
		} else {
			cols = g.Frame.X
			rows = max(1, min(g.Frame.Y, round(float64(cols)/aspect)))
		}
	default:
		return 0, 0, fmt.Errorf("resolve size: unknown mode %v", s.Mode)
	}

	if cols <= 0 || rows <= 0 {
		return 0, 0, &imgerr.SizeError{Cols: cols, Rows: rows}
	}
	return cols, rows, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func round(x float64) int {
	return int(math.Floor(x + 0.5))
}
