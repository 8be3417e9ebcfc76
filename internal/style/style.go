// Package style implements the terminal encodings an image can be rendered
// in: portable half-block text and the Kitty, iTerm2 and sixel graphics
// protocols.
package style

import (
	"fmt"
	"image"
	"strings"

	"github.com/llehouerou/termimage/internal/pixels"
	"github.com/llehouerou/termimage/internal/termcap"
)

// Style names.
const (
	NameBlock  = "block"
	NameKitty  = "kitty"
	NameITerm2 = "iterm2"
	NameSixel  = "sixel"
)

// Names lists every style in auto-selection order.
var Names = []string{NameKitty, NameITerm2, NameSixel, NameBlock}

// Geometry is the cell area an encoding occupies.
type Geometry struct {
	Cols int
	Rows int
}

// Args are style specific rendering arguments.
type Args interface {
	// Key identifies the arguments in cache keys.
	Key() string
}

// Style is one terminal encoding. The set of implementations is closed;
// callers select one through Capabilities.
type Style interface {
	Name() string

	// CellPixels is the number of image pixels one cell holds.
	CellPixels() image.Point

	// DefaultArgs returns the arguments used when none are given.
	DefaultArgs() Args

	// ParseArgs validates raw key/value arguments on top of the defaults.
	ParseArgs(raw map[string]string) (Args, error)

	// Encode converts prepared pixels into terminal output that covers
	// exactly g.Cols x g.Rows cells.
	Encode(p *pixels.Prepared, g Geometry, args Args) (string, error)

	sealed()
}

// PixelSize returns the pixel size an image rendered at cols x rows must be
// prepared at for s.
func PixelSize(s Style, cols, rows int) (width, height int) {
	cp := s.CellPixels()
	return cols * cp.X, rows * cp.Y
}

// defaultCell is assumed when the terminal does not report its cell size.
var defaultCell = image.Pt(8, 16)

func graphicsCell(cell termcap.CellSize) image.Point {
	if !cell.Known() {
		return defaultCell
	}
	return image.Pt(cell.Width, cell.Height)
}

// Method selects how graphics styles lay an image out.
type Method int

const (
	// Lines transmits one image per terminal row.
	Lines Method = iota
	// Whole transmits the image once.
	Whole
)

func (m Method) String() string {
	if m == Whole {
		return "whole"
	}
	return "lines"
}

// ParseMethod parses "lines" or "whole".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "lines":
		return Lines, nil
	case "whole":
		return Whole, nil
	}
	return 0, fmt.Errorf("unknown render method %q", s)
}

// rowBounds returns the pixel rows [y0, y1) covered by terminal row r.
func rowBounds(height, rows, r int) (y0, y1 int) {
	return r * height / rows, (r + 1) * height / rows
}

func checkGeometry(p *pixels.Prepared, g Geometry) error {
	if g.Cols <= 0 || g.Rows <= 0 || p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("encode %dx%d pixels into %dx%d cells: empty geometry",
			p.Width, p.Height, g.Cols, g.Rows)
	}
	return nil
}
