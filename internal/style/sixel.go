package style

import (
	"bytes"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-sixel"

	"github.com/llehouerou/termimage/internal/imgerr"
	"github.com/llehouerou/termimage/internal/pixels"
	"github.com/llehouerou/termimage/internal/termcap"
)

// Sixel renders whole images as DEC sixel graphics.
type Sixel struct {
	Cell     termcap.CellSize
	Defaults SixelArgs
}

// SixelArgs configures the sixel style.
type SixelArgs struct {
	Dither bool
}

func (a SixelArgs) Key() string { return "dither=" + strconv.FormatBool(a.Dither) }

// DefaultSixelArgs are the built-in sixel arguments.
func DefaultSixelArgs() SixelArgs { return SixelArgs{Dither: true} }

func (s Sixel) Name() string            { return NameSixel }
func (s Sixel) CellPixels() image.Point { return graphicsCell(s.Cell) }
func (s Sixel) DefaultArgs() Args       { return s.Defaults }
func (Sixel) sealed()                   {}

// ParseArgs accepts dither. Sixel images are always sent whole, so
// method=lines is rejected.
func (s Sixel) ParseArgs(raw map[string]string) (Args, error) {
	args := s.Defaults
	for k, v := range raw {
		switch k {
		case "dither":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, &imgerr.ArgError{Style: NameSixel, Arg: k, Value: v, Err: fmt.Errorf("must be a boolean")}
			}
			args.Dither = b
		case "method":
			if m, err := ParseMethod(v); err != nil || m != Whole {
				return nil, &imgerr.ArgError{Style: NameSixel, Arg: k, Value: v, Err: fmt.Errorf("only whole is supported")}
			}
		default:
			return nil, &imgerr.ArgError{Style: NameSixel, Arg: k, Value: v, Err: fmt.Errorf("unknown argument")}
		}
	}
	return args, nil
}

func (s Sixel) Encode(p *pixels.Prepared, g Geometry, args Args) (string, error) {
	if err := checkGeometry(p, g); err != nil {
		return "", err
	}
	a := s.Defaults
	switch v := args.(type) {
	case nil:
	case SixelArgs:
		a = v
	default:
		return "", fmt.Errorf("sixel: unexpected arguments %T", args)
	}

	var buf bytes.Buffer
	enc := sixel.NewEncoder(&buf)
	enc.Dither = a.Dither
	if err := enc.Encode(p.Image); err != nil {
		return "", fmt.Errorf("encode sixel: %w", err)
	}

	// Sixel output moves the cursor, so draw it from a saved position and
	// walk the covered rows without erasing the pixels.
	var sb strings.Builder
	sb.WriteString(ansi.SaveCursor)
	sb.Write(buf.Bytes())
	sb.WriteString(ansi.RestoreCursor)
	writeWholeFill(&sb, g, true)
	return sb.String(), nil
}
