package style

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/llehouerou/termimage/internal/imgerr"
	"github.com/llehouerou/termimage/internal/pixels"
)

const (
	upperHalf = "▀"
	lowerHalf = "▄"
	sgrReset  = "\x1b[0m"
)

// Block renders two pixel rows per terminal row with half-block glyphs and
// 24-bit colours. It works on any true-colour terminal.
type Block struct {
	// TerminalBg is the terminal's default background. Background paints
	// of exactly this colour are nudged so the terminal does not skip them.
	TerminalBg *color.RGBA
}

// BlockArgs is empty: the block style has no arguments.
type BlockArgs struct{}

func (BlockArgs) Key() string { return "" }

func (Block) Name() string            { return NameBlock }
func (Block) CellPixels() image.Point { return image.Pt(1, 2) }
func (Block) DefaultArgs() Args       { return BlockArgs{} }
func (Block) sealed()                 {}

func (Block) ParseArgs(raw map[string]string) (Args, error) {
	for k, v := range raw {
		return nil, &imgerr.ArgError{Style: NameBlock, Arg: k, Value: v, Err: fmt.Errorf("unknown argument")}
	}
	return BlockArgs{}, nil
}

type clusterKind uint8

const (
	blank     clusterKind = iota // both pixels transparent
	lowerOnly                    // upper transparent
	upperOnly                    // lower transparent
	flat                         // both opaque, same colour
	split                        // both opaque, different colours
)

type cluster struct {
	kind   clusterKind
	fg, bg pixels.RGB
}

func (b Block) Encode(p *pixels.Prepared, g Geometry, _ Args) (string, error) {
	if err := checkGeometry(p, g); err != nil {
		return "", err
	}

	var sb strings.Builder
	rows := (p.Height + 1) / 2
	sb.Grow(rows * (p.Width + 32))
	for r := range rows {
		if r > 0 {
			sb.WriteByte('\n')
		}
		var (
			cur cluster
			run int
		)
		for x := range p.Width {
			c := b.clusterAt(p, x, r*2)
			if run > 0 && c == cur {
				run++
				continue
			}
			if run > 0 {
				writeRun(&sb, cur, run)
			}
			cur, run = c, 1
			b.writeGroup(&sb, cur)
		}
		writeRun(&sb, cur, run)
		sb.WriteString(sgrReset)
	}
	return sb.String(), nil
}

func (b Block) clusterAt(p *pixels.Prepared, x, y int) cluster {
	upper, ua := p.At(x, y)
	var (
		lower pixels.RGB
		la    uint8
	)
	if y+1 < p.Height {
		lower, la = p.At(x, y+1)
	}
	switch {
	case ua == 0 && la == 0:
		return cluster{kind: blank}
	case ua == 0:
		return cluster{kind: lowerOnly, fg: lower}
	case la == 0:
		return cluster{kind: upperOnly, fg: upper}
	case upper == lower:
		return cluster{kind: flat, bg: upper}
	default:
		return cluster{kind: split, fg: upper, bg: lower}
	}
}

func (b Block) writeGroup(sb *strings.Builder, c cluster) {
	switch c.kind {
	case blank:
		sb.WriteString(sgrReset)
	case lowerOnly, upperOnly:
		sb.WriteString("\x1b[49m")
		writeSGR(sb, 38, c.fg)
	case flat:
		writeSGR(sb, 48, b.nudge(c.bg))
	case split:
		writeSGR(sb, 38, c.fg)
		writeSGR(sb, 48, b.nudge(c.bg))
	}
}

func writeRun(sb *strings.Builder, c cluster, n int) {
	var glyph string
	switch c.kind {
	case blank, flat:
		glyph = " "
	case lowerOnly:
		glyph = lowerHalf
	default:
		glyph = upperHalf
	}
	for range n {
		sb.WriteString(glyph)
	}
}

func writeSGR(sb *strings.Builder, code int, c pixels.RGB) {
	sb.WriteString("\x1b[")
	sb.WriteString(strconv.Itoa(code))
	sb.WriteString(";2;")
	sb.WriteString(strconv.Itoa(int(c.R)))
	sb.WriteByte(';')
	sb.WriteString(strconv.Itoa(int(c.G)))
	sb.WriteByte(';')
	sb.WriteString(strconv.Itoa(int(c.B)))
	sb.WriteByte('m')
}

// nudge shifts the red channel of a background colour equal to the
// terminal's default background.
func (b Block) nudge(c pixels.RGB) pixels.RGB {
	if b.TerminalBg == nil {
		return c
	}
	bg := b.TerminalBg
	if c.R != bg.R || c.G != bg.G || c.B != bg.B {
		return c
	}
	if c.R == 255 {
		c.R--
	} else {
		c.R++
	}
	return c
}
