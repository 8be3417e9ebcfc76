package style

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/llehouerou/termimage/internal/imgerr"
	"github.com/llehouerou/termimage/internal/pixels"
	"github.com/llehouerou/termimage/internal/termcap"
)

const (
	escStart = "\x1b_G"
	escEnd   = "\x1b\\"
)

// DefaultCompression is the zlib level used for Kitty payloads.
const DefaultCompression = 4

// Kitty renders through the Kitty graphics protocol, transmitting raw
// pixels directly in the escape sequences.
type Kitty struct {
	Cell     termcap.CellSize
	Defaults KittyArgs
}

// KittyArgs configures the Kitty style.
type KittyArgs struct {
	Method Method
	// ZIndex is the stacking order; nil draws above text.
	ZIndex *int32
	// Mix keeps the text under the image instead of erasing it.
	Mix bool
	// Compress is the zlib level, 0 disables compression.
	Compress int
}

func (a KittyArgs) Key() string {
	z := "-"
	if a.ZIndex != nil {
		z = strconv.FormatInt(int64(*a.ZIndex), 10)
	}
	return fmt.Sprintf("%s,z=%s,mix=%t,c=%d", a.Method, z, a.Mix, a.Compress)
}

func (a KittyArgs) zIndex() int32 {
	if a.ZIndex == nil {
		return 0
	}
	return *a.ZIndex
}

// DefaultKittyArgs are the built-in Kitty arguments.
func DefaultKittyArgs() KittyArgs {
	return KittyArgs{Method: Lines, Compress: DefaultCompression}
}

func (k Kitty) Name() string            { return NameKitty }
func (k Kitty) CellPixels() image.Point { return graphicsCell(k.Cell) }
func (k Kitty) DefaultArgs() Args       { return k.Defaults }
func (Kitty) sealed()                   {}

func (k Kitty) ParseArgs(raw map[string]string) (Args, error) {
	return ParseKittyArgs(k.Defaults, raw)
}

// ParseKittyArgs applies raw arguments on top of base.
// Accepted keys: method, z_index, mix, compress.
func ParseKittyArgs(base KittyArgs, raw map[string]string) (KittyArgs, error) {
	args := base
	for k, v := range raw {
		argErr := func(err error) error {
			return &imgerr.ArgError{Style: NameKitty, Arg: k, Value: v, Err: err}
		}
		switch k {
		case "method":
			m, err := ParseMethod(v)
			if err != nil {
				return args, argErr(err)
			}
			args.Method = m
		case "z_index":
			if v == "" {
				args.ZIndex = nil
				continue
			}
			z, err := strconv.ParseInt(v, 10, 32)
			if err != nil {
				return args, argErr(fmt.Errorf("must be a 32-bit signed integer"))
			}
			z32 := int32(z)
			args.ZIndex = &z32
		case "mix":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return args, argErr(fmt.Errorf("must be a boolean"))
			}
			args.Mix = b
		case "compress":
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 || n > 9 {
				return args, argErr(fmt.Errorf("must be between 0 and 9"))
			}
			args.Compress = n
		default:
			return args, argErr(fmt.Errorf("unknown argument"))
		}
	}
	return args, nil
}

func (k Kitty) Encode(p *pixels.Prepared, g Geometry, args Args) (string, error) {
	if err := checkGeometry(p, g); err != nil {
		return "", err
	}
	a, err := kittyArgs(args, k.Defaults)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if a.Method == Whole {
		if err := kittyTransmit(&sb, p, 0, p.Height, g.Cols, g.Rows, a); err != nil {
			return "", err
		}
		writeWholeFill(&sb, g, a.Mix)
		return sb.String(), nil
	}

	step := skip(g.Cols, a.Mix)
	for r := range g.Rows {
		if r > 0 {
			sb.WriteString(step)
			sb.WriteByte('\n')
		}
		y0, y1 := rowBounds(p.Height, g.Rows, r)
		if err := kittyTransmit(&sb, p, y0, y1, g.Cols, 1, a); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func kittyArgs(args Args, def KittyArgs) (KittyArgs, error) {
	switch a := args.(type) {
	case nil:
		return def, nil
	case KittyArgs:
		return a, nil
	case *KittyArgs:
		return *a, nil
	}
	return KittyArgs{}, fmt.Errorf("kitty: unexpected arguments %T", args)
}

// kittyTransmit writes pixel rows [y0, y1) as one image placed at the
// cursor, covering cols x rows cells.
func kittyTransmit(sb *strings.Builder, p *pixels.Prepared, y0, y1, cols, rows int, a KittyArgs) error {
	raw, format := kittyPixels(p, y0, y1)
	data, compressed := compress(raw, a.Compress)
	chunks := Chunk(base64.StdEncoding.EncodeToString(data), ChunkSize)

	cd := NewControlData(',')
	for _, kv := range []struct {
		key string
		val any
	}{
		{"a", "T"},
		{"f", format},
		{"t", "d"},
		{"s", p.Width},
		{"v", y1 - y0},
	} {
		if err := cd.Set(kv.key, kv.val); err != nil {
			return err
		}
	}
	if compressed {
		if err := cd.Set("o", "z"); err != nil {
			return err
		}
	}
	for _, kv := range []struct {
		key string
		val any
	}{
		{"c", cols},
		{"r", rows},
		{"z", a.zIndex()},
		{"C", 1},
		{"q", 2},
		{"m", more(0, len(chunks))},
	} {
		if err := cd.Set(kv.key, kv.val); err != nil {
			return err
		}
	}

	for i, chunk := range chunks {
		sb.WriteString(escStart)
		if i == 0 {
			sb.WriteString(cd.String())
		} else {
			fmt.Fprintf(sb, "m=%d", more(i, len(chunks)))
		}
		sb.WriteByte(';')
		sb.WriteString(chunk)
		sb.WriteString(escEnd)
	}
	return nil
}

func more(i, n int) int {
	if i < n-1 {
		return 1
	}
	return 0
}

// kittyPixels returns the packed rows [y0, y1) and the matching Kitty
// format code: 24 for RGB when the image is opaque, 32 for RGBA.
func kittyPixels(p *pixels.Prepared, y0, y1 int) ([]byte, int) {
	if p.Transparent {
		img := p.Image
		out := make([]byte, 0, (y1-y0)*p.Width*4)
		for y := y0; y < y1; y++ {
			off := y * img.Stride
			out = append(out, img.Pix[off:off+p.Width*4]...)
		}
		return out, 32
	}
	out := make([]byte, 0, (y1-y0)*p.Width*3)
	for _, c := range p.RGB[y0*p.Width : y1*p.Width] {
		out = append(out, c.R, c.G, c.B)
	}
	return out, 24
}

// compress deflates raw with zlib and keeps the result only when it saves
// at least a tenth of the size.
func compress(raw []byte, level int) ([]byte, bool) {
	if level <= 0 {
		return raw, false
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, min(level, zlib.BestCompression))
	if err != nil {
		return raw, false
	}
	if _, err := w.Write(raw); err != nil {
		return raw, false
	}
	if err := w.Close(); err != nil {
		return raw, false
	}
	if float64(buf.Len()) > math.Floor(float64(len(raw))*0.9) {
		return raw, false
	}
	return buf.Bytes(), true
}

// KittyDeleteAll removes every image placement from the screen and frees
// the image data.
func KittyDeleteAll() string {
	return escStart + "a=d,d=A,q=2" + escEnd
}
