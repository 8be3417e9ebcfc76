package style

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/termimage/internal/imgerr"
	"github.com/llehouerou/termimage/internal/imagesrc"
	"github.com/llehouerou/termimage/internal/pixels"
	"github.com/llehouerou/termimage/internal/termcap"
)

const (
	oscFile = "\x1b]1337;File="
	bel     = "\a"
)

// DefaultNativeMaxSize bounds the size of files sent through native
// passthrough.
const DefaultNativeMaxSize = 2 << 20

// ITerm2 renders through the iTerm2 inline image protocol, transmitting an
// encoded PNG or JPEG.
type ITerm2 struct {
	Cell     termcap.CellSize
	Defaults ITerm2Args
}

// ITerm2Args configures the iTerm2 style.
type ITerm2Args struct {
	Method Method
	Mix    bool
	// JPEGQuality enables lossy output for opaque images when positive.
	JPEGQuality int
	// Native sends the original file of animated images.
	Native bool
	// NativeMaxSize is the largest file sent natively, in bytes.
	NativeMaxSize int64
}

func (a ITerm2Args) Key() string {
	return fmt.Sprintf("%s,mix=%t,jpeg=%d,native=%t/%d", a.Method, a.Mix, a.JPEGQuality, a.Native, a.NativeMaxSize)
}

// DefaultITerm2Args are the built-in iTerm2 arguments.
func DefaultITerm2Args() ITerm2Args {
	return ITerm2Args{Method: Lines, Native: true, NativeMaxSize: DefaultNativeMaxSize}
}

func (t ITerm2) Name() string            { return NameITerm2 }
func (t ITerm2) CellPixels() image.Point { return graphicsCell(t.Cell) }
func (t ITerm2) DefaultArgs() Args       { return t.Defaults }
func (ITerm2) sealed()                   {}

func (t ITerm2) ParseArgs(raw map[string]string) (Args, error) {
	return ParseITerm2Args(t.Defaults, raw)
}

// ParseITerm2Args applies raw arguments on top of base.
// Accepted keys: method, mix, jpeg_quality, native, native_max_size.
func ParseITerm2Args(base ITerm2Args, raw map[string]string) (ITerm2Args, error) {
	args := base
	for k, v := range raw {
		argErr := func(err error) error {
			return &imgerr.ArgError{Style: NameITerm2, Arg: k, Value: v, Err: err}
		}
		switch k {
		case "method":
			m, err := ParseMethod(v)
			if err != nil {
				return args, argErr(err)
			}
			args.Method = m
		case "mix", "native":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return args, argErr(fmt.Errorf("must be a boolean"))
			}
			if k == "mix" {
				args.Mix = b
			} else {
				args.Native = b
			}
		case "jpeg_quality":
			q, err := strconv.Atoi(v)
			if err != nil || q < 0 || q > 100 {
				return args, argErr(fmt.Errorf("must be between 0 and 100"))
			}
			args.JPEGQuality = q
		case "native_max_size":
			n, err := humanize.ParseBytes(v)
			if err != nil {
				return args, argErr(err)
			}
			args.NativeMaxSize = int64(n) //nolint:gosec // sizes fit in int64
		default:
			return args, argErr(fmt.Errorf("unknown argument"))
		}
	}
	return args, nil
}

func (t ITerm2) Encode(p *pixels.Prepared, g Geometry, args Args) (string, error) {
	if err := checkGeometry(p, g); err != nil {
		return "", err
	}
	a, err := iterm2Args(args, t.Defaults)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if a.Method == Whole {
		data, err := encodeFile(p.Image, p.Transparent, a.JPEGQuality)
		if err != nil {
			return "", err
		}
		if err := iterm2Transmit(&sb, data, g.Cols, g.Rows); err != nil {
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
		slice := p.Image.SubImage(image.Rect(0, y0, p.Width, y1))
		data, err := encodeFile(slice, p.Transparent, a.JPEGQuality)
		if err != nil {
			return "", err
		}
		if err := iterm2Transmit(&sb, data, g.Cols, 1); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// NativeEligible reports whether img can be sent as its original file.
func (t ITerm2) NativeEligible(img *imagesrc.Image, args Args) bool {
	a, err := iterm2Args(args, t.Defaults)
	if err != nil || !a.Native || !img.Animated() {
		return false
	}
	switch img.Format() {
	case "gif", "png", "webp":
	default:
		return false
	}
	size := img.DataSize()
	return size > 0 && size <= a.NativeMaxSize
}

// EncodeNative transmits the original file bytes with whole-image geometry.
func (t ITerm2) EncodeNative(data []byte, g Geometry, args Args) (string, error) {
	a, err := iterm2Args(args, t.Defaults)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := iterm2Transmit(&sb, data, g.Cols, g.Rows); err != nil {
		return "", err
	}
	writeWholeFill(&sb, g, a.Mix)
	return sb.String(), nil
}

func iterm2Args(args Args, def ITerm2Args) (ITerm2Args, error) {
	switch a := args.(type) {
	case nil:
		return def, nil
	case ITerm2Args:
		return a, nil
	case *ITerm2Args:
		return *a, nil
	}
	return ITerm2Args{}, fmt.Errorf("iterm2: unexpected arguments %T", args)
}

func iterm2Transmit(sb *strings.Builder, data []byte, cols, rows int) error {
	cd := NewControlData(';')
	for _, kv := range []struct {
		key string
		val any
	}{
		{"inline", 1},
		{"size", len(data)},
		{"width", cols},
		{"height", rows},
		{"preserveAspectRatio", 0},
		{"doNotMoveCursor", 1},
	} {
		if err := cd.Set(kv.key, kv.val); err != nil {
			return err
		}
	}
	sb.WriteString(oscFile)
	sb.WriteString(cd.String())
	sb.WriteByte(':')
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	sb.WriteString(bel)
	return nil
}

// encodeFile encodes img as PNG, or as JPEG when a quality is requested
// and the image has no transparency.
func encodeFile(img image.Image, transparent bool, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if quality > 0 && !transparent {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), nil
	}
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
