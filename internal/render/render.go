// Package render runs the synchronous render pipeline: resolve the cell
// size, prepare pixels and encode them in a style.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/llehouerou/termimage/internal/imagesrc"
	"github.com/llehouerou/termimage/internal/imgerr"
	"github.com/llehouerou/termimage/internal/pixels"
	"github.com/llehouerou/termimage/internal/style"
	"github.com/llehouerou/termimage/internal/thumbcache"
)

// Request describes one render.
type Request struct {
	Image *imagesrc.Image
	// Size is the render size. The zero value defers to the image's own
	// size and fits the frame when the image has none.
	Size imagesrc.Size
	// Frame is the available area in cells, used by the fit modes.
	Frame image.Point
	Alpha pixels.AlphaPolicy
	Style style.Style
	Args  style.Args
}

// Options are shared by every render of a pipeline.
type Options struct {
	Filter     *pixels.Filter
	TerminalBg *color.RGBA
	// Thumbs caches resized still images; nil disables it.
	Thumbs *thumbcache.Cache
}

// Result is an encoded image or a faulty placeholder.
type Result struct {
	Output      string
	Cols        int
	Rows        int
	PixelWidth  int
	PixelHeight int
	Faulty      bool
	Err         error
}

// Resolve returns the cell size the request renders at.
func (r Request) Resolve() (cols, rows int, err error) {
	if r.Image == nil {
		return 0, 0, errors.New("render: nil image")
	}
	if r.Style == nil {
		return 0, 0, errors.New("render: nil style")
	}
	size := r.Size
	if size == (imagesrc.Size{}) {
		if s, ok := r.Image.Size(); ok {
			size = s
		}
	}
	return size.Resolve(r.Image.OriginalSize(), imagesrc.Geometry{
		Frame:      r.Frame,
		CellPixels: r.Style.CellPixels(),
	})
}

// Key identifies the request in caches. It is empty when the size does not
// resolve.
func (r Request) Key() string {
	cols, rows, err := r.Resolve()
	if err != nil {
		return ""
	}
	return KeyFor(r.Image.ID(), cols, rows, r.Alpha, r.Style, r.args())
}

// KeyFor builds a cache key from its parts.
func KeyFor(id string, cols, rows int, alpha pixels.AlphaPolicy, st style.Style, args style.Args) string {
	alphaKey := pixels.Threshold{}.Key()
	if alpha != nil {
		alphaKey = alpha.Key()
	}
	argsKey := ""
	if args != nil {
		argsKey = args.Key()
	}
	return strings.Join([]string{id, fmt.Sprintf("%dx%d", cols, rows), alphaKey, st.Name(), argsKey}, "|")
}

func (r Request) args() style.Args {
	if r.Args == nil {
		return r.Style.DefaultArgs()
	}
	return r.Args
}

// Validate checks what a caller controls: the style, its arguments and
// the size. It never decodes.
func (r Request) Validate() error {
	_, _, err := r.Resolve()
	return err
}

// Render renders the image's current frame.
func Render(r Request, opts Options) (Result, error) {
	cols, rows, err := r.Resolve()
	if err != nil {
		return Result{}, err
	}
	frame, err := r.Image.Frame()
	if err != nil {
		return Result{}, err
	}

	pw, ph := style.PixelSize(r.Style, cols, rows)
	resized, err := resize(r.Image, frame, pw, ph, opts)
	if err != nil {
		return Result{}, err
	}
	p := pixels.PrepareResized(resized, pixels.Options{
		Alpha:      r.Alpha,
		TerminalBg: opts.TerminalBg,
	})

	out, err := r.Style.Encode(p, style.Geometry{Cols: cols, Rows: rows}, r.args())
	if err != nil {
		return Result{}, err
	}
	return Result{
		Output:      out,
		Cols:        cols,
		Rows:        rows,
		PixelWidth:  p.Width,
		PixelHeight: p.Height,
	}, nil
}

// resize goes through the thumbnail cache for still file-backed images.
func resize(img *imagesrc.Image, frame image.Image, w, h int, opts Options) (*image.NRGBA, error) {
	if opts.Thumbs == nil || img.Path() == "" || img.Animated() {
		return pixels.Resize(frame, w, h, opts.Filter)
	}
	mtime, filter := img.ModTime(), opts.Filter.String()
	if cached := opts.Thumbs.Get(img.Path(), mtime, filter, w, h); cached != nil {
		return cached, nil
	}
	resized, err := pixels.Resize(frame, w, h, opts.Filter)
	if err != nil {
		return nil, err
	}
	// The cache keeps its own encoded copy; resized is modified later.
	_ = opts.Thumbs.Put(img.Path(), mtime, filter, resized) //nolint:errcheck // cache is best-effort
	return resized, nil
}

// RenderOrFault renders r, turning runtime failures into a faulty result
// sized like the request. Only validation errors are returned.
func RenderOrFault(r Request, opts Options) (Result, error) {
	cols, rows, err := r.Resolve()
	if err != nil {
		return Result{}, err
	}
	res, err := Render(r, opts)
	if err == nil {
		return res, nil
	}
	if imgerr.IsValidation(err) && !errors.Is(err, imgerr.ErrClosed) {
		return Result{}, err
	}
	return Faulty(cols, rows, err), nil
}
