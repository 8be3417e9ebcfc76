// Package anim iterates over the encoded frames of an animated image.
package anim

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/llehouerou/termimage/internal/imagesrc"
	"github.com/llehouerou/termimage/internal/imgerr"
	"github.com/llehouerou/termimage/internal/pixels"
	"github.com/llehouerou/termimage/internal/render"
	"github.com/llehouerou/termimage/internal/style"
)

// ErrExhausted is returned by Next once every loop has been produced.
var ErrExhausted = errors.New("animation exhausted")

// Infinite repeats an animation forever.
const Infinite = -1

// DefaultCacheThreshold is the frame count from which CacheAuto stops caching.
const DefaultCacheThreshold = 100

// CacheMode selects frame caching.
type CacheMode int

const (
	CacheAuto CacheMode = iota
	CacheOff
	CacheOn
)

// CachePolicy decides whether encoded frames are kept.
type CachePolicy struct {
	Mode CacheMode
	// Threshold is the CacheAuto frame count limit; 0 means
	// DefaultCacheThreshold.
	Threshold int
}

func (p CachePolicy) enabled(frames int) bool {
	switch p.Mode {
	case CacheOn:
		return true
	case CacheOff:
		return false
	}
	limit := p.Threshold
	if limit <= 0 {
		limit = DefaultCacheThreshold
	}
	return frames < limit
}

// Options configures an Iterator.
type Options struct {
	// Repeat is the number of loops, or Infinite.
	Repeat int
	Cache  CachePolicy

	Style style.Style
	Args  style.Args
	Alpha pixels.AlphaPolicy
	Size  imagesrc.Size
	// Frame is the available area for the fit size modes.
	Frame image.Point

	Render render.Options
}

// Frame is one produced animation frame.
type Frame struct {
	Index    int
	Duration time.Duration
	Result   render.Result
}

type state int

const (
	idle state = iota
	running
	exhausted
	closed
)

// Iterator produces the frames of an animated image in order, looping
// Repeat times. It does not own the image.
type Iterator struct {
	img  *imagesrc.Image
	opts Options
	n    int

	mu       sync.Mutex
	state    state
	next     int
	seek     int // pending seek target, -1 when none
	loops    int
	useCache bool
	cache    map[int]render.Result
	cacheKey string
}

// New returns an iterator over img.
func New(img *imagesrc.Image, opts Options) (*Iterator, error) {
	if img == nil {
		return nil, errors.New("anim: nil image")
	}
	if img.Closed() {
		return nil, imgerr.ErrClosed
	}
	if !img.Animated() {
		return nil, fmt.Errorf("anim: image %s has a single frame", img.ID())
	}
	if opts.Repeat != Infinite && opts.Repeat < 1 {
		return nil, fmt.Errorf("anim: repeat must be %d or at least 1, got %d", Infinite, opts.Repeat)
	}
	if opts.Style == nil {
		return nil, errors.New("anim: nil style")
	}
	n := img.FrameCount()
	return &Iterator{
		img:      img,
		opts:     opts,
		n:        n,
		seek:     -1,
		loops:    opts.Repeat,
		useCache: opts.Cache.enabled(n),
		cache:    map[int]render.Result{},
	}, nil
}

// Len returns the number of frames per loop.
func (it *Iterator) Len() int { return it.n }

// Next renders and returns the next frame.
func (it *Iterator) Next() (Frame, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	switch it.state {
	case closed:
		return Frame{}, imgerr.ErrClosed
	case exhausted:
		return Frame{}, ErrExhausted
	case idle:
		it.state = running
	}

	idx := it.next
	if it.seek >= 0 {
		idx, it.seek = it.seek, -1
	} else if idx >= it.n {
		if it.loops != Infinite {
			it.loops--
		}
		if it.loops == 0 {
			it.finish(exhausted)
			return Frame{}, ErrExhausted
		}
		idx = 0
	}

	res, err := it.render(idx)
	if err != nil {
		return Frame{}, err
	}
	it.next = idx + 1
	return Frame{Index: idx, Duration: it.img.Delay(idx), Result: res}, nil
}

func (it *Iterator) request() render.Request {
	return render.Request{
		Image: it.img,
		Size:  it.opts.Size,
		Frame: it.opts.Frame,
		Alpha: it.opts.Alpha,
		Style: it.opts.Style,
		Args:  it.opts.Args,
	}
}

func (it *Iterator) render(idx int) (render.Result, error) {
	req := it.request()
	if err := req.Validate(); err != nil {
		return render.Result{}, err
	}
	if key := req.Key(); key != it.cacheKey {
		// Size or arguments changed every frame equally.
		clear(it.cache)
		it.cacheKey = key
	}

	if err := it.img.Seek(idx); err != nil {
		return render.Result{}, err
	}
	if res, ok := it.cache[idx]; ok && it.useCache {
		return res, nil
	}
	res, err := render.RenderOrFault(req, it.opts.Render)
	if err != nil {
		return render.Result{}, err
	}
	if it.useCache {
		it.cache[idx] = res
	}
	return res, nil
}

// Seek makes the next call to Next produce frame n. Seeking an exhausted
// iterator restarts it with the full repeat count.
func (it *Iterator) Seek(n int) error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.state == closed {
		return imgerr.ErrClosed
	}
	if n < 0 || n >= it.n {
		return &imgerr.RangeError{Index: n, Len: it.n}
	}
	if it.state == exhausted {
		it.state = running
		it.loops = it.opts.Repeat
	}
	it.seek = n
	return nil
}

// SetSize changes the render size. Cached frames are dropped when the
// resolved size changes.
func (it *Iterator) SetSize(size imagesrc.Size, frame image.Point) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.opts.Size = size
	it.opts.Frame = frame
}

// Size returns the current render size and frame.
func (it *Iterator) Size() (imagesrc.Size, image.Point) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.opts.Size, it.opts.Frame
}

// Resolve returns the cell size frames are currently rendered at.
func (it *Iterator) Resolve() (cols, rows int, err error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.request().Resolve()
}

// LoopNo returns the remaining loop count: Infinite for endless
// animations and 0 once exhausted. ok is false before the first frame.
func (it *Iterator) LoopNo() (n int, ok bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	switch it.state {
	case idle:
		return 0, false
	case exhausted:
		return 0, true
	}
	return it.loops, true
}

// Cached returns the number of cached frames.
func (it *Iterator) Cached() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return len(it.cache)
}

// Close drops cached frames and rewinds the image. Closing twice is a no-op.
func (it *Iterator) Close() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.state == closed {
		return nil
	}
	it.finish(closed)
	return nil
}

func (it *Iterator) finish(s state) {
	it.state = s
	it.seek = -1
	it.next = 0
	if s == closed {
		it.cache = nil
	}
	if !it.img.Closed() {
		_ = it.img.Seek(0) //nolint:errcheck // frame 0 always exists
	}
}
