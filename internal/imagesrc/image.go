// Package imagesrc adapts the Go image decoders into the image handles the
// renderers consume: identity, original size, frames and render size.
package imagesrc

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/llehouerou/termimage/internal/imgerr"
)

var memCounter atomic.Uint64

// Image is a decoded, possibly multi-frame, image.
// It is safe for concurrent use.
type Image struct {
	id     string
	path   string
	format string
	orig   image.Point

	mu     sync.Mutex
	frames []image.Image
	delays []time.Duration
	pos    int
	size   *Size
	data   []byte
	closed bool
}

// Open decodes the image file at path.
func Open(path string) (*Image, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &imgerr.DecodeError{Path: path, Err: err}
	}
	abs = filepath.Clean(abs)

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &imgerr.DecodeError{Path: abs, Err: err}
	}
	img, err := decode(raw)
	if err != nil {
		return nil, &imgerr.DecodeError{Path: abs, Err: err}
	}
	img.id = abs
	img.path = abs
	return img, nil
}

// Decode decodes an in-memory encoded image. The bytes are kept for
// native passthrough.
func Decode(raw []byte) (*Image, error) {
	img, err := decode(raw)
	if err != nil {
		return nil, &imgerr.DecodeError{Err: err}
	}
	img.id = nextMemID()
	img.data = raw
	return img, nil
}

// New wraps an already decoded still image.
func New(src image.Image) *Image {
	return &Image{
		id:     nextMemID(),
		orig:   src.Bounds().Size(),
		frames: []image.Image{src},
		delays: []time.Duration{0},
	}
}

// NewAnimated wraps already composited frames. All frames must share the
// bounds of the first one.
func NewAnimated(frames []image.Image, delays []time.Duration) (*Image, error) {
	if len(frames) == 0 {
		return nil, &imgerr.DecodeError{Err: fmt.Errorf("no frames")}
	}
	if len(delays) != len(frames) {
		return nil, &imgerr.DecodeError{Err: fmt.Errorf("%d delays for %d frames", len(delays), len(frames))}
	}
	return &Image{
		id:     nextMemID(),
		orig:   frames[0].Bounds().Size(),
		frames: frames,
		delays: delays,
	}, nil
}

func nextMemID() string {
	return fmt.Sprintf("mem:%d", memCounter.Add(1))
}

// ID is the stable identity used in cache keys.
func (i *Image) ID() string { return i.id }

// Path is the source file path, empty for in-memory images.
func (i *Image) Path() string { return i.path }

// Format is the decoder name ("png", "gif", ...), empty when unknown.
func (i *Image) Format() string { return i.format }

// OriginalSize is the pixel size of the source.
func (i *Image) OriginalSize() image.Point { return i.orig }

// FrameCount returns the number of frames (1 for still images).
func (i *Image) FrameCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.frames)
}

// Animated reports whether the image has more than one frame.
func (i *Image) Animated() bool {
	return i.FrameCount() > 1
}

// Seek moves the frame cursor.
func (i *Image) Seek(n int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return imgerr.ErrClosed
	}
	if n < 0 || n >= len(i.frames) {
		return &imgerr.RangeError{Index: n, Len: len(i.frames)}
	}
	i.pos = n
	return nil
}

// Tell returns the frame cursor.
func (i *Image) Tell() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pos
}

// Frame returns the frame under the cursor.
func (i *Image) Frame() (image.Image, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, imgerr.ErrClosed
	}
	return i.frames[i.pos], nil
}

// Delay returns the display duration of frame n.
func (i *Image) Delay(n int) time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	if n < 0 || n >= len(i.delays) {
		return 0
	}
	return i.delays[n]
}

// Size returns the render size set on the image, if any.
func (i *Image) Size() (Size, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.size == nil {
		return Size{}, false
	}
	return *i.size, true
}

// SetSize sets the render size used by requests that leave theirs unset.
func (i *Image) SetSize(s Size) {
	i.mu.Lock()
	i.size = &s
	i.mu.Unlock()
}

// Data returns the original encoded bytes, reading the file on first use.
func (i *Image) Data() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, imgerr.ErrClosed
	}
	if i.data != nil {
		return i.data, nil
	}
	if i.path == "" {
		return nil, fmt.Errorf("image %s has no source bytes", i.id)
	}
	raw, err := os.ReadFile(i.path)
	if err != nil {
		return nil, &imgerr.DecodeError{Path: i.path, Err: err}
	}
	i.data = raw
	return raw, nil
}

// DataSize returns the size of the original bytes without reading them,
// or -1 when unknown.
func (i *Image) DataSize() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.data != nil {
		return int64(len(i.data))
	}
	if i.path == "" {
		return -1
	}
	fi, err := os.Stat(i.path)
	if err != nil {
		return -1
	}
	return fi.Size()
}

// ModTime returns the source file modification time, zero for in-memory
// images.
func (i *Image) ModTime() time.Time {
	if i.path == "" {
		return time.Time{}
	}
	fi, err := os.Stat(i.path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}

// Close releases the decoded frames. Closing twice is a no-op.
func (i *Image) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	i.frames = nil
	i.data = nil
	i.pos = 0
	return nil
}

// Closed reports whether Close was called.
func (i *Image) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

func decode(raw []byte) (*Image, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if format == "gif" {
		frames, delays, err := decodeGIF(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		return &Image{
			format: format,
			orig:   frames[0].Bounds().Size(),
			frames: frames,
			delays: delays,
		}, nil
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return &Image{
		format: format,
		orig:   img.Bounds().Size(),
		frames: []image.Image{img},
		delays: []time.Duration{0},
	}, nil
}
