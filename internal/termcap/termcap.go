// Package termcap provides the terminal capability collaborator used by the
// renderers: request/response queries with a timeout, the terminal's default
// colours and the pixel size of a character cell.
package termcap

import (
	"errors"
	"image/color"
	"regexp"
	"strconv"
	"time"
)

// ErrTimeout is returned when a terminal does not answer a query in time.
var ErrTimeout = errors.New("terminal query timed out")

// DefaultTimeout bounds every capability query.
const DefaultTimeout = 200 * time.Millisecond

// CellSize is the size of one character cell in pixels.
// The zero value means the size is unknown.
type CellSize struct {
	Width  int
	Height int
}

// Known reports whether both dimensions were reported by the terminal.
func (c CellSize) Known() bool {
	return c.Width > 0 && c.Height > 0
}

// Ratio returns the cell aspect ratio (height / width).
// Unknown sizes assume the usual 1:2 cell.
func (c CellSize) Ratio() float64 {
	if !c.Known() {
		return 2
	}
	return float64(c.Height) / float64(c.Width)
}

// Terminal is the capability collaborator consumed by the styles and renderers.
type Terminal interface {
	// Query writes req to the terminal and collects the reply until done
	// returns true for the bytes read so far, or until timeout elapses.
	Query(req string, done func(reply []byte) bool, timeout time.Duration) ([]byte, error)

	// Colors returns the default foreground and background colours,
	// nil when unknown.
	Colors() (fg, bg *color.RGBA)

	// CellSize returns the pixel size of a cell.
	CellSize() CellSize
}

// Static is a Terminal with fixed answers. It is used when no tty is
// available (e.g. output redirected to a file) and in tests.
type Static struct {
	// Replies maps a query prefix to the raw reply the terminal sends.
	Replies map[string]string
	Fg, Bg  *color.RGBA
	Cell    CellSize
}

func (s *Static) Query(req string, done func([]byte) bool, _ time.Duration) ([]byte, error) {
	if s == nil {
		return nil, ErrTimeout
	}
	var reply []byte
	for prefix, r := range s.Replies {
		if len(req) >= len(prefix) && req[:len(prefix)] == prefix {
			reply = []byte(r)
			break
		}
	}
	if reply == nil {
		return nil, ErrTimeout
	}
	// Mimic a byte stream: only the part up to completion is "read".
	for i := 1; i <= len(reply); i++ {
		if done(reply[:i]) {
			return reply[:i], nil
		}
	}
	return reply, ErrTimeout
}

func (s *Static) Colors() (fg, bg *color.RGBA) {
	if s == nil {
		return nil, nil
	}
	return s.Fg, s.Bg
}

func (s *Static) CellSize() CellSize {
	if s == nil {
		return CellSize{}
	}
	return s.Cell
}

var colorReply = regexp.MustCompile(`\x1b\](1[01]);rgb:([0-9A-Fa-f]{1,4})/([0-9A-Fa-f]{1,4})/([0-9A-Fa-f]{1,4})`)

// ParseColorReply parses an OSC 10/11 colour reply such as
// "ESC]11;rgb:1e1e/1e1e/2e2e BEL".
func ParseColorReply(reply []byte) (*color.RGBA, bool) {
	m := colorReply.FindSubmatch(reply)
	if m == nil {
		return nil, false
	}
	var ch [3]uint8
	for i := range 3 {
		hex := string(m[i+2])
		v, err := strconv.ParseUint(hex, 16, 16)
		if err != nil {
			return nil, false
		}
		maxVal := uint64(1)<<(4*len(hex)) - 1
		ch[i] = uint8((v*255 + maxVal/2) / maxVal) //nolint:gosec // scaled into 0..255
	}
	return &color.RGBA{R: ch[0], G: ch[1], B: ch[2], A: 255}, true
}

// terminated reports whether reply ends with BEL or ST.
func terminated(reply []byte) bool {
	n := len(reply)
	if n == 0 {
		return false
	}
	if reply[n-1] == '\a' {
		return true
	}
	return n >= 2 && reply[n-2] == 0x1b && reply[n-1] == '\\'
}
