package termcap

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// TTY talks to the controlling terminal through /dev/tty.
//
// Queries put the terminal in raw mode for their duration, so they must not
// run while another component (e.g. a TUI) is reading from the terminal.
type TTY struct {
	mu   sync.Mutex
	path string

	colorsOnce sync.Once
	fg, bg     *color.RGBA
}

// NewTTY returns a TTY bound to /dev/tty.
func NewTTY() *TTY {
	return &TTY{path: "/dev/tty"}
}

// Available reports whether a controlling terminal can be opened.
func (t *TTY) Available() bool {
	f, err := os.OpenFile(t.path, os.O_RDWR, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

func (t *TTY) Query(req string, done func([]byte) bool, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tty, err := os.OpenFile(t.path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", t.path, err)
	}
	defer tty.Close()

	oldState, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		return nil, fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(int(tty.Fd()), oldState) //nolint:errcheck // best-effort restore

	if _, err := tty.WriteString(req); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := tty.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	reply := make([]byte, 0, 64)
	buf := make([]byte, 64)
	for {
		n, err := tty.Read(buf)
		reply = append(reply, buf[:n]...)
		if done(reply) {
			return reply, nil
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return reply, ErrTimeout
			}
			return reply, fmt.Errorf("read reply: %w", err)
		}
	}
}

// Colors queries OSC 10/11 once and memoizes the answer.
func (t *TTY) Colors() (fg, bg *color.RGBA) {
	t.colorsOnce.Do(func() {
		t.fg = t.queryColor(10)
		t.bg = t.queryColor(11)
	})
	return t.fg, t.bg
}

func (t *TTY) queryColor(code int) *color.RGBA {
	reply, err := t.Query(fmt.Sprintf("\x1b]%d;?\a", code), terminated, DefaultTimeout)
	if err != nil {
		return nil
	}
	c, ok := ParseColorReply(reply)
	if !ok {
		return nil
	}
	return c
}

func (t *TTY) CellSize() CellSize {
	return cellSize()
}
