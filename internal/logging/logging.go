// Package logging writes the application log to a file, so nothing reaches
// the terminal while the viewer owns it.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"

	"github.com/llehouerou/termimage/internal/errmsg"
)

const logFileName = "termimage/termimage.log"

// DefaultPath returns the log file under the XDG state home.
func DefaultPath() string {
	return filepath.Join(xdg.StateHome, logFileName)
}

// ParseLevel parses a level name; empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}

// Open creates a text logger appending to path (DefaultPath when empty).
// The returned closer closes the file.
func Open(path string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(f, level), f, nil
}

// New creates a text logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// FaultLog logs render faults as warnings and keeps the last message for
// display.
type FaultLog struct {
	log *slog.Logger

	mu    sync.Mutex
	count int
	last  string
}

// NewFaultLog returns a FaultLog writing to log.
func NewFaultLog(log *slog.Logger) *FaultLog {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &FaultLog{log: log}
}

// ReportFault logs one warning per call.
func (f *FaultLog) ReportFault(id string, err error) {
	msg := errmsg.FormatWith(errmsg.OpRender, id, err)
	f.log.Warn(msg, "image", id)

	f.mu.Lock()
	f.count++
	f.last = msg
	f.mu.Unlock()
}

// Forget records that id left every cache.
func (f *FaultLog) Forget(id string) {
	f.log.Debug("fault forgotten", "image", id)
}

// Last returns the number of reported faults and the latest message.
func (f *FaultLog) Last() (count int, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.last
}
