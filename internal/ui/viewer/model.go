// Package viewer is the interactive image browser. It never encodes
// images itself: renders go through the scheduler and the view polls its
// caches when notified.
package viewer

import (
	"image"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/termimage/internal/imagesrc"
	"github.com/llehouerou/termimage/internal/keymap"
	"github.com/llehouerou/termimage/internal/logging"
	"github.com/llehouerou/termimage/internal/pixels"
	"github.com/llehouerou/termimage/internal/render"
	"github.com/llehouerou/termimage/internal/scheduler"
	"github.com/llehouerou/termimage/internal/style"
)

// DefaultGridCell is the size of a grid thumbnail in cells.
var DefaultGridCell = image.Pt(24, 12)

const gridGap = 2

// Config wires the viewer to its collaborators.
type Config struct {
	Scheduler *scheduler.Scheduler
	Caps      *style.Capabilities
	Style     style.Style
	Alpha     pixels.AlphaPolicy
	SizeMode  imagesrc.Mode
	// Repeat is the animation loop count, or anim.Infinite.
	Repeat int
	Faults *logging.FaultLog
	Log    *slog.Logger
	Stderr <-chan string
	// GridCell is the thumbnail size; zero uses DefaultGridCell.
	GridCell image.Point
}

type viewMode int

const (
	modeImage viewMode = iota
	modeGrid
)

// Model is the bubbletea model of the viewer.
type Model struct {
	cfg      Config
	sched    *scheduler.Scheduler
	resolver *keymap.Resolver
	spinner  spinner.Model

	dir   string
	files []string
	index int
	mode  viewMode
	style style.Style

	width  int
	height int

	images  map[string]*imagesrc.Image
	opening map[string]bool
	failed  map[string]error

	// animating is the path of the animation being played.
	animating string
	gridTop   int

	help          bool
	status        string
	clearGraphics bool
}

// New creates a viewer over files, which belong to dir.
func New(dir string, files []string, cfg Config) Model {
	if cfg.GridCell.X <= 0 || cfg.GridCell.Y <= 0 {
		cfg.GridCell = DefaultGridCell
	}
	if cfg.Log == nil {
		cfg.Log = slog.New(slog.DiscardHandler)
	}
	if cfg.Style == nil {
		cfg.Style = style.Block{}
	}
	return Model{
		cfg:      cfg,
		sched:    cfg.Scheduler,
		resolver: keymap.NewResolver(keymap.All),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		dir:      dir,
		files:    files,
		style:    cfg.Style,
		images:   map[string]*imagesrc.Image{},
		opening:  map[string]bool{},
		failed:   map[string]error{},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitRendered(),
		m.watchStderr(),
		m.ensureOpen(m.current()),
	)
}

// Close releases every decoded image.
func (m Model) Close() {
	for _, img := range m.images {
		_ = img.Close() //nolint:errcheck // in-memory release
	}
}

// Style returns the active style.
func (m Model) Style() style.Style { return m.style }

func (m Model) current() string {
	if m.index < 0 || m.index >= len(m.files) {
		return ""
	}
	return m.files[m.index]
}

func (m Model) contentHeight() int {
	return max(0, m.height-1)
}

// ensureOpen starts decoding path unless it is known or in progress.
func (m Model) ensureOpen(path string) tea.Cmd {
	if path == "" || m.images[path] != nil || m.failed[path] != nil || m.opening[path] {
		return nil
	}
	m.opening[path] = true
	return openCmd(path)
}

func (m Model) imageRequest(img *imagesrc.Image) render.Request {
	return render.Request{
		Image: img,
		Size:  imagesrc.Size{Mode: m.cfg.SizeMode},
		Frame: image.Pt(m.width, m.contentHeight()),
		Alpha: m.cfg.Alpha,
		Style: m.style,
	}
}

// gridStyle returns the style thumbnails are drawn with. Grid cells are
// laid out line by line, so styles that only send whole images fall back
// to blocks.
func (m Model) gridStyle() (style.Style, style.Args) {
	switch m.style.Name() {
	case style.NameKitty, style.NameITerm2:
		args, err := m.style.ParseArgs(map[string]string{"method": "lines"})
		if err == nil {
			return m.style, args
		}
	case style.NameBlock:
		return m.style, nil
	}
	if m.cfg.Caps != nil {
		if block, err := m.cfg.Caps.Lookup(style.NameBlock); err == nil {
			return block, nil
		}
	}
	return style.Block{}, nil
}

func (m Model) gridRequest(img *imagesrc.Image) render.Request {
	st, args := m.gridStyle()
	return render.Request{
		Image: img,
		Frame: m.cfg.GridCell,
		Alpha: m.cfg.Alpha,
		Style: st,
		Args:  args,
	}
}

// gridColumns returns the number of thumbnails per grid row.
func (m Model) gridColumns() int {
	return max(1, (m.width+gridGap)/(m.cfg.GridCell.X+gridGap))
}

// gridRows returns the number of visible grid rows.
func (m Model) gridRows() int {
	return max(1, m.contentHeight()/(m.cfg.GridCell.Y+1))
}
