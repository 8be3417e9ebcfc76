package viewer

import (
	"slices"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/termimage/internal/errmsg"
	"github.com/llehouerou/termimage/internal/imgerr"
	"github.com/llehouerou/termimage/internal/keymap"
	"github.com/llehouerou/termimage/internal/style"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.clearGraphics = true
		if m.mode == modeGrid {
			cmd := m.resetGrid()
			return m, cmd
		}
		if m.animating != "" {
			if img := m.images[m.animating]; img != nil {
				req := m.imageRequest(img)
				m.setError(errmsg.OpAnimate, m.sched.ResizeAnimation(req.Size, req.Frame))
			}
			return m, nil
		}
		cmd := m.show()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case renderedMsg:
		m.clearGraphics = false
		var cmd tea.Cmd
		if m.mode == modeGrid {
			// Cells refused while the grid was changing are queued again.
			cmd = m.fillGrid()
		}
		return m, tea.Batch(cmd, m.waitRendered())

	case openedMsg:
		delete(m.opening, msg.path)
		if msg.err != nil {
			m.failed[msg.path] = msg.err
			m.cfg.Log.Debug(errmsg.FormatWith(errmsg.OpenOp(msg.err), msg.path, msg.err))
			if m.cfg.Faults != nil {
				m.cfg.Faults.ReportFault(msg.path, msg.err)
			}
			return m, nil
		}
		m.images[msg.path] = msg.img
		if m.mode == modeGrid {
			cmd := m.fillGrid()
			return m, cmd
		}
		if msg.path == m.current() {
			cmd := m.show()
			return m, cmd
		}
		return m, nil

	case stderrMsg:
		m.cfg.Log.Warn("stderr", "line", msg.line)
		m.status = msg.line
		return m, m.watchStderr()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := "image"
	if m.mode == modeGrid {
		ctx = "grid"
	}
	action := m.resolver.Resolve(msg.String(), "global", ctx)

	switch action {
	case keymap.ActionQuit:
		return m, tea.Quit
	case keymap.ActionHelp:
		m.help = !m.help
		return m, nil
	case keymap.ActionToggleGrid:
		m.clearGraphics = true
		if m.mode == modeGrid {
			m.mode = modeImage
			cmd := m.show()
			return m, cmd
		}
		m.mode = modeGrid
		m.stopAnimation()
		cmd := m.resetGrid()
		return m, cmd
	case keymap.ActionCycleStyle:
		m.cycleStyle()
		m.clearGraphics = true
		if m.mode == modeGrid {
			cmd := m.resetGrid()
			return m, cmd
		}
		m.stopAnimation()
		cmd := m.show()
		return m, cmd
	case keymap.ActionRestart:
		m.stopAnimation()
		cmd := m.show()
		return m, cmd
	case keymap.ActionNext:
		return m.moveTo(m.index + 1)
	case keymap.ActionPrev:
		return m.moveTo(m.index - 1)
	case keymap.ActionFirst:
		return m.moveTo(0)
	case keymap.ActionLast:
		return m.moveTo(len(m.files) - 1)
	case keymap.ActionMoveLeft:
		return m.moveTo(m.index - 1)
	case keymap.ActionMoveRight:
		return m.moveTo(m.index + 1)
	case keymap.ActionMoveUp:
		return m.moveTo(m.index - m.gridColumns())
	case keymap.ActionMoveDown:
		return m.moveTo(m.index + m.gridColumns())
	case keymap.ActionOpen:
		m.mode = modeImage
		m.clearGraphics = true
		cmd := m.show()
		return m, cmd
	}
	return m, nil
}

func (m Model) moveTo(i int) (tea.Model, tea.Cmd) {
	i = max(0, min(len(m.files)-1, i))
	if i == m.index {
		return m, nil
	}
	m.index = i
	m.status = ""
	if m.mode == modeGrid {
		m.scrollGrid()
		cmd := m.fillGrid()
		return m, cmd
	}
	m.clearGraphics = true
	cmd := m.show()
	return m, cmd
}

// show requests the render of the current image.
func (m *Model) show() tea.Cmd {
	path := m.current()
	if path == "" || m.width == 0 {
		return nil
	}
	if m.animating != "" && m.animating != path {
		m.stopAnimation()
	}
	img := m.images[path]
	if img == nil {
		return m.ensureOpen(path)
	}
	req := m.imageRequest(img)
	if img.Animated() {
		if m.animating == path {
			return nil
		}
		if err := m.sched.StartAnimation(req, m.cfg.Repeat); err != nil {
			m.setError(errmsg.OpAnimate, err)
			return nil
		}
		m.animating = path
		return nil
	}
	m.setError(errmsg.OpRender, m.sched.SubmitFocus(req))
	return nil
}

func (m *Model) stopAnimation() {
	if m.animating == "" {
		return
	}
	m.animating = ""
	m.setError(errmsg.OpAnimate, m.sched.StopAnimation())
}

// resetGrid switches the scheduler to the current grid geometry and
// queues the visible thumbnails.
func (m *Model) resetGrid() tea.Cmd {
	if m.width == 0 {
		return nil
	}
	if err := m.sched.NewGrid(m.dir, m.cfg.GridCell.X, m.cfg.GridCell.Y); err != nil {
		m.setError(errmsg.OpGridLoad, err)
		return nil
	}
	m.scrollGrid()
	return m.fillGrid()
}

// fillGrid queues the visible thumbnails, opening images as needed.
func (m *Model) fillGrid() tea.Cmd {
	var cmds []tea.Cmd
	first := m.gridTop * m.gridColumns()
	last := min(len(m.files), first+m.gridRows()*m.gridColumns())
	for _, path := range m.files[first:last] {
		img := m.images[path]
		if img == nil {
			cmds = append(cmds, m.ensureOpen(path))
			continue
		}
		if _, err := m.sched.SubmitGrid(path, m.gridRequest(img)); err != nil {
			m.setError(errmsg.OpRender, err)
		}
	}
	return tea.Batch(cmds...)
}

// scrollGrid keeps the selected thumbnail visible.
func (m *Model) scrollGrid() {
	row := m.index / m.gridColumns()
	rows := m.gridRows()
	if row < m.gridTop {
		m.gridTop = row
	}
	if row >= m.gridTop+rows {
		m.gridTop = row - rows + 1
	}
}

// cycleStyle switches to the next style the terminal supports.
func (m *Model) cycleStyle() {
	if m.cfg.Caps == nil {
		return
	}
	var names []string
	for _, name := range style.Names {
		if m.cfg.Caps.Supported(name) {
			names = append(names, name)
		}
	}
	i := slices.Index(names, m.style.Name())
	for range names {
		i = (i + 1) % len(names)
		st, err := m.cfg.Caps.Lookup(names[i])
		if err == nil {
			m.style = st
			return
		}
	}
}

func (m *Model) setError(op errmsg.Op, err error) {
	if err == nil {
		return
	}
	if !imgerr.IsValidation(err) {
		m.cfg.Log.Error(errmsg.Format(op, err))
	}
	m.status = errmsg.Format(op, err)
}
