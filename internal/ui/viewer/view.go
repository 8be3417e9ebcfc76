package viewer

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/llehouerou/termimage/internal/anim"
	"github.com/llehouerou/termimage/internal/keymap"
	"github.com/llehouerou/termimage/internal/render"
	"github.com/llehouerou/termimage/internal/style"
	"github.com/llehouerou/termimage/internal/ui/styles"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var body []string
	switch {
	case m.help:
		body = m.helpView()
	case len(m.files) == 0:
		body = []string{styles.T().S().Label.Render("No images")}
	case m.mode == modeGrid:
		body = m.gridView()
	default:
		body = m.imageView()
	}

	h := m.contentHeight()
	if len(body) > h {
		body = body[:h]
	}
	for len(body) < h {
		body = append(body, "")
	}

	view := strings.Join(body, "\n") + "\n" + m.statusBar()
	if m.clearGraphics && m.usesKitty() {
		view = style.KittyDeleteAll() + view
	}
	return view
}

func (m Model) usesKitty() bool {
	if m.style.Name() == style.NameKitty {
		return true
	}
	st, _ := m.gridStyle()
	return m.mode == modeGrid && st.Name() == style.NameKitty
}

func (m Model) imageView() []string {
	path := m.current()
	if err := m.failed[path]; err != nil {
		w, h := min(m.width, 40), min(m.contentHeight(), 12)
		return center(resultLines(render.Faulty(w, h, err)), w, m.width)
	}
	img := m.images[path]
	if img == nil {
		return []string{m.pending("Loading")}
	}

	var (
		res render.Result
		ok  bool
	)
	if m.animating == path {
		var f anim.Frame
		f, ok = m.sched.PollFrame()
		res = f.Result
	} else {
		res, ok = m.sched.PollFocus(m.imageRequest(img))
	}
	if !ok {
		return []string{m.pending("Rendering")}
	}
	return center(resultLines(res), res.Cols, m.width)
}

func (m Model) pending(what string) string {
	return m.spinner.View() + " " + styles.T().S().Label.Render(what+" "+filepath.Base(m.current()))
}

func (m Model) gridView() []string {
	s := styles.T().S()
	cell := m.cfg.GridCell
	cols := m.gridColumns()
	gap := strings.Repeat(" ", gridGap)

	var lines []string
	for r := range m.gridRows() {
		first := (m.gridTop + r) * cols
		if first >= len(m.files) {
			break
		}
		row := m.files[first:min(len(m.files), first+cols)]

		cells := make([][]string, len(row))
		widths := make([]int, len(row))
		for i, path := range row {
			cells[i], widths[i] = m.thumbnail(path)
		}
		for y := range cell.Y {
			var sb strings.Builder
			for i := range row {
				if i > 0 {
					sb.WriteString(gap)
				}
				w := 0
				if y < len(cells[i]) {
					sb.WriteString(cells[i][y])
					w = widths[i]
				}
				sb.WriteString(strings.Repeat(" ", max(0, cell.X-w)))
			}
			lines = append(lines, sb.String())
		}

		var sb strings.Builder
		for i, path := range row {
			if i > 0 {
				sb.WriteString(gap)
			}
			label := ansi.Truncate(filepath.Base(path), cell.X, "…")
			label += strings.Repeat(" ", cell.X-ansi.StringWidth(label))
			if first+i == m.index {
				sb.WriteString(s.Cursor.Render(label))
			} else {
				sb.WriteString(s.Label.Render(label))
			}
		}
		lines = append(lines, sb.String())
	}
	return lines
}

// thumbnail returns the lines of a grid cell and their width in cells.
func (m Model) thumbnail(path string) ([]string, int) {
	cell := m.cfg.GridCell
	if err := m.failed[path]; err != nil {
		return resultLines(render.Faulty(cell.X, cell.Y, err)), cell.X
	}
	img := m.images[path]
	if img == nil {
		return nil, 0
	}
	res, ok := m.sched.PollGrid(path, m.gridRequest(img))
	if !ok {
		return []string{m.spinner.View()}, ansi.StringWidth(m.spinner.View())
	}
	pad := (cell.X - res.Cols) / 2
	lines := resultLines(res)
	if st, _ := m.gridStyle(); !res.Faulty && st.Name() != style.NameBlock {
		// Graphics leave the cursor at the start of their last row.
		lines[len(lines)-1] += ansi.CursorForward(res.Cols)
	}
	for i := range lines {
		lines[i] = strings.Repeat(" ", pad) + lines[i]
	}
	return lines, res.Cols + pad
}

// resultLines splits an encoded result into screen lines. Whole-image
// encodings end by moving the cursor back up, which the line-based
// layout does itself.
func resultLines(res render.Result) []string {
	out := res.Output
	if res.Rows > 1 {
		out = strings.TrimSuffix(out, ansi.CursorUp(res.Rows-1))
	}
	return strings.Split(out, "\n")
}

func center(lines []string, w, width int) []string {
	pad := strings.Repeat(" ", max(0, (width-w)/2))
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return lines
}

func (m Model) statusBar() string {
	s := styles.T().S()

	var parts []string
	if n := len(m.files); n > 0 {
		parts = append(parts,
			s.Muted.Render(fmt.Sprintf("[%d/%d]", m.index+1, n)),
			s.Title.Render(filepath.Base(m.current())),
		)
	}
	parts = append(parts, s.Accent.Render(m.style.Name()))
	if m.animating != "" {
		if m.sched.AnimationDone() {
			parts = append(parts, s.Muted.Render("done"))
		} else {
			parts = append(parts, s.Muted.Render("playing"))
		}
	}
	if m.cfg.Faults != nil {
		if n, _ := m.cfg.Faults.Last(); n > 0 {
			parts = append(parts, s.Warning.Render(fmt.Sprintf("%d faulty", n)))
		}
	}
	if m.status != "" {
		parts = append(parts, s.Error.Render(m.status))
	}

	left := strings.Join(parts, s.Bar.Render("  "))
	right := s.Muted.Render("? help")
	space := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if space < 1 {
		return ansi.Truncate(left, m.width, "…")
	}
	return left + s.Bar.Render(strings.Repeat(" ", space)) + right
}

func (m Model) helpView() []string {
	s := styles.T().S()
	contexts := []string{"global", "image"}
	if m.mode == modeGrid {
		contexts[1] = "grid"
	}
	lines := []string{s.Title.Render("Keys"), ""}
	for _, ctx := range contexts {
		for _, b := range keymap.ByContext(ctx) {
			keys := slices.Clone(m.resolver.KeysFor(b.Action))
			if i := slices.Index(keys, " "); i >= 0 {
				keys[i] = "space"
			}
			lines = append(lines, fmt.Sprintf("  %-22s %s", strings.Join(keys, ", "), s.Label.Render(b.Description)))
		}
	}
	return lines
}
