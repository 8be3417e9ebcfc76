package viewer

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/termimage/internal/imagesrc"
)

// renderedMsg is sent when the scheduler published new results.
type renderedMsg struct{}

// openedMsg carries a decoded image.
type openedMsg struct {
	path string
	img  *imagesrc.Image
	err  error
}

// stderrMsg carries a line written to stderr while the viewer runs.
type stderrMsg struct {
	line string
}

// waitForChannel creates a command that waits for a value from a channel and converts it to a message.
// onResult receives the value and a boolean indicating if the channel is still open (false means channel closed).
func waitForChannel[T any](ch <-chan T, onResult func(T, bool) tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		result, ok := <-ch
		return onResult(result, ok)
	}
}

func (m Model) waitRendered() tea.Cmd {
	return waitForChannel(m.sched.Notify(), func(struct{}, bool) tea.Msg {
		return renderedMsg{}
	})
}

func (m Model) watchStderr() tea.Cmd {
	return waitForChannel(m.cfg.Stderr, func(line string, ok bool) tea.Msg {
		if !ok {
			return nil
		}
		return stderrMsg{line: line}
	})
}

func openCmd(path string) tea.Cmd {
	return func() tea.Msg {
		img, err := imagesrc.Open(path)
		return openedMsg{path: path, img: img, err: err}
	}
}
