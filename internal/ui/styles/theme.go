package styles

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette and pre-built styles for the viewer.
type Theme struct {
	Primary lipgloss.Color // Accent - selection, active style

	// Text hierarchy (most to least prominent)
	FgBase  lipgloss.Color
	FgMuted lipgloss.Color

	// Backgrounds
	BgBar    lipgloss.Color // Status bar
	BgCursor lipgloss.Color // Selected grid cell label

	// Status colors
	Error   lipgloss.Color
	Warning lipgloss.Color

	styles *Styles
}

// Styles contains pre-built lipgloss styles.
type Styles struct {
	Bar     lipgloss.Style // Status bar background
	Title   lipgloss.Style // File name
	Muted   lipgloss.Style // Secondary status fields
	Accent  lipgloss.Style // Active style name
	Cursor  lipgloss.Style // Selected grid label
	Label   lipgloss.Style // Unselected grid label
	Error   lipgloss.Style
	Warning lipgloss.Style
}

var defaultTheme = Theme{
	Primary: lipgloss.Color("#a78bfa"),

	FgBase:  lipgloss.Color("#c0c0c0"),
	FgMuted: lipgloss.Color("#808080"),

	BgBar:    lipgloss.Color("#1a1a1a"),
	BgCursor: lipgloss.Color("#303030"),

	Error:   lipgloss.Color("#ff5555"),
	Warning: lipgloss.Color("#f1a208"),
}

// T returns the default theme.
func T() *Theme {
	return &defaultTheme
}

// S returns the pre-built styles for this theme.
func (t *Theme) S() *Styles {
	if t.styles == nil {
		t.styles = t.buildStyles()
	}
	return t.styles
}

func (t *Theme) buildStyles() *Styles {
	bar := lipgloss.NewStyle().Background(t.BgBar)

	return &Styles{
		Bar:     bar.Foreground(t.FgBase),
		Title:   bar.Foreground(t.FgBase).Bold(true),
		Muted:   bar.Foreground(t.FgMuted),
		Accent:  bar.Foreground(t.Primary).Bold(true),
		Cursor:  lipgloss.NewStyle().Background(t.BgCursor).Foreground(t.Primary).Bold(true),
		Label:   lipgloss.NewStyle().Foreground(t.FgMuted),
		Error:   bar.Foreground(t.Error),
		Warning: bar.Foreground(t.Warning),
	}
}
