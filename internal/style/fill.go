package style

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// skip returns the sequence that steps the cursor over cols cells after an
// image, erasing the text beneath unless mix is set.
func skip(cols int, mix bool) string {
	if mix {
		return ansi.CursorForward(cols)
	}
	return ansi.EraseCharacter(cols) + ansi.CursorForward(cols)
}

// writeWholeFill follows a single whole-image transmission: it steps over
// the image on every row but the last, then returns the cursor to the top
// line.
func writeWholeFill(sb *strings.Builder, g Geometry, mix bool) {
	if g.Rows <= 1 {
		return
	}
	step := skip(g.Cols, mix)
	for range g.Rows - 1 {
		sb.WriteString(step)
		sb.WriteByte('\n')
	}
	sb.WriteString(ansi.CursorUp(g.Rows - 1))
}
