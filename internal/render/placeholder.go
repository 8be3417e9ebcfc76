package render

import "strings"

const faultMark = "✗"

// Faulty returns the placeholder result for an image that failed to render.
func Faulty(cols, rows int, err error) Result {
	return Result{
		Output: Placeholder(cols, rows),
		Cols:   cols,
		Rows:   rows,
		Faulty: true,
		Err:    err,
	}
}

// Placeholder draws a box with a centred cross over cols x rows cells.
// Areas too small for a box are filled with crosses.
func Placeholder(cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	if cols < 3 || rows < 3 {
		line := strings.Repeat(faultMark, cols)
		lines := make([]string, rows)
		for i := range lines {
			lines[i] = line
		}
		return strings.Join(lines, "\n")
	}

	inner := cols - 2
	lines := make([]string, 0, rows)

	// Top border
	lines = append(lines, "┌"+strings.Repeat("─", inner)+"┐")

	// Middle rows with the mark on the centre one
	mid := (rows - 2) / 2
	for i := range rows - 2 {
		if i == mid {
			left := (inner - 1) / 2
			right := inner - 1 - left
			lines = append(lines, "│"+strings.Repeat(" ", left)+faultMark+strings.Repeat(" ", right)+"│")
		} else {
			lines = append(lines, "│"+strings.Repeat(" ", inner)+"│")
		}
	}

	// Bottom border
	lines = append(lines, "└"+strings.Repeat("─", inner)+"┘")

	return strings.Join(lines, "\n")
}
