// Package testutil provides common testing utilities for UI components.
package testutil

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// StripANSI removes escape sequences, including graphics transmissions,
// so rendered views can be compared as plain text.
func StripANSI(s string) string {
	return ansi.Strip(s)
}

// Lines splits a view into lines with escapes removed and trailing spaces
// trimmed.
func Lines(view string) []string {
	lines := strings.Split(StripANSI(view), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return lines
}

// MeasureWidth returns the visual width of a string.
func MeasureWidth(s string) int {
	return ansi.StringWidth(s)
}
