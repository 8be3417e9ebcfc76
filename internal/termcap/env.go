package termcap

import (
	"os"
	"strings"
)

// StyleEnv is the environment variable that overrides style detection.
const StyleEnv = "TERMIMAGE_STYLE"

// Env is a snapshot of the environment variables used for terminal detection.
type Env map[string]string

// Environ captures the detection variables from the process environment.
func Environ() Env {
	env := Env{}
	for _, k := range []string{
		StyleEnv, "TERM", "TERM_PROGRAM", "TERM_PROGRAM_VERSION",
		"KITTY_WINDOW_ID", "GHOSTTY_RESOURCES_DIR", "KONSOLE_VERSION",
		"CONTOUR_PROFILE", "LC_TERMINAL",
	} {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env
}

// Override returns the forced style name, or "" when detection should run.
func (e Env) Override() string {
	return strings.ToLower(strings.TrimSpace(e[StyleEnv]))
}

// KittyHint reports whether the environment identifies a terminal that is
// known to implement the Kitty graphics protocol.
func (e Env) KittyHint() bool {
	// Contour sets CONTOUR_PROFILE but doesn't support Kitty graphics.
	// Check early because parent terminal variables can leak into it.
	if e["CONTOUR_PROFILE"] != "" {
		return false
	}
	switch {
	case e["KITTY_WINDOW_ID"] != "",
		e["TERM"] == "xterm-kitty",
		e["TERM_PROGRAM"] == "WezTerm",
		e["GHOSTTY_RESOURCES_DIR"] != "":
		return true
	}
	if v := e["KONSOLE_VERSION"]; len(v) >= 4 && v[:4] >= "2204" {
		return true
	}
	return strings.Contains(e["TERM"], "kitty")
}

// ITerm2Hint reports whether the environment identifies an iTerm2-compatible
// terminal.
func (e Env) ITerm2Hint() bool {
	return e["TERM_PROGRAM"] == "iTerm.app" || e["LC_TERMINAL"] == "iTerm2"
}

// SixelHint reports whether the environment identifies a sixel terminal.
func (e Env) SixelHint() bool {
	term := e["TERM"]
	switch {
	case term == "foot" || term == "foot-extra":
		return true
	case e["TERM_PROGRAM"] == "mintty", e["TERM_PROGRAM"] == "contour":
		return true
	case e["CONTOUR_PROFILE"] != "":
		return true
	}
	return false
}
