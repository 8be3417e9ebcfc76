package termcap

import (
	"bytes"
	"errors"
	"image/color"
	"testing"
)

func TestParseColorReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  color.RGBA
		ok    bool
	}{
		{"16-bit BEL", "\x1b]11;rgb:1e1e/1e1e/2e2e\a", color.RGBA{0x1e, 0x1e, 0x2e, 255}, true},
		{"16-bit ST", "\x1b]10;rgb:ffff/0000/8080\x1b\\", color.RGBA{255, 0, 0x80, 255}, true},
		{"8-bit", "\x1b]11;rgb:ff/80/00\a", color.RGBA{255, 0x80, 0, 255}, true},
		{"4-bit", "\x1b]11;rgb:f/0/8\a", color.RGBA{255, 0, 0x88, 255}, true},
		{"garbage", "\x1b[?62;4c", color.RGBA{}, false},
		{"empty", "", color.RGBA{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseColorReply([]byte(tt.reply))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && *got != tt.want {
				t.Errorf("color = %v, want %v", *got, tt.want)
			}
		})
	}
}

func TestStaticQuery(t *testing.T) {
	term := &Static{Replies: map[string]string{
		"\x1b[c": "\x1b[?62;4c",
	}}
	untilC := func(b []byte) bool { return bytes.HasSuffix(b, []byte("c")) }

	got, err := term.Query("\x1b[c", untilC, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if string(got) != "\x1b[?62;4c" {
		t.Errorf("Query() = %q", got)
	}

	if _, err := term.Query("\x1b[>q", untilC, 0); !errors.Is(err, ErrTimeout) {
		t.Errorf("unanswered Query() error = %v, want ErrTimeout", err)
	}

	never := func([]byte) bool { return false }
	if _, err := term.Query("\x1b[c", never, 0); !errors.Is(err, ErrTimeout) {
		t.Errorf("partial reply error = %v, want ErrTimeout", err)
	}
}

func TestStaticNil(t *testing.T) {
	var term *Static
	if _, err := term.Query("x", func([]byte) bool { return true }, 0); !errors.Is(err, ErrTimeout) {
		t.Errorf("nil Query() error = %v, want ErrTimeout", err)
	}
	fg, bg := term.Colors()
	if fg != nil || bg != nil {
		t.Error("nil Colors() should be unknown")
	}
	if term.CellSize().Known() {
		t.Error("nil CellSize() should be unknown")
	}
}

func TestCellSizeRatio(t *testing.T) {
	if r := (CellSize{}).Ratio(); r != 2 {
		t.Errorf("unknown Ratio() = %v, want 2", r)
	}
	if r := (CellSize{Width: 10, Height: 25}).Ratio(); r != 2.5 {
		t.Errorf("Ratio() = %v, want 2.5", r)
	}
}

func TestTerminated(t *testing.T) {
	if !terminated([]byte("abc\a")) || !terminated([]byte("abc\x1b\\")) {
		t.Error("BEL and ST should terminate")
	}
	if terminated([]byte("abc")) || terminated(nil) {
		t.Error("unterminated reply reported as terminated")
	}
}

func TestEnvHints(t *testing.T) {
	tests := []struct {
		name   string
		env    Env
		kitty  bool
		iterm2 bool
		sixel  bool
	}{
		{"kitty window", Env{"KITTY_WINDOW_ID": "1"}, true, false, false},
		{"xterm-kitty", Env{"TERM": "xterm-kitty"}, true, false, false},
		{"wezterm", Env{"TERM_PROGRAM": "WezTerm"}, true, false, false},
		{"ghostty", Env{"GHOSTTY_RESOURCES_DIR": "/x"}, true, false, false},
		{"konsole new", Env{"KONSOLE_VERSION": "230401"}, true, false, false},
		{"konsole old", Env{"KONSOLE_VERSION": "210801"}, false, false, false},
		{"contour masks kitty", Env{"CONTOUR_PROFILE": "x", "KITTY_WINDOW_ID": "1"}, false, false, true},
		{"iterm", Env{"TERM_PROGRAM": "iTerm.app"}, false, true, false},
		{"foot", Env{"TERM": "foot"}, false, false, true},
		{"plain xterm", Env{"TERM": "xterm-256color"}, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.env.KittyHint(); got != tt.kitty {
				t.Errorf("KittyHint() = %v, want %v", got, tt.kitty)
			}
			if got := tt.env.ITerm2Hint(); got != tt.iterm2 {
				t.Errorf("ITerm2Hint() = %v, want %v", got, tt.iterm2)
			}
			if got := tt.env.SixelHint(); got != tt.sixel {
				t.Errorf("SixelHint() = %v, want %v", got, tt.sixel)
			}
		})
	}
}

func TestEnvOverride(t *testing.T) {
	if got := (Env{StyleEnv: " Kitty "}).Override(); got != "kitty" {
		t.Errorf("Override() = %q, want kitty", got)
	}
	if got := (Env{}).Override(); got != "" {
		t.Errorf("Override() = %q, want empty", got)
	}
}
