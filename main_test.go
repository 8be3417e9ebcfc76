package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/llehouerou/termimage/internal/anim"
	"github.com/llehouerou/termimage/internal/config"
	"github.com/llehouerou/termimage/internal/errmsg"
	"github.com/llehouerou/termimage/internal/imagesrc"
	"github.com/llehouerou/termimage/internal/pixels"
	"github.com/llehouerou/termimage/internal/render"
	"github.com/llehouerou/termimage/internal/style"
)

func solid(c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func newPrinter(out *bytes.Buffer, repeat int) *printer {
	return &printer{
		out:   out,
		log:   slog.New(slog.DiscardHandler),
		style: style.Block{},
		alpha: pixels.Disabled{},
		size:  imagesrc.Cells(4, 2),
		frame: image.Pt(80, 24),
		anim:  config.AnimConfig{Repeat: repeat},
		cache: anim.CachePolicy{Mode: anim.CacheOff},
	}
}

func twoFrames(t *testing.T, delay time.Duration) *imagesrc.Image {
	t.Helper()
	img, err := imagesrc.NewAnimated(
		[]image.Image{solid(color.NRGBA{R: 255, A: 255}), solid(color.NRGBA{G: 255, A: 255})},
		[]time.Duration{delay, delay},
	)
	if err != nil {
		t.Fatalf("NewAnimated() error: %v", err)
	}
	return img
}

func TestPrintStillImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(color.NRGBA{R: 255, A: 255})); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := newPrinter(&out, 0).print(context.Background(), path); err != nil {
		t.Fatalf("print() error: %v", err)
	}

	s := out.String()
	if !strings.Contains(s, "48;2;255;0;0") {
		t.Errorf("output %q has no red cell", s)
	}
	if !strings.HasSuffix(s, "\r\n") {
		t.Error("output should end below the image")
	}
	if rows := strings.Split(strings.TrimSuffix(s, "\r\n"), "\n"); len(rows) != 2 {
		t.Errorf("got %d rows, want 2", len(rows))
	}
}

func TestPrintFailuresNameTheirStep(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(corrupt, []byte("not a png"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want errmsg.Op
	}{
		{"missing file", filepath.Join(dir, "none.png"), errmsg.OpImageOpen},
		{"corrupt file", corrupt, errmsg.OpImageDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := newPrinter(&out, 0).print(context.Background(), tt.path)
			if err == nil {
				t.Fatal("print() should fail")
			}
			if op := failedOp(err); op != tt.want {
				t.Errorf("failedOp() = %q, want %q", op, tt.want)
			}
			if out.Len() != 0 {
				t.Errorf("nothing should be written, got %q", out.String())
			}
		})
	}
}

func TestPlayRewindsBetweenFrames(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, 2)
	req := render.Request{Image: twoFrames(t, time.Millisecond), Size: p.size, Frame: p.frame, Alpha: p.alpha, Style: p.style}
	if err := p.play(context.Background(), req); err != nil {
		t.Fatalf("play() error: %v", err)
	}

	s := out.String()
	if n := strings.Count(s, ansi.CursorUp(1)+"\r"); n != 3 {
		t.Errorf("%d rewinds, want 3 between four frames", n)
	}
	if n := strings.Count(s, "48;2;255;0;0"); n != 4 {
		t.Errorf("%d red runs, want 4 for two red frames of two rows", n)
	}
	if !strings.HasSuffix(s, "\r\n") {
		t.Error("output should end below the animation")
	}
}

func TestPlayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	p := newPrinter(&out, anim.Infinite)
	req := render.Request{Image: twoFrames(t, time.Hour), Size: p.size, Frame: p.frame, Alpha: p.alpha, Style: p.style}
	if err := p.play(ctx, req); err != nil {
		t.Fatalf("play() error: %v", err)
	}

	s := out.String()
	if !strings.Contains(s, "48;2;255;0;0") {
		t.Error("first frame should be drawn")
	}
	if strings.Contains(s, "48;2;0;255;0") {
		t.Error("second frame drawn after cancel")
	}
}

func TestCursorMovesAroundResults(t *testing.T) {
	tests := []struct {
		name          string
		res           render.Result
		rewind, below string
	}{
		{"lines", render.Result{Output: "a\nb", Rows: 2}, ansi.CursorUp(1) + "\r", "\r\n"},
		{"whole", render.Result{Output: "ab" + ansi.CursorUp(2), Rows: 3}, "\r", ansi.CursorDown(2) + "\r\n"},
		{"single row", render.Result{Output: "a", Rows: 1}, "\r", "\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rewind(tt.res); got != tt.rewind {
				t.Errorf("rewind() = %q, want %q", got, tt.rewind)
			}
			if got := below(tt.res); got != tt.below {
				t.Errorf("below() = %q, want %q", got, tt.below)
			}
		})
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := &config.Config{Style: "auto", Size: "fit"}
	applyFlags(cfg, options{style: "kitty", repeat: 3, noProbe: true, logLevel: "debug"})

	if cfg.Style != "kitty" {
		t.Errorf("Style = %q, want kitty", cfg.Style)
	}
	if cfg.Size != "fit" {
		t.Errorf("Size = %q, want it untouched", cfg.Size)
	}
	if cfg.Anim.Repeat != 3 {
		t.Errorf("Anim.Repeat = %d, want 3", cfg.Anim.Repeat)
	}
	if !cfg.Probe.Disabled {
		t.Error("Probe.Disabled should be set")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}
