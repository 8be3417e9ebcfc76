package imagesrc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/llehouerou/termimage/internal/imgerr"
)

func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func createTestGIF(t *testing.T) []byte {
	t.Helper()
	pal := color.Palette{color.Transparent, color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255}}
	g := &gif.GIF{Config: image.Config{Width: 4, Height: 2, ColorModel: pal}}
	for n := range 3 {
		frame := image.NewPaletted(image.Rect(0, 0, 4, 2), pal)
		frame.SetColorIndex(n, 0, uint8(1+n%2))
		g.Image = append(g.Image, frame)
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}
	g.Delay = []int{1, 5, 0}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func mustOpen(t *testing.T, path string) *Image {
	t.Helper()
	img, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%s) error: %v", path, err)
	}
	t.Cleanup(func() { _ = img.Close() })
	return img
}

func TestOpenPNG(t *testing.T) {
	path := writeFile(t, "a.png", createTestPNG(t, 6, 4))
	img := mustOpen(t, path)

	if img.ID() != path {
		t.Errorf("ID() = %q, want %q", img.ID(), path)
	}
	if img.Format() != "png" {
		t.Errorf("Format() = %q, want png", img.Format())
	}
	if got := img.OriginalSize(); got != image.Pt(6, 4) {
		t.Errorf("OriginalSize() = %v, want (6,4)", got)
	}
	if img.Animated() {
		t.Error("still image reported as animated")
	}

	again := mustOpen(t, filepath.Join(filepath.Dir(path), ".", "a.png"))
	if again.ID() != img.ID() {
		t.Errorf("identity changed across opens: %q != %q", again.ID(), img.ID())
	}
}

func TestOpenErrors(t *testing.T) {
	var de *imgerr.DecodeError
	if _, err := Open(filepath.Join(t.TempDir(), "missing.png")); !errors.As(err, &de) {
		t.Errorf("Open(missing) error = %v, want *DecodeError", err)
	}

	path := writeFile(t, "bad.png", []byte("not an image"))
	_, err := Open(path)
	if !errors.As(err, &de) {
		t.Fatalf("Open(bad) error = %v, want *DecodeError", err)
	}
	if de.Path != path {
		t.Errorf("Path = %q, want %q", de.Path, path)
	}
}

func TestOpenGIFComposites(t *testing.T) {
	img := mustOpen(t, writeFile(t, "anim.gif", createTestGIF(t)))

	if n := img.FrameCount(); n != 3 {
		t.Fatalf("FrameCount() = %d, want 3", n)
	}
	if !img.Animated() {
		t.Error("three frames should be animated")
	}
	// Delays under 20ms fall back to 100ms.
	for n, want := range []time.Duration{100 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond} {
		if got := img.Delay(n); got != want {
			t.Errorf("Delay(%d) = %v, want %v", n, got, want)
		}
	}

	// With no disposal, earlier pixels persist in later frames.
	if err := img.Seek(2); err != nil {
		t.Fatalf("Seek(2) error: %v", err)
	}
	frame, err := img.Frame()
	if err != nil {
		t.Fatalf("Frame() error: %v", err)
	}
	if _, _, _, a := frame.At(0, 0).RGBA(); a == 0 {
		t.Error("pixel drawn by frame 0 should persist")
	}
	if r, _, _, _ := frame.At(2, 0).RGBA(); r != 0xffff {
		t.Errorf("frame 2 red = %#x, want 0xffff", r)
	}

	data, err := img.Data()
	if err != nil {
		t.Fatalf("Data() error: %v", err)
	}
	if img.DataSize() != int64(len(data)) {
		t.Errorf("DataSize() = %d, want %d", img.DataSize(), len(data))
	}
}

func TestSeekAndClose(t *testing.T) {
	frames := []image.Image{
		image.NewNRGBA(image.Rect(0, 0, 2, 2)),
		image.NewNRGBA(image.Rect(0, 0, 2, 2)),
	}
	img, err := NewAnimated(frames, []time.Duration{time.Millisecond, time.Millisecond})
	if err != nil {
		t.Fatalf("NewAnimated() error: %v", err)
	}

	var re *imgerr.RangeError
	if err := img.Seek(2); !errors.As(err, &re) || re.Len != 2 {
		t.Errorf("Seek(2) error = %v, want RangeError over 2 frames", err)
	}
	if err := img.Seek(1); err != nil {
		t.Fatalf("Seek(1) error: %v", err)
	}
	if img.Tell() != 1 {
		t.Errorf("Tell() = %d, want 1", img.Tell())
	}

	if err := img.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := img.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if img.Tell() != 0 {
		t.Errorf("Tell() after close = %d, want 0", img.Tell())
	}
	if err := img.Seek(0); !errors.Is(err, imgerr.ErrClosed) {
		t.Errorf("Seek() after close error = %v, want ErrClosed", err)
	}
	if _, err := img.Frame(); !errors.Is(err, imgerr.ErrClosed) {
		t.Errorf("Frame() after close error = %v, want ErrClosed", err)
	}
}

func TestRenderSize(t *testing.T) {
	img := New(image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	if _, ok := img.Size(); ok {
		t.Error("new image should have no render size")
	}

	img.SetSize(Cells(3, 2))
	if s, ok := img.Size(); !ok || s != Cells(3, 2) {
		t.Errorf("Size() = %v, %v; want 3x2, true", s, ok)
	}

	// The zero size is a valid choice: fit the frame.
	img.SetSize(Size{})
	if s, ok := img.Size(); !ok || s != (Size{}) {
		t.Errorf("Size() = %v, %v; want fit, true", s, ok)
	}
}

func TestMemoryIdentity(t *testing.T) {
	a := New(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	b := New(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	if a.ID() == b.ID() {
		t.Errorf("in-memory images share identity %q", a.ID())
	}
	if !strings.HasPrefix(a.ID(), "mem:") {
		t.Errorf("ID() = %q, want a mem: prefix", a.ID())
	}
	if a.DataSize() != -1 {
		t.Errorf("DataSize() = %d, want -1", a.DataSize())
	}
	if _, err := a.Data(); err == nil {
		t.Error("Data() without a file should fail")
	}
}

func TestNewAnimatedValidation(t *testing.T) {
	if _, err := NewAnimated(nil, nil); err == nil {
		t.Error("NewAnimated() without frames should fail")
	}
	if _, err := NewAnimated([]image.Image{image.NewNRGBA(image.Rect(0, 0, 1, 1))}, nil); err == nil {
		t.Error("NewAnimated() with one frame should fail")
	}
}
