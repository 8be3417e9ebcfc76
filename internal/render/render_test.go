package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/llehouerou/termimage/internal/imagesrc"
	"github.com/llehouerou/termimage/internal/imgerr"
	"github.com/llehouerou/termimage/internal/pixels"
	"github.com/llehouerou/termimage/internal/style"
	"github.com/llehouerou/termimage/internal/thumbcache"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRenderRedPixel(t *testing.T) {
	img := imagesrc.New(solid(1, 1, color.NRGBA{R: 255, A: 255}))
	res, err := Render(Request{
		Image: img,
		Size:  imagesrc.Cells(1, 1),
		Alpha: pixels.Disabled{},
		Style: style.Block{},
	}, Options{})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if want := "\x1b[48;2;255;0;0m \x1b[0m"; res.Output != want {
		t.Errorf("Output = %q, want %q", res.Output, want)
	}
	if res.Cols != 1 || res.Rows != 1 {
		t.Errorf("size = %dx%d, want 1x1", res.Cols, res.Rows)
	}
	if res.PixelWidth != 1 || res.PixelHeight != 2 {
		t.Errorf("pixels = %dx%d, want 1x2", res.PixelWidth, res.PixelHeight)
	}
	if res.Faulty {
		t.Error("result should not be faulty")
	}
}

func TestRenderIdempotent(t *testing.T) {
	img := imagesrc.New(solid(30, 20, color.NRGBA{R: 10, G: 200, B: 30, A: 180}))
	for _, st := range []style.Style{style.Block{}, style.Kitty{}, style.ITerm2{}} {
		t.Run(st.Name(), func(t *testing.T) {
			req := Request{Image: img, Frame: image.Pt(12, 6), Style: st}
			a, err := Render(req, Options{})
			if err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			b, err := Render(req, Options{})
			if err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			if a.Output != b.Output {
				t.Error("repeated renders differ")
			}
		})
	}
}

func TestRenderFitsFrame(t *testing.T) {
	img := imagesrc.New(solid(100, 50, color.NRGBA{A: 255}))
	res, err := Render(Request{Image: img, Frame: image.Pt(20, 20), Style: style.Block{}}, Options{})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if res.Cols != 20 || res.Rows != 5 {
		t.Errorf("size = %dx%d, want 20x5", res.Cols, res.Rows)
	}
	rows := strings.Split(res.Output, "\n")
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	for i, row := range rows {
		if w := ansi.StringWidth(row); w != 20 {
			t.Errorf("row %d width = %d, want 20", i, w)
		}
	}
}

func TestKeyDistinguishesInputs(t *testing.T) {
	img := imagesrc.New(solid(4, 4, color.NRGBA{A: 255}))
	base := Request{Image: img, Size: imagesrc.Cells(4, 2), Style: style.Block{}}

	variants := []Request{
		base,
		{Image: img, Size: imagesrc.Cells(4, 3), Style: style.Block{}},
		{Image: img, Size: imagesrc.Cells(4, 2), Style: style.Block{}, Alpha: pixels.Blend{}},
		{Image: img, Size: imagesrc.Cells(4, 2), Style: style.Kitty{}},
		{Image: img, Size: imagesrc.Cells(4, 2), Style: style.Kitty{}, Args: style.KittyArgs{Method: style.Whole}},
		{Image: imagesrc.New(solid(4, 4, color.NRGBA{A: 255})), Size: imagesrc.Cells(4, 2), Style: style.Block{}},
	}
	seen := map[string]bool{}
	for _, r := range variants {
		k := r.Key()
		if k == "" {
			t.Fatal("Key() is empty for a valid request")
		}
		if seen[k] {
			t.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}

	if k := (Request{Image: img, Size: imagesrc.Cells(0, 1), Style: style.Block{}}).Key(); k != "" {
		t.Errorf("Key() of an invalid size = %q, want empty", k)
	}
}

func TestRequestDefersToImageSize(t *testing.T) {
	img := imagesrc.New(solid(40, 40, color.NRGBA{A: 255}))
	req := Request{Image: img, Frame: image.Pt(20, 20), Style: style.Block{}}

	fit, _, err := req.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if fit != 20 {
		t.Fatalf("unsized request spans %d columns, want the 20 column frame", fit)
	}
	before := req.Key()

	img.SetSize(imagesrc.Cells(6, 3))
	if cols, rows, _ := req.Resolve(); cols != 6 || rows != 3 {
		t.Errorf("Resolve() = %dx%d, want the image's 6x3", cols, rows)
	}
	if req.Key() == before {
		t.Error("key should follow the image's size")
	}

	req.Size = imagesrc.Cells(4, 2)
	if cols, rows, _ := req.Resolve(); cols != 4 || rows != 2 {
		t.Errorf("Resolve() = %dx%d, want the request's own 4x2", cols, rows)
	}
}

func TestRenderValidation(t *testing.T) {
	img := imagesrc.New(solid(4, 4, color.NRGBA{A: 255}))

	var se *imgerr.SizeError
	_, err := Render(Request{Image: img, Size: imagesrc.Cells(0, 1), Style: style.Block{}}, Options{})
	if !errors.As(err, &se) {
		t.Errorf("Render() error = %v, want *SizeError", err)
	}
	_, err = RenderOrFault(Request{Image: img, Size: imagesrc.Cells(3, 0), Style: style.Block{}}, Options{})
	if !errors.As(err, &se) {
		t.Errorf("RenderOrFault() error = %v, want *SizeError returned, not a fault", err)
	}

	if err := (Request{Style: style.Block{}}).Validate(); err == nil {
		t.Error("Validate() without image should fail")
	}
	if err := (Request{Image: img}).Validate(); err == nil {
		t.Error("Validate() without style should fail")
	}
}

func TestRenderOrFaultOnClosedImage(t *testing.T) {
	img := imagesrc.New(solid(4, 4, color.NRGBA{A: 255}))
	if err := img.Close(); err != nil {
		t.Fatal(err)
	}

	res, err := RenderOrFault(Request{Image: img, Size: imagesrc.Cells(5, 3), Style: style.Block{}}, Options{})
	if err != nil {
		t.Fatalf("RenderOrFault() error: %v", err)
	}
	if !res.Faulty {
		t.Fatal("result should be faulty")
	}
	if !errors.Is(res.Err, imgerr.ErrClosed) {
		t.Errorf("Err = %v, want ErrClosed", res.Err)
	}
	if res.Output != Placeholder(5, 3) {
		t.Errorf("Output = %q, want the placeholder", res.Output)
	}
}

func openPhoto(t *testing.T) *imagesrc.Image {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(64, 64, color.NRGBA{R: 90, B: 200, A: 255})); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	img, err := imagesrc.Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return img
}

func cacheEntries(t *testing.T, thumbs *thumbcache.Cache) int {
	t.Helper()
	entries, err := os.ReadDir(thumbs.Dir())
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestRenderUsesThumbnailCache(t *testing.T) {
	img := openPhoto(t)
	thumbs, err := thumbcache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	req := Request{Image: img, Size: imagesrc.Cells(8, 4), Style: style.Block{}}
	first, err := Render(req, Options{Thumbs: thumbs})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if n := cacheEntries(t, thumbs); n != 1 {
		t.Fatalf("cache holds %d entries, want 1", n)
	}

	second, err := Render(req, Options{Thumbs: thumbs})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if first.Output != second.Output {
		t.Error("cached render differs from the first one")
	}
	uncached, err := Render(req, Options{})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if uncached.Output != first.Output {
		t.Error("uncached render differs from the cached one")
	}
}

func TestThumbnailCacheSeparatesFilters(t *testing.T) {
	img := openPhoto(t)
	thumbs, err := thumbcache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	req := Request{Image: img, Size: imagesrc.Cells(8, 4), Style: style.Block{}}

	for i, name := range []string{"lanczos3", "nearest", "nearest"} {
		filter, err := pixels.ParseFilter(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Render(req, Options{Filter: filter, Thumbs: thumbs}); err != nil {
			t.Fatalf("Render(%s) error: %v", name, err)
		}
		want := min(i+1, 2)
		if n := cacheEntries(t, thumbs); n != want {
			t.Errorf("after %s: cache holds %d entries, want %d", name, n, want)
		}
	}
}

func TestPlaceholder(t *testing.T) {
	tests := []struct {
		name       string
		cols, rows int
	}{
		{"box", 10, 5},
		{"even box", 6, 4},
		{"minimal box", 3, 3},
		{"thin", 2, 4},
		{"flat", 8, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Placeholder(tt.cols, tt.rows)
			lines := strings.Split(out, "\n")
			if len(lines) != tt.rows {
				t.Fatalf("got %d lines, want %d", len(lines), tt.rows)
			}
			for _, line := range lines {
				if w := ansi.StringWidth(line); w != tt.cols {
					t.Errorf("line %q width = %d, want %d", line, w, tt.cols)
				}
			}
			if !strings.Contains(out, faultMark) {
				t.Errorf("placeholder %q has no fault mark", out)
			}
		})
	}
	if out := Placeholder(0, 3); out != "" {
		t.Errorf("Placeholder(0, 3) = %q, want empty", out)
	}
}
