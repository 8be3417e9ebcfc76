package pixels

import (
	"errors"
	"image"
	"image/color"
	"slices"
	"strings"
	"testing"

	"github.com/llehouerou/termimage/internal/imgerr"
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

func TestPrepareSizeValidation(t *testing.T) {
	src := solid(2, 2, color.NRGBA{A: 255})
	for _, sz := range [][2]int{{0, 2}, {2, 0}, {-1, -1}} {
		_, err := Prepare(src, sz[0], sz[1], Options{})
		var se *imgerr.SizeError
		if !errors.As(err, &se) {
			t.Errorf("Prepare(%dx%d) error = %v, want *SizeError", sz[0], sz[1], err)
			continue
		}
		if !strings.Contains(se.Error(), "too small to render") {
			t.Errorf("error = %q, want it to mention the size", se.Error())
		}
	}
}

func TestPrepareArrays(t *testing.T) {
	src := solid(3, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	p, err := Prepare(src, 3, 2, Options{})
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	if p.Width != 3 || p.Height != 2 {
		t.Errorf("size = %dx%d, want 3x2", p.Width, p.Height)
	}
	if len(p.RGB) != 6 || len(p.Alpha) != 6 {
		t.Errorf("arrays hold %d colours and %d alphas, want 6 each", len(p.RGB), len(p.Alpha))
	}
	if p.Transparent {
		t.Error("opaque image reported as transparent")
	}
	if c, a := p.At(2, 1); c != (RGB{10, 20, 30}) || a != 255 {
		t.Errorf("At(2, 1) = %v, %d", c, a)
	}
	if len(p.RGBBytes()) != 18 || len(p.RGBABytes()) != 24 {
		t.Errorf("packed sizes = %d and %d, want 18 and 24", len(p.RGBBytes()), len(p.RGBABytes()))
	}
}

func TestPrepareDoesNotMutateSource(t *testing.T) {
	src := solid(2, 2, color.NRGBA{R: 200, A: 100})
	if _, err := Prepare(src, 2, 2, Options{Alpha: Disabled{Background: color.White}}); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if got, want := src.NRGBAAt(0, 0), (color.NRGBA{R: 200, A: 100}); got != want {
		t.Errorf("source pixel = %v, want %v", got, want)
	}
}

func TestPrepareResizes(t *testing.T) {
	src := solid(40, 20, color.NRGBA{G: 255, A: 255})
	p, err := Prepare(src, 8, 4, Options{})
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if got := p.Image.Bounds(); got != image.Rect(0, 0, 8, 4) {
		t.Errorf("bounds = %v, want 8x4", got)
	}
	if c, _ := p.At(4, 2); c.G != 255 {
		t.Errorf("At(4, 2).G = %d, want 255", c.G)
	}
}

func TestDisabledFlattensFullyTransparent(t *testing.T) {
	bg := color.RGBA{R: 0x12, G: 0x34, B: 0x56, A: 255}
	src := solid(4, 4, color.NRGBA{R: 255, G: 255, B: 255, A: 0})

	tests := []struct {
		name   string
		policy AlphaPolicy
		termBg *color.RGBA
		want   RGB
	}{
		{"explicit background", Disabled{Background: bg}, nil, RGB{0x12, 0x34, 0x56}},
		{"terminal background", Disabled{}, &bg, RGB{0x12, 0x34, 0x56}},
		{"unknown background", Disabled{}, nil, RGB{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Prepare(src, 4, 4, Options{Alpha: tt.policy, TerminalBg: tt.termBg})
			if err != nil {
				t.Fatalf("Prepare() error: %v", err)
			}
			if p.Transparent {
				t.Error("flattened image reported as transparent")
			}
			for i := range p.RGB {
				if p.RGB[i] != tt.want || p.Alpha[i] != 255 {
					t.Fatalf("pixel %d = %v/%d, want %v/255", i, p.RGB[i], p.Alpha[i], tt.want)
				}
			}
		})
	}
}

func TestThreshold(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 9, A: 101}) // 0.396 -> transparent
	img.SetNRGBA(1, 0, color.NRGBA{R: 9, A: 102}) // 0.4 -> opaque
	img.SetNRGBA(2, 0, color.NRGBA{R: 9, A: 255})

	p := PrepareResized(img, Options{Alpha: Threshold{}})
	if want := []uint8{0, 255, 255}; !slices.Equal(p.Alpha, want) {
		t.Errorf("Alpha = %v, want %v", p.Alpha, want)
	}
	if p.RGB[0] != (RGB{R: 9}) {
		t.Errorf("threshold should leave colour untouched, got %v", p.RGB[0])
	}
	if !p.Transparent {
		t.Error("image with a cleared pixel should be transparent")
	}

	img = image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 200})
	p = PrepareResized(img, Options{Alpha: Threshold{Cutoff: 0.9}})
	if p.Alpha[0] != 0 {
		t.Errorf("Alpha = %d below a 0.9 cutoff, want 0", p.Alpha[0])
	}
}

func TestBlend(t *testing.T) {
	newImg := func() *image.NRGBA {
		img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 128})
		return img
	}
	white := color.RGBA{255, 255, 255, 255}

	p := PrepareResized(newImg(), Options{Alpha: Blend{Background: white, Round: true}})
	// 255*a + 255*(1-a) = 255; 0*a + 255*(1-a) = 127.0 -> 127
	if p.RGB[0] != (RGB{255, 127, 127}) || p.Alpha[0] != 255 {
		t.Errorf("rounded blend = %v/%d, want {255 127 127}/255", p.RGB[0], p.Alpha[0])
	}

	p = PrepareResized(newImg(), Options{Alpha: Blend{Background: white}})
	if p.RGB[0].R != 255 {
		t.Errorf("R = %d, want 255", p.RGB[0].R)
	}
	if g := int(p.RGB[0].G); g < 126 || g > 128 {
		t.Errorf("G = %d, want about 127", g)
	}
}

func TestPolicyKeys(t *testing.T) {
	keys := map[string]bool{}
	for _, p := range []AlphaPolicy{
		Disabled{},
		Disabled{Background: color.Black},
		Threshold{},
		Threshold{Cutoff: 0.5},
		Blend{},
		Blend{Round: true},
	} {
		k := p.Key()
		if keys[k] {
			t.Errorf("duplicate key %q", k)
		}
		keys[k] = true
	}
	if (Threshold{}).Key() != (Threshold{Cutoff: DefaultCutoff}).Key() {
		t.Error("zero cutoff should key like the default")
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "lanczos3", false},
		{"nearest", "nearest", false},
		{"sinc", "", true},
	}
	for _, tt := range tests {
		f, err := ParseFilter(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFilter(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && f.String() != tt.want {
			t.Errorf("ParseFilter(%q) = %s, want %s", tt.name, f, tt.want)
		}
	}

	var unset *Filter
	if unset.String() != "lanczos3" {
		t.Errorf("nil filter = %s, want the lanczos3 default", unset)
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff0000")
	if err != nil {
		t.Fatalf("ParseColor() error: %v", err)
	}
	if r, g, b, _ := c.RGBA(); r != 0xffff || g != 0 || b != 0 {
		t.Errorf("ParseColor(#ff0000) = %d,%d,%d", r, g, b)
	}

	c, err = ParseColor("")
	if err != nil || c != nil {
		t.Errorf("ParseColor(\"\") = %v, %v; want nil, nil", c, err)
	}

	if _, err = ParseColor("red"); err == nil {
		t.Error("ParseColor(red) should fail")
	}
}
