package style

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"io"
	"math/rand/v2"
	"regexp"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"

	"github.com/llehouerou/termimage/internal/pixels"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func noiseImage(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewPCG(1, 2))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.UintN(256))
	}
	return img
}

func opaqueNoise(w, h int) *image.NRGBA {
	img := noiseImage(w, h)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func prepare(img *image.NRGBA, policy pixels.AlphaPolicy) *pixels.Prepared {
	return pixels.PrepareResized(img, pixels.Options{Alpha: policy})
}

var transmission = regexp.MustCompile(`\x1b_G([^;\x1b]*);([^\x1b]*)\x1b\\`)

type kittyChunk struct {
	control map[string]string
	keys    []string
	payload string
}

func parseKitty(t *testing.T, s string) []kittyChunk {
	t.Helper()
	var out []kittyChunk
	for _, m := range transmission.FindAllStringSubmatch(s, -1) {
		c := kittyChunk{control: map[string]string{}, payload: m[2]}
		for _, kv := range strings.Split(m[1], ",") {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				t.Fatalf("malformed pair %q", kv)
			}
			c.control[k] = v
			c.keys = append(c.keys, k)
		}
		out = append(out, c)
	}
	return out
}

// joinPayload decodes every chunk of one image and undoes compression.
func joinPayload(t *testing.T, chunks []kittyChunk) []byte {
	t.Helper()
	var b64 strings.Builder
	for _, c := range chunks {
		b64.WriteString(c.payload)
	}
	data, err := base64.StdEncoding.DecodeString(b64.String())
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	if chunks[0].control["o"] == "z" {
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("zlib.NewReader() error: %v", err)
		}
		if data, err = io.ReadAll(r); err != nil {
			t.Fatalf("inflate error: %v", err)
		}
	}
	return data
}

func mustEncode(t *testing.T, st Style, p *pixels.Prepared, g Geometry, args Args) string {
	t.Helper()
	out, err := st.Encode(p, g, args)
	if err != nil {
		t.Fatalf("%s.Encode() error: %v", st.Name(), err)
	}
	return out
}
