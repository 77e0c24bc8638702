package bookcompiler

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// lowResConfig keeps rasters small: 8.5in at 72 dpi is 612 px.
func lowResConfig() Config {
	cfg := DefaultConfig()
	cfg.Trim.DPI = 72
	return cfg
}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// split returns an image whose left half is l and right half is r.
func split(w, h int, l, r color.Color) *image.NRGBA {
	img := solid(w, h, l)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.Set(x, y, r)
		}
	}
	return img
}

func newTestTypesetter(t *testing.T) *Typesetter {
	t.Helper()
	ts, err := NewTypesetter("")
	if err != nil {
		t.Fatalf("NewTypesetter: %v", err)
	}
	return ts
}

func newTestCompositor(t *testing.T, cfg Config) *Compositor {
	t.Helper()
	ts := newTestTypesetter(t)
	fc := NewFontChoice(ts.Family(), cfg.Trim.DPI, cfg.Typography)
	c, err := NewCompositor(cfg.Trim, fc, cfg.Layout, ts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	return c
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func isRed(c color.NRGBA) bool {
	return c.R > 200 && c.G < 60 && c.B < 60
}
