package bookcompiler

import (
	"errors"
	"strings"
	"testing"
)

func TestComposeStoryPageSize(t *testing.T) {
	for _, bleed := range []bool{false, true} {
		cfg := lowResConfig()
		cfg.Trim.Bleed = bleed
		c := newTestCompositor(t, cfg)
		page, err := c.Compose(PageContent{Index: 3, Text: "A fox.", Image: solid(200, 150, red)})
		if err != nil {
			t.Fatalf("bleed %v: %v", bleed, err)
		}
		w, h := cfg.Trim.PixelSize()
		if b := page.Image.Bounds(); b.Dx() != w || b.Dy() != h {
			t.Errorf("bleed %v: page %v, want %dx%d", bleed, b, w, h)
		}
		if page.FontPx != c.font.SizePx {
			t.Errorf("FontPx = %d, want %d", page.FontPx, c.font.SizePx)
		}
	}
}

func TestComposeDoesNotUpscale(t *testing.T) {
	cfg := lowResConfig()
	src := solid(10, 10, red)
	count := func(allow bool) int {
		cfg.Layout.AllowUpscale = allow
		page, err := newTestCompositor(t, cfg).Compose(PageContent{Index: 1, Text: "Hi", Image: src})
		if err != nil {
			t.Fatal(err)
		}
		n := 0
		b := page.Image.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if isRed(page.Image.NRGBAAt(x, y)) {
					n++
				}
			}
		}
		return n
	}
	if n := count(false); n != 100 {
		t.Errorf("without upscale: %d red pixels, want 100", n)
	}
	if n := count(true); n <= 100 {
		t.Errorf("with upscale: %d red pixels, want more than 100", n)
	}
}

func TestComposeLeavesInputUntouched(t *testing.T) {
	src := split(300, 200, red, blue)
	before := append([]uint8(nil), src.Pix...)
	if _, err := newTestCompositor(t, lowResConfig()).Compose(PageContent{Index: 1, Text: "Hi", Image: src}); err != nil {
		t.Fatal(err)
	}
	if string(before) != string(src.Pix) {
		t.Error("source image was modified")
	}
}

func TestComposeErrors(t *testing.T) {
	c := newTestCompositor(t, lowResConfig())
	if _, err := c.Compose(PageContent{Index: 1, Text: "no picture"}); !errors.Is(err, ErrContentMismatch) {
		t.Errorf("missing image: err = %v", err)
	}
	huge := strings.Repeat(longPassage+"\n", 20)
	_, err := c.Compose(PageContent{Index: 4, Text: huge, Image: solid(10, 10, red)})
	if !errors.Is(err, ErrTextOverflow) {
		t.Errorf("overflow: err = %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "page 4") {
		t.Errorf("overflow error lacks page index: %v", err)
	}
	if _, err := c.Compose(PageContent{Index: 1, Kind: CoverPage}); !errors.Is(err, ErrMissingCoverAsset) {
		t.Errorf("bookend without image: err = %v", err)
	}
}

func TestComposeBookendIsFullBleed(t *testing.T) {
	cfg := lowResConfig()
	cfg.Trim.Bleed = true
	page, err := newTestCompositor(t, cfg).Compose(PageContent{Index: 1, Kind: CoverPage, Image: solid(800, 400, red)})
	if err != nil {
		t.Fatal(err)
	}
	b := page.Image.Bounds()
	for _, p := range [][2]int{{0, 0}, {b.Dx() - 1, 0}, {0, b.Dy() - 1}, {b.Dx() - 1, b.Dy() - 1}} {
		if c := page.Image.NRGBAAt(p[0], p[1]); !isRed(c) {
			t.Errorf("corner %v = %v, want red", p, c)
		}
	}
	if page.FontPx != 0 {
		t.Errorf("bookend FontPx = %d", page.FontPx)
	}
}

func TestSafeRectAvoidsBleed(t *testing.T) {
	cfg := lowResConfig()
	cfg.Trim.Bleed = true
	c := newTestCompositor(t, cfg)
	w, _ := cfg.Trim.PixelSize()
	bleed := cfg.Trim.BleedPx()
	recto, verso := c.SafeRect(1), c.SafeRect(2)
	if w-recto.Max.X != recto.Min.X+bleed {
		t.Errorf("recto safe area %v is not offset from the fore edge", recto)
	}
	if verso.Min.X != recto.Min.X+bleed {
		t.Errorf("verso safe area %v, recto %v", verso, recto)
	}
}
