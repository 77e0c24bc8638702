package bookcompiler

import (
	"fmt"
	"image"
	"math"
)

// roundPx converts inches to pixels, rounding half to even.
func roundPx(in float64, dpi int) int {
	return int(math.RoundToEven(in * float64(dpi)))
}

// scalePx converts a pixel size at ReferenceDPI to dpi. Sizes never drop
// below one pixel.
func scalePx(refPx, dpi int) int {
	px := int(math.Round(float64(refPx) * float64(dpi) / ReferenceDPI))
	if px < 1 {
		return 1
	}
	return px
}

// Validate reports ErrInvalidGeometry for sizes that cannot be rasterised.
func (t TrimSpec) Validate() error {
	if !(t.WidthIn > 0) || !(t.HeightIn > 0) {
		return fmt.Errorf("%w: trim size %gx%g in", ErrInvalidGeometry, t.WidthIn, t.HeightIn)
	}
	if t.DPI <= 0 {
		return fmt.Errorf("%w: dpi %d", ErrInvalidGeometry, t.DPI)
	}
	if t.BleedIn < 0 || math.IsNaN(t.BleedIn) {
		return fmt.Errorf("%w: bleed %g in", ErrInvalidGeometry, t.BleedIn)
	}
	if w, h := t.PixelSize(); w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %gx%g in at %d dpi rounds to %dx%d px",
			ErrInvalidGeometry, t.WidthIn, t.HeightIn, t.DPI, w, h)
	}
	return nil
}

// WithBleed returns a copy of t with bleed switched on or off.
func (t TrimSpec) WithBleed(on bool) TrimSpec {
	t.Bleed = on
	return t
}

func (t TrimSpec) bleedIn() float64 {
	if !t.Bleed {
		return 0
	}
	return t.BleedIn
}

// SizeIn returns the page size in inches including bleed. Interior bleed
// covers the fore edge and the top and bottom; the spine edge has none.
func (t TrimSpec) SizeIn() (w, h float64) {
	b := t.bleedIn()
	return t.WidthIn + b, t.HeightIn + 2*b
}

// PixelSize returns the raster size of one page.
func (t TrimSpec) PixelSize() (w, h int) {
	wi, hi := t.SizeIn()
	return roundPx(wi, t.DPI), roundPx(hi, t.DPI)
}

// BleedPx returns the bleed allowance in pixels, or 0 without bleed.
func (t TrimSpec) BleedPx() int {
	return roundPx(t.bleedIn(), t.DPI)
}

// Recto reports whether a 1-based page number falls on a right-hand page.
func Recto(index int) bool {
	return index%2 == 1
}

// TrimRect returns the trimmed area of page index inside its raster. A recto
// page bleeds to the right, a verso page to the left.
func (t TrimSpec) TrimRect(index int) image.Rectangle {
	w, h := t.PixelSize()
	b := t.BleedPx()
	if b == 0 {
		return image.Rect(0, 0, w, h)
	}
	if Recto(index) {
		return image.Rect(0, b, w-b, h-b)
	}
	return image.Rect(b, b, w, h-b)
}

// CoverGeometry is the pixel layout of a wraparound cover.
type CoverGeometry struct {
	PanelWidth int
	SpineWidth int
	Height     int
	BleedPx    int
	DPI        int
}

// Width returns the full spread width.
func (g CoverGeometry) Width() int {
	return 2*g.PanelWidth + g.SpineWidth
}

// SpineText reports whether the spine is wide enough to carry the title.
func (g CoverGeometry) SpineText() bool {
	return g.SpineWidth > 0
}

// ResolveCover computes cover panel and spine sizes for a book of the given
// interior page count. Covers always carry bleed.
func ResolveCover(trim TrimSpec, pages int, spine SpineConfig) (CoverGeometry, error) {
	cover := trim.WithBleed(true)
	if err := cover.Validate(); err != nil {
		return CoverGeometry{}, err
	}
	if pages < 0 {
		return CoverGeometry{}, fmt.Errorf("%w: page count %d", ErrInvalidGeometry, pages)
	}
	if err := spine.Validate(cover.DPI); err != nil {
		return CoverGeometry{}, err
	}

	w, h := cover.PixelSize()
	geo := CoverGeometry{
		PanelWidth: w,
		Height:     h,
		BleedPx:    cover.BleedPx(),
		DPI:        cover.DPI,
	}
	if pages >= spine.TextMinPages && pages > 0 {
		geo.SpineWidth = spine.widthPx(pages, cover.DPI)
	}
	return geo, nil
}

// MinSpineTextPx is the narrowest band between the spine margins that still
// holds a title.
const MinSpineTextPx = 8

func (s SpineConfig) widthPx(pages, dpi int) int {
	w := roundPx(float64(pages)*s.InchesPerPage, dpi)
	if w < 1 {
		w = 1
	}
	return w
}

// textBandPx returns the room left for spine text across a spine of the
// given width.
func (s SpineConfig) textBandPx(width, dpi int) int {
	return width - 2*roundPx(s.MarginIn, dpi)
}

// Validate checks that every spine the config produces at dpi is wide
// enough for its title. The thinnest spine is the one at TextMinPages.
func (s SpineConfig) Validate(dpi int) error {
	if dpi <= 0 {
		return fmt.Errorf("%w: dpi %d", ErrInvalidGeometry, dpi)
	}
	if s.TextMinPages < 0 {
		return fmt.Errorf("%w: spine text threshold %d pages", ErrInvalidGeometry, s.TextMinPages)
	}
	if s.InchesPerPage <= 0 {
		return fmt.Errorf("%w: spine thickness %g in per page", ErrInvalidGeometry, s.InchesPerPage)
	}
	if s.MarginIn < 0 {
		return fmt.Errorf("%w: spine margin %g in", ErrInvalidGeometry, s.MarginIn)
	}
	first := s.TextMinPages
	if first < 1 {
		first = 1
	}
	width := s.widthPx(first, dpi)
	if s.textBandPx(width, dpi) >= MinSpineTextPx {
		return nil
	}
	need := first
	for s.textBandPx(s.widthPx(need, dpi), dpi) < MinSpineTextPx {
		need++
	}
	return fmt.Errorf("%w: spine text threshold %d pages gives a %dpx spine at %d dpi, too thin for a title; use at least %d pages",
		ErrInvalidGeometry, s.TextMinPages, width, dpi, need)
}
