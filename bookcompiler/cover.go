package bookcompiler

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

// BackFallback selects the back panel when no back cover image is supplied.
type BackFallback int

const (
	// BackBlank fills the back panel with the background colour.
	BackBlank BackFallback = iota
	// BackMirror uses the front image flipped horizontally.
	BackMirror
)

func (b BackFallback) String() string {
	if b == BackMirror {
		return "mirror"
	}
	return "blank"
}

// ParseBackFallback parses "blank" or "mirror".
func ParseBackFallback(s string) (BackFallback, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "blank":
		return BackBlank, nil
	case "mirror":
		return BackMirror, nil
	}
	return BackBlank, fmt.Errorf("unknown back cover fallback %q", s)
}

// CoverAssembler builds wraparound cover spreads.
type CoverAssembler struct {
	trim       TrimSpec
	spine      SpineConfig
	fallback   BackFallback
	background color.NRGBA
	ts         *Typesetter
	log        *zap.Logger
}

func NewCoverAssembler(trim TrimSpec, spine SpineConfig, fallback BackFallback, ts *Typesetter, logger *zap.Logger) *CoverAssembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoverAssembler{
		trim:       trim,
		spine:      spine,
		fallback:   fallback,
		background: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		ts:         ts,
		log:        logger,
	}
}

// Assemble lays out back panel, spine and front panel left to right. The
// front image is required. The title is set on the spine when the page count
// gives the book a spine.
func (a *CoverAssembler) Assemble(front, back image.Image, title string, pages int) (*CoverSpread, error) {
	if front == nil {
		return nil, fmt.Errorf("front cover: %w", ErrMissingCoverAsset)
	}
	geo, err := ResolveCover(a.trim, pages, a.spine)
	if err != nil {
		return nil, err
	}

	frontPanel := imaging.Fill(front, geo.PanelWidth, geo.Height, imaging.Center, imaging.Lanczos)
	var backPanel *image.NRGBA
	switch {
	case back != nil:
		backPanel = imaging.Fill(back, geo.PanelWidth, geo.Height, imaging.Center, imaging.Lanczos)
	case a.fallback == BackMirror:
		backPanel = imaging.FlipH(frontPanel)
	default:
		backPanel = imaging.New(geo.PanelWidth, geo.Height, a.background)
	}

	spread := imaging.New(geo.Width(), geo.Height, a.background)
	paste(spread, backPanel, image.Pt(0, 0))
	paste(spread, frontPanel, image.Pt(geo.PanelWidth+geo.SpineWidth, 0))

	out := &CoverSpread{
		Image:      spread,
		PanelWidth: geo.PanelWidth,
		SpineWidth: geo.SpineWidth,
		Height:     geo.Height,
	}
	if geo.SpineWidth == 0 {
		return out, nil
	}

	strip := geo.SpineWidth
	if strip > geo.PanelWidth {
		strip = geo.PanelWidth
	}
	fill := meanColor(frontPanel, image.Rect(0, 0, strip, geo.Height))
	spine := imaging.New(geo.SpineWidth, geo.Height, fill)
	if geo.SpineText() && strings.TrimSpace(title) != "" {
		label, err := a.spineLabel(title, geo, fill)
		if err != nil {
			return nil, err
		}
		lb := label.Bounds()
		paste(spine, label, image.Pt((geo.SpineWidth-lb.Dx())/2, (geo.Height-lb.Dy())/2))
		out.SpineText = true
	}
	paste(spread, spine, image.Pt(geo.PanelWidth, 0))

	a.log.Debug("assembled cover",
		zap.Int("pages", pages),
		zap.Int("spine_px", geo.SpineWidth),
		zap.Bool("spine_text", out.SpineText))
	return out, nil
}

// spineLabel renders the title as a vertical label that reads top to bottom.
func (a *CoverAssembler) spineLabel(title string, geo CoverGeometry, bg color.NRGBA) (*image.NRGBA, error) {
	margin := roundPx(a.spine.MarginIn, geo.DPI)
	across := a.spine.textBandPx(geo.SpineWidth, geo.DPI)
	along := geo.Height - 2*(geo.BleedPx+margin)
	if across < MinSpineTextPx || along < MinSpineTextPx {
		return nil, fmt.Errorf("%w: %dx%dpx spine has no room for a title", ErrInvalidGeometry, geo.SpineWidth, geo.Height)
	}

	for size := across; size >= 1; size-- {
		face, err := a.ts.Face(size)
		if err != nil {
			return nil, err
		}
		m := face.Metrics()
		lh := m.Ascent.Ceil() + m.Descent.Ceil()
		if lh > across {
			face.Close()
			continue
		}
		text := ellipsize(strings.TrimSpace(title), along, func(s string) int { return measure(face, s) })
		if text == "" {
			face.Close()
			continue
		}
		label := imaging.New(measure(face, text), lh, bg)
		drawLabel(label, face, text, 0, 0, contrast(bg))
		face.Close()
		return imaging.Rotate270(label), nil
	}
	return nil, fmt.Errorf("%w: font does not fit a %dpx spine", ErrInvalidGeometry, geo.SpineWidth)
}

// ellipsize shortens s with a trailing ellipsis until width(s) <= limit.
func ellipsize(s string, limit int, width func(string) int) string {
	if width(s) <= limit {
		return s
	}
	runes := []rune(s)
	for n := len(runes) - 1; n > 0; n-- {
		t := strings.TrimSpace(string(runes[:n])) + "\u2026"
		if width(t) <= limit {
			return t
		}
	}
	return ""
}

// meanColor averages the pixels of img inside r.
func meanColor(img *image.NRGBA, r image.Rectangle) color.NRGBA {
	r = r.Intersect(img.Bounds())
	var sr, sg, sb, n uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			sr += uint64(c.R)
			sg += uint64(c.G)
			sb += uint64(c.B)
			n++
		}
	}
	if n == 0 {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return color.NRGBA{R: uint8(sr / n), G: uint8(sg / n), B: uint8(sb / n), A: 255}
}

// contrast picks black or white text for a background.
func contrast(bg color.NRGBA) color.NRGBA {
	lum := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if lum > 140 {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
}

func paste(dst *image.NRGBA, src image.Image, at image.Point) {
	b := src.Bounds()
	xdraw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(b.Size())}, src, b.Min, xdraw.Src)
}
