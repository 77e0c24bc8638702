package bookcompiler

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// FontChoice is the font family and the pixel sizes used for one build.
type FontChoice struct {
	Family    string
	SizePx    int
	MinPx     int
	StepPx    int
	LineGapPx int
	PageNumPx int
}

// NewFontChoice scales the reference sizes in cfg from ReferenceDPI to dpi.
func NewFontChoice(family string, dpi int, cfg TypographyConfig) FontChoice {
	fc := FontChoice{
		Family:    family,
		SizePx:    scalePx(cfg.BodyPx, dpi),
		MinPx:     scalePx(cfg.MinPx, dpi),
		StepPx:    scalePx(cfg.StepPx, dpi),
		LineGapPx: scalePx(cfg.LineGapPx, dpi),
		PageNumPx: scalePx(cfg.PageNumPx, dpi),
	}
	if cfg.LineGapPx == 0 {
		fc.LineGapPx = 0
	}
	return fc
}

// sizes lists the candidate font sizes from largest to smallest, always
// ending at the floor.
func (fc FontChoice) sizes() []int {
	if fc.SizePx < fc.MinPx || fc.MinPx < 1 {
		return nil
	}
	step := fc.StepPx
	if step < 1 {
		step = 1
	}
	var out []int
	for s := fc.SizePx; s > fc.MinPx; s -= step {
		out = append(out, s)
	}
	return append(out, fc.MinPx)
}

// Typesetter measures, wraps and draws text in one font. It holds no per-call
// state and may be shared between goroutines.
type Typesetter struct {
	font   *opentype.Font
	family string
}

// NewTypesetter loads a TrueType or OpenType font from path. An empty path
// selects the bundled Go Bold face.
func NewTypesetter(path string) (*Typesetter, error) {
	data := gobold.TTF
	family := "Go Bold"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading font: %w", err)
		}
		data = b
		family = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font %s: %w", family, err)
	}
	return &Typesetter{font: f, family: family}, nil
}

// Family returns the font family name.
func (ts *Typesetter) Family() string {
	return ts.family
}

// Face returns a face whose em size is sizePx pixels. The caller closes it.
func (ts *Typesetter) Face(sizePx int) (font.Face, error) {
	face, err := opentype.NewFace(ts.font, &opentype.FaceOptions{
		Size:    float64(sizePx),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %dpx face: %w", sizePx, err)
	}
	return face, nil
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// Wrap breaks text into lines no wider than maxWidth. Explicit newlines are
// kept and blank lines stay blank. A word wider than maxWidth is placed on a
// line of its own and never split.
func (ts *Typesetter) Wrap(text string, face font.Face, maxWidth int) []string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		words := strings.Fields(raw)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			trial := current + " " + word
			if measure(face, trial) <= maxWidth {
				current = trial
				continue
			}
			lines = append(lines, current)
			current = word
		}
		lines = append(lines, current)
	}
	return lines
}

// TextBlock is wrapped text at a chosen size, ready to draw. Close releases
// the face.
type TextBlock struct {
	Lines      []string
	SizePx     int
	LineHeight int
	GapPx      int
	Width      int
	Height     int

	face   font.Face
	ascent int
}

func newTextBlock(lines []string, face font.Face, sizePx, gap int) *TextBlock {
	m := face.Metrics()
	b := &TextBlock{
		Lines:      lines,
		SizePx:     sizePx,
		LineHeight: m.Ascent.Ceil() + m.Descent.Ceil(),
		GapPx:      gap,
		face:       face,
		ascent:     m.Ascent.Ceil(),
	}
	for _, l := range lines {
		if w := measure(face, l); w > b.Width {
			b.Width = w
		}
	}
	if n := len(lines); n > 0 {
		b.Height = n*b.LineHeight + (n-1)*gap
	}
	return b
}

func (b *TextBlock) fits(box image.Point) bool {
	return b.Width <= box.X && b.Height <= box.Y
}

// Fit wraps text into box, shrinking from fc.SizePx by fc.StepPx until every
// line fits the width and the block fits the height. It reports
// ErrTextOverflow when even fc.MinPx does not fit.
func (ts *Typesetter) Fit(text string, box image.Point, fc FontChoice) (*TextBlock, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return &TextBlock{SizePx: fc.SizePx}, nil
	}
	if box.X <= 0 || box.Y <= 0 {
		return nil, fmt.Errorf("%w: empty %dx%d text box", ErrTextOverflow, box.X, box.Y)
	}
	for _, size := range fc.sizes() {
		face, err := ts.Face(size)
		if err != nil {
			return nil, err
		}
		block := newTextBlock(ts.Wrap(text, face, box.X), face, size, fc.LineGapPx)
		if block.fits(box) {
			return block, nil
		}
		face.Close()
	}
	return nil, fmt.Errorf("%w: %d characters in %dx%d px at %dpx",
		ErrTextOverflow, len([]rune(text)), box.X, box.Y, fc.MinPx)
}

// Draw centres the block inside area, each line centred horizontally.
func (b *TextBlock) Draw(dst draw.Image, area image.Rectangle, col color.Color) {
	if b.face == nil || len(b.Lines) == 0 {
		return
	}
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: b.face}
	y := area.Min.Y + (area.Dy()-b.Height)/2
	for _, line := range b.Lines {
		if line != "" {
			x := area.Min.X + (area.Dx()-measure(b.face, line))/2
			d.Dot = fixed.P(x, y+b.ascent)
			d.DrawString(line)
		}
		y += b.LineHeight + b.GapPx
	}
}

// Close releases the font face.
func (b *TextBlock) Close() error {
	if b.face == nil {
		return nil
	}
	return b.face.Close()
}

// drawLabel draws a single line with its left edge at x and its top at y.
func drawLabel(dst draw.Image, face font.Face, s string, x, y int, col color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}
