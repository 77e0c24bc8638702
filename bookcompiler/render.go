package bookcompiler

import (
	"fmt"
	"image"
	"strconv"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

// Compositor lays out single page rasters.
type Compositor struct {
	trim   TrimSpec
	font   FontChoice
	layout LayoutConfig
	ts     *Typesetter
	log    *zap.Logger
}

// NewCompositor returns a compositor for pages of the given trim. A nil
// logger disables logging.
func NewCompositor(trim TrimSpec, fc FontChoice, layout LayoutConfig, ts *Typesetter, logger *zap.Logger) (*Compositor, error) {
	if err := trim.Validate(); err != nil {
		return nil, err
	}
	if ts == nil {
		return nil, fmt.Errorf("compositor needs a typesetter")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compositor{trim: trim, font: fc, layout: layout, ts: ts, log: logger}, nil
}

// Trim returns the page geometry the compositor renders at.
func (c *Compositor) Trim() TrimSpec {
	return c.trim
}

// SafeRect returns the area of page index that is clear of bleed and margins.
func (c *Compositor) SafeRect(index int) image.Rectangle {
	m := scalePx(c.layout.MarginPx, c.trim.DPI)
	return c.trim.TrimRect(index).Inset(m)
}

// Compose renders one page. Story pages need an image; bookend pages are a
// full-bleed crop of their image with no text.
func (c *Compositor) Compose(pc PageContent) (*ComposedPage, error) {
	switch pc.Kind {
	case CoverPage, BackPage:
		return c.composeBookend(pc)
	default:
		return c.composeStory(pc)
	}
}

func (c *Compositor) composeBookend(pc PageContent) (*ComposedPage, error) {
	if pc.Image == nil {
		return nil, fmt.Errorf("%s page: %w", pc.Kind, ErrMissingCoverAsset)
	}
	w, h := c.trim.PixelSize()
	return &ComposedPage{
		Index: pc.Index,
		Kind:  pc.Kind,
		Image: imaging.Fill(pc.Image, w, h, imaging.Center, imaging.Lanczos),
	}, nil
}

func (c *Compositor) composeStory(pc PageContent) (*ComposedPage, error) {
	if pc.Image == nil {
		return nil, fmt.Errorf("page %d has no illustration: %w", pc.Index, ErrContentMismatch)
	}
	w, h := c.trim.PixelSize()
	canvas := imaging.New(w, h, c.layout.Background)
	safe := c.SafeRect(pc.Index)
	if safe.Empty() {
		return nil, fmt.Errorf("%w: margins leave no room on a %dx%d page", ErrInvalidGeometry, w, h)
	}

	illusH := int(float64(safe.Dy()) * c.layout.IllustrationShare)
	illus := image.Rect(safe.Min.X, safe.Min.Y, safe.Max.X, safe.Min.Y+illusH)
	textArea := image.Rect(safe.Min.X, illus.Max.Y+scalePx(c.layout.GutterPx, c.trim.DPI), safe.Max.X, safe.Max.Y)

	if c.layout.PageNumbers {
		face, err := c.ts.Face(c.font.PageNumPx)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pc.Index, err)
		}
		defer face.Close()
		label := strconv.Itoa(pc.Index)
		m := face.Metrics()
		lh := m.Ascent.Ceil() + m.Descent.Ceil()
		textArea.Max.Y -= lh + c.font.LineGapPx
		drawLabel(canvas, face, label, safe.Max.X-measure(face, label), safe.Max.Y-lh, c.layout.TextColor)
	}

	fitted := fitImage(pc.Image, illus.Size(), c.layout.AllowUpscale)
	fb := fitted.Bounds()
	origin := illus.Min.Add(image.Pt((illus.Dx()-fb.Dx())/2, (illus.Dy()-fb.Dy())/2))
	xdraw.Draw(canvas, image.Rectangle{Min: origin, Max: origin.Add(fb.Size())}, fitted, fb.Min, xdraw.Over)

	block, err := c.ts.Fit(pc.Text, textArea.Size(), c.font)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pc.Index, err)
	}
	defer block.Close()
	block.Draw(canvas, textArea, c.layout.TextColor)

	c.log.Debug("composed page",
		zap.Int("page", pc.Index),
		zap.Int("font_px", block.SizePx),
		zap.Int("lines", len(block.Lines)))

	return &ComposedPage{Index: pc.Index, Kind: StoryPage, Image: canvas, FontPx: block.SizePx}, nil
}

// fitImage scales src to fit inside box, keeping its aspect ratio. Smaller
// images are left at their size unless upscale is set.
func fitImage(src image.Image, box image.Point, upscale bool) image.Image {
	b := src.Bounds()
	if b.Dx() <= box.X && b.Dy() <= box.Y && !upscale {
		return src
	}
	if !upscale {
		return imaging.Fit(src, box.X, box.Y, imaging.Lanczos)
	}
	sx := float64(box.X) / float64(b.Dx())
	sy := float64(box.Y) / float64(b.Dy())
	scale := sx
	if sy < sx {
		scale = sy
	}
	dw := int(float64(b.Dx())*scale + 0.5)
	dh := int(float64(b.Dy())*scale + 0.5)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}
