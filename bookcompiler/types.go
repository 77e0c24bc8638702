package bookcompiler

import (
	"image"
	"image/color"
)

// ReferenceDPI is the resolution the default pixel sizes are expressed at.
const ReferenceDPI = 300

// TrimSpec describes the finished page size of a book and how it is rasterised.
type TrimSpec struct {
	WidthIn  float64
	HeightIn float64
	DPI      int
	Bleed    bool
	BleedIn  float64
}

// PageKind distinguishes interior story pages from full-bleed bookend pages.
type PageKind int

const (
	StoryPage PageKind = iota
	CoverPage
	BackPage
)

func (k PageKind) String() string {
	switch k {
	case CoverPage:
		return "cover"
	case BackPage:
		return "back"
	default:
		return "story"
	}
}

// PageContent is the input for one interior page. Index is the 1-based
// physical page number.
type PageContent struct {
	Index int
	Kind  PageKind
	Text  string
	Image image.Image
}

// ComposedPage is a finished page raster sized to TrimSpec.PixelSize.
type ComposedPage struct {
	Index  int
	Kind   PageKind
	Image  *image.NRGBA
	FontPx int
}

// CoverSpread is the single wraparound raster: back panel, spine, front panel.
type CoverSpread struct {
	Image      *image.NRGBA
	PanelWidth int
	SpineWidth int
	Height     int
	SpineText  bool
}

// Metadata is written into the PDF information dictionary.
type Metadata struct {
	Title   string
	Author  string
	Subject string
	Creator string
}

// SpineConfig controls spine width and spine text.
type SpineConfig struct {
	// TextMinPages is the page count below which the cover has no spine.
	TextMinPages int
	// InchesPerPage is the paper thickness per interior page.
	InchesPerPage float64
	// MarginIn is kept clear around spine text on every side.
	MarginIn float64
}

// TypographyConfig holds font sizes in pixels at ReferenceDPI.
type TypographyConfig struct {
	FontPath  string
	BodyPx    int
	MinPx     int
	StepPx    int
	LineGapPx int
	PageNumPx int
}

// LayoutConfig holds story page layout parameters. Pixel values are at
// ReferenceDPI.
type LayoutConfig struct {
	MarginPx          int
	GutterPx          int
	IllustrationShare float64
	AllowUpscale      bool
	PageNumbers       bool
	Background        color.NRGBA
	TextColor         color.NRGBA
}

// Config is everything a build needs. Use DefaultConfig and override fields.
type Config struct {
	Trim            TrimSpec
	Spine           SpineConfig
	Typography      TypographyConfig
	Layout          LayoutConfig
	BackFallback    BackFallback
	IncludeBookends bool
	VerifyOutput    bool
}

// DefaultConfig returns an 8.5 x 8.5 inch, 300 dpi book without bleed.
func DefaultConfig() Config {
	return Config{
		Trim: TrimSpec{
			WidthIn:  8.5,
			HeightIn: 8.5,
			DPI:      ReferenceDPI,
			BleedIn:  0.125,
		},
		Spine: SpineConfig{
			TextMinPages:  100,
			InchesPerPage: 0.002252,
			MarginIn:      0.0625,
		},
		Typography: TypographyConfig{
			BodyPx:    100,
			MinPx:     24,
			StepPx:    2,
			LineGapPx: 10,
			PageNumPx: 48,
		},
		Layout: LayoutConfig{
			MarginPx:          100,
			GutterPx:          40,
			IllustrationShare: 0.6,
			PageNumbers:       true,
			Background:        color.NRGBA{R: 255, G: 255, B: 255, A: 255},
			TextColor:         color.NRGBA{A: 255},
		},
		BackFallback: BackBlank,
	}
}
