package bookcompiler

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Output file names inside a book folder.
const (
	ManuscriptFile = "manuscript.pdf"
	CoverFile      = "cover.pdf"
)

// Progressor receives human-readable progress messages.
type Progressor interface {
	UpdateOutput(message string)
}

type nullProgressor struct{}

func (nullProgressor) UpdateOutput(string) {}

// BookSource is everything needed to compile one book.
type BookSource struct {
	Title  string
	Author string
	Texts  []string
	Images []Illustration
	// Front and Back are cover image paths. Back may be empty.
	Front string
	Back  string
	// TitlePage replaces Front as the first bookend when set.
	TitlePage string
	// PageCount overrides the interior page count used for the spine.
	PageCount int
}

// Result reports the files a compile produced.
type Result struct {
	ManuscriptPath string
	CoverPath      string
	Pages          int
	SpineWidth     int
	SpineText      bool
}

// BookCompiler turns book sources into a manuscript PDF and a cover PDF.
// It keeps no state between books and may be used from several goroutines.
type BookCompiler struct {
	cfg        Config
	log        *zap.Logger
	ts         *Typesetter
	font       FontChoice
	compositor *Compositor
	covers     *CoverAssembler
}

// NewBookCompiler validates cfg and loads its font.
func NewBookCompiler(cfg Config, logger *zap.Logger) (*BookCompiler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Trim.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Spine.Validate(cfg.Trim.DPI); err != nil {
		return nil, err
	}
	ts, err := NewTypesetter(cfg.Typography.FontPath)
	if err != nil {
		return nil, err
	}
	fc := NewFontChoice(ts.Family(), cfg.Trim.DPI, cfg.Typography)
	comp, err := NewCompositor(cfg.Trim, fc, cfg.Layout, ts, logger)
	if err != nil {
		return nil, err
	}
	return &BookCompiler{
		cfg:        cfg,
		log:        logger,
		ts:         ts,
		font:       fc,
		compositor: comp,
		covers:     NewCoverAssembler(cfg.Trim, cfg.Spine, cfg.BackFallback, ts, logger),
	}, nil
}

// Font returns the font choice derived for this build.
func (bc *BookCompiler) Font() FontChoice {
	return bc.font
}

// CompileManuscript writes the interior PDF and returns its page count.
func (bc *BookCompiler) CompileManuscript(src BookSource, out string, progress Progressor) (int, error) {
	if progress == nil {
		progress = nullProgressor{}
	}
	w, err := NewPDFWriter(bc.cfg.Trim, Metadata{Title: src.Title, Author: src.Author, Subject: "Interior"})
	if err != nil {
		return 0, err
	}

	next := 1
	if bc.cfg.IncludeBookends {
		first := src.Front
		if src.TitlePage != "" {
			first = src.TitlePage
		}
		if err := bc.addBookend(w, CoverPage, first, next); err != nil {
			return 0, err
		}
		next++
	}

	p := &Paginator{Compositor: bc.compositor, FirstPage: next, Log: bc.log}
	total := len(src.Texts)
	err = p.Each(src.Texts, src.Images, func(page *ComposedPage) error {
		progress.UpdateOutput(fmt.Sprintf("Laid out page %d of %d", page.Index-next+1, total))
		return w.AddPage(page.Image)
	})
	if err != nil {
		return 0, err
	}

	if bc.cfg.IncludeBookends && src.Back != "" {
		if err := bc.addBookend(w, BackPage, src.Back, w.PageCount()+1); err != nil {
			return 0, err
		}
	}

	if err := w.WriteFile(out); err != nil {
		return 0, err
	}
	pages := w.PageCount()
	if bc.cfg.VerifyOutput {
		pw, ph := bc.cfg.Trim.PixelSize()
		if err := VerifyPDF(out, pages, pw, ph, bc.cfg.Trim.DPI); err != nil {
			os.Remove(out)
			return 0, err
		}
	}
	bc.log.Info("wrote manuscript", zap.String("path", out), zap.Int("pages", pages))
	progress.UpdateOutput(fmt.Sprintf("Manuscript written: %d pages", pages))
	return pages, nil
}

func (bc *BookCompiler) addBookend(w *PDFWriter, kind PageKind, path string, index int) error {
	if path == "" {
		return fmt.Errorf("%s page: %w", kind, ErrMissingCoverAsset)
	}
	img, err := LoadImage(path)
	if err != nil {
		return fmt.Errorf("%s page: %w: %w", kind, ErrMissingCoverAsset, err)
	}
	page, err := bc.compositor.Compose(PageContent{Index: index, Kind: kind, Image: img})
	if err != nil {
		return err
	}
	return w.AddPage(page.Image)
}

// CompileCover writes the wraparound cover PDF for a book of pages interior
// pages.
func (bc *BookCompiler) CompileCover(src BookSource, pages int, out string, progress Progressor) (*CoverSpread, error) {
	if progress == nil {
		progress = nullProgressor{}
	}
	if src.Front == "" {
		return nil, fmt.Errorf("front cover: %w", ErrMissingCoverAsset)
	}
	front, err := LoadImage(src.Front)
	if err != nil {
		return nil, fmt.Errorf("front cover: %w: %w", ErrMissingCoverAsset, err)
	}
	var back image.Image
	if src.Back != "" {
		img, err := LoadImage(src.Back)
		if err != nil {
			bc.log.Warn("back cover unreadable, using fallback",
				zap.String("path", src.Back),
				zap.String("fallback", bc.cfg.BackFallback.String()),
				zap.Error(err))
		} else {
			back = img
		}
	}

	spread, err := bc.covers.Assemble(front, back, src.Title, pages)
	if err != nil {
		return nil, err
	}

	trim := bc.cfg.Trim.WithBleed(true)
	if err := WritePDF(out, []image.Image{spread.Image}, trim, Metadata{Title: src.Title, Author: src.Author, Subject: "Cover"}); err != nil {
		return nil, err
	}
	if bc.cfg.VerifyOutput {
		if err := VerifyPDF(out, 1, spread.Image.Bounds().Dx(), spread.Height, trim.DPI); err != nil {
			os.Remove(out)
			return nil, err
		}
	}
	bc.log.Info("wrote cover",
		zap.String("path", out),
		zap.Int("spine_px", spread.SpineWidth),
		zap.Bool("spine_text", spread.SpineText))
	progress.UpdateOutput("Cover written")
	return spread, nil
}

// CompileBook writes ManuscriptFile and CoverFile into outDir. A cover failure
// leaves a finished manuscript in place and is returned with the partial
// result.
func (bc *BookCompiler) CompileBook(src BookSource, outDir string, progress Progressor) (*Result, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}
	res := &Result{ManuscriptPath: filepath.Join(outDir, ManuscriptFile)}
	pages, err := bc.CompileManuscript(src, res.ManuscriptPath, progress)
	if err != nil {
		return nil, fmt.Errorf("manuscript: %w", err)
	}
	res.Pages = pages

	spinePages := src.PageCount
	if spinePages <= 0 {
		spinePages = pages
	}
	coverPath := filepath.Join(outDir, CoverFile)
	spread, err := bc.CompileCover(src, spinePages, coverPath, progress)
	if err != nil {
		return res, fmt.Errorf("cover: %w", err)
	}
	res.CoverPath = coverPath
	res.SpineWidth = spread.SpineWidth
	res.SpineText = spread.SpineText
	return res, nil
}

// IsInputError reports whether err comes from bad book content rather than
// from the environment.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidGeometry) ||
		errors.Is(err, ErrTextOverflow) ||
		errors.Is(err, ErrContentMismatch) ||
		errors.Is(err, ErrEmptyBook) ||
		errors.Is(err, ErrMissingCoverAsset)
}
