package bookcompiler

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var disableConfigDir sync.Once

// PDFReport describes a written PDF as read back from disk.
type PDFReport struct {
	Pages int
	// Dims holds each page's media box in points.
	Dims []types.Dim
}

// InspectPDF parses and validates the PDF at path.
func InspectPDF(path string) (*PDFReport, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("counting pages of %s: %w", path, err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("page sizes of %s: %w", path, err)
	}
	return &PDFReport{Pages: ctx.PageCount, Dims: dims}, nil
}

// VerifyPDF checks that the PDF at path has the expected page count and that
// every page measures widthPx x heightPx at dpi, within one pixel.
func VerifyPDF(path string, pages, widthPx, heightPx, dpi int) error {
	report, err := InspectPDF(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingFailure, err)
	}
	if report.Pages != pages {
		return fmt.Errorf("%w: %s has %d pages, want %d", ErrEncodingFailure, path, report.Pages, pages)
	}
	tol := 72 / float64(dpi)
	wantW, wantH := pxToPt(widthPx, dpi), pxToPt(heightPx, dpi)
	for i, d := range report.Dims {
		if math.Abs(d.Width-wantW) > tol || math.Abs(d.Height-wantH) > tol {
			return fmt.Errorf("%w: %s page %d is %.2fx%.2f pt, want %.2fx%.2f pt",
				ErrEncodingFailure, path, i+1, d.Width, d.Height, wantW, wantH)
		}
	}
	return nil
}
