package bookcompiler

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
)

// PDFWriter collects page rasters into a PDF whose page size follows from
// each raster's pixel size at the trim's dpi.
type PDFWriter struct {
	pdf   *gofpdf.Fpdf
	trim  TrimSpec
	pages int
}

// NewPDFWriter starts an empty document.
func NewPDFWriter(trim TrimSpec, meta Metadata) (*PDFWriter, error) {
	if err := trim.Validate(); err != nil {
		return nil, err
	}
	w, h := trim.PixelSize()
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: pxToPt(w, trim.DPI), Ht: pxToPt(h, trim.DPI)},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(true)
	creator := meta.Creator
	if creator == "" {
		creator = "storybook"
	}
	pdf.SetCreator(creator, true)
	if meta.Title != "" {
		pdf.SetTitle(meta.Title, true)
	}
	if meta.Author != "" {
		pdf.SetAuthor(meta.Author, true)
	}
	if meta.Subject != "" {
		pdf.SetSubject(meta.Subject, true)
	}
	return &PDFWriter{pdf: pdf, trim: trim}, nil
}

func pxToPt(px, dpi int) float64 {
	return float64(px) * 72 / float64(dpi)
}

// AddPage appends img as the next page.
func (w *PDFWriter) AddPage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: page %d is nil", ErrEncodingFailure, w.pages+1)
	}
	var buf bytes.Buffer
	if err := encodePNG(&buf, img, w.trim.DPI); err != nil {
		return fmt.Errorf("%w: page %d: %w", ErrEncodingFailure, w.pages+1, err)
	}

	b := img.Bounds()
	wPt, hPt := pxToPt(b.Dx(), w.trim.DPI), pxToPt(b.Dy(), w.trim.DPI)
	name := fmt.Sprintf("page-%04d", w.pages+1)
	w.pdf.AddPageFormat("P", gofpdf.SizeType{Wd: wPt, Ht: hPt})
	w.setBoxes(w.pages+1, wPt, hPt)

	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	info := w.pdf.RegisterImageOptionsReader(name, opts, &buf)
	if w.pdf.Err() {
		return fmt.Errorf("%w: page %d: %w", ErrEncodingFailure, w.pages+1, w.pdf.Error())
	}
	info.SetDpi(float64(w.trim.DPI))
	w.pdf.ImageOptions(name, 0, 0, -1, -1, false, opts, 0, "")
	if w.pdf.Err() {
		return fmt.Errorf("%w: page %d: %w", ErrEncodingFailure, w.pages+1, w.pdf.Error())
	}
	w.pages++
	return nil
}

// setBoxes records TrimBox and BleedBox on interior pages with bleed. Box
// coordinates are PDF user space with the origin at the bottom left.
func (w *PDFWriter) setBoxes(index int, wPt, hPt float64) {
	if !w.trim.Bleed {
		return
	}
	bw, bh := w.trim.PixelSize()
	if pxToPt(bw, w.trim.DPI) != wPt || pxToPt(bh, w.trim.DPI) != hPt {
		return
	}
	r := w.trim.TrimRect(index)
	x := pxToPt(r.Min.X, w.trim.DPI)
	y := pxToPt(bh-r.Max.Y, w.trim.DPI)
	w.pdf.SetPageBox("trim", x, y, pxToPt(r.Dx(), w.trim.DPI), pxToPt(r.Dy(), w.trim.DPI))
	w.pdf.SetPageBox("bleed", 0, 0, wPt, hPt)
}

// PageCount returns the number of pages added so far.
func (w *PDFWriter) PageCount() int {
	return w.pages
}

// WriteFile writes the document to path. Output goes to a temporary file in
// the same directory that replaces path only on success.
func (w *PDFWriter) WriteFile(path string) (err error) {
	if w.pages == 0 {
		return fmt.Errorf("%w: no pages", ErrEncodingFailure)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingFailure, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = w.pdf.Output(tmp); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrEncodingFailure, path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrEncodingFailure, tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingFailure, err)
	}
	return nil
}

// WritePDF writes pages to path in order, one PDF page per raster.
func WritePDF(path string, pages []image.Image, trim TrimSpec, meta Metadata) error {
	if len(pages) == 0 {
		return fmt.Errorf("%w: %w", ErrEncodingFailure, ErrEmptyBook)
	}
	w, err := NewPDFWriter(trim, meta)
	if err != nil {
		return err
	}
	for _, img := range pages {
		if err := w.AddPage(img); err != nil {
			return err
		}
	}
	return w.WriteFile(path)
}

// encodePNG writes img as a PNG carrying a pHYs chunk for dpi.
func encodePNG(w io.Writer, img image.Image, dpi int) error {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return err
	}
	return insertPHYs(w, buf.Bytes(), dpi)
}

// insertPHYs copies a PNG stream to w with a pHYs chunk after IHDR.
func insertPHYs(w io.Writer, data []byte, dpi int) error {
	// signature(8) + IHDR length(4) type(4) data(13) crc(4)
	const ihdrEnd = 33
	if len(data) < ihdrEnd || string(data[12:16]) != "IHDR" {
		return fmt.Errorf("malformed png stream")
	}
	ppm := uint32(math.Round(float64(dpi) / 0.0254))

	chunk := make([]byte, 0, 21)
	chunk = binary.BigEndian.AppendUint32(chunk, 9)
	chunk = append(chunk, "pHYs"...)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = append(chunk, 1) // unit: metre
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	for _, part := range [][]byte{data[:ihdrEnd], chunk, data[ihdrEnd:]} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}
