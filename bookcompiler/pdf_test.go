package bookcompiler

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestWritePDFRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		trim TrimSpec
	}{
		{"no bleed", TrimSpec{WidthIn: 8.5, HeightIn: 8.5, DPI: 150, BleedIn: 0.125}},
		{"bleed", TrimSpec{WidthIn: 8.5, HeightIn: 8.5, DPI: 150, Bleed: true, BleedIn: 0.125}},
		{"portrait", TrimSpec{WidthIn: 6, HeightIn: 9, DPI: 72}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := tt.trim.PixelSize()
			pages := []image.Image{solid(w, h, red), solid(w, h, blue), solid(w, h, white)}
			path := filepath.Join(t.TempDir(), "book.pdf")
			if err := WritePDF(path, pages, tt.trim, Metadata{Title: "Round Trip"}); err != nil {
				t.Fatal(err)
			}
			if err := VerifyPDF(path, len(pages), w, h, tt.trim.DPI); err != nil {
				t.Fatal(err)
			}
			report, err := InspectPDF(path)
			if err != nil {
				t.Fatal(err)
			}
			wIn, hIn := tt.trim.SizeIn()
			for i, d := range report.Dims {
				if d.Width/72 < wIn-0.01 || d.Width/72 > wIn+0.01 || d.Height/72 < hIn-0.01 || d.Height/72 > hIn+0.01 {
					t.Errorf("page %d is %.3fx%.3f in, want %.3fx%.3f", i+1, d.Width/72, d.Height/72, wIn, hIn)
				}
			}
		})
	}
}

func TestWritePDFFailureLeavesNoFile(t *testing.T) {
	trim := TrimSpec{WidthIn: 1, HeightIn: 1, DPI: 72}
	dir := t.TempDir()

	missing := filepath.Join(dir, "nope", "book.pdf")
	err := WritePDF(missing, []image.Image{solid(72, 72, red)}, trim, Metadata{})
	if !errors.Is(err, ErrEncodingFailure) {
		t.Errorf("missing dir: err = %v", err)
	}

	path := filepath.Join(dir, "book.pdf")
	if err := WritePDF(path, []image.Image{solid(72, 72, red), nil}, trim, Metadata{}); !errors.Is(err, ErrEncodingFailure) {
		t.Errorf("nil page: err = %v", err)
	}
	if err := WritePDF(path, nil, trim, Metadata{}); !errors.Is(err, ErrEncodingFailure) {
		t.Errorf("no pages: err = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("left files behind: %v", entries)
	}
}

func TestWritePDFReplacesExistingFile(t *testing.T) {
	trim := TrimSpec{WidthIn: 1, HeightIn: 1, DPI: 72}
	path := filepath.Join(t.TempDir(), "book.pdf")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WritePDF(path, []image.Image{solid(72, 72, red)}, trim, Metadata{}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("file starts with %q", data[:8])
	}
}

func TestEncodePNGCarriesDPI(t *testing.T) {
	var buf bytes.Buffer
	if err := encodePNG(&buf, solid(4, 3, red), 300); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	if string(data[37:41]) != "pHYs" {
		t.Fatalf("chunk after IHDR is %q", data[37:41])
	}
	if ppm := binary.BigEndian.Uint32(data[41:45]); ppm != 11811 {
		t.Errorf("pixels per metre = %d, want 11811", ppm)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding patched png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("decoded size %v", b)
	}
}
