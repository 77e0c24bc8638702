package storybook

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"regexp"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	demoPages     = 12
	demoImageSize = 1024
)

var pageCountPattern = regexp.MustCompile(`(?i)(\d+)[- ]?page|exactly (\d+) paragraphs`)

// DemoClient stands in for both the text and the image model so a book can
// be built offline.
type DemoClient struct{}

// SendMessage returns one placeholder paragraph per page requested in the
// prompt.
func (DemoClient) SendMessage(systemPrompt, userPrompt string) (string, error) {
	pages := demoPages
	if m := pageCountPattern.FindStringSubmatch(userPrompt); m != nil {
		for _, g := range m[1:] {
			if n, err := strconv.Atoi(g); err == nil && n > 0 {
				pages = n
				break
			}
		}
	}
	paragraphs := make([]string, pages)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("This is demo text for page %d.", i+1)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// ImageGenerate returns a grey JPEG labelled with the start of the prompt.
func (DemoClient) ImageGenerate(prompt string, steps, width, height int, modelName string, progress progressor) ([]byte, error) {
	orNull(progress).UpdateOutput("Rendering demo image")
	return placeholderJPEG("DEMO IMAGE", prompt, color.NRGBA{R: 240, G: 240, B: 240, A: 255})
}

// ImageFromReference returns a demo image tinted with the reference's
// average colour.
func (DemoClient) ImageFromReference(prompt string, reference []byte, steps, width, height int, modelName string, progress progressor) ([]byte, error) {
	orNull(progress).UpdateOutput("Rendering demo image from reference")
	bg := color.NRGBA{R: 240, G: 240, B: 240, A: 255}
	if ref, err := imaging.Decode(bytes.NewReader(reference)); err == nil {
		avg := imaging.Resize(ref, 1, 1, imaging.Box).NRGBAAt(0, 0)
		bg = color.NRGBA{R: avg.R/2 + 127, G: avg.G/2 + 127, B: avg.B/2 + 127, A: 255}
	}
	return placeholderJPEG("DEMO IMAGE", prompt, bg)
}

// placeholderJPEG draws a heading and a wrapped caption on a square canvas.
func placeholderJPEG(heading, caption string, bg color.NRGBA) ([]byte, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	canvas := imaging.New(demoImageSize, demoImageSize, bg)
	ink := image.NewUniform(color.Black)

	y := 40
	for _, part := range []struct {
		text  string
		size  float64
		width int
	}{
		{heading, 48, 0},
		{caption, 24, 60},
	} {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: part.size, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			return nil, fmt.Errorf("creating face: %w", err)
		}
		lh := face.Metrics().Height.Ceil()
		d := &font.Drawer{Dst: canvas, Src: ink, Face: face}
		for _, line := range wrapChars(part.text, part.width) {
			if y+lh > demoImageSize-40 {
				break
			}
			d.Dot = fixed.P(40, y+face.Metrics().Ascent.Ceil())
			d.DrawString(line)
			y += lh + 6
		}
		face.Close()
		y += 24
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(70)); err != nil {
		return nil, fmt.Errorf("encoding placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

// wrapChars splits s into lines of at most width characters. Zero width
// keeps s on one line.
func wrapChars(s string, width int) []string {
	words := strings.Fields(s)
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}
	var lines []string
	line := ""
	for _, w := range words {
		if line != "" && len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		if line != "" {
			line += " "
		}
		line += w
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
