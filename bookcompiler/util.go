package bookcompiler

import (
	"fmt"
	"image"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	// Image generators commonly return WebP.
	_ "golang.org/x/image/webp"
)

// LoadImage decodes an image file, applying any EXIF orientation.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", path, err)
	}
	return img, nil
}

var typographic = strings.NewReplacer(
	"\u00a0", " ",
	"\u2028", "\n",
	"\u2029", "\n",
	"\r\n", "\n",
	"\r", "\n",
	"\t", " ",
)

// cleanText normalises to NFC, unifies whitespace and drops control and
// zero-width characters.
func cleanText(text string) string {
	text = typographic.Replace(norm.NFC.String(text))
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\u200b', r == '\u200c', r == '\u200d', r == '\ufeff':
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, text)
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
