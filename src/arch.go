package storybook

import (
	"path/filepath"
	"strings"

	"github.com/opd-ai/storybook/bookcompiler"
)

// MinPages is the shortest book a new story is generated for.
const MinPages = 12

// BookInfo is the request a book is generated from. It is stored as
// prompt.json in the book folder.
type BookInfo struct {
	Title    string `json:"title"`
	Topic    string `json:"topic"`
	Pages    int    `json:"pages"`
	BookType string `json:"book_type"`
	Style    string `json:"style"`
	Author   string `json:"author,omitempty"`
	// ReferenceImage is passed to image generation to keep characters
	// consistent. It is not used by layout.
	ReferenceImage string `json:"reference_image,omitempty"`
	// Markdown makes book_text.txt be read as markdown instead of plain
	// text.
	Markdown bool `json:"markdown,omitempty"`
}

// TextFormat returns how the book's story text is parsed.
func (i BookInfo) TextFormat() bookcompiler.TextFormat {
	if i.Markdown {
		return bookcompiler.Markdown
	}
	return bookcompiler.PlainText
}

// Rhyming reports whether the book should be written in verse.
func (i BookInfo) Rhyming() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(i.BookType)), "rhym")
}

// Dir returns the book's folder under root.
func (i BookInfo) Dir(root string) string {
	return filepath.Join(root, FolderName(i.Title))
}

// FolderName turns a title into a folder name: spaces become underscores and
// path separators are dropped.
func FolderName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return -1
		case ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" || name == "." || name == ".." {
		return "Untitled"
	}
	return name
}

// Book is a book folder on disk.
type Book struct {
	Info  BookInfo
	Dir   string
	Texts []string
	// Pages holds one illustration path per text, in page order. A missing
	// illustration leaves an empty entry.
	Pages []string
	Cover string
	Back  string
	// TitlePage opens the interior when bookends are printed.
	TitlePage string
}

// Source converts the book into compiler input.
func (b *Book) Source() bookcompiler.BookSource {
	src := bookcompiler.BookSource{
		Title:     b.Info.Title,
		Author:    b.Info.Author,
		Texts:     b.Texts,
		Front:     b.Cover,
		Back:      b.Back,
		TitlePage: b.TitlePage,
	}
	for _, p := range b.Pages {
		src.Images = append(src.Images, bookcompiler.ImageFile(p))
	}
	return src
}
