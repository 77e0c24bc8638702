package storybook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/opd-ai/storybook/bookcompiler"
)

// Files inside a book folder.
const (
	InfoFile  = "prompt.json"
	TextFile  = "book_text.txt"
	ImagesDir = "images"
	CoverName = "cover.jpg"
	BackName  = "back.jpg"
	TitleName = "title.jpg"
)

var pageImagePattern = regexp.MustCompile(`(?i)^page(\d+)\.(jpe?g|png|webp)$`)

// PageImageName returns the file name of the 1-based page illustration.
func PageImageName(page int) string {
	return fmt.Sprintf("page%d.jpg", page)
}

// SaveInfo writes prompt.json into dir.
func SaveInfo(info BookInfo, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating book directory: %w", err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding book info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, InfoFile), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("saving book info: %w", err)
	}
	return nil
}

// LoadInfo reads prompt.json from dir.
func LoadInfo(dir string) (BookInfo, error) {
	var info BookInfo
	data, err := os.ReadFile(filepath.Join(dir, InfoFile))
	if err != nil {
		return info, fmt.Errorf("reading book info: %w", err)
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("parsing %s: %w", InfoFile, err)
	}
	return info, nil
}

// SaveText writes the passages to book_text.txt, separated by blank lines.
func SaveText(texts []string, dir string) error {
	content := strings.Join(texts, "\n\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, TextFile), []byte(content), 0o644); err != nil {
		return fmt.Errorf("saving story text: %w", err)
	}
	return nil
}

// SaveImage decodes generated image bytes and stores them as a JPEG in the
// book's images folder.
func SaveImage(data []byte, dir, name string) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", name, err)
	}
	imgDir := filepath.Join(dir, ImagesDir)
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		return "", fmt.Errorf("creating images directory: %w", err)
	}
	path := filepath.Join(imgDir, name)
	if err := imaging.Save(img, path, imaging.JPEGQuality(95)); err != nil {
		return "", fmt.Errorf("saving %s: %w", name, err)
	}
	return path, nil
}

// SaveToFiles writes a complete book folder: prompt.json and book_text.txt.
// Images are written as they are generated.
func SaveToFiles(book *Book, dir string) error {
	if err := SaveInfo(book.Info, dir); err != nil {
		return err
	}
	return SaveText(book.Texts, dir)
}

// LoadBook reads a book folder. prompt.json is optional; without it the
// title comes from the folder name and the text is read as plain text.
func LoadBook(dir string) (*Book, error) {
	info, err := LoadInfo(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if info.Title == "" {
		info.Title = strings.ReplaceAll(filepath.Base(dir), "_", " ")
	}

	texts, err := bookcompiler.LoadPassages(filepath.Join(dir, TextFile), info.TextFormat())
	if err != nil {
		return nil, err
	}
	book := &Book{Info: info, Dir: dir, Texts: texts}

	imgDir := filepath.Join(dir, ImagesDir)
	entries, err := os.ReadDir(imgDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading images directory: %w", err)
	}
	pages := map[int]string{}
	last := len(texts)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name))); base {
		case "cover":
			book.Cover = filepath.Join(imgDir, name)
			continue
		case "back":
			book.Back = filepath.Join(imgDir, name)
			continue
		case "title":
			book.TitlePage = filepath.Join(imgDir, name)
			continue
		}
		if n := extractPageNumber(name); n > 0 {
			pages[n] = filepath.Join(imgDir, name)
			if n > last {
				last = n
			}
		}
	}
	book.Pages = make([]string, last)
	for n, p := range pages {
		book.Pages[n-1] = p
	}
	return book, nil
}

func extractPageNumber(name string) int {
	matches := pageImagePattern.FindStringSubmatch(name)
	if len(matches) > 1 {
		if num, err := strconv.Atoi(matches[1]); err == nil {
			return num
		}
	}
	return 0
}

// ListBooks returns the book folders directly under root, sorted by name. A
// folder is a book when it holds book_text.txt.
func ListBooks(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("error reading root directory: %w", err)
	}
	var books []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, TextFile)); err == nil {
			books = append(books, dir)
		}
	}
	sort.Strings(books)
	return books, nil
}
