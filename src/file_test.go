package storybook

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestFolderName(t *testing.T) {
	tests := map[string]string{
		"The Fox and the Sea": "The_Fox_and_the_Sea",
		"  Padded  ":          "Padded",
		"a/b\\c:d":            "abcd",
		"":                    "Untitled",
		"..":                  "Untitled",
	}
	for in, want := range tests {
		if got := FolderName(in); got != want {
			t.Errorf("FolderName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInfoRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "book")
	info := BookInfo{Title: "Moon", Topic: "a sleepy moon", Pages: 12, BookType: "rhyme", Style: "watercolour"}
	if err := SaveInfo(info, dir); err != nil {
		t.Fatal(err)
	}
	got, err := LoadInfo(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != info {
		t.Errorf("got %+v, want %+v", got, info)
	}
	if !got.Rhyming() {
		t.Error("rhyme book should be rhyming")
	}
}

func TestLoadBook(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Sleepy_Moon")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := SaveText([]string{"One.", "Two.", "Three."}, dir); err != nil {
		t.Fatal(err)
	}
	img := filepath.Join(dir, ImagesDir)
	for _, name := range []string{"page3.png", "page1.jpg", "cover.jpg", "Back.PNG", "title.png", "notes.png", "page10.png"} {
		writeTestPNG(t, filepath.Join(img, name))
	}

	book, err := LoadBook(dir)
	if err != nil {
		t.Fatal(err)
	}
	if book.Info.Title != "Sleepy Moon" {
		t.Errorf("title %q", book.Info.Title)
	}
	if len(book.Texts) != 3 {
		t.Errorf("texts %q", book.Texts)
	}
	want := make([]string, 10)
	want[0] = filepath.Join(img, "page1.jpg")
	want[2] = filepath.Join(img, "page3.png")
	want[9] = filepath.Join(img, "page10.png")
	if !reflect.DeepEqual(book.Pages, want) {
		t.Errorf("pages %q", book.Pages)
	}
	if book.Cover != filepath.Join(img, "cover.jpg") || book.Back != filepath.Join(img, "Back.PNG") {
		t.Errorf("cover %q back %q", book.Cover, book.Back)
	}
	if book.TitlePage != filepath.Join(img, "title.png") {
		t.Errorf("title page %q", book.TitlePage)
	}

	src := book.Source()
	if len(src.Images) != 10 || src.Title != "Sleepy Moon" || src.Front != book.Cover {
		t.Errorf("source %+v", src)
	}
}

func TestLoadBookTextFormat(t *testing.T) {
	tests := []struct {
		name     string
		markdown bool
		want     []string
	}{
		{"plain keeps markers", false, []string{"The fox said *hush*.", "* * *", "The end."}},
		{"markdown opt-in", true, []string{"The fox said hush.", "The end."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := mustMkdir(t, filepath.Join(t.TempDir(), "Fox"))
			if err := SaveInfo(BookInfo{Title: "Fox", Markdown: tt.markdown}, dir); err != nil {
				t.Fatal(err)
			}
			if err := SaveText([]string{"The fox said *hush*.", "* * *", "The end."}, dir); err != nil {
				t.Fatal(err)
			}
			book, err := LoadBook(dir)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(book.Texts, tt.want) {
				t.Errorf("got %q, want %q", book.Texts, tt.want)
			}
		})
	}
}

func TestLoadBookNeedsText(t *testing.T) {
	if _, err := LoadBook(t.TempDir()); err == nil {
		t.Error("expected error for folder without book_text.txt")
	}
}

func TestListBooks(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b_book", "a_book"} {
		if err := SaveText([]string{"x"}, mustMkdir(t, filepath.Join(root, name))); err != nil {
			t.Fatal(err)
		}
	}
	mustMkdir(t, filepath.Join(root, "empty"))

	got, err := ListBooks(root)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(root, "a_book"), filepath.Join(root, "b_book")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func mustMkdir(t *testing.T, dir string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}
