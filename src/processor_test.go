package storybook

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/opd-ai/storybook/bookcompiler"
)

type scriptedClient struct {
	replies []string
	calls   int
}

func (c *scriptedClient) SendMessage(system, user string) (string, error) {
	r := c.replies[c.calls%len(c.replies)]
	c.calls++
	return r, nil
}

type failingImages struct{}

func (failingImages) ImageGenerate(string, int, int, int, string, progressor) ([]byte, error) {
	return nil, errors.New("backend down")
}

// referenceRecorder records which calls carried a reference image.
type referenceRecorder struct {
	image      []byte
	prompts    []string
	references [][]byte
}

func newReferenceRecorder(t *testing.T) *referenceRecorder {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return &referenceRecorder{image: buf.Bytes()}
}

func (r *referenceRecorder) ImageGenerate(prompt string, _, _, _ int, _ string, _ progressor) ([]byte, error) {
	r.prompts = append(r.prompts, prompt)
	r.references = append(r.references, nil)
	return r.image, nil
}

func (r *referenceRecorder) ImageFromReference(prompt string, reference []byte, _, _, _ int, _ string, _ progressor) ([]byte, error) {
	r.prompts = append(r.prompts, prompt)
	r.references = append(r.references, reference)
	return r.image, nil
}

type messages []string

func (m *messages) UpdateOutput(s string) { *m = append(*m, s) }

func TestDemoClientStory(t *testing.T) {
	info := BookInfo{Title: "Moon", Topic: "the moon", Pages: 5}
	out, err := DemoClient{}.SendMessage(systemPrompt, StoryPrompt(info))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(strings.Split(out, "\n\n")); n != 5 {
		t.Errorf("%d paragraphs, want 5", n)
	}
	out, _ = DemoClient{}.SendMessage("", "tell me a story")
	if n := len(strings.Split(out, "\n\n")); n != demoPages {
		t.Errorf("%d paragraphs, want %d", n, demoPages)
	}
}

func TestDemoClientImage(t *testing.T) {
	data, err := DemoClient{}.ImageGenerate("a fox by the sea", 0, 0, 0, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if format != "jpeg" || img.Bounds().Dx() != demoImageSize || img.Bounds().Dy() != demoImageSize {
		t.Errorf("got %s %v", format, img.Bounds())
	}
}

func TestGenerateStoryRetriesOnWrongCount(t *testing.T) {
	client := &scriptedClient{replies: []string{"One.\n\nTwo.", "One.\n\nTwo.\n\nThree."}}
	g := &Generator{Text: client, Log: zaptest.NewLogger(t)}
	texts, err := g.GenerateStory(BookInfo{Title: "T", Pages: 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(texts) != 3 || client.calls != 2 {
		t.Errorf("texts %q after %d calls", texts, client.calls)
	}

	client = &scriptedClient{replies: []string{"Only one."}}
	g.Text = client
	if _, err := g.GenerateStory(BookInfo{Title: "T", Pages: 3}, nil); err == nil {
		t.Error("expected error for a story that never matches")
	}
	if client.calls != storyAttempts {
		t.Errorf("%d calls, want %d", client.calls, storyAttempts)
	}
}

func TestGenerateDemoBookCompiles(t *testing.T) {
	root := t.TempDir()
	var progress messages
	g := &Generator{Text: DemoClient{}, Images: DemoClient{}, Log: zaptest.NewLogger(t)}
	book, err := g.Generate(BookInfo{Title: "Demo Book", Topic: "testing", Pages: 3, Style: "flat"}, root, &progress)
	if err != nil {
		t.Fatal(err)
	}
	if book.Dir != filepath.Join(root, "Demo_Book") || len(book.Texts) != 3 || len(book.Pages) != 3 {
		t.Fatalf("book %+v", book)
	}
	if book.Cover == "" || book.Back == "" {
		t.Errorf("cover %q back %q", book.Cover, book.Back)
	}
	if len(progress) == 0 {
		t.Error("no progress reported")
	}

	cfg := bookcompiler.DefaultConfig()
	cfg.Trim.DPI = 72
	bc, err := bookcompiler.NewBookCompiler(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	res, err := bc.CompileBook(book.Source(), book.Dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pages != 3 {
		t.Errorf("manuscript pages = %d", res.Pages)
	}
}

func TestGenerateIllustrationsPlaceholder(t *testing.T) {
	dir := t.TempDir()
	g := &Generator{Images: failingImages{}, Log: zaptest.NewLogger(t)}
	info := BookInfo{Title: "T", Pages: 1}
	if err := g.GenerateIllustrations(info, []string{"a"}, dir, nil); err == nil {
		t.Fatal("expected failure without placeholders")
	}

	g.Placeholder = true
	if err := g.GenerateIllustrations(info, []string{"a"}, dir, nil); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{CoverName, BackName, PageImageName(1)} {
		if _, err := os.Stat(filepath.Join(dir, ImagesDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestGenerateIllustrationsFollowCover(t *testing.T) {
	dir := t.TempDir()
	rec := newReferenceRecorder(t)
	g := &Generator{Images: rec, Log: zaptest.NewLogger(t)}
	if err := g.GenerateIllustrations(BookInfo{Title: "T", Pages: 2}, []string{"a", "b"}, dir, nil); err != nil {
		t.Fatal(err)
	}
	if len(rec.references) != 4 {
		t.Fatalf("%d image calls, want 4", len(rec.references))
	}
	if rec.references[0] != nil {
		t.Error("cover was generated from a reference")
	}
	cover, err := os.ReadFile(filepath.Join(dir, ImagesDir, CoverName))
	if err != nil {
		t.Fatal(err)
	}
	for i, ref := range rec.references[1:] {
		if !bytes.Equal(ref, cover) {
			t.Errorf("call %d did not follow the saved cover", i+2)
		}
	}
}

func TestGenerateIllustrationsFollowSuppliedReference(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "fox.png")
	writeTestPNG(t, refPath)
	want, err := os.ReadFile(refPath)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		ref  string
	}{
		{"absolute path", refPath},
		{"relative to the book folder", "fox.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newReferenceRecorder(t)
			g := &Generator{Images: rec, Log: zaptest.NewLogger(t)}
			info := BookInfo{Title: "T", Pages: 1, ReferenceImage: tt.ref}
			if err := g.GenerateIllustrations(info, []string{"a"}, dir, nil); err != nil {
				t.Fatal(err)
			}
			if len(rec.references) != 3 {
				t.Fatalf("%d image calls, want 3", len(rec.references))
			}
			for i, ref := range rec.references {
				if !bytes.Equal(ref, want) {
					t.Errorf("call %d did not carry the supplied reference", i+1)
				}
			}
		})
	}

	g := &Generator{Images: newReferenceRecorder(t), Log: zaptest.NewLogger(t)}
	info := BookInfo{Title: "T", Pages: 1, ReferenceImage: "missing.png"}
	if err := g.GenerateIllustrations(info, []string{"a"}, dir, nil); err == nil {
		t.Error("expected error for a missing reference image")
	}
}

func TestGenerateTitlePage(t *testing.T) {
	root := t.TempDir()
	rec := newReferenceRecorder(t)
	g := &Generator{Text: DemoClient{}, Images: rec, TitlePage: true, Log: zaptest.NewLogger(t)}
	book, err := g.Generate(BookInfo{Title: "Title Book", Pages: 2, Style: "flat"}, root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.prompts) != 5 || rec.prompts[1] != TitlePagePrompt(book.Info) {
		t.Fatalf("prompts %q", rec.prompts)
	}
	if book.TitlePage != filepath.Join(book.Dir, ImagesDir, TitleName) {
		t.Errorf("title page %q", book.TitlePage)
	}
	if src := book.Source(); src.TitlePage != book.TitlePage {
		t.Errorf("source title page %q", src.TitlePage)
	}

	cfg := bookcompiler.DefaultConfig()
	cfg.Trim.DPI = 72
	cfg.IncludeBookends = true
	bc, err := bookcompiler.NewBookCompiler(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	pages, err := bc.CompileManuscript(book.Source(), filepath.Join(book.Dir, bookcompiler.ManuscriptFile), nil)
	if err != nil {
		t.Fatal(err)
	}
	if pages != 4 {
		t.Errorf("pages = %d, want title, 2 story pages and back", pages)
	}
}

func TestLocalClientReference(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	reference := []byte("reference image bytes")
	var got SDWebUIImg2ImgRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sdapi/v1/img2img" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(SDWebUIResponse{Images: []string{base64.StdEncoding.EncodeToString(buf.Bytes())}})
	}))
	defer srv.Close()

	data, err := NewLocalClient(srv.URL).ImageFromReference("a fox", reference, 0, 0, 0, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, buf.Bytes()) {
		t.Error("image bytes differ")
	}
	if len(got.InitImages) != 1 || got.InitImages[0] != base64.StdEncoding.EncodeToString(reference) {
		t.Errorf("init_images %q", got.InitImages)
	}
	if got.Prompt != "a fox" || got.Width != defaultLocalSize || got.DenoisingStrength != referenceStrength {
		t.Errorf("request %+v", got)
	}
}

func TestDemoClientFollowsReference(t *testing.T) {
	var ref bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 255, 255
	}
	if err := png.Encode(&ref, img); err != nil {
		t.Fatal(err)
	}
	data, err := DemoClient{}.ImageFromReference("a fox", ref.Bytes(), 0, 0, 0, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	out, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := out.At(demoImageSize-2, demoImageSize-2).RGBA()
	if r>>8 < 200 || g>>8 > 160 || b>>8 > 160 {
		t.Errorf("corner %d,%d,%d, want a red tint", r>>8, g>>8, b>>8)
	}
}

func TestLocalClient(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	var got SDWebUIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sdapi/v1/txt2img" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(SDWebUIResponse{Images: []string{base64.StdEncoding.EncodeToString(buf.Bytes())}})
	}))
	defer srv.Close()

	data, err := NewLocalClient(srv.URL+"/").ImageGenerate("a fox", 0, 0, 0, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, buf.Bytes()) {
		t.Error("image bytes differ")
	}
	if got.Prompt != "a fox" || got.Width != defaultLocalSize || got.Steps != defaultLocalSteps {
		t.Errorf("request %+v", got)
	}

	if _, err := NewLocalClient("").ImageGenerate("x", 0, 0, 0, "", nil); err == nil {
		t.Error("expected error without a base URL")
	}
}

func TestPromptsMentionBook(t *testing.T) {
	info := BookInfo{Title: "Moon", Topic: "the moon", Pages: 4, BookType: "rhyme", Style: "crayon"}
	for name, p := range map[string]string{
		"story": StoryPrompt(info),
		"cover": CoverPrompt(info, "A long story."),
		"back":  BackCoverPrompt(info),
		"title": TitlePagePrompt(info),
		"page":  PagePrompt(info, 1, "The moon yawned."),
	} {
		if !strings.Contains(p, "Moon") {
			t.Errorf("%s prompt lacks the title: %s", name, p)
		}
	}
	if !strings.Contains(StoryPrompt(info), "exactly 4 paragraphs") {
		t.Error("story prompt does not fix the paragraph count")
	}
	if !strings.Contains(PagePrompt(info, 1, "x"), "page 2") {
		t.Error("page prompt numbering is not 1-based")
	}
}
