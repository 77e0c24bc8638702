package storybook

import (
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/opd-ai/storybook/bookcompiler"
)

const storyAttempts = 3

// Generator produces the text and illustrations of a book folder.
type Generator struct {
	Text   Client
	Images ImageClient
	// Placeholder replaces an illustration that fails to generate with a
	// captioned blank image instead of failing the book.
	Placeholder bool
	// TitlePage adds an illustrated title page, printed as the first
	// bookend.
	TitlePage bool
	Steps     int
	Width     int
	Height    int
	Model     string
	Log       *zap.Logger
}

func (g *Generator) logger() *zap.Logger {
	if g.Log == nil {
		return zap.NewNop()
	}
	return g.Log
}

// GenerateStory asks the text model for the story and returns exactly
// info.Pages passages.
func (g *Generator) GenerateStory(info BookInfo, p progressor) ([]string, error) {
	pr := orNull(p)
	if info.Pages < 1 {
		return nil, fmt.Errorf("book needs at least one page, got %d", info.Pages)
	}
	var got int
	for attempt := 1; attempt <= storyAttempts; attempt++ {
		pr.UpdateOutput(fmt.Sprintf("Writing story (attempt %d)", attempt))
		response, err := g.Text.SendMessage(systemPrompt, StoryPrompt(info))
		if err != nil {
			return nil, fmt.Errorf("generating story: %w", err)
		}
		passages := bookcompiler.ParsePassages([]byte(response))
		if len(passages) == info.Pages {
			return passages, nil
		}
		got = len(passages)
		g.logger().Warn("story has wrong page count",
			zap.Int("attempt", attempt),
			zap.Int("paragraphs", got),
			zap.Int("want", info.Pages))
	}
	return nil, fmt.Errorf("story has %d paragraphs, want %d", got, info.Pages)
}

type illustrationJob struct {
	name, prompt string
}

// GenerateIllustrations writes the cover, the optional title page, the back
// cover and one illustration per passage into dir/images. When the image
// client can follow a reference, every image follows info.ReferenceImage;
// without one, every image after the cover follows the generated cover.
func (g *Generator) GenerateIllustrations(info BookInfo, texts []string, dir string, p progressor) error {
	pr := orNull(p)
	story := strings.Join(texts, " ")

	reference, err := loadReference(info.ReferenceImage, dir)
	if err != nil {
		return err
	}
	follower, canFollow := g.Images.(ReferenceImageClient)
	if !canFollow {
		g.logger().Info("image backend takes no reference image; illustrations follow their prompts only",
			zap.Bool("reference_supplied", reference != nil))
	}

	jobs := []illustrationJob{{CoverName, CoverPrompt(info, story)}}
	if g.TitlePage {
		jobs = append(jobs, illustrationJob{TitleName, TitlePagePrompt(info)})
	}
	jobs = append(jobs, illustrationJob{BackName, BackCoverPrompt(info)})
	for i, t := range texts {
		jobs = append(jobs, illustrationJob{PageImageName(i + 1), PagePrompt(info, i, t)})
	}

	for i, job := range jobs {
		pr.UpdateOutput(fmt.Sprintf("Illustrating %s (%d of %d)", job.name, i+1, len(jobs)))
		var data []byte
		if canFollow && reference != nil {
			data, err = follower.ImageFromReference(job.prompt, reference, g.Steps, g.Width, g.Height, g.Model, pr)
		} else {
			data, err = g.Images.ImageGenerate(job.prompt, g.Steps, g.Width, g.Height, g.Model, pr)
		}
		generated := err == nil
		if err != nil {
			if !g.Placeholder {
				return fmt.Errorf("generating %s: %w", job.name, err)
			}
			g.logger().Warn("illustration failed, using placeholder", zap.String("image", job.name), zap.Error(err))
			data, err = placeholderJPEG("IMAGE UNAVAILABLE", job.prompt, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
			if err != nil {
				return err
			}
		}
		path, err := SaveImage(data, dir, job.name)
		if err != nil {
			return err
		}
		if job.name == CoverName && reference == nil && generated {
			if reference, err = os.ReadFile(path); err != nil {
				return fmt.Errorf("reading cover as reference: %w", err)
			}
		}
	}
	return nil
}

// loadReference reads the reference image. A relative path that does not
// exist is looked up in the book folder.
func loadReference(path, dir string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !filepath.IsAbs(path) {
		data, err = os.ReadFile(filepath.Join(dir, path))
	}
	if err != nil {
		return nil, fmt.Errorf("reading reference image: %w", err)
	}
	return data, nil
}

// Generate writes a new book folder under root: prompt.json, the story and
// every illustration.
func (g *Generator) Generate(info BookInfo, root string, p progressor) (*Book, error) {
	pr := orNull(p)
	dir := info.Dir(root)
	if err := SaveInfo(info, dir); err != nil {
		return nil, err
	}
	texts, err := g.GenerateStory(info, pr)
	if err != nil {
		return nil, err
	}
	book := &Book{Info: info, Dir: dir, Texts: texts}
	if err := SaveToFiles(book, dir); err != nil {
		return nil, err
	}
	if g.Images != nil {
		if err := g.GenerateIllustrations(info, texts, dir, pr); err != nil {
			return nil, err
		}
	}
	g.logger().Info("generated book", zap.String("title", info.Title), zap.String("dir", dir), zap.Int("pages", len(texts)))
	return LoadBook(dir)
}
