package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/opd-ai/storybook/bookcompiler"
)

// BuildTimeout bounds a single build.
const BuildTimeout = 15 * time.Minute

// BuildRequest is the JSON body of POST /api/books. Images are base64
// encoded JPEG, PNG or WebP files, one per text.
type BuildRequest struct {
	Title     string   `json:"title"`
	Author    string   `json:"author,omitempty"`
	Texts     []string `json:"texts"`
	Images    []string `json:"images"`
	Cover     string   `json:"cover"`
	Back      string   `json:"back,omitempty"`
	TitlePage string   `json:"title_page,omitempty"`
	Bleed     bool     `json:"bleed,omitempty"`
	Bookends  bool     `json:"bookends,omitempty"`
	PageCount int      `json:"page_count,omitempty"`
}

// Validate rejects requests that can never compile, before a build is queued.
func (r BuildRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(r.Texts) == 0 {
		return bookcompiler.ErrEmptyBook
	}
	if len(r.Texts) != len(r.Images) {
		return fmt.Errorf("%w: %d texts, %d images", bookcompiler.ErrContentMismatch, len(r.Texts), len(r.Images))
	}
	if r.Cover == "" {
		return bookcompiler.ErrMissingCoverAsset
	}
	if r.PageCount < 0 {
		return fmt.Errorf("page_count must not be negative")
	}
	return nil
}

// encodedImage decodes on Load so that only one page image is held at a time.
type encodedImage []byte

func (e encodedImage) Load() (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(e), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding illustration: %w", err)
	}
	return img, nil
}

func decodeBase64(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

// writeCoverAsset stores a cover image in dir so the compiler can read it by path.
func writeCoverAsset(dir, name, encoded string) (string, error) {
	data, err := decodeBase64(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", bookcompiler.ErrMissingCoverAsset, name, err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", bookcompiler.ErrMissingCoverAsset, name, err)
	}
	path := filepath.Join(dir, name+".png")
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("saving %s: %w", name, err)
	}
	return path, nil
}

// RunBuild compiles req into outDir, reporting each step through progress.
// The returned Result may be non-nil alongside an error when the manuscript
// was written but the cover was not.
func RunBuild(ctx context.Context, progress *BuildProgress, req BuildRequest, cfg bookcompiler.Config, outDir string, logger *zap.Logger) (*bookcompiler.Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(ctx, BuildTimeout)
	defer cancel()

	cfg.Trim.Bleed = req.Bleed
	cfg.IncludeBookends = req.Bookends

	var (
		bc     *bookcompiler.BookCompiler
		src    = bookcompiler.BookSource{Title: req.Title, Author: req.Author, PageCount: req.PageCount}
		result *bookcompiler.Result
	)

	steps := []struct {
		name     string
		function func() error
	}{
		{
			name: "preparing compiler",
			function: func() error {
				progress.UpdateOutput("Preparing page layout...")
				var err error
				bc, err = bookcompiler.NewBookCompiler(cfg, logger)
				if err != nil {
					return err
				}
				return os.MkdirAll(outDir, 0o755)
			},
		},
		{
			name: "decoding images",
			function: func() error {
				progress.UpdateOutput("Decoding illustrations...")
				src.Texts = req.Texts
				src.Images = make([]bookcompiler.Illustration, len(req.Images))
				for i, encoded := range req.Images {
					data, err := decodeBase64(encoded)
					if err != nil {
						return fmt.Errorf("%w: image %d: %v", bookcompiler.ErrContentMismatch, i+1, err)
					}
					src.Images[i] = encodedImage(data)
				}
				var err error
				if src.Front, err = writeCoverAsset(outDir, "front", req.Cover); err != nil {
					return err
				}
				if req.Back != "" {
					if src.Back, err = writeCoverAsset(outDir, "back", req.Back); err != nil {
						logger.Warn("unusable back cover, using fallback", zap.Error(err))
						progress.UpdateOutput("Back cover unreadable, using fallback")
						src.Back = ""
					}
				}
				if req.TitlePage != "" {
					if src.TitlePage, err = writeCoverAsset(outDir, "title", req.TitlePage); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			name: "compiling book",
			function: func() error {
				var err error
				result, err = bc.CompileBook(src, outDir, progress)
				return err
			},
		},
	}

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return result, fmt.Errorf("build timed out during %s", step.name)
		default:
		}
		if err := step.function(); err != nil {
			logger.Error("build step failed", zap.String("step", step.name), zap.Error(err))
			return result, fmt.Errorf("failed during %s: %w", step.name, err)
		}
	}
	return result, nil
}
