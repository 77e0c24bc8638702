package bookcompiler

import (
	"fmt"
	"image"

	"go.uber.org/zap"
)

// Illustration supplies a page image on demand so that a long book never
// holds every decoded image at once.
type Illustration interface {
	Load() (image.Image, error)
}

// Raster wraps an already decoded image.
type Raster struct{ image.Image }

func (r Raster) Load() (image.Image, error) {
	if r.Image == nil {
		return nil, fmt.Errorf("nil image: %w", ErrContentMismatch)
	}
	return r.Image, nil
}

// ImageFile is an illustration decoded from disk when its page is composed.
type ImageFile string

func (f ImageFile) Load() (image.Image, error) {
	if f == "" {
		return nil, fmt.Errorf("no illustration file: %w", ErrContentMismatch)
	}
	return LoadImage(string(f))
}

// Paginator turns index-aligned passages and illustrations into pages.
type Paginator struct {
	Compositor *Compositor
	// FirstPage is the physical page number of the first story page.
	FirstPage int
	Log       *zap.Logger
}

// Paginate composes one page per (text, image) pair, in order.
func Paginate(texts []string, images []image.Image, c *Compositor) ([]*ComposedPage, error) {
	ill := make([]Illustration, len(images))
	for i, img := range images {
		ill[i] = Raster{img}
	}
	var pages []*ComposedPage
	p := &Paginator{Compositor: c, FirstPage: 1}
	err := p.Each(texts, ill, func(page *ComposedPage) error {
		pages = append(pages, page)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// Each composes the pages in order and hands each to fn as soon as it is
// ready. Counts and missing illustrations are checked before any page is
// composed, and the first failure stops the run.
func (p *Paginator) Each(texts []string, images []Illustration, fn func(*ComposedPage) error) error {
	if len(texts) == 0 {
		return ErrEmptyBook
	}
	if len(texts) != len(images) {
		return fmt.Errorf("%w: %d passages, %d illustrations", ErrContentMismatch, len(texts), len(images))
	}
	first := p.FirstPage
	if first < 1 {
		first = 1
	}
	for i, ill := range images {
		if ill == nil {
			return fmt.Errorf("%w: page %d has no illustration", ErrContentMismatch, first+i)
		}
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	for i, text := range texts {
		index := first + i
		img, err := images[i].Load()
		if err != nil {
			return fmt.Errorf("page %d: loading illustration: %w", index, err)
		}
		page, err := p.Compositor.Compose(PageContent{Index: index, Kind: StoryPage, Text: text, Image: img})
		if err != nil {
			log.Error("page failed", zap.Int("page", index), zap.Error(err))
			return err
		}
		if err := fn(page); err != nil {
			return fmt.Errorf("page %d: %w", index, err)
		}
	}
	return nil
}
