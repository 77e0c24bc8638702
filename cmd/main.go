package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/opd-ai/storybook/bookcompiler"
	storybook "github.com/opd-ai/storybook/src"
)

var (
	booksDir     = flag.String("books", "books", "directory holding one folder per book")
	bookName     = flag.String("book", "", "book folder to compile (name under -books, or a path)")
	all          = flag.Bool("all", false, "compile every book folder under -books")
	generate     = flag.String("generate", "none", "create a new book first: claude (Claude text, AI Horde images), local (Claude text, SD WebUI images), demo or none")
	title        = flag.String("title", "", "title of a new book")
	topic        = flag.String("topic", "", "what a new book is about")
	pages        = flag.Int("pages", 12, "number of story pages in a new book")
	bookType     = flag.String("type", "story", "story or rhyme")
	style        = flag.String("style", "soft watercolour", "illustration style of a new book")
	author       = flag.String("author", "", "author recorded in the PDF metadata")
	reference    = flag.String("reference", "", "image that keeps a new book's characters consistent")
	placeholder  = flag.Bool("placeholder", false, "use placeholder images when illustration fails")
	trimWidth    = flag.Float64("width", 8.5, "trim width in inches")
	trimHeight   = flag.Float64("height", 8.5, "trim height in inches")
	dpi          = flag.Int("dpi", bookcompiler.ReferenceDPI, "raster resolution")
	bleed        = flag.Bool("bleed", false, "add 0.125in bleed to interior pages")
	spineMin     = flag.Int("spine-threshold", 100, "minimum page count for a spine with text")
	bookends     = flag.Bool("bookends", false, "add the front (or generated title page) and back cover images as first and last manuscript pages")
	backFallback = flag.String("back-fallback", "blank", "back cover without an image: blank or mirror")
	fontPath     = flag.String("font", "", "TrueType font for story text (default Go Bold)")
	upscale      = flag.Bool("upscale", false, "enlarge illustrations smaller than their frame")
	verify       = flag.Bool("verify", false, "re-read written PDFs and check page count and size")
	debug        = flag.Bool("debug", false, "development logging")
)

type printer struct{}

func (printer) UpdateOutput(message string) {
	fmt.Println(message)
}

func main() {
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := buildConfig()
	if err != nil {
		fmt.Printf("Error in configuration: %v\n", err)
		os.Exit(1)
	}
	bc, err := bookcompiler.NewBookCompiler(cfg, logger)
	if err != nil {
		fmt.Printf("Error creating compiler: %v\n", err)
		os.Exit(1)
	}

	var dirs []string
	switch {
	case *generate != "none":
		book, err := generateBook(logger)
		if err != nil {
			fmt.Printf("Error generating book: %v\n", err)
			os.Exit(1)
		}
		dirs = []string{book.Dir}
	case *all:
		dirs, err = storybook.ListBooks(*booksDir)
		if err != nil {
			fmt.Printf("Error listing books: %v\n", err)
			os.Exit(1)
		}
	case *bookName != "":
		dirs = []string{resolveBookDir(*booksDir, *bookName)}
	default:
		fmt.Println("Please choose a book with -book, -all or -generate")
		flag.Usage()
		os.Exit(2)
	}

	failed := 0
	for _, dir := range dirs {
		if err := compile(bc, dir, logger); err != nil {
			fmt.Printf("Error compiling %s: %v\n", dir, err)
			failed++
		}
	}
	if failed > 0 {
		fmt.Printf("%d of %d books failed\n", failed, len(dirs))
		os.Exit(1)
	}
	fmt.Println("Book compilation complete!")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func buildConfig() (bookcompiler.Config, error) {
	cfg := bookcompiler.DefaultConfig()
	cfg.Trim.WidthIn = *trimWidth
	cfg.Trim.HeightIn = *trimHeight
	cfg.Trim.DPI = *dpi
	cfg.Trim.Bleed = *bleed
	cfg.Spine.TextMinPages = *spineMin
	cfg.Typography.FontPath = *fontPath
	cfg.Layout.AllowUpscale = *upscale
	cfg.IncludeBookends = *bookends
	cfg.VerifyOutput = *verify
	fb, err := bookcompiler.ParseBackFallback(*backFallback)
	if err != nil {
		return cfg, err
	}
	cfg.BackFallback = fb
	if err := cfg.Trim.Validate(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Spine.Validate(cfg.Trim.DPI)
}

// resolveBookDir accepts an existing path or a title.
func resolveBookDir(root, name string) string {
	if st, err := os.Stat(name); err == nil && st.IsDir() {
		return name
	}
	return filepath.Join(root, storybook.FolderName(name))
}

func compile(bc *bookcompiler.BookCompiler, dir string, logger *zap.Logger) error {
	book, err := storybook.LoadBook(dir)
	if err != nil {
		return err
	}
	src := book.Source()
	if *author != "" {
		src.Author = *author
	}
	fmt.Printf("Compiling %q: %d pages\n", book.Info.Title, len(book.Texts))
	res, err := bc.CompileBook(src, dir, printer{})
	if err != nil {
		if bookcompiler.IsInputError(err) {
			logger.Warn("book content rejected", zap.String("dir", dir), zap.Error(err))
		}
		return err
	}
	fmt.Printf("Wrote %s (%d pages) and %s\n", res.ManuscriptPath, res.Pages, res.CoverPath)
	return nil
}

func generateBook(logger *zap.Logger) (*storybook.Book, error) {
	if *title == "" {
		return nil, fmt.Errorf("-title is required with -generate")
	}
	if *pages < storybook.MinPages {
		return nil, fmt.Errorf("-pages must be at least %d", storybook.MinPages)
	}
	g, err := newGenerator(*generate, logger)
	if err != nil {
		return nil, err
	}
	g.TitlePage = *bookends
	info := storybook.BookInfo{
		Title:    *title,
		Topic:    *topic,
		Pages:    *pages,
		BookType: *bookType,
		Style:    *style,
		Author:   *author,
	}
	if info.ReferenceImage, err = referencePath(*reference); err != nil {
		return nil, err
	}
	return g.Generate(info, *booksDir, printer{})
}

// referencePath makes a reference image path absolute so prompt.json stays
// valid from any working directory.
func referencePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving -reference: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("-reference: %w", err)
	}
	return abs, nil
}

func newGenerator(backend string, logger *zap.Logger) (*storybook.Generator, error) {
	g := &storybook.Generator{Placeholder: *placeholder, Log: logger}
	switch backend {
	case "demo":
		g.Text, g.Images = storybook.DemoClient{}, storybook.DemoClient{}
		return g, nil
	case "claude", "local":
	default:
		return nil, fmt.Errorf("unknown generator %q", backend)
	}

	apiKey := os.Getenv("CLAUDE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("please set CLAUDE_API_KEY environment variable")
	}
	g.Text = storybook.NewClaudeClient(apiKey)
	if backend == "local" {
		g.Images = storybook.NewLocalClient(os.Getenv("SD_WEBUI_URL"))
	} else {
		g.Images = storybook.NewHordeClient(os.Getenv("HORDE_API_KEY"))
	}
	return g, nil
}
