package bookcompiler

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
	"golang.org/x/net/html"
)

// TextFormat selects how a story text file is split into passages.
type TextFormat int

const (
	// PlainText splits on blank lines and keeps every character.
	PlainText TextFormat = iota
	// Markdown renders the text first, so markup characters are consumed.
	Markdown
)

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// LoadPassages reads a story text file and returns one passage per page.
func LoadPassages(path string, format TextFormat) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	if format == Markdown {
		return ParseMarkdownPassages(content)
	}
	return ParsePassages(content), nil
}

// ParsePassages splits plain text into passages. Blocks are separated by
// blank lines; a single newline inside a block is kept as a line break so
// verse keeps its shape. List markers, asterisks and scene breaks are story
// text and stay as written.
func ParsePassages(content []byte) []string {
	var passages []string
	for _, block := range blankLine.Split(cleanText(string(content)), -1) {
		if text := tidyLines(block); text != "" {
			passages = append(passages, text)
		}
	}
	return passages
}

// ParseMarkdownPassages renders markdown and returns one passage per
// top-level block. Emphasis and list markers are dropped; rules and images
// produce no passage.
func ParseMarkdownPassages(content []byte) ([]string, error) {
	htmlContent := blackfriday.Run(content,
		blackfriday.WithExtensions(blackfriday.CommonExtensions|blackfriday.HardLineBreak))

	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	body := findElement(doc, "body")
	if body == nil {
		return nil, nil
	}

	var passages []string
	for n := body.FirstChild; n != nil; n = n.NextSibling {
		var sb strings.Builder
		renderBlock(&sb, n)
		if text := tidyLines(cleanText(sb.String())); text != "" {
			passages = append(passages, text)
		}
	}
	return passages, nil
}

// renderBlock flattens a block element to plain text with explicit line
// breaks.
func renderBlock(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		return
	case html.ElementNode:
		switch n.Data {
		case "br":
			sb.WriteString("\n")
			return
		case "li":
			renderChildren(sb, n)
			sb.WriteString("\n")
			return
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre":
			renderChildren(sb, n)
			sb.WriteString("\n")
			return
		case "hr", "img":
			return
		}
	}
	renderChildren(sb, n)
}

func renderChildren(sb *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderBlock(sb, c)
	}
}

// tidyLines trims each line and drops leading and trailing blank lines.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
