package storybook

import (
	"fmt"
	"strings"
)

const systemPrompt = `You write and illustrate children's picture books.
Keep the story, the characters and the illustrations consistent from the first page to the last.
Do this without asking for confirmation or direction.`

// StoryPrompt asks for exactly one paragraph per page.
func StoryPrompt(info BookInfo) string {
	form := "a story"
	if info.Rhyming() {
		form = "a rhyming story in short verses"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %d-page children's picture book as %s. ", info.Pages, form)
	fmt.Fprintf(&b, "The title is %q and it is about %s. ", info.Title, info.Topic)
	fmt.Fprintf(&b, "Output exactly %d paragraphs, one for each page, in order, separated by a single blank line. ", info.Pages)
	b.WriteString("Do not add page numbers, headings or any other text. ")
	b.WriteString("Use short sentences, simple words and simple punctuation that a three year old can follow.")
	if info.Rhyming() {
		b.WriteString(" Put each line of a verse on its own line.")
	}
	return b.String()
}

// CoverPrompt describes the front cover illustration.
func CoverPrompt(info BookInfo, story string) string {
	return fmt.Sprintf("A square front cover illustration for the children's book %q, about %s. "+
		"Story summary: %s. Style: %s. "+
		"Establish the main character's look; every later illustration will follow it. "+
		"Keep any lettering well away from the edges.",
		info.Title, info.Topic, summarize(story, 600), info.Style)
}

// BackCoverPrompt describes the back cover illustration.
func BackCoverPrompt(info BookInfo) string {
	return fmt.Sprintf("A square illustration of the central character or object of the children's book %q, "+
		"centred on a simple background. Style: %s. No letters or text anywhere.",
		info.Title, info.Style)
}

// TitlePagePrompt describes an illustrated title page carrying the title.
func TitlePagePrompt(info BookInfo) string {
	return fmt.Sprintf("A clean, square title page for the children's book %q: the main character in the centre "+
		"with the title written in large clear letters below. Style: %s, matching the cover.",
		info.Title, info.Style)
}

// PagePrompt describes the illustration for one page. index is 0-based.
func PagePrompt(info BookInfo, index int, text string) string {
	return fmt.Sprintf("A square illustration for page %d of the children's book %q. Style: %s, matching the cover. "+
		"The main character looks exactly as on the cover. Vary the pose, the setting and the objects from other pages. "+
		"The text on this page reads: %s "+
		"Do not draw any text; the words are printed separately.",
		index+1, info.Title, info.Style, text)
}

func summarize(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
