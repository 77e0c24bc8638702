package bookcompiler

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParsePassages(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "paragraphs",
			in:   "Once upon a time.\n\nThe end.\n",
			want: []string{"Once upon a time.", "The end."},
		},
		{
			name: "verse keeps line breaks",
			in:   "The cat sat\non the mat\n\nand then it napped.",
			want: []string{"The cat sat\non the mat", "and then it napped."},
		},
		{
			name: "extra blank lines and spaces",
			in:   "\n\n  One   fox  \n\n\n\nTwo owls\n\n",
			want: []string{"One fox", "Two owls"},
		},
		{
			name: "markup characters are story text",
			in:   "Page one.\n\n1. Two little ducks.\n\n2. Three little ducks.\n\n- said the fox, *quietly*.\n\n* * *\n\nThe end.",
			want: []string{
				"Page one.",
				"1. Two little ducks.",
				"2. Three little ducks.",
				"- said the fox, *quietly*.",
				"* * *",
				"The end.",
			},
		},
		{
			name: "whitespace-only separator line",
			in:   "Moss rolled.\n  \t \nPebble waited.",
			want: []string{"Moss rolled.", "Pebble waited."},
		},
		{
			name: "crlf",
			in:   "One fox\r\nran\r\n\r\nTwo owls",
			want: []string{"One fox\nran", "Two owls"},
		},
		{
			name: "empty",
			in:   "   \n\n",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePassages([]byte(tt.in))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseMarkdownPassages(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "emphasis is flattened",
			in:   "A *very* **big** bear.",
			want: []string{"A very big bear."},
		},
		{
			name: "verse keeps line breaks",
			in:   "The cat sat\non the mat\n\nand then it napped.",
			want: []string{"The cat sat\non the mat", "and then it napped."},
		},
		{
			name: "rule is dropped",
			in:   "Page one.\n\n* * *\n\nThe end.",
			want: []string{"Page one.", "The end."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMarkdownPassages([]byte(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadPassages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book_text.txt")
	if err := os.WriteFile(path, []byte("First.\n\n*Second.*\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadPassages(path, PlainText)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"First.", "*Second.*"}; !reflect.DeepEqual(got, want) {
		t.Errorf("plain: got %q, want %q", got, want)
	}
	got, err = LoadPassages(path, Markdown)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"First.", "Second."}; !reflect.DeepEqual(got, want) {
		t.Errorf("markdown: got %q, want %q", got, want)
	}
	if _, err := LoadPassages(path+".missing", PlainText); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCleanText(t *testing.T) {
	tests := map[string]string{
		"no\u00a0break":   "no break",
		"zero\u200bwidth": "zerowidth",
		"cafe\u0301":      "caf\u00e9",
		"tab\there":       "tab here",
		"crlf\r\nline":    "crlf\nline",
		"bell\a":          "bell",
	}
	for in, want := range tests {
		if got := cleanText(in); got != want {
			t.Errorf("cleanText(%q) = %q, want %q", in, got, want)
		}
	}
}
