package render_test

import (
	"strings"
	"testing"

	"quill/internal/render"
)

func TestHTMLRendersMarkdown(t *testing.T) {
	r := render.New()
	got, err := r.HTML("# Title\n\nSome **bold** text.")
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	if !strings.Contains(got, "<h1") || !strings.Contains(got, "Title") {
		t.Fatalf("expected heading in output: %q", got)
	}
	if !strings.Contains(got, "<strong>bold</strong>") {
		t.Fatalf("expected bold text in output: %q", got)
	}
}

func TestHTMLStripsScripts(t *testing.T) {
	r := render.New()
	got, err := r.HTML("Hello <script>alert('x')</script> world")
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	if strings.Contains(got, "<script") || strings.Contains(got, "alert") {
		t.Fatalf("expected script stripped: %q", got)
	}
	if !strings.Contains(got, "Hello") || !strings.Contains(got, "world") {
		t.Fatalf("expected surrounding text kept: %q", got)
	}
}

func TestHTMLKeepsImages(t *testing.T) {
	r := render.New()
	got, err := r.HTML(`![alt text](https://example.com/a.jpg)`)
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	if !strings.Contains(got, "<img") || !strings.Contains(got, "https://example.com/a.jpg") {
		t.Fatalf("expected image kept: %q", got)
	}
}

func TestHTMLKeepsRelativeUploadImages(t *testing.T) {
	r := render.New()
	got, err := r.HTML(`![cover](/uploads/images/2020/01/cover.jpg)`)
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	if !strings.Contains(got, "/uploads/images/2020/01/cover.jpg") {
		t.Fatalf("expected relative upload URL kept: %q", got)
	}
}

func TestHTMLKeepsInlineHTMLImages(t *testing.T) {
	r := render.New()
	got, err := r.HTML(`Before <img src="https://example.com/b.png" alt="b"> after`)
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	if !strings.Contains(got, "https://example.com/b.png") {
		t.Fatalf("expected inline HTML image kept: %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	cases := []struct {
		name     string
		markdown string
		maxLen   int
		want     string
	}{
		{"plain text unchanged", "Short post body.", 50, "Short post body."},
		{"markup stripped", "# Title\n\nSome **bold** text.", 50, "Title Some bold text."},
		{"images removed", "![pic](a.jpg) then words", 50, "then words"},
		{"links keep text", "see [the docs](https://example.com) here", 50, "see the docs here"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := render.Excerpt(tc.markdown, tc.maxLen); got != tc.want {
				t.Fatalf("Excerpt = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExcerptTruncatesAtWordBoundary(t *testing.T) {
	got := render.Excerpt("one two three four five six", 13)
	if got != "one two three…" && got != "one two…" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if len([]rune(got)) > 15 {
		t.Fatalf("excerpt too long: %q", got)
	}
}
