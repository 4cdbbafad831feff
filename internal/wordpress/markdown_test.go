package wordpress_test

import (
	"testing"

	"quill/internal/wordpress"
)

func TestHTMLToMarkdown(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
	}{
		{"empty", "", ""},
		{"heading", "<h2>Section</h2>", "## Section"},
		{"bold", "<p>Some <strong>bold</strong> text.</p>", "Some **bold** text."},
		{"italic", "<em>soft</em>", "*soft*"},
		{"link", `<a href="https://example.com">docs</a>`, "[docs](https://example.com)"},
		{"image with alt", `<img src="/uploads/2020/01/a.jpg" alt="A photo">`, "![A photo](/uploads/2020/01/a.jpg)"},
		{"image without alt", `<img src="/uploads/2020/01/a.jpg">`, "![](/uploads/2020/01/a.jpg)"},
		{"unordered list", "<ul><li>one</li><li>two</li></ul>", "- one\n- two"},
		{"code block", "<pre><code>x := 1</code></pre>", "```\nx := 1\n```"},
		{"inline code", "run <code>go vet</code> first", "run `go vet` first"},
		{"blockquote", "<blockquote>wise\nwords</blockquote>", "> wise\n> words"},
		{"horizontal rule", "before<hr>after", "before\n---\nafter"},
		{"unknown tags stripped", `<figure class="x">inside</figure>`, "inside"},
		{"paragraphs separated", "<p>first</p><p>second</p>", "first\n\nsecond"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := wordpress.HTMLToMarkdown(tc.html)
			if got != tc.want {
				t.Fatalf("HTMLToMarkdown(%q) = %q, want %q", tc.html, got, tc.want)
			}
		})
	}
}

func TestHTMLToMarkdownCollapsesBlankRuns(t *testing.T) {
	got := wordpress.HTMLToMarkdown("<p>a</p>\n\n\n<p>b</p>")
	if got != "a\n\nb" {
		t.Fatalf("unexpected output: %q", got)
	}
}
