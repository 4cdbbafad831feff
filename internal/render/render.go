// Package render converts post markdown to sanitized HTML. Stored HTML is
// always derived here; write paths that change markdown must re-render before
// saving so the two columns never drift.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts markdown to HTML and strips markup for excerpts.
type Renderer struct {
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// New returns a Renderer with GitHub-flavored tables, strikethrough, and
// autolinks enabled. Raw HTML in the markdown source is kept through
// rendering and then sanitized, matching how imported WordPress content
// mixes HTML into markdown.
func New() *Renderer {
	markdown := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.Linkify,
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)

	policy := bluemonday.UGCPolicy()
	// Local /uploads/ image references must survive sanitization.
	policy.AllowRelativeURLs(true)
	policy.AllowAttrs("class").OnElements("code", "pre", "span")
	policy.AllowAttrs("loading").OnElements("img")

	return &Renderer{markdown: markdown, policy: policy}
}

// HTML renders markdown to sanitized HTML.
func (r *Renderer) HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	imagePattern      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkPattern       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// Excerpt produces a plain-text summary of at most maxLen runes from
// markdown, cutting at a word boundary and appending an ellipsis when
// truncated.
func Excerpt(markdown string, maxLen int) string {
	text := imagePattern.ReplaceAllString(markdown, "")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = tagPattern.ReplaceAllString(text, "")
	text = strings.NewReplacer("#", "", "*", "", "`", "", ">", "").Replace(text)
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	cut := string(runes[:maxLen])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
