package wordpress

import (
	"regexp"
	"strings"
)

// htmlRule rewrites one HTML construct to its markdown form. Rules run in
// order; nested constructs rely on inline rules running before block rules.
type htmlRule struct {
	pattern *regexp.Regexp
	replace string
}

var htmlRules = []htmlRule{
	// Headings
	{regexp.MustCompile(`(?s)<h1[^>]*>(.*?)</h1>`), "# $1\n"},
	{regexp.MustCompile(`(?s)<h2[^>]*>(.*?)</h2>`), "## $1\n"},
	{regexp.MustCompile(`(?s)<h3[^>]*>(.*?)</h3>`), "### $1\n"},
	{regexp.MustCompile(`(?s)<h4[^>]*>(.*?)</h4>`), "#### $1\n"},

	// Bold and italic
	{regexp.MustCompile(`(?s)<strong[^>]*>(.*?)</strong>`), "**$1**"},
	{regexp.MustCompile(`(?s)<b[^>]*>(.*?)</b>`), "**$1**"},
	{regexp.MustCompile(`(?s)<em[^>]*>(.*?)</em>`), "*$1*"},
	{regexp.MustCompile(`(?s)<i[^>]*>(.*?)</i>`), "*$1*"},

	// Links
	{regexp.MustCompile(`(?s)<a[^>]*href="([^"]*)"[^>]*>(.*?)</a>`), "[$2]($1)"},

	// Images
	{regexp.MustCompile(`(?s)<img[^>]*src="([^"]*)"[^>]*alt="([^"]*)"[^>]*/?>`), "![$2]($1)"},
	{regexp.MustCompile(`(?s)<img[^>]*src="([^"]*)"[^>]*/?>`), "![]($1)"},

	// Lists
	{regexp.MustCompile(`<ul[^>]*>`), ""},
	{regexp.MustCompile(`</ul>`), "\n"},
	{regexp.MustCompile(`<ol[^>]*>`), ""},
	{regexp.MustCompile(`</ol>`), "\n"},
	{regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`), "- $1\n"},

	// Code blocks
	{regexp.MustCompile(`(?s)<pre[^>]*><code[^>]*>(.*?)</code></pre>`), "```\n$1\n```\n"},
	{regexp.MustCompile("(?s)<code[^>]*>(.*?)</code>"), "`$1`"},
}

var (
	blockquotePattern = regexp.MustCompile(`(?s)<blockquote[^>]*>(.*?)</blockquote>`)
	paragraphPattern  = regexp.MustCompile(`(?s)<p[^>]*>(.*?)</p>`)
	lineBreakPattern  = regexp.MustCompile(`<br\s*/?>`)
	rulePattern       = regexp.MustCompile(`<hr\s*/?>`)
	leftoverPattern   = regexp.MustCompile(`<[^>]+>`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
)

// HTMLToMarkdown converts WordPress post HTML to markdown. Unrecognized tags
// are stripped, never kept, so round-tripping through the renderer cannot
// reintroduce unexpected markup.
func HTMLToMarkdown(html string) string {
	if html == "" {
		return ""
	}

	md := html
	for _, rule := range htmlRules {
		md = rule.pattern.ReplaceAllString(md, rule.replace)
	}

	md = blockquotePattern.ReplaceAllStringFunc(md, func(block string) string {
		inner := blockquotePattern.FindStringSubmatch(block)[1]
		inner = strings.TrimSpace(inner)
		return "> " + strings.ReplaceAll(inner, "\n", "\n> ") + "\n"
	})

	md = paragraphPattern.ReplaceAllString(md, "$1\n\n")
	md = lineBreakPattern.ReplaceAllString(md, "\n")
	md = rulePattern.ReplaceAllString(md, "\n---\n")
	md = leftoverPattern.ReplaceAllString(md, "")
	md = blankRunPattern.ReplaceAllString(md, "\n\n")

	return strings.TrimSpace(md)
}
