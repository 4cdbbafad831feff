// Package slug derives URL-safe identifiers from post and tag titles.
//
// Slugs are lowercase ASCII with hyphens between words. Accented characters
// are folded to their base form before non-alphanumeric runs collapse to a
// single hyphen, so "Café Culture" becomes "cafe-culture".
package slug

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxLength caps slugs so they stay usable in URLs and filenames.
const maxLength = 80

var hyphenRunPattern = regexp.MustCompile(`[^a-z0-9]+`)

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Make derives a slug from a title. Empty or fully non-alphanumeric titles
// produce "post".
func Make(title string) string {
	folded, _, err := transform.String(foldTransformer, title)
	if err != nil {
		folded = title
	}
	lowered := strings.ToLower(folded)
	slugged := hyphenRunPattern.ReplaceAllString(lowered, "-")
	slugged = strings.Trim(slugged, "-")
	if len(slugged) > maxLength {
		slugged = strings.Trim(slugged[:maxLength], "-")
	}
	if slugged == "" {
		return "post"
	}
	return slugged
}

// Checker reports whether a candidate slug is already taken.
type Checker interface {
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
}

// Unique derives a slug from title and suffixes it with -2, -3, ... until the
// checker reports it free. excludeID lets updates keep their own slug.
func Unique(ctx context.Context, checker Checker, title string, excludeID int64) (string, error) {
	base := Make(title)
	candidate := base
	for attempt := 2; ; attempt++ {
		taken, err := checker.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
}
