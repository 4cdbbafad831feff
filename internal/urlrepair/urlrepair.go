// Package urlrepair fixes media URLs corrupted by an earlier migration pass
// that prepended the WordPress media host to uploads links repeatedly. A
// corrupted link looks like
//
//	https://host/wp-content/uploads/https://host/wp-content/uploads/2020/01/a.jpg
//
// Collapse rewrites every such link to exactly one host prefix followed by the
// dated uploads path. Clean links rebuild to themselves, so the pass is
// idempotent and safe to run on every startup.
package urlrepair

import (
	"regexp"
	"strings"
)

var (
	urlPattern   = regexp.MustCompile(`https?://[^)\s"'<>]+`)
	tailPattern  = regexp.MustCompile(`/uploads/(?:images/)?(\d{4}/\d{2}/[^)\s"'<>]+)$`)
	localPattern = regexp.MustCompile(`^/uploads/(?:images/)?(\d{4}/\d{2}/.+)$`)
)

// Repairer rewrites corrupted uploads URLs against a single media host.
type Repairer struct {
	host string
}

// New returns a Repairer for the given media host, e.g.
// "example.wordpress.com". A host without a scheme is served over https.
func New(host string) *Repairer {
	return &Repairer{host: host}
}

// Host returns the configured media host.
func (r *Repairer) Host() string {
	return r.host
}

// Collapse rewrites every corrupted uploads URL in content to its canonical
// form. URLs not referencing the media host, and text outside URLs, pass
// through untouched. Collapse(Collapse(s)) == Collapse(s).
func (r *Repairer) Collapse(content string) string {
	if r.host == "" || !strings.Contains(content, r.host) {
		return content
	}
	return urlPattern.ReplaceAllStringFunc(content, func(url string) string {
		if !strings.Contains(url, r.host) {
			return url
		}
		match := tailPattern.FindStringSubmatch(url)
		if match == nil {
			return url
		}
		return r.canonical(match[1])
	})
}

// CanonicalUploadsURL maps a URL found in post content to the canonical media
// host form. Local /uploads/ paths are rewritten to the host, corrupted host
// URLs are collapsed, and external URLs pass through. Returns "" when the URL
// cannot be mapped.
func (r *Repairer) CanonicalUploadsURL(url string) string {
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "http") {
		if r.host != "" && strings.Contains(url, r.host) {
			if match := tailPattern.FindStringSubmatch(url); match != nil {
				return r.canonical(match[1])
			}
		}
		return url
	}
	if r.host != "" {
		if match := localPattern.FindStringSubmatch(url); match != nil {
			return r.canonical(match[1])
		}
	}
	if strings.HasPrefix(url, "/uploads/") {
		return ""
	}
	return url
}

func (r *Repairer) canonical(path string) string {
	base := r.host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return base + "/wp-content/uploads/" + path
}
