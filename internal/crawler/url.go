package crawler

import (
	"net/url"
	"strings"
)

// Href prefixes that are never navigable page links.
var skippedHrefPrefixes = []string{"javascript:", "mailto:", "tel:", "#"}

// NormalizeLink resolves href against base and canonicalizes the result
// into the form scheme://host[:port]path[?query]. The authority is
// lowercased, the fragment is dropped, and the path and query are kept
// byte for byte. The boolean is false when the href is rejected: pseudo
// schemes, in-page fragments, unparseable references, and anything that
// does not resolve to http or https.
func NormalizeLink(base *url.URL, href string) (string, bool) {
	for _, prefix := range skippedHrefPrefixes {
		if strings.HasPrefix(href, prefix) {
			return "", false
		}
	}

	resolved, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}

	var b strings.Builder
	b.WriteString(resolved.Scheme)
	b.WriteString("://")
	b.WriteString(strings.ToLower(resolved.Host))
	b.WriteString(resolved.EscapedPath())
	if resolved.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(resolved.RawQuery)
	}
	return b.String(), true
}
