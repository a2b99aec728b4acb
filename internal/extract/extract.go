// Package extract parses decoded HTML for the page title and outbound
// links. Parsing is tolerant: malformed markup never fails, it just
// yields whatever signal could be recovered.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/doublexl-digital/cloudflare-crawler/internal/crawler"
)

// Result holds the signal pulled from one page.
type Result struct {
	Title string
	Links []string
}

// Page extracts the first title element's text and the set of normalized
// outbound links, resolved against base. Links are deduplicated by their
// canonical string; anchors without an href attribute are ignored.
func Page(base *url.URL, body string) Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return Result{}
	}

	res := Result{Title: doc.Find("title").First().Text()}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		link, ok := crawler.NormalizeLink(base, href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		res.Links = append(res.Links, link)
	})
	return res
}
