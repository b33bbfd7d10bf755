package eventbrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NoResultsMarker is the text the listing site shows past the last page.
const NoResultsMarker = "Nothing matched your search, but you might like these options."

var eventLinkRe = regexp.MustCompile(`^https://www\.eventbrite\.(?:com|co\.uk)/e/([^"?#]+)`)

// HasNoResults reports whether the page is past the end of the listing.
func HasNoResults(page, marker string) bool {
	if marker == "" {
		marker = NoResultsMarker
	}
	return strings.Contains(page, marker)
}

// ExtractEventIDs returns the distinct event ids linked from a listing page,
// in order of first appearance. A link's id is the last "-" separated segment
// of its slug; slugs whose last segment is not numeric are skipped.
func ExtractEventIDs(page string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		id, ok := EventIDFromURL(href)
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	})
	return ids, nil
}

// EventIDFromURL extracts the event id from an Eventbrite event URL.
func EventIDFromURL(href string) (string, bool) {
	m := eventLinkRe.FindStringSubmatch(strings.TrimSpace(href))
	if m == nil {
		return "", false
	}
	slug := strings.TrimRight(m[1], "/")
	id := slug[strings.LastIndex(slug, "-")+1:]
	if id == "" || strings.Trim(id, "0123456789") != "" {
		return "", false
	}
	return id, true
}
