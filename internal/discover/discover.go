// Package discover parses listing pages for document links, detail-page
// links, and pagination.
package discover

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// docExtensions are the recognised document markers, longest first so that
// .xlsx wins over .xls and .docx over .doc.
var docExtensions = []string{".xlsx", ".docx", ".pdf", ".xls", ".csv", ".doc"}

// nextLabels are the anchor texts that mark a pagination "next" link.
var nextLabels = map[string]bool{
	"next":      true,
	"next page": true,
	"›":         true,
	"»":         true,
}

// DocumentLinks scans anchors for document links and returns a set of
// absolute URL → extension. Matching is substring-based on the decoded href,
// not suffix-based: the source site embeds the filename mid-path with a
// tracking suffix after it (/documents/123/abc/name.pdf/<uuid>?t=...).
func DocumentLinks(html, base string) map[string]string {
	links := map[string]string{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return links
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return links
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "javascript") {
			return
		}

		decoded := strings.ToLower(decodeHref(href))
		for _, ext := range docExtensions {
			if strings.Contains(decoded, ext) {
				if abs := resolve(baseURL, href); abs != "" {
					links[abs] = ext
				}
				return
			}
		}
	})

	return links
}

// DetailLinks returns the set of absolute URLs of document-detail pages:
// indirection pages that must themselves be fetched and scanned for
// document links.
func DetailLinks(html, base string) map[string]bool {
	links := map[string]bool{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return links
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return links
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if strings.Contains(href, "document-detail") && strings.Contains(href, "documentId") {
			if abs := resolve(baseURL, href); abs != "" {
				links[abs] = true
			}
		}
	})

	return links
}

// NextPage locates the pagination "next" link and returns its absolute URL,
// or "" when there is none. A link that resolves back to the current URL is
// treated as absent — the cycle guard against sites whose last page links
// to itself.
func NextPage(html, current string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	currentURL, err := url.Parse(current)
	if err != nil {
		return ""
	}

	next := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "javascript") {
			return true
		}
		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		if !nextLabels[text] {
			return true
		}
		next = resolve(currentURL, href)
		return false
	})

	if next == current {
		return ""
	}
	return next
}

// decodeHref URL-decodes an href for extension matching; the raw href is
// still what gets resolved and fetched.
func decodeHref(href string) string {
	if decoded, err := url.QueryUnescape(href); err == nil {
		return decoded
	}
	return href
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
