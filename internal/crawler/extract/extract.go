// Package extract pulls page metadata and outbound links out of parsed HTML.
package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultTitle       = "Untitled"
	DefaultDescription = "No description"
)

// Links is the result of ExtractLinks. URLs keeps document order and
// duplicates; Edges holds each URL once in first-seen order.
type Links struct {
	URLs  []string
	Edges []string
}

// ExtractLinks resolves every a[href] of doc against baseURL. Fragment-only
// and empty hrefs are skipped, protocol-relative and root-relative hrefs are
// completed from the base, and anything else must already be an absolute
// http(s) URL. Fragments are stripped from the result.
func ExtractLinks(doc *goquery.Document, baseURL string) Links {
	links := Links{URLs: []string{}, Edges: []string{}}
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return links
	}
	origin := base.Scheme + "://" + base.Host

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		switch {
		case strings.HasPrefix(href, "//"):
			href = base.Scheme + ":" + href
		case strings.HasPrefix(href, "/"):
			href = origin + href
		case !strings.HasPrefix(href, "http"):
			return
		}
		if i := strings.IndexByte(href, '#'); i >= 0 {
			href = href[:i]
		}
		u, err := url.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return
		}

		links.URLs = append(links.URLs, href)
		if _, dup := seen[href]; !dup {
			seen[href] = struct{}{}
			links.Edges = append(links.Edges, href)
		}
	})
	return links
}

// Title returns the first <title> text, or DefaultTitle.
func Title(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return DefaultTitle
}

// Description returns the meta description, or DefaultDescription.
func Description(doc *goquery.Document) string {
	if content, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		if content = strings.TrimSpace(content); content != "" {
			return content
		}
	}
	return DefaultDescription
}

// BodyText returns the visible body text lower-cased with runs of whitespace
// collapsed to single spaces. Script, style and noscript content is dropped.
func BodyText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return strings.ToLower(strings.Join(strings.Fields(body.Text()), " "))
}

// HasNoIndex reports whether raw contains "noindex" in any letter case.
func HasNoIndex(raw []byte) bool {
	return bytes.Contains(bytes.ToLower(raw), []byte("noindex"))
}
