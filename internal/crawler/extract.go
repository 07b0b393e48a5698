package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"mvdan.cc/xurls/v2"
)

// LinkExtractor finds candidate URLs in a fetched body.
// Implementations must be pure functions of their input: no network or
// file access, and safe for concurrent use by many fetch units.
type LinkExtractor interface {
	// ExtractLinks returns the URLs found in body. pageURL is the URL the
	// body was fetched from and may be used to resolve relative links.
	// An error means the body could not be analysed; the crawler then
	// treats the page as having no links.
	ExtractLinks(pageURL, body string) ([]string, error)
}

// ExtractorFunc adapts a function to the LinkExtractor interface.
type ExtractorFunc func(pageURL, body string) ([]string, error)

// ExtractLinks calls f(pageURL, body).
func (f ExtractorFunc) ExtractLinks(pageURL, body string) ([]string, error) {
	return f(pageURL, body)
}

// TextExtractor finds absolute URLs anywhere in the text, whatever the
// markup around them. It does not resolve relative links.
type TextExtractor struct {
	re *regexp.Regexp
}

// webURL matches absolute http and https URLs.
var webURL = mustStrict(`https?://`)

func mustStrict(scheme string) *regexp.Regexp {
	re, err := xurls.StrictMatchingScheme(scheme)
	if err != nil {
		panic(err)
	}
	return re
}

// NewTextExtractor creates a TextExtractor that only matches URLs with an
// http or https scheme.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{re: webURL}
}

// ExtractLinks implements LinkExtractor.
func (e *TextExtractor) ExtractLinks(_, body string) ([]string, error) {
	return e.re.FindAllString(body, -1), nil
}

// HTMLExtractor parses the body as HTML and returns the targets of
// navigational elements, resolved against the page URL.
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTMLExtractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// linkAttrs maps element names to the attribute holding their target.
var linkAttrs = map[string]string{
	"a":      "href",
	"area":   "href",
	"link":   "href",
	"iframe": "src",
	"frame":  "src",
}

// ExtractLinks implements LinkExtractor.
func (e *HTMLExtractor) ExtractLinks(pageURL, body string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid page URL %q: %v", ErrExtraction, pageURL, err)
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	links := make([]string, 0)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attr, ok := linkAttrs[n.Data]; ok {
				if resolved := resolveURL(base, getAttr(n, attr)); resolved != "" {
					links = append(links, resolved)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

// resolveURL resolves href against base.
// It returns "" for links that never point at a fetchable document.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// multiExtractor runs several extractors and merges their results.
type multiExtractor struct {
	extractors []LinkExtractor
}

// Extractors combines extractors into one. Links are returned in the order
// they were first found, without duplicates. The combined extractor fails
// only if every extractor fails.
func Extractors(extractors ...LinkExtractor) LinkExtractor {
	return &multiExtractor{extractors: extractors}
}

// ExtractLinks implements LinkExtractor.
func (m *multiExtractor) ExtractLinks(pageURL, body string) ([]string, error) {
	seen := make(map[string]bool)
	links := make([]string, 0)
	var errs []error

	for _, e := range m.extractors {
		found, err := e.ExtractLinks(pageURL, body)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, l := range found {
			if !seen[l] {
				seen[l] = true
				links = append(links, l)
			}
		}
	}

	if len(m.extractors) > 0 && len(errs) == len(m.extractors) {
		return nil, errors.Join(errs...)
	}
	return links, nil
}
