package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Page is a fetched page as delivered by the crawler.
// A Page is built once by the fetch unit that won the URL and is never
// mutated afterwards; the consumer owns it once it leaves the result channel.
type Page struct {
	// URL is the canonical URL the page was fetched from.
	URL string `json:"url"`

	// Body is the response body decoded to UTF-8 text.
	Body string `json:"-"`

	// StatusCode is the HTTP response status code.
	// Zero when the fetcher is not HTTP based (e.g. in tests).
	StatusCode int `json:"status_code,omitempty"`

	// ContentType is the Content-Type header of the response.
	ContentType string `json:"content_type,omitempty"`

	// Hash is the hex encoded SHA-256 of Body.
	Hash string `json:"hash"`

	// FetchedAt is when the fetch unit finished the request.
	FetchedAt time.Time `json:"fetched_at"`
}

// NewPage creates a Page and computes its content hash.
func NewPage(url, body string, statusCode int, contentType string) *Page {
	p := &Page{
		URL:         url,
		Body:        body,
		StatusCode:  statusCode,
		ContentType: contentType,
		FetchedAt:   time.Now(),
	}
	if body != "" {
		sum := sha256.Sum256([]byte(body))
		p.Hash = hex.EncodeToString(sum[:])
	}
	return p
}

// Size returns the body length in bytes.
func (p *Page) Size() int {
	return len(p.Body)
}
