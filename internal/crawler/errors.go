package crawler

import "errors"

var (
	// ErrInvalidSeed is reported through the error handler when the seed
	// cannot be canonicalized. The crawl then ends without any page.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrExtraction is returned by link extractors for input they cannot
	// analyse. The crawler treats it as "no links found".
	ErrExtraction = errors.New("link extraction failed")
)
