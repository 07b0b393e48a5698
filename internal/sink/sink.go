// Package sink persists fetched pages.
//
// Persisting is the consumer's job: the crawler only streams pages, and a
// failure here never affects the crawl.
package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyIdentifier is returned when Persist is called without an identifier.
var ErrEmptyIdentifier = errors.New("empty identifier")

// Persister stores one page body under an identifier.
type Persister interface {
	Persist(identifier, content string) error
}

// fileNameReplacer maps URL separators to underscores.
var fileNameReplacer = strings.NewReplacer(
	"/", "_",
	":", "_",
	"?", "_",
	"&", "_",
	"=", "_",
	"#", "_",
)

// FileName turns a URL into a flat file name, e.g.
// "https://example.com/a?b=c" becomes "https___example.com_a_b_c.html".
func FileName(url string) string {
	return fileNameReplacer.Replace(url) + ".html"
}

// FileSink writes page bodies as files in one directory.
type FileSink struct {
	dir string
}

// NewFileSink creates a FileSink that writes below dir.
// The directory is created on the first Persist.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Dir returns the output directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Persist writes content to FileName(identifier) in the output directory,
// replacing any previous file of that name.
func (s *FileSink) Persist(identifier, content string) error {
	if identifier == "" {
		return ErrEmptyIdentifier
	}

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.dir, FileName(identifier))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
