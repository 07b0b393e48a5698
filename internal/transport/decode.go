package transport

import (
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// decodeContent wraps body in a reader that undoes the Content-Encoding.
// The caller closes the returned reader; it does not close body.
func decodeContent(body io.Reader, encoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return io.NopCloser(body), nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read gzip body: %w", err)
		}
		return zr, nil
	case "deflate":
		zr, err := zlib.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read deflate body: %w", err)
		}
		return zr, nil
	case "br":
		return io.NopCloser(brotli.NewReader(body)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, encoding)
	}
}

// toUTF8 converts r from the charset named in contentType to UTF-8.
// A missing or unknown charset leaves the bytes unchanged.
func toUTF8(r io.Reader, contentType string) io.Reader {
	if contentType == "" {
		return r
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r
	}

	name := params["charset"]
	if name == "" {
		return r
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return r
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" { //nolint:errcheck // enc comes from htmlindex
		return r
	}

	return transform.NewReader(r, enc.NewDecoder())
}
