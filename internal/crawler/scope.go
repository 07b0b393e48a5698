package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Canonicalize returns the form of raw used as the VisitedSet key.
// Two URLs that only differ in fragment, scheme case or host case, or in
// an empty versus "/" root path, canonicalize to the same string.
//
// It returns false for strings that cannot be parsed, for absolute URLs
// whose scheme is not http or https, and for absolute URLs without a host.
// Scheme-less strings such as "a" or "/docs" are kept as they are.
func Canonicalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "" {
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", false
		}
		if u.Host == "" {
			return "", false
		}
	}
	u.Host = strings.ToLower(u.Host)
	if u.Host != "" && u.Path == "" {
		u.Path = "/"
	}

	s := u.String()
	if s == "" {
		return "", false
	}
	return s, true
}

// scope decides which canonical URLs a crawl may follow.
type scope struct {
	// host is the seed host; only used when sameHost is set.
	host string

	sameHost bool

	// ignore and follow are glob patterns matched against the URL path.
	ignore []string
	follow []string
}

// allows reports whether a canonical URL is inside the crawl scope.
//
// Logic:
//  1. With sameHost set, the host must equal the seed host
//  2. If the path matches any ignore pattern, skip it
//  3. If follow patterns are set and the path matches none, skip it
//  4. Otherwise, follow it
func (s scope) allows(canonical string) bool {
	u, err := url.Parse(canonical)
	if err != nil {
		return false
	}

	if s.sameHost && !strings.EqualFold(u.Host, s.host) {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignore {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.follow) > 0 {
		for _, pattern := range s.follow {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a prefix
//   - a leading "*." to match an extension at any depth
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash also apply to the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
