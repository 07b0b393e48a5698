package crawler

import "sync"

// VisitedSet records the canonical URLs that have been claimed for fetching.
// It is the only crawl structure shared between fetch units.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewVisitedSet creates an empty VisitedSet.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// Claim marks url as visited and reports whether this call was the first
// to do so. For any number of concurrent callers exactly one gets true.
func (v *VisitedSet) Claim(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.urls[url]; ok {
		return false
	}
	v.urls[url] = struct{}{}
	return true
}

// Seen reports whether url has already been claimed.
// The answer may be stale by the time the caller acts on it; only Claim
// decides who fetches a URL.
func (v *VisitedSet) Seen(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.urls[url]
	return ok
}

// Len returns the number of claimed URLs.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}
