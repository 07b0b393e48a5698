package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/nao1215/gowget/internal/model"
)

// NoLimit disables the depth limit.
const NoLimit = -1

// Response is what a Fetcher returns for one URL.
type Response struct {
	// URL is where the body was served from after redirects. Relative
	// links are resolved against it. Empty means the requested URL.
	URL string

	// Body is the decoded response body.
	Body string

	// StatusCode is the HTTP status code. Zero for non-HTTP fetchers.
	StatusCode int

	// ContentType is the value of the Content-Type header, if any.
	ContentType string
}

// Fetcher retrieves one URL.
// Implementations must honour ctx cancellation and be safe for concurrent
// use. Retries, if any, are the fetcher's business.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (*Response, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Response, error) {
	return f(ctx, url)
}

// Crawler runs breadth-first crawls with a bounded number of concurrent
// fetches. A Crawler holds configuration only, so one value can run any
// number of crawls, sequentially or at the same time.
type Crawler struct {
	fetcher   Fetcher
	extractor LinkExtractor
	logger    *slog.Logger

	// onError receives per-URL failures. It runs on the scheduler
	// goroutine and should return quickly.
	onError func(*model.FetchError)

	// concurrency is the maximum number of fetch units in flight.
	concurrency int

	// bufferSize is the capacity of the page channel.
	// Zero means "same as concurrency".
	bufferSize int

	// maxDepth is the maximum number of hops from the seed.
	// NoLimit disables the check.
	maxDepth int

	// maxPages caps the number of fetch units started in one crawl.
	// Zero or less means unlimited.
	maxPages int

	sameHost       bool
	ignorePatterns []string
	followPatterns []string
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithConcurrency sets the maximum number of concurrent fetches.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithBufferSize sets how many fetched pages may wait for the consumer
// before the crawl stops admitting new fetches. It defaults to the
// concurrency limit. Values below 1 are ignored.
func WithBufferSize(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithLinkExtractor sets the extractor used on every fetched body.
func WithLinkExtractor(e LinkExtractor) Option {
	return func(c *Crawler) {
		if e != nil {
			c.extractor = e
		}
	}
}

// WithErrorHandler sets the function that receives per-URL fetch failures.
// The handler is called from the crawl's scheduler goroutine, one call at
// a time, and always before the page channel is closed.
func WithErrorHandler(fn func(*model.FetchError)) Option {
	return func(c *Crawler) {
		c.onError = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the seed, 1 = the seed plus the pages it links to, etc.
// NoLimit (the default) follows links at any depth.
func WithMaxDepth(depth int) Option {
	return func(c *Crawler) {
		c.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of URLs fetched in one crawl.
// Zero or less means unlimited.
func WithMaxPages(n int) Option {
	return func(c *Crawler) {
		c.maxPages = n
	}
}

// WithSameHost restricts the crawl to the seed's host.
func WithSameHost(sameHost bool) Option {
	return func(c *Crawler) {
		c.sameHost = sameHost
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
// The seed is always fetched.
func WithFollowPatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.followPatterns = patterns
	}
}

// New creates a Crawler that fetches with fetcher.
func New(fetcher Fetcher, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:     fetcher,
		extractor:   NewTextExtractor(),
		logger:      slog.Default(),
		concurrency: 1,
		maxDepth:    NoLimit,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BufferSize returns the capacity of the channels returned by Crawl.
func (c *Crawler) BufferSize() int {
	if c.bufferSize > 0 {
		return c.bufferSize
	}
	return c.concurrency
}

// Concurrency returns the maximum number of concurrent fetches.
func (c *Crawler) Concurrency() int {
	return c.concurrency
}

// Crawl starts a crawl from seed and returns the stream of fetched pages.
// Every reachable URL is fetched at most once. Pages arrive in no
// particular order. The channel is closed when no fetch is running and no
// discovered link is left to follow, or, after ctx is cancelled, once the
// fetches still running have returned. Pages fetched after cancellation
// are dropped.
//
// If the consumer stops reading, at most Concurrency fetches keep running
// and the crawl then waits for the consumer.
func (c *Crawler) Crawl(ctx context.Context, seed string) <-chan *model.Page {
	pages := make(chan *model.Page, c.BufferSize())

	canonical, ok := Canonicalize(seed)
	if !ok {
		go func() {
			defer close(pages)
			c.reportError(model.NewFetchError(seed, fmt.Errorf("%w: %q", ErrInvalidSeed, seed)))
		}()
		return pages
	}

	r := &run{
		pages:    pages,
		done:     make(chan completion, c.concurrency),
		visited:  NewVisitedSet(),
		queue:    NewLinkQueue(),
		inFlight: make(map[uint64]string, c.concurrency),
		pending:  make(map[string]struct{}, c.concurrency),
		scope: scope{
			host:     hostOf(canonical),
			sameHost: c.sameHost,
			ignore:   c.ignorePatterns,
			follow:   c.followPatterns,
		},
	}

	go c.schedule(ctx, r, canonical)

	return pages
}

// run is the state of one crawl.
// Everything except visited and queue is owned by the scheduler goroutine.
type run struct {
	pages chan *model.Page
	done  chan completion

	visited *VisitedSet
	queue   *LinkQueue

	// inFlight maps unit ids to the URL each unit is fetching.
	inFlight map[uint64]string

	// pending holds the URLs of inFlight, for duplicate checks at admission.
	pending map[string]struct{}

	scope    scope
	nextID   uint64
	admitted int
	stopping bool
}

// completion is what a fetch unit reports when it finishes.
type completion struct {
	id   uint64
	page *model.Page
	err  *model.FetchError
}

// schedule is the crawl's single driver. Its only wait points are the
// next completion and the page send.
func (c *Crawler) schedule(ctx context.Context, r *run, seed string) {
	defer close(r.pages)

	r.visited.Claim(seed)
	c.spawn(ctx, r, Link{URL: seed}, true)

	for len(r.inFlight) > 0 {
		done := <-r.done

		fetched, ok := r.inFlight[done.id]
		if !ok {
			panic(fmt.Sprintf("crawler: completion from unknown fetch unit %d", done.id))
		}
		delete(r.inFlight, done.id)
		delete(r.pending, fetched)

		if done.err != nil {
			c.reportError(done.err)
		}

		if done.page != nil && !r.stopping {
			select {
			case r.pages <- done.page:
			case <-ctx.Done():
			}
		}

		if ctx.Err() != nil {
			if !r.stopping {
				c.logger.Debug("crawl stopped", "in_flight", len(r.inFlight), "queued", r.queue.Len())
			}
			r.stopping = true
			continue
		}

		c.admit(ctx, r)
	}

	c.logger.Debug("crawl finished", "visited", r.visited.Len())
}

// admit starts fetch units for queued links until the concurrency limit is
// reached or the queue is empty.
func (c *Crawler) admit(ctx context.Context, r *run) {
	for len(r.inFlight) < c.concurrency {
		if c.maxPages > 0 && r.admitted >= c.maxPages {
			return
		}

		l, ok := r.queue.Pop()
		if !ok {
			return
		}

		if c.maxDepth != NoLimit && l.Depth > c.maxDepth {
			continue
		}

		canonical, ok := Canonicalize(l.URL)
		if !ok {
			continue
		}
		if !r.scope.allows(canonical) {
			continue
		}
		if _, ok := r.pending[canonical]; ok {
			continue
		}
		if r.visited.Seen(canonical) {
			continue
		}

		l.URL = canonical
		c.spawn(ctx, r, l, false)
	}
}

// spawn starts a fetch unit for l.
func (c *Crawler) spawn(ctx context.Context, r *run, l Link, claimed bool) {
	id := r.nextID
	r.nextID++

	r.inFlight[id] = l.URL
	r.pending[l.URL] = struct{}{}
	r.admitted++

	go func() {
		page, err := c.visit(ctx, r, l, claimed)
		r.done <- completion{id: id, page: page, err: err}
	}()
}

func (c *Crawler) reportError(err *model.FetchError) {
	c.logger.Debug("fetch failed", "url", err.URL, "error", err.Err)
	if c.onError != nil {
		c.onError(err)
	}
}

func hostOf(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return u.Host
}
