package crawler

import "sync"

// Link is a discovered URL waiting to be deduplicated and dispatched.
type Link struct {
	// URL is the URL as found by the link extractor, not yet canonical.
	URL string

	// Depth is the number of hops from the seed.
	Depth int
}

// LinkQueue is an unbounded FIFO queue of discovered links.
// Any number of fetch units may Push concurrently; the scheduler is the
// only consumer. Push never blocks on capacity, so the queue is never a
// backpressure point.
type LinkQueue struct {
	mu    sync.Mutex
	items []Link
}

// NewLinkQueue creates an empty LinkQueue.
func NewLinkQueue() *LinkQueue {
	return &LinkQueue{items: make([]Link, 0)}
}

// Push appends a link.
func (q *LinkQueue) Push(l Link) {
	q.mu.Lock()
	q.items = append(q.items, l)
	q.mu.Unlock()
}

// Pop removes and returns the oldest link.
// It returns false if the queue is empty.
func (q *LinkQueue) Pop() (Link, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Link{}, false
	}
	l := q.items[0]
	q.items[0] = Link{}
	q.items = q.items[1:]
	return l, true
}

// Len returns the number of queued links.
func (q *LinkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
