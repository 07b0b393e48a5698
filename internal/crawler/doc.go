// Package crawler implements a bounded-concurrency breadth-first web crawler.
//
// # Architecture
//
// A crawl is driven by a single scheduler goroutine. Every URL the
// scheduler admits runs as its own fetch unit goroutine. Units talk back
// to the scheduler through two structures only:
//
//   - LinkQueue: an unbounded queue where units push the links they
//     discover. Pushing never blocks, so a unit never waits on the
//     scheduler.
//   - a completion channel: each unit sends exactly one completion
//     (its page or its error) when it finishes. The channel capacity equals
//     the concurrency limit, which is also the maximum number of units in
//     flight, so this send never blocks either.
//
// The scheduler's loop is "receive the next completion, forward the page,
// refill from the LinkQueue". Links are pushed before the completion is
// sent, so once the in-flight set is empty the queue holds every link that
// will ever be discovered; an empty queue at that point means the crawl is
// done and the page channel is closed.
//
// # Deduplication
//
// VisitedSet.Claim is the only deduplication mechanism: a unit fetches a
// URL only after winning the claim for it. The scheduler additionally skips
// URLs that are already claimed, which saves goroutines but is not relied
// on for correctness.
//
// # Backpressure
//
// Pages are delivered on a bounded channel. When the consumer falls behind
// the scheduler blocks on the send and stops admitting new units, so the
// number of in-flight fetches never exceeds the concurrency limit.
//
// # Usage
//
//	c := crawler.New(fetcher, crawler.WithConcurrency(4))
//	for page := range c.Crawl(ctx, "https://example.com/") {
//	    // persist page
//	}
//
// Cancelling ctx stops the crawl: nothing new is admitted, in-flight
// fetches see the cancelled context, and the channel is closed once they
// have returned.
package crawler
