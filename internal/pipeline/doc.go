// Package pipeline is the consumer side of a crawl.
//
// A Harvester runs one crawl and feeds every page it receives through a
// Pipeline of Steps (save to disk, record in the history database, advance
// the progress bar). Fetch failures reported by the crawler and pages the
// pipeline could not handle are collected in a model.RunReport.
//
// A BatchProcessor runs several harvests at once with errgroup, bounded
// by its own concurrency limit, independent of the per-crawl fetch limit.
package pipeline
