// Package database stores the crawl history in SQLite.
//
// Every run gets a row in runs, and every page and failure of that run a
// row in pages or failures. The history is a log for the history command
// and for reports; a crawl never reads it back, so it cannot be used to
// resume one.
//
// The driver is modernc.org/sqlite, which needs no cgo. The connection
// pool is limited to one connection because SQLite has a single writer.
package database
