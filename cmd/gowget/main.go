// Package main provides the entry point for the gowget CLI.
//
// gowget recursively downloads web sites. It crawls breadth-first from one
// or more seed URLs with a bounded number of concurrent fetches, saves every
// page to disk and keeps a local history of its runs.
//
// Usage:
//
//	gowget crawl https://example.com/
//	gowget history list
//
// See --help for all available options.
package main

func main() {
	Execute()
}
