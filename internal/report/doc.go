// Package report renders crawl run reports and the crawl history.
//
// Writers:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: JSON for other tools
//   - MarkdownWriter: Markdown for sharing
//
// MultiWriter sends the same report to several writers.
package report
