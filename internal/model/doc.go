// Package model defines the core data structures shared by gowget packages.
//
// This package contains the following main types:
//   - Page: A fetched page as it leaves the crawler
//   - FetchError: A per-URL fetch failure reported by the crawler
//   - RunReport: The outcome of one crawl run, as shown to the user
//
// Models live in their own package because the crawler, the consumer
// pipeline, the database and the report writers all exchange them.
package model
