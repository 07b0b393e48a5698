// Package transport provides the network side of a crawl: HTTP clients that
// dial directly, through a SOCKS5 proxy, or through an embedded Tor daemon,
// and an HTTPFetcher that turns one URL into decoded UTF-8 text for the
// crawler.
//
// Components receive a Client (or the *http.Client it builds) through
// their constructors; the package keeps no global state.
package transport
