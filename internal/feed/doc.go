// Package feed fetches and parses subscription feeds.
//
// Fetcher issues conditional GET requests, remembering each feed's ETag and
// Last-Modified validators in the feed cache directory, and parses RSS, Atom
// and JSON feeds with gofeed. Titles are stripped of markup before they reach
// the reconciler. Discover finds a feed link on an HTML page.
package feed
