package feed

import (
	"context"
	"errors"
)

var (
	// ErrFetch indicates the feed could not be retrieved.
	ErrFetch = errors.New("feed fetch failed")
	// ErrParse indicates the feed was retrieved but could not be parsed.
	ErrParse = errors.New("feed parse failed")
	// ErrNoFeedFound indicates Discover found no feed link on a page.
	ErrNoFeedFound = errors.New("no feed found")
)

// Enclosure is a downloadable attachment of an item.
type Enclosure struct {
	URL    string
	Type   string
	Length int64
}

// Item is one feed entry. GUID falls back to the item link when the feed
// supplies no identifier.
type Item struct {
	Title      string
	GUID       string
	Link       string
	Enclosures []Enclosure
}

// Feed is a parsed feed document.
type Feed struct {
	Title string
	Items []Item
}

// Result is the outcome of a successful fetch. Feed is nil when NotModified.
type Result struct {
	NotModified bool
	Feed        *Feed
}

// Source retrieves a feed. Failures wrap ErrFetch or ErrParse.
type Source interface {
	Fetch(ctx context.Context, url string) (Result, error)
}
