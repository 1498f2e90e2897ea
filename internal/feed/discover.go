package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"castkeep/internal/netclient"
)

var feedLinkTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/feed+json",
}

// Discover returns the feed URL for pageURL. A page that is itself a feed is
// returned unchanged; otherwise the first <link rel="alternate"> pointing at a
// feed is resolved against the page URL.
func Discover(ctx context.Context, client *netclient.Client, pageURL string) (string, error) {
	resp, err := client.Get(ctx, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s returned HTTP %d", ErrFetch, pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if gofeed.DetectFeedType(bytes.NewReader(body)) != gofeed.FeedTypeUnknown {
		return pageURL, nil
	}

	base := resp.Request.URL
	if base == nil {
		if base, err = url.Parse(pageURL); err != nil {
			return "", fmt.Errorf("parse page url: %w", err)
		}
	}
	return findFeedLink(body, base)
}

func findFeedLink(body []byte, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}

	var found string
	doc.Find("link[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel := strings.Fields(strings.ToLower(s.AttrOr("rel", "")))
		if !slices.Contains(rel, "alternate") {
			return true
		}
		if !slices.Contains(feedLinkTypes, strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))) {
			return true
		}
		ref, err := url.Parse(strings.TrimSpace(s.AttrOr("href", "")))
		if err != nil {
			return true
		}
		found = base.ResolveReference(ref).String()
		return false
	})
	if found == "" {
		return "", ErrNoFeedFound
	}
	return found, nil
}
