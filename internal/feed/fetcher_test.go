package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"castkeep/internal/feed"
	"castkeep/internal/logging"
	"castkeep/internal/netclient"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title><![CDATA[Example &amp; <b>Friends</b>]]></title>
    <item>
      <title><![CDATA[Episode <i>One</i>]]></title>
      <guid>ep-1</guid>
      <enclosure url=" http://example.com/1.mp3 " type="audio/mpeg" length="1234"/>
    </item>
    <item>
      <title>No guid</title>
      <link>http://example.com/posts/2</link>
      <enclosure url="http://example.com/2.mp3" type="audio/mpeg" length="bogus"/>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Cast</title>
  <id>urn:example:feed</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <title>Two parts</title>
    <id>urn:example:ep</id>
    <updated>2024-01-01T00:00:00Z</updated>
    <link rel="enclosure" href="http://example.com/a.mp3" type="audio/mpeg" length="10"/>
    <link rel="enclosure" href="http://example.com/b.mp3" type="audio/mpeg" length="20"/>
  </entry>
</feed>`

func newFetcher(t *testing.T) *feed.Fetcher {
	t.Helper()
	client := netclient.New(netclient.Options{Timeout: 5 * time.Second, UserAgent: "castkeep-test"})
	return feed.NewFetcher(client, filepath.Join(t.TempDir(), "feeds"), logging.NewNop())
}

func TestFetchParsesAndHonoursETag(t *testing.T) {
	var hits, conditional atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	fetcher := newFetcher(t)
	ctx := context.Background()

	res, err := fetcher.Fetch(ctx, server.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.NotModified || res.Feed == nil {
		t.Fatalf("expected parsed feed, got %#v", res)
	}
	if res.Feed.Title != "Example & Friends" {
		t.Fatalf("feed title = %q", res.Feed.Title)
	}
	if len(res.Feed.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(res.Feed.Items))
	}
	first := res.Feed.Items[0]
	if first.Title != "Episode One" || first.GUID != "ep-1" {
		t.Fatalf("unexpected first item: %#v", first)
	}
	if len(first.Enclosures) != 1 || first.Enclosures[0].URL != "http://example.com/1.mp3" || first.Enclosures[0].Length != 1234 {
		t.Fatalf("unexpected enclosure: %#v", first.Enclosures)
	}
	second := res.Feed.Items[1]
	if second.GUID != "http://example.com/posts/2" {
		t.Fatalf("expected link as guid fallback, got %q", second.GUID)
	}
	if second.Enclosures[0].Length != 0 {
		t.Fatalf("expected unparsable length to be 0, got %d", second.Enclosures[0].Length)
	}

	res, err = fetcher.Fetch(ctx, server.URL)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if !res.NotModified {
		t.Fatalf("expected not modified on second fetch")
	}
	if conditional.Load() != 1 {
		t.Fatalf("expected one conditional request, got %d of %d", conditional.Load(), hits.Load())
	}

	if err := fetcher.Forget(server.URL); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	res, err = fetcher.Fetch(ctx, server.URL)
	if err != nil || res.NotModified {
		t.Fatalf("expected unconditional fetch after Forget, got %#v, %v", res, err)
	}
}

func TestFetchMultipleEnclosures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleAtom))
	}))
	defer server.Close()

	res, err := newFetcher(t).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Feed.Items) != 1 || len(res.Feed.Items[0].Enclosures) != 2 {
		t.Fatalf("expected one item with two enclosures, got %#v", res.Feed.Items)
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			want: feed.ErrFetch,
		},
		{
			name: "not a feed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("this is not xml"))
			},
			want: feed.ErrParse,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()
			_, err := newFetcher(t).Fetch(context.Background(), server.URL)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFetchUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newFetcher(t).Fetch(context.Background(), url)
	if !errors.Is(err, feed.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}
