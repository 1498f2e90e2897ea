package feed

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/pelletier/go-toml/v2"

	"castkeep/internal/logging"
	"castkeep/internal/netclient"
	"castkeep/internal/textutil"
)

const maxFeedBytes = 20 << 20

// validators are the cache headers remembered between fetches.
type validators struct {
	ETag         string `toml:"etag"`
	LastModified string `toml:"last_modified"`
}

var _ Source = (*Fetcher)(nil)

// Fetcher retrieves feeds over HTTP.
type Fetcher struct {
	client   *netclient.Client
	cacheDir string
	logger   *slog.Logger
	strip    *bluemonday.Policy
}

// NewFetcher returns a Fetcher. An empty cacheDir disables conditional
// requests.
func NewFetcher(client *netclient.Client, cacheDir string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:   client,
		cacheDir: strings.TrimSpace(cacheDir),
		logger:   logging.NewComponentLogger(logger, "feed"),
		strip:    bluemonday.StrictPolicy(),
	}
}

// Fetch retrieves and parses url. A 304 response yields NotModified.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Result, error) {
	cached := f.loadValidators(url)
	header := http.Header{}
	header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if cached.ETag != "" {
		header.Set("If-None-Match", cached.ETag)
	}
	if cached.LastModified != "" {
		header.Set("If-Modified-Since", cached.LastModified)
	}

	resp, err := f.client.Get(ctx, url, header)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		f.logger.Debug("feed not modified", logging.String("url", url))
		return Result{NotModified: true}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Result{}, fmt.Errorf("%w: %s returned HTTP %d", ErrFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	f.storeValidators(url, validators{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	})
	return Result{Feed: f.convert(parsed)}, nil
}

// Forget drops the remembered validators for url so the next fetch is
// unconditional.
func (f *Fetcher) Forget(url string) error {
	if f.cacheDir == "" {
		return nil
	}
	if err := os.Remove(f.cachePath(url)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("forget feed cache: %w", err)
	}
	return nil
}

func (f *Fetcher) convert(parsed *gofeed.Feed) *Feed {
	out := &Feed{Title: f.plainText(parsed.Title)}
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}
		item := Item{
			Title: f.plainText(it.Title),
			GUID:  strings.TrimSpace(it.GUID),
			Link:  strings.TrimSpace(it.Link),
		}
		if item.GUID == "" {
			item.GUID = item.Link
		}
		for _, enc := range it.Enclosures {
			if enc == nil {
				continue
			}
			length, _ := strconv.ParseInt(strings.TrimSpace(enc.Length), 10, 64)
			if length < 0 {
				length = 0
			}
			item.Enclosures = append(item.Enclosures, Enclosure{
				URL:    strings.TrimSpace(enc.URL),
				Type:   strings.TrimSpace(enc.Type),
				Length: length,
			})
		}
		out.Items = append(out.Items, item)
	}
	return out
}

// plainText removes markup and entities from a feed-supplied string.
func (f *Fetcher) plainText(value string) string {
	return textutil.SanitizeBasic(strings.TrimSpace(html.UnescapeString(f.strip.Sanitize(value))))
}

func (f *Fetcher) cachePath(url string) string {
	sum := md5.Sum([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:])+".toml")
}

func (f *Fetcher) loadValidators(url string) validators {
	var v validators
	if f.cacheDir == "" {
		return v
	}
	data, err := os.ReadFile(f.cachePath(url))
	if err != nil {
		return v
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		f.logger.Debug("ignoring unreadable feed cache entry", logging.String("url", url), logging.Error(err))
		return validators{}
	}
	return v
}

func (f *Fetcher) storeValidators(url string, v validators) {
	if f.cacheDir == "" {
		return
	}
	path := f.cachePath(url)
	if v.ETag == "" && v.LastModified == "" {
		_ = os.Remove(path)
		return
	}
	data, err := toml.Marshal(v)
	if err == nil {
		if err = os.MkdirAll(f.cacheDir, 0o755); err == nil {
			err = os.WriteFile(path, data, 0o644)
		}
	}
	if err != nil {
		logging.WarnWithContext(f.logger, "feed cache write failed", "feed_cache_failed",
			logging.String("url", url),
			logging.Error(err),
			logging.String(logging.FieldImpact, "next fetch of this feed is unconditional"),
		)
	}
}
