package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"castkeep/internal/netclient"
	"castkeep/internal/staging"
)

var (
	// ErrHTTPStatus indicates the enclosure server answered with a
	// non-success status.
	ErrHTTPStatus = errors.New("unexpected http status")
	// ErrStalled indicates the enclosure body stopped arriving for longer
	// than the stall timeout.
	ErrStalled = errors.New("download stalled")
)

// Fetched describes an enclosure that has been written to the scratch
// directory.
type Fetched struct {
	Path        string
	Filename    string
	ContentType string
}

// EnclosureFetcher retrieves an enclosure into dest.
type EnclosureFetcher interface {
	Fetch(ctx context.Context, url, dest string) (Fetched, error)
}

// HTTPFetcher downloads enclosures over HTTP, resuming a partial scratch file
// when the server supports range requests.
type HTTPFetcher struct {
	client *netclient.Client
}

// NewHTTPFetcher returns an HTTPFetcher using client.
func NewHTTPFetcher(client *netclient.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// Fetch downloads rawURL into dest. The response headers are kept next to
// dest in a .msg sidecar.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dest string) (Fetched, error) {
	return f.fetch(ctx, rawURL, dest, true)
}

func (f *HTTPFetcher) fetch(ctx context.Context, rawURL, dest string, allowResume bool) (Fetched, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Fetched{}, fmt.Errorf("create scratch dir: %w", err)
	}

	var offset int64
	if allowResume {
		if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() {
			offset = info.Size()
		}
	}
	header := http.Header{}
	if offset > 0 {
		header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	resp, err := f.client.Stream(reqCtx, rawURL, header)
	if err != nil {
		return Fetched{}, err
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		flags |= os.O_APPEND
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		// The scratch file no longer lines up with the remote file.
		if err := os.Remove(dest); err != nil {
			return Fetched{}, fmt.Errorf("discard stale scratch file: %w", err)
		}
		resp.Body.Close()
		return f.fetch(ctx, rawURL, dest, false)
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		flags |= os.O_TRUNC
	default:
		return Fetched{}, fmt.Errorf("%w: %s returned %d", ErrHTTPStatus, rawURL, resp.StatusCode)
	}

	file, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return Fetched{}, fmt.Errorf("open scratch file: %w", err)
	}
	if err := copyBody(reqCtx, cancel, file, resp.Body, f.client.StallTimeout()); err != nil {
		_ = file.Close()
		return Fetched{}, fmt.Errorf("download %s: %w", rawURL, err)
	}
	if err := file.Close(); err != nil {
		return Fetched{}, fmt.Errorf("close scratch file: %w", err)
	}

	finalURL := resp.Request.URL
	writeMessage(dest+staging.MessageSuffix, finalURL, resp.Header)

	return Fetched{
		Path:        dest,
		Filename:    remoteFilename(finalURL, rawURL),
		ContentType: mediaType(resp.Header.Get("Content-Type")),
	}, nil
}

// copyBody copies body into dst. When stall is positive the request is
// cancelled with ErrStalled once no data has arrived for that long.
func copyBody(ctx context.Context, cancel context.CancelCauseFunc, dst io.Writer, body io.Reader, stall time.Duration) error {
	if stall <= 0 {
		_, err := io.Copy(dst, body)
		return err
	}
	watchdog := time.AfterFunc(stall, func() { cancel(ErrStalled) })
	defer watchdog.Stop()

	_, err := io.Copy(dst, &stallReader{r: body, watchdog: watchdog, stall: stall})
	if err != nil && errors.Is(context.Cause(ctx), ErrStalled) {
		return fmt.Errorf("%w: no data for %s", ErrStalled, stall)
	}
	return err
}

// stallReader pushes the watchdog back every time data arrives.
type stallReader struct {
	r        io.Reader
	watchdog *time.Timer
	stall    time.Duration
}

func (s *stallReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 {
		s.watchdog.Reset(s.stall)
	}
	return n, err
}

func writeMessage(target string, finalURL *url.URL, header http.Header) {
	file, err := os.Create(target)
	if err != nil {
		return
	}
	defer file.Close()
	if finalURL != nil {
		fmt.Fprintf(file, "X-Final-Url: %s\r\n", finalURL.String())
	}
	_ = header.Write(file)
}

// remoteFilename takes the last path element of the final URL, falling back
// to the scratch name of the requested URL.
func remoteFilename(finalURL *url.URL, rawURL string) string {
	if finalURL != nil {
		base := path.Base(finalURL.Path)
		if unescaped, err := url.PathUnescape(base); err == nil {
			base = unescaped
		}
		base = strings.TrimSpace(base)
		if base != "" && base != "." && base != "/" {
			return base
		}
	}
	return staging.ScratchName(rawURL)
}

// mediaType strips parameters from a Content-Type value.
func mediaType(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(value); err == nil {
		return parsed
	}
	head, _, _ := strings.Cut(value, ";")
	return strings.ToLower(strings.TrimSpace(head))
}
