// Package netclient builds the HTTP client shared by feed fetches and
// enclosure downloads.
package netclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
	"golang.org/x/time/rate"

	"castkeep/internal/config"
)

// Options configures New.
type Options struct {
	// Timeout caps a whole Get request. For Stream it bounds only the
	// connect, TLS handshake and response header phases.
	Timeout           time.Duration
	StallTimeout      time.Duration
	UserAgent         string
	BlockPrivate      bool
	RequestsPerMinute int
}

// OptionsFromConfig maps the [network] section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:           cfg.NetworkTimeout(),
		StallTimeout:      cfg.StallTimeout(),
		UserAgent:         cfg.Network.UserAgent,
		BlockPrivate:      cfg.Network.BlockPrivateAddresses,
		RequestsPerMinute: cfg.Network.RequestsPerMinute,
	}
}

// Client issues paced GET requests with a fixed user agent.
type Client struct {
	http         *http.Client
	stream       *http.Client
	stallTimeout time.Duration
	userAgent    string
	limiter      *rate.Limiter
}

// New returns a Client. With BlockPrivate set, connections to loopback,
// private and link-local addresses are refused after DNS resolution.
func New(opts Options) *Client {
	var hc *http.Client
	if opts.BlockPrivate {
		cfg := safeurl.GetConfigBuilder().
			SetTimeout(opts.Timeout).
			SetAllowedSchemes("http", "https").
			Build()
		hc = safeurl.Client(cfg).Client
	} else {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
	}
	if transport, ok := hc.Transport.(*http.Transport); ok {
		boundPhases(transport, opts.Timeout)
	}

	stream := *hc
	stream.Timeout = 0

	c := &Client{
		http:         hc,
		stream:       &stream,
		stallTimeout: opts.StallTimeout,
		userAgent:    opts.UserAgent,
	}
	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1)
	}
	return c
}

// boundPhases limits the dial, TLS handshake and header wait of transport
// to timeout. Body reads are not affected.
func boundPhases(transport *http.Transport, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	dial := transport.DialContext
	if dial == nil {
		dial = (&net.Dialer{KeepAlive: 30 * time.Second}).DialContext
	}
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return dial(ctx, network, addr)
	}
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
}

// StallTimeout reports how long a streamed body may go without data. Zero
// means no limit.
func (c *Client) StallTimeout() time.Duration {
	return c.stallTimeout
}

// Get sends a GET request for url with the extra headers set. The whole
// request, body included, is bounded by Options.Timeout.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	return c.do(ctx, c.http, url, header)
}

// Stream sends a GET request whose body may take arbitrarily long to read.
// Callers guard the body read themselves, usually with StallTimeout.
func (c *Client) Stream(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	return c.do(ctx, c.stream, url, header)
}

func (c *Client) do(ctx context.Context, hc *http.Client, url string, header http.Header) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return hc.Do(req)
}
