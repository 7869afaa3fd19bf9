// Package yahoo provides a marketdata.Backend backed by the public Yahoo
// Finance HTTP API.
//
// Quotes come from the v10 quoteSummary endpoint and history from the v8
// chart endpoint. Both answer with deeply nested JSON in which most values
// are wrapped as {"raw": ..., "fmt": ...} and missing values show up as
// null, an empty object, or not at all. Responses are picked apart with
// gjson instead of being decoded into mirror structs, and every absent value
// becomes marketdata.Unavailable.
//
// Yahoo gates parts of the API behind a cookie plus "crumb" token. The client
// obtains one lazily and keeps it for the lifetime of the process. Obtaining
// it is best effort: if it fails, requests are sent without a crumb and the
// handshake is not attempted again for a minute.
//
// Example usage:
//
//	c, err := yahoo.New(yahoo.WithTimeout(10 * time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	q, err := c.Quote(ctx, "AAPL", []string{marketdata.FieldCurrentPrice})
package yahoo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/stockmcp/pkg/marketdata"
)

const (
	// DefaultBaseURL is the Yahoo Finance API host.
	DefaultBaseURL = "https://query2.finance.yahoo.com"

	// DefaultCookieURL is visited once to obtain the session cookie the crumb
	// endpoint requires.
	DefaultCookieURL = "https://fc.yahoo.com"

	// DefaultUserAgent is sent with every request. Yahoo rejects requests
	// without a browser-like agent.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0 Safari/537.36"

	// maxBodyBytes caps how much of any response body is read.
	maxBodyBytes = 32 << 20

	// crumbTimeout bounds one crumb negotiation.
	crumbTimeout = 10 * time.Second

	// crumbRetryAfter is how long a failed negotiation is remembered.
	crumbRetryAfter = time.Minute
)

// Ensure Client implements marketdata.Backend at compile time.
var _ marketdata.Backend = (*Client)(nil)

// Client implements marketdata.Backend against Yahoo Finance.
//
// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	cookieURL  string
	userAgent  string
	httpClient *http.Client
	now        func() time.Time

	crumbFlight  singleflight.Group
	crumbMu      sync.Mutex
	crumb        string
	crumbRetryAt time.Time
}

type config struct {
	baseURL    string
	cookieURL  string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
}

// Option is a functional option for Client.
type Option func(*config)

// WithBaseURL overrides the API host. A trailing slash is stripped.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// WithCookieURL overrides the URL visited to obtain the session cookie. An
// empty URL skips the cookie step.
func WithCookieURL(u string) Option {
	return func(c *config) { c.cookieURL = u }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *config) { c.userAgent = ua }
}

// WithTimeout sets a per-request timeout. A zero or negative value means no
// timeout beyond the caller's context. Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithHTTPClient supplies the HTTP client. The client should carry a cookie
// jar, otherwise the crumb handshake cannot succeed.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// New constructs a Client.
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		baseURL:   DefaultBaseURL,
		cookieURL: DefaultCookieURL,
		userAgent: DefaultUserAgent,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.baseURL == "" {
		return nil, fmt.Errorf("yahoo: base URL must not be empty")
	}
	if _, err := url.Parse(cfg.baseURL); err != nil {
		return nil, fmt.Errorf("yahoo: parse base URL: %w", err)
	}

	hc := cfg.httpClient
	if hc == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("yahoo: cookie jar: %w", err)
		}
		hc = &http.Client{Jar: jar}
		if cfg.timeout > 0 {
			hc.Timeout = cfg.timeout
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.baseURL, "/"),
		cookieURL:  cfg.cookieURL,
		userAgent:  cfg.userAgent,
		httpClient: hc,
		now:        time.Now,
	}, nil
}

// Document downloads url verbatim. Any non-2xx status is an error.
func (c *Client) Document(ctx context.Context, rawURL string) ([]byte, error) {
	body, status, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, marketdata.Wrap("document", rawURL, err)
	}
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return nil, marketdata.Wrap("document", rawURL, marketdata.NotFound(fmt.Errorf("unexpected status %d", status)))
	case status < 200 || status > 299:
		return nil, marketdata.Wrap("document", rawURL, fmt.Errorf("unexpected status %d", status))
	}
	return body, nil
}

// apiGet issues a GET against an API path with the crumb attached. A 401
// drops the cached crumb so that the next call negotiates a new one.
func (c *Client) apiGet(ctx context.Context, path string, q url.Values) ([]byte, int, error) {
	if crumb := c.sessionCrumb(ctx); crumb != "" {
		q.Set("crumb", crumb)
	}
	body, status, err := c.get(ctx, c.baseURL+path+"?"+q.Encode())
	if err != nil {
		return nil, 0, err
	}
	if status == http.StatusUnauthorized {
		c.crumbMu.Lock()
		c.crumb = ""
		c.crumbMu.Unlock()
	}
	return body, status, nil
}

// get performs a GET and returns the (size-capped) body and status code.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// sessionCrumb returns the cached crumb, negotiating one on first use.
// Concurrent callers share one negotiation and stop waiting when their own
// context ends. A failed negotiation is not retried for crumbRetryAfter;
// until then requests go out without a crumb.
func (c *Client) sessionCrumb(ctx context.Context) string {
	c.crumbMu.Lock()
	crumb, retryAt := c.crumb, c.crumbRetryAt
	c.crumbMu.Unlock()
	if crumb != "" || c.now().Before(retryAt) {
		return crumb
	}

	ch := c.crumbFlight.DoChan("crumb", func() (any, error) {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), crumbTimeout)
		defer cancel()
		crumb := c.negotiateCrumb(nctx)

		c.crumbMu.Lock()
		defer c.crumbMu.Unlock()
		if crumb == "" {
			c.crumbRetryAt = c.now().Add(crumbRetryAfter)
		} else {
			c.crumb = crumb
		}
		return crumb, nil
	})
	select {
	case r := <-ch:
		crumb, _ := r.Val.(string)
		return crumb
	case <-ctx.Done():
		return ""
	}
}

// negotiateCrumb visits the cookie URL and then asks for a crumb. Failures
// are logged and yield "".
func (c *Client) negotiateCrumb(ctx context.Context) string {
	if c.cookieURL != "" {
		// The cookie endpoint answers 404 but still sets the session cookie.
		if _, _, err := c.get(ctx, c.cookieURL); err != nil {
			slog.Debug("yahoo: cookie handshake failed", "err", err)
			return ""
		}
	}
	body, status, err := c.get(ctx, c.baseURL+"/v1/test/getcrumb")
	if err != nil || status != http.StatusOK {
		slog.Debug("yahoo: crumb unavailable", "status", status, "err", err)
		return ""
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.ContainsAny(crumb, "<{ ") {
		return ""
	}
	return crumb
}
