// Package fetch retrieves search pages over plain HTTP or, when a site
// demands JavaScript, a headless browser.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"carscraper/logger"
	"carscraper/pkg/errs"
	"carscraper/services/cache"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// Statuses worth retrying; 403 is deliberately absent, a block never
// resolves itself within one run.
var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Options configures a Client
type Options struct {
	// Source tags errors and log lines with the site name
	Source string

	// Timeout bounds each attempt
	Timeout time.Duration

	// Store, when non-nil, caches successful response bodies
	Store cache.Store

	// CacheTTL is how long cached bodies stay fresh; zero keeps them forever
	CacheTTL time.Duration

	// RetryWaitTime and RetryMaxWaitTime bound the backoff between
	// attempts; zero values take the defaults of 2s and 32s
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
}

// Client wraps a resty session configured the way the sites tolerate:
// a stable browser-like identity per run, cookies, and retries with
// exponential backoff on 429/5xx.
type Client struct {
	http   *resty.Client
	store  cache.Store
	ttl    time.Duration
	source string
	log    *logger.Logger
}

// NewClient creates a session for one source
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.RetryWaitTime == 0 {
		opts.RetryWaitTime = 2 * time.Second
	}
	if opts.RetryMaxWaitTime == 0 {
		opts.RetryMaxWaitTime = 32 * time.Second
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)

	jar, err := cookiejar.New(nil)
	if err == nil {
		client.SetCookieJar(jar)
	}

	// One identity per session; rotating it mid-run trips bot detection
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	client.SetHeader("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")
	client.SetHeader("Referer", "https://www.google.com/")
	client.SetHeader("Upgrade-Insecure-Requests", "1")
	// Accept-Encoding stays with the transport so gzip decoding remains automatic

	client.SetRetryCount(4)
	client.SetRetryWaitTime(opts.RetryWaitTime)
	client.SetRetryMaxWaitTime(opts.RetryMaxWaitTime)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return retryStatuses[r.StatusCode()]
	})

	return &Client{
		http:   client,
		store:  opts.Store,
		ttl:    opts.CacheTTL,
		source: opts.Source,
		log:    logger.ForSource(opts.Source),
	}
}

// Get fetches url and returns the body decoded to UTF-8. With a cache
// store attached it consults the cache first and fills it on success.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if c.store != nil {
		cached, err := c.store.Get(ctx, url)
		if err == nil {
			c.log.Debug().Str("url", url).Msg("cache hit")
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			c.log.Warn().Err(err).Str("url", url).Msg("cache read failed")
		}
	}

	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, errs.NewNetwork(c.source, "fetch "+url, err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusOK:
	case status == http.StatusForbidden:
		return nil, errs.NewNetwork(c.source, "blocked with HTTP 403 at "+url, nil)
	case status == http.StatusTooManyRequests:
		return nil, errs.NewRateLimit(c.source, "still rate limited after retries at "+url, nil)
	default:
		return nil, errs.NewNetwork(c.source, fmt.Sprintf("unexpected status %d at %s", status, url), nil)
	}

	body, err := decodeUTF8(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return nil, errs.NewNetwork(c.source, "decode body of "+url, err)
	}

	if c.store != nil {
		if err := c.store.Set(ctx, url, body, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("url", url).Msg("cache write failed")
		}
	}

	return body, nil
}

// WarmUp visits url to collect session cookies; some sites refuse search
// requests from cookie-less clients. Failures are reported but a caller
// normally just logs and carries on.
func (c *Client) WarmUp(ctx context.Context, url string) error {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return errs.NewNetwork(c.source, "warm up "+url, err)
	}
	c.log.Debug().Int("status", resp.StatusCode()).Str("url", url).Msg("warm-up request done")
	return nil
}

// decodeUTF8 converts body to UTF-8 using the charset advertised in
// contentType, sniffing the body when the header is silent.
func decodeUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
