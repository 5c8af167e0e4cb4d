// Package httpapi is the shared HTTP and GraphQL client used by every vendor
// integration.
//
// A Client injects credentials, retries 429 responses with a capped
// Retry-After backoff, maps 204 and empty bodies to a success marker and
// turns error responses into descriptive errors. Decoded JSON keeps numbers
// as json.Number so large vendor IDs survive a round trip.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crowdit/crowdmcp/pkg/debug"
	"github.com/crowdit/crowdmcp/pkg/observability"
)

const (
	defaultMaxRetries       = 2
	defaultRetryCap         = 30 * time.Second
	defaultRetryAfter       = 5 * time.Second
	defaultTimeout          = 30 * time.Second
	maxResponseBody   int64 = 32 << 20
)

// Success is returned for 204 responses and empty 2xx bodies.
func Success() map[string]any {
	return map[string]any{"status": "success"}
}

// Client talks to one vendor API.
type Client struct {
	vendor            string
	baseURL           string
	httpClient        *http.Client
	auth              Authorizer
	headers           http.Header
	maxRetries        int
	retryCap          time.Duration
	defaultRetryAfter time.Duration
	sleep             func(context.Context, time.Duration) error
	parseError        ErrorParser
}

// Option configures a Client.
type Option func(*Client)

// WithAuth sets the request authorizer.
func WithAuth(a Authorizer) Option {
	return func(c *Client) { c.auth = a }
}

// WithHeader adds a header to every request.
func WithHeader(name, value string) Option {
	return func(c *Client) { c.headers.Set(name, value) }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithMaxRetries sets how many times a 429 is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryCap bounds each backoff sleep.
func WithRetryCap(d time.Duration) Option {
	return func(c *Client) { c.retryCap = d }
}

// WithDefaultRetryAfter is used when a 429 carries no Retry-After header.
func WithDefaultRetryAfter(d time.Duration) Option {
	return func(c *Client) { c.defaultRetryAfter = d }
}

// WithSleep replaces the backoff sleep, for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithErrorParser sets a vendor-specific error body parser.
func WithErrorParser(p ErrorParser) Option {
	return func(c *Client) { c.parseError = p }
}

// New creates a Client for vendor rooted at baseURL.
func New(vendor, baseURL string, opts ...Option) *Client {
	c := &Client{
		vendor:            vendor,
		baseURL:           strings.TrimRight(baseURL, "/"),
		httpClient:        &http.Client{Timeout: defaultTimeout},
		headers:           http.Header{},
		maxRetries:        defaultMaxRetries,
		retryCap:          defaultRetryCap,
		defaultRetryAfter: defaultRetryAfter,
		sleep:             sleepContext,
		parseError:        DefaultErrorParser,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Vendor returns the vendor display name.
func (c *Client) Vendor() string { return c.vendor }

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Do issues a request and returns the decoded JSON body.
// path may be relative to the base URL or absolute.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (any, error) {
	data, err := c.roundTrip(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Success(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		// Some endpoints answer 2xx with plain text.
		return strings.TrimSpace(string(data)), nil
	}
	return out, nil
}

// DoInto issues a request and decodes the JSON body into out. An empty
// body leaves out untouched.
func (c *Client) DoInto(ctx context.Context, method, path string, query url.Values, body, out any) error {
	data, err := c.roundTrip(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s returned an unexpected response: %w", c.vendor, err)
	}
	return nil
}

// Object is Do for endpoints that answer with a JSON object.
func (c *Client) Object(ctx context.Context, method, path string, query url.Values, body any) (map[string]any, error) {
	res, err := c.Do(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	m, ok := res.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s returned an unexpected response for %s", c.vendor, path)
	}
	return m, nil
}

// Get is Do with GET.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (any, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// roundTrip runs the request with the 429 retry loop and returns the body
// of a 2xx response.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	target, err := c.resolve(path, query)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encoding %s request body: %w", c.vendor, err)
		}
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, target, payload)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), c.defaultRetryAfter)
			drain(resp)
			if attempt >= c.maxRetries {
				return nil, &RateLimitError{Vendor: c.vendor, RetryAfter: int(retryAfter.Round(time.Second) / time.Second)}
			}
			observability.VendorRetriesTotal.WithLabelValues(c.vendor).Inc()
			wait := min(retryAfter, c.retryCap)
			debug.Log("http", "rate limited, backing off", "vendor", c.vendor, "attempt", attempt+1, "wait", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, c.parseError(c.vendor, resp.StatusCode, readErrorBody(resp))
		}
		if resp.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, &ConnectionError{Vendor: c.vendor, Err: err}
		}
		if debug.TraceIsEnabled("http") {
			debug.Trace("http", "response body", "vendor", c.vendor, "body", debug.Truncate(string(data), 2000))
		}
		return data, nil
	}
}

// send performs one attempt.
func (c *Client) send(ctx context.Context, method, target string, payload []byte) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", c.vendor, err)
	}
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	for k, vs := range contextHeaders(ctx) {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		if err := c.auth.Authorize(ctx, req); err != nil {
			return nil, fmt.Errorf("%s authentication failed: %w", c.vendor, err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	observability.VendorLatency.WithLabelValues(c.vendor).Observe(elapsed.Seconds())
	if err != nil {
		observability.VendorRequestsTotal.WithLabelValues(c.vendor, method, "error").Inc()
		debug.Log("http", "request failed", "vendor", c.vendor, "method", method, "path", req.URL.Path, "error", err)
		return nil, &ConnectionError{Vendor: c.vendor, Err: err}
	}
	observability.VendorRequestsTotal.WithLabelValues(c.vendor, method, strconv.Itoa(resp.StatusCode)).Inc()
	debug.Log("http", "request", "vendor", c.vendor, "method", method, "path", req.URL.Path,
		"status", resp.StatusCode, "duration", elapsed.Round(time.Millisecond))
	return resp, nil
}

// resolve joins path onto the base URL and merges query.
func (c *Client) resolve(path string, query url.Values) (string, error) {
	raw := path
	switch {
	case path == "":
		raw = c.baseURL
	case !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://"):
		raw = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid %s URL %q: %w", c.vendor, raw, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, fallback time.Duration) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d.Round(time.Second)
		}
		return 0
	}
	return fallback
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
