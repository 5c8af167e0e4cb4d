// Package credentials caches short-lived vendor access tokens and
// implements the OAuth2 flows used to obtain them.
//
// A TokenCache wraps a Fetcher and hands out the cached access token until
// it comes within a safety margin of its expiry. The flows in this package
// (client credentials, refresh token with rotation, JSON authorize) are
// Fetchers.
package credentials

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/crowdit/crowdmcp/pkg/debug"
)

const (
	// DefaultMargin is how long before expiry a token is treated as stale.
	DefaultMargin = 60 * time.Second

	// DefaultTTL is assumed when a token endpoint declares no expiry.
	DefaultTTL = time.Hour
)

// Fetcher obtains a fresh token from an identity provider.
type Fetcher interface {
	Fetch(ctx context.Context) (*oauth2.Token, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*oauth2.Token, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context) (*oauth2.Token, error) { return f(ctx) }

// TokenCache holds one access token and refreshes it through a Fetcher.
//
// The lock is not held during a fetch: concurrent callers that all observe a
// stale token may each fetch, and the last one to finish wins.
type TokenCache struct {
	fetcher    Fetcher
	margin     time.Duration
	defaultTTL time.Duration
	nowFunc    func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// CacheOption configures a TokenCache.
type CacheOption func(*TokenCache)

// WithMargin sets the safety margin before expiry.
func WithMargin(d time.Duration) CacheOption {
	return func(c *TokenCache) { c.margin = d }
}

// WithDefaultTTL sets the lifetime assumed for tokens without an expiry.
func WithDefaultTTL(d time.Duration) CacheOption {
	return func(c *TokenCache) { c.defaultTTL = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *TokenCache) { c.nowFunc = now }
}

// NewTokenCache creates an empty cache around f.
func NewTokenCache(f Fetcher, opts ...CacheOption) *TokenCache {
	c := &TokenCache{
		fetcher:    f,
		margin:     DefaultMargin,
		defaultTTL: DefaultTTL,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a valid access token, fetching a new one when the cached
// token is missing or within the margin of its expiry.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.nowFunc().Before(c.expiry.Add(-c.margin)) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	tok, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return "", err
	}
	if tok == nil || tok.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}

	c.Set(tok)
	return tok.AccessToken, nil
}

// Set stores tok as the current token. Used after an authorization-code
// exchange, which yields a token outside the regular fetch path.
func (c *TokenCache) Set(tok *oauth2.Token) {
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = c.nowFunc().Add(c.defaultTTL)
	}

	c.mu.Lock()
	c.token = tok.AccessToken
	c.expiry = expiry
	c.mu.Unlock()

	debug.Log("credentials", "token cached", "expires_in", time.Until(expiry).Round(time.Second))
}

// Invalidate drops the cached token so the next call fetches.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiry = time.Time{}
	c.mu.Unlock()
}

// Expiry returns the expiry of the cached token, zero when empty.
func (c *TokenCache) Expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiry
}
