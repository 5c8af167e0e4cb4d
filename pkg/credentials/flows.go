package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/crowdit/crowdmcp/pkg/debug"
)

// Persister writes a rotated secret back to durable storage.
// secrets.Resolver implements it.
type Persister interface {
	Persist(ctx context.Context, name, value string) bool
}

// withHTTPClient makes the oauth2 package use hc for token requests.
func withHTTPClient(ctx context.Context, hc *http.Client) context.Context {
	if hc == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}

// ClientCredentials implements the OAuth2 client_credentials grant with
// the credentials sent in the form body.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	HTTPClient   *http.Client
}

// Fetch requests a new token.
func (f *ClientCredentials) Fetch(ctx context.Context) (*oauth2.Token, error) {
	cfg := clientcredentials.Config{
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		TokenURL:     f.TokenURL,
		Scopes:       f.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := cfg.Token(withHTTPClient(ctx, f.HTTPClient))
	if err != nil {
		return nil, fmt.Errorf("client credentials token request: %w", err)
	}
	return tok, nil
}

// RefreshTokenConfig describes a refresh_token grant endpoint.
type RefreshTokenConfig struct {
	TokenURL     string
	AuthURL      string
	ClientID     string
	ClientSecret string
	Scopes       []string
	SecretName   string
	Persister    Persister
	HTTPClient   *http.Client
}

// RefreshToken implements the refresh_token grant. When the provider
// rotates the refresh token, the new value replaces the current one and is
// written through Persister under SecretName.
type RefreshToken struct {
	RefreshTokenConfig

	mu      sync.Mutex
	current string
}

// NewRefreshToken creates a flow starting from refreshToken, which may be
// empty until an authorization code has been exchanged.
func NewRefreshToken(cfg RefreshTokenConfig, refreshToken string) *RefreshToken {
	return &RefreshToken{RefreshTokenConfig: cfg, current: refreshToken}
}

// ErrNoRefreshToken is returned by Fetch before any refresh token is known.
var ErrNoRefreshToken = errors.New("no refresh token available")

// Current returns the refresh token in use.
func (f *RefreshToken) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Fetch exchanges the current refresh token for an access token.
func (f *RefreshToken) Fetch(ctx context.Context) (*oauth2.Token, error) {
	rt := f.Current()
	if rt == "" {
		return nil, ErrNoRefreshToken
	}

	// clientcredentials lets grant_type be overridden, which gives a
	// refresh_token request that still carries the scope parameter.
	cfg := clientcredentials.Config{
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		TokenURL:     f.TokenURL,
		Scopes:       f.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
		EndpointParams: url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {rt},
		},
	}
	tok, err := cfg.Token(withHTTPClient(ctx, f.HTTPClient))
	if err != nil {
		return nil, fmt.Errorf("refresh token request: %w", err)
	}
	f.rotate(ctx, rt, tok.RefreshToken)
	return tok, nil
}

// AuthCodeURL builds the consent URL for the authorization-code grant.
func (f *RefreshToken) AuthCodeURL(state, redirectURI string) string {
	return f.oauthConfig(redirectURI).AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

// Exchange completes the authorization-code grant and adopts the returned
// refresh token.
func (f *RefreshToken) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	tok, err := f.oauthConfig(redirectURI).Exchange(withHTTPClient(ctx, f.HTTPClient), code)
	if err != nil {
		return nil, fmt.Errorf("authorization code exchange: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, errors.New("authorization response did not include a refresh token")
	}
	f.rotate(ctx, f.Current(), tok.RefreshToken)
	return tok, nil
}

func (f *RefreshToken) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       f.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   f.AuthURL,
			TokenURL:  f.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// rotate adopts next when it differs from prev and persists it.
func (f *RefreshToken) rotate(ctx context.Context, prev, next string) {
	if next == "" || next == prev {
		return
	}

	f.mu.Lock()
	f.current = next
	f.mu.Unlock()

	if f.Persister == nil || f.SecretName == "" {
		return
	}
	if f.Persister.Persist(ctx, f.SecretName, next) {
		debug.Log("credentials", "rotated refresh token persisted", "secret", f.SecretName)
	} else {
		debug.Log("credentials", "rotated refresh token kept in memory only", "secret", f.SecretName)
	}
}

// JSONAuthorize posts {"clientId","clientSecret"} as JSON and reads
// access_token from the response. The endpoint declares no lifetime, so
// tokens carry zero expiry and the cache applies its default TTL.
type JSONAuthorize struct {
	URL          string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

// Fetch requests a new token.
func (f *JSONAuthorize) Fetch(ctx context.Context) (*oauth2.Token, error) {
	body, err := json.Marshal(map[string]string{
		"clientId":     f.ClientID,
		"clientSecret": f.ClientSecret,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := f.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, debug.Truncate(string(data), 200))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}
	return &oauth2.Token{AccessToken: tr.AccessToken, TokenType: tr.TokenType}, nil
}
