// Package xero exposes the Xero accounting API as xero_* tools.
//
// Xero issues rotating refresh tokens: every refresh returns a new one and
// invalidates the old. The rotated token is written back to the secret
// store under XERO_REFRESH_TOKEN so a restart picks up the live value.
package xero

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/crowdit/crowdmcp/pkg/credentials"
	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	"github.com/crowdit/crowdmcp/pkg/vendors"
)

const (
	DefaultBaseURL  = "https://api.xero.com/api.xro/2.0"
	DefaultTokenURL = "https://identity.xero.com/connect/token"

	ClientIDSecret     = "XERO_CLIENT_ID"
	ClientSecretSecret = "XERO_CLIENT_SECRET"
	RefreshTokenSecret = "XERO_REFRESH_TOKEN"
	TenantIDSecret     = "XERO_TENANT_ID"

	vendorName = "Xero"
	authHint   = "Xero rejected the refresh token. Re-authorize the app and update " + RefreshTokenSecret + "."
)

// Provider serves the xero_* tools.
type Provider struct {
	deps     vendors.Deps
	tokenURL string
	now      func() time.Time
	api      vendors.Lazy[*httpapi.Client]
}

// Option configures the provider.
type Option func(*Provider)

// WithTokenURL overrides the identity endpoint.
func WithTokenURL(u string) Option {
	return func(p *Provider) { p.tokenURL = u }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New creates the provider.
func New(deps vendors.Deps, opts ...Option) *Provider {
	p := &Provider{deps: deps, tokenURL: DefaultTokenURL, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "xero" }

func (p *Provider) Configured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, ok := p.client(ctx)
	return ok
}

func (p *Provider) Routes() []registry.Route { return nil }

func (p *Provider) client(ctx context.Context) (*httpapi.Client, bool) {
	return p.api.Get(func() (*httpapi.Client, bool) {
		id := p.deps.Lookup(ctx, ClientIDSecret)
		secret := p.deps.Lookup(ctx, ClientSecretSecret)
		refresh := p.deps.Lookup(ctx, RefreshTokenSecret)
		tenant := p.deps.Lookup(ctx, TenantIDSecret)
		if id == "" || secret == "" || refresh == "" || tenant == "" {
			return nil, false
		}

		flow := credentials.NewRefreshToken(credentials.RefreshTokenConfig{
			TokenURL:     p.tokenURL,
			ClientID:     id,
			ClientSecret: secret,
			SecretName:   RefreshTokenSecret,
			Persister:    p.deps.Secrets,
			HTTPClient:   p.deps.HTTPClient,
		}, refresh)
		tokens := credentials.NewTokenCache(flow)
		return httpapi.New(vendorName, p.deps.URL(DefaultBaseURL), p.deps.ClientOptions(
			httpapi.WithAuth(httpapi.Bearer(tokens)),
			httpapi.WithHeader("Xero-tenant-id", tenant),
			httpapi.WithHeader("Accept", "application/json"),
		)...), true
	})
}

// run calls fn with the client. action names the call in error messages.
func (p *Provider) run(ctx context.Context, action string, fn func(*httpapi.Client) (any, error)) string {
	api, ok := p.client(ctx)
	if !ok {
		return vendors.NotConfigured(vendorName, ClientIDSecret, ClientSecretSecret, RefreshTokenSecret, TenantIDSecret)
	}
	out, err := fn(api)
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) {
			return tools.Errorf("%s", authHint)
		}
		return vendors.Fail(fmt.Errorf("%s: %w", action, err), authHint)
	}
	if s, ok := out.(string); ok {
		return s
	}
	return tools.JSON(out)
}
