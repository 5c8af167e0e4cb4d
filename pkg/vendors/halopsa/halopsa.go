// Package halopsa exposes the HaloPSA REST API as halopsa_* tools.
package halopsa

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crowdit/crowdmcp/pkg/credentials"
	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	"github.com/crowdit/crowdmcp/pkg/vendors"
)

const (
	// DefaultBaseURL is used when HALOPSA_BASE_URL is unset.
	DefaultBaseURL = "https://api.halopsa.com"

	ClientIDSecret     = "HALOPSA_CLIENT_ID"
	ClientSecretSecret = "HALOPSA_CLIENT_SECRET"
	BaseURLSecret      = "HALOPSA_BASE_URL"

	vendorName = "HaloPSA"
)

// Provider serves the halopsa_* tools.
type Provider struct {
	deps vendors.Deps
	now  func() time.Time
	api  vendors.Lazy[*httpapi.Client]
}

// Option configures the provider.
type Option func(*Provider)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New creates the provider.
func New(deps vendors.Deps, opts ...Option) *Provider {
	p := &Provider{deps: deps, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "halopsa" }

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
		if id == "" || secret == "" {
			return nil, false
		}
		base := p.deps.BaseURL
		if base == "" {
			base = p.deps.Lookup(ctx, BaseURLSecret)
		}
		if base == "" {
			base = DefaultBaseURL
		}
		base = strings.TrimRight(base, "/")

		tokens := credentials.NewTokenCache(&credentials.ClientCredentials{
			TokenURL:     base + "/oauth/token",
			ClientID:     id,
			ClientSecret: secret,
			Scopes:       []string{"all"},
			HTTPClient:   p.deps.HTTPClient,
		})
		return httpapi.New(vendorName, base, p.deps.ClientOptions(httpapi.WithAuth(httpapi.Bearer(tokens)))...), true
	})
}

// run calls fn with the client. action names the call in error messages.
func (p *Provider) run(ctx context.Context, action string, fn func(*httpapi.Client) (any, error)) string {
	api, ok := p.client(ctx)
	if !ok {
		return vendors.NotConfigured(vendorName, ClientIDSecret, ClientSecretSecret)
	}
	out, err := fn(api)
	if err != nil {
		return vendors.Fail(fmt.Errorf("%s: %w", action, err), "HaloPSA rejected the client credentials. Check "+ClientIDSecret+" and "+ClientSecretSecret+".")
	}
	if s, ok := out.(string); ok {
		return s
	}
	return tools.JSON(out)
}
