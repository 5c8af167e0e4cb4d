// Package pax8 exposes the Pax8 marketplace API as pax8_* tools.
package pax8

import (
	"context"
	"fmt"
	"time"

	"github.com/crowdit/crowdmcp/pkg/credentials"
	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	"github.com/crowdit/crowdmcp/pkg/vendors"
)

const (
	DefaultBaseURL = "https://api.pax8.com"

	ClientIDSecret     = "PAX8_CLIENT_ID"
	ClientSecretSecret = "PAX8_CLIENT_SECRET"

	// tokenTTL applies because the authorize endpoint reports no lifetime.
	tokenTTL   = time.Hour
	vendorName = "Pax8"
)

// Provider serves the pax8_* tools.
type Provider struct {
	deps vendors.Deps
	api  vendors.Lazy[*httpapi.Client]
}

// New creates the provider.
func New(deps vendors.Deps) *Provider {
	return &Provider{deps: deps}
}

func (p *Provider) Name() string { return "pax8" }

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
		base := p.deps.URL(DefaultBaseURL)
		tokens := credentials.NewTokenCache(&credentials.JSONAuthorize{
			URL:          base + "/oauth/authorize",
			ClientID:     id,
			ClientSecret: secret,
			HTTPClient:   p.deps.HTTPClient,
		}, credentials.WithDefaultTTL(tokenTTL))
		return httpapi.New(vendorName, base, p.deps.ClientOptions(httpapi.WithAuth(httpapi.Bearer(tokens)))...), true
	})
}

func (p *Provider) run(ctx context.Context, action string, fn func(*httpapi.Client) (any, error)) string {
	api, ok := p.client(ctx)
	if !ok {
		return vendors.NotConfigured(vendorName, ClientIDSecret, ClientSecretSecret)
	}
	out, err := fn(api)
	if err != nil {
		return vendors.Fail(fmt.Errorf("%s: %w", action, err), "Pax8 rejected the client credentials. Check "+ClientIDSecret+" and "+ClientSecretSecret+".")
	}
	if s, ok := out.(string); ok {
		return s
	}
	return tools.JSON(out)
}
