// Package front exposes the Front shared-inbox API as front_* tools.
package front

import (
	"context"
	"fmt"
	"time"

	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	"github.com/crowdit/crowdmcp/pkg/vendors"
)

const (
	DefaultBaseURL = "https://api2.frontapp.com"
	TokenSecret    = "FRONT_API_TOKEN"

	vendorName = "Front"
)

// Provider serves the front_* tools.
type Provider struct {
	deps vendors.Deps
	api  vendors.Lazy[*httpapi.Client]
}

// New creates the provider.
func New(deps vendors.Deps) *Provider {
	return &Provider{deps: deps}
}

func (p *Provider) Name() string { return "front" }

func (p *Provider) Configured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, ok := p.client(ctx)
	return ok
}

func (p *Provider) Routes() []registry.Route { return nil }

func (p *Provider) client(ctx context.Context) (*httpapi.Client, bool) {
	return p.api.Get(func() (*httpapi.Client, bool) {
		token := p.deps.Lookup(ctx, TokenSecret)
		if token == "" {
			return nil, false
		}
		return httpapi.New(vendorName, p.deps.URL(DefaultBaseURL),
			p.deps.ClientOptions(httpapi.WithAuth(httpapi.StaticBearer(token)))...), true
	})
}

func (p *Provider) run(ctx context.Context, action string, fn func(*httpapi.Client) (any, error)) string {
	api, ok := p.client(ctx)
	if !ok {
		return vendors.NotConfigured(vendorName, TokenSecret)
	}
	out, err := fn(api)
	if err != nil {
		return vendors.Fail(fmt.Errorf("%s: %w", action, err), "Front rejected the API token. Check "+TokenSecret+".")
	}
	if s, ok := out.(string); ok {
		return s
	}
	return tools.JSON(out)
}
