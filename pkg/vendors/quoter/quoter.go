// Package quoter exposes the Quoter quoting API as quoter_* tools.
package quoter

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
	DefaultBaseURL = "https://api.quoter.io"
	APIKeySecret   = "QUOTER_API_KEY"
	BaseURLSecret  = "QUOTER_API_URL"

	vendorName = "Quoter"
)

// Provider serves the quoter_* tools.
type Provider struct {
	deps vendors.Deps
	api  vendors.Lazy[*httpapi.Client]
}

// New creates the provider.
func New(deps vendors.Deps) *Provider {
	return &Provider{deps: deps}
}

func (p *Provider) Name() string { return "quoter" }

func (p *Provider) Configured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, ok := p.client(ctx)
	return ok
}

func (p *Provider) Routes() []registry.Route { return nil }

func (p *Provider) client(ctx context.Context) (*httpapi.Client, bool) {
	return p.api.Get(func() (*httpapi.Client, bool) {
		key := p.deps.Lookup(ctx, APIKeySecret)
		if key == "" {
			return nil, false
		}
		base := p.deps.BaseURL
		if base == "" {
			base = p.deps.Lookup(ctx, BaseURLSecret)
		}
		if base == "" {
			base = DefaultBaseURL
		}
		return httpapi.New(vendorName, base, p.deps.ClientOptions(httpapi.WithAuth(httpapi.StaticBearer(key)))...), true
	})
}

func (p *Provider) run(ctx context.Context, action string, fn func(*httpapi.Client) (any, error)) string {
	api, ok := p.client(ctx)
	if !ok {
		return vendors.NotConfigured(vendorName, APIKeySecret)
	}
	out, err := fn(api)
	if err != nil {
		return vendors.Fail(fmt.Errorf("%s: %w", action, err), "Quoter rejected the API key. Check "+APIKeySecret+".")
	}
	if s, ok := out.(string); ok {
		return s
	}
	return tools.JSON(out)
}
