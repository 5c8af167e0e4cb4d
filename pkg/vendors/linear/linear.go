// Package linear exposes the Linear GraphQL API as linear_* tools.
package linear

import (
	"context"
	"fmt"
	"time"

	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	"github.com/crowdit/crowdmcp/pkg/vendors"
)

const (
	// DefaultBaseURL is the GraphQL endpoint.
	DefaultBaseURL = "https://api.linear.app/graphql"

	// APIKeySecret holds a personal API key.
	APIKeySecret = "LINEAR_API_KEY"

	vendorName = "Linear"
)

// Provider serves the linear_* tools.
type Provider struct {
	deps vendors.Deps
	api  vendors.Lazy[*httpapi.Client]
}

// New creates the provider.
func New(deps vendors.Deps) *Provider {
	return &Provider{deps: deps}
}

func (p *Provider) Name() string { return "linear" }

func (p *Provider) Configured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, ok := p.client(ctx)
	return ok
}

func (p *Provider) Routes() []registry.Route { return nil }

// client sends the key as-is. Linear personal keys take no Bearer prefix.
func (p *Provider) client(ctx context.Context) (*httpapi.Client, bool) {
	return p.api.Get(func() (*httpapi.Client, bool) {
		key := p.deps.Lookup(ctx, APIKeySecret)
		if key == "" {
			return nil, false
		}
		return httpapi.New(vendorName, p.deps.URL(DefaultBaseURL), p.deps.ClientOptions(
			httpapi.WithAuth(httpapi.RawHeader("Authorization", httpapi.TokenFunc(func(context.Context) (string, error) {
				return key, nil
			}))),
		)...), true
	})
}

// query runs a GraphQL document and decodes its data into out.
func (p *Provider) query(ctx context.Context, action, doc string, vars map[string]any, out any, fn func() string) string {
	api, ok := p.client(ctx)
	if !ok {
		return vendors.NotConfigured(vendorName, APIKeySecret)
	}
	data, err := api.GraphQL(ctx, doc, vars)
	if err == nil {
		err = httpapi.DecodeData(data, out)
	}
	if err != nil {
		return vendors.Fail(fmt.Errorf("%s: %w", action, err), "Linear rejected the API key. Check "+APIKeySecret+".")
	}
	return fn()
}
