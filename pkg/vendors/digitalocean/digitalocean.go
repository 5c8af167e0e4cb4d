// Package digitalocean exposes the DigitalOcean v2 API as digitalocean_*
// tools. Each configured account gets its own client, token and tool names.
package digitalocean

import (
	"context"
	"log/slog"
	"time"

	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	"github.com/crowdit/crowdmcp/pkg/vendors"
)

const (
	// DefaultBaseURL is the DigitalOcean API root.
	DefaultBaseURL = "https://api.digitalocean.com/v2"

	// DefaultTokenSecret holds the default account's token.
	DefaultTokenSecret = "DIGITALOCEAN_TOKEN"

	vendorName = "DigitalOcean"
	baseName   = "digitalocean_"
)

// Account is one DigitalOcean team.
type Account struct {
	Name        string
	Prefix      string
	Label       string
	TokenSecret string
}

// DefaultAccount is used when no accounts are configured.
func DefaultAccount() Account {
	return Account{Name: "default", Prefix: baseName, TokenSecret: DefaultTokenSecret}
}

// Provider serves every account's tools.
type Provider struct {
	accounts []*account
}

// New creates a provider. With no accounts the default account is used.
func New(deps vendors.Deps, accounts []Account) *Provider {
	if len(accounts) == 0 {
		accounts = []Account{DefaultAccount()}
	}
	p := &Provider{}
	for _, a := range accounts {
		if a.TokenSecret == "" {
			a.TokenSecret = DefaultTokenSecret
		}
		if a.Prefix == "" {
			a.Prefix = baseName
		}
		p.accounts = append(p.accounts, &account{Account: a, deps: deps})
	}
	return p
}

func (p *Provider) Name() string { return "digitalocean" }

// Configured reports whether any account has a token.
func (p *Provider) Configured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, a := range p.accounts {
		if _, ok := a.client(ctx); ok {
			return true
		}
	}
	return false
}

// Tools returns the tool set once per account, renamed to its prefix.
func (p *Provider) Tools() []tools.Tool {
	var out []tools.Tool
	for _, a := range p.accounts {
		base := a.tools()
		if a.Prefix == baseName && a.Label == "" {
			out = append(out, base...)
			continue
		}
		out = append(out, registry.Rename(base, registry.Account{From: baseName, Prefix: a.Prefix, Label: a.Label})...)
	}
	return out
}

func (p *Provider) Routes() []registry.Route { return nil }

// account binds tool handlers to one team's client.
type account struct {
	Account
	deps vendors.Deps
	api  vendors.Lazy[*httpapi.Client]
}

func (a *account) client(ctx context.Context) (*httpapi.Client, bool) {
	return a.api.Get(func() (*httpapi.Client, bool) {
		token := a.deps.Lookup(ctx, a.TokenSecret)
		if token == "" {
			return nil, false
		}
		slog.Debug("digitalocean client ready", "account", a.Name)
		return httpapi.New(vendorName, a.deps.URL(DefaultBaseURL), a.deps.ClientOptions(
			httpapi.WithAuth(httpapi.StaticBearer(token)),
			httpapi.WithErrorParser(httpapi.DigitalOceanErrorParser),
		)...), true
	})
}

func (a *account) notConfigured() string {
	if a.Label == "" {
		return vendors.NotConfigured(vendorName, a.TokenSecret)
	}
	return vendors.NotConfigured(vendorName+" account "+a.Label, a.TokenSecret)
}

// run resolves the client, calls fn and renders its result as JSON.
func (a *account) run(ctx context.Context, fn func(*httpapi.Client) (any, error)) string {
	c, ok := a.client(ctx)
	if !ok {
		return a.notConfigured()
	}
	out, err := fn(c)
	if err != nil {
		return vendors.Fail(err, "")
	}
	if s, ok := out.(string); ok {
		return s
	}
	return tools.JSON(out)
}
