// Package m365 exposes a user's own Microsoft 365 data (mail, calendar,
// OneDrive, Teams) through delegated Graph access.
//
// The user connects once with m365_auth_start. The consent redirect lands on
// /callback, the code is exchanged, and the refresh token is persisted to
// M365_REFRESH_TOKEN. Later refreshes rotate and persist it again.
package m365

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"github.com/crowdit/crowdmcp/pkg/auth/oauthstate"
	"github.com/crowdit/crowdmcp/pkg/credentials"
	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/secrets"
	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	"github.com/crowdit/crowdmcp/pkg/vendors"
	"github.com/crowdit/crowdmcp/pkg/vendors/graph"
)

// Integration is the name carried in the OAuth state.
const Integration = "m365"

// RefreshTokenSecret holds the delegated refresh token.
const RefreshTokenSecret = "M365_REFRESH_TOKEN"

// Credential names, each with its legacy SharePoint fallback.
var (
	clientIDNames     = []string{"M365_CLIENT_ID", "SHAREPOINT_CLIENT_ID"}
	clientSecretNames = []string{"M365_CLIENT_SECRET", "SHAREPOINT_CLIENT_SECRET"}
	tenantIDNames     = []string{"M365_TENANT_ID", "SHAREPOINT_TENANT_ID"}
)

// Scopes requested at consent and on every refresh.
var Scopes = []string{graph.Scope, "offline_access"}

const (
	notConfigured = "Error: M365 not configured. Run m365_auth_start to connect."
	authExpired   = "M365 authentication expired. Run m365_auth_start to reconnect."
)

// Config holds the server settings the consent flow needs.
type Config struct {
	// PublicURL is the externally reachable base of this server.
	PublicURL string

	// States signs the OAuth state. A random per-process signer is used
	// when nil.
	States *oauthstate.Signer
}

type session struct {
	flow   *credentials.RefreshToken
	tokens *credentials.TokenCache
	api    *httpapi.Client
}

// Provider serves the m365_* tools and the consent callback.
type Provider struct {
	deps     vendors.Deps
	cfg      Config
	loginURL string
	now      func() time.Time
	store    *persister
	session  vendors.Lazy[*session]
}

// Option configures the provider.
type Option func(*Provider)

// WithLoginURL replaces the Entra ID authority, for tests.
func WithLoginURL(u string) Option {
	return func(p *Provider) { p.loginURL = u }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New creates the provider. deps.BaseURL overrides the Graph root.
func New(deps vendors.Deps, cfg Config, opts ...Option) *Provider {
	p := &Provider{deps: deps, cfg: cfg, loginURL: graph.DefaultLoginURL, now: time.Now}
	if deps.Secrets != nil {
		p.store = &persister{src: deps.Secrets}
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.States == nil {
		signer, err := oauthstate.New("", 0)
		if err != nil {
			slog.Warn("m365 state signer unavailable", "error", err)
		}
		p.cfg.States = signer
	}
	return p
}

func (p *Provider) Name() string { return Integration }

// Configured reports whether a refresh token is available.
func (p *Provider) Configured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, ok := p.client(ctx)
	return ok && s.flow.Current() != ""
}

func (p *Provider) Routes() []registry.Route {
	return []registry.Route{
		{Method: http.MethodGet, Pattern: "/callback", Handler: p.handleCallback},
		{Method: http.MethodGet, Pattern: "/sharepoint-callback", Handler: p.handleCallback},
	}
}

func (p *Provider) redirectURI() string {
	return strings.TrimRight(p.cfg.PublicURL, "/") + "/callback"
}

func (p *Provider) flowConfig(ctx context.Context) credentials.RefreshTokenConfig {
	tenant := p.deps.Lookup(ctx, tenantIDNames...)
	cfg := credentials.RefreshTokenConfig{
		TokenURL:     graph.TokenURL(p.loginURL, tenant),
		AuthURL:      fmt.Sprintf("%s/%s/oauth2/v2.0/authorize", p.loginURL, url.PathEscape(tenant)),
		ClientID:     p.deps.Lookup(ctx, clientIDNames...),
		ClientSecret: p.deps.Lookup(ctx, clientSecretNames...),
		Scopes:       Scopes,
		SecretName:   RefreshTokenSecret,
		HTTPClient:   p.deps.HTTPClient,
	}
	if p.store != nil {
		cfg.Persister = p.store
	}
	return cfg
}

// client builds the session once the app credentials are present. The
// refresh token may still be empty at that point.
func (p *Provider) client(ctx context.Context) (*session, bool) {
	return p.session.Get(func() (*session, bool) {
		cfg := p.flowConfig(ctx)
		if cfg.ClientID == "" || cfg.ClientSecret == "" || p.deps.Lookup(ctx, tenantIDNames...) == "" {
			return nil, false
		}
		flow := credentials.NewRefreshToken(cfg, p.deps.Lookup(ctx, RefreshTokenSecret))
		tokens := credentials.NewTokenCache(flow)
		return &session{
			flow:   flow,
			tokens: tokens,
			api: httpapi.New("Microsoft 365", p.deps.URL(graph.DefaultBaseURL), p.deps.ClientOptions(
				httpapi.WithAuth(httpapi.Bearer(tokens)),
			)...),
		}, true
	})
}

// run calls fn with a connected client and maps failures to tool errors.
func (p *Provider) run(ctx context.Context, fn func(*httpapi.Client) (string, error)) string {
	s, ok := p.client(ctx)
	if !ok || s.flow.Current() == "" {
		return notConfigured
	}
	out, err := fn(s.api)
	if err != nil {
		return fail(err)
	}
	return out
}

func fail(err error) string {
	var retrieve *oauth2.RetrieveError
	switch {
	case errors.Is(err, credentials.ErrNoRefreshToken):
		return notConfigured
	case errors.As(err, &retrieve):
		return tools.Errorf("%s", authExpired)
	}
	return vendors.Fail(err, authExpired)
}

// complete exchanges an authorization code and reports the connected user.
func (p *Provider) complete(ctx context.Context, code string) (user string, saved bool, err error) {
	s, ok := p.client(ctx)
	if !ok {
		return "", false, errors.New("M365 credentials not configured")
	}
	tok, err := s.flow.Exchange(ctx, code, p.redirectURI())
	if err != nil {
		return "", false, err
	}
	s.tokens.Set(tok)

	if me, err := s.api.Object(ctx, http.MethodGet, "/me", nil, nil); err == nil {
		user = fmt.Sprintf("%s (%s)", orNA(me["displayName"], "Unknown"), mailOf(me, "Unknown"))
	} else {
		slog.Warn("m365 profile lookup failed after consent", "error", err)
	}
	return user, p.store != nil && p.store.persisted(tok.RefreshToken), nil
}

// persister records which refresh token last reached the secret store.
type persister struct {
	src   secrets.Source
	saved atomic.Pointer[string]
}

func (p *persister) Persist(ctx context.Context, name, value string) bool {
	if !p.src.Persist(ctx, name, value) {
		return false
	}
	p.saved.Store(&value)
	return true
}

func (p *persister) persisted(value string) bool {
	v := p.saved.Load()
	return v != nil && *v == value
}

func orNA(v any, def string) string {
	if s := tools.Str(v); s != "" {
		return s
	}
	return def
}

func mailOf(profile map[string]any, def string) string {
	if s := tools.Str(profile["mail"]); s != "" {
		return s
	}
	return orNA(profile["userPrincipalName"], def)
}
