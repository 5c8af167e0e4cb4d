// Package graph holds the Microsoft Graph client shared by the email and
// calendar tools. Both act on one mailbox with an app-only token.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/crowdit/crowdmcp/pkg/credentials"
	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/vendors"
)

const (
	// DefaultBaseURL is the Graph v1.0 root.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	// DefaultLoginURL is the Entra ID authority.
	DefaultLoginURL = "https://login.microsoftonline.com"

	// Scope requests every application permission granted to the app.
	Scope = "https://graph.microsoft.com/.default"

	// PreferText asks Graph for plain-text message bodies.
	PreferText = `outlook.body-content-type="text"`
)

// Mailbox secrets.
const (
	TenantIDSecret     = "EMAIL_TENANT_ID"
	ClientIDSecret     = "EMAIL_CLIENT_ID"
	ClientSecretSecret = "EMAIL_CLIENT_SECRET"
	UserIDSecret       = "EMAIL_USER_ID"
)

// Secrets lists the mailbox secrets in the order they are reported.
var Secrets = []string{TenantIDSecret, ClientIDSecret, ClientSecretSecret, UserIDSecret}

// TokenURL is the v2.0 token endpoint of tenant under loginURL.
func TokenURL(loginURL, tenant string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", loginURL, url.PathEscape(tenant))
}

// Session is a ready client bound to the default mailbox.
type Session struct {
	API    *httpapi.Client
	UserID string
}

// User prefixes endpoint with the mailbox path. userID overrides the
// default mailbox when non-empty.
func (s *Session) User(userID, endpoint string) string {
	if userID == "" {
		userID = s.UserID
	}
	return "/users/" + url.PathEscape(userID) + endpoint
}

// Mailbox builds the Graph session on first use.
type Mailbox struct {
	deps     vendors.Deps
	loginURL string
	session  vendors.Lazy[*Session]
}

// MailboxOption configures a Mailbox.
type MailboxOption func(*Mailbox)

// WithLoginURL replaces the Entra ID authority, for tests.
func WithLoginURL(u string) MailboxOption {
	return func(m *Mailbox) { m.loginURL = u }
}

// NewMailbox creates a mailbox. deps.BaseURL overrides the Graph root.
func NewMailbox(deps vendors.Deps, opts ...MailboxOption) *Mailbox {
	m := &Mailbox{deps: deps, loginURL: DefaultLoginURL}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session returns the shared session, or false while any secret is missing.
func (m *Mailbox) Session(ctx context.Context) (*Session, bool) {
	return m.session.Get(func() (*Session, bool) {
		tenant := m.deps.Lookup(ctx, TenantIDSecret)
		clientID := m.deps.Lookup(ctx, ClientIDSecret)
		secret := m.deps.Lookup(ctx, ClientSecretSecret)
		userID := m.deps.Lookup(ctx, UserIDSecret)
		if tenant == "" || clientID == "" || secret == "" || userID == "" {
			return nil, false
		}

		tokens := credentials.NewTokenCache(&credentials.ClientCredentials{
			TokenURL:     TokenURL(m.loginURL, tenant),
			ClientID:     clientID,
			ClientSecret: secret,
			Scopes:       []string{Scope},
			HTTPClient:   m.deps.HTTPClient,
		})
		slog.Debug("graph mailbox ready", "user", userID)
		return &Session{
			API: httpapi.New("Microsoft Graph", m.deps.URL(DefaultBaseURL), m.deps.ClientOptions(
				httpapi.WithAuth(httpapi.Bearer(tokens)),
				httpapi.WithHeader("Prefer", PreferText),
			)...),
			UserID: userID,
		}, true
	})
}

// Configured reports whether every mailbox secret is present.
func (m *Mailbox) Configured(ctx context.Context) bool {
	_, ok := m.Session(ctx)
	return ok
}

// NotConfigured is the result for a missing mailbox, e.g. "Email".
func NotConfigured(product string) string {
	return fmt.Sprintf("❌ %s not configured. Set EMAIL_TENANT_ID, EMAIL_CLIENT_ID, EMAIL_CLIENT_SECRET, EMAIL_USER_ID.", product)
}

// Fail is the result for a failed call, e.g. Fail("listing emails", err).
func Fail(action string, err error) string {
	if action == "" {
		return "❌ Error: " + err.Error()
	}
	return fmt.Sprintf("❌ Error %s: %v", action, err)
}
