// Package email exposes a Microsoft 365 mailbox as email_* tools through
// app-only Graph access.
package email

import (
	"context"
	"net/url"
	"time"

	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	"github.com/crowdit/crowdmcp/pkg/vendors/graph"
)

const messageFields = "id,subject,from,toRecipients,ccRecipients,receivedDateTime,isRead,importance,flag,hasAttachments,categories,bodyPreview,conversationId"

// Provider serves the email_* tools.
type Provider struct {
	mailbox *graph.Mailbox
	now     func() time.Time
}

// Option configures the provider.
type Option func(*Provider)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New creates the provider over a shared mailbox.
func New(mailbox *graph.Mailbox, opts ...Option) *Provider {
	p := &Provider{mailbox: mailbox, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "email" }

func (p *Provider) Configured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.mailbox.Configured(ctx)
}

func (p *Provider) Routes() []registry.Route { return nil }

// run resolves the session and calls fn. action names the operation in
// failure messages.
func (p *Provider) run(ctx context.Context, action string, fn func(*graph.Session) (string, error)) string {
	s, ok := p.mailbox.Session(ctx)
	if !ok {
		return graph.NotConfigured("Email")
	}
	out, err := fn(s)
	if err != nil {
		return graph.Fail(action, err)
	}
	return out
}

func messagePath(id string) string {
	return "/messages/" + url.PathEscape(id)
}

func addresses(csv string) []map[string]any {
	out := []map[string]any{}
	for _, addr := range tools.SplitCSV(csv) {
		out = append(out, map[string]any{"emailAddress": map[string]any{"address": addr}})
	}
	return out
}
