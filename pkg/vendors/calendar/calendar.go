// Package calendar exposes the shared mailbox's calendar as calendar_*
// tools. It uses the same app-only Graph session as the email tools.
package calendar

import (
	"context"
	"net/url"
	"time"

	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	"github.com/crowdit/crowdmcp/pkg/vendors/graph"
)

const (
	eventFields = "id,subject,start,end,isAllDay,location,organizer,attendees,showAs,importance,isCancelled,isOnlineMeeting,onlineMeeting,responseStatus,categories,recurrence,seriesMasterId"

	// DefaultTimezone applies when a tool call names none.
	DefaultTimezone = "Australia/Sydney"
)

// Config tunes scheduling analysis.
type Config struct {
	// InternalDomain marks organizers whose meetings are not external.
	InternalDomain string
	Timezone       string
	// WorkStart and WorkEnd bound the working day in hours.
	WorkStart int
	WorkEnd   int
}

func (c Config) withDefaults() Config {
	if c.InternalDomain == "" {
		c.InternalDomain = "crowdit.com.au"
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.WorkEnd <= c.WorkStart {
		c.WorkStart, c.WorkEnd = 8, 18
	}
	return c
}

// Provider serves the calendar_* tools.
type Provider struct {
	mailbox *graph.Mailbox
	cfg     Config
	now     func() time.Time
}

// Option configures the provider.
type Option func(*Provider)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New creates the provider over a shared mailbox.
func New(mailbox *graph.Mailbox, cfg Config, opts ...Option) *Provider {
	p := &Provider{mailbox: mailbox, cfg: cfg.withDefaults(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "calendar" }

func (p *Provider) Configured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.mailbox.Configured(ctx)
}

func (p *Provider) Routes() []registry.Route { return nil }

func (p *Provider) run(ctx context.Context, action string, fn func(*graph.Session) (string, error)) string {
	s, ok := p.mailbox.Session(ctx)
	if !ok {
		return graph.NotConfigured("Calendar")
	}
	out, err := fn(s)
	if err != nil {
		return graph.Fail(action, err)
	}
	return out
}

func (p *Provider) timezone(tz string) string {
	if tz == "" {
		return p.cfg.Timezone
	}
	return tz
}

// inZone asks Graph to render event times in tz.
func inZone(ctx context.Context, tz string) context.Context {
	return httpapi.ContextWithHeader(ctx, "Prefer", `outlook.timezone="`+tz+`"`)
}

func eventPath(id string) string {
	return "/events/" + url.PathEscape(id)
}
