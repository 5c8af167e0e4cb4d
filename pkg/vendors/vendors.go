// Package vendors holds the pieces shared by every vendor integration:
// client options, lazy client construction and the error strings returned
// at the tool boundary.
package vendors

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/crowdit/crowdmcp/pkg/httpapi"
	"github.com/crowdit/crowdmcp/pkg/secrets"
	"github.com/crowdit/crowdmcp/pkg/tools"
)

// Deps are the collaborators every provider receives.
type Deps struct {
	Secrets secrets.Source

	// BaseURL overrides the vendor API root.
	BaseURL string

	// HTTPClient replaces the default per-vendor client.
	HTTPClient *http.Client

	// Timeout is the per-request timeout of the default client.
	Timeout time.Duration

	// Sleep replaces the 429 backoff sleep, for tests.
	Sleep func(context.Context, time.Duration) error
}

// ClientOptions turns d into httpapi options. extra are appended.
func (d Deps) ClientOptions(extra ...httpapi.Option) []httpapi.Option {
	var opts []httpapi.Option
	if d.Timeout > 0 {
		opts = append(opts, httpapi.WithTimeout(d.Timeout))
	}
	if d.HTTPClient != nil {
		opts = append(opts, httpapi.WithHTTPClient(d.HTTPClient))
	}
	if d.Sleep != nil {
		opts = append(opts, httpapi.WithSleep(d.Sleep))
	}
	return append(opts, extra...)
}

// URL returns d.BaseURL, or def when unset.
func (d Deps) URL(def string) string {
	if d.BaseURL != "" {
		return d.BaseURL
	}
	return def
}

// Lookup resolves a secret through d.Secrets.
func (d Deps) Lookup(ctx context.Context, names ...string) string {
	if d.Secrets == nil {
		return ""
	}
	v, _ := d.Secrets.LookupAny(ctx, names...)
	return v
}

// NotConfigured is the error string for a vendor missing credentials.
func NotConfigured(vendor string, vars ...string) string {
	return tools.Errorf("%s not configured. Set %s.", vendor, joinVars(vars))
}

func joinVars(vars []string) string {
	switch len(vars) {
	case 0:
		return "its credentials"
	case 1:
		return vars[0]
	case 2:
		return vars[0] + " and " + vars[1]
	}
	return strings.Join(vars[:len(vars)-1], ", ") + " and " + vars[len(vars)-1]
}

// Fail converts err into an error result. A 401 becomes hint when hint is
// non-empty.
func Fail(err error, hint string) string {
	var apiErr *httpapi.APIError
	if hint != "" && errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return tools.Errorf("%s", hint)
	}
	return tools.Error(err)
}

// Lazy builds a value on first successful use and keeps it. A failed build
// is retried on the next call, so a credential added later takes effect.
type Lazy[T any] struct {
	mu    sync.Mutex
	value T
	ok    bool
}

// Get returns the cached value or calls build.
func (l *Lazy[T]) Get(build func() (T, bool)) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ok {
		return l.value, true
	}
	v, ok := build()
	if ok {
		l.value, l.ok = v, true
	}
	return v, ok
}
