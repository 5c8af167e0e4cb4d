package apikey

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/crowdit/crowdmcp/pkg/auth"
	"github.com/crowdit/crowdmcp/pkg/auth/noop"
)

type mapSource struct {
	values map[string]string
	calls  atomic.Int32
}

func (m *mapSource) Lookup(_ context.Context, name string) (string, bool) {
	m.calls.Add(1)
	v, ok := m.values[name]
	return v, ok && v != ""
}

func request(mutate func(r *http.Request)) *http.Request {
	r := httptest.NewRequest("POST", "/mcp", nil)
	if mutate != nil {
		mutate(r)
	}
	return r
}

func TestKeyLocations(t *testing.T) {
	a := New("sk-test", nil, "")

	tests := []struct {
		name   string
		mutate func(r *http.Request)
		want   auth.AuthDecision
	}{
		{"query", func(r *http.Request) { r.URL.RawQuery = "api_key=sk-test" }, auth.Yes},
		{"x-api-key", func(r *http.Request) { r.Header.Set("X-API-Key", "sk-test") }, auth.Yes},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer sk-test") }, auth.Yes},
		{"raw authorization", func(r *http.Request) { r.Header.Set("Authorization", "sk-test") }, auth.Yes},
		{"wrong key", func(r *http.Request) { r.Header.Set("X-API-Key", "sk-wrong") }, auth.No},
		{"missing", nil, auth.No},
		{"empty bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") }, auth.No},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := a.Authenticate(context.Background(), request(tt.mutate))
			if result.Decision != tt.want {
				t.Fatalf("Decision = %d, want %d", result.Decision, tt.want)
			}
			if tt.want == auth.Yes && result.Identity.Subject != "api-key" {
				t.Errorf("Subject = %q, want api-key", result.Identity.Subject)
			}
		})
	}
}

func TestQueryWinsOverHeaders(t *testing.T) {
	a := New("sk-test", nil, "")
	r := request(func(r *http.Request) {
		r.URL.RawQuery = "api_key=sk-wrong"
		r.Header.Set("X-API-Key", "sk-test")
	})
	if got := a.Authenticate(context.Background(), r).Decision; got != auth.No {
		t.Errorf("Decision = %d, want No", got)
	}
}

func TestHeaderWinsOverBearer(t *testing.T) {
	r := request(func(r *http.Request) {
		r.Header.Set("X-API-Key", "first")
		r.Header.Set("Authorization", "Bearer second")
	})
	if got := Extract(r); got != "first" {
		t.Errorf("Extract = %q, want first", got)
	}
}

func TestNoKeyAbstains(t *testing.T) {
	a := New("", &mapSource{}, "")
	result := a.Authenticate(context.Background(), request(nil))
	if result.Decision != auth.Abstain {
		t.Fatalf("Decision = %d, want Abstain", result.Decision)
	}
}

func TestLazyLoadFromSource(t *testing.T) {
	src := &mapSource{values: map[string]string{"GATEWAY_KEY": "from-store"}}
	a := New("", src, "GATEWAY_KEY")

	if src.calls.Load() != 0 {
		t.Fatal("key loaded before first request")
	}
	for range 3 {
		r := request(func(r *http.Request) { r.Header.Set("X-API-Key", "from-store") })
		if got := a.Authenticate(context.Background(), r).Decision; got != auth.Yes {
			t.Fatalf("Decision = %d, want Yes", got)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("source lookups = %d, want 1", got)
	}
}

func TestLiteralWinsOverSource(t *testing.T) {
	src := &mapSource{values: map[string]string{DefaultSecretName: "from-store"}}
	a := New("literal", src, "")

	r := request(func(r *http.Request) { r.Header.Set("X-API-Key", "literal") })
	if got := a.Authenticate(context.Background(), r).Decision; got != auth.Yes {
		t.Fatalf("Decision = %d, want Yes", got)
	}
	if src.calls.Load() != 0 {
		t.Error("source consulted although a literal key was set")
	}
}

func TestGate(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		path     string
		header   string
		wantCode int
	}{
		{"open mode admits", "", "/mcp", "", http.StatusOK},
		{"key required", "k", "/mcp", "", http.StatusUnauthorized},
		{"key matches", "k", "/mcp", "k", http.StatusOK},
		{"key mismatch", "k", "/mcp", "x", http.StatusUnauthorized},
		{"health bypasses", "k", "/health", "", http.StatusOK},
		{"callback bypasses", "k", "/callback", "", http.StatusOK},
		{"root bypasses", "k", "/", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := &auth.AuthChain{
				Authenticators:  []auth.Authenticator{New(tt.key, nil, ""), &noop.Authenticator{}},
				DefaultDecision: auth.No,
			}
			handler := auth.Middleware(chain, nil, auth.DefaultBypassPaths)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("POST", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}
