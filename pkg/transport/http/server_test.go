package http

import (
	"context"
	"encoding/json"
	"io"
	"net"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crowdit/crowdmcp/pkg/auth"
	"github.com/crowdit/crowdmcp/pkg/auth/apikey"
	"github.com/crowdit/crowdmcp/pkg/auth/noop"
	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	"github.com/crowdit/crowdmcp/pkg/transport"
)

type stubProvider struct {
	name       string
	configured bool
	tools      []tools.Tool
	routes     []registry.Route
}

func (p *stubProvider) Name() string             { return p.name }
func (p *stubProvider) Configured() bool         { return p.configured }
func (p *stubProvider) Tools() []tools.Tool      { return p.tools }
func (p *stubProvider) Routes() []registry.Route { return p.routes }

func testRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register(&stubProvider{
		name:       "linear",
		configured: true,
		tools: []tools.Tool{
			tools.New("linear_get_viewer", "Viewer", "Returns the API user.", tools.ReadOnly, func(context.Context, struct{}) string { return "{}" }),
		},
	})
	reg.Register(&stubProvider{
		name: "m365",
		routes: []registry.Route{{
			Method:  gohttp.MethodGet,
			Pattern: "/callback",
			Handler: func(w gohttp.ResponseWriter, r *gohttp.Request) {
				io.WriteString(w, "callback:"+r.URL.Query().Get("code"))
			},
		}},
	})
	return reg
}

func gate(key string) func(gohttp.Handler) gohttp.Handler {
	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{apikey.New(key, nil, ""), &noop.Authenticator{}},
		DefaultDecision: auth.No,
	}
	return auth.Middleware(chain, nil, auth.DefaultBypassPaths)
}

func newTestServer(key string) *httptest.Server {
	mcpStub := gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		io.WriteString(w, "mcp")
	})
	cfg := DefaultServerConfig()
	cfg.Version = "1.2.3"
	cfg.MetricsPath = ""
	srv := NewServer(testRegistry(), mcpStub, WithConfig(cfg), WithGate(gate(key)))
	return httptest.NewServer(srv.Handler())
}

func getJSON(t *testing.T, url string, out any) *gohttp.Response {
	t.Helper()
	resp, err := gohttp.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer("secret")
	defer ts.Close()

	var body map[string]string
	resp := getJSON(t, ts.URL+"/health", &body)
	if resp.StatusCode != gohttp.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get(transport.RequestIDHeader) == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestStatus(t *testing.T) {
	ts := newTestServer("secret")
	defer ts.Close()

	var body struct {
		Status  string          `json:"status"`
		Version string          `json:"version"`
		Tools   int             `json:"tools"`
		Vendors map[string]bool `json:"vendors"`
	}
	getJSON(t, ts.URL+"/status", &body)
	if body.Status != "ok" || body.Version != "1.2.3" || body.Tools != 1 {
		t.Errorf("status body = %+v", body)
	}
	if !body.Vendors["linear"] || body.Vendors["m365"] {
		t.Errorf("vendors = %v", body.Vendors)
	}
}

func TestBanner(t *testing.T) {
	ts := newTestServer("secret")
	defer ts.Close()

	var body map[string]any
	resp := getJSON(t, ts.URL+"/", &body)
	if resp.StatusCode != gohttp.StatusOK || body["mcp"] != "/mcp" {
		t.Errorf("banner = %d %v", resp.StatusCode, body)
	}
}

func TestTools_Gated(t *testing.T) {
	ts := newTestServer("secret")
	defer ts.Close()

	resp := getJSON(t, ts.URL+"/tools", nil)
	if resp.StatusCode != gohttp.StatusUnauthorized {
		t.Fatalf("unauthenticated /tools = %d, want 401", resp.StatusCode)
	}

	var body struct {
		Tools []toolSummary `json:"tools"`
	}
	resp = getJSON(t, ts.URL+"/tools?api_key=secret", &body)
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("/tools = %d", resp.StatusCode)
	}
	if len(body.Tools) != 1 || body.Tools[0].Name != "linear_get_viewer" {
		t.Errorf("tools = %+v", body.Tools)
	}
}

func TestMCP_GatedAndOpen(t *testing.T) {
	closed := newTestServer("secret")
	defer closed.Close()

	resp, err := gohttp.Post(closed.URL+"/mcp", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != gohttp.StatusUnauthorized {
		t.Errorf("keyed /mcp without key = %d, want 401", resp.StatusCode)
	}

	open := newTestServer("")
	defer open.Close()

	resp, err = gohttp.Post(open.URL+"/mcp", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != gohttp.StatusOK || string(body) != "mcp" {
		t.Errorf("open /mcp = %d %q", resp.StatusCode, body)
	}
}

func TestProviderRouteBypassesGate(t *testing.T) {
	ts := newTestServer("secret")
	defer ts.Close()

	resp, err := gohttp.Get(ts.URL + "/callback?code=abc")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != gohttp.StatusOK || string(body) != "callback:abc" {
		t.Errorf("/callback = %d %q", resp.StatusCode, body)
	}
}

func TestServeOn_GracefulShutdown(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.ShutdownTimeout = time.Second
	srv := NewServer(testRegistry(), nil, WithConfig(cfg))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeOn(ctx, ln) }()

	var resp *gohttp.Response
	for range 50 {
		resp, err = gohttp.Get("http://" + ln.Addr().String() + "/health")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never became ready: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeOn returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
