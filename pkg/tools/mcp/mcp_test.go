package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
)

type testProvider struct {
	tools []tools.Tool
}

func (p *testProvider) Name() string             { return "test" }
func (p *testProvider) Configured() bool         { return true }
func (p *testProvider) Tools() []tools.Tool      { return p.tools }
func (p *testProvider) Routes() []registry.Route { return nil }

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

func testRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register(&testProvider{tools: []tools.Tool{
		tools.New("test_add", "Add", "Adds two numbers.", tools.ReadOnly, func(_ context.Context, in addArgs) string {
			return tools.JSON(map[string]int{"sum": in.A + in.B})
		}),
		tools.New("test_unconfigured", "Unconfigured", "Always fails.", tools.Destructive, func(context.Context, struct{}) string {
			return tools.Errorf("Test not configured. Set TEST_TOKEN.")
		}),
	}})
	return reg
}

// connect wires a client to a server over in-memory transports.
func connect(t *testing.T, reg *registry.Registry) *Client {
	t.Helper()

	server := NewServer(reg, "test")
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx := context.Background()
	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	client := NewClient(ClientConfig{})
	if err := client.ConnectWithTransport(ctx, clientTransport); err != nil {
		t.Fatalf("ConnectWithTransport failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestServer_ListTools(t *testing.T) {
	client := connect(t, testRegistry())

	listed, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(listed))
	}

	byName := map[string]ToolInfo{}
	for _, ti := range listed {
		byName[ti.Name] = ti
	}
	add, ok := byName["test_add"]
	if !ok {
		t.Fatal("test_add not listed")
	}
	if !add.ReadOnly {
		t.Error("test_add should be read-only")
	}
	if !strings.Contains(string(add.Schema), `"a"`) {
		t.Errorf("schema %s does not describe argument a", add.Schema)
	}
}

func TestServer_CallTool(t *testing.T) {
	client := connect(t, testRegistry())

	text, isErr, err := client.CallTool(context.Background(), "test_add", map[string]any{"a": 2, "b": 3})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if isErr {
		t.Fatalf("unexpected error result: %s", text)
	}
	if !strings.Contains(text, `"sum": 5`) {
		t.Errorf("text = %q", text)
	}
}

func TestServer_CallTool_ErrorResult(t *testing.T) {
	client := connect(t, testRegistry())

	text, isErr, err := client.CallTool(context.Background(), "test_unconfigured", nil)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !isErr {
		t.Error("expected IsError")
	}
	if !strings.Contains(text, "not configured") {
		t.Errorf("text = %q", text)
	}
}

func TestServer_CallTool_InvalidArguments(t *testing.T) {
	client := connect(t, testRegistry())

	text, isErr, err := client.CallTool(context.Background(), "test_add", map[string]any{"a": "two"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !isErr || !strings.HasPrefix(text, "Error: invalid arguments") {
		t.Errorf("got %q (isErr=%v), want invalid arguments error", text, isErr)
	}
}

func TestClient_StreamableHTTP(t *testing.T) {
	server := NewServer(testRegistry(), "test")

	var gotKey atomic.Value
	handler := Handler(server)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("X-API-Key"))
		handler.ServeHTTP(w, r)
	}))
	defer ts.Close()

	client := NewClient(ClientConfig{URL: ts.URL, APIKey: "secret"})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	text, _, err := client.CallTool(context.Background(), "test_add", map[string]any{"a": 1, "b": 1})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !strings.Contains(text, `"sum": 2`) {
		t.Errorf("text = %q", text)
	}
	if got, _ := gotKey.Load().(string); got != "secret" {
		t.Errorf("X-API-Key = %q, want secret", got)
	}
}

func TestClient_NotConnected(t *testing.T) {
	c := NewClient(ClientConfig{})
	if _, err := c.ListTools(context.Background()); err == nil {
		t.Error("expected error from ListTools without session")
	}
	if err := c.Connect(context.Background()); err == nil {
		t.Error("expected error connecting without URL")
	}
}
