package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolInfo is a tool as listed by a server.
type ToolInfo struct {
	Name        string
	Title       string
	Description string
	ReadOnly    bool
	Schema      json.RawMessage
}

// Client wraps an MCP SDK client session.
type Client struct {
	cfg     ClientConfig
	session *mcp.ClientSession
}

// NewClient creates a Client. Call Connect to establish the session.
func NewClient(cfg ClientConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect opens a streamable HTTP session to cfg.URL.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.URL == "" {
		return errors.New("MCP server URL is required")
	}
	return c.ConnectWithTransport(ctx, &mcp.StreamableClientTransport{
		Endpoint:   c.cfg.URL,
		HTTPClient: c.httpClient(),
	})
}

// ConnectWithTransport opens a session over transport.
func (c *Client) ConnectWithTransport(ctx context.Context, transport mcp.Transport) error {
	client := mcp.NewClient(&mcp.Implementation{Name: "mcpctl", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connecting to MCP server: %w", err)
	}
	c.session = session
	return nil
}

func (c *Client) httpClient() *http.Client {
	headers := make(map[string]string, len(c.cfg.Headers)+1)
	for k, v := range c.cfg.Headers {
		headers[k] = v
	}
	if c.cfg.APIKey != "" {
		headers["X-API-Key"] = c.cfg.APIKey
	}
	return &http.Client{
		Timeout:   c.cfg.Timeout,
		Transport: &headerTransport{base: http.DefaultTransport, headers: headers},
	}
}

// headerTransport adds fixed headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

// ListTools returns every tool the server advertises.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	if c.session == nil {
		return nil, errors.New("MCP client not connected")
	}

	var out []ToolInfo
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools: %w", err)
		}
		info := ToolInfo{Name: tool.Name, Title: tool.Title, Description: tool.Description}
		if tool.Annotations != nil {
			info.ReadOnly = tool.Annotations.ReadOnlyHint
		}
		if tool.InputSchema != nil {
			data, err := json.Marshal(tool.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("marshaling schema of %q: %w", tool.Name, err)
			}
			info.Schema = data
		}
		out = append(out, info)
	}
	return out, nil
}

// CallTool invokes name and returns the joined text content and whether the
// server flagged it as an error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	if c.session == nil {
		return "", false, errors.New("MCP client not connected")
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", false, fmt.Errorf("calling %s: %w", name, err)
	}

	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n"), result.IsError, nil
}

// Close closes the session.
func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}
