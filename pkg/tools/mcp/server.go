package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/crowdit/crowdmcp/pkg/debug"
	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
)

// ServerName is the implementation name announced to clients.
const ServerName = "crowdmcp"

// NewServer builds an MCP server exposing every tool in reg.
func NewServer(reg *registry.Registry, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)

	for _, t := range reg.Tools() {
		name := t.Name
		server.AddTool(toMCPTool(t), func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args []byte
			if req.Params != nil {
				args = req.Params.Arguments
			}
			text, isErr := reg.Call(ctx, name, args)
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
				IsError: isErr,
			}, nil
		})
	}

	slog.Info("mcp server ready", "tools", len(reg.Tools()))
	return server
}

// Handler serves server over streamable HTTP.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		debug.Log("mcp", "session request", "method", r.Method, "session", r.Header.Get("Mcp-Session-Id"))
		return server
	}, nil)
}

func toMCPTool(t tools.Tool) *mcp.Tool {
	var schema any = map[string]any{"type": "object"}
	if t.InputSchema != nil {
		schema = t.InputSchema
	}
	return &mcp.Tool{
		Name:        t.Name,
		Title:       t.Title,
		Description: t.Description,
		InputSchema: schema,
		Annotations: &mcp.ToolAnnotations{
			Title:           t.Title,
			ReadOnlyHint:    t.Annotations.ReadOnly,
			DestructiveHint: boolPtr(t.Annotations.Destructive),
			IdempotentHint:  t.Annotations.Idempotent,
			OpenWorldHint:   boolPtr(t.Annotations.OpenWorld),
		},
	}
}

func boolPtr(b bool) *bool { return &b }
