// Command mcpctl talks to a running crowdmcp server over streamable HTTP.
//
//	mcpctl tools [filter]
//	mcpctl call <tool> [key=value ...]
//	mcpctl call <tool> '{"json": "arguments"}'
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fatih/color"

	toolsmcp "github.com/crowdit/crowdmcp/pkg/tools/mcp"
)

var usage = heredoc.Doc(`
	Usage: mcpctl <command> [arguments]

	Commands:
	  tools [filter]              list tools, optionally only names containing filter
	  call <tool> [key=value ...] call a tool; values are parsed as JSON when possible
	  call <tool> '{...}'         call a tool with a JSON object of arguments

	Environment:
	  CROWDMCP_URL      server endpoint (default http://localhost:8080/mcp)
	  MCP_API_KEY       gateway key sent as X-API-Key
	  MCPCTL_TIMEOUT    request timeout (default 2m)
`)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	code, err := run(ctx, os.Args[1], os.Args[2:])
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}

func run(ctx context.Context, cmd string, args []string) (int, error) {
	timeout := 2 * time.Minute
	if v := os.Getenv("MCPCTL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 2, fmt.Errorf("MCPCTL_TIMEOUT: %w", err)
		}
		timeout = d
	}

	client := toolsmcp.NewClient(toolsmcp.ClientConfig{
		URL:     envOr("CROWDMCP_URL", "http://localhost:8080/mcp"),
		APIKey:  os.Getenv("MCP_API_KEY"),
		Timeout: timeout,
	})

	switch cmd {
	case "tools":
		if err := client.Connect(ctx); err != nil {
			return 1, err
		}
		defer client.Close()
		filter := ""
		if len(args) > 0 {
			filter = args[0]
		}
		return listTools(ctx, client, filter)
	case "call":
		if len(args) == 0 {
			return 2, fmt.Errorf("call needs a tool name")
		}
		callArgs, err := parseArgs(args[1:])
		if err != nil {
			return 2, err
		}
		if err := client.Connect(ctx); err != nil {
			return 1, err
		}
		defer client.Close()
		return callTool(ctx, client, args[0], callArgs)
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2, nil
	}
}

func listTools(ctx context.Context, client *toolsmcp.Client, filter string) (int, error) {
	infos, err := client.ListTools(ctx)
	if err != nil {
		return 1, err
	}
	slices.SortFunc(infos, func(a, b toolsmcp.ToolInfo) int { return strings.Compare(a.Name, b.Name) })

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	yellow := color.New(color.FgYellow)

	shown := 0
	for _, t := range infos {
		if filter != "" && !strings.Contains(t.Name, filter) {
			continue
		}
		shown++
		cyan.Print(t.Name)
		if !t.ReadOnly {
			yellow.Print(" [writes]")
		}
		fmt.Println()
		if t.Title != "" {
			gray.Printf("    %s\n", t.Title)
		}
	}
	fmt.Printf("\n%d of %d tools\n", shown, len(infos))
	return 0, nil
}

func callTool(ctx context.Context, client *toolsmcp.Client, name string, args map[string]any) (int, error) {
	text, isError, err := client.CallTool(ctx, name, args)
	if err != nil {
		return 1, err
	}
	if isError || strings.HasPrefix(text, "Error:") {
		color.New(color.FgRed).Println(text)
		return 1, nil
	}
	fmt.Println(text)
	return 0, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
