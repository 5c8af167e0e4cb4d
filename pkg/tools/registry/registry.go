package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/crowdit/crowdmcp/pkg/debug"
	"github.com/crowdit/crowdmcp/pkg/observability"
	"github.com/crowdit/crowdmcp/pkg/tools"
)

type entry struct {
	tool     tools.Tool
	provider string
}

// Registry aggregates providers and dispatches tool calls.
type Registry struct {
	mu sync.RWMutex

	// providers stores registered providers in insertion order.
	providers []Provider

	// order keeps tool names in registration order.
	order  []string
	byName map[string]entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]entry)}
}

// Register adds a provider. Tool names are resolved first-come,
// first-served: a later duplicate is dropped with a warning.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers = append(r.providers, p)

	added := 0
	for _, t := range p.Tools() {
		if existing, ok := r.byName[t.Name]; ok {
			slog.Warn("tool name conflict, keeping first provider",
				"tool", t.Name,
				"winner", existing.provider,
				"loser", p.Name(),
			)
			continue
		}
		r.byName[t.Name] = entry{tool: t, provider: p.Name()}
		r.order = append(r.order, t.Name)
		added++
	}

	slog.Info("registered provider",
		"provider", p.Name(),
		"configured", p.Configured(),
		"tools", added,
		"routes", len(p.Routes()),
	)
}

// Tools returns all registered tools in registration order.
func (r *Registry) Tools() []tools.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]tools.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].tool)
	}
	return out
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (tools.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e.tool, ok
}

// Providers returns provider name to configured state.
func (r *Registry) Providers() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bool, len(r.providers))
	for _, p := range r.providers {
		out[p.Name()] = out[p.Name()] || p.Configured()
	}
	return out
}

// Call runs the named tool and reports whether the result is an error.
// Panics inside the handler are recovered.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (text string, isError bool) {
	r.mu.RLock()
	e, ok := r.byName[name]
	r.mu.RUnlock()

	if !ok {
		return tools.Errorf("unknown tool %q", name), true
	}

	start := time.Now()
	status := "success"
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool panicked",
				"provider", e.provider,
				"tool", name,
				"panic", rec,
			)
			text = tools.Errorf("internal error in tool %s", name)
			isError = true
			status = "panic"
		}
		observability.ToolExecutionsTotal.WithLabelValues(e.provider, name, status).Inc()
		observability.ToolDuration.WithLabelValues(e.provider, name).Observe(time.Since(start).Seconds())
		debug.Log("tools", "tool call", "tool", name, "status", status, "duration", time.Since(start).Round(time.Millisecond))
	}()

	text = e.tool.Handler(ctx, args)
	isError = tools.IsError(text)
	if isError {
		status = "error"
	}
	return text, isError
}

// HTTPHandler serves all provider routes, each wrapped with metrics.
func (r *Registry) HTTPHandler() http.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mux := http.NewServeMux()
	for _, p := range r.providers {
		for _, route := range p.Routes() {
			pattern := route.Pattern
			if route.Method != "" {
				pattern = route.Method + " " + route.Pattern
			}
			mux.HandleFunc(pattern, wrapRoute(p.Name(), route))
		}
	}
	return mux
}

// Routes lists "METHOD pattern" for every provider route.
func (r *Registry) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, p := range r.providers {
		for _, route := range p.Routes() {
			out = append(out, fmt.Sprintf("%s %s", route.Method, route.Pattern))
		}
	}
	slices.Sort(out)
	return out
}

// Close closes providers that hold resources, returning the last error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for _, p := range r.providers {
		c, ok := p.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			slog.Warn("failed to close provider", "provider", p.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}
