// Package registry aggregates vendor providers into one tool namespace.
//
// A Provider contributes tools and optional HTTP routes (OAuth callbacks).
// The Registry resolves tool names first-come-first-served, runs handlers
// with panic recovery and metrics, and serves the merged provider routes.
package registry

import (
	"net/http"

	"github.com/crowdit/crowdmcp/pkg/tools"
)

// Provider is one vendor integration.
type Provider interface {
	// Name returns a unique identifier such as "digitalocean" or "m365".
	Name() string

	// Configured reports whether credentials are present. Unconfigured
	// providers still expose their tools; calls return a not-configured
	// error without network activity.
	Configured() bool

	// Tools returns the tools this provider contributes.
	Tools() []tools.Tool

	// Routes returns HTTP endpoints the provider exposes.
	Routes() []Route
}

// Route is an HTTP endpoint exposed by a provider.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}
