package mcp

import "time"

// ClientConfig describes a connection to a crowdmcp server.
type ClientConfig struct {
	// URL is the streamable HTTP endpoint, e.g. http://localhost:8080/mcp.
	URL string

	// APIKey is sent as X-API-Key when set.
	APIKey string

	// Headers contains additional HTTP headers to send with requests.
	Headers map[string]string

	// Timeout bounds each HTTP request. Zero means no timeout.
	Timeout time.Duration
}
