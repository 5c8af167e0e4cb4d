// Package mcp exposes the tool registry over the Model Context Protocol.
//
// NewServer registers every registry tool on an SDK server; the HTTP layer
// mounts it with a streamable HTTP handler. Client wraps an SDK client
// session for the operator CLI and end-to-end tests.
package mcp
