// Package transport provides the HTTP middleware chain shared by every
// crowdmcp endpoint.
//
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID) and structured access logging via log/slog. Middleware
// compose with Chain; the first middleware is the outermost wrapper.
package transport
