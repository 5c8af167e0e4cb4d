// Package secrets resolves named credentials for vendor integrations.
//
// A Resolver consults the process environment first and then an optional
// external Store (Google Secret Manager, PostgreSQL, a Kubernetes Secret or
// an in-memory map). Store failures are never surfaced to callers: a secret
// that cannot be read is simply absent, which disables the tools that need
// it instead of failing the server.
//
// Store backends live in sub-packages and implement the Store interface
// defined here.
package secrets
