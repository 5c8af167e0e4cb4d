// Package auth implements the access gate in front of the MCP endpoint.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't decide). A configurable default decides when
// all authenticators abstain.
//
// The gate is HTTP middleware. Health, status, OAuth callback and banner
// paths bypass it, and an optional in-process limiter caps requests per
// identity.
package auth
