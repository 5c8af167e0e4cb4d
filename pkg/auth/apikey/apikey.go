// Package apikey provides the single shared API key authenticator that
// guards the MCP endpoint.
//
// The key is loaded lazily on the first request, from a literal value or a
// secret lookup, then hashed with SHA-256 and compared in constant time.
// When no key is configured the authenticator abstains and the gate runs in
// open mode.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/crowdit/crowdmcp/pkg/auth"
)

// DefaultSecretName is the secret holding the gateway key.
const DefaultSecretName = "MCP_API_KEY"

// KeySource resolves a named secret. *secrets.Resolver satisfies it.
type KeySource interface {
	Lookup(ctx context.Context, name string) (string, bool)
}

// Authenticator validates the gateway API key.
type Authenticator struct {
	literal    string
	secretName string
	source     KeySource

	once   sync.Once
	hash   [32]byte
	hasKey bool
}

// New creates an authenticator. A non-empty literal key wins over the
// source; source may be nil.
func New(literal string, source KeySource, secretName string) *Authenticator {
	if secretName == "" {
		secretName = DefaultSecretName
	}
	return &Authenticator{literal: literal, secretName: secretName, source: source}
}

// load resolves the key once. Plaintext is not retained.
func (a *Authenticator) load(ctx context.Context) {
	a.once.Do(func() {
		key := a.literal
		if key == "" && a.source != nil {
			key, _ = a.source.Lookup(ctx, a.secretName)
		}
		a.literal = ""
		if key == "" {
			slog.Warn("no API key configured, MCP endpoint is open", "secret", a.secretName)
			return
		}
		a.hash = sha256.Sum256([]byte(key))
		a.hasKey = true
	})
}

// Authenticate reads the key from the api_key query parameter, the
// X-API-Key header or the Authorization header, in that order.
// Returns Abstain when no key is configured, Yes on a match and No
// otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	a.load(ctx)
	if !a.hasKey {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	provided := Extract(r)
	if provided == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	sum := sha256.Sum256([]byte(provided))
	if subtle.ConstantTimeCompare(sum[:], a.hash[:]) != 1 {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: "api-key", Method: "api-key"},
	}
}

// Extract returns the presented key, or "".
func Extract(r *http.Request) string {
	if v := r.URL.Query().Get("api_key"); v != "" {
		return v
	}
	if v := r.Header.Get("X-API-Key"); v != "" {
		return v
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}
