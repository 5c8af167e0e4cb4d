// Package noop provides a no-op authenticator that accepts all requests.
// It closes the chain so that open mode admits callers when no API key is
// configured.
package noop

import (
	"context"
	"net/http"

	"github.com/crowdit/crowdmcp/pkg/auth"
)

// Authenticator always returns Yes with an anonymous identity.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject: "anonymous",
			Method:  "open",
		},
	}
}
