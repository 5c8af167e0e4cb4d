package auth

import (
	"log/slog"
	"net/http"

	"github.com/crowdit/crowdmcp/pkg/debug"
	"github.com/crowdit/crowdmcp/pkg/observability"
)

// UnauthorizedBody is the plain-text body of a 401 from the gate.
const UnauthorizedBody = "Unauthorized - Invalid or missing API key"

// DefaultBypassPaths lists paths that skip authentication.
var DefaultBypassPaths = []string{"/health", "/status", "/callback", "/sharepoint-callback", "/"}

// Middleware creates HTTP middleware from an AuthChain and optional
// RateLimiter. Bypass paths match exactly.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassPaths []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassPaths))
	for _, p := range bypassPaths {
		bypass[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)
			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("unauthorized request",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				http.Error(w, UnauthorizedBody, http.StatusUnauthorized)
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				http.Error(w, "internal authentication error", http.StatusInternalServerError)
				return
			}

			debug.Log("auth", "request admitted", "subject", result.Identity.Subject, "method", result.Identity.Method, "path", r.URL.Path)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded", "subject", result.Identity.Subject)
					observability.RateLimitRejectedTotal.WithLabelValues(result.Identity.Subject).Inc()
					http.Error(w, "Too Many Requests - rate limit exceeded", http.StatusTooManyRequests)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), result.Identity)))
		})
	}
}
