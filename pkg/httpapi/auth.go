package httpapi

import (
	"context"
	"net/http"
)

// TokenSource supplies an access token per request.
// credentials.TokenCache implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Authorizer decorates an outbound request with credentials.
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request) error
}

type headerAuth struct {
	header string
	prefix string
	source TokenSource
}

func (a headerAuth) Authorize(ctx context.Context, req *http.Request) error {
	tok, err := a.source.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set(a.header, a.prefix+tok)
	return nil
}

// Bearer sets "Authorization: Bearer <token>".
func Bearer(ts TokenSource) Authorizer {
	return headerAuth{header: "Authorization", prefix: "Bearer ", source: ts}
}

// RawHeader sets the header to the bare token, e.g. Linear's
// "Authorization: <key>".
func RawHeader(name string, ts TokenSource) Authorizer {
	return headerAuth{header: name, source: ts}
}

// StaticBearer sets a fixed bearer token.
func StaticBearer(token string) Authorizer {
	return Bearer(TokenFunc(func(context.Context) (string, error) { return token, nil }))
}
