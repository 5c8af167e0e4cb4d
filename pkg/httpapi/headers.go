package httpapi

import (
	"context"
	"net/http"
)

type headerKey struct{}

// ContextWithHeader adds a header to every request made with ctx. Values
// are appended to the client's static headers of the same name.
func ContextWithHeader(ctx context.Context, name, value string) context.Context {
	h := http.Header{}
	if prev, ok := ctx.Value(headerKey{}).(http.Header); ok {
		h = prev.Clone()
	}
	h.Add(name, value)
	return context.WithValue(ctx, headerKey{}, h)
}

func contextHeaders(ctx context.Context) http.Header {
	h, _ := ctx.Value(headerKey{}).(http.Header)
	return h
}
