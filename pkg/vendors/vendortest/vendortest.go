// Package vendortest provides a recording fake vendor API and wiring helpers
// for provider tests.
package vendortest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crowdit/crowdmcp/pkg/secrets"
	"github.com/crowdit/crowdmcp/pkg/secrets/memory"
	"github.com/crowdit/crowdmcp/pkg/vendors"
)

// Request is one request received by the fake.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// JSONBody decodes the request body.
func (r Request) JSONBody(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(r.Body, &m); err != nil {
		t.Fatalf("decoding request body %q: %v", r.Body, err)
	}
	return m
}

// Server is a fake vendor API. Unrouted requests get 404.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	mux      *http.ServeMux
	requests []Request
}

// NewServer starts a fake and registers its cleanup.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{mux: http.NewServeMux()}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()
	s.mux.ServeHTTP(w, r)
}

// Handle registers h for a ServeMux pattern such as "GET /droplets".
func (s *Server) Handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, h)
}

// JSON registers a canned JSON response.
func (s *Server) JSON(pattern string, status int, body any) {
	s.Handle(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
}

// Token registers an OAuth2 token endpoint that issues token for an hour.
func (s *Server) Token(pattern, token string) {
	s.JSON(pattern, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns the number of requests received.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Last returns the most recent request.
func (s *Server) Last(t *testing.T) Request {
	t.Helper()
	reqs := s.Requests()
	if len(reqs) == 0 {
		t.Fatal("no requests received")
	}
	return reqs[len(reqs)-1]
}

// Secrets returns a resolver over an in-memory store that ignores the
// process environment.
func Secrets(values map[string]string) *secrets.Resolver {
	return secrets.NewResolver(memory.New(values), secrets.WithGetenv(func(string) string { return "" }))
}

// Deps wires a provider to srv with the given secrets. srv may be nil.
func Deps(srv *Server, values map[string]string) vendors.Deps {
	d := vendors.Deps{
		Secrets: Secrets(values),
		Timeout: 5 * time.Second,
		Sleep:   func(context.Context, time.Duration) error { return nil },
	}
	if srv != nil {
		d.BaseURL = srv.URL
		d.HTTPClient = srv.Client()
	}
	return d
}

// Decode parses a JSON tool result.
func Decode(t *testing.T, text string) map[string]any {
	t.Helper()
	var m map[string]any
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		t.Fatalf("result is not a JSON object: %v\n%s", err, text)
	}
	return m
}
