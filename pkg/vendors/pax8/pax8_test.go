package pax8

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crowdit/crowdmcp/pkg/vendors/vendortest"
)

var creds = map[string]string{ClientIDSecret: "pax-id", ClientSecretSecret: "pax-secret"}

func call(t *testing.T, p *Provider, name string, args map[string]any) string {
	t.Helper()
	for _, tool := range p.Tools() {
		if tool.Name == name {
			return tool.Call(context.Background(), args)
		}
	}
	t.Fatalf("tool %q not found", name)
	return ""
}

func decodeList(t *testing.T, text string) []map[string]any {
	t.Helper()
	var out []map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("result is not a JSON array: %v\n%s", err, text)
	}
	return out
}

func newServer(t *testing.T) *vendortest.Server {
	srv := vendortest.NewServer(t)
	srv.JSON("POST /oauth/authorize", http.StatusOK, map[string]any{"access_token": "pax-token"})
	return srv
}

func TestNotConfigured(t *testing.T) {
	srv := vendortest.NewServer(t)
	p := New(vendortest.Deps(srv, nil))

	for _, tool := range p.Tools() {
		if got := tool.Call(context.Background(), map[string]any{"id": "x"}); got != "Error: Pax8 not configured. Set PAX8_CLIENT_ID and PAX8_CLIENT_SECRET." {
			t.Errorf("%s = %q", tool.Name, got)
		}
	}
	if srv.Count() != 0 {
		t.Errorf("requests = %d, want 0", srv.Count())
	}
}

func TestAuthorizeOnceThenReuse(t *testing.T) {
	srv := newServer(t)
	srv.JSON("GET /companies", http.StatusOK, map[string]any{
		"content": []any{map[string]any{"id": "co-1", "name": "Acme"}},
		"page":    map[string]any{"size": 50, "totalElements": 1},
	})
	p := New(vendortest.Deps(srv, creds))

	for range 2 {
		if got := decodeList(t, call(t, p, "pax8_list_companies", map[string]any{"country": "AU"})); len(got) != 1 || got[0]["name"] != "Acme" {
			t.Fatalf("companies = %v", got)
		}
	}

	reqs := srv.Requests()
	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want one authorize and two calls", len(reqs))
	}
	want := map[string]any{"clientId": "pax-id", "clientSecret": "pax-secret"}
	if diff := cmp.Diff(want, reqs[0].JSONBody(t)); diff != "" {
		t.Errorf("authorize body mismatch (-want +got):\n%s", diff)
	}
	last := reqs[2]
	if last.Header.Get("Authorization") != "Bearer pax-token" {
		t.Errorf("Authorization = %q", last.Header.Get("Authorization"))
	}
	if q := last.Query; q.Get("page") != "0" || q.Get("size") != "50" || q.Get("country") != "AU" {
		t.Errorf("query = %v", q)
	}
}

func TestSubscriptionsFilters(t *testing.T) {
	srv := newServer(t)
	srv.JSON("GET /subscriptions", http.StatusOK, map[string]any{"subscriptions": []any{map[string]any{"id": "sub-1"}}})
	p := New(vendortest.Deps(srv, creds))

	got := decodeList(t, call(t, p, "pax8_list_subscriptions", map[string]any{"company_id": "co-1", "status": "Active", "size": 999}))
	if len(got) != 1 {
		t.Errorf("subscriptions = %v", got)
	}
	q := srv.Last(t).Query
	if q.Get("companyId") != "co-1" || q.Get("status") != "Active" || q.Get("size") != "200" || q.Has("productId") {
		t.Errorf("query = %v", q)
	}
}

func TestGetProduct(t *testing.T) {
	srv := newServer(t)
	srv.JSON("GET /products/prod-1", http.StatusOK, map[string]any{"id": "prod-1", "vendorName": "Microsoft"})
	p := New(vendortest.Deps(srv, creds))

	if got := vendortest.Decode(t, call(t, p, "pax8_get_product", map[string]any{"id": "prod-1"})); got["vendorName"] != "Microsoft" {
		t.Errorf("product = %v", got)
	}
	if got := call(t, p, "pax8_get_company", nil); got != "Error: id is required." {
		t.Errorf("missing id = %q", got)
	}
}

func TestAuthorizeRejected(t *testing.T) {
	srv := vendortest.NewServer(t)
	srv.JSON("POST /oauth/authorize", http.StatusUnauthorized, map[string]any{"message": "invalid client"})
	p := New(vendortest.Deps(srv, creds))

	got := call(t, p, "pax8_list_products", nil)
	if !strings.HasPrefix(got, "Error: fetching Pax8 products: Pax8 authentication failed: token endpoint returned status 401") {
		t.Errorf("result = %q", got)
	}
	if srv.Count() != 1 {
		t.Errorf("requests = %d, want only the authorize call", srv.Count())
	}
}
