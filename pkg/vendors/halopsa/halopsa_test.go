package halopsa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/crowdit/crowdmcp/pkg/vendors/vendortest"
)

var creds = map[string]string{ClientIDSecret: "halo-id", ClientSecretSecret: "halo-secret"}

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
	srv.Token("POST /oauth/token", "halo-token")
	return srv
}

func TestNotConfigured(t *testing.T) {
	srv := vendortest.NewServer(t)
	p := New(vendortest.Deps(srv, map[string]string{ClientIDSecret: "only-id"}))

	want := "Error: HaloPSA not configured. Set HALOPSA_CLIENT_ID and HALOPSA_CLIENT_SECRET."
	for _, tool := range p.Tools() {
		args := map[string]any{"client_id": 1, "summary": "s", "ticket_id": 2, "note": "n"}
		if got := tool.Call(context.Background(), args); got != want {
			t.Errorf("%s = %q", tool.Name, got)
		}
	}
	if p.Configured() {
		t.Error("Configured() = true without a secret")
	}
	if srv.Count() != 0 {
		t.Errorf("requests = %d, want 0", srv.Count())
	}
}

func TestClientCredentialsTokenIsReused(t *testing.T) {
	srv := newServer(t)
	srv.JSON("GET /crm_accounts", http.StatusOK, map[string]any{
		"accounts": []any{map[string]any{"id": 7, "name": "Acme"}},
	})
	p := New(vendortest.Deps(srv, creds))

	for range 2 {
		got := decodeList(t, call(t, p, "halopsa_get_clients", map[string]any{"search": "acme"}))
		if len(got) != 1 || got[0]["name"] != "Acme" {
			t.Fatalf("clients = %v", got)
		}
	}

	reqs := srv.Requests()
	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want one token fetch and two calls", len(reqs))
	}
	form, err := url.ParseQuery(string(reqs[0].Body))
	if err != nil {
		t.Fatal(err)
	}
	if form.Get("grant_type") != "client_credentials" || form.Get("scope") != "all" {
		t.Errorf("token form = %v", form)
	}
	last := reqs[2]
	if auth := last.Header.Get("Authorization"); auth != "Bearer halo-token" {
		t.Errorf("Authorization = %q", auth)
	}
	if last.Query.Get("pageSize") != "20" || last.Query.Get("search") != "acme" {
		t.Errorf("query = %v", last.Query)
	}
}

func TestCreateTicketDefaults(t *testing.T) {
	srv := newServer(t)
	srv.JSON("POST /tickets", http.StatusCreated, map[string]any{"id": 101})
	p := New(vendortest.Deps(srv, creds))

	got := vendortest.Decode(t, call(t, p, "halopsa_create_ticket", map[string]any{
		"client_id": 7, "summary": "Printer down", "details": "Level 2",
	}))
	if got["id"] != json.Number("101") {
		t.Errorf("result = %v", got)
	}
	want := map[string]any{"clientId": float64(7), "summary": "Printer down", "details": "Level 2", "priorityId": float64(3)}
	if diff := cmp.Diff(want, srv.Last(t).JSONBody(t)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateTicketRequiresSummary(t *testing.T) {
	srv := newServer(t)
	p := New(vendortest.Deps(srv, creds))

	if got := call(t, p, "halopsa_create_ticket", map[string]any{"client_id": 7}); got != "Error: client_id and summary are required." {
		t.Errorf("result = %q", got)
	}
	if srv.Count() != 0 {
		t.Errorf("requests = %d, want 0", srv.Count())
	}
}

func TestAddAction(t *testing.T) {
	srv := newServer(t)
	srv.JSON("POST /tickets/55/actions", http.StatusOK, map[string]any{"id": 9})
	p := New(vendortest.Deps(srv, creds))

	call(t, p, "halopsa_add_action", map[string]any{"ticket_id": 55, "note": "Rebooted", "time_taken": 15})
	want := map[string]any{"note": "Rebooted", "timeTaken": float64(15)}
	if diff := cmp.Diff(want, srv.Last(t).JSONBody(t)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestInvoicesWithinWindow(t *testing.T) {
	srv := newServer(t)
	srv.JSON("GET /invoices", http.StatusOK, map[string]any{"invoices": []any{
		map[string]any{"id": 1, "invoiceDate": "2026-10-01T00:00:00"},
		map[string]any{"id": 2, "invoiceDate": "2026-05-01T00:00:00Z"},
		map[string]any{"id": 3, "invoiceDate": "not a date"},
		map[string]any{"id": 4, "invoiceDate": "2026-09-30"},
	}})
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	p := New(vendortest.Deps(srv, creds), WithClock(func() time.Time { return now }))

	got := decodeList(t, call(t, p, "halopsa_get_invoices", map[string]any{"days": 30, "client_id": 7}))
	var ids []float64
	for _, inv := range got {
		ids = append(ids, inv["id"].(float64))
	}
	if diff := cmp.Diff([]float64{1, 4}, ids); diff != "" {
		t.Errorf("invoice ids mismatch (-want +got):\n%s", diff)
	}
	if q := srv.Last(t).Query; q.Get("clientId") != "7" || q.Get("pageSize") != "50" {
		t.Errorf("query = %v", q)
	}
}

func TestRecurringInvoicesActiveOnly(t *testing.T) {
	srv := newServer(t)
	srv.JSON("GET /recurring-invoices", http.StatusOK, map[string]any{"recurringInvoices": []any{
		map[string]any{"id": 1, "status": "ACTIVE"},
		map[string]any{"id": 2, "status": "CANCELLED"},
	}})
	p := New(vendortest.Deps(srv, creds))

	if got := decodeList(t, call(t, p, "halopsa_get_recurring_invoices", nil)); len(got) != 1 {
		t.Errorf("active = %v", got)
	}
	if got := decodeList(t, call(t, p, "halopsa_get_recurring_invoices", map[string]any{"active_only": false})); len(got) != 2 {
		t.Errorf("all = %v", got)
	}
}

func TestAgentsQuery(t *testing.T) {
	srv := newServer(t)
	srv.JSON("GET /users", http.StatusOK, map[string]any{})
	p := New(vendortest.Deps(srv, creds))

	if got := call(t, p, "halopsa_get_agents", nil); got != "[]" {
		t.Errorf("result = %q", got)
	}
	if q := srv.Last(t).Query; q.Get("userType") != "AGENT" {
		t.Errorf("query = %v", q)
	}
}

func TestErrorsCarryAction(t *testing.T) {
	srv := newServer(t)
	srv.JSON("GET /crm_accounts/9", http.StatusNotFound, map[string]any{"message": "Client not found"})
	srv.JSON("GET /tickets", http.StatusUnauthorized, map[string]any{"message": "expired"})
	p := New(vendortest.Deps(srv, creds))

	if got := call(t, p, "halopsa_get_client", map[string]any{"client_id": 9}); got != "Error: fetching HaloPSA client: HaloPSA API error (404): Client not found" {
		t.Errorf("404 = %q", got)
	}
	if got := call(t, p, "halopsa_get_tickets", nil); got != "Error: HaloPSA rejected the client credentials. Check HALOPSA_CLIENT_ID and HALOPSA_CLIENT_SECRET." {
		t.Errorf("401 = %q", got)
	}
}
