package email

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/vendors/graph"
	"github.com/crowdit/crowdmcp/pkg/vendors/vendortest"
)

const userPath = "/users/ops@crowdit.com.au"

var mailboxSecrets = map[string]string{
	graph.TenantIDSecret:     "tenant-1",
	graph.ClientIDSecret:     "client",
	graph.ClientSecretSecret: "shh",
	graph.UserIDSecret:       "ops@crowdit.com.au",
}

func newProvider(t *testing.T, opts ...Option) (*Provider, *vendortest.Server) {
	t.Helper()
	srv := vendortest.NewServer(t)
	srv.Token("POST /tenant-1/oauth2/v2.0/token", "app-token")
	mb := graph.NewMailbox(vendortest.Deps(srv, mailboxSecrets), graph.WithLoginURL(srv.URL))
	return New(mb, opts...), srv
}

func findTool(t *testing.T, p *Provider, name string) tools.Tool {
	t.Helper()
	for _, tool := range p.Tools() {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %q not found", name)
	return tools.Tool{}
}

// graphCalls drops token requests.
func graphCalls(srv *vendortest.Server) []vendortest.Request {
	var out []vendortest.Request
	for _, r := range srv.Requests() {
		if strings.HasPrefix(r.Path, "/users/") {
			out = append(out, r)
		}
	}
	return out
}

func TestNotConfigured(t *testing.T) {
	srv := vendortest.NewServer(t)
	p := New(graph.NewMailbox(vendortest.Deps(srv, nil), graph.WithLoginURL(srv.URL)))

	got := findTool(t, p, "email_list_inbox").Call(context.Background(), nil)
	if want := "❌ Email not configured. Set EMAIL_TENANT_ID, EMAIL_CLIENT_ID, EMAIL_CLIENT_SECRET, EMAIL_USER_ID."; got != want {
		t.Errorf("result = %q, want %q", got, want)
	}
	if !tools.IsError(got) {
		t.Error("not-configured result is not an error")
	}
	if srv.Count() != 0 {
		t.Errorf("requests = %d, want 0", srv.Count())
	}
}

func TestListInbox(t *testing.T) {
	p, srv := newProvider(t)
	srv.JSON("GET "+userPath+"/mailFolders/inbox/messages", http.StatusOK, map[string]any{"value": []any{
		map[string]any{"id": "m1", "subject": "Outage", "importance": "high",
			"from": map[string]any{"emailAddress": map[string]any{"name": "Ann", "address": "ann@client.com"}}},
	}})

	got := findTool(t, p, "email_list_inbox").Call(context.Background(), map[string]any{
		"top": 500, "skip": 10, "unread_only": true, "importance": "high",
	})
	if !strings.HasPrefix(got, "📧 1 emails from inbox (showing 11-11)\n\n") {
		t.Errorf("result = %q", got)
	}
	if !strings.Contains(got, `"from": "Ann <ann@client.com>"`) {
		t.Errorf("summary missing sender:\n%s", got)
	}

	q := graphCalls(srv)[0].Query
	if q.Get("$top") != "50" || q.Get("$skip") != "10" {
		t.Errorf("paging = %v", q)
	}
	if want := "isRead eq false and importance eq 'high'"; q.Get("$filter") != want {
		t.Errorf("$filter = %q, want %q", q.Get("$filter"), want)
	}
}

func TestInvalidImportanceMakesNoRequest(t *testing.T) {
	p, srv := newProvider(t)
	got := findTool(t, p, "email_list_inbox").Call(context.Background(), map[string]any{"importance": "urgent"})
	if !strings.HasPrefix(got, "❌ Invalid importance 'urgent'") {
		t.Errorf("result = %q", got)
	}
	if srv.Count() != 0 {
		t.Errorf("requests = %d, want 0", srv.Count())
	}
}

func TestTriageInbox(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	p, srv := newProvider(t, WithClock(func() time.Time { return now }))
	srv.JSON("GET "+userPath+"/mailFolders/inbox/messages", http.StatusOK, map[string]any{"value": []any{
		map[string]any{"id": "a", "importance": "high", "receivedDateTime": "2026-05-04T09:30:00Z",
			"from": map[string]any{"emailAddress": map[string]any{"address": "x@client.com"}}},
		map[string]any{"id": "b", "hasAttachments": true, "flag": map[string]any{"flagStatus": "flagged"},
			"from": map[string]any{"emailAddress": map[string]any{"address": "y@client.com"}}},
		map[string]any{"id": "c", "from": map[string]any{"emailAddress": map[string]any{"name": "No Address"}}},
	}})

	got := vendortest.Decode(t, findTool(t, p, "email_triage_inbox").Call(context.Background(), map[string]any{"hours_back": 1000}))

	if got["total_unread"] != json.Number("3") || got["period_hours"] != json.Number("168") {
		t.Errorf("totals = %v / %v", got["total_unread"], got["period_hours"])
	}
	for key, want := range map[string]string{"high_importance_count": "1", "flagged_count": "1", "with_attachments": "1"} {
		if got[key] != json.Number(want) {
			t.Errorf("%s = %v, want %s", key, got[key], want)
		}
	}
	domains := got["sender_domains"].(map[string]any)
	if domains["client.com"] != json.Number("2") || domains["unknown"] != json.Number("1") {
		t.Errorf("sender_domains = %v", domains)
	}
	first := got["emails"].([]any)[0].(map[string]any)
	if first["age_hours"] != json.Number("2.5") || first["sender_domain"] != "client.com" {
		t.Errorf("first email = %v", first)
	}

	filter := graphCalls(srv)[0].Query.Get("$filter")
	if want := "isRead eq false and receivedDateTime ge 2026-04-27T12:00:00Z"; filter != want {
		t.Errorf("$filter = %q, want %q", filter, want)
	}
}

func TestSend(t *testing.T) {
	p, srv := newProvider(t)
	srv.Handle("POST "+userPath+"/sendMail", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	got := findTool(t, p, "email_send").Call(context.Background(), map[string]any{
		"to": "a@x.com, b@x.com", "subject": "Hi", "body": "Text", "cc": "c@x.com",
	})
	if got != "✅ Email sent to a@x.com, b@x.com | Subject: Hi" {
		t.Errorf("result = %q", got)
	}

	body := graphCalls(srv)[0].JSONBody(t)
	if body["saveToSentItems"] != true {
		t.Error("saveToSentItems not set")
	}
	msg := body["message"].(map[string]any)
	if len(msg["toRecipients"].([]any)) != 2 || len(msg["ccRecipients"].([]any)) != 1 {
		t.Errorf("recipients = %v", msg)
	}
	if msg["importance"] != "normal" {
		t.Errorf("importance = %v", msg["importance"])
	}
}

func TestBatchAction(t *testing.T) {
	p, srv := newProvider(t)
	srv.JSON("PATCH "+userPath+"/messages/ok-1", http.StatusOK, map[string]any{"id": "ok-1"})
	srv.JSON("PATCH "+userPath+"/messages/missing-message", http.StatusNotFound, map[string]any{
		"error": map[string]any{"code": "ErrorItemNotFound", "message": "The specified object was not found in the store."},
	})

	got := findTool(t, p, "email_batch_action").Call(context.Background(), map[string]any{
		"message_ids": "ok-1,missing-message", "action": "mark_read",
	})
	if !strings.HasPrefix(got, "✅ 1/2 emails processed (mark_read)\n⚠️ Errors:\nmissing-...: ") {
		t.Errorf("result = %q", got)
	}
}

func TestBatchActionUnknownMakesNoRequest(t *testing.T) {
	p, srv := newProvider(t)
	got := findTool(t, p, "email_batch_action").Call(context.Background(), map[string]any{
		"message_ids": "a,b", "action": "delete",
	})
	if !strings.HasPrefix(got, "❌ Unknown action 'delete'") {
		t.Errorf("result = %q", got)
	}
	if srv.Count() != 0 {
		t.Errorf("requests = %d, want 0", srv.Count())
	}
}

func TestGraphErrorIsReported(t *testing.T) {
	p, srv := newProvider(t)
	srv.JSON("GET "+userPath+"/mailFolders", http.StatusForbidden, map[string]any{
		"error": map[string]any{"code": "ErrorAccessDenied", "message": "Access is denied."},
	})

	got := findTool(t, p, "email_list_folders").Call(context.Background(), nil)
	if !strings.HasPrefix(got, "❌ Error listing folders: ") || !strings.Contains(got, "Access is denied.") {
		t.Errorf("result = %q", got)
	}
}

func TestUserOverride(t *testing.T) {
	p, srv := newProvider(t)
	srv.JSON("GET /users/boss@crowdit.com.au/messages/m1", http.StatusOK, map[string]any{"id": "m1", "subject": "Hello"})

	got := findTool(t, p, "email_get_message").Call(context.Background(), map[string]any{
		"message_id": "m1", "user_id": "boss@crowdit.com.au",
	})
	if vendortest.Decode(t, got)["subject"] != "Hello" {
		t.Errorf("result = %q", got)
	}
}
