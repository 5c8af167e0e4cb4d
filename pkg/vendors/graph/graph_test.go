package graph

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crowdit/crowdmcp/pkg/vendors/vendortest"
)

var mailboxSecrets = map[string]string{
	TenantIDSecret:     "tenant-1",
	ClientIDSecret:     "client",
	ClientSecretSecret: "shh",
	UserIDSecret:       "ops@crowdit.com.au",
}

func TestSessionRequiresEverySecret(t *testing.T) {
	srv := vendortest.NewServer(t)
	partial := map[string]string{TenantIDSecret: "t", ClientIDSecret: "c", ClientSecretSecret: "s"}
	m := NewMailbox(vendortest.Deps(srv, partial), WithLoginURL(srv.URL))

	if m.Configured(context.Background()) {
		t.Error("Configured() = true without EMAIL_USER_ID")
	}
	if srv.Count() != 0 {
		t.Errorf("requests = %d, want 0", srv.Count())
	}
}

func TestSessionAuthorizesAndPrefersText(t *testing.T) {
	srv := vendortest.NewServer(t)
	srv.Token("POST /tenant-1/oauth2/v2.0/token", "app-token")
	srv.JSON("GET /users/ops@crowdit.com.au/messages", http.StatusOK, map[string]any{"value": []any{}})

	m := NewMailbox(vendortest.Deps(srv, mailboxSecrets), WithLoginURL(srv.URL))
	s, ok := m.Session(context.Background())
	if !ok {
		t.Fatal("session not ready")
	}
	if _, err := s.API.Get(context.Background(), s.User("", "/messages"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.API.Get(context.Background(), s.User("", "/messages"), nil); err != nil {
		t.Fatal(err)
	}

	reqs := srv.Requests()
	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want one token request and two calls", len(reqs))
	}
	form := string(reqs[0].Body)
	for _, want := range []string{"grant_type=client_credentials", "scope=https%3A%2F%2Fgraph.microsoft.com%2F.default"} {
		if !strings.Contains(form, want) {
			t.Errorf("token request %q missing %q", form, want)
		}
	}
	last := reqs[2]
	if got := last.Header.Get("Authorization"); got != "Bearer app-token" {
		t.Errorf("Authorization = %q", got)
	}
	if got := last.Header.Get("Prefer"); got != PreferText {
		t.Errorf("Prefer = %q", got)
	}
}

func TestUserOverride(t *testing.T) {
	s := &Session{UserID: "ops@crowdit.com.au"}
	if got := s.User("", "/mailFolders"); got != "/users/ops@crowdit.com.au/mailFolders" {
		t.Errorf("User = %q", got)
	}
	if got := s.User("other user", "/events"); got != "/users/other%20user/events" {
		t.Errorf("User override = %q", got)
	}
}

func TestText(t *testing.T) {
	in := `<html><body><p>Hello&nbsp;<b>team</b></p><div>Line&amp;two<br>three</div><script>x()</script></body></html>`
	if got, want := Text(in), "Hello team\nLine&two\nthree"; got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
}

func TestEmailSummary(t *testing.T) {
	msg := map[string]any{
		"id":      "m1",
		"subject": "RE: Invoice",
		"from":    map[string]any{"emailAddress": map[string]any{"name": "Ann", "address": "ann@example.com"}},
		"toRecipients": []any{
			map[string]any{"emailAddress": map[string]any{"address": "ops@crowdit.com.au"}},
		},
		"ccRecipients": []any{
			map[string]any{"emailAddress": map[string]any{"name": "Bob"}},
		},
		"isRead": true,
		"flag":   map[string]any{"flagStatus": "flagged"},
		"body":   map[string]any{"contentType": "html", "content": "<p>Paid</p>"},
	}

	got := EmailSummary(msg, true)
	want := map[string]any{
		"id": "m1", "subject": "RE: Invoice",
		"from": "Ann <ann@example.com>", "to": []string{"ops@crowdit.com.au"}, "cc": []string{"Bob"},
		"received": "", "is_read": true, "importance": "normal", "flag": "flagged",
		"has_attachments": false, "categories": []any{}, "preview": "", "conversation_id": "",
		"is_reply": true, "is_forward": false, "body": "Paid", "body_type": "html",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EmailSummary mismatch (-want +got):\n%s", diff)
	}
}

func TestEventSummaryDefaults(t *testing.T) {
	got := EventSummary(map[string]any{
		"id":         "e1",
		"organizer":  map[string]any{"emailAddress": map[string]any{"address": "Ext@Partner.com"}},
		"recurrence": map[string]any{"pattern": map[string]any{}},
		"attendees":  []any{map[string]any{"emailAddress": map[string]any{"name": "A"}}},
	}, false)

	for k, want := range map[string]any{
		"subject": "(no subject)", "organizer": "Ext@Partner.com", "organizer_email": "ext@partner.com",
		"show_as": "busy", "recurrence": "recurring", "attendee_count": 1, "response_status": "none",
	} {
		if got[k] != want {
			t.Errorf("%s = %v, want %v", k, got[k], want)
		}
	}
	if _, ok := got["attendees"]; ok {
		t.Error("attendees included without body")
	}
}

func TestNotConfiguredAndFail(t *testing.T) {
	if got := NotConfigured("Calendar"); got != "❌ Calendar not configured. Set EMAIL_TENANT_ID, EMAIL_CLIENT_ID, EMAIL_CLIENT_SECRET, EMAIL_USER_ID." {
		t.Errorf("NotConfigured = %q", got)
	}
	if got := Fail("listing emails", context.Canceled); got != "❌ Error listing emails: context canceled" {
		t.Errorf("Fail = %q", got)
	}
}
