package front

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crowdit/crowdmcp/pkg/vendors/vendortest"
)

var token = map[string]string{TokenSecret: "front-token"}

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

func cnv(id, subject string) map[string]any {
	return map[string]any{
		"id": id, "subject": subject, "status": "unassigned", "created_at": 1790000000.5,
		"recipient":    map[string]any{"handle": "jane@acme.test"},
		"assignee":     map[string]any{"email": "ops@crowdit.test", "first_name": "Ops", "last_name": "Desk"},
		"tags":         []any{map[string]any{"id": "tag_1", "name": "billing"}},
		"last_message": map[string]any{"blurb": "Hi there"},
	}
}

func TestNotConfigured(t *testing.T) {
	srv := vendortest.NewServer(t)
	p := New(vendortest.Deps(srv, nil))

	for _, tool := range p.Tools() {
		args := map[string]any{"conversation_id": "cnv_1", "query": "x", "tag_name": "y"}
		if got := tool.Call(context.Background(), args); got != "Error: Front not configured. Set FRONT_API_TOKEN." {
			t.Errorf("%s = %q", tool.Name, got)
		}
	}
	if srv.Count() != 0 {
		t.Errorf("requests = %d, want 0", srv.Count())
	}
}

func TestListConversationsInInbox(t *testing.T) {
	srv := vendortest.NewServer(t)
	srv.JSON("GET /inboxes/inb_1/conversations", http.StatusOK, map[string]any{"_results": []any{cnv("cnv_1", "Invoice query")}})
	p := New(vendortest.Deps(srv, token))

	got := decodeList(t, call(t, p, "front_list_conversations", map[string]any{"inbox_id": "inb_1", "limit": 500}))
	want := []map[string]any{{
		"id": "cnv_1", "subject": "Invoice query", "status": "unassigned", "from": "jane@acme.test",
		"assignee": "Ops Desk", "tags": []any{"billing"}, "created_at": "2026-09-21T14:13:20Z", "preview": "Hi there",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("conversations mismatch (-want +got):\n%s", diff)
	}

	last := srv.Last(t)
	if last.Header.Get("Authorization") != "Bearer front-token" {
		t.Errorf("Authorization = %q", last.Header.Get("Authorization"))
	}
	if last.Query.Get("limit") != "100" || last.Query.Get("q[statuses][]") != "open" {
		t.Errorf("query = %v", last.Query)
	}
}

func TestListConversationsStatus(t *testing.T) {
	srv := vendortest.NewServer(t)
	srv.JSON("GET /conversations", http.StatusOK, map[string]any{"_results": []any{}})
	p := New(vendortest.Deps(srv, token))

	if got := call(t, p, "front_list_conversations", map[string]any{"status": "closed"}); got != "Error: Invalid status 'closed'. Use open, archived, assigned, unassigned, deleted or all." {
		t.Errorf("invalid status = %q", got)
	}
	if srv.Count() != 0 {
		t.Errorf("requests = %d, want 0", srv.Count())
	}
	if got := call(t, p, "front_list_conversations", map[string]any{"status": "all"}); got != "[]" {
		t.Errorf("result = %q", got)
	}
	if q := srv.Last(t).Query; q.Has("q[statuses][]") {
		t.Errorf("status filter sent for all: %v", q)
	}
}

func TestSearchConversations(t *testing.T) {
	srv := vendortest.NewServer(t)
	srv.JSON("GET /conversations/search/{query}", http.StatusOK, map[string]any{"_results": []any{cnv("cnv_2", "Renewal")}})
	p := New(vendortest.Deps(srv, token))

	got := decodeList(t, call(t, p, "front_search_conversations", map[string]any{"query": "renewal is:open"}))
	if len(got) != 1 || got[0]["id"] != "cnv_2" {
		t.Errorf("result = %v", got)
	}
	if path := srv.Last(t).Path; path != "/conversations/search/renewal is:open" {
		t.Errorf("path = %q", path)
	}
}

func TestAddTagResolvesName(t *testing.T) {
	srv := vendortest.NewServer(t)
	srv.JSON("GET /tags", http.StatusOK, map[string]any{"_results": []any{
		map[string]any{"id": "tag_1", "name": "billing"},
		map[string]any{"id": "tag_2", "name": "Urgent"},
	}})
	srv.Handle("POST /conversations/cnv_1/tags", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	p := New(vendortest.Deps(srv, token))

	got := vendortest.Decode(t, call(t, p, "front_add_tag", map[string]any{"conversation_id": "cnv_1", "tag_name": "urgent"}))
	if got["tag_id"] != "tag_2" || got["status"] != "success" {
		t.Errorf("result = %v", got)
	}
	want := map[string]any{"tag_ids": []any{"tag_2"}}
	if diff := cmp.Diff(want, srv.Last(t).JSONBody(t)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestAddTagUnknownName(t *testing.T) {
	srv := vendortest.NewServer(t)
	srv.JSON("GET /tags", http.StatusOK, map[string]any{"_results": []any{}})
	p := New(vendortest.Deps(srv, token))

	if got := call(t, p, "front_add_tag", map[string]any{"conversation_id": "cnv_1", "tag_name": "vip"}); got != "Error: Tag 'vip' not found." {
		t.Errorf("result = %q", got)
	}
	if srv.Count() != 1 {
		t.Errorf("requests = %d, want only the tag lookup", srv.Count())
	}
}

func TestListMessages(t *testing.T) {
	srv := vendortest.NewServer(t)
	srv.JSON("GET /conversations/cnv_1/messages", http.StatusOK, map[string]any{"_results": []any{
		map[string]any{
			"id": "msg_1", "is_inbound": true, "created_at": 1790000000, "text": "  Please help  ",
			"recipients": []any{
				map[string]any{"handle": "jane@acme.test", "role": "from"},
				map[string]any{"handle": "support@crowdit.test", "role": "to"},
			},
		},
	}})
	p := New(vendortest.Deps(srv, token))

	got := decodeList(t, call(t, p, "front_list_messages", map[string]any{"conversation_id": "cnv_1"}))
	want := []map[string]any{{
		"id": "msg_1", "inbound": true, "author": "jane@acme.test", "to": []any{"support@crowdit.test"},
		"created_at": "2026-09-21T14:13:20Z", "text": "Please help",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestUnauthorized(t *testing.T) {
	srv := vendortest.NewServer(t)
	srv.JSON("GET /inboxes", http.StatusUnauthorized, map[string]any{"_error": map[string]any{"message": "bad token"}})
	p := New(vendortest.Deps(srv, token))

	if got := call(t, p, "front_list_inboxes", nil); got != "Error: Front rejected the API token. Check FRONT_API_TOKEN." {
		t.Errorf("result = %q", got)
	}
}
