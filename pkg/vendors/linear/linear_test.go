package linear

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crowdit/crowdmcp/pkg/vendors/vendortest"
)

var apiKey = map[string]string{APIKeySecret: "lin_api_123"}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func lastGraphQL(t *testing.T, srv *vendortest.Server) gqlRequest {
	t.Helper()
	var req gqlRequest
	if err := json.Unmarshal(srv.Last(t).Body, &req); err != nil {
		t.Fatal(err)
	}
	return req
}

func respond(srv *vendortest.Server, data map[string]any) {
	srv.JSON("POST /{$}", http.StatusOK, map[string]any{"data": data})
}

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

func TestNotConfigured(t *testing.T) {
	srv := vendortest.NewServer(t)
	p := New(vendortest.Deps(srv, nil))

	for _, tool := range p.Tools() {
		if got := tool.Call(context.Background(), map[string]any{"issue_id": "ENG-1", "title": "x", "team_id": "t", "body": "b"}); got != "Error: Linear not configured. Set LINEAR_API_KEY." {
			t.Errorf("%s = %q", tool.Name, got)
		}
	}
	if srv.Count() != 0 {
		t.Errorf("requests = %d, want 0", srv.Count())
	}
}

func TestRawAuthorizationHeader(t *testing.T) {
	srv := vendortest.NewServer(t)
	respond(srv, map[string]any{"viewer": map[string]any{
		"id": "u1", "name": "Ada", "active": true,
		"organization": map[string]any{"id": "o1", "name": "Crowd IT", "urlKey": "crowdit"},
	}})
	p := New(vendortest.Deps(srv, apiKey))

	got := vendortest.Decode(t, call(t, p, "linear_get_viewer", nil))
	if org := got["organization"].(map[string]any); org["urlKey"] != "crowdit" {
		t.Errorf("organization = %v", org)
	}
	if auth := srv.Last(t).Header.Get("Authorization"); auth != "lin_api_123" {
		t.Errorf("Authorization = %q, want the bare key", auth)
	}
}

func TestSearchIssuesFilter(t *testing.T) {
	srv := vendortest.NewServer(t)
	respond(srv, map[string]any{"issues": map[string]any{"nodes": []any{
		map[string]any{
			"identifier": "ENG-7", "title": "Fix login", "priorityLabel": "Urgent",
			"state":  map[string]any{"name": "In Progress"},
			"team":   map[string]any{"name": "Engineering", "key": "ENG"},
			"labels": map[string]any{"nodes": []any{map[string]any{"name": "bug"}}},
		},
	}}})
	p := New(vendortest.Deps(srv, apiKey))

	got := call(t, p, "linear_search_issues", map[string]any{
		"assignee_id": "Me",
		"state_name":  "in progress",
		"state_type":  "started",
		"priority":    0,
		"first":       200,
	})

	req := lastGraphQL(t, srv)
	if !strings.Contains(req.Query, "issues(filter: $filter") {
		t.Errorf("query = %s", req.Query)
	}
	wantVars := map[string]any{
		"first": float64(50),
		"filter": map[string]any{
			"assignee": map[string]any{"isMe": map[string]any{"eq": true}},
			"state":    map[string]any{"name": map[string]any{"eqIgnoreCase": "in progress"}},
			"priority": map[string]any{"eq": float64(0)},
		},
	}
	if diff := cmp.Diff(wantVars, req.Variables); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}

	res := vendortest.Decode(t, got)
	issue := res["issues"].([]any)[0].(map[string]any)
	if issue["assignee"] != "Unassigned" || issue["team"] != "ENG" || issue["priority"] != "Urgent" {
		t.Errorf("issue = %v", issue)
	}
}

func TestSearchIssuesFullText(t *testing.T) {
	srv := vendortest.NewServer(t)
	respond(srv, map[string]any{"searchIssues": map[string]any{"nodes": []any{}}})
	p := New(vendortest.Deps(srv, apiKey))

	got := call(t, p, "linear_search_issues", map[string]any{"query": "login", "team_id": "ignored"})
	if res := vendortest.Decode(t, got); res["total"] != json.Number("0") {
		t.Errorf("result = %v", res)
	}
	req := lastGraphQL(t, srv)
	if !strings.Contains(req.Query, "searchIssues(term: $query") || req.Variables["query"] != "login" {
		t.Errorf("request = %+v", req)
	}
}

func TestInvalidStateTypeMakesNoRequest(t *testing.T) {
	srv := vendortest.NewServer(t)
	p := New(vendortest.Deps(srv, apiKey))

	if got := call(t, p, "linear_search_issues", map[string]any{"state_type": "doing"}); !strings.HasPrefix(got, "Error: Invalid state_type 'doing'") {
		t.Errorf("result = %q", got)
	}
	if got := call(t, p, "linear_update_issue", map[string]any{"issue_id": "ENG-1"}); got != "Error: No fields provided to update." {
		t.Errorf("update = %q", got)
	}
	if srv.Count() != 0 {
		t.Errorf("requests = %d, want 0", srv.Count())
	}
}

func TestGetIssue(t *testing.T) {
	srv := vendortest.NewServer(t)
	respond(srv, map[string]any{"issue": map[string]any{
		"id": "uuid-1", "identifier": "ENG-1", "title": "Ship it", "priority": 2, "priorityLabel": "High",
		"state":    map[string]any{"name": "Todo", "type": "unstarted"},
		"assignee": map[string]any{"name": "Ada"},
		"cycle":    map[string]any{"name": nil, "number": 12},
		"estimate": 3,
		"comments": map[string]any{"nodes": []any{
			map[string]any{"id": "c1", "body": "LGTM", "user": map[string]any{"name": "Bob"}},
		}},
	}})
	p := New(vendortest.Deps(srv, apiKey))

	res := vendortest.Decode(t, call(t, p, "linear_get_issue", map[string]any{"issue_id": "ENG-1", "include_comments": true}))
	for key, want := range map[string]any{
		"state": "Todo", "stateType": "unstarted", "assignee": "Ada", "cycle": "12", "estimate": json.Number("3"),
	} {
		if res[key] != want {
			t.Errorf("%s = %v, want %v", key, res[key], want)
		}
	}
	comments := res["comments"].([]any)
	if len(comments) != 1 || comments[0].(map[string]any)["author"] != "Bob" {
		t.Errorf("comments = %v", comments)
	}
	if req := lastGraphQL(t, srv); !strings.Contains(req.Query, "comments {") || req.Variables["id"] != "ENG-1" {
		t.Errorf("request = %+v", req)
	}
}

func TestGetIssueNotFound(t *testing.T) {
	srv := vendortest.NewServer(t)
	respond(srv, map[string]any{"issue": nil})
	p := New(vendortest.Deps(srv, apiKey))

	if got := call(t, p, "linear_get_issue", map[string]any{"issue_id": "ENG-404"}); got != "Error: Issue 'ENG-404' not found." {
		t.Errorf("result = %q", got)
	}
}

func TestGraphQLErrors(t *testing.T) {
	srv := vendortest.NewServer(t)
	srv.JSON("POST /{$}", http.StatusOK, map[string]any{"errors": []any{
		map[string]any{"message": "Entity not found"},
		map[string]any{"message": "Argument Validation Error"},
	}})
	p := New(vendortest.Deps(srv, apiKey))

	got := call(t, p, "linear_archive_issue", map[string]any{"issue_id": "ENG-9"})
	if got != "Error: archiving Linear issue: GraphQL errors: Entity not found; Argument Validation Error" {
		t.Errorf("result = %q", got)
	}
}

func TestUnauthorized(t *testing.T) {
	srv := vendortest.NewServer(t)
	srv.JSON("POST /{$}", http.StatusUnauthorized, map[string]any{"errors": []any{map[string]any{"message": "Authentication required"}}})
	p := New(vendortest.Deps(srv, apiKey))

	if got := call(t, p, "linear_list_teams", nil); got != "Error: Linear rejected the API key. Check LINEAR_API_KEY." {
		t.Errorf("result = %q", got)
	}
}

func TestCreateIssue(t *testing.T) {
	srv := vendortest.NewServer(t)
	respond(srv, map[string]any{"issueCreate": map[string]any{
		"success": true,
		"issue":   map[string]any{"id": "uuid-2", "identifier": "OPS-3", "title": "Rotate keys"},
	}})
	p := New(vendortest.Deps(srv, apiKey))

	res := vendortest.Decode(t, call(t, p, "linear_create_issue", map[string]any{
		"title": "Rotate keys", "team_id": "team-ops", "label_ids": "l1, l2,", "priority": 1,
	}))
	if res["_status"] != "created" || res["identifier"] != "OPS-3" {
		t.Errorf("result = %v", res)
	}

	want := map[string]any{"input": map[string]any{
		"title": "Rotate keys", "teamId": "team-ops", "labelIds": []any{"l1", "l2"}, "priority": float64(1),
	}}
	if diff := cmp.Diff(want, lastGraphQL(t, srv).Variables); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateIssueClearsWithEmptyString(t *testing.T) {
	srv := vendortest.NewServer(t)
	respond(srv, map[string]any{"issueUpdate": map[string]any{"success": true, "issue": map[string]any{"identifier": "ENG-1"}}})
	p := New(vendortest.Deps(srv, apiKey))

	call(t, p, "linear_update_issue", map[string]any{"issue_id": "ENG-1", "due_date": "", "label_ids": ""})
	want := map[string]any{"id": "ENG-1", "input": map[string]any{"dueDate": "", "labelIds": []any{}}}
	if diff := cmp.Diff(want, lastGraphQL(t, srv).Variables); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
}

func TestListProjectsHidesCompleted(t *testing.T) {
	srv := vendortest.NewServer(t)
	respond(srv, map[string]any{"projects": map[string]any{"nodes": []any{
		map[string]any{"id": "p1", "name": "Migration", "lead": map[string]any{"name": "Ada"},
			"teams": map[string]any{"nodes": []any{map[string]any{"name": "Ops"}}}},
	}}})
	p := New(vendortest.Deps(srv, apiKey))

	res := vendortest.Decode(t, call(t, p, "linear_list_projects", nil))
	project := res["projects"].([]any)[0].(map[string]any)
	if project["lead"] != "Ada" || project["teams"].([]any)[0] != "Ops" {
		t.Errorf("project = %v", project)
	}
	vars := lastGraphQL(t, srv).Variables
	if vars["first"] != float64(25) || vars["filter"] == nil {
		t.Errorf("variables = %v", vars)
	}
}
