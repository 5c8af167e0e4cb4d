package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type echoArgs struct {
	Name  string `json:"name" jsonschema:"who to greet"`
	Count int    `json:"count,omitempty" jsonschema:"repetitions"`
}

func echoTool() Tool {
	return New("test_echo", "Echo", "  Echo a name.  ", ReadOnly, func(_ context.Context, in echoArgs) string {
		if in.Name == "" {
			return Errorf("name is required")
		}
		return strings.Repeat(in.Name, max(in.Count, 1))
	})
}

func TestNew_DecodesArguments(t *testing.T) {
	tool := echoTool()

	got := tool.Handler(context.Background(), json.RawMessage(`{"name":"ab","count":2}`))
	if got != "abab" {
		t.Errorf("result = %q, want abab", got)
	}
	if tool.Description != "Echo a name." {
		t.Errorf("Description = %q, want trimmed", tool.Description)
	}
}

func TestNew_EmptyArguments(t *testing.T) {
	tool := echoTool()
	for _, raw := range []string{"", "null", "{}"} {
		got := tool.Handler(context.Background(), json.RawMessage(raw))
		if got != "Error: name is required" {
			t.Errorf("args %q: result = %q", raw, got)
		}
	}
}

func TestNew_MalformedArguments(t *testing.T) {
	tool := echoTool()
	got := tool.Handler(context.Background(), json.RawMessage(`{"count":"many"}`))
	if !strings.HasPrefix(got, "Error: invalid arguments:") {
		t.Errorf("result = %q, want invalid arguments error", got)
	}
}

func TestNew_Schema(t *testing.T) {
	tool := echoTool()
	if tool.InputSchema == nil {
		t.Fatal("InputSchema is nil")
	}
	if tool.InputSchema.Type != "object" {
		t.Errorf("schema type = %q, want object", tool.InputSchema.Type)
	}
	if _, ok := tool.InputSchema.Properties["name"]; !ok {
		t.Error("schema is missing the name property")
	}
	if d := tool.InputSchema.Properties["name"].Description; d != "who to greet" {
		t.Errorf("name description = %q", d)
	}
}

func TestCall(t *testing.T) {
	if got := echoTool().Call(context.Background(), map[string]any{"name": "x"}); got != "x" {
		t.Errorf("Call = %q, want x", got)
	}
}

func TestJSON(t *testing.T) {
	got := JSON(map[string]any{"total": 1})
	want := "{\n  \"total\": 1\n}"
	if got != want {
		t.Errorf("JSON = %q, want %q", got, want)
	}
}

func TestJSONKeepsHTMLCharacters(t *testing.T) {
	got := JSON(map[string]any{
		"url":     "https://x.example/?a=1&b=2",
		"subject": "<Re> Tom & Jerry",
	})
	want := "{\n  \"subject\": \"<Re> Tom & Jerry\",\n  \"url\": \"https://x.example/?a=1&b=2\"\n}"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestTable(t *testing.T) {
	got := Table([]string{"ID", "Name"}, [][]string{{"1", "a|b"}, {"2"}})
	want := "| ID | Name |\n| --- | --- |\n| 1 | a\\|b |\n| 2 |  |"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Table mismatch (-want +got):\n%s", diff)
	}
}

func TestIsError(t *testing.T) {
	tests := map[string]bool{
		"Error: boom":       true,
		"❌ Email failed":    true,
		"ok":                false,
		"contains Error: x": false,
	}
	for in, want := range tests {
		if got := IsError(in); got != want {
			t.Errorf("IsError(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" a, ,b ,c,")
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("SplitCSV mismatch (-want +got):\n%s", diff)
	}
	if SplitCSV("") != nil {
		t.Error("SplitCSV(\"\") should be nil")
	}
}

func TestClampAndTruncate(t *testing.T) {
	if got := Clamp(5, 10, 300); got != 10 {
		t.Errorf("Clamp low = %d", got)
	}
	if got := Clamp(900, 10, 300); got != 300 {
		t.Errorf("Clamp high = %d", got)
	}
	if got := Clamp(60, 10, 300); got != 60 {
		t.Errorf("Clamp mid = %d", got)
	}

	if got := Truncate("abcdef", 3); got != "abc"+TruncatedSuffix {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("abc", 3); got != "abc" {
		t.Errorf("Truncate short = %q", got)
	}
}

func TestGetters(t *testing.T) {
	var v any
	dec := json.NewDecoder(strings.NewReader(`{"a":{"id":9007199254740993,"name":"x","ok":true}}`))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		t.Fatal(err)
	}

	if got := Str(Get(v, "a", "id")); got != "9007199254740993" {
		t.Errorf("Str(id) = %q", got)
	}
	if got := Int(Get(v, "a", "id")); got != 9007199254740993 {
		t.Errorf("Int(id) = %d", got)
	}
	if got := Str(Get(v, "a", "ok")); got != "true" {
		t.Errorf("Str(ok) = %q", got)
	}
	if Get(v, "a", "missing", "deeper") != nil {
		t.Error("Get on missing path should be nil")
	}
	if diff := cmp.Diff(map[string]any{"name": "x"}, Pick(Get(v, "a"), "name", "absent")); diff != "" {
		t.Errorf("Pick mismatch (-want +got):\n%s", diff)
	}
}
