package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want map[string]any
	}{
		{"empty", nil, map[string]any{}},
		{"json object", []string{`{"limit": 5, "status": "open"}`}, map[string]any{"limit": float64(5), "status": "open"}},
		{"key value", []string{"limit=5", "status=open", "flag=true"}, map[string]any{"limit": float64(5), "status": "open", "flag": true}},
		{"value with equals", []string{"query=a=b"}, map[string]any{"query": "a=b"}},
		{"quoted number stays string", []string{`id="42"`}, map[string]any{"id": "42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args)
			if err != nil {
				t.Fatalf("parseArgs: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseArgsErrors(t *testing.T) {
	for _, args := range [][]string{{"novalue"}, {"=x"}, {"{broken"}} {
		if _, err := parseArgs(args); err == nil {
			t.Errorf("parseArgs(%q) succeeded", args)
		}
	}
}
