package aws

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/vendors/vendortest"
)

type recordedRun struct {
	name     string
	args     []string
	env      []string
	deadline time.Duration
}

func recordingRunner(rec *recordedRun, stdout string, code int) Runner {
	return func(ctx context.Context, name string, args, env []string) ([]byte, []byte, int, error) {
		rec.name, rec.args, rec.env = name, args, env
		if d, ok := ctx.Deadline(); ok {
			rec.deadline = time.Until(d)
		}
		if code != 0 {
			return nil, []byte("An error occurred (AccessDenied)"), code, nil
		}
		return []byte(stdout), nil, 0, nil
	}
}

func TestRunCommand(t *testing.T) {
	rec := &recordedRun{}
	p := New(vendortest.Deps(nil, homeKeys), Config{CLIPath: "/usr/bin/aws"},
		WithRunner(recordingRunner(rec, `{"Buckets":[{"Name":"b"}]}`, 0)))

	got := findTool(t, p, "aws_run_command").Call(context.Background(), map[string]any{
		"command": `s3api list-buckets --query "Buckets[].Name"`,
	})
	if !strings.HasPrefix(got, "**Account:** optiq.prod (979437352159)\n```json\n{\n  \"Buckets\"") {
		t.Errorf("result = %q", got)
	}

	want := []string{"s3api", "list-buckets", "--query", "Buckets[].Name", "--output", "json", "--region", "ap-southeast-2"}
	if !slices.Equal(rec.args, want) {
		t.Errorf("args = %q, want %q", rec.args, want)
	}
	if rec.name != "/usr/bin/aws" {
		t.Errorf("binary = %q", rec.name)
	}
	if !slices.Contains(rec.env, "AWS_ACCESS_KEY_ID=AKIAHOME") {
		t.Error("credentials missing from environment")
	}
}

func TestRunCommandTimeoutClamped(t *testing.T) {
	for _, tc := range []struct {
		in   int
		want time.Duration
	}{
		{in: 1, want: 10 * time.Second},
		{in: 0, want: 120 * time.Second},
		{in: 9999, want: 300 * time.Second},
	} {
		rec := &recordedRun{}
		p := New(vendortest.Deps(nil, homeKeys), Config{}, WithRunner(recordingRunner(rec, "", 0)))
		findTool(t, p, "aws_run_command").Call(context.Background(), map[string]any{
			"command": "sts get-caller-identity", "timeout_seconds": tc.in,
		})
		if rec.deadline > tc.want || rec.deadline < tc.want-5*time.Second {
			t.Errorf("timeout_seconds=%d: deadline in %v, want about %v", tc.in, rec.deadline, tc.want)
		}
	}
}

func TestRunCommandTimesOut(t *testing.T) {
	runner := func(ctx context.Context, _ string, _, _ []string) ([]byte, []byte, int, error) {
		return nil, nil, -1, context.DeadlineExceeded
	}
	p := New(vendortest.Deps(nil, homeKeys), Config{}, WithRunner(runner))

	got := findTool(t, p, "aws_run_command").Call(context.Background(), map[string]any{
		"command": "logs tail /aws/lambda/x --follow", "timeout_seconds": 30,
	})
	if got != "Error: Command timed out after 30 seconds." {
		t.Errorf("result = %q", got)
	}
}

func TestRunCommandTruncatesOutput(t *testing.T) {
	rec := &recordedRun{}
	p := New(vendortest.Deps(nil, homeKeys), Config{}, WithRunner(recordingRunner(rec, strings.Repeat("x", 20000), 0)))

	got := findTool(t, p, "aws_run_command").Call(context.Background(), map[string]any{"command": "s3 ls"})
	if !strings.Contains(got, strings.Repeat("x", 15000)+tools.TruncatedSuffix) {
		t.Error("output not truncated at 15000 characters")
	}
	if strings.Contains(got, strings.Repeat("x", 15001)) {
		t.Error("output longer than 15000 characters")
	}
}

func TestRunCommandTruncatesOnRuneBoundary(t *testing.T) {
	rec := &recordedRun{}
	p := New(vendortest.Deps(nil, homeKeys), Config{}, WithRunner(recordingRunner(rec, strings.Repeat("é", 20000), 0)))

	got := findTool(t, p, "aws_run_command").Call(context.Background(), map[string]any{"command": "s3 ls"})
	if !utf8.ValidString(got) {
		t.Fatal("truncated output is not valid UTF-8")
	}
	if !strings.Contains(got, strings.Repeat("é", 15000)+tools.TruncatedSuffix) {
		t.Error("output not truncated at 15000 characters")
	}
}

func TestRunCommandJSONKeepsHTMLCharacters(t *testing.T) {
	rec := &recordedRun{}
	stdout := `{"Url":"https://bucket.example/?a=1&b=2","Tag":"<prod>"}`
	p := New(vendortest.Deps(nil, homeKeys), Config{}, WithRunner(recordingRunner(rec, stdout, 0)))

	got := findTool(t, p, "aws_run_command").Call(context.Background(), map[string]any{"command": "s3api get-bucket-website --bucket b"})
	if !strings.Contains(got, `"Url": "https://bucket.example/?a=1&b=2"`) || !strings.Contains(got, `"Tag": "<prod>"`) {
		t.Errorf("result = %q", got)
	}
	if strings.Contains(got, `\u0026`) || strings.Contains(got, `\u003c`) {
		t.Errorf("result escapes HTML characters: %q", got)
	}
}

func TestRunCommandFailure(t *testing.T) {
	rec := &recordedRun{}
	p := New(vendortest.Deps(nil, homeKeys), Config{}, WithRunner(recordingRunner(rec, "", 254)))

	got := findTool(t, p, "aws_run_command").Call(context.Background(), map[string]any{"command": "iam list-users"})
	if !strings.Contains(got, "**Error running AWS CLI** (optiq.prod (979437352159))") ||
		!strings.Contains(got, "AccessDenied") {
		t.Errorf("result = %q", got)
	}
}
