package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/crowdit/crowdmcp/pkg/debug"
	"github.com/crowdit/crowdmcp/pkg/tools"
)

const (
	minCommandTimeout     = 10
	maxCommandTimeout     = 300
	defaultCommandTimeout = 120
	maxCommandOutput      = 15000
)

// Runner executes a command and returns its output. A non-zero exit is
// reported through exitCode, not err.
type Runner func(ctx context.Context, name string, args, env []string) (stdout, stderr []byte, exitCode int, err error)

func execRunner(ctx context.Context, name string, args, env []string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err := cmd.Run()
	if ctx.Err() != nil {
		return stdout.Bytes(), stderr.Bytes(), -1, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
	}
	return stdout.Bytes(), stderr.Bytes(), 0, err
}

type runCommandArgs struct {
	Command        string `json:"command" jsonschema:"AWS CLI command without the aws prefix, e.g. ec2 describe-instances"`
	Account        string `json:"account,omitempty" jsonschema:"AWS account: prod (default), nonprod or admin"`
	Region         string `json:"region,omitempty" jsonschema:"AWS region override"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"Command timeout in seconds, 10-300 (default 120)"`
}

func (p *Provider) runCommand(ctx context.Context, in runCommandArgs) string {
	if !p.sessions.Configured(ctx) {
		return notConfigured
	}
	info, err := p.sessions.Account(in.Account)
	if err != nil {
		return tools.Error(err)
	}
	args, err := shellwords.Parse(in.Command)
	if err != nil {
		return tools.Errorf("invalid command: %v", err)
	}
	if len(args) > 0 && args[0] == "aws" {
		args = args[1:]
	}
	if len(args) == 0 {
		return tools.Errorf("command is empty")
	}

	creds, err := p.sessions.Credentials(ctx, info.Alias)
	if err != nil {
		return awsError(err)
	}
	region := in.Region
	if region == "" {
		region = p.sessions.Region(ctx)
	}
	timeout := tools.Clamp(tools.Default(in.TimeoutSeconds, defaultCommandTimeout), minCommandTimeout, maxCommandTimeout)

	env := append(os.Environ(),
		"AWS_ACCESS_KEY_ID="+creds.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY="+creds.SecretAccessKey,
		"AWS_DEFAULT_REGION="+region,
	)
	if creds.SessionToken != "" {
		env = append(env, "AWS_SESSION_TOKEN="+creds.SessionToken)
	}
	args = append(args, "--output", "json", "--region", region)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()
	debug.Log("aws", "running cli", "account", info.Alias, "args", args)
	stdout, stderr, code, err := p.runner(runCtx, p.cliPath, args, env)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return tools.Errorf("Command timed out after %d seconds.", timeout)
	}
	if err != nil {
		return tools.Error(err)
	}

	out := strings.TrimSpace(string(stdout))
	if code != 0 {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = out
		}
		if msg == "" {
			msg = fmt.Sprintf("Command failed with exit code %d", code)
		}
		return fmt.Sprintf("**Error running AWS CLI** (%s):\n```\n%s\n```", info.Label(), msg)
	}
	if out == "" {
		return fmt.Sprintf("Command completed successfully in %s (no output).", info.Label())
	}

	var data any
	dec := json.NewDecoder(strings.NewReader(out))
	dec.UseNumber()
	if dec.Decode(&data) == nil {
		return fmt.Sprintf("**Account:** %s\n```json\n%s\n```", info.Label(), truncate(tools.JSON(data)))
	}
	return fmt.Sprintf("**Account:** %s\n```\n%s\n```", info.Label(), truncate(out))
}

// truncate caps s at maxCommandOutput characters.
func truncate(s string) string {
	return tools.Truncate(s, maxCommandOutput)
}
