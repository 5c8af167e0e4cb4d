package aws

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"

	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/vendors/vendortest"
)

var homeKeys = map[string]string{
	"AWS_ACCESS_KEY_ID":     "AKIAHOME",
	"AWS_SECRET_ACCESS_KEY": "secret",
}

type fakeSTS struct {
	assumeCalls atomic.Int32
	expiry      time.Time
	lastInput   *sts.AssumeRoleInput
}

func (f *fakeSTS) AssumeRole(_ context.Context, in *sts.AssumeRoleInput, _ ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	n := f.assumeCalls.Add(1)
	f.lastInput = in
	return &sts.AssumeRoleOutput{Credentials: &ststypes.Credentials{
		AccessKeyId:     aws.String("ASIATEMP" + string(rune('0'+n))),
		SecretAccessKey: aws.String("temp-secret"),
		SessionToken:    aws.String("token"),
		Expiration:      aws.Time(f.expiry),
	}}, nil
}

func (f *fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{Account: aws.String("979437352159"), Arn: aws.String("arn:aws:iam::979437352159:user/mcp"), UserId: aws.String("AID")}, nil
}

func newSessions(values map[string]string, fake *fakeSTS, now func() time.Time) *Sessions {
	return NewSessions(vendortest.Secrets(values), DefaultRegion, "prod", DefaultAccounts(),
		WithSTS(func(aws.Config) STSClient { return fake }), WithClock(now))
}

func merge(a, b map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func TestHomeAccountUsesStaticKeys(t *testing.T) {
	fake := &fakeSTS{}
	s := newSessions(homeKeys, fake, time.Now)

	creds, err := s.Credentials(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if creds.AccessKeyID != "AKIAHOME" {
		t.Errorf("AccessKeyID = %q", creds.AccessKeyID)
	}
	if fake.assumeCalls.Load() != 0 {
		t.Errorf("AssumeRole calls = %d, want 0", fake.assumeCalls.Load())
	}
}

func TestMissingRoleARNFailsBeforeSTS(t *testing.T) {
	fake := &fakeSTS{}
	s := newSessions(homeKeys, fake, time.Now)

	_, err := s.Credentials(context.Background(), "nonprod")
	if !errors.Is(err, ErrNoRoleARN) {
		t.Fatalf("err = %v, want ErrNoRoleARN", err)
	}
	want := "No role ARN configured for account 'nonprod'. Set AWS_ROLE_ARN_NONPROD environment variable."
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
	if fake.assumeCalls.Load() != 0 {
		t.Errorf("AssumeRole calls = %d, want 0", fake.assumeCalls.Load())
	}
}

func TestUnknownAccount(t *testing.T) {
	s := newSessions(homeKeys, &fakeSTS{}, time.Now)

	_, err := s.Credentials(context.Background(), "staging")
	if !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("err = %v, want ErrUnknownAccount", err)
	}
	if want := "Unknown account 'staging'. Use: prod, nonprod, admin"; err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestAssumedRoleCachedUntilMargin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeSTS{expiry: now.Add(time.Hour)}
	s := newSessions(merge(homeKeys, map[string]string{"AWS_ROLE_ARN_ADMIN": "arn:aws:iam::816069165718:role/mcp"}),
		fake, func() time.Time { return now })

	first, err := s.Credentials(context.Background(), "ADMIN ")
	if err != nil {
		t.Fatal(err)
	}
	if got := aws.ToString(fake.lastInput.RoleSessionName); got != "crowdit-mcp-admin" {
		t.Errorf("RoleSessionName = %q", got)
	}
	if got := aws.ToInt32(fake.lastInput.DurationSeconds); got != 3600 {
		t.Errorf("DurationSeconds = %d", got)
	}

	now = now.Add(50 * time.Minute)
	second, _ := s.Credentials(context.Background(), "admin")
	if second.AccessKeyID != first.AccessKeyID || fake.assumeCalls.Load() != 1 {
		t.Errorf("expected cached credentials, calls = %d", fake.assumeCalls.Load())
	}

	// Inside the five-minute margin the role is assumed again.
	now = now.Add(6 * time.Minute)
	fake.expiry = now.Add(time.Hour)
	third, _ := s.Credentials(context.Background(), "admin")
	if fake.assumeCalls.Load() != 2 || third.AccessKeyID == first.AccessKeyID {
		t.Errorf("expected refresh, calls = %d", fake.assumeCalls.Load())
	}
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

func TestNotConfigured(t *testing.T) {
	fake := &fakeSTS{}
	p := New(vendortest.Deps(nil, nil), Config{}, WithSessionOptions(WithSTS(func(aws.Config) STSClient { return fake })))

	for _, name := range []string{"aws_list_ec2_instances", "aws_run_command", "aws_get_caller_identity"} {
		got := findTool(t, p, name).Call(context.Background(), map[string]any{"command": "s3 ls"})
		if got != "Error: AWS not configured. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY." {
			t.Errorf("%s = %q", name, got)
		}
	}
	if p.Configured() {
		t.Error("Configured() = true without keys")
	}
}

func TestNonprodWithoutRoleMakesNoSTSCall(t *testing.T) {
	fake := &fakeSTS{}
	p := New(vendortest.Deps(nil, homeKeys), Config{},
		WithSessionOptions(WithSTS(func(aws.Config) STSClient { return fake })))

	got := findTool(t, p, "aws_list_s3_buckets").Call(context.Background(), map[string]any{"account": "nonprod"})
	if !strings.HasPrefix(got, "Error: No role ARN configured for account 'nonprod'") {
		t.Errorf("result = %q", got)
	}
	if fake.assumeCalls.Load() != 0 {
		t.Errorf("AssumeRole calls = %d, want 0", fake.assumeCalls.Load())
	}
}

type fakeEC2 struct {
	EC2API
	filters []ec2types.Filter
	started []string
}

func (f *fakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.filters = in.Filters
	return &ec2.DescribeInstancesOutput{Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{{
		InstanceId:       aws.String("i-0abc"),
		InstanceType:     ec2types.InstanceTypeT3Micro,
		State:            &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		PrivateIpAddress: aws.String("10.0.0.5"),
		Placement:        &ec2types.Placement{AvailabilityZone: aws.String("ap-southeast-2a")},
		Tags:             []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String("web|1")}},
	}}}}}, nil
}

func (f *fakeEC2) StartInstances(_ context.Context, in *ec2.StartInstancesInput, _ ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
	f.started = in.InstanceIds
	return &ec2.StartInstancesOutput{}, nil
}

func ec2Provider(fake *fakeEC2) *Provider {
	clients := SDKClients()
	clients.EC2 = func(aws.Config) EC2API { return fake }
	return New(vendortest.Deps(nil, homeKeys), Config{}, WithClients(clients))
}

func TestListEC2Instances(t *testing.T) {
	fake := &fakeEC2{}
	p := ec2Provider(fake)

	got := findTool(t, p, "aws_list_ec2_instances").Call(context.Background(), map[string]any{"state_filter": "running"})
	for _, want := range []string{
		"# EC2 Instances — optiq.prod (979437352159)",
		"**Region:** ap-southeast-2",
		`| web\|1 | i-0abc | t3.micro | running | 10.0.0.5 | - | ap-southeast-2a |`,
		"**Total:** 1 instance(s)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("result missing %q:\n%s", want, got)
		}
	}
	if len(fake.filters) != 1 || aws.ToString(fake.filters[0].Name) != "instance-state-name" {
		t.Errorf("filters = %+v", fake.filters)
	}
}

func TestEC2Action(t *testing.T) {
	fake := &fakeEC2{}
	p := ec2Provider(fake)
	tool := findTool(t, p, "aws_ec2_action")

	got := tool.Call(context.Background(), map[string]any{"instance_ids": "i-1, i-2", "action": "Start"})
	if !strings.HasPrefix(got, "Starting 2 instance(s) in optiq.prod (979437352159): i-1, i-2") {
		t.Errorf("result = %q", got)
	}
	if len(fake.started) != 2 {
		t.Errorf("started = %v", fake.started)
	}

	got = tool.Call(context.Background(), map[string]any{"instance_ids": "i-1", "action": "terminate"})
	if got != "Error: Invalid action 'terminate'. Use: start, stop, reboot" {
		t.Errorf("result = %q", got)
	}
}

func TestCallerIdentity(t *testing.T) {
	fake := &fakeSTS{}
	p := New(vendortest.Deps(nil, homeKeys), Config{},
		WithSessionOptions(WithSTS(func(aws.Config) STSClient { return fake })))

	got := findTool(t, p, "aws_get_caller_identity").Call(context.Background(), nil)
	if !strings.Contains(got, "**Account:** 979437352159") || !strings.Contains(got, "**Region:** ap-southeast-2") {
		t.Errorf("result = %q", got)
	}
}
