// Package aws exposes multi-account AWS management as aws_* tools.
//
// The home account uses long-lived keys; the others are reached by assuming
// a role through STS. Every tool takes an account alias.
package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/crowdit/crowdmcp/pkg/tools"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	"github.com/crowdit/crowdmcp/pkg/vendors"
)

const (
	// DefaultRegion is used when neither config nor AWS_DEFAULT_REGION set one.
	DefaultRegion = "ap-southeast-2"

	// costRegion is the only Cost Explorer endpoint.
	costRegion = "us-east-1"

	notConfigured = "Error: AWS not configured. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY."
)

// DefaultAccounts is the built-in account map. IDs can be overridden by config.
func DefaultAccounts() []AccountInfo {
	return []AccountInfo{
		{Alias: "prod", Name: "optiq.prod", ID: "979437352159"},
		{Alias: "nonprod", Name: "optiq.nonprod", ID: "886331869150"},
		{Alias: "admin", Name: "optiq.admin", ID: "816069165718"},
	}
}

// Config configures the provider.
type Config struct {
	Region      string
	HomeAccount string
	// AccountIDs overrides the IDs of DefaultAccounts by alias.
	AccountIDs map[string]string
	// CLIPath is the aws binary used by aws_run_command.
	CLIPath string
}

// The SDK client surfaces the tools use.
type (
	EC2API interface {
		ec2.DescribeInstancesAPIClient
		StartInstances(ctx context.Context, in *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
		StopInstances(ctx context.Context, in *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
		RebootInstances(ctx context.Context, in *ec2.RebootInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RebootInstancesOutput, error)
		DescribeVpcs(ctx context.Context, in *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
		DescribeSubnets(ctx context.Context, in *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
		DescribeSecurityGroups(ctx context.Context, in *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	}
	RDSAPI interface {
		rds.DescribeDBInstancesAPIClient
	}
	S3API interface {
		ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	}
	LambdaAPI interface {
		lambda.ListFunctionsAPIClient
	}
	CostAPI interface {
		GetCostAndUsage(ctx context.Context, in *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
	}
)

// Clients builds SDK clients from a config.
type Clients struct {
	EC2    func(aws.Config) EC2API
	RDS    func(aws.Config) RDSAPI
	S3     func(aws.Config) S3API
	Lambda func(aws.Config) LambdaAPI
	Cost   func(aws.Config) CostAPI
}

// SDKClients returns the real SDK constructors.
func SDKClients() Clients {
	return Clients{
		EC2:    func(c aws.Config) EC2API { return ec2.NewFromConfig(c) },
		RDS:    func(c aws.Config) RDSAPI { return rds.NewFromConfig(c) },
		S3:     func(c aws.Config) S3API { return s3.NewFromConfig(c) },
		Lambda: func(c aws.Config) LambdaAPI { return lambda.NewFromConfig(c) },
		Cost:   func(c aws.Config) CostAPI { return costexplorer.NewFromConfig(c) },
	}
}

// Provider serves the aws_* tools.
type Provider struct {
	sessions *Sessions
	clients  Clients
	cliPath  string
	runner   Runner
}

// Option configures the provider.
type Option func(*Provider)

// WithClients replaces the SDK client constructors, for tests.
func WithClients(c Clients) Option {
	return func(p *Provider) { p.clients = c }
}

// WithRunner replaces the CLI runner, for tests.
func WithRunner(r Runner) Option {
	return func(p *Provider) { p.runner = r }
}

// WithSessionOptions passes options to the session manager.
func WithSessionOptions(opts ...SessionsOption) Option {
	return func(p *Provider) {
		for _, opt := range opts {
			opt(p.sessions)
		}
	}
}

// New creates the AWS provider.
func New(deps vendors.Deps, cfg Config, opts ...Option) *Provider {
	accounts := DefaultAccounts()
	for i, a := range accounts {
		if id, ok := cfg.AccountIDs[a.Alias]; ok && id != "" {
			accounts[i].ID = id
		}
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.HomeAccount == "" {
		cfg.HomeAccount = "prod"
	}
	if cfg.CLIPath == "" {
		cfg.CLIPath = "aws"
	}

	p := &Provider{
		sessions: NewSessions(deps.Secrets, cfg.Region, cfg.HomeAccount, accounts),
		clients:  SDKClients(),
		cliPath:  cfg.CLIPath,
		runner:   execRunner,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "aws" }

func (p *Provider) Configured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.sessions.Configured(ctx)
}

func (p *Provider) Routes() []registry.Route { return nil }

// Sessions exposes the session manager.
func (p *Provider) Sessions() *Sessions { return p.sessions }

// target is a resolved account and region for one call.
type target struct {
	info   AccountInfo
	region string
	cfg    aws.Config
}

func (t target) label() string { return t.info.Label() }

// with resolves account and region and runs fn. Nothing is resolved when
// the home keys are missing.
func (p *Provider) with(ctx context.Context, account, region string, fn func(target) (string, error)) string {
	if !p.sessions.Configured(ctx) {
		return notConfigured
	}
	info, err := p.sessions.Account(account)
	if err != nil {
		return tools.Error(err)
	}
	if region == "" {
		region = p.sessions.Region(ctx)
	}
	cfg, err := p.sessions.Config(ctx, info.Alias, region)
	if err != nil {
		return awsError(err)
	}
	out, err := fn(target{info: info, region: region, cfg: cfg})
	if err != nil {
		return awsError(err)
	}
	return out
}

// awsError renders SDK API errors as "AWS API error (Code): Message".
func awsError(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("Error: AWS API error (%s): %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return tools.Error(err)
}
