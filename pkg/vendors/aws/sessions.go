package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/crowdit/crowdmcp/pkg/secrets"
)

const (
	refreshMargin   = 5 * time.Minute
	sessionDuration = int32(3600)
	sessionPrefix   = "crowdit-mcp-"
)

var (
	// ErrUnknownAccount is returned for an alias outside the account map.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrNoRoleARN is returned when a non-home account has no role to assume.
	ErrNoRoleARN = errors.New("no role ARN configured")
)

// AccountError carries the account alias of a session failure.
type AccountError struct {
	Err     error
	Account string
	Known   []string
}

func (e *AccountError) Error() string {
	switch e.Err {
	case ErrUnknownAccount:
		return fmt.Sprintf("Unknown account '%s'. Use: %s", e.Account, strings.Join(e.Known, ", "))
	case ErrNoRoleARN:
		return fmt.Sprintf("No role ARN configured for account '%s'. Set %s environment variable.", e.Account, roleSecret(e.Account))
	}
	return e.Err.Error()
}

func (e *AccountError) Unwrap() error { return e.Err }

func roleSecret(account string) string {
	return "AWS_ROLE_ARN_" + strings.ToUpper(account)
}

// AccountInfo names one AWS account.
type AccountInfo struct {
	Alias string
	Name  string
	ID    string
}

// Label renders "optiq.prod (979437352159)".
func (a AccountInfo) Label() string {
	id := a.ID
	if id == "" {
		id = "?"
	}
	return fmt.Sprintf("%s (%s)", a.Name, id)
}

// STSClient is the part of the STS API the session manager uses.
type STSClient interface {
	AssumeRole(ctx context.Context, in *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type cachedCreds struct {
	creds  aws.Credentials
	expiry time.Time
}

// Sessions hands out credentials per account. The home account uses the
// static keys; the others assume AWS_ROLE_ARN_<ACCOUNT> through STS and are
// cached until five minutes before expiry.
type Sessions struct {
	secrets  secrets.Source
	region   string
	home     string
	accounts []AccountInfo

	newSTS func(aws.Config) STSClient
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedCreds
}

// SessionsOption configures Sessions.
type SessionsOption func(*Sessions)

// WithSTS replaces the STS client constructor, for tests.
func WithSTS(fn func(aws.Config) STSClient) SessionsOption {
	return func(s *Sessions) { s.newSTS = fn }
}

// WithClock replaces the clock used for expiry checks.
func WithClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) { s.now = now }
}

// NewSessions creates a session manager over accounts.
func NewSessions(src secrets.Source, region, home string, accounts []AccountInfo, opts ...SessionsOption) *Sessions {
	s := &Sessions{
		secrets:  src,
		region:   region,
		home:     home,
		accounts: accounts,
		newSTS:   func(cfg aws.Config) STSClient { return sts.NewFromConfig(cfg) },
		now:      time.Now,
		cache:    map[string]cachedCreds{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Region returns AWS_DEFAULT_REGION when set, else the configured region.
func (s *Sessions) Region(ctx context.Context) string {
	if r, ok := s.secrets.Lookup(ctx, "AWS_DEFAULT_REGION"); ok {
		return r
	}
	return s.region
}

// Configured reports whether the home account keys are present.
func (s *Sessions) Configured(ctx context.Context) bool {
	_, ok := s.homeCreds(ctx)
	return ok
}

// Account normalizes alias and returns its info. Empty means home.
func (s *Sessions) Account(alias string) (AccountInfo, error) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if alias == "" {
		alias = s.home
	}
	known := make([]string, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.Alias == alias {
			return a, nil
		}
		known = append(known, a.Alias)
	}
	return AccountInfo{}, &AccountError{Err: ErrUnknownAccount, Account: alias, Known: known}
}

func (s *Sessions) homeCreds(ctx context.Context) (aws.Credentials, bool) {
	id, _ := s.secrets.Lookup(ctx, "AWS_ACCESS_KEY_ID")
	secret, _ := s.secrets.Lookup(ctx, "AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.Credentials{}, false
	}
	return aws.Credentials{AccessKeyID: id, SecretAccessKey: secret, Source: "crowdmcp"}, true
}

// Credentials returns credentials for alias.
func (s *Sessions) Credentials(ctx context.Context, alias string) (aws.Credentials, error) {
	acct, err := s.Account(alias)
	if err != nil {
		return aws.Credentials{}, err
	}
	home, ok := s.homeCreds(ctx)
	if !ok {
		return aws.Credentials{}, errors.New("AWS credentials not configured. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.")
	}
	if acct.Alias == s.home {
		return home, nil
	}

	s.mu.Lock()
	cached, hit := s.cache[acct.Alias]
	s.mu.Unlock()
	if hit && s.now().Before(cached.expiry.Add(-refreshMargin)) {
		return cached.creds, nil
	}

	roleARN, _ := s.secrets.Lookup(ctx, roleSecret(acct.Alias))
	if roleARN == "" {
		return aws.Credentials{}, &AccountError{Err: ErrNoRoleARN, Account: acct.Alias}
	}

	cfg := aws.Config{
		Region:      s.Region(ctx),
		Credentials: credentials.NewStaticCredentialsProvider(home.AccessKeyID, home.SecretAccessKey, ""),
	}
	out, err := s.newSTS(cfg).AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionPrefix + acct.Alias),
		DurationSeconds: aws.Int32(sessionDuration),
	})
	if err != nil {
		return aws.Credentials{}, err
	}
	if out.Credentials == nil {
		return aws.Credentials{}, fmt.Errorf("assuming role for %s returned no credentials", acct.Alias)
	}

	creds := aws.Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Source:          "crowdmcp-assume-role",
		CanExpire:       true,
		Expires:         aws.ToTime(out.Credentials.Expiration),
	}
	s.mu.Lock()
	s.cache[acct.Alias] = cachedCreds{creds: creds, expiry: creds.Expires}
	s.mu.Unlock()
	slog.Debug("assumed AWS role", "account", acct.Alias, "expires", creds.Expires)
	return creds, nil
}

// Config returns an SDK config for alias in region. An empty region uses
// Region.
func (s *Sessions) Config(ctx context.Context, alias, region string) (aws.Config, error) {
	creds, err := s.Credentials(ctx, alias)
	if err != nil {
		return aws.Config{}, err
	}
	if region == "" {
		region = s.Region(ctx)
	}
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)),
	)
}

// CallerIdentity asks STS which principal alias resolves to.
func (s *Sessions) CallerIdentity(ctx context.Context, alias string) (*sts.GetCallerIdentityOutput, error) {
	cfg, err := s.Config(ctx, alias, "")
	if err != nil {
		return nil, err
	}
	return s.newSTS(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
}
