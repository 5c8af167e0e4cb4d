package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration and reports every problem with its
// field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}

	switch c.Secrets.Store {
	case "none", "memory", "gcp":
	case "postgres":
		if c.Secrets.Postgres.DSN == "" {
			errs = append(errs, errors.New("secrets.postgres.dsn or secrets.postgres.dsn_file is required when secrets.store is \"postgres\""))
		}
	case "kubernetes":
		if c.Secrets.Kubernetes.SecretName == "" {
			errs = append(errs, errors.New("secrets.kubernetes.secret_name is required when secrets.store is \"kubernetes\""))
		}
	default:
		errs = append(errs, fmt.Errorf("secrets.store must be one of none, memory, gcp, postgres, kubernetes; got %q", c.Secrets.Store))
	}

	if c.Secrets.LookupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("secrets.lookup_timeout must be > 0, got %s", c.Secrets.LookupTimeout))
	}

	if c.Auth.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.requests_per_minute must be >= 0, got %d", c.Auth.RateLimit.RequestsPerMinute))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	switch strings.ToLower(c.Debug.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("debug.format must be \"text\" or \"json\", got %q", c.Debug.Format))
	}

	if _, ok := c.AWS.AccountIDs[c.AWS.HomeAccount]; !ok {
		errs = append(errs, fmt.Errorf("aws.home_account %q is not listed in aws.account_ids", c.AWS.HomeAccount))
	}

	seenPrefix := make(map[string]bool)
	seenName := make(map[string]bool)
	for i, acct := range c.DigitalOcean.Accounts {
		if acct.Name == "" {
			errs = append(errs, fmt.Errorf("digitalocean.accounts[%d].name is required", i))
		} else if seenName[acct.Name] {
			errs = append(errs, fmt.Errorf("digitalocean.accounts[%d].name %q is duplicated", i, acct.Name))
		}
		seenName[acct.Name] = true

		if acct.Prefix == "" {
			errs = append(errs, fmt.Errorf("digitalocean.accounts[%d].prefix is required", i))
		} else if strings.HasSuffix(acct.Prefix, "_") {
			errs = append(errs, fmt.Errorf("digitalocean.accounts[%d].prefix %q must not end with \"_\"", i, acct.Prefix))
		} else if seenPrefix[acct.Prefix] {
			errs = append(errs, fmt.Errorf("digitalocean.accounts[%d].prefix %q is duplicated", i, acct.Prefix))
		}
		seenPrefix[acct.Prefix] = true

		if acct.TokenSecret == "" {
			errs = append(errs, fmt.Errorf("digitalocean.accounts[%d].token_secret is required", i))
		}
	}

	return errors.Join(errs...)
}
