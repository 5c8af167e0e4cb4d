package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, CROWDMCP_CONFIG env, ./config.yaml, /etc/crowdmcp/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile returns the first config file found, or "".
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("CROWDMCP_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/crowdmcp/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile parses a YAML file over cfg. Absent keys keep their defaults.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables onto config fields. Cloud Run
// conventions (PORT, CLOUD_RUN_URL, GOOGLE_CLOUD_PROJECT) are honoured.
func applyEnvOverrides(cfg *Config) error {
	for _, key := range []string{"PORT", "CROWDMCP_PORT"} {
		if v := os.Getenv(key); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CLOUD_RUN_URL"); v != "" {
		cfg.Server.PublicURL = v
	}
	if v := os.Getenv("CROWDMCP_SECRET_STORE"); v != "" {
		cfg.Secrets.Store = v
	}
	if cfg.Secrets.GCP.Project == "" {
		cfg.Secrets.GCP.Project = firstEnv("GCP_PROJECT_ID", "GOOGLE_CLOUD_PROJECT")
	}
	if v := os.Getenv("CROWDMCP_DATABASE_URL"); v != "" {
		cfg.Secrets.Postgres.DSN = v
	}
	if v := os.Getenv("CROWDMCP_KUBE_SECRET"); v != "" {
		cfg.Secrets.Kubernetes.SecretName = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("OAUTH_STATE_SECRET"); v != "" {
		cfg.Auth.StateSecret = v
	}
	if v := os.Getenv("CROWDMCP_RATE_LIMIT_RPM"); v != "" {
		rpm, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CROWDMCP_RATE_LIMIT_RPM: %w", err)
		}
		cfg.Auth.RateLimit.RequestsPerMinute = rpm
	}

	// CROWDMCP_DO_ACCOUNTS: JSON array of DigitalOcean account configs.
	if v := os.Getenv("CROWDMCP_DO_ACCOUNTS"); v != "" {
		accounts, err := parseDOAccountsJSON(v)
		if err != nil {
			return err
		}
		cfg.DigitalOcean.Accounts = accounts
	}
	return nil
}

func parseDOAccountsJSON(jsonStr string) ([]DigitalOceanAccount, error) {
	var accounts []DigitalOceanAccount
	if err := json.Unmarshal([]byte(jsonStr), &accounts); err != nil {
		return nil, fmt.Errorf("parsing CROWDMCP_DO_ACCOUNTS: %w", err)
	}
	return accounts, nil
}

// resolveFileReferences reads _file fields into their value fields when the
// value field is empty.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		path  string
		file  string
		value *string
	}{
		{"auth.api_key_file", cfg.Auth.APIKeyFile, &cfg.Auth.APIKey},
		{"auth.state_secret_file", cfg.Auth.StateSecretFile, &cfg.Auth.StateSecret},
		{"secrets.postgres.dsn_file", cfg.Secrets.Postgres.DSNFile, &cfg.Secrets.Postgres.DSN},
	}
	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.path, err)
		}
		*ref.value = val
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
