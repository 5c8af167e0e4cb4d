// Package config provides unified configuration for the crowdmcp server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix fields)
//  5. Validation
//
// Vendor credentials are deliberately absent: they are resolved lazily at
// call time through the secret resolver so that a missing credential only
// disables the affected tools.
package config

import "time"

// Config holds all configuration for the crowdmcp server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Secrets       SecretsConfig       `yaml:"secrets"`
	Observability ObservabilityConfig `yaml:"observability"`
	Debug         DebugConfig         `yaml:"debug"`
	DigitalOcean  DigitalOceanConfig  `yaml:"digitalocean"`
	AWS           AWSConfig           `yaml:"aws"`
	Vendors       VendorsConfig       `yaml:"vendors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 0 (streamable MCP responses)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
	// PublicURL is the externally reachable base URL, used for OAuth redirects.
	PublicURL string `yaml:"public_url"`
}

// AuthConfig holds access-gate settings.
type AuthConfig struct {
	// APIKey is an optional literal key. When empty the key is loaded lazily
	// from the environment or the secret store under APIKeySecret.
	APIKey       string   `yaml:"api_key"`
	APIKeyFile   string   `yaml:"api_key_file"`
	APIKeySecret string   `yaml:"api_key_secret"` // default: MCP_API_KEY
	BypassPaths  []string `yaml:"bypass_paths"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// StateSecret signs OAuth state values. Random per process when empty.
	StateSecret     string `yaml:"state_secret"`
	StateSecretFile string `yaml:"state_secret_file"`
}

// RateLimitConfig configures the in-process limiter. Zero disables it.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// SecretsConfig selects and configures the external secret store.
type SecretsConfig struct {
	Store          string           `yaml:"store"`           // gcp, postgres, kubernetes, memory, none
	LookupTimeout  time.Duration    `yaml:"lookup_timeout"`  // default: 5s
	PersistTimeout time.Duration    `yaml:"persist_timeout"` // default: 10s
	GCP            GCPConfig        `yaml:"gcp"`
	Postgres       PostgresConfig   `yaml:"postgres"`
	Kubernetes     KubernetesConfig `yaml:"kubernetes"`
}

// GCPConfig holds Google Secret Manager settings.
type GCPConfig struct {
	Project         string `yaml:"project"`
	CredentialsFile string `yaml:"credentials_file"`
}

// PostgresConfig holds settings for the PostgreSQL secret store.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`
	MaxConns       int32  `yaml:"max_conns"` // default: 5
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// KubernetesConfig points at the Secret object backing the store.
type KubernetesConfig struct {
	Namespace  string `yaml:"namespace"`   // default: "default"
	SecretName string `yaml:"secret_name"` // default: "crowdmcp-secrets"
	Kubeconfig string `yaml:"kubeconfig"`  // empty: in-cluster or $KUBECONFIG
}

// ObservabilityConfig holds monitoring settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// DebugConfig holds logging settings.
type DebugConfig struct {
	Categories string `yaml:"categories"`
	Level      string `yaml:"level"`  // default: INFO
	Format     string `yaml:"format"` // text or json, default: text
}

// DigitalOceanConfig lists DigitalOcean accounts. With no accounts a single
// default account reading DIGITALOCEAN_TOKEN is used.
type DigitalOceanConfig struct {
	Accounts []DigitalOceanAccount `yaml:"accounts"`
}

// DigitalOceanAccount describes one DigitalOcean team.
type DigitalOceanAccount struct {
	Name        string `yaml:"name" json:"name"`
	Prefix      string `yaml:"prefix" json:"prefix"`             // tool name prefix, e.g. crowdit_do
	Label       string `yaml:"label" json:"label"`               // human label for titles
	TokenSecret string `yaml:"token_secret" json:"token_secret"` // secret name holding the token
}

// AWSConfig holds AWS settings.
type AWSConfig struct {
	Region      string            `yaml:"region"`       // default: ap-southeast-2
	HomeAccount string            `yaml:"home_account"` // default: prod
	AccountIDs  map[string]string `yaml:"account_ids"`
	CLIPath     string            `yaml:"cli_path"` // default: aws
}

// VendorsConfig holds cross-vendor HTTP settings.
type VendorsConfig struct {
	HTTPTimeout time.Duration `yaml:"http_timeout"` // default: 30s
	// BaseURLs overrides vendor API roots by vendor name (e.g. "halopsa").
	BaseURLs map[string]string `yaml:"base_urls"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			APIKeySecret: "MCP_API_KEY",
			BypassPaths:  []string{"/health", "/status", "/callback", "/sharepoint-callback", "/"},
		},
		Secrets: SecretsConfig{
			Store:          "none",
			LookupTimeout:  5 * time.Second,
			PersistTimeout: 10 * time.Second,
			Postgres: PostgresConfig{
				MaxConns: 5,
			},
			Kubernetes: KubernetesConfig{
				Namespace:  "default",
				SecretName: "crowdmcp-secrets",
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Debug: DebugConfig{
			Level:  "INFO",
			Format: "text",
		},
		AWS: AWSConfig{
			Region:      "ap-southeast-2",
			HomeAccount: "prod",
			AccountIDs: map[string]string{
				"prod":    "979437352159",
				"nonprod": "886331869150",
				"admin":   "816069165718",
			},
			CLIPath: "aws",
		},
		Vendors: VendorsConfig{
			HTTPTimeout: 30 * time.Second,
		},
	}
}
