// Command server runs the crowdmcp MCP server.
//
// Configuration is read from a YAML file and environment variables; see
// package config. The most common settings:
//
//	PORT / CROWDMCP_PORT     - listen port (default: 8080)
//	CROWDMCP_CONFIG          - config file path
//	CROWDMCP_SECRETS_STORE   - none, memory, gcp, postgres or kubernetes
//	MCP_API_KEY              - gateway key; the endpoint is open when unset
//
// Vendor credentials are read lazily from the environment or the secret
// store when a tool is first called.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/crowdit/crowdmcp/pkg/auth"
	"github.com/crowdit/crowdmcp/pkg/auth/apikey"
	"github.com/crowdit/crowdmcp/pkg/auth/noop"
	"github.com/crowdit/crowdmcp/pkg/auth/oauthstate"
	"github.com/crowdit/crowdmcp/pkg/config"
	"github.com/crowdit/crowdmcp/pkg/debug"
	"github.com/crowdit/crowdmcp/pkg/secrets"
	"github.com/crowdit/crowdmcp/pkg/secrets/gcp"
	"github.com/crowdit/crowdmcp/pkg/secrets/kubernetes"
	"github.com/crowdit/crowdmcp/pkg/secrets/memory"
	"github.com/crowdit/crowdmcp/pkg/secrets/postgres"
	toolsmcp "github.com/crowdit/crowdmcp/pkg/tools/mcp"
	"github.com/crowdit/crowdmcp/pkg/tools/registry"
	transporthttp "github.com/crowdit/crowdmcp/pkg/transport/http"
	"github.com/crowdit/crowdmcp/pkg/vendors"
	"github.com/crowdit/crowdmcp/pkg/vendors/aws"
	"github.com/crowdit/crowdmcp/pkg/vendors/calendar"
	"github.com/crowdit/crowdmcp/pkg/vendors/digitalocean"
	"github.com/crowdit/crowdmcp/pkg/vendors/email"
	"github.com/crowdit/crowdmcp/pkg/vendors/front"
	"github.com/crowdit/crowdmcp/pkg/vendors/graph"
	"github.com/crowdit/crowdmcp/pkg/vendors/halopsa"
	"github.com/crowdit/crowdmcp/pkg/vendors/linear"
	"github.com/crowdit/crowdmcp/pkg/vendors/m365"
	"github.com/crowdit/crowdmcp/pkg/vendors/pax8"
	"github.com/crowdit/crowdmcp/pkg/vendors/quoter"
	"github.com/crowdit/crowdmcp/pkg/vendors/xero"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	debug.Init(debug.Options{
		Categories: cfg.Debug.Categories,
		Level:      cfg.Debug.Level,
		Format:     cfg.Debug.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Secrets)
	if err != nil {
		return fmt.Errorf("opening secret store: %w", err)
	}
	if c, ok := store.(secrets.Closer); ok {
		defer c.Close()
	}

	resolver := secrets.NewResolver(store,
		secrets.WithLookupTimeout(cfg.Secrets.LookupTimeout),
		secrets.WithPersistTimeout(cfg.Secrets.PersistTimeout),
	)

	srv, reg, err := build(cfg, resolver)
	if err != nil {
		return err
	}
	defer reg.Close()

	slog.Info("server starting",
		"addr", ":"+strconv.Itoa(cfg.Server.Port),
		"version", version,
		"secret_store", cfg.Secrets.Store,
		"public_url", cfg.Server.PublicURL,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}

// build wires providers, the MCP endpoint and the access gate into an
// HTTP server.
func build(cfg *config.Config, resolver *secrets.Resolver) (*transporthttp.Server, *registry.Registry, error) {
	states, err := oauthstate.New(cfg.Auth.StateSecret, oauthstate.DefaultTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("creating state signer: %w", err)
	}

	reg := registry.New()
	registerProviders(reg, cfg, resolver, states)
	slog.Info("tools registered", "count", len(reg.Tools()), "routes", reg.Routes())

	bypass := cfg.Auth.BypassPaths
	if cfg.Observability.Metrics.Enabled {
		bypass = append(slices.Clone(bypass), cfg.Observability.Metrics.Path)
	}
	gate := auth.Middleware(&auth.AuthChain{
		Authenticators: []auth.Authenticator{
			apikey.New(cfg.Auth.APIKey, resolver, cfg.Auth.APIKeySecret),
			&noop.Authenticator{},
		},
		DefaultDecision: auth.No,
	}, limiter(cfg.Auth.RateLimit), bypass)

	serverCfg := transporthttp.DefaultServerConfig()
	serverCfg.Addr = ":" + strconv.Itoa(cfg.Server.Port)
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	serverCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	serverCfg.Version = version
	serverCfg.MetricsPath = ""
	if cfg.Observability.Metrics.Enabled {
		serverCfg.MetricsPath = cfg.Observability.Metrics.Path
	}

	srv := transporthttp.NewServer(reg,
		toolsmcp.Handler(toolsmcp.NewServer(reg, version)),
		transporthttp.WithConfig(serverCfg),
		transporthttp.WithGate(gate),
		transporthttp.WithLogger(slog.Default()),
	)
	return srv, reg, nil
}

// openStore builds the configured secret backend. "none" returns a nil
// store and the resolver reads the environment only.
func openStore(ctx context.Context, cfg config.SecretsConfig) (secrets.Store, error) {
	switch cfg.Store {
	case "gcp":
		return gcp.New(ctx, gcp.Config{Project: cfg.GCP.Project, CredentialsFile: cfg.GCP.CredentialsFile})
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
	case "kubernetes":
		return kubernetes.New(kubernetes.Config{
			Namespace:  cfg.Kubernetes.Namespace,
			SecretName: cfg.Kubernetes.SecretName,
			Kubeconfig: cfg.Kubernetes.Kubeconfig,
		})
	case "memory":
		slog.Warn("using in-memory secret store, rotated tokens are lost on restart")
		return memory.New(nil), nil
	default:
		return nil, nil
	}
}

func limiter(cfg config.RateLimitConfig) auth.RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	return auth.NewInProcessLimiter(cfg.RequestsPerMinute)
}

func registerProviders(reg *registry.Registry, cfg *config.Config, src secrets.Source, states *oauthstate.Signer) {
	deps := func(vendor string) vendors.Deps {
		return vendors.Deps{
			Secrets: src,
			BaseURL: cfg.Vendors.BaseURLs[vendor],
			Timeout: cfg.Vendors.HTTPTimeout,
		}
	}

	reg.Register(aws.New(deps("aws"), aws.Config{
		Region:      cfg.AWS.Region,
		HomeAccount: cfg.AWS.HomeAccount,
		AccountIDs:  cfg.AWS.AccountIDs,
		CLIPath:     cfg.AWS.CLIPath,
	}))

	accounts := make([]digitalocean.Account, 0, len(cfg.DigitalOcean.Accounts))
	for _, a := range cfg.DigitalOcean.Accounts {
		accounts = append(accounts, digitalocean.Account{
			Name:        a.Name,
			Prefix:      a.Prefix,
			Label:       a.Label,
			TokenSecret: a.TokenSecret,
		})
	}
	reg.Register(digitalocean.New(deps("digitalocean"), accounts))

	mailbox := graph.NewMailbox(deps("graph"))
	reg.Register(email.New(mailbox))
	reg.Register(calendar.New(mailbox, calendar.Config{}))
	reg.Register(m365.New(deps("m365"), m365.Config{PublicURL: cfg.Server.PublicURL, States: states}))

	reg.Register(linear.New(deps("linear")))
	reg.Register(halopsa.New(deps("halopsa")))
	reg.Register(xero.New(deps("xero")))
	reg.Register(front.New(deps("front")))
	reg.Register(quoter.New(deps("quoter")))
	reg.Register(pax8.New(deps("pax8")))
}
