package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/prometheus/common/promslog"

	"github.com/toolbridge/sdk-mcp/pkg/auth"
	"github.com/toolbridge/sdk-mcp/pkg/cache"
	"github.com/toolbridge/sdk-mcp/pkg/catalog"
	"github.com/toolbridge/sdk-mcp/pkg/config"
	"github.com/toolbridge/sdk-mcp/pkg/enrich"
	"github.com/toolbridge/sdk-mcp/pkg/executor"
	"github.com/toolbridge/sdk-mcp/pkg/mcp"
	"github.com/toolbridge/sdk-mcp/pkg/metrics"
	"github.com/toolbridge/sdk-mcp/pkg/pagination"
	"github.com/toolbridge/sdk-mcp/pkg/policy"
	"github.com/toolbridge/sdk-mcp/pkg/ratelimit"
	"github.com/toolbridge/sdk-mcp/pkg/schema"
	"github.com/toolbridge/sdk-mcp/pkg/sdk"
)

func main() {
	var configPath = flag.String("config", "", "Path to the TOML configuration file")
	var listen = flag.String("listen", "", "Listen address for HTTP mode (e.g., :9100, 127.0.0.1:8080)")
	var logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	var allowDangerous = flag.Bool("allow-dangerous", false, "Expose mutating and destructive tools")
	var dryRun = flag.Bool("dry-run", false, "Expose dangerous tools in validate-only mode")
	flag.Parse()

	configureLogging(*logLevel)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = loaded
	}
	if *allowDangerous {
		cfg.Policy.AllowDangerous = true
	}
	if *dryRun {
		cfg.Policy.DryRun = true
	}

	ctx := context.Background()
	resolver := auth.NewResolver()

	registry, err := sdk.FromConfig(ctx, cfg, resolver)
	if err != nil {
		log.Fatalf("Failed to build SDK clients: %v", err)
	}
	if len(registry.Handles()) == 0 {
		log.Fatal("No SDKs configured; set sdks in the configuration file")
	}

	cat := catalog.New()
	for _, handle := range registry.Handles() {
		if err := catalog.Build(cat, handle.Family, handle.Client); err != nil {
			log.Fatalf("Failed to catalog %s: %v", handle.Family, err)
		}
	}
	for _, diag := range cat.Diagnostics() {
		slog.Debug("skipped during discovery", "target", diag.Target, "reason", diag.Reason)
	}
	slog.Info("catalog built", "tools", cat.Len(), "families", cat.Families())

	var genOpts []schema.GeneratorOption
	if cfg.Enrichment.Enabled {
		enricher, err := enrich.New(enrich.Config{
			APIKey:  os.Getenv(cfg.Enrichment.APIKeyEnv),
			BaseURL: cfg.Enrichment.BaseURL,
			Model:   cfg.Enrichment.Model,
		})
		if err != nil {
			log.Fatalf("Failed to configure enrichment: %v", err)
		}
		genOpts = append(genOpts,
			schema.WithEnricher(enricher),
			schema.WithEnrichTimeout(cfg.Enrichment.Timeout.Std()))
	}
	schemas := schema.NewGenerator(genOpts...).Generate(ctx, cat)

	gate, err := policy.NewGate(policy.Config{
		AllowPatterns:  cfg.Policy.Allow,
		DenyPatterns:   cfg.Policy.Deny,
		AllowDangerous: cfg.Policy.AllowDangerous,
		DryRun:         cfg.Policy.DryRun,
	})
	if err != nil {
		log.Fatalf("Invalid policy configuration: %v", err)
	}

	deps := mcp.Deps{
		Catalog:  cat,
		Schemas:  schemas,
		Resolver: resolver,
		Gate:     gate,
		Engine: executor.New(executor.Options{
			Timeout:     cfg.Execution.Timeout.Std(),
			MaxRetries:  cfg.Execution.MaxRetries,
			BackoffBase: cfg.Execution.BackoffBase,
			BackoffCap:  cfg.Execution.BackoffCap.Std(),
		}),
		Collector: pagination.New(pagination.Options{
			MaxItems:    cfg.Pagination.MaxItems,
			MaxPages:    cfg.Pagination.MaxPages,
			AutoCollect: *cfg.Pagination.AutoCollect,
		}),
		Metrics:       metrics.New(),
		RedactSecrets: *cfg.Output.RedactSecrets,
	}
	if *cfg.Cache.Enabled {
		deps.Cache = cache.New(cfg.Cache.Capacity, cfg.Cache.TTL.Std())
	}
	if *cfg.RateLimit.Enabled {
		deps.Limiter = ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.Window.Std())
	}

	srv, err := mcp.NewServer(deps)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	slog.Info("Starting server", "tools", srv.RegisteredTools(),
		"allow_dangerous", cfg.Policy.AllowDangerous, "dry_run", cfg.Policy.DryRun)

	if *listen != "" {
		if err := srv.ServeHTTP(ctx, *listen); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	} else {
		if err := srv.ServeStdio(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}
}

// configureLogging sets up the slog logger with the specified log level
func configureLogging(levelStr string) {
	level := promslog.NewLevel()
	err := level.Set(levelStr)
	if err != nil {
		log.Fatal(err.Error())
	}

	format := promslog.NewFormat()
	err = format.Set("logfmt")
	if err != nil {
		log.Fatal(err.Error())
	}

	logger := promslog.New(&promslog.Config{
		Level:  level,
		Format: format,
		Style:  promslog.GoKitStyle,
	})
	slog.SetDefault(logger)
}
