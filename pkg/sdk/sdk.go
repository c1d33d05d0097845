package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/toolbridge/sdk-mcp/pkg/auth"
	"github.com/toolbridge/sdk-mcp/pkg/config"
)

// FromConfig builds a registry holding the configured built-in families.
// Startup credentials come from the resolver; a family without credentials is
// still registered and relies on anonymous access.
func FromConfig(ctx context.Context, cfg *config.Config, resolver *auth.Resolver) (*Registry, error) {
	reg := NewRegistry()

	for _, family := range cfg.SDKs {
		client, err := buildFamily(ctx, family, cfg, resolver)
		if err != nil {
			return nil, fmt.Errorf("sdk %s: %w", family, err)
		}
		if err := reg.Register(family, client); err != nil {
			return nil, err
		}
		slog.Info("registered sdk", "family", family)
	}
	return reg, nil
}

func buildFamily(ctx context.Context, family string, cfg *config.Config, resolver *auth.Resolver) (any, error) {
	switch family {
	case "kubernetes":
		return NewKubernetes(cfg.Kubernetes.Kubeconfig)
	case "prometheus":
		return NewPrometheus(cfg.Prometheus.URL, cfg.Prometheus.Insecure, startupRoundTripper(ctx, family, resolver))
	case "alertmanager":
		return NewAlertmanager(cfg.Alertmanager.URL)
	}
	return nil, fmt.Errorf("unknown family")
}

func startupRoundTripper(ctx context.Context, family string, resolver *auth.Resolver) http.RoundTripper {
	if resolver == nil {
		return nil
	}
	cred, err := resolver.Resolve(ctx, family, os.Getenv)
	if err != nil || cred == nil {
		return nil
	}
	return cred.RoundTripper
}
