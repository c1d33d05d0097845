package auth

import (
	"context"
	"log/slog"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// kubeconfigStrategy resolves Kubernetes credentials: kubeconfig first, then
// the in-cluster service account.
type kubeconfigStrategy struct{}

func (s *kubeconfigStrategy) Name() string { return "kubeconfig" }

func (s *kubeconfigStrategy) Resolve(_ context.Context, family string, _ Environ) (*Credential, error) {
	restConfig, err := loadRESTConfig()
	if err != nil {
		slog.Debug("no kubernetes credential available", "family", family, "err", err)
		return nil, nil
	}

	rt, err := rest.TransportFor(restConfig)
	if err != nil {
		slog.Warn("failed to build transport from kubernetes config", "err", err)
		return nil, nil
	}

	return &Credential{
		Strategy:     s.Name(),
		Token:        restConfig.BearerToken,
		RoundTripper: rt,
	}, nil
}

func loadRESTConfig() (*rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})

	config, err := kubeConfig.ClientConfig()
	if err == nil {
		return config, nil
	}

	// Not running with a kubeconfig; try the in-cluster service account.
	return rest.InClusterConfig()
}
