package auth

import (
	"context"
	"net/http"
	"strings"

	promapi "github.com/prometheus/client_golang/api"
	promcfg "github.com/prometheus/common/config"
)

// tokenStrategy resolves a personal access token from one of a fixed set of
// environment keys.
type tokenStrategy struct {
	envKeys []string
}

func (s *tokenStrategy) Name() string { return "personal-access-token" }

func (s *tokenStrategy) Resolve(_ context.Context, _ string, env Environ) (*Credential, error) {
	for _, key := range s.envKeys {
		if token := env(key); token != "" {
			return &Credential{
				Strategy:     s.Name(),
				Token:        token,
				RoundTripper: bearerRoundTripper(token),
			}, nil
		}
	}
	return nil, nil
}

// genericStrategy is the fallback for unknown families: it probes a single
// {FAMILY}_API_KEY environment entry.
type genericStrategy struct{}

func (s *genericStrategy) Name() string { return "generic-environment-key" }

func (s *genericStrategy) Resolve(_ context.Context, family string, env Environ) (*Credential, error) {
	key := strings.ToUpper(family) + "_API_KEY"
	token := env(key)
	if token == "" {
		return nil, nil
	}
	return &Credential{
		Strategy:     s.Name(),
		Token:        token,
		RoundTripper: bearerRoundTripper(token),
	}, nil
}

func bearerRoundTripper(token string) http.RoundTripper {
	return promcfg.NewAuthorizationCredentialsRoundTripper(
		"Bearer", promcfg.NewInlineSecret(token), promapi.DefaultRoundTripper)
}
