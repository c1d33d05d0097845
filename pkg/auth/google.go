package auth

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// googleStrategy resolves credentials through the Google Cloud default
// credential chain (well-known file, GOOGLE_APPLICATION_CREDENTIALS,
// metadata server).
type googleStrategy struct{}

func (s *googleStrategy) Name() string { return "cloud-default-credential-chain" }

func (s *googleStrategy) Resolve(ctx context.Context, family string, _ Environ) (*Credential, error) {
	creds, err := google.FindDefaultCredentials(ctx)
	if err != nil {
		slog.Debug("no default cloud credential available", "family", family, "err", err)
		return nil, nil
	}

	var rt http.RoundTripper
	if creds.TokenSource != nil {
		rt = &oauth2.Transport{Source: creds.TokenSource, Base: http.DefaultTransport}
	}

	return &Credential{
		Strategy:     s.Name(),
		RoundTripper: rt,
	}, nil
}
