package auth

import (
	"context"
	"net/http"
	"strings"
)

// Environ looks up one environment entry; os.Getenv in production,
// injectable in tests.
type Environ func(key string) string

// Credential is an injected-credential handle produced by a strategy.
type Credential struct {
	// Strategy names the strategy that produced the credential.
	Strategy string
	// Token is the bearer token, when the strategy yields one.
	Token string
	// RoundTripper injects the credential into outgoing HTTP calls, when
	// the strategy can build one.
	RoundTripper http.RoundTripper
}

// Strategy resolves credentials for one SDK family. Resolution is pure with
// respect to (family, environment): it performs no network calls and a
// missing credential is reported as (nil, nil), never as an error. Errors
// are reserved for broken environments (unreadable files, malformed config).
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, family string, env Environ) (*Credential, error)
}

// Resolver maps SDK families to strategies, with a generic fallback for
// unknown families.
type Resolver struct {
	table    map[string]Strategy
	fallback Strategy
}

// NewResolver creates a resolver with the built-in strategy table:
// kubernetes uses kubeconfig/in-cluster loading, github and gitlab use
// personal access tokens, google and gcp use the default credential chain,
// and everything else probes {FAMILY}_API_KEY.
func NewResolver() *Resolver {
	r := &Resolver{
		table:    make(map[string]Strategy),
		fallback: &genericStrategy{},
	}
	r.Register("kubernetes", &kubeconfigStrategy{})
	r.Register("github", &tokenStrategy{envKeys: []string{"GITHUB_TOKEN", "GH_TOKEN"}})
	r.Register("gitlab", &tokenStrategy{envKeys: []string{"GITLAB_TOKEN"}})
	r.Register("google", &googleStrategy{})
	r.Register("gcp", &googleStrategy{})
	return r
}

// Register installs or replaces the strategy for a family.
func (r *Resolver) Register(family string, s Strategy) {
	r.table[strings.ToLower(family)] = s
}

// Resolve returns the credential for a family, or (nil, nil) when no
// credential is available. A nil credential is not fatal here; it becomes an
// authentication failure only if the eventual call requires one.
func (r *Resolver) Resolve(ctx context.Context, family string, env Environ) (*Credential, error) {
	s, ok := r.table[strings.ToLower(family)]
	if !ok {
		s = r.fallback
	}
	return s.Resolve(ctx, family, env)
}

// StrategyFor returns the name of the strategy that would handle a family.
func (r *Resolver) StrategyFor(family string) string {
	if s, ok := r.table[strings.ToLower(family)]; ok {
		return s.Name()
	}
	return r.fallback.Name()
}

type ctxKey string

// credentialKey carries the resolved credential through the execution
// pipeline so callables can pick it up.
const credentialKey ctxKey = "sdk-credential"

// WithCredential attaches a resolved credential to the context.
func WithCredential(ctx context.Context, c *Credential) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, credentialKey, c)
}

// FromContext returns the credential attached to the context, if any.
func FromContext(ctx context.Context) (*Credential, bool) {
	c, ok := ctx.Value(credentialKey).(*Credential)
	return c, ok
}
