package auth

import (
	"context"
	"testing"
)

func envFrom(m map[string]string) Environ {
	return func(key string) string { return m[key] }
}

func TestResolvePersonalAccessToken(t *testing.T) {
	r := NewResolver()
	env := envFrom(map[string]string{"GITHUB_TOKEN": "ghp_secret"})

	cred, err := r.Resolve(context.Background(), "github", env)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cred == nil {
		t.Fatal("expected a credential")
	}
	if cred.Strategy != "personal-access-token" || cred.Token != "ghp_secret" {
		t.Errorf("unexpected credential: %+v", cred)
	}
	if cred.RoundTripper == nil {
		t.Error("expected an injecting round tripper")
	}
}

func TestResolveMissingTokenIsNotFatal(t *testing.T) {
	r := NewResolver()

	cred, err := r.Resolve(context.Background(), "github", envFrom(nil))
	if err != nil {
		t.Fatalf("missing credential must not be an error, got %v", err)
	}
	if cred != nil {
		t.Errorf("expected NoCredential, got %+v", cred)
	}
}

func TestResolveUnknownFamilyUsesGenericFallback(t *testing.T) {
	r := NewResolver()
	env := envFrom(map[string]string{"STRIPE_API_KEY": "sk_test_123"})

	cred, err := r.Resolve(context.Background(), "stripe", env)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cred == nil || cred.Token != "sk_test_123" {
		t.Fatalf("generic fallback did not pick up STRIPE_API_KEY: %+v", cred)
	}
	if cred.Strategy != "generic-environment-key" {
		t.Errorf("strategy = %q", cred.Strategy)
	}
}

func TestResolveFamilyIsCaseInsensitive(t *testing.T) {
	r := NewResolver()
	env := envFrom(map[string]string{"GITHUB_TOKEN": "tok"})

	cred, err := r.Resolve(context.Background(), "GitHub", env)
	if err != nil || cred == nil {
		t.Fatalf("cred=%v err=%v", cred, err)
	}
}

func TestStrategyFor(t *testing.T) {
	r := NewResolver()
	tests := map[string]string{
		"kubernetes": "kubeconfig",
		"github":     "personal-access-token",
		"google":     "cloud-default-credential-chain",
		"whatever":   "generic-environment-key",
	}
	for family, want := range tests {
		if got := r.StrategyFor(family); got != want {
			t.Errorf("StrategyFor(%q) = %q, want %q", family, got, want)
		}
	}
}

func TestRegisterOverridesStrategy(t *testing.T) {
	r := NewResolver()
	r.Register("github", &genericStrategy{})
	if got := r.StrategyFor("github"); got != "generic-environment-key" {
		t.Errorf("override not applied: %q", got)
	}
}

func TestCredentialContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := FromContext(ctx); ok {
		t.Fatal("empty context should carry no credential")
	}

	cred := &Credential{Strategy: "test", Token: "tok"}
	ctx = WithCredential(ctx, cred)
	got, ok := FromContext(ctx)
	if !ok || got != cred {
		t.Fatalf("credential lost in context: %v %v", got, ok)
	}

	// Attaching nil must be a no-op.
	if ctx2 := WithCredential(context.Background(), nil); ctx2 != context.Background() {
		t.Error("nil credential should not modify the context")
	}
}
