// Package config loads and validates the bridge configuration.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/toolbridge/sdk-mcp/pkg/policy"
)

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root bridge configuration.
type Config struct {
	// SDKs lists the built-in SDK families to register at startup.
	// Valid values: "kubernetes", "prometheus", "alertmanager".
	SDKs []string `toml:"sdks,omitempty"`

	Policy     PolicyConfig     `toml:"policy,omitempty"`
	Cache      CacheConfig      `toml:"cache,omitempty"`
	RateLimit  RateLimitConfig  `toml:"ratelimit,omitempty"`
	Execution  ExecutionConfig  `toml:"execution,omitempty"`
	Pagination PaginationConfig `toml:"pagination,omitempty"`
	Output     OutputConfig     `toml:"output,omitempty"`
	Enrichment EnrichmentConfig `toml:"enrichment,omitempty"`

	Kubernetes   KubernetesConfig `toml:"kubernetes,omitempty"`
	Prometheus   PrometheusConfig `toml:"prometheus,omitempty"`
	Alertmanager EndpointConfig   `toml:"alertmanager,omitempty"`
}

// PolicyConfig controls which tools are exposed and how dangerous tools are
// handled.
type PolicyConfig struct {
	// Allow restricts exposure to tools matching these glob patterns.
	// Empty means every tool passes the allow stage.
	Allow []string `toml:"allow,omitempty"`

	// Deny hides tools matching these glob patterns. Deny wins over allow.
	Deny []string `toml:"deny,omitempty"`

	// AllowDangerous exposes mutating and destructive tools for real
	// execution. Default: false.
	AllowDangerous bool `toml:"allow_dangerous,omitempty"`

	// DryRun exposes dangerous tools in validate-only mode instead of
	// hiding them. Ignored when AllowDangerous is set. Default: false.
	DryRun bool `toml:"dry_run,omitempty"`
}

// CacheConfig controls the result cache for safe tools.
type CacheConfig struct {
	// Enabled turns the result cache on. Default: true.
	Enabled *bool `toml:"enabled,omitempty"`

	// Capacity is the maximum number of cached results. Default: 1024.
	Capacity int `toml:"capacity,omitempty"`

	// TTL is how long a cached result stays fresh. Default: "60s".
	TTL Duration `toml:"ttl,omitempty"`
}

// RateLimitConfig controls the per-tool token bucket.
type RateLimitConfig struct {
	// Enabled turns rate limiting on. Default: true.
	Enabled *bool `toml:"enabled,omitempty"`

	// Capacity is the bucket size per tool. Default: 30.
	Capacity int `toml:"capacity,omitempty"`

	// Window is the period over which a full bucket refills. Default: "60s".
	Window Duration `toml:"window,omitempty"`
}

// ExecutionConfig tunes invocation timeouts and retries.
type ExecutionConfig struct {
	// Timeout bounds each invocation attempt. Default: "30s".
	Timeout Duration `toml:"timeout,omitempty"`

	// MaxRetries is the number of additional attempts after a transient
	// failure. Default: 2.
	MaxRetries int `toml:"max_retries,omitempty"`

	// BackoffBase is the exponential backoff base in seconds. Default: 2.
	BackoffBase float64 `toml:"backoff_base,omitempty"`

	// BackoffCap limits a single backoff wait. Default: "30s".
	BackoffCap Duration `toml:"backoff_cap,omitempty"`
}

// PaginationConfig tunes result collection.
type PaginationConfig struct {
	// MaxItems caps collected items per call. Default: 500.
	MaxItems int `toml:"max_items,omitempty"`

	// MaxPages bounds follow-up page fetches. Default: 20.
	MaxPages int `toml:"max_pages,omitempty"`

	// AutoCollect walks follow-up pages automatically. Default: true.
	AutoCollect *bool `toml:"auto_collect,omitempty"`
}

// OutputConfig controls result post-processing.
type OutputConfig struct {
	// RedactSecrets masks secret-looking fields in results. Default: true.
	RedactSecrets *bool `toml:"redact_secrets,omitempty"`
}

// EnrichmentConfig controls optional model-based schema documentation.
type EnrichmentConfig struct {
	// Enabled turns schema enrichment on. Default: false.
	Enabled bool `toml:"enabled,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	// Default: "OPENAI_API_KEY".
	APIKeyEnv string `toml:"api_key_env,omitempty"`

	// BaseURL overrides the API endpoint, for compatible providers.
	BaseURL string `toml:"base_url,omitempty"`

	// Model selects the chat model.
	Model string `toml:"model,omitempty"`

	// Timeout bounds a single enrichment call. Default: 15s.
	Timeout Duration `toml:"timeout,omitempty"`
}

// KubernetesConfig configures the kubernetes SDK family.
type KubernetesConfig struct {
	// Kubeconfig is an explicit kubeconfig path. Empty uses the standard
	// loading rules, falling back to in-cluster configuration.
	Kubeconfig string `toml:"kubeconfig,omitempty"`
}

// PrometheusConfig configures the prometheus SDK family.
type PrometheusConfig struct {
	// URL is the Prometheus/Thanos query endpoint.
	// Example: "https://thanos-querier-openshift-monitoring.apps.example.com"
	URL string `toml:"url,omitempty"`

	// Insecure skips TLS certificate verification. Default: false.
	Insecure bool `toml:"insecure,omitempty"`
}

// EndpointConfig configures an HTTP endpoint SDK family.
type EndpointConfig struct {
	// URL is the service endpoint.
	URL string `toml:"url,omitempty"`
}

var knownSDKs = map[string]bool{
	"kubernetes":   true,
	"prometheus":   true,
	"alertmanager": true,
}

// Load reads, decodes and validates a TOML configuration file. Unknown keys
// are rejected so typos surface at startup, not as silently ignored settings.
func Load(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Cache.Enabled == nil {
		c.Cache.Enabled = ptr(true)
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = 1024
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = Duration(60 * time.Second)
	}

	if c.RateLimit.Enabled == nil {
		c.RateLimit.Enabled = ptr(true)
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 30
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = Duration(60 * time.Second)
	}

	if c.Execution.Timeout == 0 {
		c.Execution.Timeout = Duration(30 * time.Second)
	}
	if c.Execution.MaxRetries == 0 {
		c.Execution.MaxRetries = 2
	}
	if c.Execution.BackoffBase == 0 {
		c.Execution.BackoffBase = 2
	}
	if c.Execution.BackoffCap == 0 {
		c.Execution.BackoffCap = Duration(30 * time.Second)
	}

	if c.Pagination.MaxItems == 0 {
		c.Pagination.MaxItems = 500
	}
	if c.Pagination.MaxPages == 0 {
		c.Pagination.MaxPages = 20
	}
	if c.Pagination.AutoCollect == nil {
		c.Pagination.AutoCollect = ptr(true)
	}

	if c.Output.RedactSecrets == nil {
		c.Output.RedactSecrets = ptr(true)
	}

	if c.Enrichment.APIKeyEnv == "" {
		c.Enrichment.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Enrichment.Timeout == 0 {
		c.Enrichment.Timeout = Duration(15 * time.Second)
	}
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	for _, name := range c.SDKs {
		if !knownSDKs[name] {
			return fmt.Errorf("unknown sdk %q", name)
		}
	}
	for _, name := range c.SDKs {
		if name == "prometheus" && c.Prometheus.URL == "" {
			return fmt.Errorf("sdk %q requires prometheus.url", name)
		}
		if name == "alertmanager" && c.Alertmanager.URL == "" {
			return fmt.Errorf("sdk %q requires alertmanager.url", name)
		}
	}

	if err := policy.ValidatePatterns(c.Policy.Allow); err != nil {
		return fmt.Errorf("policy.allow: %w", err)
	}
	if err := policy.ValidatePatterns(c.Policy.Deny); err != nil {
		return fmt.Errorf("policy.deny: %w", err)
	}

	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must not be negative")
	}
	if c.RateLimit.Capacity < 0 {
		return fmt.Errorf("ratelimit.capacity must not be negative")
	}
	if c.Execution.MaxRetries < 0 {
		return fmt.Errorf("execution.max_retries must not be negative")
	}
	if c.Execution.BackoffBase < 1 {
		return fmt.Errorf("execution.backoff_base must be at least 1")
	}
	if c.Pagination.MaxItems < 0 || c.Pagination.MaxPages < 0 {
		return fmt.Errorf("pagination limits must not be negative")
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
