package policy

import (
	"fmt"
	"path"

	"github.com/toolbridge/sdk-mcp/pkg/catalog"
)

// Decision is the outcome of gating a tool.
type Decision string

const (
	Allow  Decision = "allow"
	Deny   Decision = "deny"
	DryRun Decision = "dry_run"
)

// Gate decides whether a tool may execute. It is a pure function of its
// configuration and the tool's name and classification; it performs no I/O
// and holds no mutable state, so a single Gate is shared by all requests.
type Gate struct {
	allowPatterns  []string
	denyPatterns   []string
	allowDangerous bool
	dryRun         bool
}

// Config holds the gating switches.
type Config struct {
	// AllowPatterns, when non-empty, restricts tools to those matching at
	// least one pattern.
	AllowPatterns []string
	// DenyPatterns rejects matching tools unconditionally.
	DenyPatterns []string
	// AllowDangerous permits mutating and destructive tools.
	AllowDangerous bool
	// DryRun downgrades blocked dangerous tools to dry-run instead of deny.
	DryRun bool
}

// NewGate creates a Gate from config. Malformed patterns are rejected here:
// a deny pattern that silently never matches would let tools through.
func NewGate(cfg Config) (*Gate, error) {
	if err := ValidatePatterns(cfg.AllowPatterns); err != nil {
		return nil, fmt.Errorf("allow pattern: %w", err)
	}
	if err := ValidatePatterns(cfg.DenyPatterns); err != nil {
		return nil, fmt.Errorf("deny pattern: %w", err)
	}
	return &Gate{
		allowPatterns:  cfg.AllowPatterns,
		denyPatterns:   cfg.DenyPatterns,
		allowDangerous: cfg.AllowDangerous,
		dryRun:         cfg.DryRun,
	}, nil
}

// ValidatePatterns reports the first malformed glob pattern in the list.
func ValidatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("%q: %w", pattern, err)
		}
	}
	return nil
}

// Decide gates a single tool. Precedence: deny patterns, then the allow
// list, then the dangerous switch. Deny always wins over allow.
func (g *Gate) Decide(name string, class catalog.Classification) Decision {
	if matchAny(g.denyPatterns, name) {
		return Deny
	}
	if len(g.allowPatterns) > 0 && !matchAny(g.allowPatterns, name) {
		return Deny
	}
	if class.Dangerous() && !g.allowDangerous {
		if g.dryRun {
			return DryRun
		}
		return Deny
	}
	return Allow
}

// DryRunEnabled reports whether the gate downgrades dangerous tools to
// dry-run.
func (g *Gate) DryRunEnabled() bool { return g.dryRun }

// matchAny reports whether name matches at least one shell-glob pattern.
// Dotted canonical names contain no '/', so path.Match's wildcard semantics
// reduce to plain fnmatch: '*' crosses dots, '?' matches one character,
// matching is case-sensitive.
func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if pattern == name {
			return true
		}
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
