package policy

import (
	"testing"

	"github.com/toolbridge/sdk-mcp/pkg/catalog"
)

func TestDecidePrecedence(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		tool  string
		class catalog.Classification
		want  Decision
	}{
		{
			name:  "safe tool with no patterns",
			tool:  "library.readonly.list_things",
			class: catalog.ClassSafe,
			want:  Allow,
		},
		{
			name:  "unknown class treated like safe",
			tool:  "library.Misc.Ping",
			class: catalog.ClassUnknown,
			want:  Allow,
		},
		{
			name:  "destructive denied when dangerous off",
			tool:  "library.admin.delete_thing",
			class: catalog.ClassDestructive,
			want:  Deny,
		},
		{
			name:  "destructive downgraded to dry run",
			cfg:   Config{DryRun: true},
			tool:  "library.admin.delete_thing",
			class: catalog.ClassDestructive,
			want:  DryRun,
		},
		{
			name:  "dangerous switch allows destructive",
			cfg:   Config{AllowDangerous: true},
			tool:  "library.admin.delete_thing",
			class: catalog.ClassDestructive,
			want:  Allow,
		},
		{
			name:  "deny pattern beats dangerous switch",
			cfg:   Config{AllowDangerous: true, DenyPatterns: []string{"*.delete_*"}},
			tool:  "library.admin.delete_thing",
			class: catalog.ClassDestructive,
			want:  Deny,
		},
		{
			name:  "deny pattern beats allow list",
			cfg:   Config{AllowPatterns: []string{"library.*"}, DenyPatterns: []string{"library.admin.*"}},
			tool:  "library.admin.list_users",
			class: catalog.ClassSafe,
			want:  Deny,
		},
		{
			name:  "allow list excludes non-matching tools",
			cfg:   Config{AllowPatterns: []string{"other.*"}},
			tool:  "library.readonly.list_things",
			class: catalog.ClassSafe,
			want:  Deny,
		},
		{
			name:  "allow list exact match",
			cfg:   Config{AllowPatterns: []string{"library.readonly.list_things"}},
			tool:  "library.readonly.list_things",
			class: catalog.ClassSafe,
			want:  Allow,
		},
		{
			name:  "glob crosses dots",
			cfg:   Config{AllowPatterns: []string{"library.*"}},
			tool:  "library.readonly.list_things",
			class: catalog.ClassSafe,
			want:  Allow,
		},
		{
			name:  "question mark matches one character",
			cfg:   Config{DenyPatterns: []string{"library.v?.get"}},
			tool:  "library.v1.get",
			class: catalog.ClassSafe,
			want:  Deny,
		},
		{
			name:  "patterns are case sensitive",
			cfg:   Config{DenyPatterns: []string{"LIBRARY.*"}},
			tool:  "library.readonly.list_things",
			class: catalog.ClassSafe,
			want:  Allow,
		},
		{
			name:  "dry run does not affect safe tools",
			cfg:   Config{DryRun: true},
			tool:  "library.readonly.list_things",
			class: catalog.ClassSafe,
			want:  Allow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGate(tt.cfg)
			if err != nil {
				t.Fatalf("NewGate: %v", err)
			}
			if got := g.Decide(tt.tool, tt.class); got != tt.want {
				t.Errorf("Decide(%q, %v) = %v, want %v", tt.tool, tt.class, got, tt.want)
			}
		})
	}
}

func TestDestructiveNeverAllowedWithoutSwitch(t *testing.T) {
	// With the dangerous switch off the gate must return Deny or DryRun for
	// destructive tools, regardless of dry-run mode.
	for _, dryRun := range []bool{false, true} {
		g, err := NewGate(Config{DryRun: dryRun})
		if err != nil {
			t.Fatalf("NewGate: %v", err)
		}
		got := g.Decide("any.DeleteEverything", catalog.ClassDestructive)
		if got == Allow {
			t.Errorf("dryRun=%v: destructive tool allowed without dangerous switch", dryRun)
		}
	}
}

func TestMalformedPatternsRejected(t *testing.T) {
	// An unclosed character class can never match; accepting it would leave
	// the pattern silently inert and the tools it names exposed.
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad deny pattern", Config{DenyPatterns: []string{"library.admin.[Pp"}}},
		{"bad allow pattern", Config{AllowPatterns: []string{"library.[x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGate(tt.cfg); err == nil {
				t.Error("expected an error for a malformed pattern")
			}
		})
	}
}
