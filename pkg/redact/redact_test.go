package redact

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSensitive(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"password", true},
		{"Password", true},
		{"api_key", true},
		{"apiKey", true},
		{"accessToken", true},
		{"client_secret", true},
		{"sshKey", true},
		{"credentials", true},
		{"name", false},
		{"namespace", false},
		{"tokenizer_mode", true}, // contains "token", masked by design
	}
	for _, tc := range tests {
		if got := Sensitive(tc.key); got != tc.want {
			t.Errorf("Sensitive(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestValueMasksNested(t *testing.T) {
	in := map[string]any{
		"name": "prod-cluster",
		"auth": map[string]any{
			"token":    "abc123",
			"username": "deploy",
		},
		"nodes": []any{
			map[string]any{"host": "n1", "password": "hunter2"},
			map[string]any{"host": "n2", "password": "hunter3"},
		},
	}

	got := Value(in)

	want := map[string]any{
		"name": "prod-cluster",
		"auth": map[string]any{
			"token":    "***",
			"username": "deploy",
		},
		"nodes": []any{
			map[string]any{"host": "n1", "password": "***"},
			map[string]any{"host": "n2", "password": "***"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("redacted value mismatch (-want +got):\n%s", diff)
	}

	// Input must be untouched.
	if in["auth"].(map[string]any)["token"] != "abc123" {
		t.Error("input map was modified")
	}
}

func TestValuePassesScalars(t *testing.T) {
	for _, v := range []any{"plain", 42.0, true, nil} {
		if got := Value(v); got != v {
			t.Errorf("Value(%v) = %v, want unchanged", v, got)
		}
	}
}
