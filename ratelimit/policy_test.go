// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePolicyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "throttle.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}
	return path
}

func TestLoadPolicy(t *testing.T) {
	path := writePolicyFile(t, `
default:
  max_attempts: 60
  window_seconds: 60
endpoints:
  analysis.create:
    max_attempts: 10
    window_seconds: 300
  login:
    max_attempts: 5
    window_seconds: 900
`)

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}

	rule := policy.RuleFor("analysis.create")
	if rule.MaxAttempts != 10 || rule.WindowSeconds != 300 {
		t.Errorf("analysis.create rule = %+v, want 10 per 300s", rule)
	}
	if rule.Window() != 5*time.Minute {
		t.Errorf("Window() = %v, want 5m", rule.Window())
	}

	// Unknown endpoints fall back to the default
	rule = policy.RuleFor("quotes.read")
	if rule.MaxAttempts != 60 || rule.WindowSeconds != 60 {
		t.Errorf("fallback rule = %+v, want the default", rule)
	}
}

func TestLoadPolicyRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "zero max_attempts",
			content: `
default:
  max_attempts: 0
  window_seconds: 60
`,
		},
		{
			name: "negative window",
			content: `
default:
  max_attempts: 10
  window_seconds: -5
`,
		},
		{
			name: "bad endpoint rule",
			content: `
default:
  max_attempts: 10
  window_seconds: 60
endpoints:
  login:
    max_attempts: 5
    window_seconds: 0
`,
		},
		{
			name:    "not yaml",
			content: "{{{",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePolicyFile(t, tt.content)
			if _, err := LoadPolicy(path); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()
	if err := policy.Validate(); err != nil {
		t.Fatalf("default policy should validate: %v", err)
	}

	rule := policy.RuleFor("anything")
	if rule.MaxAttempts != 60 || rule.WindowSeconds != 60 {
		t.Errorf("default rule = %+v, want 60 per 60s", rule)
	}
}
