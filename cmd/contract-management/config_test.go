package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppConfig_ReadsYAMLAndKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.yaml")
	body := `
listen_addr: ":9090"
rainbow:
  base_url: "http://rainbow:1234"
  timeout: 3s
cleanup:
  max_attempts: 2
core:
  organization:
    did: "did:web:provider.example"
  features:
    catalog_sync: false
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadAppConfigFrom(path, envLookup(nil))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.Rainbow.BaseURL != "http://rainbow:1234" {
		t.Fatalf("unexpected listener or rainbow settings: %#v", cfg)
	}
	if cfg.Rainbow.Timeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %s", cfg.Rainbow.Timeout)
	}
	if !cfg.Cleanup.Enabled || cfg.Cleanup.QueueCapacity != 128 || cfg.Cleanup.MaxAttempts != 2 {
		t.Fatalf("expected cleanup defaults to survive partial overrides, got %#v", cfg.Cleanup)
	}
	if cfg.Log.Mode != "development" {
		t.Fatalf("expected default log mode, got %q", cfg.Log.Mode)
	}
	organization, ok := cfg.Core["organization"].(map[string]any)
	if !ok || organization["did"] != "did:web:provider.example" {
		t.Fatalf("expected core map to pass through, got %#v", cfg.Core)
	}
}

func TestLoadAppConfig_MissingFile(t *testing.T) {
	if _, err := loadAppConfigFrom(filepath.Join(t.TempDir(), "missing.yaml"), envLookup(nil)); err == nil {
		t.Fatalf("expected missing file to fail")
	}
}

func TestLoadAppConfig_EnvOverridesFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.yaml")
	body := `
listen_addr: ":9090"
cleanup:
  enabled: true
core:
  organization:
    did: "did:web:file.example"
  features:
    negotiation: false
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadAppConfigFrom(path, envLookup(map[string]string{
		"CONTRACTS_LISTEN_ADDR":      ":7000",
		"CONTRACTS_LOG_MODE":         "production",
		"CONTRACTS_TMFORUM_URL":      " http://tmforum:8632 ",
		"CONTRACTS_CLEANUP_ENABLED":  "false",
		"CONTRACTS_ORGANIZATION_DID": "did:web:env.example",
	}))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != ":7000" || cfg.Log.Mode != "production" || cfg.TMForum.BaseURL != "http://tmforum:8632" {
		t.Fatalf("unexpected overrides: %#v", cfg)
	}
	if cfg.Cleanup.Enabled {
		t.Fatalf("expected cleanup to be disabled")
	}
	organization, _ := cfg.Core["organization"].(map[string]any)
	if organization["did"] != "did:web:env.example" {
		t.Fatalf("expected organization did in core map, got %#v", cfg.Core)
	}
	features, _ := cfg.Core["features"].(map[string]any)
	if features["negotiation"] != false {
		t.Fatalf("expected file values beside the override to survive, got %#v", cfg.Core)
	}
}

func TestLoadAppConfig_RejectsInvalidBool(t *testing.T) {
	_, err := loadAppConfigFrom("", envLookup(map[string]string{"CONTRACTS_CLEANUP_ENABLED": "sometimes"}))
	if err == nil {
		t.Fatalf("expected invalid bool to fail")
	}
}

func TestLoadAppConfig_Validates(t *testing.T) {
	cases := map[string]map[string]string{
		"log mode":  {"CONTRACTS_LOG_MODE": "verbose"},
		"log level": {"CONTRACTS_LOG_LEVEL": "loud"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := loadAppConfigFrom("", envLookup(env)); err == nil {
				t.Fatalf("expected invalid %s to fail", name)
			}
		})
	}

	path := filepath.Join(t.TempDir(), "contracts.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \"\"\ncleanup:\n  queue_capacity: 0\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := loadAppConfigFrom(path, envLookup(nil))
	if err == nil {
		t.Fatalf("expected empty listen address and queue capacity to fail")
	}
	for _, want := range []string{"listen_addr", "queue_capacity"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestLoadAppConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := loadAppConfigFrom("", envLookup(nil))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.Transport.Burst != 40 || cfg.Core == nil {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func TestCleanupPolicy_FallsBackToDefaults(t *testing.T) {
	policy := cleanupPolicy(CleanupConfig{MaxAttempts: 2})
	if policy.MaxAttempts != 2 || policy.BaseDelay != 5*time.Second || policy.MaxDelay != 5*time.Minute {
		t.Fatalf("unexpected policy: %#v", policy)
	}
}
