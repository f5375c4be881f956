package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.PollInterval() != 10*time.Second || cfg.MaxWait() != 300*time.Second {
		t.Fatalf("unexpected polling defaults: %v %v", cfg.PollInterval(), cfg.MaxWait())
	}
	if cfg.Policy.MaliciousThreshold != 5 || cfg.Policy.EnforceVerdictFloor {
		t.Fatalf("unexpected policy defaults: %+v", cfg.Policy)
	}
	if cfg.VirusTotal.APIKeyEnv != "VT_API_KEY" || cfg.Gemini.APIKeyEnv != "GEMINI_API_KEY" {
		t.Fatalf("unexpected key env defaults: %+v %+v", cfg.VirusTotal, cfg.Gemini)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected server addr: %q", cfg.Server.Addr)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".vigil.yaml")
	content := `virustotal:
  base_url: https://vt.internal.example/api/v3
  api_key_env: MY_VT_KEY
gemini:
  model: gemini-2.5-pro
polling:
  interval_seconds: 15
  max_wait_seconds: 600
policy:
  malicious_threshold: 3
  enforce_verdict_floor: true
  extra_denied_domains:
    - example.org
http:
  request_budget: 200
redaction_patterns:
  - 'acct-[0-9]+'
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.VirusTotal.BaseURL != "https://vt.internal.example/api/v3" || cfg.VirusTotal.APIKeyEnv != "MY_VT_KEY" {
		t.Fatalf("unexpected virustotal config: %+v", cfg.VirusTotal)
	}
	if cfg.Gemini.Model != "gemini-2.5-pro" || cfg.Gemini.APIKeyEnv != "GEMINI_API_KEY" {
		t.Fatalf("unexpected gemini config: %+v", cfg.Gemini)
	}
	if cfg.PollInterval() != 15*time.Second || cfg.MaxWait() != 600*time.Second {
		t.Fatalf("unexpected polling: %+v", cfg.Polling)
	}
	if cfg.Policy.MaliciousThreshold != 3 || !cfg.Policy.EnforceVerdictFloor || len(cfg.Policy.ExtraDeniedDomains) != 1 {
		t.Fatalf("unexpected policy: %+v", cfg.Policy)
	}
	if cfg.HTTP.RequestBudget != 200 || cfg.HTTPTimeout() != 60*time.Second {
		t.Fatalf("unexpected http config: %+v", cfg.HTTP)
	}
	if len(cfg.RedactionPatterns) != 1 || cfg.RedactionPatterns[0] != "acct-[0-9]+" {
		t.Fatalf("unexpected redaction patterns: %v", cfg.RedactionPatterns)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("polling: [unclosed"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func TestValidateRejectsUnsafeValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad scheme", func(c *Config) { c.Gemini.BaseURL = "ftp://gemini.example" }, "gemini.base_url"},
		{"interval above budget", func(c *Config) { c.Polling.IntervalSeconds = 400 }, "polling.interval_seconds"},
		{"url as domain", func(c *Config) { c.Policy.ExtraDeniedDomains = []string{"https://x.example/"} }, "extra_denied_domains"},
		{"bad regex", func(c *Config) { c.RedactionPatterns = []string{"("} }, "redaction_patterns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestResolveCredentials(t *testing.T) {
	t.Setenv("VT_API_KEY", " vt-key ")
	t.Setenv("GEMINI_API_KEY", "")
	cfg := defaultConfig()

	creds := cfg.ResolveCredentials()
	if creds.VirusTotal != "vt-key" || creds.Gemini != "" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
	if err := RequireCredentials(creds, true, true); err == nil || !strings.Contains(err.Error(), "Gemini") {
		t.Fatalf("expected missing Gemini key, got %v", err)
	}
	if err := RequireCredentials(creds, true, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
