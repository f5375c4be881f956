package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Validate checks the loaded config for safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	for name, raw := range map[string]string{
		"virustotal.base_url": cfg.VirusTotal.BaseURL,
		"gemini.base_url":     cfg.Gemini.BaseURL,
		"factcheck.base_url":  cfg.FactCheck.BaseURL,
	} {
		if err := validateBaseURL(name, raw); err != nil {
			return err
		}
	}

	if cfg.Polling.IntervalSeconds > cfg.Polling.MaxWaitSeconds {
		return fmt.Errorf("polling.interval_seconds (%d) must not exceed polling.max_wait_seconds (%d)",
			cfg.Polling.IntervalSeconds, cfg.Polling.MaxWaitSeconds)
	}

	for _, d := range cfg.Policy.ExtraDeniedDomains {
		if strings.ContainsAny(d, "/:@ ") {
			return fmt.Errorf("policy.extra_denied_domains: %q is not a bare domain", d)
		}
	}

	for _, p := range cfg.RedactionPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("redaction_patterns: %q: %w", p, err)
		}
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	return nil
}

// RequireCredentials reports which keys a command needs but did not get.
func RequireCredentials(c Credentials, vt, gemini bool) error {
	var missing []string
	if vt && c.VirusTotal == "" {
		missing = append(missing, "VirusTotal")
	}
	if gemini && c.Gemini == "" {
		missing = append(missing, "Gemini")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing API key for %s", strings.Join(missing, " and "))
	}
	return nil
}

func validateBaseURL(name, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%s must be an http(s) URL", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
