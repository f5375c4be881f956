package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = ".vigil.yaml"

// Config holds vigil configuration.
type Config struct {
	VirusTotal        VirusTotalConfig `yaml:"virustotal"`
	Gemini            GeminiConfig     `yaml:"gemini"`
	FactCheck         FactCheckConfig  `yaml:"factcheck"`
	Polling           PollingConfig    `yaml:"polling"`
	Policy            PolicyConfig     `yaml:"policy"`
	HTTP              HTTPConfig       `yaml:"http"`
	Server            ServerConfig     `yaml:"server"`
	RedactionPatterns []string         `yaml:"redaction_patterns"`
}

type VirusTotalConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type GeminiConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type FactCheckConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Language  string `yaml:"language"`
}

type PollingConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	MaxWaitSeconds  int `yaml:"max_wait_seconds"`
}

type PolicyConfig struct {
	MaliciousThreshold  int      `yaml:"malicious_threshold"`
	EnforceVerdictFloor bool     `yaml:"enforce_verdict_floor"`
	ExtraDeniedDomains  []string `yaml:"extra_denied_domains"`
	MaxEmailLinks       int      `yaml:"max_email_links"`
}

type HTTPConfig struct {
	TimeoutSeconds int   `yaml:"timeout_seconds"`
	RequestBudget  int64 `yaml:"request_budget"` // 0 means unlimited
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // HTTP listen address, e.g. ":8080"
}

// Credentials are resolved once at startup and never change afterwards.
type Credentials struct {
	VirusTotal string
	Gemini     string
	FactCheck  string
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.VirusTotal.APIKeyEnv == "" {
		cfg.VirusTotal.APIKeyEnv = "VT_API_KEY"
	}
	if cfg.Gemini.APIKeyEnv == "" {
		cfg.Gemini.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.FactCheck.APIKeyEnv == "" {
		cfg.FactCheck.APIKeyEnv = "FACTCHECK_API_KEY"
	}
	if cfg.FactCheck.Language == "" {
		cfg.FactCheck.Language = "en"
	}

	if cfg.Polling.IntervalSeconds <= 0 {
		cfg.Polling.IntervalSeconds = 10
	}
	if cfg.Polling.MaxWaitSeconds <= 0 {
		cfg.Polling.MaxWaitSeconds = 300
	}

	if cfg.Policy.MaliciousThreshold <= 0 {
		cfg.Policy.MaliciousThreshold = 5
	}
	if cfg.Policy.MaxEmailLinks <= 0 {
		cfg.Policy.MaxEmailLinks = 5
	}

	if cfg.HTTP.TimeoutSeconds <= 0 {
		cfg.HTTP.TimeoutSeconds = 60
	}
	if cfg.HTTP.RequestBudget < 0 {
		cfg.HTTP.RequestBudget = 0
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

func (c *Config) MaxWait() time.Duration {
	return time.Duration(c.Polling.MaxWaitSeconds) * time.Second
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ResolveCredentials reads the API keys from the environment variables the
// config names.
func (c *Config) ResolveCredentials() Credentials {
	return Credentials{
		VirusTotal: getenv(c.VirusTotal.APIKeyEnv),
		Gemini:     getenv(c.Gemini.APIKeyEnv),
		FactCheck:  getenv(c.FactCheck.APIKeyEnv),
	}
}

func getenv(key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(key))
}
