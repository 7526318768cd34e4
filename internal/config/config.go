package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"hingeboard/internal/domain"
)

// Config models hingeboard.yml.
type Config struct {
	Defaults struct {
		// PostponeDays applies when a postpone outcome carries no explicit
		// day count.
		PostponeDays int `yaml:"postpone_days"`
		// Urgency applies to conditionals created without one.
		Urgency string `yaml:"urgency"`
	} `yaml:"defaults"`
	Validation struct {
		// RequireFallbackPath rejects outcome lists containing a
		// switch_fallback action when the conditional names no fallback
		// conditional and no fallback postpone days. Without it a failed
		// conditional can strand its tasks permanently blocked.
		RequireFallbackPath bool `yaml:"require_fallback_path"`
		// DetectFallbackCycles walks the fallback chain on create/update
		// and rejects A->B->A loops.
		DetectFallbackCycles bool `yaml:"detect_fallback_cycles"`
	} `yaml:"validation"`
	Server struct {
		Addr             string `yaml:"addr"`
		BasePath         string `yaml:"base_path"`
		JWTSecret        string `yaml:"jwt_secret"`
		AllowOwnerHeader bool   `yaml:"allow_owner_header"`
	} `yaml:"server"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Defaults.PostponeDays < 1 {
		return fmt.Errorf("config.defaults.postpone_days must be >= 1")
	}
	if c.Defaults.Urgency != "" && !domain.Urgency(c.Defaults.Urgency).IsValid() {
		return fmt.Errorf("config.defaults.urgency %q is not one of low, medium, high, critical", c.Defaults.Urgency)
	}
	if c.Server.BasePath != "" && c.Server.BasePath[0] != '/' {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// DefaultPostponeDays returns the configured postpone default, falling back
// to 7 when the config is absent entirely.
func (c *Config) DefaultPostponeDays() int {
	if c == nil || c.Defaults.PostponeDays < 1 {
		return 7
	}
	return c.Defaults.PostponeDays
}

// DefaultUrgency returns the urgency for conditionals created without one.
func (c *Config) DefaultUrgency() domain.Urgency {
	if c == nil || c.Defaults.Urgency == "" {
		return domain.UrgencyMedium
	}
	return domain.Urgency(c.Defaults.Urgency)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "hingeboard.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns the default config YAML, for `hb init`.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `defaults:
  postpone_days: 7
  urgency: medium

validation:
  require_fallback_path: true
  detect_fallback_cycles: true

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  jwt_secret: ""
  allow_owner_header: true
`
