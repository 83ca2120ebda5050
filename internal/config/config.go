// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/smileynet/etm/internal/cache"
	"github.com/smileynet/etm/transport"
)

// Output formats accepted by Output.Format.
const (
	FormatAuto  = "auto"
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Config holds all etm configuration.
type Config struct {
	Engine   Engine   `yaml:"engine"`
	Auth     Auth     `yaml:"auth"`
	Output   Output   `yaml:"output"`
	Scenario Scenario `yaml:"scenario"`
}

// Engine holds API endpoint settings.
type Engine struct {
	BaseURL string        `yaml:"base_url"`
	Beta    bool          `yaml:"beta"` // Use the beta-engine host
	Timeout time.Duration `yaml:"timeout"`
}

// Auth holds personal access tokens.
type Auth struct {
	Token     string `yaml:"token"`
	BetaToken string `yaml:"beta_token"`
}

// Output holds display settings.
type Output struct {
	Format string `yaml:"format"` // "auto" | "table" | "csv" | "json" | "yaml"
}

// Scenario holds scenario handle settings.
type Scenario struct {
	Invalidation string `yaml:"invalidation"` // "all" | "dependents"
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine: Engine{
			BaseURL: transport.DefaultBaseURL,
			Timeout: 60 * time.Second,
		},
		Output: Output{
			Format: FormatAuto,
		},
		Scenario: Scenario{
			Invalidation: "all",
		},
	}
}

// Paths returns the config files read by LoadLayered, lowest priority first.
func Paths() []string {
	return []string{
		os.ExpandEnv("$HOME/.config/etm/config.yaml"),
		".etm/config.yaml",
	}
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Token returns the access token for the configured environment.
func (c *Config) Token() string {
	if c.Engine.Beta && c.Auth.BetaToken != "" {
		return c.Auth.BetaToken
	}
	return c.Auth.Token
}

// Policy returns the configured invalidation policy.
func (c *Config) Policy() cache.Policy {
	p, _ := cache.ParsePolicy(c.Scenario.Invalidation)
	return p
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Engine.BaseURL == "" {
		return errors.New("config: engine.base_url cannot be empty")
	}
	u, err := url.Parse(c.Engine.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: engine.base_url must be an absolute URL, got %q", c.Engine.BaseURL)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("config: engine.timeout must be positive, got %v", c.Engine.Timeout)
	}
	switch c.Output.Format {
	case "", FormatAuto, FormatTable, FormatCSV, FormatJSON, FormatYAML:
		// valid
	default:
		return fmt.Errorf("config: output.format must be one of auto, table, csv, json, yaml, got %q", c.Output.Format)
	}
	if _, err := cache.ParsePolicy(c.Scenario.Invalidation); err != nil {
		return fmt.Errorf("config: scenario.invalidation: %w", err)
	}
	return nil
}

// envOverrides lists the supported environment variables. Unset variables
// leave their pointer nil.
type envOverrides struct {
	BaseURL      *string        `env:"ETM_ENGINE_URL"`
	Beta         *bool          `env:"ETM_BETA"`
	Timeout      *time.Duration `env:"ETM_TIMEOUT"`
	Token        *string        `env:"ETM_ACCESS_TOKEN"`
	BetaToken    *string        `env:"ETM_BETA_ACCESS_TOKEN"`
	Format       *string        `env:"ETM_FORMAT"`
	Invalidation *string        `env:"ETM_INVALIDATION"`
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: ETM_ENGINE_URL, ETM_BETA, ETM_TIMEOUT,
// ETM_ACCESS_TOKEN, ETM_BETA_ACCESS_TOKEN, ETM_FORMAT, ETM_INVALIDATION.
func (c *Config) ApplyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("config: parsing environment: %w", err)
	}
	if o.BaseURL != nil && *o.BaseURL != "" {
		c.Engine.BaseURL = *o.BaseURL
	}
	if o.Beta != nil {
		c.Engine.Beta = *o.Beta
	}
	if o.Timeout != nil {
		c.Engine.Timeout = *o.Timeout
	}
	if o.Token != nil && *o.Token != "" {
		c.Auth.Token = *o.Token
	}
	if o.BetaToken != nil && *o.BetaToken != "" {
		c.Auth.BetaToken = *o.BetaToken
	}
	if o.Format != nil && *o.Format != "" {
		c.Output.Format = *o.Format
	}
	if o.Invalidation != nil && *o.Invalidation != "" {
		c.Scenario.Invalidation = *o.Invalidation
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Engine   *rawEngine   `yaml:"engine"`
	Auth     *rawAuth     `yaml:"auth"`
	Output   *rawOutput   `yaml:"output"`
	Scenario *rawScenario `yaml:"scenario"`
}

type rawEngine struct {
	BaseURL *string        `yaml:"base_url"`
	Beta    *bool          `yaml:"beta"`
	Timeout *time.Duration `yaml:"timeout"`
}

type rawAuth struct {
	Token     *string `yaml:"token"`
	BetaToken *string `yaml:"beta_token"`
}

type rawOutput struct {
	Format *string `yaml:"format"`
}

type rawScenario struct {
	Invalidation *string `yaml:"invalidation"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if layer.Engine != nil {
		if layer.Engine.BaseURL != nil {
			c.Engine.BaseURL = *layer.Engine.BaseURL
		}
		if layer.Engine.Beta != nil {
			c.Engine.Beta = *layer.Engine.Beta
		}
		if layer.Engine.Timeout != nil {
			c.Engine.Timeout = *layer.Engine.Timeout
		}
	}
	if layer.Auth != nil {
		if layer.Auth.Token != nil {
			c.Auth.Token = *layer.Auth.Token
		}
		if layer.Auth.BetaToken != nil {
			c.Auth.BetaToken = *layer.Auth.BetaToken
		}
	}
	if layer.Output != nil && layer.Output.Format != nil {
		c.Output.Format = *layer.Output.Format
	}
	if layer.Scenario != nil && layer.Scenario.Invalidation != nil {
		c.Scenario.Invalidation = *layer.Scenario.Invalidation
	}
}
