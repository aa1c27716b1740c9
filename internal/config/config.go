// Package config loads service settings from an optional YAML file and
// OARESP_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

type Config struct {
	Mode      string          `mapstructure:"mode"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	DB        DBConfig        `mapstructure:"db"`
	Log       LogConfig       `mapstructure:"log"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Audit     AuditConfig     `mapstructure:"audit"`
	PriorArt  PriorArtConfig  `mapstructure:"priorart"`
	Search    SearchConfig    `mapstructure:"search"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Render    RenderConfig    `mapstructure:"render"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	IDs       IDConfig        `mapstructure:"ids"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type LLMConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	MaxTokens  int64         `mapstructure:"max_tokens"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type AuditConfig struct {
	Dir string `mapstructure:"dir"`
}

type PriorArtConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Concurrency int    `mapstructure:"concurrency"`
}

type SearchConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// Enabled reports whether office-action import is configured.
func (s SearchConfig) Enabled() bool { return strings.TrimSpace(s.APIKey) != "" }

type ProbeConfig struct {
	URLTemplate string `mapstructure:"url_template"`
	Selector    string `mapstructure:"selector"`
}

// Enabled reports whether the claim-count probe runs during claim ingestion.
func (p ProbeConfig) Enabled() bool { return strings.TrimSpace(p.URLTemplate) != "" }

type RenderConfig struct {
	ChromePath string `mapstructure:"chrome_path"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

type IDConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

func (c *Config) Development() bool { return c.Mode == ModeDevelopment }

// Validate checks fields that defaults cannot repair.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeProduction, ModeDevelopment:
	default:
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeProduction, ModeDevelopment, c.Mode))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or console", c.Log.Format))
	}
	if strings.TrimSpace(c.DB.Path) == "" {
		errs = append(errs, errors.New("db.path is required"))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, errors.New("llm.max_tokens must be positive"))
	}
	if c.PriorArt.Concurrency <= 0 {
		errs = append(errs, errors.New("priorart.concurrency must be positive"))
	}
	if c.IDs.MaxAttempts <= 0 {
		errs = append(errs, errors.New("ids.max_attempts must be positive"))
	}
	if c.Probe.Enabled() && !strings.Contains(c.Probe.URLTemplate, "{number}") {
		errs = append(errs, errors.New("probe.url_template must contain {number}"))
	}
	return errors.Join(errs...)
}
