package config

import (
	"os"
	"time"
)

const (
	DefaultMode         = ModeProduction
	DefaultHTTPAddr     = ":8080"
	DefaultDBPath       = "data/office-action-response.db"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultModel        = "claude-sonnet-4-20250514"
	DefaultMaxTokens    = 8192
	DefaultLLMTimeout   = 3 * time.Minute
	DefaultRetryDelay   = time.Second
	DefaultAuditDir     = "data/audit"
	DefaultPriorArtURL  = "https://patents.google.com/patent/"
	DefaultConcurrency  = 4
	DefaultSearchURL    = "https://api.uspto.gov/api/v1/patent/applications"
	DefaultServiceName  = "office-action-response"
	DefaultIDAttempts   = 10
	DefaultProbeElement = "div.claims div.claim[num]"
)

// ApplyDefaults fills zero-value fields. Explicit settings always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}
	if cfg.DB.Path == "" {
		cfg.DB.Path = DefaultDBPath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
		if cfg.Mode == ModeDevelopment {
			cfg.Log.Format = "console"
		}
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = DefaultMaxTokens
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = DefaultLLMTimeout
	}
	if cfg.LLM.RetryDelay == 0 {
		cfg.LLM.RetryDelay = DefaultRetryDelay
	}

	if cfg.Audit.Dir == "" {
		cfg.Audit.Dir = DefaultAuditDir
	}
	if cfg.PriorArt.BaseURL == "" {
		cfg.PriorArt.BaseURL = DefaultPriorArtURL
	}
	if cfg.PriorArt.Concurrency == 0 {
		cfg.PriorArt.Concurrency = DefaultConcurrency
	}
	if cfg.Search.BaseURL == "" {
		cfg.Search.BaseURL = DefaultSearchURL
	}
	if cfg.Probe.Enabled() && cfg.Probe.Selector == "" {
		cfg.Probe.Selector = DefaultProbeElement
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
	if cfg.IDs.MaxAttempts == 0 {
		cfg.IDs.MaxAttempts = DefaultIDAttempts
	}
}
