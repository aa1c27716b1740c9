package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "OARESP"

// keys lists every setting so that AutomaticEnv can see it during Unmarshal.
var keys = []string{
	"mode",
	"http.addr",
	"db.path",
	"log.level", "log.format",
	"llm.api_key", "llm.model", "llm.max_tokens", "llm.timeout", "llm.retry_delay",
	"audit.dir",
	"priorart.base_url", "priorart.concurrency",
	"search.base_url", "search.api_key",
	"probe.url_template", "probe.selector",
	"render.chrome_path",
	"telemetry.otlp_endpoint", "telemetry.service_name",
	"ids.max_attempts",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads configPath when it is non-empty, applies OARESP_* overrides and
// defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", configPath, err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
