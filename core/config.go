package core

import (
	"fmt"
	"strings"
	"time"
)

type DeliveryConfig struct {
	// DryRun suppresses every outbound write without failing the send.
	DryRun         bool `koanf:"dry_run" mapstructure:"dry_run"`
	RecordPayloads bool `koanf:"record_payloads" mapstructure:"record_payloads"`
}

type SettingsConfig struct {
	CacheTTLSeconds int `koanf:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
}

type HTTPConfig struct {
	TimeoutSeconds       int   `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxResponseBodyBytes int64 `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Delivery    DeliveryConfig `koanf:"delivery" mapstructure:"delivery"`
	Settings    SettingsConfig `koanf:"settings" mapstructure:"settings"`
	HTTP        HTTPConfig     `koanf:"http" mapstructure:"http"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "integrations",
		Settings: SettingsConfig{
			CacheTTLSeconds: 300,
		},
		HTTP: HTTPConfig{
			TimeoutSeconds:       30,
			MaxResponseBodyBytes: 4 << 20,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Settings.CacheTTLSeconds < 0 {
		return fmt.Errorf("core: settings.cache_ttl_seconds must be >= 0")
	}
	if c.HTTP.TimeoutSeconds < 0 {
		return fmt.Errorf("core: http.timeout_seconds must be >= 0")
	}
	if c.HTTP.MaxResponseBodyBytes < 0 {
		return fmt.Errorf("core: http.max_response_body_bytes must be >= 0")
	}
	return nil
}

func (c SettingsConfig) CacheTTL() time.Duration {
	if c.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c HTTPConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
