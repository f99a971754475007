package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CONTRACTS_"

type AppConfig struct {
	ListenAddr string          `koanf:"listen_addr" mapstructure:"listen_addr"`
	Log        LogConfig       `koanf:"log" mapstructure:"log"`
	Rainbow    UpstreamConfig  `koanf:"rainbow" mapstructure:"rainbow"`
	TMForum    UpstreamConfig  `koanf:"tmforum" mapstructure:"tmforum"`
	Transport  TransportConfig `koanf:"transport" mapstructure:"transport"`
	Cleanup    CleanupConfig   `koanf:"cleanup" mapstructure:"cleanup"`
	// Core is handed to the service config loader untouched.
	Core map[string]any `koanf:"core" mapstructure:"core"`
}

type LogConfig struct {
	Mode  string `koanf:"mode" mapstructure:"mode"`
	Level string `koanf:"level" mapstructure:"level"`
}

type UpstreamConfig struct {
	BaseURL string        `koanf:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type TransportConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `koanf:"burst" mapstructure:"burst"`
}

type CleanupConfig struct {
	Enabled       bool          `koanf:"enabled" mapstructure:"enabled"`
	QueueCapacity int           `koanf:"queue_capacity" mapstructure:"queue_capacity"`
	MaxAttempts   int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay     time.Duration `koanf:"base_delay" mapstructure:"base_delay"`
	MaxDelay      time.Duration `koanf:"max_delay" mapstructure:"max_delay"`
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		ListenAddr: ":8080",
		Log:        LogConfig{Mode: "development", Level: "info"},
		Transport:  TransportConfig{RequestsPerSecond: 20, Burst: 40},
		Cleanup:    CleanupConfig{Enabled: true, QueueCapacity: 128},
		Core:       map[string]any{},
	}
}

func (c AppConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, fmt.Errorf("listen_addr is required"))
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Mode)) {
	case "development", "dev", "production", "prod":
	default:
		errs = append(errs, fmt.Errorf("log.mode %q must be development or production", c.Log.Mode))
	}
	if _, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(c.Log.Level))); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Rainbow.Timeout < 0 || c.TMForum.Timeout < 0 {
		errs = append(errs, fmt.Errorf("upstream timeouts must not be negative"))
	}
	if c.Transport.RequestsPerSecond < 0 || c.Transport.Burst < 0 {
		errs = append(errs, fmt.Errorf("transport rate limit must not be negative"))
	}
	if c.Cleanup.Enabled && c.Cleanup.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("cleanup.queue_capacity must be positive when cleanup is enabled"))
	}
	if c.Cleanup.MaxAttempts < 0 || c.Cleanup.BaseDelay < 0 || c.Cleanup.MaxDelay < 0 {
		errs = append(errs, fmt.Errorf("cleanup retry settings must not be negative"))
	}
	return errors.Join(errs...)
}

// loadAppConfig layers defaults, the YAML file at path and CONTRACTS_*
// environment overrides, in that order.
func loadAppConfig(path string) (AppConfig, error) {
	return loadAppConfigFrom(path, os.LookupEnv)
}

func loadAppConfigFrom(path string, lookup func(string) (string, bool)) (AppConfig, error) {
	raw := map[string]any{}
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return AppConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}
	cfg, err := cfgx.Build[AppConfig](raw,
		cfgx.WithDefaults(defaultAppConfig()),
		cfgx.WithMerge[AppConfig](envLayer(lookup)),
		cfgx.WithValidator[AppConfig]((*AppConfig).Validate),
	)
	if err != nil {
		return AppConfig{}, fmt.Errorf("build config: %w", err)
	}
	if cfg.Core == nil {
		cfg.Core = map[string]any{}
	}
	return cfg, nil
}

// envLayer renders the set CONTRACTS_* variables as a nested config map.
// Values stay strings; the decoder converts them to the field types.
func envLayer(lookup func(string) (string, bool)) map[string]any {
	layer := map[string]any{}
	set := func(key string, path ...string) {
		value, ok := lookup(envPrefix + key)
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		node := layer
		for _, part := range path[:len(path)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[part] = child
			}
			node = child
		}
		node[path[len(path)-1]] = strings.TrimSpace(value)
	}
	set("LISTEN_ADDR", "listen_addr")
	set("LOG_MODE", "log", "mode")
	set("LOG_LEVEL", "log", "level")
	set("RAINBOW_URL", "rainbow", "base_url")
	set("TMFORUM_URL", "tmforum", "base_url")
	set("CLEANUP_ENABLED", "cleanup", "enabled")
	set("ORGANIZATION_DID", "core", "organization", "did")
	return layer
}
