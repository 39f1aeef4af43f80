package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level plugin configuration.
type Config struct {
	AgentID   string          `yaml:"agent_id"`
	Store     StoreConfig     `yaml:"store"`
	Routing   RoutingConfig   `yaml:"routing"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// StoreConfig locates the document store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// RoutingConfig holds the dynamic model-routing settings. Durations are in
// milliseconds to match the stored document schema.
type RoutingConfig struct {
	Enabled        bool `yaml:"enabled"`
	CacheTTLMs     int  `yaml:"cache_ttl_ms"`
	StoreTimeoutMs int  `yaml:"store_timeout_ms"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds the per-model circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	CooldownMs       int `yaml:"cooldown_ms"`
	WindowMs         int `yaml:"window_ms"`
}

// DiscoveryConfig enumerates the gateway's model references and the
// re-discovery schedule.
type DiscoveryConfig struct {
	PrimaryModel   string   `yaml:"primary_model"`
	FallbackModels []string `yaml:"fallback_models"`
	CLIBackends    []string `yaml:"cli_backends"`
	// RediscoverCron is a five-field cron spec; empty disables scheduled
	// re-discovery.
	RediscoverCron string `yaml:"rediscover_cron"`
}

// KnowledgeConfig bounds context injection.
type KnowledgeConfig struct {
	MaxFacts  int `yaml:"max_facts"`
	MaxSkills int `yaml:"max_skills"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns the baseline configuration.
func Defaults() *Config {
	return &Config{
		AgentID: "default",
		Store:   StoreConfig{Path: "./lorekeeper.db"},
		Routing: RoutingConfig{
			Enabled:        true,
			CacheTTLMs:     60_000,
			StoreTimeoutMs: 3_000,
			Breaker: BreakerConfig{
				FailureThreshold: 3,
				CooldownMs:       300_000,
				WindowMs:         600_000,
			},
		},
		Discovery: DiscoveryConfig{},
		Knowledge: KnowledgeConfig{MaxFacts: 5, MaxSkills: 3},
		Logger:    LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
		Tracer:    TracerConfig{Enabled: false, Exporter: "noop"},
	}
}

// Load reads the YAML config at path over the defaults and applies
// environment overrides. A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to env overrides
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays LOREKEEPER_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("LOREKEEPER_AGENT_ID"); v != "" {
		cfg.AgentID = v
	}
	if v := os.Getenv("LOREKEEPER_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("LOREKEEPER_ROUTING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Routing.Enabled = b
		}
	}
	if v := os.Getenv("LOREKEEPER_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("LOREKEEPER_PRIMARY_MODEL"); v != "" {
		cfg.Discovery.PrimaryModel = v
	}
}
