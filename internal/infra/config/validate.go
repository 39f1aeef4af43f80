package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness, returning a
// *ValidationError listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}

	if strings.TrimSpace(cfg.AgentID) == "" {
		ve.Add("agent_id must not be empty")
	}
	if strings.TrimSpace(cfg.Store.Path) == "" {
		ve.Add("store.path must not be empty")
	}
	if cfg.Routing.CacheTTLMs < 0 {
		ve.Add("routing.cache_ttl_ms must be >= 0")
	}
	if cfg.Routing.StoreTimeoutMs < 0 {
		ve.Add("routing.store_timeout_ms must be >= 0")
	}
	if cfg.Routing.Breaker.FailureThreshold < 0 {
		ve.Add("routing.breaker.failure_threshold must be >= 0")
	}
	if cfg.Routing.Breaker.CooldownMs < 0 {
		ve.Add("routing.breaker.cooldown_ms must be >= 0")
	}
	if cfg.Routing.Breaker.WindowMs < 0 {
		ve.Add("routing.breaker.window_ms must be >= 0")
	}
	if cfg.Knowledge.MaxFacts < 0 {
		ve.Add("knowledge.max_facts must be >= 0")
	}
	if cfg.Knowledge.MaxSkills < 0 {
		ve.Add("knowledge.max_skills must be >= 0")
	}
	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q is not a known level", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Tracer.Exporter) {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is not supported", cfg.Tracer.Exporter)
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}
