// Package config provides configuration types for CES Gate.
package config

// Config is the top-level configuration for CES Gate.
type Config struct {
	// Server configures the HTTP server listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Classifier configures the semantic classification fallback.
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`

	// Constitution configures the policy rule set the gate enforces.
	Constitution ConstitutionConfig `yaml:"constitution" mapstructure:"constitution"`

	// Audit configures where the audit trail is written.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// RateLimit configures per-caller throttling of the process endpoint.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// HTTPAddr is the listen address (e.g. ":8080").
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"required"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// ClassifierConfig configures the semantic fallback tier. With no providers
// configured the classifier is reflex-only and unmatched inputs take the safe
// default.
type ClassifierConfig struct {
	// Providers is the ordered fallback chain. The first provider that
	// answers wins.
	Providers []ProviderConfig `yaml:"providers" mapstructure:"providers" validate:"omitempty,dive"`
	// Timeout bounds the whole semantic fallback call (e.g. "10s").
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`
	// AttemptTimeout bounds each individual provider attempt (e.g. "8s").
	AttemptTimeout string `yaml:"attempt_timeout" mapstructure:"attempt_timeout" validate:"omitempty,duration"`
}

// ProviderConfig configures one classification backend.
type ProviderConfig struct {
	// Name identifies the provider and selects the wire format
	// ("gemini" or "openai"; unknown names use the OpenAI-compatible format).
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// Endpoint is the full URL of the generation API.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`
	// Model is the backend model identifier.
	Model string `yaml:"model" mapstructure:"model"`
	// APIKeyEnv names the environment variable holding the API key. Keys are
	// never stored in the config file itself.
	APIKeyEnv string `yaml:"api_key_env" mapstructure:"api_key_env" validate:"required"`
}

// ConstitutionConfig configures the rule set.
type ConstitutionConfig struct {
	// Path is the YAML constitution file. A missing or unparseable file
	// yields an empty rule set plus a logged warning.
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
	// FailMode decides what an empty rule set means: "open" (zero
	// enforcement, the default) or "closed" (block everything).
	FailMode string `yaml:"fail_mode" mapstructure:"fail_mode" validate:"omitempty,oneof=open closed"`
}

// AuditConfig configures the audit trail destination.
type AuditConfig struct {
	// Output is "stdout", "file://<absolute-path>" for JSON Lines, or
	// "sqlite://<absolute-path>" for a SQLite database.
	Output string `yaml:"output" mapstructure:"output" validate:"omitempty,audit_output"`
}

// RateLimitConfig configures per-caller throttling. Callers are keyed by
// user id when supplied, otherwise by remote host.
type RateLimitConfig struct {
	// Enabled turns throttling on. Off by default.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Rate is the number of allowed requests per period.
	Rate int `yaml:"rate" mapstructure:"rate" validate:"omitempty,min=1"`
	// Burst is how many requests may arrive at once.
	Burst int `yaml:"burst" mapstructure:"burst" validate:"omitempty,min=1"`
	// Period is the rate window (e.g. "1m").
	Period string `yaml:"period" mapstructure:"period" validate:"omitempty,duration"`
}

// Defaults applied for optional fields.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultLogLevel        = "info"
	DefaultFailMode        = "open"
	DefaultAuditOutput     = "stdout"
	DefaultTimeout         = "10s"
	DefaultAttemptTimeout  = "8s"
	DefaultRateLimitRate   = 100
	DefaultRateLimitBurst  = 100
	DefaultRateLimitPeriod = "1m"
)

// SetDefaults populates optional fields that were left empty.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = DefaultLogLevel
	}
	if c.Constitution.FailMode == "" {
		c.Constitution.FailMode = DefaultFailMode
	}
	if c.Audit.Output == "" {
		c.Audit.Output = DefaultAuditOutput
	}
	if c.Classifier.Timeout == "" {
		c.Classifier.Timeout = DefaultTimeout
	}
	if c.Classifier.AttemptTimeout == "" {
		c.Classifier.AttemptTimeout = DefaultAttemptTimeout
	}
	// Sub-defaults are always populated so they are ready if throttling
	// is enabled later via env override.
	if c.RateLimit.Rate == 0 {
		c.RateLimit.Rate = DefaultRateLimitRate
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = DefaultRateLimitBurst
	}
	if c.RateLimit.Period == "" {
		c.RateLimit.Period = DefaultRateLimitPeriod
	}
}
