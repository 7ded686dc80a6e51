package lmbconfig

import (
	"github.com/henry40408/lmb/internal/sandbox"
)

// Config represents an lmb.yaml configuration file. All values are
// optional and act as defaults for CLI flags. CLI flags always override
// config values.
type Config struct {
	Store   StoreConfig    `yaml:"store"`
	Eval    EvalConfig     `yaml:"eval"`
	Server  ServerConfig   `yaml:"server"`
	Sandbox SandboxConfig  `yaml:"sandbox"`
	FS      FSConfig       `yaml:"fs"`
	Adapter *AdapterConfig `yaml:"adapter,omitempty"`
}

// AdapterConfig configures the optional run-completion event adapter
// (§6's supplemental feature): at most one of Redis or Webhook is set.
type AdapterConfig struct {
	Redis   *RedisAdapterConfig   `yaml:"redis,omitempty"`
	Webhook *WebhookAdapterConfig `yaml:"webhook,omitempty"`
}

// RedisAdapterConfig configures the Redis pub/sub adapter.
type RedisAdapterConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel,omitempty"`
}

// WebhookAdapterConfig configures the HTTP webhook adapter.
type WebhookAdapterConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// StoreConfig holds KV store defaults from the config file.
type StoreConfig struct {
	Path string         `yaml:"path"`
	S3   *StoreS3Config `yaml:"s3,omitempty"`
}

// StoreS3Config holds the optional S3 durability mirror defaults (§4.2's
// "Supplemental feature — optional S3 mirror"). Presence of this block
// enables the mirror; it is never used to gate @lmb/fs's s3_get/s3_put
// helpers, which are configured separately under FSConfig.
type StoreS3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style"`
	Prefix       string `yaml:"prefix,omitempty"`
	Source       string `yaml:"source,omitempty"`
}

// FSConfig holds @lmb/fs defaults.
type FSConfig struct {
	S3 *FSS3Config `yaml:"s3,omitempty"`
}

// FSS3Config configures @lmb/fs's s3_get/s3_put helpers (§4.8): a script
// may only reach a bucket named in AllowedBuckets.
type FSS3Config struct {
	Region         string   `yaml:"region"`
	Endpoint       string   `yaml:"endpoint,omitempty"`
	UsePathStyle   bool     `yaml:"use_path_style"`
	AllowedBuckets []string `yaml:"allowed_buckets"`
}

// EvalConfig holds per-evaluation defaults: the watchdog timeout and the
// env var names a script is permitted to read via getenv.
type EvalConfig struct {
	TimeoutMS  int64    `yaml:"timeout_ms"`
	AllowedEnv []string `yaml:"allowed_env"`
}

// ServerConfig holds `lmb serve` defaults.
type ServerConfig struct {
	Bind    string `yaml:"bind"`
	Workers int    `yaml:"workers"`
}

// SandboxConfig holds the sandbox builder's instruction-watchdog defaults
// (§4.1's "memory and instruction limits configurable" requirement —
// gopher-lua exposes no heap-byte counter, so the knob that actually
// exists is the instruction-count watchdog; see internal/sandbox.Limits).
type SandboxConfig struct {
	InstructionQuantum int   `yaml:"instruction_quantum"`
	MaxInstructions    int64 `yaml:"max_instructions"`
}

// AllowedEnvMap converts the configured allow-list into sandbox.AllowedEnv.
func (c *Config) AllowedEnvMap() sandbox.AllowedEnv {
	if len(c.Eval.AllowedEnv) == 0 {
		return nil
	}
	m := make(sandbox.AllowedEnv, len(c.Eval.AllowedEnv))
	for _, name := range c.Eval.AllowedEnv {
		m[name] = true
	}
	return m
}

// Limits converts the configured sandbox defaults into sandbox.Limits.
func (c *Config) Limits() sandbox.Limits {
	return sandbox.Limits{
		InstructionQuantum: c.Sandbox.InstructionQuantum,
		MaxInstructions:    c.Sandbox.MaxInstructions,
	}
}
