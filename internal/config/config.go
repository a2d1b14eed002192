// Package config loads onnxkit settings from an optional YAML file and ONNXKIT_* environment
// variables.
//
// Every key has a default. A file overrides the defaults, and the environment overrides the
// file: store.redis.addr is read from ONNXKIT_STORE_REDIS_ADDR.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/onnxkit/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ONNXKIT"

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the complete onnxkit configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Checker CheckerConfig `mapstructure:"checker"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxModelBytes   int64         `mapstructure:"max_model_bytes"`
}

type StoreConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type CheckerConfig struct {
	AllowCustomDomains bool `mapstructure:"allow_custom_domains"`
}

type MetricsConfig struct {
	// Textfile, when set, is where the CLI dumps its metrics on exit.
	Textfile string `mapstructure:"textfile"`
}

func defaults() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level":  "info",
			"format": logging.FormatText,
		},
		"server": map[string]any{
			"addr":             ":8080",
			"shutdown_timeout": "5s",
			"max_model_bytes":  256 << 20,
		},
		"store": map[string]any{
			"backend": BackendMemory,
			"redis": map[string]any{
				"addr":     "localhost:6379",
				"password": "",
				"db":       0,
				"prefix":   "onnxkit:model:",
				"ttl":      "0s",
			},
		},
		"checker": map[string]any{
			"allow_custom_domains": false,
		},
		"metrics": map[string]any{
			"textfile": "",
		},
	}
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := decode(defaults())
	if err != nil {
		panic(err) // defaults are static
	}
	return cfg
}

// Load reads path (skipped when empty) and the environment. The result is validated.
func Load(path string) (*Config, error) {
	raw := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		var file map[string]any
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if err := merge(raw, file, nil); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	overlayEnv(raw, nil)

	cfg, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge copies src over dst. Keys missing from dst are unknown settings.
func merge(dst, src map[string]any, path []string) error {
	for k, v := range src {
		key := append(append([]string(nil), path...), k)
		cur, ok := dst[k]
		if !ok {
			return fmt.Errorf("unknown setting %q", strings.Join(key, "."))
		}
		if section, ok := cur.(map[string]any); ok {
			sub, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("setting %q must be a mapping", strings.Join(key, "."))
			}
			if err := merge(section, sub, key); err != nil {
				return err
			}
			continue
		}
		dst[k] = v
	}
	return nil
}

// overlayEnv replaces every leaf of raw for which an environment variable is set.
func overlayEnv(raw map[string]any, path []string) {
	for k, v := range raw {
		key := append(append([]string(nil), path...), k)
		if section, ok := v.(map[string]any); ok {
			overlayEnv(section, key)
			continue
		}
		if val, ok := os.LookupEnv(EnvName(key...)); ok {
			raw[k] = val
		}
	}
}

// EnvName returns the environment variable of the setting at path.
func EnvName(path ...string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.Join(path, "_"))
}

// Keys lists every setting as a dotted path, sorted.
func Keys() []string {
	var keys []string
	var walk func(m map[string]any, prefix string)
	walk = func(m map[string]any, prefix string) {
		for k, v := range m {
			if section, ok := v.(map[string]any); ok {
				walk(section, prefix+k+".")
				continue
			}
			keys = append(keys, prefix+k)
		}
	}
	walk(defaults(), "")
	sort.Strings(keys)
	return keys
}

func decode(raw map[string]any) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that decode fine but cannot be used.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid config: log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid config: log.format must be %q or %q, got %q", logging.FormatText, logging.FormatJSON, c.Log.Format)
	}
	switch c.Store.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("invalid config: store.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.Store.Backend)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("invalid config: server.addr is empty")
	}
	if c.Server.MaxModelBytes <= 0 {
		return fmt.Errorf("invalid config: server.max_model_bytes must be positive")
	}
	if c.Store.Redis.TTL < 0 {
		return fmt.Errorf("invalid config: store.redis.ttl must not be negative")
	}
	return nil
}
