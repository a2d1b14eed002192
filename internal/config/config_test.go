package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "onnxkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "onnxkit:model:", cfg.Store.Redis.Prefix)
	assert.Zero(t, cfg.Store.Redis.TTL)
	assert.False(t, cfg.Checker.AllowCustomDomains)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
store:
  backend: redis
  redis:
    addr: redis:6379
    db: 2
    ttl: 1h
checker:
  allow_custom_domains: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "unset keys keep their default")
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.True(t, cfg.Checker.AllowCustomDomains)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9000\"\n")
	t.Setenv("ONNXKIT_SERVER_ADDR", ":7000")
	t.Setenv("ONNXKIT_STORE_REDIS_DB", "3")
	t.Setenv("ONNXKIT_CHECKER_ALLOW_CUSTOM_DOMAINS", "true")
	t.Setenv("ONNXKIT_STORE_REDIS_TTL", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Store.Redis.DB)
	assert.True(t, cfg.Checker.AllowCustomDomains)
	assert.Equal(t, 90*time.Second, cfg.Store.Redis.TTL)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "log:\n  colour: red\n", `unknown setting "log.colour"`},
		{"unknown section", "tracing: {}\n", `unknown setting "tracing"`},
		{"section is scalar", "store: redis\n", `setting "store" must be a mapping`},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"bad backend", "store:\n  backend: s3\n", "store.backend"},
		{"bad duration", "server:\n  shutdown_timeout: soon\n", "invalid config"},
		{"not yaml", "log: [", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestKeysAndEnvNames(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "store.redis.addr")
	assert.Contains(t, keys, "metrics.textfile")
	assert.IsIncreasing(t, keys)
	assert.Equal(t, "ONNXKIT_STORE_REDIS_ADDR", EnvName("store", "redis", "addr"))
}
