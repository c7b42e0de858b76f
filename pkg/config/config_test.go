package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/inspectd/pkg/decode"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inspectd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultProxyListen, cfg.Proxy.Listen)
	assert.Equal(t, decode.BackendBuiltin, cfg.Decode.Backend)
	assert.Equal(t, 10*time.Second, cfg.Decode.Timeout)
	assert.NotEmpty(t, cfg.Sessions.Dir)
	require.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
listen: 0.0.0.0:5000
proxy:
  listen: 127.0.0.1:9999
  exclude_hosts: ["*.telemetry.example"]
  signature_path: "6.2"
sessions:
  dir: /srv/sessions
  dump_on_exit: true
decode:
  backend: protoc
  protoc_path: /usr/local/bin/protoc
  timeout: 3s
log:
  level: debug
  format: json
`)
	t.Setenv(EnvListen, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.Listen)
	assert.Equal(t, "127.0.0.1:9999", cfg.Proxy.Listen)
	assert.Equal(t, []string{"*.telemetry.example"}, cfg.Proxy.ExcludeHosts)
	assert.Equal(t, "6.2", cfg.Proxy.SignaturePath)
	assert.Equal(t, "/srv/sessions", cfg.Sessions.Dir)
	assert.True(t, cfg.Sessions.DumpOnExit)
	assert.Equal(t, decode.BackendProtoc, cfg.Decode.Backend)
	assert.Equal(t, 3*time.Second, cfg.Decode.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	// Keys absent from the file keep their defaults.
	assert.True(t, cfg.Proxy.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, ErrFileNotFound)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := Load(writeConfig(t, "  \n"))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "listen: [unclosed"))
		assert.ErrorIs(t, err, ErrInvalidYAML)
	})
	t.Run("unknown key", func(t *testing.T) {
		_, err := Load(writeConfig(t, "listne: 127.0.0.1:1\n"))
		assert.ErrorIs(t, err, ErrInvalidYAML)
	})
	t.Run("directory", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvListen:        "127.0.0.1:1",
		EnvProxyListen:   "127.0.0.1:2",
		EnvSessionsDir:   "/tmp/s",
		EnvDecoder:       "protoc",
		EnvDecodeTimeout: "15",
		EnvLogLevel:      "warn",
		EnvLogFormat:     "json",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, ApplyEnv(cfg, lookup))

	assert.Equal(t, "127.0.0.1:1", cfg.Listen)
	assert.Equal(t, "127.0.0.1:2", cfg.Proxy.Listen)
	assert.Equal(t, "/tmp/s", cfg.Sessions.Dir)
	assert.Equal(t, "protoc", cfg.Decode.Backend)
	assert.Equal(t, 15*time.Second, cfg.Decode.Timeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	env[EnvDecodeTimeout] = "500ms"
	require.NoError(t, ApplyEnv(cfg, lookup))
	assert.Equal(t, 500*time.Millisecond, cfg.Decode.Timeout)

	env[EnvDecodeTimeout] = "soon"
	assert.Error(t, ApplyEnv(cfg, lookup))
}

func TestApplyEnv_EmptyValuesIgnored(t *testing.T) {
	cfg := Default()
	require.NoError(t, ApplyEnv(cfg, func(string) (string, bool) { return "", true }))
	assert.Equal(t, Default(), cfg)
	require.NoError(t, ApplyEnv(cfg, noEnv))
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"unknown backend", func(c *Config) { c.Decode.Backend = "magic" }, decode.ErrUnknownBackend},
		{"zero timeout", func(c *Config) { c.Decode.Timeout = 0 }, ErrInvalidConfig},
		{"negative timeout", func(c *Config) { c.Decode.Timeout = -time.Second }, ErrInvalidConfig},
		{"empty listen", func(c *Config) { c.Listen = "" }, ErrInvalidConfig},
		{"empty proxy listen", func(c *Config) { c.Proxy.Listen = "" }, ErrInvalidConfig},
		{"bad signature path", func(c *Config) { c.Proxy.SignaturePath = "6.x" }, ErrInvalidConfig},
		{"bad filter", func(c *Config) { c.Proxy.IncludePaths = []string{"/api/["} }, ErrInvalidConfig},
		{"message without file", func(c *Config) { c.Signature.Message = "a.B" }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidate_ProxyDisabledNeedsNoListen(t *testing.T) {
	cfg := Default()
	cfg.Proxy.Enabled = false
	cfg.Proxy.Listen = ""
	assert.NoError(t, cfg.Validate())
}

func TestFilter(t *testing.T) {
	cfg := Default()
	cfg.Proxy.ExcludeHosts = []string{"ads.example"}
	cfg.Proxy.IncludePaths = []string{"/api/**"}

	f := cfg.Filter()
	assert.True(t, f.ShouldCapture("game.example", "/api/v1/state"))
	assert.False(t, f.ShouldCapture("ads.example", "/api/v1/state"))
	assert.False(t, f.ShouldCapture("game.example", "/static/logo.png"))
}

func TestDefaultDataDir_XDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	assert.Equal(t, filepath.Join("/xdg/data", "inspectd"), DefaultDataDir())

	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	assert.Equal(t, filepath.Join("/xdg/config", "inspectd", "config.yaml"), DefaultConfigFile())
}
