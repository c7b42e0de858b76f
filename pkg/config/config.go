package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/getmockd/inspectd/pkg/capture"
	"github.com/getmockd/inspectd/pkg/decode"
)

// Defaults.
const (
	DefaultListen      = "127.0.0.1:4300"
	DefaultProxyListen = "127.0.0.1:8888"
)

// Config is the complete inspectd configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Decode    DecodeConfig    `yaml:"decode"`
	Signature SignatureConfig `yaml:"signature"`
	Log       LogConfig       `yaml:"log"`
}

// ProxyConfig configures the live capture proxy.
type ProxyConfig struct {
	Listen        string   `yaml:"listen"`
	Enabled       bool     `yaml:"enabled"`
	CACert        string   `yaml:"ca_cert"`
	CAKey         string   `yaml:"ca_key"`
	IncludeHosts  []string `yaml:"include_hosts"`
	ExcludeHosts  []string `yaml:"exclude_hosts"`
	IncludePaths  []string `yaml:"include_paths"`
	ExcludePaths  []string `yaml:"exclude_paths"`
	SignaturePath string   `yaml:"signature_path"`
}

// SessionsConfig locates session dumps.
type SessionsConfig struct {
	Dir        string `yaml:"dir"`
	DumpOnExit bool   `yaml:"dump_on_exit"`
}

// DecodeConfig selects the body decoder.
type DecodeConfig struct {
	Backend    string        `yaml:"backend"`
	ProtocPath string        `yaml:"protoc_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SignatureConfig selects the signature schema. An empty ProtoFile uses the
// built-in schema.
type SignatureConfig struct {
	ProtoFile string `yaml:"proto_file"`
	Message   string `yaml:"message"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	caDir := filepath.Join(DefaultDataDir(), "ca")
	return &Config{
		Listen: DefaultListen,
		Proxy: ProxyConfig{
			Listen:  DefaultProxyListen,
			Enabled: true,
			CACert:  filepath.Join(caDir, "ca.crt"),
			CAKey:   filepath.Join(caDir, "ca.key"),
		},
		Sessions: SessionsConfig{
			Dir: filepath.Join(DefaultDataDir(), "sessions"),
		},
		Decode: DecodeConfig{
			Backend: decode.BackendBuiltin,
			Timeout: decode.DefaultTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Filter returns the capture filter described by the proxy section.
func (c *Config) Filter() *capture.Filter {
	return &capture.Filter{
		IncludeHosts: c.Proxy.IncludeHosts,
		ExcludeHosts: c.Proxy.ExcludeHosts,
		IncludePaths: c.Proxy.IncludePaths,
		ExcludePaths: c.Proxy.ExcludePaths,
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.Proxy.Enabled && c.Proxy.Listen == "" {
		errs = append(errs, errors.New("proxy.listen is required when the proxy is enabled"))
	}
	switch c.Decode.Backend {
	case decode.BackendBuiltin, decode.BackendProtoc:
	default:
		errs = append(errs, fmt.Errorf("decode.backend: %w: %q", decode.ErrUnknownBackend, c.Decode.Backend))
	}
	if c.Decode.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("decode.timeout must be positive, got %s", c.Decode.Timeout))
	}
	if _, err := capture.ParseFieldPath(c.Proxy.SignaturePath); err != nil {
		errs = append(errs, fmt.Errorf("proxy.signature_path: %w", err))
	}
	if err := c.Filter().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("proxy: %w", err))
	}
	if c.Signature.Message != "" && c.Signature.ProtoFile == "" {
		errs = append(errs, errors.New("signature.message requires signature.proto_file"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
