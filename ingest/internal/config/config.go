package config

import (
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/iotwatch/iotwatch/pkg/bus"
)

// Default values for the ingest configuration.
const (
	DefaultHTTPPort      = 50051
	DefaultLogLevel      = "info"
	DefaultMessagesTable = "messages"
	DefaultMaxBodyBytes  = 64 << 10
)

// Config holds the ingest configuration parsed from the `ingest:` section.
type Config struct {
	Ingest IngestConfig `yaml:"ingest"`
}

// IngestConfig holds all ingest service settings.
type IngestConfig struct {
	// HTTPPort is the port POST /data listens on (default 50051).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of debug | info | warn | error (default info).
	LogLevel string `yaml:"log_level"`

	// MaxBodyBytes caps the request body size (default 64 KiB).
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// Transport is where accepted telemetry is published.
	Transport bus.Config `yaml:"transport"`

	// Archive stores every accepted raw message. Disabled when no DSN is
	// resolved.
	Archive ArchiveConfig `yaml:"archive"`

	// Auth protects POST /data.
	Auth AuthConfig `yaml:"auth"`
}

// ArchiveConfig configures the raw message archive.
type ArchiveConfig struct {
	// DSNEnv is the name of the environment variable that holds the DSN.
	DSNEnv string `yaml:"dsn_env"`

	// Table is the messages table name (default messages).
	Table string `yaml:"table"`
}

// DSN returns the connection string resolved from the environment.
func (a ArchiveConfig) DSN() string {
	if a.DSNEnv == "" {
		return ""
	}
	return os.Getenv(a.DSNEnv)
}

// AuthConfig controls ingest authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest config: read %q: %w", path, err)
	}
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ingest config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("ingest config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Ingest: IngestConfig{
			HTTPPort:     DefaultHTTPPort,
			LogLevel:     DefaultLogLevel,
			MaxBodyBytes: DefaultMaxBodyBytes,
			Transport:    bus.Defaults(),
			Archive:      ArchiveConfig{Table: DefaultMessagesTable},
		},
	}
}

func validate(cfg *Config) error {
	in := cfg.Ingest
	if in.HTTPPort <= 0 || in.HTTPPort > 65535 {
		return fmt.Errorf("ingest.http_port %d is out of range [1, 65535]", in.HTTPPort)
	}
	if _, err := zapcore.ParseLevel(in.LogLevel); err != nil {
		return fmt.Errorf("ingest.log_level: %w", err)
	}
	if in.MaxBodyBytes <= 0 {
		return fmt.Errorf("ingest.max_body_bytes must be positive")
	}
	if err := in.Transport.Validate("ingest.transport"); err != nil {
		return err
	}
	if in.Archive.Table == "" {
		return fmt.Errorf("ingest.archive.table is required")
	}
	switch in.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("ingest.auth.mode %q unknown: want apikey|none", in.Auth.Mode)
	}
	return nil
}
