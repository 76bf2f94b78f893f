package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/iotwatch/iotwatch/pkg/bus"
)

// Default values for the engine configuration.
const (
	DefaultHTTPPort         = 8080
	DefaultLogLevel         = "info"
	DefaultWindowSize       = 10
	DefaultHistory          = 200
	DefaultAlertsTable      = "alerts"
	DefaultMaxFetchFailures = 5
	DefaultSinkTimeout      = 5 * time.Second

	// Reference rule parameters.
	DefaultRuleDeviceID  int64 = 42
	DefaultRuleCondition       = "field_a > 5"
)

// Config holds the engine configuration parsed from the `engine:` section of
// the config file.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
}

// EngineConfig holds all rule engine settings.
type EngineConfig struct {
	// HTTPPort is the port the REST API, metrics and alert stream listen on
	// (default 8080).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of debug | info | warn | error (default info).
	// It is the only setting applied on hot reload.
	LogLevel string `yaml:"log_level"`

	// Transport configures the NATS JetStream consumer.
	Transport bus.Config `yaml:"transport"`

	// Consumer tunes the stream consumer loop.
	Consumer ConsumerConfig `yaml:"consumer"`

	// Window controls per-device event history.
	Window WindowConfig `yaml:"window"`

	// Rules is the ordered rule list. When empty, the two reference rules
	// (instant and continuous "field_a > 5" on device 42) are used.
	Rules []RuleConfig `yaml:"rules"`

	// Sinks configures where alerts go.
	Sinks SinksConfig `yaml:"sinks"`

	// Auth protects the REST API.
	Auth AuthConfig `yaml:"auth"`
}

// ConsumerConfig tunes the stream consumer loop.
type ConsumerConfig struct {
	// MaxFetchFailures is how many consecutive failed fetches are tolerated
	// before the transport is declared unusable (default 5).
	MaxFetchFailures int `yaml:"max_fetch_failures"`

	// SinkTimeout bounds a single alert persist call (default 5s).
	SinkTimeout time.Duration `yaml:"sink_timeout"`
}

// WindowConfig controls per-device event history.
type WindowConfig struct {
	// Size is the number of recent events kept per device (default 10).
	Size int `yaml:"size"`

	// MaxDevices bounds the number of tracked devices, evicting the least
	// recently updated one. 0 (default) means unbounded.
	MaxDevices int `yaml:"max_devices"`
}

// RuleConfig defines one alert rule.
type RuleConfig struct {
	// Name is the alert label. Defaults to the condition text, with
	// " for N messages" appended for continuous rules.
	Name string `yaml:"name"`

	// Kind is one of: instant | continuous.
	Kind string `yaml:"kind"`

	// DeviceID restricts the rule to one device. Omit to match every device.
	DeviceID *int64 `yaml:"device_id"`

	// Condition is a single comparison: "field_a > 5".
	Condition string `yaml:"condition"`

	// Window is the number of consecutive events a continuous rule needs.
	// Defaults to window.size; must not exceed it.
	Window int `yaml:"window"`
}

// SinksConfig configures alert persistence and notification.
type SinksConfig struct {
	// Postgres stores alerts in a table. Disabled when no DSN is resolved.
	Postgres PostgresConfig `yaml:"postgres"`

	// Webhooks receive a notification for every alert.
	Webhooks []WebhookConfig `yaml:"webhooks"`

	// History is how many recent alerts are kept in memory for the API and
	// the live stream (default 200).
	History int `yaml:"history"`
}

// PostgresConfig configures the Postgres alert sink.
type PostgresConfig struct {
	// DSNEnv is the name of the environment variable that holds the DSN.
	DSNEnv string `yaml:"dsn_env"`

	// Table is the alerts table name (default alerts).
	Table string `yaml:"table"`
}

// DSN returns the connection string resolved from the environment.
func (p PostgresConfig) DSN() string {
	if p.DSNEnv == "" {
		return ""
	}
	return os.Getenv(p.DSNEnv)
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// AuthConfig controls REST API authentication.
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

// ReferenceRules returns the default rule list: an instant and a continuous
// "field_a > 5" rule on device 42, the continuous one spanning windowSize
// events.
func ReferenceRules(windowSize int) []RuleConfig {
	id := DefaultRuleDeviceID
	return []RuleConfig{
		{Kind: "instant", DeviceID: &id, Condition: DefaultRuleCondition},
		{Kind: "continuous", DeviceID: &id, Condition: DefaultRuleCondition, Window: windowSize},
	}
}

// Load reads and parses the config file at path, returning the engine configuration.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML config data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("engine config: parse yaml: %w", err)
	}
	if len(cfg.Engine.Rules) == 0 {
		cfg.Engine.Rules = ReferenceRules(cfg.Engine.Window.Size)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			HTTPPort:  DefaultHTTPPort,
			LogLevel:  DefaultLogLevel,
			Transport: bus.Defaults(),
			Consumer: ConsumerConfig{
				MaxFetchFailures: DefaultMaxFetchFailures,
				SinkTimeout:      DefaultSinkTimeout,
			},
			Window: WindowConfig{
				Size: DefaultWindowSize,
			},
			Sinks: SinksConfig{
				Postgres: PostgresConfig{Table: DefaultAlertsTable},
				History:  DefaultHistory,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	e := cfg.Engine
	if e.HTTPPort <= 0 || e.HTTPPort > 65535 {
		return fmt.Errorf("engine.http_port %d is out of range [1, 65535]", e.HTTPPort)
	}
	if _, err := zapcore.ParseLevel(e.LogLevel); err != nil {
		return fmt.Errorf("engine.log_level: %w", err)
	}
	if err := e.Transport.Validate("engine.transport"); err != nil {
		return err
	}
	if e.Transport.Durable == "" {
		return fmt.Errorf("engine.transport.durable is required")
	}
	if e.Consumer.MaxFetchFailures <= 0 {
		return fmt.Errorf("engine.consumer.max_fetch_failures must be positive")
	}
	if e.Consumer.SinkTimeout <= 0 {
		return fmt.Errorf("engine.consumer.sink_timeout must be positive")
	}
	if e.Window.Size <= 0 {
		return fmt.Errorf("engine.window.size must be positive")
	}
	if e.Window.MaxDevices < 0 {
		return fmt.Errorf("engine.window.max_devices must not be negative")
	}
	for i, r := range e.Rules {
		switch r.Kind {
		case "instant":
		case "continuous":
			if r.Window < 0 || r.Window > e.Window.Size {
				return fmt.Errorf("engine.rules[%d]: window %d out of range [1, %d]", i, r.Window, e.Window.Size)
			}
		default:
			return fmt.Errorf("engine.rules[%d]: kind %q unknown: want instant|continuous", i, r.Kind)
		}
		if r.Condition == "" {
			return fmt.Errorf("engine.rules[%d]: condition is required", i)
		}
	}
	if e.Sinks.History < 0 {
		return fmt.Errorf("engine.sinks.history must not be negative")
	}
	if e.Sinks.Postgres.Table == "" {
		return fmt.Errorf("engine.sinks.postgres.table is required")
	}
	for i, wh := range e.Sinks.Webhooks {
		switch wh.Type {
		case "teams", "slack", "http":
		default:
			return fmt.Errorf("engine.sinks.webhooks[%d]: type %q unknown: want teams|slack|http", i, wh.Type)
		}
	}
	switch e.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("engine.auth.mode %q unknown: want apikey|none", e.Auth.Mode)
	}
	return nil
}
