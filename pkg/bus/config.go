package bus

import (
	"fmt"
	"os"
	"time"
)

// Default values for the transport configuration.
const (
	DefaultURL            = "nats://localhost:4222"
	DefaultStream         = "IOT"
	DefaultSubject        = "iot_data"
	DefaultDurable        = "rule-engine"
	DefaultMaxReconnects  = 10
	DefaultReconnectWait  = 2 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultMaxAge         = 24 * time.Hour
)

// Config holds the transport settings. It is embedded under `transport:` in
// both the engine and the ingest configuration files.
type Config struct {
	// URL is the NATS server URL (default nats://localhost:4222).
	URL string `yaml:"url"`

	// Stream is the JetStream stream holding telemetry (default IOT).
	Stream string `yaml:"stream"`

	// Subject is the subject events are published to and consumed from
	// (default iot_data).
	Subject string `yaml:"subject"`

	// Durable is the durable consumer name used by the engine
	// (default rule-engine). Ignored by publishers.
	Durable string `yaml:"durable"`

	// ClientName identifies the connection on the server.
	ClientName string `yaml:"client_name"`

	// TokenEnv is the name of the environment variable holding the auth token.
	TokenEnv string `yaml:"token_env"`

	// MaxReconnects bounds automatic reconnects before the connection is
	// closed for good (default 10). -1 retries forever.
	MaxReconnects int `yaml:"max_reconnects"`

	// ReconnectWait is the delay between reconnect attempts (default 2s).
	ReconnectWait time.Duration `yaml:"reconnect_wait"`

	// ConnectTimeout bounds the initial dial (default 5s).
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// MaxAge is how long the stream retains messages (default 24h).
	MaxAge time.Duration `yaml:"max_age"`
}

// Defaults returns a Config pre-populated with default values.
func Defaults() Config {
	return Config{
		URL:            DefaultURL,
		Stream:         DefaultStream,
		Subject:        DefaultSubject,
		Durable:        DefaultDurable,
		MaxReconnects:  DefaultMaxReconnects,
		ReconnectWait:  DefaultReconnectWait,
		ConnectTimeout: DefaultConnectTimeout,
		MaxAge:         DefaultMaxAge,
	}
}

// Token returns the auth token resolved from the environment.
func (c Config) Token() string {
	if c.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.TokenEnv)
}

// Validate checks structural constraints. prefix names the config section in
// error messages (e.g. "engine.transport").
func (c Config) Validate(prefix string) error {
	if c.URL == "" {
		return fmt.Errorf("%s.url is required", prefix)
	}
	if c.Stream == "" {
		return fmt.Errorf("%s.stream is required", prefix)
	}
	if c.Subject == "" {
		return fmt.Errorf("%s.subject is required", prefix)
	}
	if c.MaxReconnects < -1 {
		return fmt.Errorf("%s.max_reconnects must be >= -1", prefix)
	}
	if c.ReconnectWait < 0 || c.ConnectTimeout < 0 || c.MaxAge < 0 {
		return fmt.Errorf("%s: durations must not be negative", prefix)
	}
	return nil
}
