package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults_Valid(t *testing.T) {
	c := Defaults()
	assert.NoError(t, c.Validate("transport"))
	assert.Equal(t, DefaultURL, c.URL)
	assert.Equal(t, DefaultStream, c.Stream)
	assert.Equal(t, DefaultSubject, c.Subject)
	assert.Equal(t, DefaultDurable, c.Durable)
	assert.Empty(t, c.Token())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"url", func(c *Config) { c.URL = "" }, "engine.transport.url is required"},
		{"stream", func(c *Config) { c.Stream = "" }, "engine.transport.stream is required"},
		{"subject", func(c *Config) { c.Subject = "" }, "engine.transport.subject is required"},
		{"reconnects", func(c *Config) { c.MaxReconnects = -2 }, "max_reconnects"},
		{"durations", func(c *Config) { c.ReconnectWait = -time.Second }, "durations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate("engine.transport"), tt.want)
		})
	}
}

func TestValidate_UnlimitedReconnects(t *testing.T) {
	c := Defaults()
	c.MaxReconnects = -1
	assert.NoError(t, c.Validate("transport"))
}

func TestToken_FromEnv(t *testing.T) {
	t.Setenv("TEST_NATS_TOKEN", "s3cret")
	c := Defaults()
	c.TokenEnv = "TEST_NATS_TOKEN"
	assert.Equal(t, "s3cret", c.Token())
}
