package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// ErrClosed is returned by Publisher once its connection is closed.
var ErrClosed = errors.New("bus: connection closed")

// Connect dials NATS using cfg. Connection lifecycle events are logged to
// logger. Extra options are applied last and may override the defaults.
func Connect(cfg Config, logger *zap.Logger, extra ...nats.Option) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("bus: disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("bus: reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("bus: connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("bus: async error", zap.Error(err))
		}),
	}
	if cfg.ClientName != "" {
		opts = append(opts, nats.Name(cfg.ClientName))
	}
	if tok := cfg.Token(); tok != "" {
		opts = append(opts, nats.Token(tok))
	}
	opts = append(opts, extra...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("bus: connect %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// EnsureStream creates the telemetry stream, or updates it to match cfg if
// it already exists.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg Config) (jetstream.Stream, error) {
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject},
		Storage:  jetstream.FileStorage,
		MaxAge:   cfg.MaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("bus: ensure stream %q: %w", cfg.Stream, err)
	}
	return stream, nil
}

// Publisher sends messages to the configured subject and waits for the
// stream's acknowledgement.
type Publisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
	logger  *zap.Logger
}

// NewPublisher connects to NATS and ensures the stream exists.
func NewPublisher(ctx context.Context, cfg Config, logger *zap.Logger) (*Publisher, error) {
	nc, err := Connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bus: jetstream: %w", err)
	}
	if _, err := EnsureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, err
	}
	logger.Info("bus: publisher ready",
		zap.String("url", cfg.URL),
		zap.String("stream", cfg.Stream),
		zap.String("subject", cfg.Subject),
	)
	return &Publisher{nc: nc, js: js, subject: cfg.Subject, logger: logger}, nil
}

// Publish sends data and blocks until the stream has stored it or ctx ends.
func (p *Publisher) Publish(ctx context.Context, data []byte) error {
	if p.nc.IsClosed() {
		return ErrClosed
	}
	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("bus: publish %s: %w", p.subject, err)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (p *Publisher) Close() error {
	if p.nc.IsClosed() {
		return nil
	}
	return p.nc.Drain()
}
