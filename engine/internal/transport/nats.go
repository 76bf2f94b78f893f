package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/iotwatch/iotwatch/engine/internal/consumer"
	"github.com/iotwatch/iotwatch/pkg/bus"
	"github.com/iotwatch/iotwatch/pkg/retry"
)

const (
	fetchBackoffInitial = 500 * time.Millisecond
	fetchBackoffMax     = 10 * time.Second
	defaultAckWait      = 30 * time.Second
)

// Source is a durable JetStream pull consumer.
type Source struct {
	cfg    bus.Config
	logger *zap.Logger

	nc   *nats.Conn
	iter jetstream.MessagesContext
	bo   *retry.Backoff
}

// New creates a Source for cfg. Nothing is dialled until Open.
func New(cfg bus.Config, logger *zap.Logger) *Source {
	return &Source{
		cfg:    cfg,
		logger: logger,
		bo:     retry.NewBackoff(fetchBackoffInitial, fetchBackoffMax),
	}
}

// Open connects to NATS, ensures the stream and the durable consumer exist and
// starts pulling messages.
func (s *Source) Open(ctx context.Context) error {
	nc, err := bus.Connect(s.cfg, s.logger)
	if err != nil {
		return err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("transport: jetstream: %w", err)
	}
	if _, err := bus.EnsureStream(ctx, js, s.cfg); err != nil {
		nc.Close()
		return err
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, s.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       s.cfg.Durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       defaultAckWait,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		FilterSubject: s.cfg.Subject,
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("transport: consumer %q: %w", s.cfg.Durable, err)
	}

	iter, err := cons.Messages()
	if err != nil {
		nc.Close()
		return fmt.Errorf("transport: start iterator: %w", err)
	}

	s.nc = nc
	s.iter = iter
	s.logger.Info("transport: consuming",
		zap.String("url", s.cfg.URL),
		zap.String("stream", s.cfg.Stream),
		zap.String("subject", s.cfg.Subject),
		zap.String("durable", s.cfg.Durable),
	)
	return nil
}

// Next blocks until a message is available or ctx is done.
func (s *Source) Next(ctx context.Context) (consumer.Message, error) {
	if s.iter == nil {
		return nil, fmt.Errorf("%w: source not open", consumer.ErrTransport)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The iterator has no context of its own; stopping it unblocks Next.
	stop := context.AfterFunc(ctx, s.iter.Stop)
	msg, err := s.iter.Next()
	stop()

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if s.nc.IsClosed() || errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, jetstream.ErrMsgIteratorClosed) {
			return nil, fmt.Errorf("%w: %w", consumer.ErrTransport, err)
		}
		wait := s.bo.Wait(ctx)
		if wait != nil {
			return nil, wait
		}
		return nil, fmt.Errorf("transport: fetch: %w", err)
	}
	s.bo.Reset()
	return message{msg}, nil
}

// Close stops the iterator and drains the connection.
func (s *Source) Close() error {
	if s.iter != nil {
		s.iter.Stop()
	}
	if s.nc == nil || s.nc.IsClosed() {
		return nil
	}
	return s.nc.Drain()
}

// message adapts jetstream.Msg to consumer.Message.
type message struct {
	msg jetstream.Msg
}

func (m message) Data() []byte { return m.msg.Data() }
func (m message) Ack() error   { return m.msg.Ack() }
