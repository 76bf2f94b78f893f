package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/iotwatch/iotwatch/engine/internal/metrics"
	"github.com/iotwatch/iotwatch/engine/internal/rules"
	"github.com/iotwatch/iotwatch/engine/internal/window"
	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

const (
	defaultMaxFetchFailures = 5
	defaultSinkTimeout      = 5 * time.Second
)

// ErrTransport marks a transport that can no longer deliver messages.
// Sources return it (wrapped) from Next when the connection is gone for good.
var ErrTransport = errors.New("consumer: transport unusable")

// State is the lifecycle state of a Consumer.
type State int32

const (
	Idle      State = iota // constructed, transport not opened
	Consuming              // processing messages
	Stopped                // context cancelled; terminal
	Faulted                // transport unusable; terminal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Consuming:
		return "consuming"
	case Stopped:
		return "stopped"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Message is one delivery from the transport.
type Message interface {
	Data() []byte
	Ack() error
}

// Source is the inbound transport.
type Source interface {
	// Open connects to the transport. It is called once by Run.
	Open(ctx context.Context) error
	// Next blocks until a message arrives or ctx is done.
	Next(ctx context.Context) (Message, error)
	// Close releases the connection.
	Close() error
}

// Sink persists alerts.
type Sink interface {
	Persist(ctx context.Context, a telemetry.Alert) error
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Consumer) { c.logger = l }
}

// WithMetrics records processing metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Consumer) { c.metrics = m }
}

// WithMaxFetchFailures sets how many consecutive Next errors are tolerated
// before the transport is considered unusable.
func WithMaxFetchFailures(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.maxFetchFailures = n
		}
	}
}

// WithSinkTimeout bounds each Sink.Persist call.
func WithSinkTimeout(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.sinkTimeout = d
		}
	}
}

// Consumer is the stream consumer loop. It owns its store, rule set and sink
// for its lifetime.
type Consumer struct {
	src   Source
	store *window.Store
	rules *rules.Set
	sink  Sink

	state            atomic.Int32
	maxFetchFailures int
	sinkTimeout      time.Duration

	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time // injectable for deterministic tests
}

// New creates an Idle Consumer.
func New(src Source, store *window.Store, rs *rules.Set, sink Sink, opts ...Option) *Consumer {
	c := &Consumer{
		src:              src,
		store:            store,
		rules:            rs,
		sink:             sink,
		maxFetchFailures: defaultMaxFetchFailures,
		sinkTimeout:      defaultSinkTimeout,
		logger:           zap.NewNop(),
		now:              time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.setState(Idle)
	return c
}

// State returns the current lifecycle state.
func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.SetState(int(s))
}

// Run opens the source and processes messages until ctx is cancelled
// (returning nil, state Stopped) or the transport fails (returning an error
// wrapping ErrTransport, state Faulted). Run may be called only once.
func (c *Consumer) Run(ctx context.Context) error {
	if c.State() != Idle {
		return fmt.Errorf("consumer: run called in state %s", c.State())
	}

	if err := c.src.Open(ctx); err != nil {
		if ctx.Err() != nil {
			c.setState(Stopped)
			return nil
		}
		c.setState(Faulted)
		c.logger.Error("consumer: open transport failed", zap.Error(err))
		return fmt.Errorf("%w: open: %w", ErrTransport, err)
	}
	defer func() {
		if err := c.src.Close(); err != nil {
			c.logger.Warn("consumer: close transport", zap.Error(err))
		}
	}()

	c.setState(Consuming)
	c.logger.Info("consumer: consuming", zap.Int("rules", c.rules.Len()), zap.Int("window", c.store.Size()))

	failures := 0
	for {
		if ctx.Err() != nil {
			c.setState(Stopped)
			c.logger.Info("consumer: stopped")
			return nil
		}

		msg, err := c.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.metrics.FetchError()
			failures++
			if errors.Is(err, ErrTransport) || failures >= c.maxFetchFailures {
				c.setState(Faulted)
				c.logger.Error("consumer: transport unusable",
					zap.Error(err), zap.Int("consecutive_failures", failures))
				if errors.Is(err, ErrTransport) {
					return err
				}
				return fmt.Errorf("%w: %d consecutive fetch failures: %w", ErrTransport, failures, err)
			}
			c.logger.Warn("consumer: fetch failed",
				zap.Error(err), zap.Int("consecutive_failures", failures))
			continue
		}
		failures = 0

		// The in-flight message always completes, even if ctx is cancelled
		// meanwhile.
		c.handle(context.WithoutCancel(ctx), msg)
	}
}

// handle processes one message and acknowledges it.
func (c *Consumer) handle(ctx context.Context, msg Message) {
	start := c.now()
	_, err := c.Process(ctx, msg.Data())
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultDecodeError
	}
	c.metrics.ObserveEvent(result, c.now().Sub(start))

	if err := msg.Ack(); err != nil {
		c.logger.Warn("consumer: ack failed, message may be redelivered", zap.Error(err))
	}
}

// Process runs one raw message through decode, window update, rule
// evaluation and the sink. It returns the alerts produced. The only error
// it returns is a decode failure (wrapping telemetry.ErrDecode), in which
// case nothing else happens; rule and sink failures are logged and counted.
func (c *Consumer) Process(ctx context.Context, data []byte) ([]telemetry.Alert, error) {
	ev, err := telemetry.Decode(data, c.now())
	if err != nil {
		c.logger.Warn("consumer: dropping undecodable message",
			zap.Error(err), zap.Int("bytes", len(data)))
		return nil, err
	}

	c.store.Update(ev.DeviceID, ev)
	alerts, err := c.rules.Evaluate(ev, c.store.Window(ev.DeviceID))
	for _, ee := range rules.EvalErrors(err) {
		c.metrics.RuleError(ee.Rule)
		c.logger.Warn("consumer: rule evaluation failed",
			zap.String("rule", ee.Rule),
			zap.Int64("device_id", ev.DeviceID),
			zap.Error(ee.Err))
	}

	for _, a := range alerts {
		c.metrics.Alert(a.Rule, string(a.Kind))
		c.logger.Debug("consumer: alert",
			zap.String("id", a.ID),
			zap.String("rule", a.Rule),
			zap.Int64("device_id", a.DeviceID),
			zap.Float64("value", a.Value))
		c.persist(ctx, a)
	}
	return alerts, nil
}

func (c *Consumer) persist(ctx context.Context, a telemetry.Alert) {
	ctx, cancel := context.WithTimeout(ctx, c.sinkTimeout)
	defer cancel()
	if err := c.sink.Persist(ctx, a); err != nil {
		c.metrics.SinkError()
		c.logger.Error("consumer: persist alert failed",
			zap.String("id", a.ID),
			zap.String("rule", a.Rule),
			zap.Int64("device_id", a.DeviceID),
			zap.Error(err))
	}
}
