package sink

import (
	"context"
	"errors"

	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

// ErrSinkUnavailable is returned by a sink that has no usable backend.
var ErrSinkUnavailable = errors.New("sink: unavailable")

// Sink persists one alert.
type Sink interface {
	Persist(ctx context.Context, a telemetry.Alert) error
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, a telemetry.Alert) error

// Persist calls f.
func (f Func) Persist(ctx context.Context, a telemetry.Alert) error { return f(ctx, a) }

// Multi hands each alert to every sink in order. A failing sink does not stop
// the others; their errors are joined.
type Multi []Sink

// Persist implements Sink.
func (m Multi) Persist(ctx context.Context, a telemetry.Alert) error {
	var errs []error
	for _, s := range m {
		if err := s.Persist(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
