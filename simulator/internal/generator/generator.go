package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/iotwatch/iotwatch/simulator/internal/shipper"
)

// Default values for the simulated fleet.
const (
	DefaultDevices   = 100
	DefaultFrequency = 1.0
	DefaultMaxValue  = 10
)

// Poster delivers one reading. *shipper.Client satisfies it.
type Poster interface {
	Post(ctx context.Context, r shipper.Reading) error
}

// Config describes the simulated fleet.
type Config struct {
	// Devices is the fleet size. Device ids run from FirstDeviceID upwards.
	Devices int

	// FirstDeviceID is the id of the first device (default 1).
	FirstDeviceID int64

	// Frequency is the number of readings each device sends per second.
	Frequency float64

	// MaxValue is the inclusive upper bound of field_a (default 10).
	MaxValue int

	// Seed makes the generated values reproducible. 0 picks a random seed.
	Seed uint64
}

// Stats counts delivery outcomes across the fleet.
type Stats struct {
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
	Rejected int64 `json:"rejected"`
}

// Generator runs the device goroutines.
type Generator struct {
	cfg    Config
	post   Poster
	logger *zap.Logger

	sent     atomic.Int64
	failed   atomic.Int64
	rejected atomic.Int64
}

// New validates cfg and returns a Generator that delivers through post.
func New(cfg Config, post Poster, logger *zap.Logger) (*Generator, error) {
	if cfg.FirstDeviceID == 0 {
		cfg.FirstDeviceID = 1
	}
	if cfg.MaxValue == 0 {
		cfg.MaxValue = DefaultMaxValue
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64()
	}
	switch {
	case cfg.Devices <= 0:
		return nil, fmt.Errorf("generator: devices must be positive, got %d", cfg.Devices)
	case !(cfg.Frequency > 0):
		return nil, fmt.Errorf("generator: frequency must be positive, got %g", cfg.Frequency)
	case interval(cfg.Frequency) <= 0:
		return nil, fmt.Errorf("generator: frequency %g exceeds one reading per nanosecond", cfg.Frequency)
	case cfg.MaxValue < 0:
		return nil, fmt.Errorf("generator: max value must not be negative, got %d", cfg.MaxValue)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cfg: cfg, post: post, logger: logger}, nil
}

// Interval is the time between two readings of the same device.
func (g *Generator) Interval() time.Duration {
	return interval(g.cfg.Frequency)
}

func interval(frequency float64) time.Duration {
	return time.Duration(float64(time.Second) / frequency)
}

// Stats returns a snapshot of the delivery counters.
func (g *Generator) Stats() Stats {
	return Stats{
		Sent:     g.sent.Load(),
		Failed:   g.failed.Load(),
		Rejected: g.rejected.Load(),
	}
}

// Run starts every device and blocks until ctx is cancelled and all device
// goroutines have returned.
func (g *Generator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < g.cfg.Devices; i++ {
		id := g.cfg.FirstDeviceID + int64(i)
		rng := rand.New(rand.NewPCG(g.cfg.Seed, uint64(id)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.device(ctx, id, rng)
		}()
	}
	g.logger.Info("generator: devices started",
		zap.Int("devices", g.cfg.Devices),
		zap.Duration("interval", g.Interval()),
	)
	wg.Wait()
}

func (g *Generator) device(ctx context.Context, id int64, rng *rand.Rand) {
	ticker := time.NewTicker(g.Interval())
	defer ticker.Stop()
	log := g.logger.With(zap.Int64("device_id", id))

	for {
		g.send(ctx, log, Reading(id, rng, g.cfg.MaxValue))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (g *Generator) send(ctx context.Context, log *zap.Logger, r shipper.Reading) {
	err := g.post.Post(ctx, r)
	switch {
	case err == nil:
		g.sent.Add(1)
		log.Debug("generator: reading sent", zap.Int("field_a", r.FieldA))
	case ctx.Err() != nil:
		// shutting down
	case shipper.IsPermanent(err):
		g.rejected.Add(1)
		log.Warn("generator: reading rejected", zap.Error(err))
	default:
		g.failed.Add(1)
		log.Warn("generator: send failed", zap.Error(err))
	}
}

// Reading draws one reading for device id from rng.
func Reading(id int64, rng *rand.Rand, maxValue int) shipper.Reading {
	return shipper.Reading{DeviceID: id, FieldA: rng.IntN(maxValue + 1)}
}
