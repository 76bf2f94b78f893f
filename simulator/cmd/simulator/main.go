package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iotwatch/iotwatch/pkg/logging"
	"github.com/iotwatch/iotwatch/simulator/internal/generator"
	"github.com/iotwatch/iotwatch/simulator/internal/scraper"
	"github.com/iotwatch/iotwatch/simulator/internal/shipper"
)

const (
	defaultEndpoint       = "http://localhost:50051/data"
	defaultReportInterval = 10 * time.Second
)

type options struct {
	devices        int
	frequency      float64
	endpoint       string
	apiKeyEnv      string
	apiKeyHeader   string
	duration       time.Duration
	seed           uint64
	logLevel       string
	engineMetrics  string
	reportInterval time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "iotwatch-simulator",
		Short: "Simulate a fleet of IoT devices posting telemetry to the ingest service",
		Long: `iotwatch-simulator starts one goroutine per simulated device. Each device
posts {"device_id": N, "field_a": rand[0,10]} to the ingest endpoint at the
configured frequency until interrupted or until --duration elapses.

With --engine-metrics set, the simulator also scrapes the rule engine's
/metrics endpoint and logs how many readings it consumed and how many
alerts fired.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.devices, "devices", generator.DefaultDevices, "number of simulated devices")
	f.Float64Var(&opts.frequency, "frequency", generator.DefaultFrequency, "readings per second per device")
	f.StringVar(&opts.endpoint, "endpoint", defaultEndpoint, "ingest endpoint URL")
	f.StringVar(&opts.apiKeyEnv, "api-key-env", "IOTWATCH_API_KEY", "environment variable holding the ingest API key")
	f.StringVar(&opts.apiKeyHeader, "api-key-header", "x-api-key", "header the API key is sent in")
	f.DurationVar(&opts.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	f.Uint64Var(&opts.seed, "seed", 0, "random seed for reproducible readings (0 picks one)")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.StringVar(&opts.engineMetrics, "engine-metrics", "", "rule engine /metrics URL to report from")
	f.DurationVar(&opts.reportInterval, "report-interval", defaultReportInterval, "how often engine metrics are reported")
	return cmd
}

func run(parent context.Context, opts *options) error {
	logger, _, err := logging.New(opts.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if opts.duration > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, opts.duration)
		defer cancelTimeout()
	}

	key := os.Getenv(opts.apiKeyEnv)
	client := shipper.New(opts.endpoint, shipper.WithAPIKey(opts.apiKeyHeader, key))

	gen, err := generator.New(generator.Config{
		Devices:   opts.devices,
		Frequency: opts.frequency,
		Seed:      opts.seed,
	}, client, logger.Named("generator"))
	if err != nil {
		return err
	}

	logger.Info("iotwatch-simulator starting",
		zap.String("endpoint", client.Endpoint()),
		zap.Int("devices", opts.devices),
		zap.Float64("frequency", opts.frequency),
		zap.Duration("duration", opts.duration),
	)

	if opts.engineMetrics != "" {
		go report(ctx, scraper.New(opts.engineMetrics, opts.apiKeyHeader, key), gen, opts.reportInterval, logger.Named("report"))
	}

	gen.Run(ctx)

	s := gen.Stats()
	logger.Info("iotwatch-simulator stopped",
		zap.Int64("sent", s.Sent),
		zap.Int64("failed", s.Failed),
		zap.Int64("rejected", s.Rejected),
	)
	return nil
}

// report periodically logs the generator counters next to the engine's view.
func report(ctx context.Context, sc *scraper.Scraper, gen *generator.Generator, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		sum, err := sc.Scrape(ctx)
		if err != nil {
			logger.Warn("report: engine scrape failed", zap.Error(err))
			continue
		}
		s := gen.Stats()
		logger.Info("report: progress",
			zap.Int64("sent", s.Sent),
			zap.Int64("failed", s.Failed),
			zap.Float64("engine_events_ok", sum.Events["ok"]),
			zap.Float64("engine_decode_errors", sum.Events["decode_error"]),
			zap.Float64("engine_alerts", sum.TotalAlerts()),
			zap.Float64("engine_devices", sum.Devices),
			zap.String("alerts_by_rule", fmt.Sprint(sum.Alerts)),
		)
	}
}
