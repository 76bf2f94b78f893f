package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/iotwatch/iotwatch/engine/internal/api"
	"github.com/iotwatch/iotwatch/engine/internal/config"
	"github.com/iotwatch/iotwatch/engine/internal/consumer"
	"github.com/iotwatch/iotwatch/engine/internal/metrics"
	"github.com/iotwatch/iotwatch/engine/internal/rules"
	"github.com/iotwatch/iotwatch/engine/internal/sink"
	"github.com/iotwatch/iotwatch/engine/internal/transport"
	"github.com/iotwatch/iotwatch/engine/internal/window"
	"github.com/iotwatch/iotwatch/engine/internal/ws"
	"github.com/iotwatch/iotwatch/pkg/auth"
	"github.com/iotwatch/iotwatch/pkg/logging"
	"github.com/iotwatch/iotwatch/pkg/pg"
	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

const (
	statsInterval   = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "iotwatch-engine: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	e := cfg.Engine

	logger, level, err := logging.New(e.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("iotwatch-engine starting",
		zap.String("config", configPath),
		zap.Int("http_port", e.HTTPPort),
		zap.String("transport", e.Transport.URL),
		zap.String("subject", e.Transport.Subject),
		zap.Int("window", e.Window.Size),
		zap.Int("max_devices", e.Window.MaxDevices),
		zap.Int("rules", len(e.Rules)),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Only the log level is applied on reload; everything else needs a restart.
	go func() {
		err := config.Watch(ctx, configPath, logger, func(c *config.Config) {
			if err := logging.SetLevel(level, c.Engine.LogLevel); err != nil {
				logger.Warn("config reload: log level not applied", zap.Error(err))
				return
			}
			logger.Info("config reload: log level applied", zap.String("log_level", c.Engine.LogLevel))
		})
		if err != nil {
			logger.Warn("config watch disabled", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := window.New(e.Window.Size,
		window.WithMaxDevices(e.Window.MaxDevices),
		window.WithLogger(logger.Named("window")),
	)
	metrics.RegisterDevices(reg, store.Count)

	rs, err := rules.FromConfig(e.Rules, e.Window.Size)
	if err != nil {
		return err
	}
	for _, r := range rs.Rules() {
		logger.Info("rule loaded", zap.String("name", r.Name()), zap.String("kind", string(r.Kind())))
	}

	history := sink.NewHistory(e.Sinks.History)
	sinks := sink.Multi{history}
	var archive api.AlertReader

	if dsn := e.Sinks.Postgres.DSN(); dsn != "" {
		db, err := pg.Open(ctx, dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		alertsTable := sink.NewPostgres(db, sink.WithTable(e.Sinks.Postgres.Table))
		if err := alertsTable.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, alertsTable)
		archive = alertsTable
		logger.Info("postgres alert sink enabled", zap.String("table", e.Sinks.Postgres.Table))
	} else {
		logger.Warn("postgres alert sink disabled: no DSN configured")
	}

	if len(e.Sinks.Webhooks) > 0 {
		targets := make([]sink.Target, 0, len(e.Sinks.Webhooks))
		for _, wh := range e.Sinks.Webhooks {
			targets = append(targets, sink.Target{Type: wh.Type, URL: wh.URL()})
		}
		sinks = append(sinks, sink.NewWebhook(targets, nil, logger.Named("sink.webhook")))
	}

	// The hub's stats message is the health payload, built by the API handler
	// once the consumer exists.
	var handler *api.Handler
	recent := func(limit int) []telemetry.Alert { return history.Recent(limit, nil) }
	hub := ws.New(recent, func() interface{} { return handler.Health() }, statsInterval, logger.Named("ws"))
	sinks = append(sinks, hub)

	c := consumer.New(
		transport.New(e.Transport, logger.Named("transport")),
		store,
		rs,
		sinks,
		consumer.WithLogger(logger.Named("consumer")),
		consumer.WithMetrics(m),
		consumer.WithMaxFetchFailures(e.Consumer.MaxFetchFailures),
		consumer.WithSinkTimeout(e.Consumer.SinkTimeout),
	)

	handler = api.New(api.Deps{
		Store:    store,
		Rules:    rs,
		History:  history,
		Archive:  archive,
		State:    c.State,
		Gatherer: reg,
	})
	go hub.Run(ctx)

	requireKey := auth.APIKey(e.Auth.Mode, e.Auth.EffectiveHeader(), e.Auth.Key())
	mux := http.NewServeMux()
	mux.Handle("/api/", requireKey(handler))
	mux.Handle("/ws/alerts", requireKey(hub))
	mux.Handle("/metrics", handler)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", e.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.Int("port", e.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped", zap.Error(err))
			cancel()
		}
	}()

	runErr := c.Run(ctx)

	logger.Info("iotwatch-engine shutting down", zap.String("consumer_state", c.State().String()))
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	cancel()

	return runErr
}
