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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iotwatch/iotwatch/ingest/internal/archive"
	"github.com/iotwatch/iotwatch/ingest/internal/config"
	"github.com/iotwatch/iotwatch/ingest/internal/receiver"
	"github.com/iotwatch/iotwatch/pkg/auth"
	"github.com/iotwatch/iotwatch/pkg/bus"
	"github.com/iotwatch/iotwatch/pkg/logging"
	"github.com/iotwatch/iotwatch/pkg/pg"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "iotwatch-ingest: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	in := cfg.Ingest

	logger, _, err := logging.New(in.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("iotwatch-ingest starting",
		zap.String("config", configPath),
		zap.Int("http_port", in.HTTPPort),
		zap.String("transport", in.Transport.URL),
		zap.String("subject", in.Transport.Subject),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pub, err := bus.NewPublisher(ctx, in.Transport, logger.Named("bus"))
	if err != nil {
		return err
	}
	defer pub.Close() //nolint:errcheck

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []receiver.Option{
		receiver.WithLogger(logger.Named("receiver")),
		receiver.WithMetrics(receiver.NewMetrics(reg)),
		receiver.WithMaxBodyBytes(in.MaxBodyBytes),
	}
	if dsn := in.Archive.DSN(); dsn != "" {
		db, err := pg.Open(ctx, dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		arc := archive.New(db, in.Archive.Table)
		if err := arc.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, receiver.WithArchive(arc))
		logger.Info("message archive enabled", zap.String("table", in.Archive.Table))
	} else {
		logger.Warn("message archive disabled: no DSN configured")
	}

	requireKey := auth.APIKey(in.Auth.Mode, in.Auth.EffectiveHeader(), in.Auth.Key())
	mux := http.NewServeMux()
	mux.Handle("/data", requireKey(receiver.New(pub, opts...)))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", in.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.Int("port", in.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("iotwatch-ingest shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return httpSrv.Shutdown(shutdownCtx)
}
