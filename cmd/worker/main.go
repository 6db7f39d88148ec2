package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/lease-lens/internal/bootstrap"
	"github.com/kirillkom/lease-lens/internal/config"
	"github.com/kirillkom/lease-lens/internal/observability/logging"
	"github.com/kirillkom/lease-lens/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	logging.Install(service, cfg.LogLevel)

	if cfg.QueueMode != config.QueueNATS {
		slog.Error("worker_requires_nats", "queue_mode", cfg.QueueMode)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs := metrics.NewWorkerMetrics(service, nil)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:  service,
		Registry: jobs.Registry(),
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", jobs.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
		return app.ConsumeAnalysisJobs(gctx, service, jobs)
	})

	if err := g.Wait(); err != nil {
		slog.Error("worker_stopped", "error", err.Error())
		os.Exit(1)
	}
	slog.Info("worker_stopped")
}
