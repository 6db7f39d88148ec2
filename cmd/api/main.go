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

	httpadapter "github.com/kirillkom/lease-lens/internal/adapters/http"
	"github.com/kirillkom/lease-lens/internal/bootstrap"
	"github.com/kirillkom/lease-lens/internal/config"
	"github.com/kirillkom/lease-lens/internal/observability/logging"
	"github.com/kirillkom/lease-lens/internal/observability/metrics"
)

const service = "api"

func main() {
	cfg := config.Load()
	logging.Install(service, cfg.LogLevel)

	if _, err := httpadapter.OpenAPIDocument(); err != nil {
		fatal("openapi_document_invalid", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:        service,
		Registry:       httpMetrics.Registry(),
		OnUploadReject: httpMetrics.RecordUploadRejection,
	})
	if err != nil {
		fatal("bootstrap_failed", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(app.Workflows, app.Uploader, app.Preview, app.Exporter, httpadapter.Options{
		APIKey:           cfg.APIKey,
		RateLimitRPS:     cfg.APIRateLimitRPS,
		RateLimitBurst:   cfg.APIRateLimitBurst,
		MaxInFlight:      cfg.APIMaxInFlight,
		BackpressureWait: cfg.APIBackpressureWait,
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		Metrics:          httpMetrics,
	})
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cfg.QueueMode == config.QueueInline {
		jobs := metrics.NewWorkerMetrics(service, httpMetrics.Registry())
		g.Go(func() error {
			return app.ConsumeAnalysisJobs(gctx, service, jobs)
		})
	}
	g.Go(func() error {
		return app.RunJanitor(gctx, 0)
	})

	if err := g.Wait(); err != nil {
		fatal("api_stopped", err)
	}
	slog.Info("api_stopped")
}

func fatal(event string, err error) {
	slog.Error(event, "error", err.Error())
	os.Exit(1)
}
