package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/lease-lens/internal/config"
	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/core/ports"
	"github.com/kirillkom/lease-lens/internal/core/usecase"
	"github.com/kirillkom/lease-lens/internal/infrastructure/analysis/mock"
	"github.com/kirillkom/lease-lens/internal/infrastructure/analysis/pipeline"
	"github.com/kirillkom/lease-lens/internal/infrastructure/chunking"
	"github.com/kirillkom/lease-lens/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/lease-lens/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/lease-lens/internal/infrastructure/llm/openai"
	"github.com/kirillkom/lease-lens/internal/infrastructure/queue/inline"
	"github.com/kirillkom/lease-lens/internal/infrastructure/queue/nats"
	"github.com/kirillkom/lease-lens/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/lease-lens/internal/infrastructure/repository/memory"
	"github.com/kirillkom/lease-lens/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/lease-lens/internal/infrastructure/resilience"
	"github.com/kirillkom/lease-lens/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/lease-lens/internal/infrastructure/storage/s3"
	"github.com/kirillkom/lease-lens/internal/observability/metrics"
)

// Options carries what differs between the binaries sharing one wiring.
type Options struct {
	Service string
	// Registry receives workflow metrics; nil leaves them unregistered.
	Registry prometheus.Registerer
	// OnUploadReject is told about every rejected upload candidate.
	OnUploadReject usecase.UploadRejection
}

type App struct {
	Config config.Config

	Workflows *usecase.WorkflowControllerUseCase
	Runner    ports.AnalysisRunner
	Uploader  *usecase.UploadDocumentUseCase
	Preview   *usecase.DocumentPreviewUseCase
	Exporter  *usecase.ExportReportUseCase
	Queue     ports.AnalysisQueue

	storage ports.ObjectStorage
	// purgeIdle deletes workflows untouched since cutoff; nil when the store
	// expires records itself.
	purgeIdle func(ctx context.Context, cutoff time.Time) ([]domain.ExpiredWorkflow, error)
	closers   []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(resilienceConfig(cfg))
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	workflowMetrics := metrics.NewWorkflowMetrics(opts.Service, registry)
	executor.OnRetry(workflowMetrics.RecordRetry)

	store, memStore, err := app.newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	storage, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.storage = storage
	queue, err := app.newQueue(cfg, executor)
	if err != nil {
		return nil, err
	}
	provider, err := newProvider(cfg, executor)
	if err != nil {
		return nil, err
	}

	app.Workflows = usecase.NewWorkflowControllerUseCase(store, storage, queue, provider, cfg.AnalysisTimeout)
	app.Preview = usecase.NewDocumentPreviewUseCase(app.Workflows, storage, pdftext.NewExtractor(cfg.MaxUploadBytes))
	app.Runner = app.Workflows
	app.Workflows.Observe(app.Preview)
	app.Workflows.Observe(workflowMetrics)
	if memStore != nil {
		memStore.OnExpire(func(w domain.ExpiredWorkflow) {
			app.discardExpired(context.Background(), w)
		})
	}
	app.closers = append(app.closers, func() { _ = app.Preview.Close() })

	app.Uploader = usecase.NewUploadDocumentUseCase(app.Workflows, storage, cfg.MaxUploadBytes, opts.OnUploadReject)
	app.Exporter = usecase.NewExportReportUseCase(app.Workflows, xlsx.NewRenderer())
	app.Queue = queue

	slog.Info("app_wired",
		"service", opts.Service,
		"workflow_store", cfg.WorkflowStore,
		"storage_backend", cfg.StorageBackend,
		"queue_mode", cfg.QueueMode,
		"analysis_provider", cfg.AnalysisProvider,
	)
	ok = true
	return app, nil
}

// resilienceConfig applies the shared retry budget to every remote call.
// Only LLM attempts are bounded by LLMAttemptTimeout.
func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.Retry.MaxAttempts = cfg.RetryMaxAttempts
	rc.Retry.InitialBackoff = cfg.RetryInitialBackoff
	rc.Retry.MaxBackoff = cfg.RetryMaxBackoff
	rc.Breaker.Enabled = cfg.BreakerEnabled

	llm := rc.Retry
	llm.AttemptTimeout = cfg.LLMAttemptTimeout
	return rc.
		WithOperation(resilience.OpOllamaChat, llm).
		WithOperation(resilience.OpOpenAIChat, llm)
}

func (a *App) newStore(ctx context.Context, cfg config.Config) (ports.WorkflowStore, *memory.WorkflowStore, error) {
	switch cfg.WorkflowStore {
	case config.StoreMemory:
		store := memory.NewWorkflowStore(cfg.WorkflowTTL, 0)
		return store, store, nil
	case config.StorePostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		repo := postgres.NewWorkflowRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.purgeIdle = repo.PurgeIdleSince
		return repo, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown workflow store %q", cfg.WorkflowStore)
	}
}

func newStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case config.StorageLocal:
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return storage, nil
	case config.StorageS3:
		storage, err := s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) newQueue(cfg config.Config, executor *resilience.Executor) (ports.AnalysisQueue, error) {
	switch cfg.QueueMode {
	case config.QueueInline:
		return inline.New(cfg.InlineWorkers, cfg.InlineQueueCapacity), nil
	case config.QueueNATS:
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init nats queue: %w", err)
		}
		a.closers = append(a.closers, queue.Close)
		return queue, nil
	default:
		return nil, fmt.Errorf("unknown queue mode %q", cfg.QueueMode)
	}
}

func newProvider(cfg config.Config, executor *resilience.Executor) (ports.AnalysisProvider, error) {
	extractor := pdftext.NewExtractor(cfg.MaxUploadBytes)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	switch cfg.AnalysisProvider {
	case config.ProviderMock:
		provider, err := mock.New(cfg.MockDelay)
		if err != nil {
			return nil, fmt.Errorf("init mock provider: %w", err)
		}
		return provider, nil
	case config.ProviderOllama:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaModel, executor)
		return pipeline.New("ollama", extractor, chunker, client, cfg.MaxChunks), nil
	case config.ProviderOpenAI:
		client, err := openai.New(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, executor)
		if err != nil {
			return nil, fmt.Errorf("init openai provider: %w", err)
		}
		return pipeline.New("openai", extractor, chunker, client, cfg.MaxChunks), nil
	default:
		return nil, fmt.Errorf("unknown analysis provider %q", cfg.AnalysisProvider)
	}
}

// ConsumeAnalysisJobs runs queued analyses until ctx is cancelled, recording
// job metrics under service.
func (a *App) ConsumeAnalysisJobs(ctx context.Context, service string, jobs *metrics.WorkerMetrics) error {
	return a.Queue.SubscribeAnalysisRequested(ctx, func(handlerCtx context.Context, job domain.AnalysisJob) error {
		if !job.RequestedAt.IsZero() {
			jobs.ObserveQueueLag(service, time.Since(job.RequestedAt))
		}
		jobs.StartJob()
		started := time.Now()
		err := a.Runner.RunAnalysis(handlerCtx, job)
		jobs.FinishJob(service, time.Since(started), err)
		return err
	})
}

// RunJanitor purges idle Postgres workflows every interval until ctx is
// cancelled, deleting the documents they held. It returns at once for stores
// that expire records themselves.
func (a *App) RunJanitor(ctx context.Context, interval time.Duration) error {
	if a.purgeIdle == nil || a.Config.WorkflowTTL <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = a.Config.WorkflowTTL / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-a.Config.WorkflowTTL)
			purged, err := a.purgeIdle(ctx, cutoff)
			if err != nil {
				slog.Warn("workflow_purge_failed", "error", err.Error())
				continue
			}
			for _, w := range purged {
				a.discardExpired(ctx, w)
			}
			if len(purged) > 0 {
				slog.Info("workflows_purged", "count", len(purged), "cutoff", cutoff)
			}
		}
	}
}

// discardExpired releases what an expired workflow still held: its preview
// handle and its stored document.
func (a *App) discardExpired(ctx context.Context, w domain.ExpiredWorkflow) {
	if a.Preview != nil {
		a.Preview.Release(w.ID)
	}
	if w.StorageKey == "" || a.storage == nil {
		return
	}
	if err := a.storage.Delete(ctx, w.StorageKey); err != nil {
		slog.Warn("expired_document_delete_failed", "workflow_id", w.ID, "storage_key", w.StorageKey, "error", err.Error())
		return
	}
	slog.Info("workflow_expired", "workflow_id", w.ID, "storage_key", w.StorageKey)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
