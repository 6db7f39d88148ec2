package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/core/ports"
)

const DefaultAnalysisTimeout = 60 * time.Second

var errSuperseded = errors.New("analysis superseded by reset")

type WorkflowControllerUseCase struct {
	store    ports.WorkflowStore
	storage  ports.ObjectStorage
	queue    ports.AnalysisQueue
	provider ports.AnalysisProvider
	timeout  time.Duration

	observers []ports.WorkflowObserver
	now       func() time.Time
	newID     func() string

	mu sync.Mutex
	// inflight holds cancel funcs by workflow id, then cycle id. A late job for
	// an old cycle never displaces the entry of the current one.
	inflight map[string]map[string]context.CancelCauseFunc
}

func NewWorkflowControllerUseCase(
	store ports.WorkflowStore,
	storage ports.ObjectStorage,
	queue ports.AnalysisQueue,
	provider ports.AnalysisProvider,
	timeout time.Duration,
) *WorkflowControllerUseCase {
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}
	return &WorkflowControllerUseCase{
		store:    store,
		storage:  storage,
		queue:    queue,
		provider: provider,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		inflight: make(map[string]map[string]context.CancelCauseFunc),
	}
}

// Observe registers o for every committed transition. Not safe to call once
// the controller is serving.
func (uc *WorkflowControllerUseCase) Observe(o ports.WorkflowObserver) {
	uc.observers = append(uc.observers, o)
}

func (uc *WorkflowControllerUseCase) Create(ctx context.Context) (*domain.Workflow, error) {
	w := domain.NewWorkflow(uc.newID(), uc.now())
	if err := uc.store.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	uc.notify(ctx, w)
	return w, nil
}

func (uc *WorkflowControllerUseCase) Get(ctx context.Context, id string) (*domain.Workflow, error) {
	w, err := uc.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return w, nil
}

// StartAnalysis records doc and queues its analysis. A queue failure is
// committed as Failed rather than returned, so the workflow never stays in
// Analyzing without a job behind it.
func (uc *WorkflowControllerUseCase) StartAnalysis(ctx context.Context, id string, doc domain.UploadedDocument) (*domain.Workflow, error) {
	cycleID := uc.newID()
	w, err := uc.store.Update(ctx, id, func(w *domain.Workflow) error {
		return w.Begin(doc, cycleID, uc.now())
	})
	if err != nil {
		return nil, fmt.Errorf("start analysis: %w", err)
	}
	uc.notify(ctx, w)
	return uc.dispatch(ctx, w, cycleID), nil
}

func (uc *WorkflowControllerUseCase) Retry(ctx context.Context, id string) (*domain.Workflow, error) {
	cycleID := uc.newID()
	w, err := uc.store.Update(ctx, id, func(w *domain.Workflow) error {
		return w.Retry(cycleID, uc.now())
	})
	if err != nil {
		return nil, fmt.Errorf("retry analysis: %w", err)
	}
	uc.notify(ctx, w)
	return uc.dispatch(ctx, w, cycleID), nil
}

func (uc *WorkflowControllerUseCase) dispatch(ctx context.Context, w *domain.Workflow, cycleID string) *domain.Workflow {
	job := domain.AnalysisJob{WorkflowID: w.ID, CycleID: cycleID, RequestedAt: uc.now()}
	publishErr := uc.queue.PublishAnalysisRequested(ctx, job)
	if publishErr == nil {
		return w
	}

	slog.Error("analysis_publish_failed", "workflow_id", w.ID, "cycle_id", cycleID, "error", publishErr.Error())
	failed, err := uc.commit(context.WithoutCancel(ctx), job, domain.Failure{
		Kind:    domain.FailureAnalysis,
		Message: fmt.Sprintf("queue analysis: %v", publishErr),
	}, nil)
	if err != nil || failed == nil {
		return w
	}
	return failed
}

// RunAnalysis executes one queued job. Jobs for a cycle that is no longer
// current are dropped. Provider errors and timeouts are committed as Failed
// and do not surface as errors.
func (uc *WorkflowControllerUseCase) RunAnalysis(ctx context.Context, job domain.AnalysisJob) error {
	w, err := uc.store.Get(ctx, job.WorkflowID)
	if err != nil {
		if domain.IsKind(err, domain.ErrWorkflowNotFound) {
			slog.Warn("analysis_job_dropped", "workflow_id", job.WorkflowID, "cycle_id", job.CycleID, "reason", "workflow not found")
			return nil
		}
		return fmt.Errorf("load workflow: %w", err)
	}
	analyzing, ok := w.Phase.(domain.Analyzing)
	if !ok || analyzing.CycleID != job.CycleID {
		slog.Info("analysis_job_dropped", "workflow_id", job.WorkflowID, "cycle_id", job.CycleID, "reason", "stale cycle")
		return nil
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	uc.register(job, cancel)
	defer uc.unregister(job)

	timeoutCtx, cancelTimeout := context.WithTimeoutCause(runCtx, uc.timeout, domain.ErrAnalysisTimeout)
	defer cancelTimeout()

	result, analyzeErr := uc.analyze(timeoutCtx, analyzing.Document)
	if errors.Is(context.Cause(runCtx), errSuperseded) {
		slog.Info("analysis_superseded", "workflow_id", job.WorkflowID, "cycle_id", job.CycleID)
		return nil
	}

	commitCtx := context.WithoutCancel(ctx)
	if analyzeErr != nil {
		failure := classifyFailure(ctx, timeoutCtx, analyzeErr)
		slog.Warn("analysis_failed",
			"workflow_id", job.WorkflowID,
			"cycle_id", job.CycleID,
			"kind", string(failure.Kind),
			"error", analyzeErr.Error(),
		)
		_, err = uc.commit(commitCtx, job, failure, nil)
		return err
	}
	_, err = uc.commit(commitCtx, job, domain.Failure{}, result)
	return err
}

func (uc *WorkflowControllerUseCase) analyze(ctx context.Context, doc domain.UploadedDocument) (*domain.AnalysisResult, error) {
	content, err := uc.storage.Open(ctx, doc.StorageKey)
	if err != nil {
		return nil, domain.WrapError(domain.ErrAnalysisFailure, "open document", err)
	}
	defer content.Close()

	raw, err := uc.provider.Analyze(ctx, doc.Name, content)
	if err != nil {
		return nil, fmt.Errorf("analyze document: %w", err)
	}
	result, err := domain.NormalizeResult(raw, doc.Name)
	if err != nil {
		return nil, domain.WrapError(domain.ErrAnalysisFailure, "normalize result", err)
	}
	return result, nil
}

// commit stores the outcome of cycle job: result when non-nil, failure
// otherwise. Stale outcomes are discarded without error.
func (uc *WorkflowControllerUseCase) commit(
	ctx context.Context,
	job domain.AnalysisJob,
	failure domain.Failure,
	result *domain.AnalysisResult,
) (*domain.Workflow, error) {
	w, err := uc.store.Update(ctx, job.WorkflowID, func(w *domain.Workflow) error {
		if result != nil {
			return w.Complete(job.CycleID, *result, uc.now())
		}
		return w.Fail(job.CycleID, failure, uc.now())
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrStaleCycle) || domain.IsKind(err, domain.ErrWorkflowNotFound) {
			slog.Info("analysis_result_discarded", "workflow_id", job.WorkflowID, "cycle_id", job.CycleID, "reason", err.Error())
			return nil, nil
		}
		return nil, fmt.Errorf("commit analysis outcome: %w", err)
	}
	uc.notify(ctx, w)
	return w, nil
}

func classifyFailure(parent, run context.Context, err error) domain.Failure {
	switch {
	case parent.Err() != nil:
		return domain.Failure{Kind: domain.FailureAnalysis, Message: "analysis interrupted"}
	case errors.Is(context.Cause(run), domain.ErrAnalysisTimeout),
		domain.IsKind(err, domain.ErrAnalysisTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return domain.Failure{Kind: domain.FailureTimeout, Message: "analysis did not finish in time"}
	default:
		return domain.Failure{Kind: domain.FailureAnalysis, Message: err.Error()}
	}
}

// Reset returns the workflow to Idle, cancels its in-flight analysis and
// removes the stored document. Resetting an idle workflow is a no-op.
func (uc *WorkflowControllerUseCase) Reset(ctx context.Context, id string) (*domain.Workflow, error) {
	var (
		discarded *domain.UploadedDocument
		wasIdle   bool
	)
	w, err := uc.store.Update(ctx, id, func(w *domain.Workflow) error {
		wasIdle = w.State() == domain.StateIdle
		doc, err := w.Reset(uc.now())
		discarded = doc
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reset workflow: %w", err)
	}
	if wasIdle {
		return w, nil
	}

	uc.cancelInflight(id)
	if discarded != nil && discarded.StorageKey != "" {
		if err := uc.storage.Delete(ctx, discarded.StorageKey); err != nil {
			slog.Warn("document_delete_failed", "workflow_id", id, "storage_key", discarded.StorageKey, "error", err.Error())
		}
	}
	uc.notify(ctx, w)
	return w, nil
}

func (uc *WorkflowControllerUseCase) ToggleClause(ctx context.Context, id string, index int) (*domain.Workflow, error) {
	w, err := uc.store.Update(ctx, id, func(w *domain.Workflow) error {
		return w.ToggleClause(index, uc.now())
	})
	if err != nil {
		return nil, fmt.Errorf("toggle clause: %w", err)
	}
	uc.notify(ctx, w)
	return w, nil
}

func (uc *WorkflowControllerUseCase) register(job domain.AnalysisJob, cancel context.CancelCauseFunc) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	runs, ok := uc.inflight[job.WorkflowID]
	if !ok {
		runs = make(map[string]context.CancelCauseFunc)
		uc.inflight[job.WorkflowID] = runs
	}
	runs[job.CycleID] = cancel
}

func (uc *WorkflowControllerUseCase) unregister(job domain.AnalysisJob) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	runs := uc.inflight[job.WorkflowID]
	delete(runs, job.CycleID)
	if len(runs) == 0 {
		delete(uc.inflight, job.WorkflowID)
	}
}

// cancelInflight cancels every run of workflowID, including late runs of
// cycles that are already stale.
func (uc *WorkflowControllerUseCase) cancelInflight(workflowID string) {
	uc.mu.Lock()
	runs := uc.inflight[workflowID]
	delete(uc.inflight, workflowID)
	uc.mu.Unlock()
	for _, cancel := range runs {
		cancel(errSuperseded)
	}
}

func (uc *WorkflowControllerUseCase) notify(ctx context.Context, w *domain.Workflow) {
	for _, o := range uc.observers {
		o.WorkflowChanged(ctx, w)
	}
}
