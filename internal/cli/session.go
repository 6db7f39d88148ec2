package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kirillkom/lease-lens/internal/bootstrap"
	"github.com/kirillkom/lease-lens/internal/config"
	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/observability/metrics"
)

const pollInterval = 50 * time.Millisecond

// session is an in-process workflow service with its analysis consumer
// running in the background.
type session struct {
	app     *bootstrap.App
	cancel  context.CancelFunc
	done    chan error
	cleanup func()
}

func openSession(ctx context.Context, cfg config.Config, cleanup func()) (*session, error) {
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "leasectl"})
	if err != nil {
		cleanup()
		return nil, err
	}
	consumeCtx, cancel := context.WithCancel(context.Background())
	s := &session{app: app, cancel: cancel, done: make(chan error, 1), cleanup: cleanup}
	go func() {
		s.done <- app.ConsumeAnalysisJobs(consumeCtx, "leasectl", metrics.NewWorkerMetrics("leasectl", nil))
	}()
	return s, nil
}

func (s *session) Close() {
	s.cancel()
	<-s.done
	s.app.Close()
	s.cleanup()
}

// analyzeFile uploads path through the picker channel and waits until the
// analysis settles.
func (s *session) analyzeFile(ctx context.Context, path string) (*domain.Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	w, err := s.app.Workflows.Create(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.app.Uploader.Upload(ctx, w.ID, domain.ChannelPicker, []domain.UploadCandidate{{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Content: f,
	}}); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		current, err := s.app.Workflows.Get(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		if current.State() != domain.StateAnalyzing {
			return current, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// failureError turns a failed workflow into a command error.
func failureError(w *domain.Workflow) error {
	failed, ok := w.Phase.(domain.Failed)
	if !ok {
		return nil
	}
	kind := domain.ErrAnalysisFailure
	if failed.Failure.Kind == domain.FailureTimeout {
		kind = domain.ErrAnalysisTimeout
	}
	return domain.WrapError(kind, "analyze", fmt.Errorf("%s", failed.Failure.Message))
}
