package inline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

func TestQueueDeliversJobs(t *testing.T) {
	q := New(2, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := make(map[string]bool)
	got := make(chan struct{}, 3)
	done := make(chan error, 1)
	go func() {
		done <- q.SubscribeAnalysisRequested(ctx, func(_ context.Context, job domain.AnalysisJob) error {
			mu.Lock()
			seen[job.CycleID] = true
			mu.Unlock()
			got <- struct{}{}
			return nil
		})
	}()

	for _, cycle := range []string{"c1", "c2", "c3"} {
		if err := q.PublishAnalysisRequested(ctx, domain.AnalysisJob{WorkflowID: "wf", CycleID: cycle}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d", i)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct jobs, got %v", seen)
	}
}

func TestPublishAfterShutdownIsTemporary(t *testing.T) {
	q := New(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.SubscribeAnalysisRequested(ctx, func(context.Context, domain.AnalysisJob) error { return nil }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	err := q.PublishAnalysisRequested(context.Background(), domain.AnalysisJob{WorkflowID: "wf", CycleID: "c"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestPublishHonoursContextWhenFull(t *testing.T) {
	q := New(1, 1)
	if err := q.PublishAnalysisRequested(context.Background(), domain.AnalysisJob{WorkflowID: "wf", CycleID: "c1"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.PublishAnalysisRequested(ctx, domain.AnalysisJob{WorkflowID: "wf", CycleID: "c2"})
	if !domain.IsKind(err, domain.ErrTemporary) || q.Pending() != 1 {
		t.Fatalf("expected ErrTemporary with one pending job, got %v pending=%d", err, q.Pending())
	}
}
