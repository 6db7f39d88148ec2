package inline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

const (
	defaultWorkers  = 4
	defaultCapacity = 64
)

var errQueueClosed = errors.New("inline queue closed")

// Queue runs analysis jobs on a bounded goroutine pool inside the API
// process.
type Queue struct {
	jobs    chan domain.AnalysisJob
	workers int

	mu     sync.RWMutex
	closed bool
}

func New(workers, capacity int) *Queue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Queue{
		jobs:    make(chan domain.AnalysisJob, capacity),
		workers: workers,
	}
}

// PublishAnalysisRequested enqueues job, blocking while the buffer is full.
func (q *Queue) PublishAnalysisRequested(ctx context.Context, job domain.AnalysisJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return domain.WrapError(domain.ErrTemporary, "inline publish", errQueueClosed)
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return domain.WrapError(domain.ErrTemporary, "inline publish", ctx.Err())
	}
}

// SubscribeAnalysisRequested runs handler on the worker pool until ctx is
// cancelled. Queued jobs still pending at shutdown are dropped.
func (q *Queue) SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, domain.AnalysisJob) error) error {
	if handler == nil {
		return fmt.Errorf("inline subscribe: nil handler")
	}

	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-q.jobs:
					if err := handler(ctx, job); err != nil {
						slog.Error("analysis_job_failed", "workflow_id", job.WorkflowID, "cycle_id", job.CycleID, "error", err.Error())
					}
				}
			}
		}()
	}

	<-ctx.Done()
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	wg.Wait()
	return nil
}

// Pending reports how many jobs wait for a worker.
func (q *Queue) Pending() int {
	return len(q.jobs)
}
