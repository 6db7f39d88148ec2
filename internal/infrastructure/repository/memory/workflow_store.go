package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

const DefaultTTL = 24 * time.Hour

// WorkflowStore keeps workflows in process memory. Every write refreshes the
// TTL, so only workflows left untouched for a full TTL expire.
type WorkflowStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
	ttl   time.Duration
}

func NewWorkflowStore(ttl, cleanupInterval time.Duration) *WorkflowStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = ttl / 4
	}
	return &WorkflowStore{
		cache: gocache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

// OnExpire registers fn for workflows removed by the TTL janitor. fn runs on
// the janitor goroutine.
func (s *WorkflowStore) OnExpire(fn func(domain.ExpiredWorkflow)) {
	s.cache.OnEvicted(func(key string, raw interface{}) {
		if w, ok := raw.(*domain.Workflow); ok {
			fn(w.Expired())
			return
		}
		fn(domain.ExpiredWorkflow{ID: key})
	})
}

func (s *WorkflowStore) Create(_ context.Context, w *domain.Workflow) error {
	if err := s.cache.Add(w.ID, w.Clone(), s.ttl); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "create workflow", fmt.Errorf("workflow %s already exists", w.ID))
	}
	return nil
}

func (s *WorkflowStore) Get(_ context.Context, id string) (*domain.Workflow, error) {
	w, ok := s.load(id)
	if !ok {
		return nil, notFound("get workflow", id)
	}
	return w.Clone(), nil
}

func (s *WorkflowStore) Update(ctx context.Context, id string, mutate func(*domain.Workflow) error) (*domain.Workflow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.load(id)
	if !ok {
		return nil, notFound("update workflow", id)
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.cache.Set(id, next, s.ttl)
	return next.Clone(), nil
}

// Len reports the number of live workflows.
func (s *WorkflowStore) Len() int {
	return s.cache.ItemCount()
}

func (s *WorkflowStore) load(id string) (*domain.Workflow, bool) {
	raw, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	w, ok := raw.(*domain.Workflow)
	return w, ok
}

func notFound(op, id string) error {
	return domain.WrapError(domain.ErrWorkflowNotFound, op, fmt.Errorf("id %s", id))
}
