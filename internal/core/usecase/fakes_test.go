package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/core/ports"
)

const testPDF = "%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"

type workflowStoreFake struct {
	mu    sync.Mutex
	items map[string]*domain.Workflow
}

func newWorkflowStoreFake() *workflowStoreFake {
	return &workflowStoreFake{items: make(map[string]*domain.Workflow)}
}

func (f *workflowStoreFake) Create(_ context.Context, w *domain.Workflow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[w.ID] = w.Clone()
	return nil
}

func (f *workflowStoreFake) Get(_ context.Context, id string) (*domain.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.items[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrWorkflowNotFound, "get workflow", fmt.Errorf("id %s", id))
	}
	return w.Clone(), nil
}

func (f *workflowStoreFake) Update(_ context.Context, id string, mutate func(*domain.Workflow) error) (*domain.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.items[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrWorkflowNotFound, "update workflow", fmt.Errorf("id %s", id))
	}
	next := w.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	f.items[id] = next
	return next.Clone(), nil
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *storageFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type queueFake struct {
	mu   sync.Mutex
	jobs []domain.AnalysisJob
	err  error
}

func (f *queueFake) PublishAnalysisRequested(_ context.Context, job domain.AnalysisJob) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *queueFake) SubscribeAnalysisRequested(context.Context, func(context.Context, domain.AnalysisJob) error) error {
	return errors.New("not implemented")
}

func (f *queueFake) last() domain.AnalysisJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobs) == 0 {
		return domain.AnalysisJob{}
	}
	return f.jobs[len(f.jobs)-1]
}

type providerFake struct {
	result  *domain.AnalysisResult
	err     error
	block   bool
	started chan struct{}
	calls   atomic.Int32
	seen    string
}

func (f *providerFake) Analyze(ctx context.Context, name string, content io.Reader) (*domain.AnalysisResult, error) {
	f.calls.Add(1)
	f.seen = name
	if f.started != nil {
		close(f.started)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	copyResult := *f.result
	return &copyResult, nil
}

type observerFake struct {
	mu     sync.Mutex
	states []domain.WorkflowState
}

func (f *observerFake) WorkflowChanged(_ context.Context, w *domain.Workflow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, w.State())
}

func fixtureResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Document: "from-provider.pdf",
		Analysis: []domain.ClauseFinding{
			{Clause: "Tenant must pay rent by the 5th of each month", Severity: "🟢", RiskLevel: domain.RiskLow, Explanation: "Standard payment terms."},
			{Clause: "If rent is delayed, penalty of 10% per day applies", Severity: "🔴", RiskLevel: domain.RiskHigh, Explanation: "Excessive late fee."},
			{Clause: "Tenant responsible for minor repairs", Severity: "🟡", RiskLevel: domain.RiskMedium},
		},
		Summary: &domain.LeaseSummary{RentAmount: "$2,400/month", KeyTerms: []string{"Pet policy included"}},
	}
}

type handleFake struct {
	pages  []string
	panics bool
	closed atomic.Bool
}

func (h *handleFake) NumPages() int { return len(h.pages) }

func (h *handleFake) PageText(page int) (string, error) {
	if h.panics {
		panic("loading {5 0}: found {4 0}")
	}
	if page < 1 || page > len(h.pages) {
		return "", errors.New("page out of range")
	}
	return h.pages[page-1], nil
}

func (h *handleFake) Close() error {
	h.closed.Store(true)
	return nil
}

type openerFake struct {
	mu      sync.Mutex
	pages   []string
	panics  bool
	err     error
	handles []*handleFake
}

func (f *openerFake) OpenDocument(_ context.Context, content io.Reader) (ports.DocumentHandle, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(content); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h := &handleFake{pages: f.pages, panics: f.panics}
	f.handles = append(f.handles, h)
	return h, nil
}

type controllerFixture struct {
	store    *workflowStoreFake
	storage  *storageFake
	queue    *queueFake
	provider *providerFake
	observer *observerFake
	uc       *WorkflowControllerUseCase
}

func newControllerFixture() *controllerFixture {
	f := &controllerFixture{
		store:    newWorkflowStoreFake(),
		storage:  newStorageFake(),
		queue:    &queueFake{},
		provider: &providerFake{result: fixtureResult()},
		observer: &observerFake{},
	}
	f.uc = NewWorkflowControllerUseCase(f.store, f.storage, f.queue, f.provider, 0)
	f.uc.Observe(f.observer)
	return f
}

func (f *controllerFixture) uploadDoc(key string) domain.UploadedDocument {
	f.storage.objects[key] = []byte(testPDF)
	return domain.UploadedDocument{ID: "doc-" + key, Name: "lease.pdf", MimeType: domain.PDFMimeType, StorageKey: key}
}
