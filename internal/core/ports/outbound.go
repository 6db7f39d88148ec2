package ports

import (
	"context"
	"io"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

// WorkflowStore persists workflows. Update runs mutate on the latest stored
// copy under a per-record lock and persists the result only when mutate
// returns nil.
type WorkflowStore interface {
	Create(ctx context.Context, w *domain.Workflow) error
	Get(ctx context.Context, id string) (*domain.Workflow, error)
	Update(ctx context.Context, id string, mutate func(*domain.Workflow) error) (*domain.Workflow, error)
}

// ObjectStorage stores uploaded documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// AnalysisQueue publishes/consumes analysis jobs.
type AnalysisQueue interface {
	PublishAnalysisRequested(ctx context.Context, job domain.AnalysisJob) error
	SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, domain.AnalysisJob) error) error
}

// AnalysisProvider produces clause findings for a document.
type AnalysisProvider interface {
	Analyze(ctx context.Context, name string, content io.Reader) (*domain.AnalysisResult, error)
}

// TextExtractor extracts plain text from PDF bytes.
type TextExtractor interface {
	Extract(ctx context.Context, content io.Reader) (string, error)
}

// Chunker splits text into prompt-sized chunks.
type Chunker interface {
	Split(text string) []string
}

// DocumentHandle is an open, parsed document. Pages are 1-based.
type DocumentHandle interface {
	NumPages() int
	PageText(page int) (string, error)
	Close() error
}

// DocumentOpener parses document bytes into a handle.
type DocumentOpener interface {
	OpenDocument(ctx context.Context, content io.Reader) (DocumentHandle, error)
}

// ReportRenderer writes a result view in a downloadable format.
type ReportRenderer interface {
	Render(w io.Writer, view domain.ResultView) error
}

// WorkflowObserver is notified after every committed workflow transition.
type WorkflowObserver interface {
	WorkflowChanged(ctx context.Context, w *domain.Workflow)
}
