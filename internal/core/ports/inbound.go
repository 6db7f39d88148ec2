package ports

import (
	"context"
	"io"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

// WorkflowService is the inbound contract of the workflow controller.
type WorkflowService interface {
	Create(ctx context.Context) (*domain.Workflow, error)
	Get(ctx context.Context, id string) (*domain.Workflow, error)
	StartAnalysis(ctx context.Context, id string, doc domain.UploadedDocument) (*domain.Workflow, error)
	Retry(ctx context.Context, id string) (*domain.Workflow, error)
	Reset(ctx context.Context, id string) (*domain.Workflow, error)
	ToggleClause(ctx context.Context, id string, index int) (*domain.Workflow, error)
}

// AnalysisRunner executes queued analysis jobs.
type AnalysisRunner interface {
	RunAnalysis(ctx context.Context, job domain.AnalysisJob) error
}

// DocumentUploader validates and stores a candidate file, then starts analysis.
type DocumentUploader interface {
	Upload(ctx context.Context, workflowID string, channel domain.UploadChannel, candidates []domain.UploadCandidate) (*domain.Workflow, error)
}

// DocumentPreviewer exposes the viewport over a workflow's document.
type DocumentPreviewer interface {
	View(ctx context.Context, workflowID string) (*domain.PreviewView, error)
	Apply(ctx context.Context, workflowID string, cmd domain.PreviewCommand) (*domain.PreviewView, error)
	OpenDocument(ctx context.Context, workflowID string) (*domain.UploadedDocument, io.ReadCloser, error)
}

// ReportExporter renders the presented result of a workflow.
type ReportExporter interface {
	Export(ctx context.Context, workflowID string, w io.Writer) (*domain.UploadedDocument, error)
}
