package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/core/ports"
)

// Present derives the result view. Counts are recomputed from result on every
// call and explanations are included only for expanded rows.
func Present(result domain.AnalysisResult, expanded domain.ExpansionSet) domain.ResultView {
	view := domain.ResultView{
		Document: result.Document,
		Counts:   domain.CountRisks(result.Analysis),
		Clauses:  make([]domain.ClauseRow, 0, len(result.Analysis)),
	}
	if !result.Summary.IsEmpty() {
		summary := *result.Summary
		view.Summary = &summary
	}
	for idx, finding := range result.Analysis {
		row := domain.ClauseRow{
			Index:      idx,
			Clause:     finding.Clause,
			Severity:   finding.RiskLevel.Severity(),
			RiskLevel:  finding.RiskLevel,
			Expanded:   expanded.IsExpanded(idx),
			HasDetails: finding.Explanation != "",
		}
		if row.Expanded {
			row.Explanation = finding.Explanation
		}
		view.Clauses = append(view.Clauses, row)
	}
	return view
}

// PresentWorkflow returns the view for a presenting workflow, or nil.
func PresentWorkflow(w *domain.Workflow) *domain.ResultView {
	presenting, ok := w.Phase.(domain.Presenting)
	if !ok {
		return nil
	}
	view := Present(presenting.Result, presenting.Expanded)
	return &view
}

type ExportReportUseCase struct {
	workflows ports.WorkflowService
	renderer  ports.ReportRenderer
}

func NewExportReportUseCase(workflows ports.WorkflowService, renderer ports.ReportRenderer) *ExportReportUseCase {
	return &ExportReportUseCase{workflows: workflows, renderer: renderer}
}

// Export renders the full report, with every explanation, for a presenting
// workflow.
func (uc *ExportReportUseCase) Export(ctx context.Context, workflowID string, w io.Writer) (*domain.UploadedDocument, error) {
	wf, err := uc.workflows.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	presenting, ok := wf.Phase.(domain.Presenting)
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidTransition, "export report", fmt.Errorf("workflow is %s", wf.State()))
	}

	all := domain.ExpansionSet(nil)
	for idx := range presenting.Result.Analysis {
		all = all.Toggle(idx)
	}
	if err := uc.renderer.Render(w, Present(presenting.Result, all)); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	doc := presenting.Document
	return &doc, nil
}
