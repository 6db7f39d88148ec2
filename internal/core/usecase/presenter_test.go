package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

func TestPresentCountsAndRows(t *testing.T) {
	result, err := domain.NormalizeResult(fixtureResult(), "lease.pdf")
	if err != nil {
		t.Fatalf("NormalizeResult() error = %v", err)
	}

	view := Present(*result, domain.ExpansionSet{1})
	if view.Document != "lease.pdf" {
		t.Fatalf("expected document name, got %q", view.Document)
	}
	if view.Counts.High != 1 || view.Counts.Medium != 1 || view.Counts.Low != 1 || view.Counts.Total != 3 {
		t.Fatalf("unexpected counts %+v", view.Counts)
	}
	if len(view.Clauses) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(view.Clauses))
	}
	if view.Clauses[0].Explanation != "" || !view.Clauses[0].HasDetails {
		t.Fatalf("collapsed row must hide its explanation: %+v", view.Clauses[0])
	}
	if view.Clauses[1].Explanation != "Excessive late fee." {
		t.Fatalf("expanded row must show its explanation: %+v", view.Clauses[1])
	}
	if view.Clauses[2].HasDetails {
		t.Fatalf("row without explanation reports details: %+v", view.Clauses[2])
	}
	if view.Summary == nil || view.Summary.RentAmount != "$2,400/month" {
		t.Fatalf("expected summary, got %+v", view.Summary)
	}
}

func TestPresentEmptyAnalysis(t *testing.T) {
	view := Present(domain.AnalysisResult{Document: "empty.pdf"}, nil)
	if view.Counts != (domain.RiskCounts{}) || len(view.Clauses) != 0 || view.Summary != nil {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestPresentWorkflowOutsidePresenting(t *testing.T) {
	if view := PresentWorkflow(domain.NewWorkflow("wf", testNow())); view != nil {
		t.Fatalf("expected no view for idle workflow")
	}
}

type rendererFake struct {
	view domain.ResultView
	err  error
}

func (f *rendererFake) Render(w io.Writer, view domain.ResultView) error {
	if f.err != nil {
		return f.err
	}
	f.view = view
	_, err := io.WriteString(w, "report")
	return err
}

func TestExportRendersEveryExplanation(t *testing.T) {
	f := newControllerFixture()
	ctx := context.Background()
	w, _ := f.uc.Create(ctx)
	_, _ = f.uc.StartAnalysis(ctx, w.ID, f.uploadDoc("k1"))
	_ = f.uc.RunAnalysis(ctx, f.queue.last())

	renderer := &rendererFake{}
	export := NewExportReportUseCase(f.uc, renderer)
	var buf bytes.Buffer
	doc, err := export.Export(ctx, w.ID, &buf)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if doc.Name != "lease.pdf" || buf.String() != "report" {
		t.Fatalf("unexpected export output doc=%+v body=%q", doc, buf.String())
	}
	for _, row := range renderer.view.Clauses {
		if !row.Expanded {
			t.Fatalf("expected every row expanded in export, got %+v", row)
		}
	}
	if renderer.view.Clauses[0].Explanation != "Standard payment terms." {
		t.Fatalf("expected explanation in export, got %+v", renderer.view.Clauses[0])
	}
}

func TestExportRequiresPresenting(t *testing.T) {
	f := newControllerFixture()
	w, _ := f.uc.Create(context.Background())
	export := NewExportReportUseCase(f.uc, &rendererFake{err: errors.New("unused")})

	_, err := export.Export(context.Background(), w.ID, io.Discard)
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
