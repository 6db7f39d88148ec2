package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func testDocument() UploadedDocument {
	return UploadedDocument{ID: "doc-1", Name: "lease.pdf", MimeType: PDFMimeType, StorageKey: "doc-1_lease.pdf"}
}

func testResult() AnalysisResult {
	return AnalysisResult{
		Document: "lease.pdf",
		Analysis: []ClauseFinding{
			{Clause: "a", Severity: SeverityGreen, RiskLevel: RiskLow},
			{Clause: "b", Severity: SeverityRed, RiskLevel: RiskHigh},
			{Clause: "c", Severity: SeverityYellow, RiskLevel: RiskMedium},
		},
	}
}

func TestWorkflowHappyPath(t *testing.T) {
	now := time.Now().UTC()
	w := NewWorkflow("wf-1", now)
	if w.State() != StateIdle || w.Document() != nil || w.Result() != nil {
		t.Fatalf("expected empty idle workflow, got %+v", w.Record())
	}

	if err := w.Begin(testDocument(), "cycle-1", now); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if w.State() != StateAnalyzing || w.Document() == nil || w.Result() != nil {
		t.Fatalf("expected analyzing with document only, got %+v", w.Record())
	}

	if err := w.Complete("cycle-1", testResult(), now); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if w.State() != StatePresenting || w.Document() == nil || w.Result() == nil {
		t.Fatalf("expected presenting with document and result, got %+v", w.Record())
	}

	discarded, err := w.Reset(now)
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if discarded == nil || discarded.Name != "lease.pdf" {
		t.Fatalf("expected discarded document, got %+v", discarded)
	}
	if w.State() != StateIdle || w.Document() != nil || w.Result() != nil {
		t.Fatalf("expected idle after reset, got %+v", w.Record())
	}

	again, err := w.Reset(now)
	if err != nil || again != nil {
		t.Fatalf("expected idempotent reset, got doc=%+v err=%v", again, err)
	}
}

func TestWorkflowRejectsSecondUploadWhileAnalyzing(t *testing.T) {
	w := NewWorkflow("wf-1", time.Now())
	if err := w.Begin(testDocument(), "cycle-1", time.Now()); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	err := w.Begin(testDocument(), "cycle-2", time.Now())
	if !IsKind(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if w.CycleID() != "cycle-1" {
		t.Fatalf("expected original cycle to survive, got %s", w.CycleID())
	}
}

func TestWorkflowDropsStaleCycle(t *testing.T) {
	w := NewWorkflow("wf-1", time.Now())
	_ = w.Begin(testDocument(), "cycle-1", time.Now())
	_, _ = w.Reset(time.Now())
	_ = w.Begin(testDocument(), "cycle-2", time.Now())

	err := w.Complete("cycle-1", testResult(), time.Now())
	if !IsKind(err, ErrStaleCycle) {
		t.Fatalf("expected ErrStaleCycle, got %v", err)
	}
	if w.State() != StateAnalyzing || w.CycleID() != "cycle-2" {
		t.Fatalf("stale result must not change state, got %+v", w.Record())
	}

	_, _ = w.Reset(time.Now())
	if err := w.Fail("cycle-2", Failure{Kind: FailureAnalysis}, time.Now()); !IsKind(err, ErrStaleCycle) {
		t.Fatalf("expected ErrStaleCycle after reset, got %v", err)
	}
}

func TestWorkflowFailKeepsDocumentAndRetries(t *testing.T) {
	w := NewWorkflow("wf-1", time.Now())
	_ = w.Begin(testDocument(), "cycle-1", time.Now())
	if err := w.Fail("cycle-1", Failure{Kind: FailureTimeout, Message: "deadline"}, time.Now()); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if w.State() != StateFailed || w.Document() == nil {
		t.Fatalf("expected failed with document, got %+v", w.Record())
	}

	if err := w.Retry("cycle-2", time.Now()); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if w.State() != StateAnalyzing || w.CycleID() != "cycle-2" || w.Document().Name != "lease.pdf" {
		t.Fatalf("unexpected retry state: %+v", w.Record())
	}
}

func TestWorkflowToggleClauseIsIndependentPerRow(t *testing.T) {
	w := NewWorkflow("wf-1", time.Now())
	_ = w.Begin(testDocument(), "cycle-1", time.Now())
	_ = w.Complete("cycle-1", testResult(), time.Now())

	if err := w.ToggleClause(0, time.Now()); err != nil {
		t.Fatalf("ToggleClause(0) error = %v", err)
	}
	if err := w.ToggleClause(2, time.Now()); err != nil {
		t.Fatalf("ToggleClause(2) error = %v", err)
	}
	expanded := w.Phase.(Presenting).Expanded
	if !expanded.IsExpanded(0) || expanded.IsExpanded(1) || !expanded.IsExpanded(2) {
		t.Fatalf("unexpected expansion set %v", expanded)
	}

	if err := w.ToggleClause(0, time.Now()); err != nil {
		t.Fatalf("ToggleClause(0) error = %v", err)
	}
	expanded = w.Phase.(Presenting).Expanded
	if expanded.IsExpanded(0) || !expanded.IsExpanded(2) {
		t.Fatalf("collapsing row 0 changed row 2: %v", expanded)
	}

	if err := w.ToggleClause(3, time.Now()); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for out of range index, got %v", err)
	}
}

func TestWorkflowJSONRoundTrip(t *testing.T) {
	w := NewWorkflow("wf-1", time.Now().UTC())
	_ = w.Begin(testDocument(), "cycle-1", time.Now().UTC())
	_ = w.Complete("cycle-1", testResult(), time.Now().UTC())
	_ = w.ToggleClause(1, time.Now().UTC())

	raw, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded Workflow
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.State() != StatePresenting || len(decoded.Result().Analysis) != 3 {
		t.Fatalf("unexpected decoded workflow: %+v", decoded.Record())
	}
	if !decoded.Phase.(Presenting).Expanded.IsExpanded(1) {
		t.Fatalf("expected expansion to survive encoding")
	}
}

func TestWorkflowFromRecordRejectsPartialState(t *testing.T) {
	result := testResult()
	_, err := WorkflowFromRecord(WorkflowRecord{ID: "wf-1", State: StatePresenting, CycleID: "c", Result: &result})
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for result without document, got %v", err)
	}

	doc := testDocument()
	_, err = WorkflowFromRecord(WorkflowRecord{ID: "wf-1", State: StateIdle, Document: &doc})
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for idle with document, got %v", err)
	}
}

func TestAvailableEvents(t *testing.T) {
	cases := map[WorkflowState][]WorkflowEvent{
		StateIdle:       {EventUpload, EventReset},
		StateAnalyzing:  {EventComplete, EventFail, EventReset},
		StatePresenting: {EventReset},
		StateFailed:     {EventRetry, EventReset},
	}
	for state, want := range cases {
		got := AvailableEvents(state)
		if len(got) != len(want) {
			t.Fatalf("state %s: expected %v, got %v", state, want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("state %s: expected %v, got %v", state, want, got)
			}
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	w := NewWorkflow("wf-1", time.Now())
	_ = w.Begin(testDocument(), "cycle-1", time.Now())
	_ = w.Complete("cycle-1", testResult(), time.Now())

	clone := w.Clone()
	clone.Result().Analysis[0].Clause = "changed"
	if w.Result().Analysis[0].Clause != "a" {
		t.Fatalf("mutating clone leaked into original")
	}
}
