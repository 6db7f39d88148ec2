package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

type WorkflowState string

const (
	StateIdle       WorkflowState = "idle"
	StateAnalyzing  WorkflowState = "analyzing"
	StatePresenting WorkflowState = "presenting"
	StateFailed     WorkflowState = "failed"
)

type FailureKind string

const (
	FailureAnalysis FailureKind = "analysis_failure"
	FailureTimeout  FailureKind = "analysis_timeout"
)

type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Phase is the closed set of workflow states. Only the types in this file
// implement it, so a document without a result outside Analyzing/Failed, or a
// result without a document, cannot be built.
type Phase interface {
	State() WorkflowState
	isPhase()
}

type Idle struct{}

type Analyzing struct {
	CycleID   string
	Document  UploadedDocument
	StartedAt time.Time
}

type Presenting struct {
	CycleID  string
	Document UploadedDocument
	Result   AnalysisResult
	Expanded ExpansionSet
}

type Failed struct {
	CycleID  string
	Document UploadedDocument
	Failure  Failure
}

func (Idle) State() WorkflowState       { return StateIdle }
func (Analyzing) State() WorkflowState  { return StateAnalyzing }
func (Presenting) State() WorkflowState { return StatePresenting }
func (Failed) State() WorkflowState     { return StateFailed }

func (Idle) isPhase()       {}
func (Analyzing) isPhase()  {}
func (Presenting) isPhase() {}
func (Failed) isPhase()     {}

// ExpansionSet holds the indices of expanded clause rows, sorted and unique.
// Values are immutable; Toggle returns a new set.
type ExpansionSet []int

func (s ExpansionSet) IsExpanded(index int) bool {
	i := sort.SearchInts(s, index)
	return i < len(s) && s[i] == index
}

func (s ExpansionSet) Toggle(index int) ExpansionSet {
	i := sort.SearchInts(s, index)
	out := make(ExpansionSet, 0, len(s)+1)
	if i < len(s) && s[i] == index {
		out = append(out, s[:i]...)
		return append(out, s[i+1:]...)
	}
	out = append(out, s[:i]...)
	out = append(out, index)
	return append(out, s[i:]...)
}

type Workflow struct {
	ID        string
	Phase     Phase
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewWorkflow(id string, now time.Time) *Workflow {
	return &Workflow{
		ID:        id,
		Phase:     Idle{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (w *Workflow) State() WorkflowState {
	if w.Phase == nil {
		return StateIdle
	}
	return w.Phase.State()
}

// Document returns the current document, or nil when idle.
func (w *Workflow) Document() *UploadedDocument {
	switch p := w.Phase.(type) {
	case Analyzing:
		return &p.Document
	case Presenting:
		return &p.Document
	case Failed:
		return &p.Document
	default:
		return nil
	}
}

// ExpiredWorkflow names a workflow dropped for inactivity and the stored
// object it still referenced. StorageKey is empty for idle workflows.
type ExpiredWorkflow struct {
	ID         string
	StorageKey string
}

func (w *Workflow) Expired() ExpiredWorkflow {
	out := ExpiredWorkflow{ID: w.ID}
	if doc := w.Document(); doc != nil {
		out.StorageKey = doc.StorageKey
	}
	return out
}

// Result returns the analysis result, present only while presenting.
func (w *Workflow) Result() *AnalysisResult {
	if p, ok := w.Phase.(Presenting); ok {
		return &p.Result
	}
	return nil
}

func (w *Workflow) CycleID() string {
	switch p := w.Phase.(type) {
	case Analyzing:
		return p.CycleID
	case Presenting:
		return p.CycleID
	case Failed:
		return p.CycleID
	default:
		return ""
	}
}

// Begin records doc and starts analysis cycle cycleID.
func (w *Workflow) Begin(doc UploadedDocument, cycleID string, now time.Time) error {
	if _, err := NextState(w.State(), EventUpload); err != nil {
		return err
	}
	w.Phase = Analyzing{CycleID: cycleID, Document: doc, StartedAt: now}
	w.UpdatedAt = now
	return nil
}

// Retry re-runs a failed analysis on the same document under a new cycle.
func (w *Workflow) Retry(cycleID string, now time.Time) error {
	if _, err := NextState(w.State(), EventRetry); err != nil {
		return err
	}
	failed := w.Phase.(Failed)
	w.Phase = Analyzing{CycleID: cycleID, Document: failed.Document, StartedAt: now}
	w.UpdatedAt = now
	return nil
}

func (w *Workflow) Complete(cycleID string, result AnalysisResult, now time.Time) error {
	analyzing, err := w.currentCycle(cycleID, EventComplete)
	if err != nil {
		return err
	}
	w.Phase = Presenting{CycleID: cycleID, Document: analyzing.Document, Result: result}
	w.UpdatedAt = now
	return nil
}

func (w *Workflow) Fail(cycleID string, failure Failure, now time.Time) error {
	analyzing, err := w.currentCycle(cycleID, EventFail)
	if err != nil {
		return err
	}
	w.Phase = Failed{CycleID: cycleID, Document: analyzing.Document, Failure: failure}
	w.UpdatedAt = now
	return nil
}

// Reset returns the workflow to idle and hands back the discarded document,
// if any. Resetting an idle workflow changes nothing.
func (w *Workflow) Reset(now time.Time) (*UploadedDocument, error) {
	if w.State() == StateIdle {
		return nil, nil
	}
	if _, err := NextState(w.State(), EventReset); err != nil {
		return nil, err
	}
	discarded := w.Document()
	w.Phase = Idle{}
	w.UpdatedAt = now
	return discarded, nil
}

func (w *Workflow) ToggleClause(index int, now time.Time) error {
	presenting, ok := w.Phase.(Presenting)
	if !ok {
		return WrapError(ErrInvalidTransition, "toggle clause", fmt.Errorf("workflow is %s", w.State()))
	}
	if index < 0 || index >= len(presenting.Result.Analysis) {
		return WrapError(ErrInvalidInput, "toggle clause", fmt.Errorf("clause index %d out of range", index))
	}
	presenting.Expanded = presenting.Expanded.Toggle(index)
	w.Phase = presenting
	w.UpdatedAt = now
	return nil
}

func (w *Workflow) currentCycle(cycleID string, event WorkflowEvent) (Analyzing, error) {
	analyzing, ok := w.Phase.(Analyzing)
	if !ok {
		// A job that outlived its cycle lands here after reset or retry.
		if w.CycleID() != cycleID {
			return Analyzing{}, WrapError(ErrStaleCycle, string(event), fmt.Errorf("cycle %s is not current", cycleID))
		}
		_, err := NextState(w.State(), event)
		return Analyzing{}, err
	}
	if analyzing.CycleID != cycleID {
		return Analyzing{}, WrapError(ErrStaleCycle, string(event), fmt.Errorf("cycle %s superseded by %s", cycleID, analyzing.CycleID))
	}
	return analyzing, nil
}

// WorkflowRecord is the flat persisted and wire form of a workflow.
type WorkflowRecord struct {
	ID        string            `json:"id"`
	State     WorkflowState     `json:"state"`
	CycleID   string            `json:"cycle_id,omitempty"`
	Document  *UploadedDocument `json:"document,omitempty"`
	Result    *AnalysisResult   `json:"result,omitempty"`
	Failure   *Failure          `json:"failure,omitempty"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	Expanded  []int             `json:"expanded,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (w *Workflow) Record() WorkflowRecord {
	rec := WorkflowRecord{
		ID:        w.ID,
		State:     w.State(),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	switch p := w.Phase.(type) {
	case Analyzing:
		doc := p.Document
		startedAt := p.StartedAt
		rec.CycleID = p.CycleID
		rec.Document = &doc
		rec.StartedAt = &startedAt
	case Presenting:
		doc := p.Document
		result := p.Result
		rec.CycleID = p.CycleID
		rec.Document = &doc
		rec.Result = &result
		rec.Expanded = append([]int(nil), p.Expanded...)
	case Failed:
		doc := p.Document
		failure := p.Failure
		rec.CycleID = p.CycleID
		rec.Document = &doc
		rec.Failure = &failure
	}
	return rec
}

// WorkflowFromRecord rebuilds a workflow, rejecting records whose fields do
// not fit their state.
func WorkflowFromRecord(rec WorkflowRecord) (*Workflow, error) {
	w := &Workflow{ID: rec.ID, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}
	invalid := func(reason string) error {
		return WrapError(ErrInvalidInput, "decode workflow", fmt.Errorf("%s workflow %s: %s", rec.State, rec.ID, reason))
	}

	switch rec.State {
	case StateIdle, "":
		if rec.Document != nil || rec.Result != nil || rec.Failure != nil {
			return nil, invalid("idle workflow carries state")
		}
		w.Phase = Idle{}
	case StateAnalyzing:
		if rec.Document == nil || rec.Result != nil || rec.Failure != nil {
			return nil, invalid("analyzing requires a document and nothing else")
		}
		p := Analyzing{CycleID: rec.CycleID, Document: *rec.Document}
		if rec.StartedAt != nil {
			p.StartedAt = *rec.StartedAt
		}
		w.Phase = p
	case StatePresenting:
		if rec.Document == nil || rec.Result == nil || rec.Failure != nil {
			return nil, invalid("presenting requires a document and a result")
		}
		expanded := ExpansionSet(nil)
		for _, idx := range rec.Expanded {
			if !expanded.IsExpanded(idx) {
				expanded = expanded.Toggle(idx)
			}
		}
		w.Phase = Presenting{CycleID: rec.CycleID, Document: *rec.Document, Result: *rec.Result, Expanded: expanded}
	case StateFailed:
		if rec.Document == nil || rec.Failure == nil || rec.Result != nil {
			return nil, invalid("failed requires a document and a failure")
		}
		w.Phase = Failed{CycleID: rec.CycleID, Document: *rec.Document, Failure: *rec.Failure}
	default:
		return nil, invalid("unknown state")
	}
	if rec.State != StateIdle && rec.State != "" && rec.CycleID == "" {
		return nil, invalid("missing cycle id")
	}
	return w, nil
}

func (w *Workflow) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Record())
}

func (w *Workflow) UnmarshalJSON(data []byte) error {
	var rec WorkflowRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	decoded, err := WorkflowFromRecord(rec)
	if err != nil {
		return err
	}
	*w = *decoded
	return nil
}

// Clone returns a deep copy safe to mutate independently.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	clone, err := WorkflowFromRecord(cloneRecord(w.Record()))
	if err != nil {
		panic(errors.Join(errors.New("clone of a valid workflow failed"), err))
	}
	return clone
}

func cloneRecord(rec WorkflowRecord) WorkflowRecord {
	if rec.Result != nil {
		result := *rec.Result
		result.Analysis = append([]ClauseFinding(nil), rec.Result.Analysis...)
		if rec.Result.Summary != nil {
			summary := *rec.Result.Summary
			summary.KeyTerms = append([]string(nil), rec.Result.Summary.KeyTerms...)
			result.Summary = &summary
		}
		rec.Result = &result
	}
	return rec
}
