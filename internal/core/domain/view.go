package domain

import "fmt"

// ClauseRow is one presented clause. Explanation is set only when the row is
// expanded.
type ClauseRow struct {
	Index       int       `json:"index"`
	Clause      string    `json:"clause"`
	Severity    Severity  `json:"severity"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Expanded    bool      `json:"expanded"`
	Explanation string    `json:"explanation,omitempty"`
	HasDetails  bool      `json:"has_details"`
}

type ResultView struct {
	Document string        `json:"document"`
	Summary  *LeaseSummary `json:"summary,omitempty"`
	Counts   RiskCounts    `json:"counts"`
	Clauses  []ClauseRow   `json:"clauses"`
}

// PreviewAction names a viewport command.
type PreviewAction string

const (
	PreviewNext    PreviewAction = "next"
	PreviewPrev    PreviewAction = "prev"
	PreviewGoTo    PreviewAction = "goto"
	PreviewZoomIn  PreviewAction = "zoom_in"
	PreviewZoomOut PreviewAction = "zoom_out"
	PreviewZoom    PreviewAction = "zoom"
)

type PreviewCommand struct {
	Action PreviewAction `json:"action"`
	Page   int           `json:"page,omitempty"`
	Zoom   float64       `json:"zoom,omitempty"`
}

// Apply runs the command against v. Unknown actions are rejected.
func (c PreviewCommand) Apply(v Viewport) (Viewport, error) {
	switch c.Action {
	case PreviewNext:
		return v.NextPage(), nil
	case PreviewPrev:
		return v.PrevPage(), nil
	case PreviewGoTo:
		return v.GoTo(c.Page), nil
	case PreviewZoomIn:
		return v.ZoomIn(), nil
	case PreviewZoomOut:
		return v.ZoomOut(), nil
	case PreviewZoom:
		return v.SetZoom(c.Zoom), nil
	default:
		return v, WrapError(ErrInvalidInput, "preview action", fmt.Errorf("unknown action %q", c.Action))
	}
}

// PreviewView is the previewer state for one workflow.
type PreviewView struct {
	WorkflowID  string   `json:"workflow_id"`
	Document    string   `json:"document"`
	Viewport    Viewport `json:"viewport"`
	ZoomPercent int      `json:"zoom_percent"`
	PageText    string   `json:"page_text"`
}
