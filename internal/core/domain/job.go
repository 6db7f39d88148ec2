package domain

import "time"

// AnalysisJob asks a worker to run analysis for one cycle of a workflow.
type AnalysisJob struct {
	WorkflowID  string    `json:"workflow_id"`
	CycleID     string    `json:"cycle_id"`
	RequestedAt time.Time `json:"requested_at"`
}
