// Package run defines the Run domain entity: one asynchronous unit of work
// (agent invocation, workflow execution, deployment) tracked by the run
// registry.
package run

import "time"

// Status represents the current state of a run.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusRunning    Status = "running"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is a terminal state. Once terminal,
// a run is immutable except for read access.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the status edge from -> to is legal.
// Cancellation is a request, not a forced edge: a cancelling run may still
// finish succeeded or failed.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusRunning || to == StatusCancelling || to == StatusCancelled
	case StatusRunning:
		return to == StatusCancelling || to == StatusSucceeded || to == StatusFailed || to == StatusCancelled
	case StatusCancelling:
		return to == StatusCancelled || to == StatusSucceeded || to == StatusFailed
	default:
		return false
	}
}

// Kind discriminates what a run executes.
type Kind string

const (
	KindAgent      Kind = "agent"
	KindWorkflow   Kind = "workflow"
	KindDeployment Kind = "deployment"
)

// Result is the success payload of a run. Non-nil only when the run
// succeeded.
type Result struct {
	Summary   string   `json:"summary,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
	DiffIDs   []string `json:"diff_ids,omitempty"`
}

// Usage holds incrementally updated execution stats.
type Usage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Run represents a single asynchronous unit of work. EndedAt is set if and
// only if Status is terminal; Result is non-nil only when Status is
// succeeded.
type Run struct {
	ID            string     `json:"id"`
	Kind          Kind       `json:"kind"`
	SessionID     string     `json:"session_id,omitempty"`
	WorkflowID    string     `json:"workflow_id,omitempty"`
	DeploymentID  string     `json:"deployment_id,omitempty"`
	Status        Status     `json:"status"`
	Progress      float64    `json:"progress"`
	StartedAt     *time.Time `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at"`
	Result        *Result    `json:"result"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Usage         Usage      `json:"usage"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ScopeID returns the identifier of the feed this run's events fan out to:
// the owning session when present, otherwise the workflow or deployment.
func (r *Run) ScopeID() string {
	switch {
	case r.SessionID != "":
		return r.SessionID
	case r.WorkflowID != "":
		return r.WorkflowID
	default:
		return r.DeploymentID
	}
}
