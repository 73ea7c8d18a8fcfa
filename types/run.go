package types

import (
	"context"
	"time"
)

type RunRequest struct {
	ExecutionID  string `json:"executionId,omitempty"`
	WorkflowID   string `json:"workflowId,omitempty"`
	Nodes        []Node `json:"nodes"`
	Edges        []Edge `json:"edges"`
	TriggerInput Data   `json:"triggerInput,omitempty"`
}

type RunResult struct {
	ExecutionID  string                `json:"executionId"`
	Status       RunStatus             `json:"status"`
	NodeStatuses map[string]NodeStatus `json:"nodeStatuses"`
	Outputs      OutputStore           `json:"outputs,omitempty"`
	NodeErrors   map[string]string     `json:"nodeErrors,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// ExecutionRun is the persisted record of a durable run.
type ExecutionRun struct {
	ID          string      `json:"id"`
	WorkflowID  string      `json:"workflowId,omitempty"`
	Status      RunStatus   `json:"status"`
	Input       Data        `json:"input,omitempty"`
	Output      OutputStore `json:"output,omitempty"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

type NodeTraceRecord struct {
	NodeID    string     `json:"nodeId"`
	Status    NodeStatus `json:"status"`
	StartTime time.Time  `json:"startTime,omitempty"`
	EndTime   time.Time  `json:"endTime,omitempty"`
	Attempts  int        `json:"attempts,omitempty"`
	Error     string     `json:"error,omitempty"`
	Input     Data       `json:"input,omitempty"`
	Output    Data       `json:"output,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
}

type Engine interface {
	// RunSync blocks until every node settled.
	RunSync(ctx context.Context, req *RunRequest) (*RunResult, error)
	// RunDurable persists a running ExecutionRun and drives it in the background.
	RunDurable(ctx context.Context, req *RunRequest) (string, error)

	GetRun(ctx context.Context, executionID string) (*ExecutionRun, error)
	ListNodeRecords(ctx context.Context, executionID string) (map[string]*NodeTraceRecord, error)
	CancelRun(ctx context.Context, executionID string) error
	/**
	 * RenderRun returns the DOT string of the run's graph, nodes coloured by status.
	 */
	RenderRun(ctx context.Context, executionID string) (string, error)
	/**
	 * ReloadRuns resumes persisted runs still marked running, e.g. after a restart.
	 * Runs already driven by this engine are reported as AlreadyExists.
	 */
	ReloadRuns(ctx context.Context) (map[string]error, error)
	/**
	 * Close stops accepting runs, cancels in-flight ones and waits for them.
	 */
	Close(ctx context.Context) error
}
