package domain

import "time"

type ExecutionStatus string

const (
	ExecutionStatus_Running   ExecutionStatus = "running"
	ExecutionStatus_Completed ExecutionStatus = "completed"
	ExecutionStatus_Failed    ExecutionStatus = "failed"
	ExecutionStatus_Cancelled ExecutionStatus = "cancelled"
)

func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatus_Completed || s == ExecutionStatus_Failed || s == ExecutionStatus_Cancelled
}

type Execution struct {
	ID                    string          `json:"id"`
	WorkflowID            string          `json:"workflow_id"`
	OwnerID               string          `json:"owner_id"`
	DurableRunID          string          `json:"durable_run_id"`
	DurableRunCorrelation string          `json:"durable_run_correlation"`
	Status                ExecutionStatus `json:"status"`
	TriggerData           map[string]any  `json:"trigger_data"`
	StartedAt             time.Time       `json:"started_at"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty"`
}
