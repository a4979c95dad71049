package domain

import (
	"context"
	"time"
)

type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, workflow Workflow) error
	GetWorkflow(ctx context.Context, id string) (Workflow, error)
	GetWorkflowsByIDs(ctx context.Context, ids []string) ([]Workflow, error)
	ListWorkflowsByOwner(ctx context.Context, ownerID string) ([]Workflow, error)
	ListActiveWorkflows(ctx context.Context) ([]Workflow, error)
	UpdateWorkflow(ctx context.Context, workflow Workflow) error
	SetWorkflowActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
	SetWorkflowLastRun(ctx context.Context, id string, lastRunAt time.Time) error
	DeleteWorkflow(ctx context.Context, id string) error
}

type CredentialStore interface {
	CreateCredential(ctx context.Context, credential Credential) error
	GetCredential(ctx context.Context, id string) (Credential, error)
	GetCredentialsByIDs(ctx context.Context, ids []string) ([]Credential, error)
	ListCredentialsByOwners(ctx context.Context, provider IntegrationType, ownerIDs []string) ([]Credential, error)
	// ListCredentialsByAccount matches account ids case-insensitively.
	ListCredentialsByAccount(ctx context.Context, provider IntegrationType, accountID string) ([]Credential, error)
	UpdateCredentialTokens(ctx context.Context, id string, update TokenUpdate) error
	// UpdatePollingState merges the given keys into the stored polling state.
	UpdatePollingState(ctx context.Context, id string, state PollingState) error
	MarkCredentialInvalid(ctx context.Context, id string) error
}

type ExecutionStore interface {
	CreateExecution(ctx context.Context, execution Execution) error
	GetExecution(ctx context.Context, id string) (Execution, error)
	GetExecutionByRunID(ctx context.Context, durableRunID string) (Execution, error)
	GetExecutionByCorrelation(ctx context.Context, runID string) (Execution, error)
	SetExecutionRunID(ctx context.Context, id, durableRunID string) error
	ListExecutionsByWorkflow(ctx context.Context, workflowID string, limit int) ([]Execution, error)
	UpdateExecutionStatus(ctx context.Context, id string, status ExecutionStatus, completedAt *time.Time) error
}

type Store interface {
	WorkflowStore
	CredentialStore
	ExecutionStore
}
