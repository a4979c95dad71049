package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type DispatcherDependencies struct {
	Workflows   domain.WorkflowStore
	Credentials domain.CredentialStore
	Executions  domain.ExecutionStore
	Actions     *domain.ActionRegistry
	Runner      domain.DurableRunner
}

// Dispatcher starts durable runs for workflows and records their executions.
type Dispatcher struct {
	workflows   domain.WorkflowStore
	credentials domain.CredentialStore
	executions  domain.ExecutionStore
	actions     *domain.ActionRegistry
	runner      domain.DurableRunner
	now         func() time.Time
}

func New(deps DispatcherDependencies) *Dispatcher {
	return &Dispatcher{
		workflows:   deps.Workflows,
		credentials: deps.Credentials,
		executions:  deps.Executions,
		actions:     deps.Actions,
		runner:      deps.Runner,
		now:         time.Now,
	}
}

// Execute runs an owner's workflow with the given trigger payload.
func (d *Dispatcher) Execute(ctx context.Context, ownerID, workflowID string, triggerData map[string]any) (domain.Execution, error) {
	workflow, err := d.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return domain.Execution{}, err
	}

	if workflow.OwnerID != ownerID {
		return domain.Execution{}, domain.NewNotFoundError("workflow", workflowID)
	}

	return d.execute(ctx, workflow, triggerData)
}

// TriggerWorkflowExecution is the internal entry point for pollers and
// webhooks. It skips the owner check but requires the workflow to be active.
func (d *Dispatcher) TriggerWorkflowExecution(ctx context.Context, workflowID string, triggerData map[string]any) (domain.Execution, error) {
	workflow, err := d.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return domain.Execution{}, err
	}

	if !workflow.IsActive {
		return domain.Execution{}, fmt.Errorf("%w: %s", domain.ErrNotActive, workflowID)
	}

	return d.execute(ctx, workflow, triggerData)
}

func (d *Dispatcher) execute(ctx context.Context, workflow domain.Workflow, triggerData map[string]any) (domain.Execution, error) {
	kind, err := domain.ParseActionKind(workflow.Action.Provider, workflow.Action.ID)
	if err != nil {
		return domain.Execution{}, err
	}

	action, err := d.actions.Get(workflow.Action.Provider, workflow.Action.ID)
	if err != nil {
		return domain.Execution{}, err
	}

	credentialID, err := d.resolveActionCredential(ctx, workflow, action.Descriptor())
	if err != nil {
		return domain.Execution{}, err
	}

	if triggerData == nil {
		triggerData = map[string]any{}
	}

	runID := uuid.NewString()

	input := domain.RunInput{
		RunID:      runID,
		WorkflowID: workflow.ID,
		OwnerID:    workflow.OwnerID,
		Trigger: domain.RunTrigger{
			Provider: workflow.Trigger.Provider,
			ID:       workflow.Trigger.ID,
			Config:   workflow.Trigger.Config,
		},
		Action: domain.RunAction{
			Kind:         kind,
			Provider:     workflow.Action.Provider,
			ID:           workflow.Action.ID,
			Config:       workflow.Action.Config,
			CredentialID: credentialID,
		},
		TriggerData: triggerData,
	}

	now := d.now()

	// The record exists before the run is queued, so a run that finishes
	// immediately still finds it by correlation id.
	execution := domain.Execution{
		ID:                    uuid.NewString(),
		WorkflowID:            workflow.ID,
		OwnerID:               workflow.OwnerID,
		DurableRunCorrelation: runID,
		Status:                domain.ExecutionStatus_Running,
		TriggerData:           triggerData,
		StartedAt:             now,
	}

	if err := d.executions.CreateExecution(ctx, execution); err != nil {
		return domain.Execution{}, fmt.Errorf("failed to create execution record: %w", err)
	}

	handle, err := d.runner.StartRun(ctx, runID, input)
	if err != nil {
		completedAt := d.now()
		if updateErr := d.executions.UpdateExecutionStatus(ctx, execution.ID, domain.ExecutionStatus_Failed, &completedAt); updateErr != nil {
			log.Error().Err(updateErr).Str("execution_id", execution.ID).Msg("Failed to mark unstarted execution failed")
		}

		return domain.Execution{}, fmt.Errorf("failed to start durable run: %w", err)
	}

	if err := d.executions.SetExecutionRunID(ctx, execution.ID, handle.DurableRunID); err != nil {
		return domain.Execution{}, fmt.Errorf("failed to attach durable run: %w", err)
	}

	execution.DurableRunID = handle.DurableRunID

	if err := d.workflows.SetWorkflowLastRun(ctx, workflow.ID, now); err != nil {
		log.Error().Err(err).Str("workflow_id", workflow.ID).Msg("Failed to stamp workflow last run")
	}

	log.Info().
		Str("workflow_id", workflow.ID).
		Str("user_id", workflow.OwnerID).
		Str("execution_id", execution.ID).
		Str("durable_run_id", handle.DurableRunID).
		Str("action", string(kind)).
		Msg("Started workflow execution")

	return execution, nil
}

// resolveActionCredential honors the workflow's explicit credential when the
// owner holds it, otherwise falls back to the owner's latest credential.
func (d *Dispatcher) resolveActionCredential(ctx context.Context, workflow domain.Workflow, descriptor domain.Descriptor) (string, error) {
	if !descriptor.RequiresCredentials {
		return workflow.Action.CredentialID, nil
	}

	credentials, err := d.credentials.ListCredentialsByOwners(ctx, workflow.Action.Provider, []string{workflow.OwnerID})
	if err != nil {
		return "", fmt.Errorf("failed to list action credentials: %w", err)
	}

	credential, ok := domain.NewCredentialSet(credentials).Resolve(workflow.OwnerID, workflow.Action.CredentialID)
	if !ok {
		return "", domain.NewCredentialError(workflow.Action.CredentialID, fmt.Errorf("no valid %s credential for workflow %s", workflow.Action.Provider, workflow.ID))
	}

	return credential.ID, nil
}

func (d *Dispatcher) GetExecution(ctx context.Context, ownerID, executionID string) (domain.Execution, error) {
	execution, err := d.executions.GetExecution(ctx, executionID)
	if err != nil {
		return domain.Execution{}, err
	}

	if execution.OwnerID != ownerID {
		return domain.Execution{}, domain.NewNotFoundError("execution", executionID)
	}

	return execution, nil
}

func (d *Dispatcher) ListExecutions(ctx context.Context, ownerID, workflowID string, limit int) ([]domain.Execution, error) {
	workflow, err := d.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.OwnerID != ownerID {
		return nil, domain.NewNotFoundError("workflow", workflowID)
	}

	return d.executions.ListExecutionsByWorkflow(ctx, workflowID, limit)
}

func (d *Dispatcher) CancelExecution(ctx context.Context, ownerID, executionID string) (domain.Execution, error) {
	execution, err := d.GetExecution(ctx, ownerID, executionID)
	if err != nil {
		return domain.Execution{}, err
	}

	if execution.Status.IsTerminal() {
		return domain.Execution{}, domain.NewInvalidStateError(execution.WorkflowID, fmt.Sprintf("execution %s already %s", execution.ID, execution.Status))
	}

	if err := d.runner.CancelRun(ctx, execution.DurableRunID); err != nil {
		return domain.Execution{}, fmt.Errorf("failed to cancel durable run: %w", err)
	}

	completedAt := d.now()
	if err := d.executions.UpdateExecutionStatus(ctx, execution.ID, domain.ExecutionStatus_Cancelled, &completedAt); err != nil {
		return domain.Execution{}, err
	}

	execution.Status = domain.ExecutionStatus_Cancelled
	execution.CompletedAt = &completedAt

	return execution, nil
}

// SyncExecutionStatus copies the durable run's status onto the execution record.
func (d *Dispatcher) SyncExecutionStatus(ctx context.Context, executionID string) (domain.Execution, error) {
	execution, err := d.executions.GetExecution(ctx, executionID)
	if err != nil {
		return domain.Execution{}, err
	}

	if execution.Status.IsTerminal() {
		return execution, nil
	}

	result, err := d.runner.GetRunResult(ctx, execution.DurableRunID)
	if err != nil {
		return domain.Execution{}, fmt.Errorf("failed to get durable run result: %w", err)
	}

	return d.applyRunResult(ctx, execution, result)
}

// OnRunFinished records a terminal durable run on its execution. The run is
// matched by correlation id, which the record carries from creation.
func (d *Dispatcher) OnRunFinished(ctx context.Context, result domain.RunResult) {
	var (
		execution domain.Execution
		err       error
	)

	if result.RunID != "" {
		execution, err = d.executions.GetExecutionByCorrelation(ctx, result.RunID)
	} else {
		execution, err = d.executions.GetExecutionByRunID(ctx, result.DurableRunID)
	}

	if err != nil {
		log.Error().Err(err).Str("durable_run_id", result.DurableRunID).Msg("Failed to find execution for finished run")
		return
	}

	if _, err := d.applyRunResult(ctx, execution, result); err != nil {
		log.Error().Err(err).Str("execution_id", execution.ID).Msg("Failed to record finished run")
	}
}

func (d *Dispatcher) applyRunResult(ctx context.Context, execution domain.Execution, result domain.RunResult) (domain.Execution, error) {
	status := result.Status.ExecutionStatus()
	if status == execution.Status {
		return execution, nil
	}

	completedAt := result.FinishedAt
	if completedAt == nil && status.IsTerminal() {
		now := d.now()
		completedAt = &now
	}

	if err := d.executions.UpdateExecutionStatus(ctx, execution.ID, status, completedAt); err != nil {
		return domain.Execution{}, err
	}

	execution.Status = status
	execution.CompletedAt = completedAt

	return execution, nil
}
