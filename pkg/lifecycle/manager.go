package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
)

// Executor runs a workflow on demand, regardless of trigger activity.
type Executor interface {
	Execute(ctx context.Context, ownerID, workflowID string, triggerData map[string]any) (domain.Execution, error)
}

type ManagerDependencies struct {
	Workflows domain.WorkflowStore
	Triggers  *domain.TriggerRegistry
	Actions   *domain.ActionRegistry
	Executor  Executor
}

// Manager owns the workflow state machine: Draft (inactive) and Active.
type Manager struct {
	workflows domain.WorkflowStore
	triggers  *domain.TriggerRegistry
	actions   *domain.ActionRegistry
	executor  Executor
	now       func() time.Time
}

func NewManager(deps ManagerDependencies) *Manager {
	return &Manager{
		workflows: deps.Workflows,
		triggers:  deps.Triggers,
		actions:   deps.Actions,
		executor:  deps.Executor,
		now:       time.Now,
	}
}

type CreateWorkflowParams struct {
	OwnerID     string
	Name        string
	Description string
	Trigger     domain.WorkflowTrigger
	Action      domain.WorkflowAction
}

func (m *Manager) CreateWorkflow(ctx context.Context, p CreateWorkflowParams) (domain.Workflow, error) {
	if strings.TrimSpace(p.Name) == "" {
		return domain.Workflow{}, domain.NewValidationError("workflow", domain.FieldIssue{Field: "name", Message: "is required"})
	}

	trigger, action, err := m.lookupCapabilities(p.Trigger, p.Action)
	if err != nil {
		return domain.Workflow{}, err
	}

	if err := validateIfPresent(trigger.ValidateConfig, p.Trigger.Config); err != nil {
		return domain.Workflow{}, err
	}

	if err := validateIfPresent(action.ValidateInput, p.Action.Config); err != nil {
		return domain.Workflow{}, err
	}

	now := m.now()

	workflow := domain.Workflow{
		ID:          uuid.NewString(),
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Slug:        slug.Make(p.Name),
		Description: p.Description,
		Trigger:     p.Trigger,
		Action:      p.Action,
		IsActive:    false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.workflows.CreateWorkflow(ctx, workflow); err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to create workflow: %w", err)
	}

	log.Info().Str("workflow_id", workflow.ID).Str("user_id", workflow.OwnerID).Msg("Workflow created")

	return workflow, nil
}

type UpdateWorkflowParams struct {
	OwnerID     string
	WorkflowID  string
	Name        *string
	Description *string
	Trigger     *domain.WorkflowTrigger
	Action      *domain.WorkflowAction
}

func (m *Manager) UpdateWorkflow(ctx context.Context, p UpdateWorkflowParams) (domain.Workflow, error) {
	workflow, err := m.GetWorkflow(ctx, p.OwnerID, p.WorkflowID)
	if err != nil {
		return domain.Workflow{}, err
	}

	if workflow.IsActive {
		return domain.Workflow{}, domain.NewInvalidStateError(workflow.ID, "cannot update an active workflow, deactivate it first")
	}

	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return domain.Workflow{}, domain.NewValidationError("workflow", domain.FieldIssue{Field: "name", Message: "is required"})
		}

		workflow.Name = *p.Name
		workflow.Slug = slug.Make(*p.Name)
	}

	if p.Description != nil {
		workflow.Description = *p.Description
	}

	if p.Trigger != nil {
		trigger, err := m.triggers.Get(p.Trigger.Provider, p.Trigger.ID)
		if err != nil {
			return domain.Workflow{}, err
		}

		if err := validateIfPresent(trigger.ValidateConfig, p.Trigger.Config); err != nil {
			return domain.Workflow{}, err
		}

		workflow.Trigger = *p.Trigger
	}

	if p.Action != nil {
		action, err := m.actions.Get(p.Action.Provider, p.Action.ID)
		if err != nil {
			return domain.Workflow{}, err
		}

		if err := validateIfPresent(action.ValidateInput, p.Action.Config); err != nil {
			return domain.Workflow{}, err
		}

		workflow.Action = *p.Action
	}

	workflow.UpdatedAt = m.now()

	if err := m.workflows.UpdateWorkflow(ctx, workflow); err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// GetWorkflow hides workflows of other owners behind a NotFoundError.
func (m *Manager) GetWorkflow(ctx context.Context, ownerID, workflowID string) (domain.Workflow, error) {
	workflow, err := m.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return domain.Workflow{}, err
	}

	if workflow.OwnerID != ownerID {
		return domain.Workflow{}, domain.NewNotFoundError("workflow", workflowID)
	}

	return workflow, nil
}

func (m *Manager) ListWorkflows(ctx context.Context, ownerID string) ([]domain.Workflow, error) {
	return m.workflows.ListWorkflowsByOwner(ctx, ownerID)
}

// ActivateWorkflow persists the active flag before registering the trigger
// and rolls it back when registration fails.
func (m *Manager) ActivateWorkflow(ctx context.Context, ownerID, workflowID string) (domain.Workflow, error) {
	workflow, err := m.GetWorkflow(ctx, ownerID, workflowID)
	if err != nil {
		return domain.Workflow{}, err
	}

	if workflow.IsActive {
		return domain.Workflow{}, domain.NewInvalidStateError(workflow.ID, "workflow is already active")
	}

	trigger, action, err := m.lookupCapabilities(workflow.Trigger, workflow.Action)
	if err != nil {
		return domain.Workflow{}, err
	}

	if err := trigger.ValidateConfig(workflow.Trigger.Config); err != nil {
		return domain.Workflow{}, err
	}

	if err := action.ValidateInput(workflow.Action.Config); err != nil {
		return domain.Workflow{}, err
	}

	now := m.now()
	if err := m.workflows.SetWorkflowActive(ctx, workflow.ID, true, now); err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to activate workflow: %w", err)
	}

	if err := m.register(ctx, trigger, workflow); err != nil {
		if rollbackErr := m.workflows.SetWorkflowActive(ctx, workflow.ID, false, m.now()); rollbackErr != nil {
			log.Error().Err(rollbackErr).Str("workflow_id", workflow.ID).Msg("Failed to roll back activation")
		}

		return domain.Workflow{}, err
	}

	workflow.IsActive = true
	workflow.UpdatedAt = now

	log.Info().Str("workflow_id", workflow.ID).Str("user_id", workflow.OwnerID).Str("trigger", workflow.TriggerKey()).Msg("Workflow activated")

	return workflow, nil
}

func (m *Manager) register(ctx context.Context, trigger domain.Trigger, workflow domain.Workflow) error {
	setup, err := trigger.Register(ctx, domain.RegisterParams{
		WorkflowID:   workflow.ID,
		OwnerID:      workflow.OwnerID,
		Config:       workflow.Trigger.Config,
		CredentialID: workflow.Trigger.CredentialID,
	})
	if err != nil {
		return err
	}

	if !setup.OK() {
		log.Warn().Err(setup.Err).Str("workflow_id", workflow.ID).Str("trigger", workflow.TriggerKey()).Msg("Trigger setup failed, registration kept")
	}

	return nil
}

// DeactivateWorkflow always succeeds once the workflow is active, even when
// its trigger is no longer registered.
func (m *Manager) DeactivateWorkflow(ctx context.Context, ownerID, workflowID string) (domain.Workflow, error) {
	workflow, err := m.GetWorkflow(ctx, ownerID, workflowID)
	if err != nil {
		return domain.Workflow{}, err
	}

	if !workflow.IsActive {
		return domain.Workflow{}, domain.NewInvalidStateError(workflow.ID, "workflow is not active")
	}

	return m.deactivate(ctx, workflow)
}

func (m *Manager) deactivate(ctx context.Context, workflow domain.Workflow) (domain.Workflow, error) {
	trigger, err := m.triggers.Get(workflow.Trigger.Provider, workflow.Trigger.ID)
	if err == nil {
		if setup := trigger.Unregister(ctx, workflow.ID); !setup.OK() {
			log.Warn().Err(setup.Err).Str("workflow_id", workflow.ID).Msg("Trigger teardown failed, registration removed")
		}
	} else {
		log.Warn().Err(err).Str("workflow_id", workflow.ID).Msg("Trigger no longer registered, deactivating anyway")
	}

	now := m.now()
	if err := m.workflows.SetWorkflowActive(ctx, workflow.ID, false, now); err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to deactivate workflow: %w", err)
	}

	workflow.IsActive = false
	workflow.UpdatedAt = now

	log.Info().Str("workflow_id", workflow.ID).Str("user_id", workflow.OwnerID).Msg("Workflow deactivated")

	return workflow, nil
}

func (m *Manager) DeleteWorkflow(ctx context.Context, ownerID, workflowID string) error {
	workflow, err := m.GetWorkflow(ctx, ownerID, workflowID)
	if err != nil {
		return err
	}

	if workflow.IsActive {
		if _, err := m.deactivate(ctx, workflow); err != nil {
			return err
		}
	}

	if err := m.workflows.DeleteWorkflow(ctx, workflow.ID); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	log.Info().Str("workflow_id", workflow.ID).Str("user_id", workflow.OwnerID).Msg("Workflow deleted")

	return nil
}

// ExecuteWorkflow runs the workflow's action once with a manual payload.
func (m *Manager) ExecuteWorkflow(ctx context.Context, ownerID, workflowID string, payload map[string]any) (domain.Execution, error) {
	workflow, err := m.GetWorkflow(ctx, ownerID, workflowID)
	if err != nil {
		return domain.Execution{}, err
	}

	action, err := m.actions.Get(workflow.Action.Provider, workflow.Action.ID)
	if err != nil {
		return domain.Execution{}, err
	}

	if err := action.ValidateInput(workflow.Action.Config); err != nil {
		return domain.Execution{}, err
	}

	if payload == nil {
		payload = map[string]any{}
	}

	return m.executor.Execute(ctx, ownerID, workflowID, payload)
}

// ReloadActiveWorkflows re-creates the in-memory registrations of every
// active workflow. Failures leave the workflow inactive and are only logged.
func (m *Manager) ReloadActiveWorkflows(ctx context.Context) (int, error) {
	workflows, err := m.workflows.ListActiveWorkflows(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active workflows: %w", err)
	}

	reloaded := 0

	for _, workflow := range workflows {
		logger := log.With().Str("workflow_id", workflow.ID).Str("user_id", workflow.OwnerID).Str("trigger", workflow.TriggerKey()).Logger()

		trigger, err := m.triggers.Get(workflow.Trigger.Provider, workflow.Trigger.ID)
		if err == nil {
			err = m.register(ctx, trigger, workflow)
		}

		if err != nil {
			logger.Error().Err(err).Msg("Failed to reload workflow, marking inactive")

			if err := m.workflows.SetWorkflowActive(ctx, workflow.ID, false, m.now()); err != nil {
				logger.Error().Err(err).Msg("Failed to mark workflow inactive")
			}

			continue
		}

		reloaded++
	}

	log.Info().Int("reloaded", reloaded).Int("active", len(workflows)).Msg("Reloaded active workflows")

	return reloaded, nil
}

func (m *Manager) lookupCapabilities(trigger domain.WorkflowTrigger, action domain.WorkflowAction) (domain.Trigger, domain.Action, error) {
	t, err := m.triggers.Get(trigger.Provider, trigger.ID)
	if err != nil {
		return nil, nil, err
	}

	a, err := m.actions.Get(action.Provider, action.ID)
	if err != nil {
		return nil, nil, err
	}

	return t, a, nil
}

func validateIfPresent(validate func(map[string]any) error, config map[string]any) error {
	if len(config) == 0 {
		return nil
	}

	return validate(config)
}
