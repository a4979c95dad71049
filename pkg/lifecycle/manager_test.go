package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/flowbaker/automations/internal/durable"
	"github.com/flowbaker/automations/internal/store/memory"
	"github.com/flowbaker/automations/pkg/dispatcher"
	"github.com/flowbaker/automations/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSubscribe = errors.New("subscribe failed")

type failingTrigger struct {
	*domain.BaseTrigger
	registerErr error
	setupErr    error
	unregisters int
}

func (t *failingTrigger) Register(ctx context.Context, params domain.RegisterParams) (domain.SetupResult, error) {
	if t.registerErr != nil {
		return domain.SetupResult{}, t.registerErr
	}

	setup, err := t.BaseTrigger.Register(ctx, params)
	if err != nil {
		return setup, err
	}

	if t.setupErr != nil {
		return domain.SetupFailed(t.Descriptor(), params.WorkflowID, t.setupErr), nil
	}

	return setup, nil
}

func (t *failingTrigger) Unregister(ctx context.Context, workflowID string) domain.SetupResult {
	t.unregisters++

	return t.BaseTrigger.Unregister(ctx, workflowID)
}

type fixture struct {
	store    *memory.Store
	runner   *durable.MemoryRunner
	trigger  *failingTrigger
	triggers *domain.TriggerRegistry
	manager  *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	runner := durable.NewMemoryRunner(durable.MemoryRunnerDependencies{})

	trigger := &failingTrigger{
		BaseTrigger: domain.NewBaseTrigger(domain.BaseTriggerDependencies{
			Descriptor: domain.Descriptor{
				Provider: domain.IntegrationType_Github,
				ID:       "new_star",
				ConfigProperties: []domain.NodeProperty{
					{Key: "repository", Name: "Repository", Type: domain.NodePropertyType_String, Required: true},
				},
			},
			Registrations: domain.NewInMemoryRegistrationStore(),
		}),
	}

	triggers := domain.NewTriggerRegistry()
	triggers.Register(trigger)

	actions := domain.NewActionRegistry()
	actions.Register(domain.NewBaseAction(domain.Descriptor{
		Provider: domain.IntegrationType_Discord,
		ID:       "send_webhook_message",
		InputProperties: []domain.NodeProperty{
			{Key: "webhook_url", Name: "Webhook URL", Type: domain.NodePropertyType_String, Required: true},
			{Key: "content", Name: "Content", Type: domain.NodePropertyType_Text, Required: true},
		},
	}, nil))

	return &fixture{
		store:    store,
		runner:   runner,
		trigger:  trigger,
		triggers: triggers,
		manager: NewManager(ManagerDependencies{
			Workflows: store,
			Triggers:  triggers,
			Actions:   actions,
			Executor: dispatcher.New(dispatcher.DispatcherDependencies{
				Workflows:   store,
				Credentials: store,
				Executions:  store,
				Actions:     actions,
				Runner:      runner,
			}),
		}),
	}
}

func validParams() CreateWorkflowParams {
	return CreateWorkflowParams{
		OwnerID: "u1",
		Name:    "Stars To Discord",
		Trigger: domain.WorkflowTrigger{
			Provider: domain.IntegrationType_Github,
			ID:       "new_star",
			Config:   map[string]any{"repository": "flowbaker/flowbaker"},
		},
		Action: domain.WorkflowAction{
			Provider: domain.IntegrationType_Discord,
			ID:       "send_webhook_message",
			Config: map[string]any{
				"webhook_url": "https://discord.com/api/webhooks/1/abc",
				"content":     "{{ .trigger.user }} starred",
			},
		},
	}
}

func TestManager_CreateWorkflow(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		modify  func(p *CreateWorkflowParams)
		wantErr error
	}{
		{
			name:   "valid workflow is created as draft",
			modify: func(p *CreateWorkflowParams) {},
		},
		{
			name: "skeleton without configs is accepted",
			modify: func(p *CreateWorkflowParams) {
				p.Trigger.Config = nil
				p.Action.Config = nil
			},
		},
		{
			name:    "missing name",
			modify:  func(p *CreateWorkflowParams) { p.Name = " " },
			wantErr: domain.ErrValidation,
		},
		{
			name:    "unknown trigger",
			modify:  func(p *CreateWorkflowParams) { p.Trigger.ID = "new_fork" },
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "unknown action",
			modify:  func(p *CreateWorkflowParams) { p.Action.Provider = domain.IntegrationType_Slack },
			wantErr: domain.ErrNotFound,
		},
		{
			name: "invalid non-empty action config",
			modify: func(p *CreateWorkflowParams) {
				p.Action.Config = map[string]any{"content": "hi"}
			},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			params := validParams()
			tt.modify(&params)

			workflow, err := f.manager.CreateWorkflow(ctx, params)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, workflow.ID)
			assert.Equal(t, "stars-to-discord", workflow.Slug)
			assert.False(t, workflow.IsActive)

			stored, err := f.store.GetWorkflow(ctx, workflow.ID)
			require.NoError(t, err)
			assert.Equal(t, workflow.Name, stored.Name)
		})
	}
}

func TestManager_ActivateAndDeactivate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	workflow, err := f.manager.CreateWorkflow(ctx, validParams())
	require.NoError(t, err)

	activated, err := f.manager.ActivateWorkflow(ctx, "u1", workflow.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	_, registered := f.trigger.Registration(workflow.ID)
	assert.True(t, registered)

	_, err = f.manager.ActivateWorkflow(ctx, "u1", workflow.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	name := "Renamed"
	_, err = f.manager.UpdateWorkflow(ctx, UpdateWorkflowParams{OwnerID: "u1", WorkflowID: workflow.ID, Name: &name})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	deactivated, err := f.manager.DeactivateWorkflow(ctx, "u1", workflow.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)
	assert.Equal(t, 0, len(f.trigger.Registrations()))

	_, err = f.manager.DeactivateWorkflow(ctx, "u1", workflow.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	updated, err := f.manager.UpdateWorkflow(ctx, UpdateWorkflowParams{OwnerID: "u1", WorkflowID: workflow.ID, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Slug)
}

func TestManager_ActivateRequiresConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	params := validParams()
	params.Trigger.Config = nil

	workflow, err := f.manager.CreateWorkflow(ctx, params)
	require.NoError(t, err)

	_, err = f.manager.ActivateWorkflow(ctx, "u1", workflow.ID)
	require.ErrorIs(t, err, domain.ErrValidation)

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.NotEmpty(t, validationErr.Issues)
	assert.Equal(t, "repository", validationErr.Issues[0].Field)

	stored, err := f.store.GetWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestManager_ActivationRollback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	workflow, err := f.manager.CreateWorkflow(ctx, validParams())
	require.NoError(t, err)

	f.trigger.registerErr = errSubscribe

	_, err = f.manager.ActivateWorkflow(ctx, "u1", workflow.ID)
	require.ErrorIs(t, err, errSubscribe)

	stored, err := f.store.GetWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestManager_SoftSetupFailureKeepsActivation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	workflow, err := f.manager.CreateWorkflow(ctx, validParams())
	require.NoError(t, err)

	f.trigger.setupErr = errSubscribe

	activated, err := f.manager.ActivateWorkflow(ctx, "u1", workflow.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	_, registered := f.trigger.Registration(workflow.ID)
	assert.True(t, registered)
}

func TestManager_DeactivateWithoutTrigger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	workflow, err := f.manager.CreateWorkflow(ctx, validParams())
	require.NoError(t, err)

	_, err = f.manager.ActivateWorkflow(ctx, "u1", workflow.ID)
	require.NoError(t, err)

	f.triggers.Unregister(domain.IntegrationType_Github, "new_star")

	deactivated, err := f.manager.DeactivateWorkflow(ctx, "u1", workflow.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)
	assert.Equal(t, 0, f.trigger.unregisters)
}

func TestManager_DeleteForcesDeactivation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	workflow, err := f.manager.CreateWorkflow(ctx, validParams())
	require.NoError(t, err)

	_, err = f.manager.ActivateWorkflow(ctx, "u1", workflow.ID)
	require.NoError(t, err)

	require.NoError(t, f.manager.DeleteWorkflow(ctx, "u1", workflow.ID))
	assert.Equal(t, 1, f.trigger.unregisters)
	assert.Empty(t, f.trigger.Registrations())

	_, err = f.store.GetWorkflow(ctx, workflow.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_OwnerMismatchIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	workflow, err := f.manager.CreateWorkflow(ctx, validParams())
	require.NoError(t, err)

	_, err = f.manager.GetWorkflow(ctx, "u2", workflow.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.manager.ActivateWorkflow(ctx, "u2", workflow.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, f.manager.DeleteWorkflow(ctx, "u2", workflow.ID), domain.ErrNotFound)
}

func TestManager_ExecuteWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	workflow, err := f.manager.CreateWorkflow(ctx, validParams())
	require.NoError(t, err)

	execution, err := f.manager.ExecuteWorkflow(ctx, "u1", workflow.ID, map[string]any{"user": "octocat"})
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, execution.WorkflowID)

	inputs := f.runner.Inputs()
	require.Len(t, inputs, 1)
	assert.Equal(t, domain.ActionKind_DiscordSendWebhookMessage, inputs[0].Action.Kind)
	assert.Equal(t, "octocat", inputs[0].TriggerData["user"])
}

func TestManager_ReloadActiveWorkflows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	good, err := f.manager.CreateWorkflow(ctx, validParams())
	require.NoError(t, err)

	orphanParams := validParams()
	orphanParams.Name = "Orphan"
	orphan, err := f.manager.CreateWorkflow(ctx, orphanParams)
	require.NoError(t, err)

	orphan.IsActive = true
	orphan.Trigger.ID = "removed_trigger"
	require.NoError(t, f.store.UpdateWorkflow(ctx, orphan))
	require.NoError(t, f.store.SetWorkflowActive(ctx, good.ID, true, good.UpdatedAt))

	reloaded, err := f.manager.ReloadActiveWorkflows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded)

	_, registered := f.trigger.Registration(good.ID)
	assert.True(t, registered)

	stored, err := f.store.GetWorkflow(ctx, orphan.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}
