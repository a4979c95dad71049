package domain

import (
	"context"
	"sort"
	"time"
)

type RegisterParams struct {
	WorkflowID   string
	OwnerID      string
	Config       map[string]any
	CredentialID string
}

// SetupResult reports the outcome of a trigger's external setup. A failed
// setup never prevents the registration itself from being recorded.
type SetupResult struct {
	Err *RegistrationError
}

func (r SetupResult) OK() bool {
	return r.Err == nil
}

func SetupFailed(descriptor Descriptor, workflowID string, err error) SetupResult {
	return SetupResult{Err: &RegistrationError{
		Provider:   descriptor.Provider,
		TriggerID:  descriptor.ID,
		WorkflowID: workflowID,
		Err:        err,
	}}
}

type Trigger interface {
	Descriptor() Descriptor
	ValidateConfig(config map[string]any) error
	// Register records the registration, replacing any previous one for the
	// workflow. The error is non-nil only when nothing was recorded.
	Register(ctx context.Context, params RegisterParams) (SetupResult, error)
	Unregister(ctx context.Context, workflowID string) SetupResult
}

type PolledTrigger interface {
	Trigger
	Registrations() map[string]Registration
}

type PushTrigger interface {
	Trigger
	MatchingWorkflows(event map[string]any) []string
}

type Action interface {
	Descriptor() Descriptor
	ValidateInput(config map[string]any) error
}

type BaseTriggerDependencies struct {
	Descriptor    Descriptor
	Registrations RegistrationStore
	Validator     *SchemaValidator
}

// BaseTrigger implements registration bookkeeping shared by every trigger.
// Push triggers embed it and add their own external setup.
type BaseTrigger struct {
	descriptor    Descriptor
	registrations RegistrationStore
	validator     *SchemaValidator
	now           func() time.Time
}

func NewBaseTrigger(deps BaseTriggerDependencies) *BaseTrigger {
	validator := deps.Validator
	if validator == nil {
		validator = NewSchemaValidator()
	}

	return &BaseTrigger{
		descriptor:    deps.Descriptor,
		registrations: deps.Registrations,
		validator:     validator,
		now:           time.Now,
	}
}

func (t *BaseTrigger) Descriptor() Descriptor {
	return t.descriptor
}

func (t *BaseTrigger) ValidateConfig(config map[string]any) error {
	return t.validator.Validate(t.descriptor, config)
}

func (t *BaseTrigger) Register(ctx context.Context, params RegisterParams) (SetupResult, error) {
	t.registrations.Put(t.descriptor.Key(), Registration{
		WorkflowID:   params.WorkflowID,
		OwnerID:      params.OwnerID,
		Config:       params.Config,
		CredentialID: params.CredentialID,
		RegisteredAt: t.now(),
	})

	return SetupResult{}, nil
}

func (t *BaseTrigger) Unregister(ctx context.Context, workflowID string) SetupResult {
	t.registrations.Delete(t.descriptor.Key(), workflowID)

	return SetupResult{}
}

func (t *BaseTrigger) Registrations() map[string]Registration {
	return t.registrations.List(t.descriptor.Key())
}

func (t *BaseTrigger) Registration(workflowID string) (Registration, bool) {
	return t.registrations.Get(t.descriptor.Key(), workflowID)
}

// MatchingWorkflows returns, in stable order, the registered workflows whose
// filter properties all match the event.
func (t *BaseTrigger) MatchingWorkflows(event map[string]any) []string {
	filterKeys := FilterKeys(t.descriptor.ConfigProperties)

	workflowIDs := []string{}
	for workflowID, registration := range t.Registrations() {
		if MatchesConfig(filterKeys, registration.Config, event) {
			workflowIDs = append(workflowIDs, workflowID)
		}
	}

	sort.Strings(workflowIDs)

	return workflowIDs
}

type BaseAction struct {
	descriptor Descriptor
	validator  *SchemaValidator
}

func NewBaseAction(descriptor Descriptor, validator *SchemaValidator) *BaseAction {
	if validator == nil {
		validator = NewSchemaValidator()
	}

	return &BaseAction{descriptor: descriptor, validator: validator}
}

func (a *BaseAction) Descriptor() Descriptor {
	return a.descriptor
}

func (a *BaseAction) ValidateInput(config map[string]any) error {
	return a.validator.Validate(a.descriptor, config)
}
