package domain

import "time"

type WorkflowTrigger struct {
	Provider     IntegrationType `json:"provider"`
	ID           string          `json:"id"`
	Config       map[string]any  `json:"config"`
	CredentialID string          `json:"credential_id,omitempty"`
}

type WorkflowAction struct {
	Provider     IntegrationType `json:"provider"`
	ID           string          `json:"id"`
	Config       map[string]any  `json:"config"`
	CredentialID string          `json:"credential_id,omitempty"`
}

type Workflow struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Trigger     WorkflowTrigger `json:"trigger"`
	Action      WorkflowAction  `json:"action"`
	IsActive    bool            `json:"is_active"`
	LastRunAt   *time.Time      `json:"last_run_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (w Workflow) TriggerKey() string {
	return CapabilityKey(w.Trigger.Provider, w.Trigger.ID)
}

func (w Workflow) ActionKey() string {
	return CapabilityKey(w.Action.Provider, w.Action.ID)
}
