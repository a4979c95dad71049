package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/flowbaker/automations/pkg/domain"
)

func scanWorkflow(row pgx.Row) (domain.Workflow, error) {
	var (
		workflow        domain.Workflow
		triggerProvider string
		actionProvider  string
		triggerConfig   []byte
		actionConfig    []byte
	)

	err := row.Scan(
		&workflow.ID, &workflow.OwnerID, &workflow.Name, &workflow.Slug, &workflow.Description,
		&triggerProvider, &workflow.Trigger.ID, &triggerConfig, &workflow.Trigger.CredentialID,
		&actionProvider, &workflow.Action.ID, &actionConfig, &workflow.Action.CredentialID,
		&workflow.IsActive, &workflow.LastRunAt, &workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if err != nil {
		return domain.Workflow{}, err
	}

	workflow.Trigger.Provider = domain.IntegrationType(triggerProvider)
	workflow.Action.Provider = domain.IntegrationType(actionProvider)

	if workflow.Trigger.Config, err = unmarshalObject(triggerConfig); err != nil {
		return domain.Workflow{}, err
	}

	if workflow.Action.Config, err = unmarshalObject(actionConfig); err != nil {
		return domain.Workflow{}, err
	}

	return workflow, nil
}

func (s *Store) scanCredential(row pgx.Row) (domain.Credential, error) {
	var (
		credential   domain.Credential
		provider     string
		pollingState []byte
	)

	err := row.Scan(
		&credential.ID, &credential.OwnerID, &provider, &credential.AccountID,
		&credential.AccessToken, &credential.RefreshToken, &credential.ExpiresAt,
		&credential.ClientID, &credential.ClientSecret, &credential.IsValid,
		&pollingState, &credential.UpdatedAt,
	)
	if err != nil {
		return domain.Credential{}, err
	}

	credential.Provider = domain.IntegrationType(provider)

	for _, secret := range []*string{&credential.AccessToken, &credential.RefreshToken, &credential.ClientSecret} {
		if *secret, err = s.open(*secret); err != nil {
			return domain.Credential{}, err
		}
	}

	credential.PollingState = domain.PollingState{}
	if len(pollingState) > 0 {
		if err := json.Unmarshal(pollingState, &credential.PollingState); err != nil {
			return domain.Credential{}, fmt.Errorf("failed to unmarshal polling state: %w", err)
		}
	}

	return credential, nil
}

func scanExecution(row pgx.Row) (domain.Execution, error) {
	var (
		execution   domain.Execution
		status      string
		triggerData []byte
	)

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &execution.OwnerID, &execution.DurableRunID,
		&execution.DurableRunCorrelation, &status, &triggerData, &execution.StartedAt, &execution.CompletedAt,
	)
	if err != nil {
		return domain.Execution{}, err
	}

	execution.Status = domain.ExecutionStatus(status)

	if execution.TriggerData, err = unmarshalObject(triggerData); err != nil {
		return domain.Execution{}, err
	}

	return execution, nil
}

func marshalJSON(value map[string]any) (string, error) {
	if value == nil {
		return "{}", nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal json column: %w", err)
	}

	return string(raw), nil
}

func marshalPollingState(state domain.PollingState) (string, error) {
	if len(state) == 0 {
		return "{}", nil
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal polling state: %w", err)
	}

	return string(raw), nil
}

func unmarshalObject(raw []byte) (map[string]any, error) {
	object := map[string]any{}
	if len(raw) == 0 {
		return object, nil
	}

	if err := json.Unmarshal(raw, &object); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json column: %w", err)
	}

	return object, nil
}
