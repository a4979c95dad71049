package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// AuthorizedClient is a credential ready for provider calls. TokenUpdate is
// set when the tokens were refreshed and must be persisted by the caller.
type AuthorizedClient struct {
	Credential  Credential
	HTTPClient  *http.Client
	TokenUpdate *TokenUpdate
}

type Authenticator interface {
	Authorize(ctx context.Context, credential Credential) (AuthorizedClient, error)
}

// WorkflowDispatcher is the entry point pollers and webhooks use to run a workflow.
type WorkflowDispatcher interface {
	TriggerWorkflowExecution(ctx context.Context, workflowID string, triggerData map[string]any) (Execution, error)
}

// AuthorizeCredential authorizes a stored credential, persisting refreshed
// tokens before returning. A credential error marks the credential invalid.
func AuthorizeCredential(ctx context.Context, store CredentialStore, authenticator Authenticator, credential Credential) (AuthorizedClient, error) {
	client, err := authenticator.Authorize(ctx, credential)
	if err != nil {
		if IsCredentialError(err) {
			if markErr := store.MarkCredentialInvalid(ctx, credential.ID); markErr != nil {
				return AuthorizedClient{}, errors.Join(err, fmt.Errorf("failed to mark credential invalid: %w", markErr))
			}
		}

		return AuthorizedClient{}, err
	}

	if client.TokenUpdate != nil {
		if err := store.UpdateCredentialTokens(ctx, credential.ID, *client.TokenUpdate); err != nil {
			return AuthorizedClient{}, fmt.Errorf("failed to persist refreshed tokens: %w", err)
		}
	}

	return client, nil
}
