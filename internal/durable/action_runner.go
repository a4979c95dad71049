package durable

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/flowbaker/automations/pkg/domain"
)

type ActionRunnerDependencies struct {
	Executors      map[domain.ActionKind]domain.ActionExecutor
	Credentials    domain.CredentialStore
	Authenticators map[domain.IntegrationType]domain.Authenticator
}

// ActionRunner performs the action of one durable run.
type ActionRunner struct {
	executors      map[domain.ActionKind]domain.ActionExecutor
	credentials    domain.CredentialStore
	authenticators map[domain.IntegrationType]domain.Authenticator
}

func NewActionRunner(deps ActionRunnerDependencies) *ActionRunner {
	return &ActionRunner{
		executors:      deps.Executors,
		credentials:    deps.Credentials,
		authenticators: deps.Authenticators,
	}
}

func (r *ActionRunner) Run(ctx context.Context, input domain.RunInput) (map[string]any, error) {
	executor, ok := r.executors[input.Action.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedAction, input.Action.Kind)
	}

	client, err := r.authorize(ctx, input)
	if err != nil {
		return nil, err
	}

	config, err := RenderConfig(input.Action.Config, input.TriggerData)
	if err != nil {
		return nil, err
	}

	return executor.Execute(ctx, domain.ActionExecution{
		Kind:        input.Action.Kind,
		Config:      config,
		Client:      client,
		TriggerData: input.TriggerData,
	})
}

func (r *ActionRunner) authorize(ctx context.Context, input domain.RunInput) (*domain.AuthorizedClient, error) {
	if input.Action.CredentialID == "" {
		return nil, nil
	}

	credential, err := r.credentials.GetCredential(ctx, input.Action.CredentialID)
	if err != nil {
		return nil, err
	}

	if !credential.IsValid {
		return nil, domain.NewCredentialError(credential.ID, fmt.Errorf("credential is marked invalid"))
	}

	authenticator, ok := r.authenticators[credential.Provider]
	if !ok {
		return nil, fmt.Errorf("no authenticator for provider %s", credential.Provider)
	}

	client, err := domain.AuthorizeCredential(ctx, r.credentials, authenticator, credential)
	if err != nil {
		return nil, err
	}

	return &client, nil
}

// RenderConfig expands templates such as {{ .trigger.subject }} in string
// config values against the trigger payload.
func RenderConfig(config map[string]any, triggerData map[string]any) (map[string]any, error) {
	data := map[string]any{"trigger": triggerData}

	rendered, err := renderValue("", config, data)
	if err != nil {
		return nil, err
	}

	out, _ := rendered.(map[string]any)
	if out == nil {
		out = map[string]any{}
	}

	return out, nil
}

func renderValue(path string, value any, data map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		if !strings.Contains(v, "{{") {
			return v, nil
		}

		tmpl, err := template.New(path).Option("missingkey=error").Parse(v)
		if err != nil {
			return nil, domain.NewValidationError("action config", domain.FieldIssue{Field: path, Message: err.Error()})
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, domain.NewValidationError("action config", domain.FieldIssue{Field: path, Message: err.Error()})
		}

		return buf.String(), nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			rendered, err := renderValue(joinPath(path, key), item, data)
			if err != nil {
				return nil, err
			}
			out[key] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			rendered, err := renderValue(fmt.Sprintf("%s[%d]", path, i), item, data)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}

	return path + "." + key
}
