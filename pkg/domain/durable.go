package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type ActionKind string

const (
	ActionKind_DiscordSendWebhookMessage ActionKind = "discord:send_webhook_message"
	ActionKind_TelegramSendMessage       ActionKind = "telegram:send_message"
	ActionKind_SlackPostMessage          ActionKind = "slack:post_message"
	ActionKind_GithubCreateIssue         ActionKind = "github:create_issue"
	ActionKind_GitlabCreateIssue         ActionKind = "gitlab:create_issue"
	ActionKind_ResendSendEmail           ActionKind = "resend:send_email"
	ActionKind_GmailSendEmail            ActionKind = "gmail:send_email"
	ActionKind_TwitchUpdateTitle         ActionKind = "twitch:update_title"
)

var supportedActionKinds = map[ActionKind]struct{}{
	ActionKind_DiscordSendWebhookMessage: {},
	ActionKind_TelegramSendMessage:       {},
	ActionKind_SlackPostMessage:          {},
	ActionKind_GithubCreateIssue:         {},
	ActionKind_GitlabCreateIssue:         {},
	ActionKind_ResendSendEmail:           {},
	ActionKind_GmailSendEmail:            {},
	ActionKind_TwitchUpdateTitle:         {},
}

// ParseActionKind resolves provider and id to one of the supported action kinds.
func ParseActionKind(provider IntegrationType, id string) (ActionKind, error) {
	kind := ActionKind(CapabilityKey(provider, id))

	if _, ok := supportedActionKinds[kind]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAction, kind)
	}

	return kind, nil
}

type RunStatus string

const (
	RunStatus_Queued    RunStatus = "queued"
	RunStatus_Running   RunStatus = "running"
	RunStatus_Completed RunStatus = "completed"
	RunStatus_Failed    RunStatus = "failed"
	RunStatus_Cancelled RunStatus = "cancelled"
)

func (s RunStatus) IsTerminal() bool {
	return s == RunStatus_Completed || s == RunStatus_Failed || s == RunStatus_Cancelled
}

func (s RunStatus) ExecutionStatus() ExecutionStatus {
	switch s {
	case RunStatus_Completed:
		return ExecutionStatus_Completed
	case RunStatus_Failed:
		return ExecutionStatus_Failed
	case RunStatus_Cancelled:
		return ExecutionStatus_Cancelled
	default:
		return ExecutionStatus_Running
	}
}

type RunTrigger struct {
	Provider IntegrationType `json:"provider"`
	ID       string          `json:"id"`
	Config   map[string]any  `json:"config"`
}

type RunAction struct {
	Kind         ActionKind      `json:"kind"`
	Provider     IntegrationType `json:"provider"`
	ID           string          `json:"id"`
	Config       map[string]any  `json:"config"`
	CredentialID string          `json:"credential_id,omitempty"`
}

type RunInput struct {
	RunID       string         `json:"run_id"`
	WorkflowID  string         `json:"workflow_id"`
	OwnerID     string         `json:"owner_id"`
	Trigger     RunTrigger     `json:"trigger"`
	Action      RunAction      `json:"action"`
	TriggerData map[string]any `json:"trigger_data"`
}

type RunHandle struct {
	DurableRunID string `json:"durable_run_id"`
}

type RunResult struct {
	DurableRunID string `json:"durable_run_id"`
	// RunID is the correlation id the run was started with.
	RunID      string         `json:"run_id,omitempty"`
	Status     RunStatus      `json:"status"`
	Attempts   int            `json:"attempts"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// DurableRunner is the at-least-once execution backend that runs actions.
type DurableRunner interface {
	StartRun(ctx context.Context, runID string, input RunInput) (RunHandle, error)
	GetRunResult(ctx context.Context, durableRunID string) (RunResult, error)
	CancelRun(ctx context.Context, durableRunID string) error
	IsRunning(ctx context.Context, durableRunID string) (bool, error)
}

// RunObserver is notified when a durable run reaches a terminal status.
type RunObserver interface {
	OnRunFinished(ctx context.Context, result RunResult)
}

// ActionExecution carries a rendered action config. Client is nil for
// actions that need no credential.
type ActionExecution struct {
	Kind        ActionKind
	Config      map[string]any
	Client      *AuthorizedClient
	TriggerData map[string]any
}

func (e ActionExecution) AccessToken() string {
	if e.Client == nil {
		return ""
	}

	return e.Client.Credential.AccessToken
}

// ActionExecutor performs one action kind against its provider.
type ActionExecutor interface {
	Execute(ctx context.Context, execution ActionExecution) (map[string]any, error)
}

// BindConfig decodes a generic config map into a typed params struct.
func BindConfig(config map[string]any, target any) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}
