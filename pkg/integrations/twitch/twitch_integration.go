package twitch

import (
	"context"
	"fmt"

	"github.com/flowbaker/automations/pkg/domain"
)

type UpdateTitleParams struct {
	Title string `json:"title"`
}

type actionExecutor struct {
	baseURL  string
	clientID string
}

func (e *actionExecutor) Execute(ctx context.Context, execution domain.ActionExecution) (map[string]any, error) {
	if execution.Client == nil {
		return nil, domain.NewCredentialError("", fmt.Errorf("twitch action requires a credential"))
	}

	var p UpdateTitleParams
	if err := domain.BindConfig(execution.Config, &p); err != nil {
		return nil, err
	}

	c := newClient(e.baseURL, e.clientID, *execution.Client)

	broadcasterID, err := c.BroadcasterID(ctx, execution.Client.Credential)
	if err != nil {
		return nil, err
	}

	if err := c.UpdateTitle(ctx, broadcasterID, p.Title); err != nil {
		return nil, err
	}

	return map[string]any{"broadcaster_id": broadcasterID, "title": p.Title}, nil
}
