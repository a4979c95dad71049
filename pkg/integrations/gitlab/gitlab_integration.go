package gitlab

import (
	"context"
	"fmt"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/xanzy/go-gitlab"
)

type CreateIssueParams struct {
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
}

type actionExecutor struct {
	baseURL string
}

func (e *actionExecutor) client(token string) (*gitlab.Client, error) {
	options := []gitlab.ClientOptionFunc{}
	if e.baseURL != "" {
		options = append(options, gitlab.WithBaseURL(e.baseURL))
	}

	client, err := gitlab.NewOAuthClient(token, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	return client, nil
}

func (e *actionExecutor) Execute(ctx context.Context, execution domain.ActionExecution) (map[string]any, error) {
	token := execution.AccessToken()
	if token == "" {
		return nil, domain.NewCredentialError("", fmt.Errorf("gitlab action requires a credential"))
	}

	var p CreateIssueParams
	if err := domain.BindConfig(execution.Config, &p); err != nil {
		return nil, err
	}

	client, err := e.client(token)
	if err != nil {
		return nil, err
	}

	opts := &gitlab.CreateIssueOptions{
		Title: gitlab.Ptr(p.Title),
	}

	if p.Description != "" {
		opts.Description = gitlab.Ptr(p.Description)
	}

	if len(p.Labels) > 0 {
		opts.Labels = gitlab.Ptr(gitlab.LabelOptions(p.Labels))
	}

	issue, _, err := client.Issues.CreateIssue(p.ProjectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, domain.NewExternalProviderError(domain.IntegrationType_Gitlab, "create issue", err)
	}

	return map[string]any{
		"id":  issue.ID,
		"iid": issue.IID,
		"url": issue.WebURL,
	}, nil
}
