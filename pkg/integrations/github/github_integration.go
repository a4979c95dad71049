package githubintegration

import (
	"context"
	"fmt"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/google/go-github/v57/github"
)

type CreateIssueParams struct {
	Repository string   `json:"repository"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Labels     []string `json:"labels"`
}

type actionExecutor struct {
	baseURL string
}

func (e *actionExecutor) Execute(ctx context.Context, execution domain.ActionExecution) (map[string]any, error) {
	if execution.Client == nil {
		return nil, domain.NewCredentialError("", fmt.Errorf("github action requires a credential"))
	}

	var p CreateIssueParams
	if err := domain.BindConfig(execution.Config, &p); err != nil {
		return nil, err
	}

	owner, name, err := splitRepository(p.Repository)
	if err != nil {
		return nil, err
	}

	client, err := newClient(e.baseURL, *execution.Client)
	if err != nil {
		return nil, err
	}

	request := &github.IssueRequest{
		Title: github.String(p.Title),
	}

	if p.Body != "" {
		request.Body = github.String(p.Body)
	}

	if len(p.Labels) > 0 {
		request.Labels = &p.Labels
	}

	issue, _, err := client.Issues.Create(ctx, owner, name, request)
	if err != nil {
		return nil, domain.NewExternalProviderError(domain.IntegrationType_Github, "create issue", err)
	}

	return map[string]any{
		"id":     issue.GetID(),
		"number": issue.GetNumber(),
		"url":    issue.GetHTMLURL(),
	}, nil
}
