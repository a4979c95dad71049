package githubintegration

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/google/go-github/v57/github"
)

const stargazersPerPage = 100

func newClient(baseURL string, authorized domain.AuthorizedClient) (*github.Client, error) {
	client := github.NewClient(authorized.HTTPClient)

	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github base url: %w", err)
		}

		client.BaseURL = u
	}

	return client, nil
}

func splitRepository(repository string) (string, string, error) {
	owner, name, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || name == "" {
		return "", "", domain.NewValidationError("repository", domain.FieldIssue{Field: "repository", Message: "must be in owner/name form"})
	}

	return owner, name, nil
}

// recentStargazers returns the newest stargazers, oldest first. GitHub lists
// stargazers in ascending order, so the last page holds the newest ones.
func recentStargazers(ctx context.Context, client *github.Client, repository string) ([]*github.Stargazer, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	opts := &github.ListOptions{PerPage: stargazersPerPage}

	stargazers, resp, err := client.Activity.ListStargazers(ctx, owner, name, opts)
	if err != nil {
		return nil, domain.NewExternalProviderError(domain.IntegrationType_Github, "list stargazers", err)
	}

	if resp == nil || resp.LastPage <= 1 {
		return stargazers, nil
	}

	opts.Page = resp.LastPage - 1
	previous, _, err := client.Activity.ListStargazers(ctx, owner, name, opts)
	if err != nil {
		return nil, domain.NewExternalProviderError(domain.IntegrationType_Github, "list stargazers", err)
	}

	opts.Page = resp.LastPage
	last, _, err := client.Activity.ListStargazers(ctx, owner, name, opts)
	if err != nil {
		return nil, domain.NewExternalProviderError(domain.IntegrationType_Github, "list stargazers", err)
	}

	return append(previous, last...), nil
}
