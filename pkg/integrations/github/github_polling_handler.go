package githubintegration

import (
	"context"
	"sort"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/polling"
	"github.com/google/go-github/v57/github"
)

// StarCursor is stored per repository.
type StarCursor struct {
	LastStarredAt time.Time `json:"last_starred_at"`
	// SeenAtLast holds the logins starred exactly at LastStarredAt, since
	// several stars can share one second.
	SeenAtLast []string `json:"seen_at_last,omitempty"`
}

type Star struct {
	Repository string
	Login      string
	UserURL    string
	StarredAt  time.Time
}

type starAdapter struct {
	baseURL string
	now     func() time.Time
}

func (a *starAdapter) TriggerIDs() []string {
	return []string{TriggerID_NewStar}
}

func (a *starAdapter) Plan(targets []polling.Target) []polling.Check {
	return polling.ChecksByConfig("github:stars", "repository", targets)
}

func (a *starAdapter) Fetch(ctx context.Context, authorized domain.AuthorizedClient, check polling.Check, cursor *StarCursor) ([]Star, error) {
	client, err := newClient(a.baseURL, authorized)
	if err != nil {
		return nil, err
	}

	repository := check.Params["repository"]

	stargazers, err := recentStargazers(ctx, client, repository)
	if err != nil {
		return nil, err
	}

	return toStars(repository, stargazers), nil
}

func toStars(repository string, stargazers []*github.Stargazer) []Star {
	stars := make([]Star, 0, len(stargazers))

	for _, stargazer := range stargazers {
		if stargazer.StarredAt == nil || stargazer.User == nil {
			continue
		}

		stars = append(stars, Star{
			Repository: repository,
			Login:      stargazer.User.GetLogin(),
			UserURL:    stargazer.User.GetHTMLURL(),
			StarredAt:  stargazer.StarredAt.Time,
		})
	}

	sort.SliceStable(stars, func(i, j int) bool { return stars[i].StarredAt.Before(stars[j].StarredAt) })

	return stars
}

func (a *starAdapter) Seed(stars []Star) StarCursor {
	if len(stars) == 0 {
		return StarCursor{LastStarredAt: a.now().UTC()}
	}

	return advanceStars(StarCursor{}, stars)
}

func (a *starAdapter) Diff(cursor StarCursor, stars []Star) []Star {
	seen := make(map[string]struct{}, len(cursor.SeenAtLast))
	for _, login := range cursor.SeenAtLast {
		seen[login] = struct{}{}
	}

	fresh := []Star{}
	for _, star := range stars {
		if star.StarredAt.Before(cursor.LastStarredAt) {
			continue
		}

		if star.StarredAt.Equal(cursor.LastStarredAt) {
			if _, ok := seen[star.Login]; ok {
				continue
			}
		}

		fresh = append(fresh, star)
	}

	return fresh
}

func (a *starAdapter) Advance(cursor StarCursor, stars []Star, delivered, pending []Star) StarCursor {
	return advanceStars(cursor, delivered)
}

func advanceStars(cursor StarCursor, stars []Star) StarCursor {
	for _, star := range stars {
		switch {
		case star.StarredAt.After(cursor.LastStarredAt):
			cursor = StarCursor{LastStarredAt: star.StarredAt, SeenAtLast: []string{star.Login}}
		case star.StarredAt.Equal(cursor.LastStarredAt):
			cursor.SeenAtLast = append(cursor.SeenAtLast, star.Login)
		}
	}

	return cursor
}

func (a *starAdapter) Matches(star Star, target polling.Target) bool {
	return true
}

func (a *starAdapter) Payload(star Star) map[string]any {
	return map[string]any{
		"repository": star.Repository,
		"user":       star.Login,
		"user_url":   star.UserURL,
		"starred_at": star.StarredAt.Format(time.RFC3339),
	}
}
