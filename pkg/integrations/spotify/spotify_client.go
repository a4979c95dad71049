package spotify

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flowbaker/automations/pkg/clients/rest"
	"github.com/flowbaker/automations/pkg/domain"
)

const DefaultAPIBaseURL = "https://api.spotify.com/v1"

type Track struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

func (t Track) artistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, artist := range t.Artists {
		names = append(names, artist.Name)
	}

	return strings.Join(names, ", ")
}

func (t Track) payload() map[string]any {
	return map[string]any{
		"track_id":   t.ID,
		"track_name": t.Name,
		"artists":    t.artistNames(),
		"album":      t.Album.Name,
		"url":        t.ExternalURLs.Spotify,
	}
}

type PlayHistory struct {
	Track    Track     `json:"track"`
	PlayedAt time.Time `json:"played_at"`
}

type SavedTrack struct {
	Track   Track     `json:"track"`
	AddedAt time.Time `json:"added_at"`
}

type client struct {
	api *rest.Client
}

func newClient(baseURL string, authorized domain.AuthorizedClient) *client {
	return &client{
		api: rest.NewClient(rest.WithBaseURL(baseURL), rest.WithHTTPClient(authorized.HTTPClient)),
	}
}

// RecentlyPlayed returns up to 50 plays, newest first.
func (c *client) RecentlyPlayed(ctx context.Context, after *time.Time) ([]PlayHistory, error) {
	query := url.Values{"limit": {"50"}}
	if after != nil {
		query.Set("after", strconv.FormatInt(after.UnixMilli(), 10))
	}

	var response struct {
		Items []PlayHistory `json:"items"`
	}

	if err := c.api.Get(ctx, "/me/player/recently-played", query, &response); err != nil {
		return nil, domain.NewExternalProviderError(domain.IntegrationType_Spotify, "recently played", err)
	}

	return response.Items, nil
}

// SavedTracks returns the most recently liked tracks, newest first.
func (c *client) SavedTracks(ctx context.Context, limit int) ([]SavedTrack, error) {
	var response struct {
		Items []SavedTrack `json:"items"`
	}

	query := url.Values{"limit": {strconv.Itoa(limit)}}

	if err := c.api.Get(ctx, "/me/tracks", query, &response); err != nil {
		return nil, domain.NewExternalProviderError(domain.IntegrationType_Spotify, "saved tracks", err)
	}

	return response.Items, nil
}
