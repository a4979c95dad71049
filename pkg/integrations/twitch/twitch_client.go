package twitch

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/flowbaker/automations/pkg/clients/rest"
	"github.com/flowbaker/automations/pkg/domain"
)

const DefaultAPIBaseURL = "https://api.twitch.tv/helix"

var ErrBroadcasterNotFound = errors.New("twitch user for token not found")

type Stream struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserLogin   string    `json:"user_login"`
	UserName    string    `json:"user_name"`
	GameName    string    `json:"game_name"`
	Title       string    `json:"title"`
	ViewerCount int       `json:"viewer_count"`
	StartedAt   time.Time `json:"started_at"`
}

type Follower struct {
	UserID     string    `json:"user_id"`
	UserLogin  string    `json:"user_login"`
	UserName   string    `json:"user_name"`
	FollowedAt time.Time `json:"followed_at"`
}

type client struct {
	api *rest.Client
}

func newClient(baseURL, clientID string, authorized domain.AuthorizedClient) *client {
	if authorized.Credential.ClientID != "" {
		clientID = authorized.Credential.ClientID
	}

	return &client{
		api: rest.NewClient(
			rest.WithBaseURL(baseURL),
			rest.WithHTTPClient(authorized.HTTPClient),
			rest.WithHeader("Client-Id", clientID),
		),
	}
}

func wrap(op string, err error) error {
	return domain.NewExternalProviderError(domain.IntegrationType_Twitch, op, err)
}

// BroadcasterID prefers the account id stored on the credential and falls
// back to the user owning the token.
func (c *client) BroadcasterID(ctx context.Context, credential domain.Credential) (string, error) {
	if credential.AccountID != "" {
		return credential.AccountID, nil
	}

	var response struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	if err := c.api.Get(ctx, "/users", nil, &response); err != nil {
		return "", wrap("get user", err)
	}

	if len(response.Data) == 0 {
		return "", wrap("get user", ErrBroadcasterNotFound)
	}

	return response.Data[0].ID, nil
}

// LiveStream returns nil when the broadcaster is offline.
func (c *client) LiveStream(ctx context.Context, broadcasterID string) (*Stream, error) {
	var response struct {
		Data []Stream `json:"data"`
	}

	if err := c.api.Get(ctx, "/streams", url.Values{"user_id": {broadcasterID}}, &response); err != nil {
		return nil, wrap("get streams", err)
	}

	if len(response.Data) == 0 {
		return nil, nil
	}

	return &response.Data[0], nil
}

// Followers returns the most recent followers, newest first.
func (c *client) Followers(ctx context.Context, broadcasterID string, first int) ([]Follower, error) {
	var response struct {
		Data []Follower `json:"data"`
	}

	query := url.Values{"broadcaster_id": {broadcasterID}, "first": {strconv.Itoa(first)}}

	if err := c.api.Get(ctx, "/channels/followers", query, &response); err != nil {
		return nil, wrap("get followers", err)
	}

	return response.Data, nil
}

func (c *client) UpdateTitle(ctx context.Context, broadcasterID, title string) error {
	body := map[string]string{"title": title}

	if err := c.api.Patch(ctx, "/channels", url.Values{"broadcaster_id": {broadcasterID}}, body, nil); err != nil {
		return wrap("modify channel", err)
	}

	return nil
}
