package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/flowbaker/automations/pkg/polling"
)

const pageSize = 25

// VideoCursor is stored per channel.
type VideoCursor struct {
	LastPublishedAt time.Time `json:"last_published_at"`
	SeenAtLast      []string  `json:"seen_at_last,omitempty"`
}

type Video struct {
	ID           string
	Title        string
	Description  string
	ChannelID    string
	ChannelTitle string
	PublishedAt  time.Time
}

type videoAdapter struct {
	endpoint string
	now      func() time.Time
}

func (a *videoAdapter) TriggerIDs() []string {
	return []string{TriggerID_NewVideo}
}

func (a *videoAdapter) Plan(targets []polling.Target) []polling.Check {
	return polling.ChecksByConfig("youtube:videos", "channel_id", targets)
}

func (a *videoAdapter) Fetch(ctx context.Context, authorized domain.AuthorizedClient, check polling.Check, cursor *VideoCursor) ([]Video, error) {
	httpClient := authorized.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	options := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if a.endpoint != "" {
		options = append(options, option.WithEndpoint(a.endpoint))
	}

	service, err := youtube.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}

	response, err := service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(uploadsPlaylistID(check.Params["channel_id"])).
		MaxResults(pageSize).
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
			return nil, domain.NewCredentialError(authorized.Credential.ID, err)
		}

		return nil, domain.NewExternalProviderError(domain.IntegrationType_Youtube, "list uploads", err)
	}

	return toVideos(response.Items), nil
}

// uploadsPlaylistID maps a channel id to its uploads playlist, which shares
// the id with a UU prefix instead of UC.
func uploadsPlaylistID(channelID string) string {
	if strings.HasPrefix(channelID, "UC") {
		return "UU" + channelID[2:]
	}

	return channelID
}

func toVideos(items []*youtube.PlaylistItem) []Video {
	videos := make([]Video, 0, len(items))

	for _, item := range items {
		if item.Snippet == nil {
			continue
		}

		video := Video{
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelID:    item.Snippet.ChannelId,
			ChannelTitle: item.Snippet.ChannelTitle,
		}

		published := item.Snippet.PublishedAt
		if item.ContentDetails != nil {
			video.ID = item.ContentDetails.VideoId
			if item.ContentDetails.VideoPublishedAt != "" {
				published = item.ContentDetails.VideoPublishedAt
			}
		}

		if video.ID == "" && item.Snippet.ResourceId != nil {
			video.ID = item.Snippet.ResourceId.VideoId
		}

		publishedAt, err := time.Parse(time.RFC3339, published)
		if err != nil || video.ID == "" {
			continue
		}

		video.PublishedAt = publishedAt.UTC()
		videos = append(videos, video)
	}

	sort.SliceStable(videos, func(i, j int) bool { return videos[i].PublishedAt.Before(videos[j].PublishedAt) })

	return videos
}

func (a *videoAdapter) Seed(videos []Video) VideoCursor {
	if len(videos) == 0 {
		return VideoCursor{LastPublishedAt: a.now().UTC()}
	}

	return advanceVideos(VideoCursor{}, videos)
}

func (a *videoAdapter) Diff(cursor VideoCursor, videos []Video) []Video {
	seen := make(map[string]struct{}, len(cursor.SeenAtLast))
	for _, id := range cursor.SeenAtLast {
		seen[id] = struct{}{}
	}

	fresh := []Video{}
	for _, video := range videos {
		if video.PublishedAt.Before(cursor.LastPublishedAt) {
			continue
		}

		if _, ok := seen[video.ID]; ok && video.PublishedAt.Equal(cursor.LastPublishedAt) {
			continue
		}

		fresh = append(fresh, video)
	}

	return fresh
}

func (a *videoAdapter) Advance(cursor VideoCursor, videos []Video, delivered, pending []Video) VideoCursor {
	return advanceVideos(cursor, delivered)
}

func advanceVideos(cursor VideoCursor, videos []Video) VideoCursor {
	for _, video := range videos {
		switch {
		case video.PublishedAt.After(cursor.LastPublishedAt):
			cursor = VideoCursor{LastPublishedAt: video.PublishedAt, SeenAtLast: []string{video.ID}}
		case video.PublishedAt.Equal(cursor.LastPublishedAt):
			cursor.SeenAtLast = append(cursor.SeenAtLast, video.ID)
		}
	}

	return cursor
}

func (a *videoAdapter) Matches(video Video, target polling.Target) bool {
	return integrations.MatchesFilters(NewVideoTrigger, target.Config, a.Payload(video))
}

func (a *videoAdapter) Payload(video Video) map[string]any {
	return map[string]any{
		"video_id":      video.ID,
		"title":         video.Title,
		"description":   video.Description,
		"channel_id":    video.ChannelID,
		"channel_title": video.ChannelTitle,
		"url":           "https://www.youtube.com/watch?v=" + video.ID,
		"published_at":  video.PublishedAt.Format(time.RFC3339),
	}
}
