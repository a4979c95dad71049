package twitch

import (
	"context"
	"strconv"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/polling"
)

const followerIDsCap = 100

// StreamCursor is the live flag plus the last seen viewer count.
type StreamCursor struct {
	Live        bool   `json:"live"`
	StreamID    string `json:"stream_id,omitempty"`
	ViewerCount int    `json:"viewer_count"`
}

func (c StreamCursor) stream() Stream {
	return Stream{ID: c.StreamID, ViewerCount: c.ViewerCount}
}

type streamEventKind string

const (
	streamEvent_Started streamEventKind = "started"
	streamEvent_Ended   streamEventKind = "ended"
	streamEvent_Viewers streamEventKind = "viewers"
)

type StreamEvent struct {
	Kind            streamEventKind
	Stream          Stream
	PreviousViewers int
}

type streamAdapter struct {
	baseURL  string
	clientID string
}

func (a *streamAdapter) TriggerIDs() []string {
	return []string{TriggerID_StreamStarted, TriggerID_StreamEnded, TriggerID_ViewerThreshold}
}

func (a *streamAdapter) Plan(targets []polling.Target) []polling.Check {
	return polling.SingleCheck("twitch:stream", targets)
}

// Fetch returns nil when the channel is offline.
func (a *streamAdapter) Fetch(ctx context.Context, authorized domain.AuthorizedClient, check polling.Check, cursor *StreamCursor) (*Stream, error) {
	c := newClient(a.baseURL, a.clientID, authorized)

	broadcasterID, err := c.BroadcasterID(ctx, authorized.Credential)
	if err != nil {
		return nil, err
	}

	return c.LiveStream(ctx, broadcasterID)
}

func (a *streamAdapter) Seed(stream *Stream) StreamCursor {
	if stream == nil {
		return StreamCursor{}
	}

	return StreamCursor{Live: true, StreamID: stream.ID, ViewerCount: stream.ViewerCount}
}

// Diff emits only transitions: going live, going offline, and the viewer
// count of a live stream against the previous observation. A different
// stream id while live means the old stream ended between passes.
func (a *streamAdapter) Diff(cursor StreamCursor, stream *Stream) []StreamEvent {
	events := []StreamEvent{}

	switch {
	case stream != nil && !cursor.Live:
		events = append(events, StreamEvent{Kind: streamEvent_Started, Stream: *stream})
		events = append(events, StreamEvent{Kind: streamEvent_Viewers, Stream: *stream, PreviousViewers: 0})
	case stream == nil && cursor.Live:
		events = append(events, StreamEvent{Kind: streamEvent_Ended, Stream: cursor.stream()})
	case stream != nil && cursor.StreamID != "" && stream.ID != cursor.StreamID:
		events = append(events, StreamEvent{Kind: streamEvent_Ended, Stream: cursor.stream()})
		events = append(events, StreamEvent{Kind: streamEvent_Started, Stream: *stream})
		events = append(events, StreamEvent{Kind: streamEvent_Viewers, Stream: *stream, PreviousViewers: 0})
	case stream != nil && stream.ViewerCount != cursor.ViewerCount:
		events = append(events, StreamEvent{Kind: streamEvent_Viewers, Stream: *stream, PreviousViewers: cursor.ViewerCount})
	}

	return events
}

func (a *streamAdapter) Advance(cursor StreamCursor, stream *Stream, delivered, pending []StreamEvent) StreamCursor {
	for _, event := range delivered {
		switch event.Kind {
		case streamEvent_Started:
			cursor.Live = true
			cursor.StreamID = event.Stream.ID
		case streamEvent_Ended:
			cursor = StreamCursor{}
		case streamEvent_Viewers:
			cursor.ViewerCount = event.Stream.ViewerCount
		}
	}

	return cursor
}

func (a *streamAdapter) Matches(event StreamEvent, target polling.Target) bool {
	switch target.TriggerID {
	case TriggerID_StreamStarted:
		return event.Kind == streamEvent_Started
	case TriggerID_StreamEnded:
		return event.Kind == streamEvent_Ended
	case TriggerID_ViewerThreshold:
		if event.Kind != streamEvent_Viewers {
			return false
		}

		threshold, ok := thresholdOf(target.Config)
		if !ok {
			return false
		}

		return event.PreviousViewers < threshold && event.Stream.ViewerCount >= threshold
	default:
		return false
	}
}

func (a *streamAdapter) Payload(event StreamEvent) map[string]any {
	payload := map[string]any{
		"stream_id":    event.Stream.ID,
		"broadcaster":  event.Stream.UserName,
		"title":        event.Stream.Title,
		"game_name":    event.Stream.GameName,
		"viewer_count": event.Stream.ViewerCount,
	}

	if !event.Stream.StartedAt.IsZero() {
		payload["started_at"] = event.Stream.StartedAt.Format(time.RFC3339)
	}

	return payload
}

func thresholdOf(config map[string]any) (int, bool) {
	switch v := config["threshold"].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// FollowerCursor keeps the most recent follower ids, newest first.
type FollowerCursor struct {
	FollowerIDs []string `json:"follower_ids"`
}

type followerAdapter struct {
	baseURL  string
	clientID string
}

func (a *followerAdapter) TriggerIDs() []string {
	return []string{TriggerID_NewFollower}
}

func (a *followerAdapter) Plan(targets []polling.Target) []polling.Check {
	return polling.SingleCheck("twitch:followers", targets)
}

func (a *followerAdapter) Fetch(ctx context.Context, authorized domain.AuthorizedClient, check polling.Check, cursor *FollowerCursor) ([]Follower, error) {
	c := newClient(a.baseURL, a.clientID, authorized)

	broadcasterID, err := c.BroadcasterID(ctx, authorized.Credential)
	if err != nil {
		return nil, err
	}

	return c.Followers(ctx, broadcasterID, followerIDsCap)
}

func (a *followerAdapter) Seed(followers []Follower) FollowerCursor {
	return FollowerCursor{FollowerIDs: polling.RecentIDs(followers, followerID, nil, followerIDsCap)}
}

func (a *followerAdapter) Diff(cursor FollowerCursor, followers []Follower) []Follower {
	return polling.UnseenOldestFirst(cursor.FollowerIDs, followers, followerID)
}

func (a *followerAdapter) Advance(cursor FollowerCursor, followers []Follower, delivered, pending []Follower) FollowerCursor {
	return FollowerCursor{FollowerIDs: polling.RecentIDs(followers, followerID, pending, followerIDsCap)}
}

func (a *followerAdapter) Matches(follower Follower, target polling.Target) bool {
	return true
}

func (a *followerAdapter) Payload(follower Follower) map[string]any {
	return map[string]any{
		"user_id":     follower.UserID,
		"user_login":  follower.UserLogin,
		"user_name":   follower.UserName,
		"followed_at": follower.FollowedAt.Format(time.RFC3339),
	}
}

func followerID(follower Follower) string {
	return follower.UserID
}
