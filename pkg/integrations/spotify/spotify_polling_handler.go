package spotify

import (
	"context"
	"sort"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/polling"
)

const likedIDsCap = 50

type PlayedCursor struct {
	LastPlayedAt time.Time `json:"last_played_at"`
}

type playedAdapter struct {
	baseURL string
	now     func() time.Time
}

func (a *playedAdapter) TriggerIDs() []string {
	return []string{TriggerID_NewPlayedTrack}
}

func (a *playedAdapter) Plan(targets []polling.Target) []polling.Check {
	return polling.SingleCheck("spotify:played", targets)
}

func (a *playedAdapter) Fetch(ctx context.Context, authorized domain.AuthorizedClient, check polling.Check, cursor *PlayedCursor) ([]PlayHistory, error) {
	var after *time.Time
	if cursor != nil {
		after = &cursor.LastPlayedAt
	}

	return newClient(a.baseURL, authorized).RecentlyPlayed(ctx, after)
}

func (a *playedAdapter) Seed(plays []PlayHistory) PlayedCursor {
	cursor := PlayedCursor{LastPlayedAt: a.now().UTC()}

	for _, play := range plays {
		if play.PlayedAt.After(cursor.LastPlayedAt) {
			cursor.LastPlayedAt = play.PlayedAt
		}
	}

	return cursor
}

func (a *playedAdapter) Diff(cursor PlayedCursor, plays []PlayHistory) []PlayHistory {
	fresh := []PlayHistory{}
	for _, play := range plays {
		if play.PlayedAt.After(cursor.LastPlayedAt) {
			fresh = append(fresh, play)
		}
	}

	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].PlayedAt.Before(fresh[j].PlayedAt) })

	return fresh
}

func (a *playedAdapter) Advance(cursor PlayedCursor, plays []PlayHistory, delivered, pending []PlayHistory) PlayedCursor {
	for _, play := range delivered {
		if play.PlayedAt.After(cursor.LastPlayedAt) {
			cursor.LastPlayedAt = play.PlayedAt
		}
	}

	return cursor
}

func (a *playedAdapter) Matches(play PlayHistory, target polling.Target) bool {
	return true
}

func (a *playedAdapter) Payload(play PlayHistory) map[string]any {
	payload := play.Track.payload()
	payload["played_at"] = play.PlayedAt.Format(time.RFC3339)

	return payload
}

// LikedCursor keeps the ids of the most recently liked tracks, newest first.
type LikedCursor struct {
	LastLikedIDs []string `json:"last_liked_ids"`
}

type likedAdapter struct {
	baseURL string
}

func (a *likedAdapter) TriggerIDs() []string {
	return []string{TriggerID_NewLikedSong}
}

func (a *likedAdapter) Plan(targets []polling.Target) []polling.Check {
	return polling.SingleCheck("spotify:liked", targets)
}

func (a *likedAdapter) Fetch(ctx context.Context, authorized domain.AuthorizedClient, check polling.Check, cursor *LikedCursor) ([]SavedTrack, error) {
	return newClient(a.baseURL, authorized).SavedTracks(ctx, likedIDsCap)
}

func (a *likedAdapter) Seed(saved []SavedTrack) LikedCursor {
	return LikedCursor{LastLikedIDs: polling.RecentIDs(saved, savedTrackID, nil, likedIDsCap)}
}

func (a *likedAdapter) Diff(cursor LikedCursor, saved []SavedTrack) []SavedTrack {
	return polling.UnseenOldestFirst(cursor.LastLikedIDs, saved, savedTrackID)
}

func (a *likedAdapter) Advance(cursor LikedCursor, saved []SavedTrack, delivered, pending []SavedTrack) LikedCursor {
	return LikedCursor{LastLikedIDs: polling.RecentIDs(saved, savedTrackID, pending, likedIDsCap)}
}

func (a *likedAdapter) Matches(track SavedTrack, target polling.Target) bool {
	return true
}

func (a *likedAdapter) Payload(track SavedTrack) map[string]any {
	payload := track.Track.payload()
	payload["added_at"] = track.AddedAt.Format(time.RFC3339)

	return payload
}

func savedTrackID(track SavedTrack) string {
	return track.Track.ID
}
