// Package catalog holds the track model and the backend capabilities the
// executor drives: search, metadata lookup, listening history, playback and
// playlist storage.
package catalog

import (
	"context"
	"errors"
	"time"

	"music-action-service/internal/filter"
	"music-action-service/internal/schema"
)

// ErrUnknownTrack is returned when a track id cannot be resolved.
var ErrUnknownTrack = errors.New("unknown track")

type Track struct {
	ID         string   `json:"id" toml:"id"`
	Name       string   `json:"name" toml:"name"`
	Artists    []string `json:"artists" toml:"artists"`
	Album      string   `json:"album,omitempty" toml:"album"`
	Genres     []string `json:"genres,omitempty" toml:"genres"`
	Year       int      `json:"year,omitempty" toml:"year"`
	Popularity int      `json:"popularity,omitempty" toml:"popularity"`
	DurationMs int      `json:"durationMs,omitempty" toml:"duration_ms"`
	URI        string   `json:"uri,omitempty" toml:"uri"`
}

func (t Track) FilterAttributes() filter.Attributes {
	return filter.Attributes{
		Name:    t.Name,
		Artists: t.Artists,
		Album:   t.Album,
		Genres:  t.Genres,
		Year:    t.Year,
	}
}

// IDs returns the ids of tracks in order.
func IDs(tracks []Track) schema.TrackList {
	out := make(schema.TrackList, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.ID)
	}
	return out
}

type Searcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]Track, error)
}

// Resolver returns metadata for the ids it knows. Unknown ids are left out of
// the result rather than reported as an error.
type Resolver interface {
	Tracks(ctx context.Context, ids []string) ([]Track, error)
}

// Listening exposes a listener's play history.
type Listening interface {
	RecentlyPlayed(ctx context.Context, n int) (schema.TrackList, error)
	TopTracks(ctx context.Context, term schema.FavoritesTerm, n int) (schema.TrackList, error)
}

type Player interface {
	Play(ctx context.Context, ids []string) error
	Resume(ctx context.Context) error
	Pause(ctx context.Context) error
	Volume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, level int) error
}

// PlaylistWriter persists named playlists and returns the new playlist id.
type PlaylistWriter interface {
	CreatePlaylist(ctx context.Context, name string, ids []string) (string, error)
}

type PlayRecorder interface {
	RecordPlays(ctx context.Context, ids []string, at time.Time) error
}

type listenerKey struct{}

// DefaultListener is used when the context carries no listener.
const DefaultListener = "default"

func WithListener(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, listenerKey{}, id)
}

func ListenerFrom(ctx context.Context) string {
	if id, ok := ctx.Value(listenerKey{}).(string); ok && id != "" {
		return id
	}
	return DefaultListener
}
