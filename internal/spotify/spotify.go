// Package spotify drives a listener's Spotify account: search, metadata,
// listening history, playback and playlists. Track ids are Spotify ids.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"music-action-service/internal/catalog"
	"music-action-service/internal/schema"
)

const (
	maxTracksPerRequest   = 50
	maxArtistsPerRequest  = 50
	maxPlaylistAddRequest = 100
	maxHistoryItems       = 50
)

// Scopes are the permissions the refresh token must carry.
var Scopes = []string{
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopePlaylistModifyPrivate,
}

type Backend struct {
	client *spotify.Client
}

// New wraps an authenticated HTTP client.
func New(httpClient *http.Client, opts ...spotify.ClientOption) *Backend {
	return &Backend{client: spotify.New(httpClient, opts...)}
}

// NewWithRefreshToken authenticates with a stored refresh token; the access
// token is refreshed on demand.
func NewWithRefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) *Backend {
	auth := spotifyauth.New(
		spotifyauth.WithClientID(clientID),
		spotifyauth.WithClientSecret(clientSecret),
		spotifyauth.WithScopes(Scopes...),
	)
	return New(auth.Client(ctx, &oauth2.Token{RefreshToken: refreshToken}))
}

func (b *Backend) SearchTracks(ctx context.Context, query string, limit int) ([]catalog.Track, error) {
	if limit <= 0 || limit > maxTracksPerRequest {
		limit = maxTracksPerRequest
	}
	res, err := b.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}
	if res.Tracks == nil {
		return []catalog.Track{}, nil
	}
	out := make([]catalog.Track, 0, len(res.Tracks.Tracks))
	for i := range res.Tracks.Tracks {
		out = append(out, fullTrack(&res.Tracks.Tracks[i]))
	}
	return out, nil
}

// Tracks resolves ids with their artists' genres. Ids Spotify does not know
// are left out.
func (b *Backend) Tracks(ctx context.Context, ids []string) ([]catalog.Track, error) {
	out := make([]catalog.Track, 0, len(ids))
	artistOf := make(map[spotify.ID][]int)
	var artistIDs []spotify.ID

	for start := 0; start < len(ids); start += maxTracksPerRequest {
		chunk := ids[start:min(start+maxTracksPerRequest, len(ids))]
		sids := make([]spotify.ID, 0, len(chunk))
		for _, id := range chunk {
			sids = append(sids, spotify.ID(id))
		}
		full, err := b.client.GetTracks(ctx, sids)
		if err != nil {
			return nil, fmt.Errorf("spotify tracks: %w", err)
		}
		for _, ft := range full {
			if ft == nil {
				continue
			}
			if len(ft.Artists) > 0 {
				aid := ft.Artists[0].ID
				if _, seen := artistOf[aid]; !seen {
					artistIDs = append(artistIDs, aid)
				}
				artistOf[aid] = append(artistOf[aid], len(out))
			}
			out = append(out, fullTrack(ft))
		}
	}

	for start := 0; start < len(artistIDs); start += maxArtistsPerRequest {
		chunk := artistIDs[start:min(start+maxArtistsPerRequest, len(artistIDs))]
		artists, err := b.client.GetArtists(ctx, chunk...)
		if err != nil {
			return nil, fmt.Errorf("spotify artists: %w", err)
		}
		for _, a := range artists {
			if a == nil {
				continue
			}
			for _, i := range artistOf[a.ID] {
				out[i].Genres = a.Genres
			}
		}
	}
	return out, nil
}

func (b *Backend) RecentlyPlayed(ctx context.Context, n int) (schema.TrackList, error) {
	items, err := b.client.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{
		Limit: spotify.Numeric(min(max(n, 1), maxHistoryItems)),
	})
	if err != nil {
		return nil, fmt.Errorf("spotify recently played: %w", err)
	}
	seen := make(map[spotify.ID]bool, len(items))
	out := schema.TrackList{}
	for _, it := range items {
		if seen[it.Track.ID] {
			continue
		}
		seen[it.Track.ID] = true
		out = append(out, string(it.Track.ID))
	}
	return out, nil
}

func (b *Backend) TopTracks(ctx context.Context, term schema.FavoritesTerm, n int) (schema.TrackList, error) {
	page, err := b.client.CurrentUsersTopTracks(ctx,
		spotify.Timerange(spotify.Range(term)),
		spotify.Limit(min(max(n, 1), maxTracksPerRequest)),
	)
	if err != nil {
		return nil, fmt.Errorf("spotify top tracks: %w", err)
	}
	out := make(schema.TrackList, 0, len(page.Tracks))
	for _, t := range page.Tracks {
		out = append(out, string(t.ID))
	}
	return out, nil
}

func (b *Backend) Play(ctx context.Context, ids []string) error {
	uris := make([]spotify.URI, 0, len(ids))
	for _, id := range ids {
		uris = append(uris, trackURI(id))
	}
	if err := b.client.PlayOpt(ctx, &spotify.PlayOptions{URIs: uris}); err != nil {
		return fmt.Errorf("spotify play: %w", err)
	}
	return nil
}

func (b *Backend) Resume(ctx context.Context) error {
	if err := b.client.Play(ctx); err != nil {
		return fmt.Errorf("spotify resume: %w", err)
	}
	return nil
}

func (b *Backend) Pause(ctx context.Context) error {
	if err := b.client.Pause(ctx); err != nil {
		return fmt.Errorf("spotify pause: %w", err)
	}
	return nil
}

func (b *Backend) Volume(ctx context.Context) (int, error) {
	st, err := b.client.PlayerState(ctx)
	if err != nil {
		return 0, fmt.Errorf("spotify player state: %w", err)
	}
	return int(st.Device.Volume), nil
}

func (b *Backend) SetVolume(ctx context.Context, level int) error {
	if err := b.client.Volume(ctx, level); err != nil {
		return fmt.Errorf("spotify volume: %w", err)
	}
	return nil
}

// CreatePlaylist creates a private playlist owned by the authenticated user.
func (b *Backend) CreatePlaylist(ctx context.Context, name string, ids []string) (string, error) {
	user, err := b.client.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("spotify current user: %w", err)
	}
	pl, err := b.client.CreatePlaylistForUser(ctx, user.ID, name, "", false, false)
	if err != nil {
		return "", fmt.Errorf("spotify create playlist: %w", err)
	}
	for start := 0; start < len(ids); start += maxPlaylistAddRequest {
		chunk := ids[start:min(start+maxPlaylistAddRequest, len(ids))]
		sids := make([]spotify.ID, 0, len(chunk))
		for _, id := range chunk {
			sids = append(sids, spotify.ID(id))
		}
		if _, err := b.client.AddTracksToPlaylist(ctx, pl.ID, sids...); err != nil {
			return "", fmt.Errorf("spotify add tracks: %w", err)
		}
	}
	return string(pl.ID), nil
}

func trackURI(id string) spotify.URI {
	return spotify.URI("spotify:track:" + id)
}

func fullTrack(ft *spotify.FullTrack) catalog.Track {
	t := catalog.Track{
		ID:         string(ft.ID),
		Name:       ft.Name,
		Album:      ft.Album.Name,
		Popularity: int(ft.Popularity),
		DurationMs: int(ft.Duration),
		URI:        string(ft.URI),
	}
	for _, a := range ft.Artists {
		t.Artists = append(t.Artists, a.Name)
	}
	if len(ft.Album.ReleaseDate) >= 4 {
		if y, err := strconv.Atoi(ft.Album.ReleaseDate[:4]); err == nil {
			t.Year = y
		}
	}
	return t
}
