// Package executor carries out validated action calls against a music backend
// and runs whole programs step by step.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"music-action-service/internal/catalog"
	"music-action-service/internal/filter"
	"music-action-service/internal/schema"
	"music-action-service/internal/sorter"
)

var (
	ErrOutOfRange         = errors.New("offset is past the end of the track list")
	ErrUnknownTrack       = catalog.ErrUnknownTrack
	ErrBackendUnavailable = errors.New("backend capability not configured")
)

const (
	defaultSearchLimit = 50
	metadataChunk      = 50
	metadataWorkers    = 4
)

// Backend groups the capabilities the executor drives. Any of them may be
// nil; actions that need a missing one fail with ErrBackendUnavailable.
type Backend struct {
	Searcher  catalog.Searcher
	Resolver  catalog.Resolver
	Listening catalog.Listening
	Player    catalog.Player
	Playlists catalog.PlaylistWriter
	Recorder  catalog.PlayRecorder
}

type Executor struct {
	reg         *schema.Registry
	backend     Backend
	matcher     filter.Matcher
	searchLimit int
	now         func() time.Time
}

type Option func(*Executor)

// WithDescriber swaps the interpretation of description: filter constraints.
func WithDescriber(d filter.Describer) Option {
	return func(e *Executor) { e.matcher = filter.NewMatcher(d) }
}

func WithSearchLimit(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.searchLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func New(reg *schema.Registry, backend Backend, opts ...Option) *Executor {
	e := &Executor{
		reg:         reg,
		backend:     backend,
		matcher:     filter.NewMatcher(nil),
		searchLimit: defaultSearchLimit,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Registry() *schema.Registry { return e.reg }

// Outcome is the observable effect of one call. Value holds the track list
// for list-producing actions and the argument of finalResult.
type Outcome struct {
	Action     schema.Name `json:"action"`
	Value      any         `json:"value,omitempty"`
	Message    string      `json:"message,omitempty"`
	PlaylistID string      `json:"playlistId,omitempty"`
	Volume     *int        `json:"volume,omitempty"`
}

// Tracks returns Value as a track list, or nil.
func (o Outcome) Tracks() schema.TrackList {
	tl, _ := o.Value.(schema.TrackList)
	return tl
}

// Execute validates call and performs it.
func (e *Executor) Execute(ctx context.Context, call schema.Call) (Outcome, error) {
	args, err := e.reg.Decode(call)
	if err != nil {
		return Outcome{}, err
	}
	return e.dispatch(ctx, args)
}

func (e *Executor) dispatch(ctx context.Context, args schema.Args) (Outcome, error) {
	out := Outcome{Action: args.Action()}
	switch a := args.(type) {
	case schema.GetRecentlyPlayedArgs:
		tl, err := e.recentlyPlayed(ctx, a)
		if err != nil {
			return out, err
		}
		out.Value = tl

	case schema.PauseArgs:
		if e.backend.Player == nil {
			return out, unavailable("player")
		}
		if err := e.backend.Player.Pause(ctx); err != nil {
			return out, fmt.Errorf("pause: %w", err)
		}

	case schema.PlayArgs:
		if e.backend.Player == nil {
			return out, unavailable("player")
		}
		if err := e.backend.Player.Resume(ctx); err != nil {
			return out, fmt.Errorf("play: %w", err)
		}

	case schema.SetVolumeArgs:
		level, err := e.setVolume(ctx, a)
		if err != nil {
			return out, err
		}
		out.Volume = &level

	case schema.SearchTracksArgs:
		if e.backend.Searcher == nil {
			return out, unavailable("search")
		}
		tracks, err := e.backend.Searcher.SearchTracks(ctx, a.Query, e.searchLimit)
		if err != nil {
			return out, fmt.Errorf("search tracks: %w", err)
		}
		out.Value = catalog.IDs(tracks)

	case schema.PlayTracksArgs:
		window, err := e.playTracks(ctx, a)
		if err != nil {
			return out, err
		}
		out.Message = fmt.Sprintf("playing %d track(s)", len(window))

	case schema.FilterTracksArgs:
		expr, err := filter.Parse(a.Filter)
		if err != nil {
			return out, err
		}
		tracks, err := e.resolve(ctx, a.TrackList)
		if err != nil {
			return out, err
		}
		out.Value = catalog.IDs(filter.Apply(e.matcher, tracks, expr, a.Negate))

	case schema.SortTracksArgs:
		key, ok := sorter.Resolve(a.SortKey())
		if !ok {
			log.Printf("music-action-service: unrecognised sort description %q, sorting by name", a.SortKey())
		}
		tracks, err := e.resolve(ctx, a.TrackList)
		if err != nil {
			return out, err
		}
		out.Value = catalog.IDs(sorter.Sort(tracks, key, a.Descending))

	case schema.CreatePlaylistArgs:
		if e.backend.Playlists == nil {
			return out, unavailable("playlists")
		}
		id, err := e.backend.Playlists.CreatePlaylist(ctx, a.Name, a.TrackList)
		if err != nil {
			return out, fmt.Errorf("create playlist: %w", err)
		}
		out.PlaylistID = id
		out.Message = fmt.Sprintf("created playlist %q with %d track(s)", a.Name, len(a.TrackList))

	case schema.MergeTrackListsArgs:
		out.Value = a.Merged()

	case schema.UnknownActionArgs:
		out.Message = "I did not understand: " + a.Text

	case schema.NonMusicQuestionArgs:
		out.Message = "That is not a music request: " + a.Text

	case schema.FinalResultArgs:
		out.Value = a.Result

	default:
		return out, fmt.Errorf("%w: %s", schema.ErrUnknownAction, args.Action())
	}
	return out, nil
}

func unavailable(capability string) error {
	return fmt.Errorf("%w: %s", ErrBackendUnavailable, capability)
}

func (e *Executor) recentlyPlayed(ctx context.Context, a schema.GetRecentlyPlayedArgs) (schema.TrackList, error) {
	if e.backend.Listening == nil {
		return nil, unavailable("listening history")
	}
	n := a.Limit()
	var (
		tl  schema.TrackList
		err error
	)
	if a.FavoritesTerm != "" {
		tl, err = e.backend.Listening.TopTracks(ctx, a.FavoritesTerm, n)
	} else {
		tl, err = e.backend.Listening.RecentlyPlayed(ctx, n)
	}
	if err != nil {
		return nil, fmt.Errorf("listening history: %w", err)
	}
	if len(tl) > n {
		tl = tl[:n]
	}
	if tl == nil {
		tl = schema.TrackList{}
	}
	return tl, nil
}

func (e *Executor) setVolume(ctx context.Context, a schema.SetVolumeArgs) (int, error) {
	p := e.backend.Player
	if p == nil {
		return 0, unavailable("player")
	}
	current := 0
	if a.NewVolumeLevel == nil {
		v, err := p.Volume(ctx)
		if err != nil {
			return 0, fmt.Errorf("read volume: %w", err)
		}
		current = v
	}
	level := a.Apply(current)
	if err := p.SetVolume(ctx, level); err != nil {
		return 0, fmt.Errorf("set volume: %w", err)
	}
	return level, nil
}

// playTracks plays the window [offset, offset+count) of the list, clipped at
// its end, and records the plays.
func (e *Executor) playTracks(ctx context.Context, a schema.PlayTracksArgs) (schema.TrackList, error) {
	if e.backend.Player == nil {
		return nil, unavailable("player")
	}
	offset := a.StartOffset()
	if offset >= len(a.TrackList) {
		return nil, fmt.Errorf("%w: offset %d, %d track(s)", ErrOutOfRange, offset, len(a.TrackList))
	}
	end := offset + min(a.PlayCount(), len(a.TrackList)-offset)
	window := a.TrackList[offset:end]
	if err := e.backend.Player.Play(ctx, window); err != nil {
		return nil, fmt.Errorf("play tracks: %w", err)
	}
	if e.backend.Recorder != nil {
		if err := e.backend.Recorder.RecordPlays(ctx, window, e.now()); err != nil {
			log.Printf("music-action-service: record plays: %v", err)
		}
	}
	return window, nil
}
