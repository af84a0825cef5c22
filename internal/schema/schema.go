// Package schema declares the closed set of music player actions a planner may
// emit, with their argument shapes, defaults and validation rules.
//
// Every action that produces tracks produces a TrackList, so the output of one
// action is always a valid input to the next (search → filter → sort → play).
package schema

import "time"

// TrackList is an ordered sequence of opaque track identifiers. Order is
// playback order; duplicates are allowed.
type TrackList []string

// FavoritesTerm selects the lookback window for "top tracks" queries.
type FavoritesTerm string

const (
	ShortTerm  FavoritesTerm = "short_term"  // last 4 weeks
	MediumTerm FavoritesTerm = "medium_term" // last 6 months
	LongTerm   FavoritesTerm = "long_term"   // several years
)

// Valid reports whether t is one of the three known terms.
func (t FavoritesTerm) Valid() bool {
	switch t {
	case ShortTerm, MediumTerm, LongTerm:
		return true
	}
	return false
}

// Window is the lookback duration covered by the term.
func (t FavoritesTerm) Window() time.Duration {
	const day = 24 * time.Hour
	switch t {
	case ShortTerm:
		return 28 * day
	case MediumTerm:
		return 182 * day
	case LongTerm:
		return 5 * 365 * day
	}
	return 0
}

// Name identifies an action.
type Name string

const (
	GetRecentlyPlayed Name = "getRecentlyPlayed"
	Pause             Name = "pause"
	Play              Name = "play"
	SetVolume         Name = "setVolume"
	SearchTracks      Name = "searchTracks"
	PlayTracks        Name = "playTracks"
	FilterTracks      Name = "filterTracks"
	SortTracks        Name = "sortTracks"
	CreatePlaylist    Name = "createPlaylist"
	MergeTrackLists   Name = "mergeTrackLists"
	UnknownAction     Name = "unknownAction"
	NonMusicQuestion  Name = "nonMusicQuestion"
	FinalResult       Name = "finalResult"
)

// Names lists every action in declaration order.
func Names() []Name {
	return []Name{
		GetRecentlyPlayed, Pause, Play, SetVolume, SearchTracks, PlayTracks,
		FilterTracks, SortTracks, CreatePlaylist, MergeTrackLists,
		UnknownAction, NonMusicQuestion, FinalResult,
	}
}

const (
	DefaultRecentCount = 50
	DefaultPlayCount   = 1
	DefaultSortKey     = "name"
	MaxVolume          = 100
)

// Args is the decoded, validated argument set of one action call.
type Args interface {
	Action() Name
}

type GetRecentlyPlayedArgs struct {
	// FavoritesTerm switches from play history to a top-tracks ranking.
	FavoritesTerm FavoritesTerm `json:"favoritesTerm,omitempty"`
	Count         *int          `json:"count,omitempty"`
}

func (GetRecentlyPlayedArgs) Action() Name { return GetRecentlyPlayed }

// Limit returns Count or the default of 50.
func (a GetRecentlyPlayedArgs) Limit() int {
	if a.Count == nil {
		return DefaultRecentCount
	}
	return *a.Count
}

type PauseArgs struct{}

func (PauseArgs) Action() Name { return Pause }

type PlayArgs struct{}

func (PlayArgs) Action() Name { return Play }

// SetVolumeArgs carries exactly one of an absolute level (0..100) or a signed
// change amount.
type SetVolumeArgs struct {
	NewVolumeLevel     *int `json:"newVolumeLevel,omitempty"`
	VolumeChangeAmount *int `json:"volumeChangeAmount,omitempty"`
}

func (SetVolumeArgs) Action() Name { return SetVolume }

// Apply computes the resulting level from the current one, clamped to 0..100.
func (a SetVolumeArgs) Apply(current int) int {
	level := current
	switch {
	case a.NewVolumeLevel != nil:
		level = *a.NewVolumeLevel
	case a.VolumeChangeAmount != nil:
		level = current + min(max(*a.VolumeChangeAmount, -MaxVolume), MaxVolume)
	}
	return min(max(level, 0), MaxVolume)
}

// SearchTracksArgs holds a space separated keyword query; all keywords must match.
type SearchTracksArgs struct {
	Query string `json:"query"`
}

func (SearchTracksArgs) Action() Name { return SearchTracks }

type PlayTracksArgs struct {
	TrackList TrackList `json:"trackList"`
	Count     *int      `json:"count,omitempty"`
	Offset    *int      `json:"offset,omitempty"`
}

func (PlayTracksArgs) Action() Name { return PlayTracks }

func (a PlayTracksArgs) PlayCount() int {
	if a.Count == nil {
		return DefaultPlayCount
	}
	return *a.Count
}

func (a PlayTracksArgs) StartOffset() int {
	if a.Offset == nil {
		return 0
	}
	return *a.Offset
}

type FilterTracksArgs struct {
	TrackList TrackList `json:"trackList"`
	Filter    string    `json:"filter"`
	Negate    bool      `json:"negate,omitempty"`
}

func (FilterTracksArgs) Action() Name { return FilterTracks }

type SortTracksArgs struct {
	TrackList   TrackList `json:"trackList"`
	Description string    `json:"description,omitempty"`
	Descending  bool      `json:"descending,omitempty"`
}

func (SortTracksArgs) Action() Name { return SortTracks }

// SortKey returns the description, or "name" when none was given.
func (a SortTracksArgs) SortKey() string {
	if a.Description == "" {
		return DefaultSortKey
	}
	return a.Description
}

type CreatePlaylistArgs struct {
	TrackList TrackList `json:"trackList"`
	Name      string    `json:"name"`
}

func (CreatePlaylistArgs) Action() Name { return CreatePlaylist }

type MergeTrackListsArgs struct {
	Lists []TrackList `json:"lists"`
}

func (MergeTrackListsArgs) Action() Name { return MergeTrackLists }

// Merged concatenates the lists left to right, keeping duplicates.
func (a MergeTrackListsArgs) Merged() TrackList {
	n := 0
	for _, l := range a.Lists {
		n += len(l)
	}
	out := make(TrackList, 0, n)
	for _, l := range a.Lists {
		out = append(out, l...)
	}
	return out
}

// UnknownActionArgs captures a request that could not be mapped to an action.
type UnknownActionArgs struct {
	Text string `json:"text"`
}

func (UnknownActionArgs) Action() Name { return UnknownAction }

// NonMusicQuestionArgs captures an off-domain question.
type NonMusicQuestionArgs struct {
	Text string `json:"text"`
}

func (NonMusicQuestionArgs) Action() Name { return NonMusicQuestion }

// FinalResultArgs ends a planning turn with an arbitrary value.
type FinalResultArgs struct {
	Result any `json:"result"`
}

func (FinalResultArgs) Action() Name { return FinalResult }
