package schema

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(name Name, args ...string) Call {
	c := Call{Name: name}
	for _, a := range args {
		c.Args = append(c.Args, json.RawMessage(a))
	}
	return c
}

func intPtr(v int) *int { return &v }

func TestDefaultRegistersEveryAction(t *testing.T) {
	reg := Default()
	defs := reg.Definitions()
	require.Len(t, defs, len(Names()))
	for i, name := range Names() {
		assert.Equal(t, name, defs[i].Name)
	}

	def, ok := reg.Lookup(SearchTracks)
	require.True(t, ok)
	assert.Equal(t, ResultTrackList, def.Result)

	def, ok = reg.Lookup(PlayTracks)
	require.True(t, ok)
	assert.Equal(t, ResultNone, def.Result)
}

func TestRegisterRejectsBlankAndDuplicate(t *testing.T) {
	reg := NewRegistry()
	dec := decodeNoArgs(PauseArgs{})

	require.NoError(t, reg.Register(Definition{Name: "x", Decode: dec}))
	assert.Error(t, reg.Register(Definition{Name: "  ", Decode: dec}))
	assert.Error(t, reg.Register(Definition{Name: "x", Decode: dec}))
	assert.Error(t, reg.Register(Definition{Name: "y"}))
}

func TestDecodeValid(t *testing.T) {
	reg := Default()
	tests := []struct {
		name string
		call Call
		want Args
	}{
		{"recent without options", call(GetRecentlyPlayed), GetRecentlyPlayedArgs{}},
		{"recent with null options", call(GetRecentlyPlayed, `null`), GetRecentlyPlayedArgs{}},
		{
			"favorites",
			call(GetRecentlyPlayed, `{"favoritesTerm":"long_term","count":10}`),
			GetRecentlyPlayedArgs{FavoritesTerm: LongTerm, Count: intPtr(10)},
		},
		{"pause", call(Pause), PauseArgs{}},
		{"play", call(Play), PlayArgs{}},
		{"absolute volume", call(SetVolume, `{"newVolumeLevel":0}`), SetVolumeArgs{NewVolumeLevel: intPtr(0)}},
		{"volume delta", call(SetVolume, `{"volumeChangeAmount":-5}`), SetVolumeArgs{VolumeChangeAmount: intPtr(-5)}},
		{"search", call(SearchTracks, `"drake hotline bling"`), SearchTracksArgs{Query: "drake hotline bling"}},
		{"play tracks", call(PlayTracks, `["a","b"]`), PlayTracksArgs{TrackList: TrackList{"a", "b"}}},
		{
			"play window",
			call(PlayTracks, `["a","b","c"]`, `{"count":2,"offset":1}`),
			PlayTracksArgs{TrackList: TrackList{"a", "b", "c"}, Count: intPtr(2), Offset: intPtr(1)},
		},
		{
			"filter",
			call(FilterTracks, `{"trackList":["a"],"filter":"genre:pop","negate":true}`),
			FilterTracksArgs{TrackList: TrackList{"a"}, Filter: "genre:pop", Negate: true},
		},
		{"sort defaults", call(SortTracks, `{"trackList":[]}`), SortTracksArgs{TrackList: TrackList{}}},
		{
			"create playlist",
			call(CreatePlaylist, `["a","a"]`, `"road trip"`),
			CreatePlaylistArgs{TrackList: TrackList{"a", "a"}, Name: "road trip"},
		},
		{
			"merge",
			call(MergeTrackLists, `["a"]`, `["b","a"]`),
			MergeTrackListsArgs{Lists: []TrackList{{"a"}, {"b", "a"}}},
		},
		{"unknown", call(UnknownAction, `"make me a sandwich"`), UnknownActionArgs{Text: "make me a sandwich"}},
		{"question", call(NonMusicQuestion, `"what time is it"`), NonMusicQuestionArgs{Text: "what time is it"}},
		{"final result", call(FinalResult, `{"n":1}`), FinalResultArgs{Result: map[string]any{"n": float64(1)}}},
		{"final null", call(FinalResult, `null`), FinalResultArgs{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Decode(tt.call)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.call.Name, got.Action())
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	reg := Default()
	tests := []struct {
		name    string
		call    Call
		problem string
	}{
		{"bad term", call(GetRecentlyPlayed, `{"favoritesTerm":"forever"}`), "favoritesTerm"},
		{"zero count", call(GetRecentlyPlayed, `{"count":0}`), "count must be at least 1"},
		{"unknown option", call(GetRecentlyPlayed, `{"limit":3}`), "unknown field"},
		{"pause with args", call(Pause, `1`), "at most 0"},
		{"both volume params", call(SetVolume, `{"newVolumeLevel":10,"volumeChangeAmount":5}`), "not both"},
		{"no volume params", call(SetVolume, `{}`), "is required"},
		{"volume too loud", call(SetVolume, `{"newVolumeLevel":101}`), "between 0 and 100"},
		{"volume missing", call(SetVolume), "args is required"},
		{"empty query", call(SearchTracks, `""`), "query must not be blank"},
		{"blank query", call(SearchTracks, `"   "`), "query must not be blank"},
		{"query not string", call(SearchTracks, `42`), "query must be a string"},
		{"play without list", call(PlayTracks), "trackList is required"},
		{"play zero count", call(PlayTracks, `["a"]`, `{"count":0}`), "count must be at least 1"},
		{"play negative offset", call(PlayTracks, `["a"]`, `{"offset":-1}`), "offset must not be negative"},
		{"blank track id", call(PlayTracks, `["a",""]`), "trackList[1] is blank"},
		{"filter syntax", call(FilterTracks, `{"trackList":["a"],"filter":"mood:happy"}`), "unknown field"},
		{"filter missing", call(FilterTracks, `{"trackList":["a"]}`), "filter is required"},
		{"filter list missing", call(FilterTracks, `{"filter":"genre:pop"}`), "trackList is required"},
		{"sort list missing", call(SortTracks, `{"description":"year"}`), "trackList is required"},
		{"playlist without name", call(CreatePlaylist, `["a"]`), "name is required"},
		{"playlist blank name", call(CreatePlaylist, `["a"]`, `" "`), "name must not be blank"},
		{"merge nothing", call(MergeTrackLists), "at least one"},
		{"merge non list", call(MergeTrackLists, `["a"]`, `"b"`), "lists[1]"},
		{"unknown without text", call(UnknownAction), "text is required"},
		{"final without result", call(FinalResult), "exactly 1"},
		{"final with two", call(FinalResult, `1`, `2`), "exactly 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Decode(tt.call)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgs)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.call.Name, ve.Action)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestDecodeCollectsEveryProblem(t *testing.T) {
	_, err := Default().Decode(call(PlayTracks, `["a"]`, `{"count":0,"offset":-2}`, `3`))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Problems(), 3)
}

func TestDecodeUnknownAction(t *testing.T) {
	_, err := Default().Decode(call("rewind"))
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.NotErrorIs(t, err, ErrInvalidArgs)
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, 50, GetRecentlyPlayedArgs{}.Limit())
	assert.Equal(t, 7, GetRecentlyPlayedArgs{Count: intPtr(7)}.Limit())
	assert.Equal(t, 1, PlayTracksArgs{}.PlayCount())
	assert.Equal(t, 0, PlayTracksArgs{}.StartOffset())
	assert.Equal(t, "name", SortTracksArgs{}.SortKey())
	assert.Equal(t, "year", SortTracksArgs{Description: "year"}.SortKey())
}

func TestSetVolumeApplyClamps(t *testing.T) {
	assert.Equal(t, 30, SetVolumeArgs{NewVolumeLevel: intPtr(30)}.Apply(80))
	assert.Equal(t, 75, SetVolumeArgs{VolumeChangeAmount: intPtr(-5)}.Apply(80))
	assert.Equal(t, 100, SetVolumeArgs{VolumeChangeAmount: intPtr(50)}.Apply(80))
	assert.Equal(t, 0, SetVolumeArgs{VolumeChangeAmount: intPtr(-50)}.Apply(20))
	assert.Equal(t, 100, SetVolumeArgs{VolumeChangeAmount: intPtr(math.MaxInt)}.Apply(50))
	assert.Equal(t, 0, SetVolumeArgs{VolumeChangeAmount: intPtr(math.MinInt)}.Apply(50))
}

func TestMergedKeepsOrderAndDuplicates(t *testing.T) {
	a := MergeTrackListsArgs{Lists: []TrackList{{"a", "b"}, {}, {"b", "c"}}}
	assert.Equal(t, TrackList{"a", "b", "b", "c"}, a.Merged())
}

func TestFavoritesTerm(t *testing.T) {
	assert.True(t, MediumTerm.Valid())
	assert.False(t, FavoritesTerm("yearly").Valid())
	assert.Less(t, ShortTerm.Window(), MediumTerm.Window())
	assert.Less(t, MediumTerm.Window(), LongTerm.Window())
}

func TestDescribe(t *testing.T) {
	d := Default().Describe()
	require.Len(t, d.Actions, len(Names()))
	assert.Equal(t, []string{"artist", "genre", "year", "description"}, d.FilterFields)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name":"searchTracks"`)
	assert.NotContains(t, string(raw), "Decode")
}
