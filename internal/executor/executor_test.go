package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"music-action-service/internal/catalog"
	"music-action-service/internal/filter"
	"music-action-service/internal/program"
	"music-action-service/internal/schema"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newExecutor(m *MockBackend) *Executor {
	return New(schema.Default(), m.backend(), WithClock(func() time.Time { return fixedNow }))
}

func call(name schema.Name, args ...string) schema.Call {
	c := schema.Call{Name: name}
	for _, a := range args {
		c.Args = append(c.Args, json.RawMessage(a))
	}
	return c
}

var songs = []catalog.Track{
	{ID: "t1", Name: "Hotline Bling", Artists: []string{"Drake"}, Genres: []string{"hip hop"}, Year: 2015, Popularity: 80},
	{ID: "t2", Name: "God's Plan", Artists: []string{"Drake"}, Genres: []string{"hip hop"}, Year: 2018, Popularity: 95},
	{ID: "t3", Name: "Dancing Queen", Artists: []string{"ABBA"}, Genres: []string{"pop"}, Year: 1976, Popularity: 70},
}

func TestExecuteSearch(t *testing.T) {
	ctx := context.Background()
	m := new(MockBackend)
	m.On("SearchTracks", ctx, "drake", defaultSearchLimit).Return(songs[:2], nil)

	out, err := newExecutor(m).Execute(ctx, call(schema.SearchTracks, `"drake"`))
	require.NoError(t, err)
	assert.Equal(t, schema.TrackList{"t1", "t2"}, out.Tracks())
	m.AssertExpectations(t)
}

func TestExecuteValidationErrorsPassThrough(t *testing.T) {
	m := new(MockBackend)
	_, err := newExecutor(m).Execute(context.Background(), call(schema.SearchTracks, `""`))
	assert.ErrorIs(t, err, schema.ErrInvalidArgs)

	_, err = newExecutor(m).Execute(context.Background(), call("rewind"))
	assert.ErrorIs(t, err, schema.ErrUnknownAction)
	m.AssertExpectations(t)
}

func TestGetRecentlyPlayed(t *testing.T) {
	ctx := context.Background()

	t.Run("history with default count", func(t *testing.T) {
		m := new(MockBackend)
		m.On("RecentlyPlayed", ctx, 50).Return(schema.TrackList{"t2", "t1"}, nil)

		out, err := newExecutor(m).Execute(ctx, call(schema.GetRecentlyPlayed))
		require.NoError(t, err)
		assert.Equal(t, schema.TrackList{"t2", "t1"}, out.Tracks())
		m.AssertExpectations(t)
	})

	t.Run("favorites term asks for top tracks", func(t *testing.T) {
		m := new(MockBackend)
		m.On("TopTracks", ctx, schema.ShortTerm, 2).Return(schema.TrackList{"t3", "t1", "t2"}, nil)

		out, err := newExecutor(m).Execute(ctx, call(schema.GetRecentlyPlayed, `{"favoritesTerm":"short_term","count":2}`))
		require.NoError(t, err)
		assert.Equal(t, schema.TrackList{"t3", "t1"}, out.Tracks(), "result is capped at count")
		m.AssertExpectations(t)
	})

	t.Run("empty history is an empty list", func(t *testing.T) {
		m := new(MockBackend)
		m.On("RecentlyPlayed", ctx, 50).Return(nil, nil)

		out, err := newExecutor(m).Execute(ctx, call(schema.GetRecentlyPlayed))
		require.NoError(t, err)
		assert.NotNil(t, out.Tracks())
		assert.Empty(t, out.Tracks())
	})
}

func TestPauseAndPlay(t *testing.T) {
	ctx := context.Background()
	m := new(MockBackend)
	m.On("Pause", ctx).Return(nil)
	m.On("Resume", ctx).Return(errors.New("no active device"))

	_, err := newExecutor(m).Execute(ctx, call(schema.Pause))
	require.NoError(t, err)

	_, err = newExecutor(m).Execute(ctx, call(schema.Play))
	assert.ErrorContains(t, err, "no active device")
	m.AssertExpectations(t)
}

func TestSetVolume(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		arg     string
		current int
		want    int
	}{
		{"absolute", `{"newVolumeLevel":30}`, -1, 30},
		{"quieter", `{"volumeChangeAmount":-5}`, 40, 35},
		{"clamped high", `{"volumeChangeAmount":30}`, 90, 100},
		{"clamped low", `{"volumeChangeAmount":-30}`, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockBackend)
			if tt.current >= 0 {
				m.On("Volume", ctx).Return(tt.current, nil)
			}
			m.On("SetVolume", ctx, tt.want).Return(nil)

			out, err := newExecutor(m).Execute(ctx, call(schema.SetVolume, tt.arg))
			require.NoError(t, err)
			require.NotNil(t, out.Volume)
			assert.Equal(t, tt.want, *out.Volume)
			m.AssertExpectations(t)
		})
	}
}

func TestPlayTracksWindow(t *testing.T) {
	ctx := context.Background()
	list := `["a","b","c","d"]`

	tests := []struct {
		name    string
		options []string
		want    []string
	}{
		{"defaults play the first track", nil, []string{"a"}},
		{"count and offset", []string{`{"count":2,"offset":1}`}, []string{"b", "c"}},
		{"window clipped at the end", []string{`{"count":10,"offset":2}`}, []string{"c", "d"}},
		{"huge count clipped", []string{`{"count":9223372036854775807,"offset":1}`}, []string{"b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockBackend)
			m.On("Play", ctx, tt.want).Return(nil)
			m.On("RecordPlays", ctx, tt.want, fixedNow).Return(nil)

			_, err := newExecutor(m).Execute(ctx, call(schema.PlayTracks, append([]string{list}, tt.options...)...))
			require.NoError(t, err)
			m.AssertExpectations(t)
		})
	}

	t.Run("offset past the end", func(t *testing.T) {
		m := new(MockBackend)
		_, err := newExecutor(m).Execute(ctx, call(schema.PlayTracks, list, `{"offset":4}`))
		assert.ErrorIs(t, err, ErrOutOfRange)
		m.AssertNotCalled(t, "Play", mock.Anything, mock.Anything)
	})

	t.Run("empty list", func(t *testing.T) {
		m := new(MockBackend)
		_, err := newExecutor(m).Execute(ctx, call(schema.PlayTracks, `[]`))
		assert.ErrorIs(t, err, ErrOutOfRange)
	})

	t.Run("recording failure does not fail playback", func(t *testing.T) {
		m := new(MockBackend)
		m.On("Play", ctx, []string{"a"}).Return(nil)
		m.On("RecordPlays", ctx, []string{"a"}, fixedNow).Return(errors.New("redis down"))

		_, err := newExecutor(m).Execute(ctx, call(schema.PlayTracks, list))
		assert.NoError(t, err)
	})
}

func TestFilterTracks(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps matches in order", func(t *testing.T) {
		m := new(MockBackend)
		m.On("Tracks", mock.Anything, []string{"t3", "t1", "t2"}).Return(songs, nil)

		out, err := newExecutor(m).Execute(ctx, call(schema.FilterTracks, `{"trackList":["t3","t1","t2"],"filter":"artist:drake"}`))
		require.NoError(t, err)
		assert.Equal(t, schema.TrackList{"t1", "t2"}, out.Tracks())
	})

	t.Run("negate", func(t *testing.T) {
		m := new(MockBackend)
		m.On("Tracks", mock.Anything, []string{"t1", "t2", "t3"}).Return(songs, nil)

		out, err := newExecutor(m).Execute(ctx, call(schema.FilterTracks, `{"trackList":["t1","t2","t3"],"filter":"year:2010-2019","negate":true}`))
		require.NoError(t, err)
		assert.Equal(t, schema.TrackList{"t3"}, out.Tracks())
	})

	t.Run("unknown track", func(t *testing.T) {
		m := new(MockBackend)
		m.On("Tracks", mock.Anything, []string{"t1", "ghost"}).Return(songs[:1], nil)

		_, err := newExecutor(m).Execute(ctx, call(schema.FilterTracks, `{"trackList":["t1","ghost"],"filter":"genre:pop"}`))
		assert.ErrorIs(t, err, ErrUnknownTrack)
	})

	t.Run("custom describer", func(t *testing.T) {
		m := new(MockBackend)
		m.On("Tracks", mock.Anything, []string{"t1", "t2", "t3"}).Return(songs, nil)

		e := New(schema.Default(), m.backend(), WithDescriber(eraDescriber{}))
		out, err := e.Execute(ctx, call(schema.FilterTracks, `{"trackList":["t1","t2","t3"],"filter":"description:seventies"}`))
		require.NoError(t, err)
		assert.Equal(t, schema.TrackList{"t3"}, out.Tracks())
	})

	t.Run("empty list needs no metadata", func(t *testing.T) {
		m := new(MockBackend)
		out, err := newExecutor(m).Execute(ctx, call(schema.FilterTracks, `{"trackList":[],"filter":"genre:pop"}`))
		require.NoError(t, err)
		assert.Empty(t, out.Tracks())
		m.AssertNotCalled(t, "Tracks", mock.Anything, mock.Anything)
	})
}

// eraDescriber understands decade names and nothing else.
type eraDescriber struct{}

func (eraDescriber) Describes(description string, a filter.Attributes) bool {
	return description == "seventies" && a.Year >= 1970 && a.Year < 1980
}

func TestSortTracks(t *testing.T) {
	ctx := context.Background()
	m := new(MockBackend)
	m.On("Tracks", mock.Anything, []string{"t1", "t2", "t3"}).Return(songs, nil)
	ex := newExecutor(m)

	out, err := ex.Execute(ctx, call(schema.SortTracks, `{"trackList":["t1","t2","t3"]}`))
	require.NoError(t, err)
	assert.Equal(t, schema.TrackList{"t3", "t2", "t1"}, out.Tracks())

	out, err = ex.Execute(ctx, call(schema.SortTracks, `{"trackList":["t1","t2","t3"],"description":"release year","descending":true}`))
	require.NoError(t, err)
	assert.Equal(t, schema.TrackList{"t2", "t1", "t3"}, out.Tracks())

	out, err = ex.Execute(ctx, call(schema.SortTracks, `{"trackList":["t1","t2","t3"],"description":"most popular","descending":true}`))
	require.NoError(t, err)
	assert.Equal(t, schema.TrackList{"t2", "t1", "t3"}, out.Tracks())
}

func TestCreatePlaylistAndMerge(t *testing.T) {
	ctx := context.Background()
	m := new(MockBackend)
	m.On("CreatePlaylist", ctx, "road trip", []string{"t1", "t1"}).Return("pl-1", nil)
	ex := newExecutor(m)

	out, err := ex.Execute(ctx, call(schema.CreatePlaylist, `["t1","t1"]`, `"road trip"`))
	require.NoError(t, err)
	assert.Equal(t, "pl-1", out.PlaylistID)

	out, err = ex.Execute(ctx, call(schema.MergeTrackLists, `["t1","t2"]`, `[]`, `["t2"]`))
	require.NoError(t, err)
	assert.Equal(t, schema.TrackList{"t1", "t2", "t2"}, out.Tracks())
	m.AssertExpectations(t)
}

func TestUnderstoodNothingCallsNoBackend(t *testing.T) {
	ctx := context.Background()
	m := new(MockBackend)
	ex := newExecutor(m)

	out, err := ex.Execute(ctx, call(schema.UnknownAction, `"fly me to the moon literally"`))
	require.NoError(t, err)
	assert.Contains(t, out.Message, "fly me to the moon literally")

	out, err = ex.Execute(ctx, call(schema.NonMusicQuestion, `"what is the capital of France"`))
	require.NoError(t, err)
	assert.Contains(t, out.Message, "capital of France")

	out, err = ex.Execute(ctx, call(schema.FinalResult, `"done"`))
	require.NoError(t, err)
	assert.Equal(t, "done", out.Value)
	m.AssertExpectations(t)
}

func TestMissingCapability(t *testing.T) {
	ex := New(schema.Default(), Backend{})
	ctx := context.Background()

	for _, c := range []schema.Call{
		call(schema.Pause),
		call(schema.SearchTracks, `"x"`),
		call(schema.GetRecentlyPlayed),
		call(schema.SetVolume, `{"newVolumeLevel":1}`),
		call(schema.PlayTracks, `["a"]`),
		call(schema.FilterTracks, `{"trackList":["a"],"filter":"genre:pop"}`),
		call(schema.CreatePlaylist, `["a"]`, `"x"`),
	} {
		_, err := ex.Execute(ctx, c)
		assert.ErrorIs(t, err, ErrBackendUnavailable, string(c.Name))
	}
}

// countingResolver answers every id it is asked about and records chunk sizes.
type countingResolver struct {
	mu     sync.Mutex
	chunks []int
}

func (r *countingResolver) Tracks(_ context.Context, ids []string) ([]catalog.Track, error) {
	r.mu.Lock()
	r.chunks = append(r.chunks, len(ids))
	r.mu.Unlock()
	out := make([]catalog.Track, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.Track{ID: id, Name: id})
	}
	return out, nil
}

func TestResolveFetchesInChunks(t *testing.T) {
	r := &countingResolver{}
	ex := New(schema.Default(), Backend{Resolver: r})

	ids := make(schema.TrackList, 0, 121)
	for i := 0; i < 120; i++ {
		ids = append(ids, fmt.Sprintf("id%03d", i))
	}
	ids = append(ids, "id000")

	tracks, err := ex.resolve(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, tracks, 121)
	for i, tr := range tracks {
		assert.Equal(t, ids[i], tr.ID)
	}
	assert.ElementsMatch(t, []int{50, 50, 20}, r.chunks)
}

func TestRunProgram(t *testing.T) {
	ctx := context.Background()
	m := new(MockBackend)
	m.On("SearchTracks", ctx, "drake", defaultSearchLimit).Return(songs[:2], nil)
	m.On("Tracks", mock.Anything, []string{"t1", "t2"}).Return(songs[:2], nil)
	m.On("Tracks", mock.Anything, []string{"t2"}).Return(songs[1:2], nil)
	m.On("Play", ctx, []string{"t2"}).Return(nil)
	m.On("RecordPlays", ctx, []string{"t2"}, fixedNow).Return(nil)

	p, err := program.Parse(strings.NewReader(`{"@steps":[
		{"@func":"searchTracks","@args":["drake"]},
		{"@func":"filterTracks","@args":[{"trackList":{"@ref":0},"filter":"year:2018"}]},
		{"@func":"sortTracks","@args":[{"trackList":{"@ref":1}}]},
		{"@func":"playTracks","@args":[{"@ref":2}]},
		{"@func":"finalResult","@args":[{"@ref":2}]}
	]}`))
	require.NoError(t, err)

	rep, err := newExecutor(m).Run(ctx, p)
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)
	assert.Len(t, rep.Steps, 5)
	assert.Equal(t, []any{"t2"}, rep.Result)
	assert.Equal(t, schema.TrackList{"t2"}, rep.Steps[2].Outcome.Tracks())
	assert.Equal(t, []string{"playing 1 track(s)"}, rep.Messages)
	m.AssertExpectations(t)
}

func TestRunStopsAtFailingStep(t *testing.T) {
	ctx := context.Background()
	m := new(MockBackend)
	m.On("SearchTracks", ctx, "nothing", defaultSearchLimit).Return([]catalog.Track{}, nil)

	p, err := program.Parse(strings.NewReader(`{"@steps":[
		{"@func":"searchTracks","@args":["nothing"]},
		{"@func":"playTracks","@args":[{"@ref":0}]},
		{"@func":"pause"}
	]}`))
	require.NoError(t, err)

	rep, err := newExecutor(m).Run(ctx, p)
	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Index)
	assert.Equal(t, schema.PlayTracks, se.Func)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Len(t, rep.Steps, 1)
	assert.NotEmpty(t, rep.Error)
	m.AssertNotCalled(t, "Pause", mock.Anything)
}

func TestRunInvalidProgramExecutesNothing(t *testing.T) {
	m := new(MockBackend)
	p, err := program.Parse(strings.NewReader(`{"@steps":[
		{"@func":"pause"},
		{"@func":"playTracks","@args":[{"@ref":3}]}
	]}`))
	require.NoError(t, err)

	rep, err := newExecutor(m).Run(context.Background(), p)
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, program.ErrInvalidProgram)
	m.AssertNotCalled(t, "Pause", mock.Anything)
}
