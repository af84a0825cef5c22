package executor

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"music-action-service/internal/catalog"
	"music-action-service/internal/schema"
)

// MockBackend implements every catalog capability.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) SearchTracks(ctx context.Context, query string, limit int) ([]catalog.Track, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Track), args.Error(1)
}

func (m *MockBackend) Tracks(ctx context.Context, ids []string) ([]catalog.Track, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Track), args.Error(1)
}

func (m *MockBackend) RecentlyPlayed(ctx context.Context, n int) (schema.TrackList, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schema.TrackList), args.Error(1)
}

func (m *MockBackend) TopTracks(ctx context.Context, term schema.FavoritesTerm, n int) (schema.TrackList, error) {
	args := m.Called(ctx, term, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schema.TrackList), args.Error(1)
}

func (m *MockBackend) Play(ctx context.Context, ids []string) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *MockBackend) Resume(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBackend) Pause(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBackend) Volume(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockBackend) SetVolume(ctx context.Context, level int) error {
	return m.Called(ctx, level).Error(0)
}

func (m *MockBackend) CreatePlaylist(ctx context.Context, name string, ids []string) (string, error) {
	args := m.Called(ctx, name, ids)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) RecordPlays(ctx context.Context, ids []string, at time.Time) error {
	return m.Called(ctx, ids, at).Error(0)
}

func (m *MockBackend) backend() Backend {
	return Backend{
		Searcher:  m,
		Resolver:  m,
		Listening: m,
		Player:    m,
		Playlists: m,
		Recorder:  m,
	}
}
