// Package playlist stores playlists created by the local backend in Postgres.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"music-action-service/internal/catalog"
)

var ErrNotFound = errors.New("playlist not found")

// DB is implemented by *pgxpool.Pool and by pgxmock pools.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Playlist is a named, ordered list of track ids. TrackIDs may repeat.
type Playlist struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	TrackIDs  []string  `json:"trackIds"`
}

type Store struct {
	db    DB
	newID func() string
}

func NewStore(db DB) *Store {
	return &Store{db: db, newID: uuid.NewString}
}

// CreatePlaylist stores the playlist and its tracks in one transaction. The
// owner is the listener carried by ctx. Names need not be unique.
func (s *Store) CreatePlaylist(ctx context.Context, name string, ids []string) (string, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}

	id := s.newID()
	if _, err := tx.Exec(ctx, `
		INSERT INTO playlists (id, owner_id, name)
		VALUES ($1, $2, $3)
	`, id, catalog.ListenerFrom(ctx), name); err != nil {
		_ = tx.Rollback(ctx)
		return "", fmt.Errorf("insert playlist: %w", err)
	}

	if len(ids) > 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO playlist_tracks (playlist_id, position, track_id)
			SELECT $1, t.ord - 1, t.track_id
			FROM unnest($2::text[]) WITH ORDINALITY AS t(track_id, ord)
		`, id, ids); err != nil {
			_ = tx.Rollback(ctx)
			return "", fmt.Errorf("insert playlist tracks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id string) (Playlist, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Playlist{}, ErrNotFound
	}

	var pl Playlist
	err := s.db.QueryRow(ctx, `
		SELECT id, owner_id, name, created_at
		FROM playlists
		WHERE id = $1
	`, id).Scan(&pl.ID, &pl.OwnerID, &pl.Name, &pl.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Playlist{}, ErrNotFound
	}
	if err != nil {
		return Playlist{}, fmt.Errorf("select playlist: %w", err)
	}

	pl.TrackIDs, err = s.trackIDs(ctx, id)
	if err != nil {
		return Playlist{}, err
	}
	return pl, nil
}

// List returns the listener's playlists, newest first, without track ids.
func (s *Store) List(ctx context.Context, owner string) ([]Playlist, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, name, created_at
		FROM playlists
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT 200
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	out := []Playlist{}
	for rows.Next() {
		var pl Playlist
		if err := rows.Scan(&pl.ID, &pl.OwnerID, &pl.Name, &pl.CreatedAt); err != nil {
			return nil, fmt.Errorf("list playlists scan: %w", err)
		}
		out = append(out, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list playlists rows: %w", err)
	}
	return out, nil
}

func (s *Store) trackIDs(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT track_id
		FROM playlist_tracks
		WHERE playlist_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("select playlist tracks: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan playlist tracks: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
