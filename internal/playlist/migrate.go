package playlist

import (
	"context"
	"log"
)

func AutoMigrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlists (
          id          uuid PRIMARY KEY,
          owner_id    TEXT NOT NULL,
          name        TEXT NOT NULL,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("music-action-service: migrate playlists: %v", err)
		return err
	}

	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlist_tracks (
          playlist_id uuid NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
          position    INT NOT NULL,
          track_id    TEXT NOT NULL,
          PRIMARY KEY (playlist_id, position)
      )
    `); err != nil {
		log.Printf("music-action-service: migrate playlist_tracks: %v", err)
		return err
	}

	if _, err := db.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_playlists_owner
      ON playlists(owner_id, created_at DESC)
    `); err != nil {
		return err
	}
	return nil
}
