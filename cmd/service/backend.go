package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"music-action-service/internal/catalog"
	"music-action-service/internal/config"
	"music-action-service/internal/device"
	"music-action-service/internal/executor"
	"music-action-service/internal/history"
	"music-action-service/internal/playlist"
	"music-action-service/internal/provider"
	"music-action-service/internal/spotify"
)

// deps holds the executor backend and the connections behind it.
type deps struct {
	backend   executor.Backend
	rdb       *redis.Client
	pool      *pgxpool.Pool
	playlists *playlist.Store
	hub       *device.Hub
	player    *device.Player
}

func (d *deps) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
}

func connect(ctx context.Context, cfg config.Config) (*deps, error) {
	if cfg.Backend == config.Spotify {
		sp := spotify.NewWithRefreshToken(ctx, cfg.SpotifyID, cfg.SpotifySecret, cfg.SpotifyRefreshToken)
		return &deps{backend: executor.Backend{
			Searcher:  sp,
			Resolver:  sp,
			Listening: sp,
			Player:    sp,
			Playlists: sp,
		}}, nil
	}

	d := &deps{}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	d.rdb = redis.NewClient(opt)

	d.pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("pg: %w", err)
	}
	if err := playlist.AutoMigrate(ctx, d.pool); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	d.playlists = playlist.NewStore(d.pool)

	hist := history.NewStore(d.rdb, cfg.HistoryLimit)
	d.hub = device.NewHub()
	d.player = device.NewPlayer(d.hub, d.rdb)
	d.backend = executor.Backend{
		Listening: hist,
		Recorder:  hist,
		Player:    d.player,
		Playlists: d.playlists,
	}

	switch cfg.Backend {
	case config.YouTube:
		yt := provider.NewCache(provider.NewYouTubeClient(cfg.YouTubeAPIKey, cfg.YouTubeSearchURL), d.rdb, cfg.CacheTTL)
		d.backend.Searcher = yt
		d.backend.Resolver = yt
	default:
		lib, err := catalog.LoadLibrary(cfg.LibraryPath)
		if err != nil {
			d.Close()
			return nil, err
		}
		log.Printf("music-action-service: loaded %d track(s) from %s", lib.Len(), cfg.LibraryPath)
		d.backend.Searcher = lib
		d.backend.Resolver = lib
	}
	return d, nil
}
