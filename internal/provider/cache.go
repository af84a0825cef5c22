// Package provider adapts external music catalogs (YouTube) to the catalog
// interfaces and caches their answers in Redis.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"music-action-service/internal/catalog"
	"music-action-service/internal/textfold"
)

const DefaultTTL = 10 * time.Minute

// Source is a catalog that can both search and resolve ids.
type Source interface {
	catalog.Searcher
	catalog.Resolver
}

// Cache fronts a Source with Redis. Search results are stored under
// search:<folded query>:<limit>, track metadata under track:<id>. Redis
// failures are logged and the Source is asked directly.
type Cache struct {
	src Source
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(src Source, rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{src: src, rdb: rdb, ttl: ttl}
}

func searchKey(query string, limit int) string {
	return "search:" + textfold.Fold(query) + ":" + strconv.Itoa(limit)
}

func trackKey(id string) string { return "track:" + id }

func (c *Cache) SearchTracks(ctx context.Context, query string, limit int) ([]catalog.Track, error) {
	key := searchKey(query, limit)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var tracks []catalog.Track
		if err := json.Unmarshal(raw, &tracks); err == nil {
			return tracks, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("music-action-service: cache get %s: %v", key, err)
	}

	tracks, err := c.src.SearchTracks(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, tracks)
	return tracks, nil
}

// Tracks answers from cached metadata and asks the Source only for the ids
// that were not cached.
func (c *Cache) Tracks(ctx context.Context, ids []string) ([]catalog.Track, error) {
	if len(ids) == 0 {
		return []catalog.Track{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = trackKey(id)
	}

	found := make(map[string]catalog.Track, len(ids))
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		log.Printf("music-action-service: cache mget: %v", err)
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var t catalog.Track
		if err := json.Unmarshal([]byte(s), &t); err == nil {
			found[t.ID] = t
		}
	}

	var missing []string
	asked := make(map[string]bool)
	for _, id := range ids {
		if _, ok := found[id]; !ok && !asked[id] {
			asked[id] = true
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		fetched, err := c.src.Tracks(ctx, missing)
		if err != nil {
			return nil, err
		}
		c.store(ctx, "", fetched)
		for _, t := range fetched {
			found[t.ID] = t
		}
	}

	out := make([]catalog.Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := found[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// store caches each track and, when listKey is set, the whole result list.
func (c *Cache) store(ctx context.Context, listKey string, tracks []catalog.Track) {
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range tracks {
			b, err := json.Marshal(t)
			if err != nil {
				return err
			}
			pipe.Set(ctx, trackKey(t.ID), b, c.ttl)
		}
		if listKey != "" {
			b, err := json.Marshal(tracks)
			if err != nil {
				return err
			}
			pipe.Set(ctx, listKey, b, c.ttl)
		}
		return nil
	})
	if err != nil {
		log.Printf("music-action-service: cache store %d track(s): %v", len(tracks), err)
	}
}
