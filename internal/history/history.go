// Package history keeps per-listener play events in Redis and derives the
// recently played and top tracks lists from them.
package history

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"music-action-service/internal/catalog"
	"music-action-service/internal/schema"
)

const DefaultLimit = 1000

// Store records plays in a sorted set per listener. Members are
// "<unix nanos>:<call id>:<track id>" so repeated plays stay distinct, even
// across calls recorded at the same instant; the score is the play time in
// milliseconds.
type Store struct {
	rdb   *redis.Client
	limit int
	now   func() time.Time
}

func NewStore(rdb *redis.Client, limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{rdb: rdb, limit: limit, now: time.Now}
}

func key(listener string) string { return "history:" + listener }

// RecordPlays stores one event per id, in play order, and trims the set to
// the newest events.
func (s *Store) RecordPlays(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	k := key(catalog.ListenerFrom(ctx))
	call := uuid.NewString()
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			ts := at.Add(time.Duration(i))
			pipe.ZAdd(ctx, k, redis.Z{
				Score:  float64(ts.UnixMilli()),
				Member: strconv.FormatInt(ts.UnixNano(), 10) + ":" + call + ":" + id,
			})
		}
		pipe.ZRemRangeByRank(ctx, k, 0, int64(-s.limit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("record plays: %w", err)
	}
	return nil
}

// RecentlyPlayed returns up to n distinct tracks, most recent first.
func (s *Store) RecentlyPlayed(ctx context.Context, n int) (schema.TrackList, error) {
	members, err := s.rdb.ZRevRange(ctx, key(catalog.ListenerFrom(ctx)), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("recently played: %w", err)
	}
	seen := make(map[string]struct{}, len(members))
	out := schema.TrackList{}
	for _, m := range members {
		_, id, ok := parseMember(m)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

type tally struct {
	id    string
	plays int
	last  int64
}

// TopTracks ranks the tracks played inside the term's window by play count,
// breaking ties by the most recent play.
func (s *Store) TopTracks(ctx context.Context, term schema.FavoritesTerm, n int) (schema.TrackList, error) {
	since := s.now().Add(-term.Window()).UnixMilli()
	members, err := s.rdb.ZRangeByScore(ctx, key(catalog.ListenerFrom(ctx)), &redis.ZRangeBy{
		Min: strconv.FormatInt(since, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("top tracks: %w", err)
	}

	byID := make(map[string]*tally)
	var tallies []*tally
	for _, m := range members {
		nanos, id, ok := parseMember(m)
		if !ok {
			continue
		}
		t, exists := byID[id]
		if !exists {
			t = &tally{id: id}
			byID[id] = t
			tallies = append(tallies, t)
		}
		t.plays++
		t.last = max(t.last, nanos)
	}
	slices.SortFunc(tallies, func(a, b *tally) int {
		if c := cmp.Compare(b.plays, a.plays); c != 0 {
			return c
		}
		return cmp.Compare(b.last, a.last)
	})

	out := schema.TrackList{}
	for _, t := range tallies {
		if len(out) == n {
			break
		}
		out = append(out, t.id)
	}
	return out, nil
}

func parseMember(m string) (int64, string, bool) {
	ts, rest, ok := strings.Cut(m, ":")
	if !ok {
		return 0, "", false
	}
	_, id, ok := strings.Cut(rest, ":")
	if !ok || id == "" {
		return 0, "", false
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return nanos, id, true
}
