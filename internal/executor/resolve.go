package executor

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"music-action-service/internal/catalog"
	"music-action-service/internal/schema"
)

// resolve fetches metadata for ids, in chunks fetched concurrently, and
// returns the tracks in the order of ids. Duplicated ids yield duplicated
// tracks; an id the resolver does not know fails with ErrUnknownTrack.
func (e *Executor) resolve(ctx context.Context, ids schema.TrackList) ([]catalog.Track, error) {
	if len(ids) == 0 {
		return []catalog.Track{}, nil
	}
	if e.backend.Resolver == nil {
		return nil, unavailable("track metadata")
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	p := pool.NewWithResults[[]catalog.Track]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(metadataWorkers)
	for start := 0; start < len(unique); start += metadataChunk {
		chunk := unique[start:min(start+metadataChunk, len(unique))]
		p.Go(func(ctx context.Context) ([]catalog.Track, error) {
			return e.backend.Resolver.Tracks(ctx, chunk)
		})
	}
	chunks, err := p.Wait()
	if err != nil {
		return nil, fmt.Errorf("track metadata: %w", err)
	}

	byID := make(map[string]catalog.Track, len(unique))
	for _, c := range chunks {
		for _, t := range c {
			byID[t.ID] = t
		}
	}
	out := make([]catalog.Track, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTrack, id)
		}
		out = append(out, t)
	}
	return out, nil
}
