package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"music-action-service/internal/textfold"
)

// Library is an in-memory catalog, usually loaded from a TOML file:
//
//	[[tracks]]
//	id = "t1"
//	name = "Dancing Queen"
//	artists = ["ABBA"]
//	genres = ["pop", "disco"]
//	year = 1976
type Library struct {
	tracks []Track
	byID   map[string]int
	// folded search text per track, parallel to tracks
	text []string
}

type libraryFile struct {
	Tracks []Track `toml:"tracks"`
}

// NewLibrary indexes tracks. Ids must be non-empty and unique.
func NewLibrary(tracks []Track) (*Library, error) {
	l := &Library{
		tracks: make([]Track, 0, len(tracks)),
		byID:   make(map[string]int, len(tracks)),
		text:   make([]string, 0, len(tracks)),
	}
	for i, t := range tracks {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return nil, fmt.Errorf("track %d: id is required", i)
		}
		if _, dup := l.byID[t.ID]; dup {
			return nil, fmt.Errorf("track %d: duplicate id %q", i, t.ID)
		}
		l.byID[t.ID] = len(l.tracks)
		l.tracks = append(l.tracks, t)
		fields := append([]string{t.Name, t.Album}, t.Artists...)
		l.text = append(l.text, strings.Join(fields, " "))
	}
	return l, nil
}

func ParseLibrary(r io.Reader) (*Library, error) {
	var f libraryFile
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode library: %w", err)
	}
	return NewLibrary(f.Tracks)
}

func LoadLibrary(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseLibrary(f)
}

// Encode writes the library back out in its TOML form.
func (l *Library) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(libraryFile{Tracks: l.tracks})
}

func (l *Library) Len() int { return len(l.tracks) }

// SearchTracks returns tracks whose name, album or artists contain every
// keyword of query, in library order.
func (l *Library) SearchTracks(_ context.Context, query string, limit int) ([]Track, error) {
	words := textfold.Words(query)
	if len(words) == 0 {
		return nil, nil
	}
	var out []Track
	for i, t := range l.tracks {
		if limit > 0 && len(out) >= limit {
			break
		}
		if textfold.ContainsAll(l.text[i], words) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (l *Library) Tracks(_ context.Context, ids []string) ([]Track, error) {
	out := make([]Track, 0, len(ids))
	for _, id := range ids {
		if i, ok := l.byID[id]; ok {
			out = append(out, l.tracks[i])
		}
	}
	return out, nil
}
