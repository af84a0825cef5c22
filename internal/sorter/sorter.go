// Package sorter turns a free-text sort description into a sort key and
// orders tracks by it.
package sorter

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"music-action-service/internal/catalog"
	"music-action-service/internal/textfold"
)

type Key string

const (
	ByName       Key = "name"
	ByArtist     Key = "artist"
	ByAlbum      Key = "album"
	ByYear       Key = "year"
	ByPopularity Key = "popularity"
	ByDuration   Key = "duration"
)

var synonyms = map[string]Key{
	"name":         ByName,
	"title":        ByName,
	"track":        ByName,
	"song":         ByName,
	"alphabetic":   ByName,
	"alphabetical": ByName,
	"artist":       ByArtist,
	"artists":      ByArtist,
	"band":         ByArtist,
	"singer":       ByArtist,
	"album":        ByAlbum,
	"record":       ByAlbum,
	"year":         ByYear,
	"release":      ByYear,
	"released":     ByYear,
	"date":         ByYear,
	"newest":       ByYear,
	"oldest":       ByYear,
	"recent":       ByYear,
	"age":          ByYear,
	"popularity":   ByPopularity,
	"popular":      ByPopularity,
	"hits":         ByPopularity,
	"duration":     ByDuration,
	"length":       ByDuration,
	"long":         ByDuration,
	"longest":      ByDuration,
	"short":        ByDuration,
	"shortest":     ByDuration,
	"time":         ByDuration,
}

// Resolve maps a description such as "release date" or "most popular" to a
// key. Words naming a specific attribute win over generic ones like "song",
// so "song length" sorts by duration. ok is false when nothing matched and
// the name key is returned.
func Resolve(description string) (Key, bool) {
	found := false
	for _, w := range textfold.Words(description) {
		k, ok := synonyms[strings.TrimSuffix(w, "'s")]
		if !ok {
			continue
		}
		if k != ByName {
			return k, true
		}
		found = true
	}
	return ByName, found
}

// Sort returns a stably sorted copy of tracks. Text keys use a case- and
// accent-insensitive collation; ties keep their input order.
func Sort(tracks []catalog.Track, key Key, descending bool) []catalog.Track {
	out := slices.Clone(tracks)
	col := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
	compare := func(a, b catalog.Track) int {
		switch key {
		case ByArtist:
			return col.CompareString(first(a.Artists), first(b.Artists))
		case ByAlbum:
			return col.CompareString(a.Album, b.Album)
		case ByYear:
			return cmp.Compare(a.Year, b.Year)
		case ByPopularity:
			return cmp.Compare(a.Popularity, b.Popularity)
		case ByDuration:
			return cmp.Compare(a.DurationMs, b.DurationMs)
		default:
			return col.CompareString(a.Name, b.Name)
		}
	}
	slices.SortStableFunc(out, func(a, b catalog.Track) int {
		if descending {
			return compare(b, a)
		}
		return compare(a, b)
	})
	return out
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
