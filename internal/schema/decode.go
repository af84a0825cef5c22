package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"music-action-service/internal/filter"
)

// argReader walks the positional arguments of one call and collects problems
// instead of stopping at the first one.
type argReader struct {
	args []json.RawMessage
	errs error
}

func (r *argReader) problem(format string, a ...any) {
	r.errs = multierr.Append(r.errs, fmt.Errorf(format, a...))
}

// arity rejects more than max arguments; max < 0 means unbounded.
func (r *argReader) arity(max int) {
	if max >= 0 && len(r.args) > max {
		r.problem("expects at most %d argument(s), got %d", max, len(r.args))
	}
}

// present reports whether position i holds a non-null value.
func (r *argReader) present(i int) bool {
	return i < len(r.args) && !isNull(r.args[i])
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// object decodes position i into dst, rejecting unknown fields.
func (r *argReader) object(i int, param string, dst any, required bool) {
	if !r.present(i) {
		if required {
			r.problem("%s is required", param)
		}
		return
	}
	dec := json.NewDecoder(bytes.NewReader(r.args[i]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		r.problem("%s: %v", param, err)
	}
}

func (r *argReader) str(i int, param string) string {
	if !r.present(i) {
		r.problem("%s is required", param)
		return ""
	}
	var s string
	if err := json.Unmarshal(r.args[i], &s); err != nil {
		r.problem("%s must be a string", param)
		return ""
	}
	if strings.TrimSpace(s) == "" {
		r.problem("%s must not be blank", param)
	}
	return s
}

func (r *argReader) trackList(i int, param string) TrackList {
	if !r.present(i) {
		r.problem("%s is required", param)
		return nil
	}
	var tl TrackList
	if err := json.Unmarshal(r.args[i], &tl); err != nil {
		r.problem("%s must be an array of track ids", param)
		return nil
	}
	checkTrackIDs(r, param, tl)
	return tl
}

func checkTrackIDs(r *argReader, param string, tl TrackList) {
	for i, id := range tl {
		if strings.TrimSpace(id) == "" {
			r.problem("%s[%d] is blank", param, i)
		}
	}
}

func (r *argReader) done(args Args) (Args, error) {
	if r.errs != nil {
		return nil, r.errs
	}
	return args, nil
}

func decodeNoArgs(a Args) Decoder {
	return func(raw []json.RawMessage) (Args, error) {
		r := &argReader{args: raw}
		r.arity(0)
		return r.done(a)
	}
}

func decodeGetRecentlyPlayed(raw []json.RawMessage) (Args, error) {
	r := &argReader{args: raw}
	r.arity(1)
	var a GetRecentlyPlayedArgs
	r.object(0, "options", &a, false)
	if a.FavoritesTerm != "" && !a.FavoritesTerm.Valid() {
		r.problem("favoritesTerm must be one of %s, %s, %s", ShortTerm, MediumTerm, LongTerm)
	}
	if a.Count != nil && *a.Count < 1 {
		r.problem("count must be at least 1")
	}
	return r.done(a)
}

func decodeSetVolume(raw []json.RawMessage) (Args, error) {
	r := &argReader{args: raw}
	r.arity(1)
	var a SetVolumeArgs
	r.object(0, "args", &a, true)
	switch {
	case a.NewVolumeLevel != nil && a.VolumeChangeAmount != nil:
		r.problem("give either newVolumeLevel or volumeChangeAmount, not both")
	case a.NewVolumeLevel == nil && a.VolumeChangeAmount == nil && r.present(0):
		r.problem("one of newVolumeLevel or volumeChangeAmount is required")
	case a.NewVolumeLevel != nil && (*a.NewVolumeLevel < 0 || *a.NewVolumeLevel > MaxVolume):
		r.problem("newVolumeLevel must be between 0 and %d", MaxVolume)
	}
	return r.done(a)
}

func decodeSearchTracks(raw []json.RawMessage) (Args, error) {
	r := &argReader{args: raw}
	r.arity(1)
	q := r.str(0, "query")
	return r.done(SearchTracksArgs{Query: q})
}

func decodePlayTracks(raw []json.RawMessage) (Args, error) {
	r := &argReader{args: raw}
	r.arity(2)
	a := PlayTracksArgs{TrackList: r.trackList(0, "trackList")}
	var opts struct {
		Count  *int `json:"count"`
		Offset *int `json:"offset"`
	}
	r.object(1, "options", &opts, false)
	if opts.Count != nil && *opts.Count < 1 {
		r.problem("count must be at least 1")
	}
	if opts.Offset != nil && *opts.Offset < 0 {
		r.problem("offset must not be negative")
	}
	a.Count, a.Offset = opts.Count, opts.Offset
	return r.done(a)
}

func decodeFilterTracks(raw []json.RawMessage) (Args, error) {
	r := &argReader{args: raw}
	r.arity(1)
	var a FilterTracksArgs
	r.object(0, "args", &a, true)
	if r.present(0) {
		if a.TrackList == nil {
			r.problem("trackList is required")
		}
		checkTrackIDs(r, "trackList", a.TrackList)
		if strings.TrimSpace(a.Filter) == "" {
			r.problem("filter is required")
		} else if _, err := filter.Parse(a.Filter); err != nil {
			r.problem("filter: %v", err)
		}
	}
	return r.done(a)
}

func decodeSortTracks(raw []json.RawMessage) (Args, error) {
	r := &argReader{args: raw}
	r.arity(1)
	var a SortTracksArgs
	r.object(0, "args", &a, true)
	if r.present(0) {
		if a.TrackList == nil {
			r.problem("trackList is required")
		}
		checkTrackIDs(r, "trackList", a.TrackList)
	}
	return r.done(a)
}

func decodeCreatePlaylist(raw []json.RawMessage) (Args, error) {
	r := &argReader{args: raw}
	r.arity(2)
	a := CreatePlaylistArgs{
		TrackList: r.trackList(0, "trackList"),
		Name:      r.str(1, "name"),
	}
	return r.done(a)
}

func decodeMergeTrackLists(raw []json.RawMessage) (Args, error) {
	r := &argReader{args: raw}
	r.arity(-1)
	if len(raw) == 0 {
		r.problem("at least one track list is required")
	}
	a := MergeTrackListsArgs{Lists: make([]TrackList, 0, len(raw))}
	for i := range raw {
		a.Lists = append(a.Lists, r.trackList(i, fmt.Sprintf("lists[%d]", i)))
	}
	return r.done(a)
}

func decodeText(build func(string) Args) Decoder {
	return func(raw []json.RawMessage) (Args, error) {
		r := &argReader{args: raw}
		r.arity(1)
		text := r.str(0, "text")
		return r.done(build(text))
	}
}

func decodeFinalResult(raw []json.RawMessage) (Args, error) {
	r := &argReader{args: raw}
	if len(raw) != 1 {
		r.problem("expects exactly 1 argument, got %d", len(raw))
		return r.done(nil)
	}
	var v any
	if err := json.Unmarshal(raw[0], &v); err != nil {
		r.problem("result: %v", err)
	}
	return r.done(FinalResultArgs{Result: v})
}
