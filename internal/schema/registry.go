package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"music-action-service/internal/filter"
)

var (
	// ErrUnknownAction indicates a call to a name outside the schema.
	ErrUnknownAction = errors.New("action is not part of the schema")
	// ErrInvalidArgs matches every *ValidationError.
	ErrInvalidArgs = errors.New("invalid action arguments")
)

// ValidationError lists every problem found in one call's arguments.
type ValidationError struct {
	Action Name
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgs }

// Problems returns one message per problem.
func (e *ValidationError) Problems() []string {
	errs := multierr.Errors(e.Err)
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

// ResultKind describes what an action returns.
type ResultKind string

const (
	ResultNone      ResultKind = "void"
	ResultTrackList ResultKind = "TrackList"
)

// Param documents one positional parameter, or one field of an options object.
type Param struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Optional bool    `json:"optional,omitempty"`
	Variadic bool    `json:"variadic,omitempty"`
	Default  any     `json:"default,omitempty"`
	Doc      string  `json:"doc,omitempty"`
	Fields   []Param `json:"fields,omitempty"`
}

// Decoder turns positional JSON arguments into validated Args.
type Decoder func(args []json.RawMessage) (Args, error)

// Definition registers one action.
type Definition struct {
	Name   Name       `json:"name"`
	Doc    string     `json:"doc"`
	Params []Param    `json:"params"`
	Result ResultKind `json:"result"`
	Decode Decoder    `json:"-"`
}

// Call is an action name with positional JSON arguments.
type Call struct {
	Name Name
	Args []json.RawMessage
}

// Registry stores action definitions and validates calls against them.
type Registry struct {
	defs  map[Name]Definition
	order []Name
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[Name]Definition)}
}

// Register adds def; names must be non-blank and unique.
func (r *Registry) Register(def Definition) error {
	def.Name = Name(strings.TrimSpace(string(def.Name)))
	if def.Name == "" {
		return errors.New("action name is required")
	}
	if def.Decode == nil {
		return fmt.Errorf("action %s has no decoder", def.Name)
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("action already registered: %s", def.Name)
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name Name) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Definitions returns all definitions in registration order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.defs[n])
	}
	return out
}

// Description is the machine-readable form of a registry handed to planners.
type Description struct {
	Actions      []Definition `json:"actions"`
	FilterFields []string     `json:"filterFields"`
	Combiners    []string     `json:"combiners"`
}

// Describe lists every registered action with the filter vocabulary.
func (r *Registry) Describe() Description {
	d := Description{
		Actions:   r.Definitions(),
		Combiners: []string{string(filter.And), string(filter.Or)},
	}
	for _, f := range filter.Fields() {
		d.FilterFields = append(d.FilterFields, string(f))
	}
	return d
}

// Decode validates call and returns its typed arguments. Invalid calls yield a
// *ValidationError; names outside the schema yield ErrUnknownAction.
func (r *Registry) Decode(call Call) (Args, error) {
	def, ok := r.defs[call.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, call.Name)
	}
	args, err := def.Decode(call.Args)
	if err != nil {
		return nil, &ValidationError{Action: def.Name, Err: err}
	}
	return args, nil
}

// Default returns a registry holding every action of the music player schema.
func Default() *Registry {
	r := NewRegistry()
	for _, def := range definitions() {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

var trackListParam = Param{Name: "trackList", Type: "TrackList", Doc: "track identifiers"}

func definitions() []Definition {
	return []Definition{
		{
			Name:   GetRecentlyPlayed,
			Doc:    "Get the tracks played most recently, or the listener's top tracks when favoritesTerm is given",
			Result: ResultTrackList,
			Params: []Param{{
				Name: "options", Type: "object", Optional: true,
				Fields: []Param{
					{Name: "favoritesTerm", Type: "'short_term' | 'medium_term' | 'long_term'", Optional: true, Doc: "4 weeks, 6 months or several years"},
					{Name: "count", Type: "number", Optional: true, Default: DefaultRecentCount},
				},
			}},
			Decode: decodeGetRecentlyPlayed,
		},
		{Name: Pause, Doc: "Pause playing", Result: ResultNone, Decode: decodeNoArgs(PauseArgs{})},
		{Name: Play, Doc: "Start playing", Result: ResultNone, Decode: decodeNoArgs(PlayArgs{})},
		{
			Name:   SetVolume,
			Doc:    "Set volume; give exactly one of newVolumeLevel or volumeChangeAmount",
			Result: ResultNone,
			Params: []Param{{
				Name: "args", Type: "object",
				Fields: []Param{
					{Name: "newVolumeLevel", Type: "number", Optional: true, Doc: "0 is silent, 100 is the loudest"},
					{Name: "volumeChangeAmount", Type: "number", Optional: true, Doc: "positive or negative; -5 makes the volume 5% more quiet"},
				},
			}},
			Decode: decodeSetVolume,
		},
		{
			Name:   SearchTracks,
			Doc:    "Search tracks; the query is keywords separated by spaces and all keywords must match",
			Result: ResultTrackList,
			Params: []Param{{Name: "query", Type: "string"}},
			Decode: decodeSearchTracks,
		},
		{
			Name:   PlayTracks,
			Doc:    "Play some or all items from the input list",
			Result: ResultNone,
			Params: []Param{
				trackListParam,
				{
					Name: "options", Type: "object", Optional: true,
					Fields: []Param{
						{Name: "count", Type: "number", Optional: true, Default: DefaultPlayCount},
						{Name: "offset", Type: "number", Optional: true, Default: 0, Doc: "index of first track to play"},
					},
				},
			},
			Decode: decodePlayTracks,
		},
		{
			Name:   FilterTracks,
			Doc:    "Keep the tracks that match the filter",
			Result: ResultTrackList,
			Params: []Param{{
				Name: "args", Type: "object",
				Fields: []Param{
					trackListParam,
					{Name: "filter", Type: "string", Doc: "constraints artist:, genre:, year:, description: joined by AND (default) or OR"},
					{Name: "negate", Type: "boolean", Optional: true, Default: false, Doc: "keep the tracks that do not match"},
				},
			}},
			Decode: decodeFilterTracks,
		},
		{
			Name:   SortTracks,
			Doc:    "Sort tracks; default is by track name ascending",
			Result: ResultTrackList,
			Params: []Param{{
				Name: "args", Type: "object",
				Fields: []Param{
					trackListParam,
					{Name: "description", Type: "string", Optional: true, Default: DefaultSortKey, Doc: "sort criteria"},
					{Name: "descending", Type: "boolean", Optional: true, Default: false},
				},
			}},
			Decode: decodeSortTracks,
		},
		{
			Name:   CreatePlaylist,
			Doc:    "Create a playlist from a list of tracks",
			Result: ResultNone,
			Params: []Param{trackListParam, {Name: "name", Type: "string"}},
			Decode: decodeCreatePlaylist,
		},
		{
			Name:   MergeTrackLists,
			Doc:    "Concatenate track lists in order, keeping duplicates",
			Result: ResultTrackList,
			Params: []Param{{Name: "lists", Type: "TrackList", Variadic: true}},
			Decode: decodeMergeTrackLists,
		},
		{
			Name:   UnknownAction,
			Doc:    "Call this for requests that were not understood",
			Result: ResultNone,
			Params: []Param{{Name: "text", Type: "string"}},
			Decode: decodeText(func(s string) Args { return UnknownActionArgs{Text: s} }),
		},
		{
			Name:   NonMusicQuestion,
			Doc:    "Call this when the user asks a non-music question",
			Result: ResultNone,
			Params: []Param{{Name: "text", Type: "string"}},
			Decode: decodeText(func(s string) Args { return NonMusicQuestionArgs{Text: s} }),
		},
		{
			Name:   FinalResult,
			Doc:    "Call this with the final result of the user request, if any",
			Result: ResultNone,
			Params: []Param{{Name: "result", Type: "any"}},
			Decode: decodeFinalResult,
		},
	}
}
