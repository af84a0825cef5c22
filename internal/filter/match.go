package filter

import (
	"strings"

	"music-action-service/internal/textfold"
)

// Attributes are the track properties a filter can see.
type Attributes struct {
	Name    string
	Artists []string
	Album   string
	Genres  []string
	Year    int
}

// Subject is anything that exposes filterable attributes.
type Subject interface {
	FilterAttributes() Attributes
}

// Describer decides whether a free-text description constraint holds for a
// track. It is the seam where smarter interpretation (tags, embeddings, a
// language model) plugs in.
type Describer interface {
	Describes(description string, a Attributes) bool
}

// KeywordDescriber matches a description when every one of its words occurs
// somewhere in the track's name, artists, album or genres.
type KeywordDescriber struct{}

func (KeywordDescriber) Describes(description string, a Attributes) bool {
	words := textfold.Words(description)
	if len(words) == 0 {
		return false
	}
	text := strings.Join(append(append([]string{a.Name, a.Album}, a.Artists...), a.Genres...), " ")
	return textfold.ContainsAll(text, words)
}

// Matcher evaluates expressions against attributes.
type Matcher struct {
	Describer Describer
}

// NewMatcher returns a matcher using d, or KeywordDescriber when d is nil.
func NewMatcher(d Describer) Matcher {
	if d == nil {
		d = KeywordDescriber{}
	}
	return Matcher{Describer: d}
}

// Match reports whether a satisfies e.
func (m Matcher) Match(e Expr, a Attributes) bool {
	for _, group := range e.Groups() {
		ok := true
		for _, c := range group {
			if !m.matchConstraint(c, a) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (m Matcher) matchConstraint(c Constraint, a Attributes) bool {
	switch c.Field {
	case FieldArtist:
		return anyContains(a.Artists, c.Value)
	case FieldGenre:
		return anyContains(a.Genres, c.Value)
	case FieldYear:
		return c.Years != nil && a.Year != 0 && c.Years.Contains(a.Year)
	case FieldDescription:
		return m.Describer != nil && m.Describer.Describes(c.Value, a)
	}
	return false
}

func anyContains(values []string, want string) bool {
	w := textfold.Fold(want)
	if w == "" {
		return false
	}
	for _, v := range values {
		if strings.Contains(textfold.Fold(v), w) {
			return true
		}
	}
	return false
}

// Apply keeps the items that match e, or those that do not when negate is
// set. Input order is preserved.
func Apply[T Subject](m Matcher, items []T, e Expr, negate bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if m.Match(e, it.FilterAttributes()) != negate {
			out = append(out, it)
		}
	}
	return out
}
