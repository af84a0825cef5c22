// Package filter implements the track filter mini-language used by the
// filterTracks action:
//
//	filter     := clause (combiner? clause)*
//	combiner   := "AND" | "OR"
//	clause     := field ":" value
//	field      := "artist" | "genre" | "year" | "description"
//
// Adjacent clauses without a combiner are joined with AND. AND binds tighter
// than OR, so an expression is a disjunction of AND-groups. A value is either a
// double-quoted string or a run of words that ends at the next "field:" word or
// combiner.
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Field names a track attribute a constraint tests.
type Field string

const (
	FieldArtist      Field = "artist"
	FieldGenre       Field = "genre"
	FieldYear        Field = "year"
	FieldDescription Field = "description"
)

// Fields lists the supported fields in grammar order.
func Fields() []Field {
	return []Field{FieldArtist, FieldGenre, FieldYear, FieldDescription}
}

func lookupField(name string) (Field, bool) {
	for _, f := range Fields() {
		if strings.EqualFold(name, string(f)) {
			return f, true
		}
	}
	return "", false
}

// Combiner joins a clause to the one before it.
type Combiner string

const (
	And Combiner = "AND"
	Or  Combiner = "OR"
)

// YearRange is an inclusive range of release years.
type YearRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether year falls inside the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.From && year <= r.To
}

// Constraint is a single field:value test.
type Constraint struct {
	Field Field  `json:"field"`
	Value string `json:"value"`
	// Years is set only for year constraints.
	Years *YearRange `json:"years,omitempty"`
}

// Clause is a constraint together with the combiner that links it to the
// previous clause. The first clause of an expression always carries And.
type Clause struct {
	Combiner   Combiner   `json:"combiner"`
	Constraint Constraint `json:"constraint"`
}

// Expr is a parsed filter expression.
type Expr struct {
	Clauses []Clause `json:"clauses"`
}

// Groups splits the expression at OR combiners. The expression matches when
// every constraint of at least one group matches.
func (e Expr) Groups() [][]Constraint {
	var groups [][]Constraint
	var cur []Constraint
	for i, c := range e.Clauses {
		if i > 0 && c.Combiner == Or {
			groups = append(groups, cur)
			cur = nil
		}
		cur = append(cur, c.Constraint)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// String renders the canonical form of the expression: AND is implicit, OR is
// spelled out, and values that would not survive re-parsing are quoted.
func (e Expr) String() string {
	var b strings.Builder
	for i, c := range e.Clauses {
		if i > 0 {
			if c.Combiner == Or {
				b.WriteString(" OR ")
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(c.Constraint.String())
	}
	return b.String()
}

func (c Constraint) String() string {
	return string(c.Field) + ":" + quoteValue(c.Value)
}

func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\r\n\":\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

func parseYears(v string) (*YearRange, error) {
	s := strings.Join(strings.Fields(v), "")
	if strings.HasSuffix(s, "s") {
		decade, err := parseYear(strings.TrimSuffix(s, "s"))
		if err != nil || decade%10 != 0 {
			return nil, fmt.Errorf("invalid decade %q", v)
		}
		return &YearRange{From: decade, To: decade + 9}, nil
	}
	sep := "-"
	if strings.Contains(s, "..") {
		sep = ".."
	}
	if from, to, ok := strings.Cut(s, sep); ok {
		lo, err := parseYear(from)
		if err != nil {
			return nil, err
		}
		hi, err := parseYear(to)
		if err != nil {
			return nil, err
		}
		if hi < lo {
			return nil, fmt.Errorf("year range %q ends before it starts", v)
		}
		return &YearRange{From: lo, To: hi}, nil
	}
	y, err := parseYear(s)
	if err != nil {
		return nil, err
	}
	return &YearRange{From: y, To: y}, nil
}

func parseYear(s string) (int, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	y, err := strconv.Atoi(s)
	if err != nil || y <= 0 {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return y, nil
}
