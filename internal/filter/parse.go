package filter

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrEmpty is returned for a filter with no clauses.
var ErrEmpty = errors.New("filter is empty")

// SyntaxError reports where a filter string stopped making sense.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("filter: %s at offset %d", e.Msg, e.Pos)
}

type parser struct {
	src string
	pos int
}

// Parse parses a filter string.
func Parse(s string) (Expr, error) {
	p := &parser{src: s}
	var expr Expr
	pending := Combiner("")
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		start := p.pos
		if c, ok := p.combiner(); ok {
			if len(expr.Clauses) == 0 {
				return Expr{}, &SyntaxError{Pos: start, Msg: "combiner " + string(c) + " without a preceding constraint"}
			}
			if pending != "" {
				return Expr{}, &SyntaxError{Pos: start, Msg: "combiner " + string(c) + " follows " + string(pending)}
			}
			pending = c
			continue
		}
		con, err := p.constraint()
		if err != nil {
			return Expr{}, err
		}
		if pending == "" || len(expr.Clauses) == 0 {
			pending = And
		}
		expr.Clauses = append(expr.Clauses, Clause{Combiner: pending, Constraint: con})
		pending = ""
	}
	if pending != "" {
		return Expr{}, &SyntaxError{Pos: p.pos, Msg: "dangling combiner " + string(pending)}
	}
	if len(expr.Clauses) == 0 {
		return Expr{}, ErrEmpty
	}
	return expr, nil
}

// MustParse is Parse for filters known at compile time.
func MustParse(s string) Expr {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// peekWord returns the whitespace-delimited word starting at the cursor.
func (p *parser) peekWord() string {
	end := p.pos
	for end < len(p.src) && !isSpace(p.src[end]) {
		end++
	}
	return p.src[p.pos:end]
}

func (p *parser) combiner() (Combiner, bool) {
	switch w := p.peekWord(); w {
	case string(And), string(Or):
		p.pos += len(w)
		return Combiner(w), true
	}
	return "", false
}

// startsConstraint reports whether word opens a new clause.
func startsConstraint(word string) bool {
	name, _, ok := strings.Cut(word, ":")
	if !ok {
		return false
	}
	_, known := lookupField(name)
	return known
}

func (p *parser) constraint() (Constraint, error) {
	start := p.pos
	for !p.eof() && unicode.IsLetter(rune(p.src[p.pos])) {
		p.pos++
	}
	name := p.src[start:p.pos]
	if p.eof() || p.src[p.pos] != ':' {
		return Constraint{}, &SyntaxError{Pos: start, Msg: fmt.Sprintf("expected field:value, found %q", firstWord(p.src[start:]))}
	}
	field, ok := lookupField(name)
	if !ok {
		return Constraint{}, &SyntaxError{Pos: start, Msg: fmt.Sprintf("unknown field %q", name)}
	}
	p.pos++ // ':'
	p.skipSpace()

	value, err := p.value()
	if err != nil {
		return Constraint{}, err
	}
	if value == "" {
		return Constraint{}, &SyntaxError{Pos: p.pos, Msg: "empty value for " + string(field)}
	}
	con := Constraint{Field: field, Value: value}
	if field == FieldYear {
		years, err := parseYears(value)
		if err != nil {
			return Constraint{}, &SyntaxError{Pos: start, Msg: err.Error()}
		}
		con.Years = years
	}
	return con, nil
}

func (p *parser) value() (string, error) {
	if !p.eof() && p.src[p.pos] == '"' {
		return p.quoted()
	}
	var words []string
	for !p.eof() {
		w := p.peekWord()
		if startsConstraint(w) {
			// "artist: genre:pop" leaves artist without a value.
			break
		}
		words = append(words, w)
		p.pos += len(w)
		save := p.pos
		p.skipSpace()
		if p.eof() {
			break
		}
		if next := p.peekWord(); next == string(And) || next == string(Or) || startsConstraint(next) {
			p.pos = save
			break
		}
	}
	return strings.Join(words, " "), nil
}

func (p *parser) quoted() (string, error) {
	start := p.pos
	p.pos++ // opening quote
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case c == '"':
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", &SyntaxError{Pos: start, Msg: "unterminated quoted value"}
}

func firstWord(s string) string {
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i]
	}
	return s
}
