// Package program models planner output: an ordered list of action calls
// whose arguments may refer to the results of earlier steps.
//
//	{"@steps": [
//	  {"@func": "searchTracks", "@args": ["drake"]},
//	  {"@func": "playTracks", "@args": [{"@ref": 0}]}
//	]}
package program

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"music-action-service/internal/schema"
)

type Program struct {
	Steps []Step `json:"@steps"`
}

type Step struct {
	Func schema.Name       `json:"@func"`
	Args []json.RawMessage `json:"@args,omitempty"`
}

// Call converts the step into a schema call without touching its arguments.
func (s Step) Call() schema.Call {
	return schema.Call{Name: s.Func, Args: s.Args}
}

// ErrInvalidProgram matches every *ValidationError.
var ErrInvalidProgram = errors.New("invalid program")

// ValidationError collects the problems found by Validate.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid program: " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidProgram }

func (e *ValidationError) Problems() []string {
	errs := multierr.Errors(e.Err)
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

// Parse decodes a program, rejecting unknown keys.
func Parse(r io.Reader) (Program, error) {
	var p Program
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Program{}, fmt.Errorf("decode program: %w", err)
	}
	return p, nil
}

// Validate checks the program against reg without running anything: every
// step names a known action, every reference points back to an earlier step
// that yields a track list, finalResult is only used last, and each step's
// arguments decode once references are replaced by track lists.
func Validate(reg *schema.Registry, p Program) error {
	var errs error
	add := func(i int, s Step, format string, a ...any) {
		errs = multierr.Append(errs, fmt.Errorf("step %d (%s): %s", i, s.Func, fmt.Sprintf(format, a...)))
	}
	if len(p.Steps) == 0 {
		return &ValidationError{Err: errors.New("program has no steps")}
	}

	placeholders := make([]any, len(p.Steps))
	for i, s := range p.Steps {
		def, ok := reg.Lookup(s.Func)
		if !ok {
			add(i, s, "unknown action")
			continue
		}
		if s.Func == schema.FinalResult && i != len(p.Steps)-1 {
			add(i, s, "finalResult must be the last step")
		}

		refsOK := true
		for _, raw := range s.Args {
			refs, err := Refs(raw)
			if err != nil {
				add(i, s, "%v", err)
				refsOK = false
				continue
			}
			for _, ref := range refs {
				if ref < 0 || ref >= i {
					add(i, s, "reference to step %d, which does not run before it", ref)
					refsOK = false
					continue
				}
				target, known := reg.Lookup(p.Steps[ref].Func)
				if !known {
					refsOK = false
					continue
				}
				if target.Result != schema.ResultTrackList {
					add(i, s, "reference to step %d, whose %s returns no track list", ref, p.Steps[ref].Func)
					refsOK = false
				}
			}
		}
		if def.Result == schema.ResultTrackList {
			placeholders[i] = schema.TrackList{}
		}
		if !refsOK {
			continue
		}

		args, err := SubstituteAll(s.Args, placeholders)
		if err != nil {
			add(i, s, "%v", err)
			continue
		}
		if _, err := reg.Decode(schema.Call{Name: s.Func, Args: args}); err != nil {
			var ve *schema.ValidationError
			if errors.As(err, &ve) {
				for _, problem := range ve.Problems() {
					add(i, s, "%s", problem)
				}
				continue
			}
			add(i, s, "%v", err)
		}
	}
	if errs != nil {
		return &ValidationError{Err: errs}
	}
	return nil
}

// Refs lists every step index referenced inside raw, in document order.
func Refs(raw json.RawMessage) ([]int, error) {
	v, err := decode(raw)
	if err != nil {
		return nil, err
	}
	var out []int
	var walkErr error
	walk(v, func(n int) any {
		out = append(out, n)
		return nil
	}, &walkErr)
	return out, walkErr
}

// Substitute replaces every {"@ref": n} node in raw with results[n].
func Substitute(raw json.RawMessage, results []any) (json.RawMessage, error) {
	v, err := decode(raw)
	if err != nil {
		return nil, err
	}
	var walkErr error
	v = walk(v, func(n int) any {
		if n < 0 || n >= len(results) {
			walkErr = fmt.Errorf("reference to step %d out of range", n)
			return nil
		}
		return results[n]
	}, &walkErr)
	if walkErr != nil {
		return nil, walkErr
	}
	return json.Marshal(v)
}

// SubstituteAll applies Substitute to each argument.
func SubstituteAll(args []json.RawMessage, results []any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(args))
	for i, raw := range args {
		s, err := Substitute(raw, results)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func decode(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("malformed argument: %w", err)
	}
	return v, nil
}

// walk rebuilds v with every reference node replaced by resolve(n).
func walk(v any, resolve func(int) any, errp *error) any {
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := t["@ref"]; ok && len(t) == 1 {
			n, err := refIndex(ref)
			if err != nil {
				if *errp == nil {
					*errp = err
				}
				return v
			}
			return resolve(n)
		}
		for k, child := range t {
			t[k] = walk(child, resolve, errp)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = walk(child, resolve, errp)
		}
		return t
	}
	return v
}

func refIndex(v any) (int, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("@ref must be a step index, got %v", v)
	}
	n, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("@ref must be a step index, got %s", num)
	}
	return int(n), nil
}
