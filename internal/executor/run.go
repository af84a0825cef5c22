package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"music-action-service/internal/program"
	"music-action-service/internal/schema"
)

// StepError reports the step at which a run stopped.
type StepError struct {
	Index int
	Func  schema.Name
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Func, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

type StepReport struct {
	Index    int           `json:"index"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"durationNs"`
}

// Report describes a program run. Steps holds the steps that completed; on
// failure the run stops and the failing step is not included.
type Report struct {
	RunID     string       `json:"runId"`
	StartedAt time.Time    `json:"startedAt"`
	Steps     []StepReport `json:"steps"`
	Messages  []string     `json:"messages,omitempty"`
	// Result is the value of the last step, which is the finalResult
	// argument when the program ends with one.
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Run validates p as a whole and then executes its steps in order, feeding
// each step's track list to later references. Nothing runs when validation
// fails.
func (e *Executor) Run(ctx context.Context, p program.Program) (*Report, error) {
	if err := program.Validate(e.reg, p); err != nil {
		return nil, err
	}
	rep := &Report{
		RunID:     uuid.NewString(),
		StartedAt: e.now(),
		Steps:     make([]StepReport, 0, len(p.Steps)),
	}
	results := make([]any, len(p.Steps))
	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return rep, fail(rep, &StepError{Index: i, Func: step.Func, Err: err})
		}
		start := time.Now()
		args, err := program.SubstituteAll(step.Args, results)
		if err != nil {
			return rep, fail(rep, &StepError{Index: i, Func: step.Func, Err: err})
		}
		out, err := e.Execute(ctx, schema.Call{Name: step.Func, Args: args})
		if err != nil {
			return rep, fail(rep, &StepError{Index: i, Func: step.Func, Err: err})
		}
		results[i] = out.Value
		rep.Steps = append(rep.Steps, StepReport{Index: i, Outcome: out, Duration: time.Since(start)})
		if out.Message != "" {
			rep.Messages = append(rep.Messages, out.Message)
		}
		rep.Result = out.Value
	}
	return rep, nil
}

func fail(rep *Report, err *StepError) error {
	rep.Error = err.Error()
	return err
}
