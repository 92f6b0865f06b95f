package chain

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jgrana2/prompt-manager/internal/llm"
	"github.com/jgrana2/prompt-manager/internal/observability"
	"github.com/jgrana2/prompt-manager/internal/vars"
)

// State is the lifecycle position of one chain step.
type State string

const (
	StatePending   State = "pending"
	StateResolving State = "resolving-variables"
	StateAwaiting  State = "awaiting-response"
	StateRecorded  State = "recorded"
	StateFailed    State = "failed"
)

// StepEvent reports a step transition.
type StepEvent struct {
	Index  int
	StepID string
	State  State
	// Message is the user message sent for the step, set from
	// StateAwaiting on.
	Message string
	// Output is the step's response, set on StateRecorded.
	Output string
	Err    error
}

// ExecFunc sends one step message and returns the complete response. It is
// where the caller streams and displays the reply.
type ExecFunc func(ctx context.Context, index int, item Item, message string) (string, error)

// StepError identifies the step a chain run stopped at.
type StepError struct {
	Index  int
	StepID string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("chain step %d: %v", Badge(e.Index), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner executes chain items in order, feeding each step the previous
// step's output.
type Runner struct {
	Resolver *vars.Resolver
	Exec     ExecFunc
	// Observer, if set, receives every step transition.
	Observer func(StepEvent)
	Logger   *zap.Logger
}

// StepMessage is the single user message sent for a step: the resolved
// prompt, a blank line, then the previous output quoted.
func StepMessage(resolved, previous string) string {
	return resolved + "\n\n" + llm.QuoteInput(previous)
}

// Run executes items seeded with initial, the main prompt's response. The
// first failure aborts the remaining steps; the responses recorded so far
// are returned alongside the error.
func (r *Runner) Run(ctx context.Context, initial string, items []Item) (vars.Responses, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver := r.Resolver
	if resolver == nil {
		resolver = &vars.Resolver{}
	}

	responses := vars.Responses{vars.InitialKey: initial}
	if err := Validate(items); err != nil {
		return responses, err
	}
	if r.Exec == nil {
		return responses, fmt.Errorf("chain runner has no executor")
	}

	ctx, span := observability.StartChainSpan(ctx, len(items))
	defer span.End()

	prev := initial
	for i, item := range items {
		out, err := r.runStep(ctx, i, item, prev, responses, resolver)
		if err != nil {
			stepErr := &StepError{Index: i, StepID: item.ID, Err: err}
			r.emit(StepEvent{Index: i, StepID: item.ID, State: StateFailed, Err: err})
			logger.Warn("chain aborted", zap.Int("step", Badge(i)), zap.String("step_id", item.ID), zap.Error(err))
			observability.RecordError(span, stepErr)
			return responses, stepErr
		}
		responses[item.ID] = out
		prev = out
	}
	logger.Debug("chain completed", zap.Int("steps", len(items)))
	return responses, nil
}

func (r *Runner) runStep(ctx context.Context, i int, item Item, prev string, responses vars.Responses, resolver *vars.Resolver) (string, error) {
	ctx, span := observability.StartStepSpan(ctx, i, item.ID)
	defer span.End()

	r.emit(StepEvent{Index: i, StepID: item.ID, State: StatePending})

	r.emit(StepEvent{Index: i, StepID: item.ID, State: StateResolving})
	resolved, err := resolver.Resolve(ctx, item.Prompt, item.Mappings, responses)
	if err != nil {
		observability.RecordError(span, err)
		return "", fmt.Errorf("resolve variables: %w", err)
	}

	msg := StepMessage(resolved, prev)
	r.emit(StepEvent{Index: i, StepID: item.ID, State: StateAwaiting, Message: msg})
	out, err := r.Exec(ctx, i, item, msg)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}

	r.emit(StepEvent{Index: i, StepID: item.ID, State: StateRecorded, Message: msg, Output: out})
	return out, nil
}

func (r *Runner) emit(ev StepEvent) {
	if r.Observer != nil {
		r.Observer(ev)
	}
}
