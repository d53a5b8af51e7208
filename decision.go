package cogito

import "context"

// Decision is the decider's choice for one iteration.
type Decision struct {
	Title      string
	Reflection string
	// Action is the name of the action to execute.
	Action string
	Input  map[string]any
}

// DecisionContext is what the decider sees.
type DecisionContext struct {
	CycleID string
	Message string
	// Actions are the enabled actions, sorted by name.
	Actions []ActionSpec
	// Steps are the completed steps, oldest first.
	Steps []Step
	// Iteration starts at 1.
	Iteration int
	Progress  ProgressSink
}

// Decider chooses the next action.
type Decider interface {
	Decide(ctx context.Context, dctx *DecisionContext) (*Decision, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, dctx *DecisionContext) (*Decision, error)

func (f DeciderFunc) Decide(ctx context.Context, dctx *DecisionContext) (*Decision, error) {
	return f(ctx, dctx)
}
