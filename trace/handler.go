package trace

import "context"

// Handler is the interface for trace backends.
// Implementations receive lifecycle events of a thought cycle and can record, export, or forward
// them as needed. Every Start method returns a context that must be passed to the matching End.
type Handler interface {
	// StartCycle starts the root span of one thought cycle.
	StartCycle(ctx context.Context, cycleID, message string) context.Context
	// EndCycle ends the root span with the outcome of the cycle.
	EndCycle(ctx context.Context, data *CycleData, err error)

	// StartDecision starts a span for one decision step.
	StartDecision(ctx context.Context, iteration int) context.Context
	// EndDecision ends the decision span with the decision made.
	EndDecision(ctx context.Context, data *DecisionData, err error)

	// StartLLMCall starts an LLM call span, usually inside a decision or an action.
	StartLLMCall(ctx context.Context) context.Context
	// EndLLMCall ends an LLM call span with the given data.
	EndLLMCall(ctx context.Context, data *LLMCallData, err error)

	// StartAction starts an action execution span.
	StartAction(ctx context.Context, name string, input map[string]any) context.Context
	// EndAction ends an action execution span with its output.
	EndAction(ctx context.Context, output map[string]any, err error)

	// AddEvent adds an event to the current span.
	AddEvent(ctx context.Context, kind string, data any)

	// Finish completes the trace and performs any final operations.
	Finish(ctx context.Context) error
}
