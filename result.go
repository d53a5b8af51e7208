package cogito

import (
	"time"

	"github.com/m-mizutani/cogito/stall"
)

// State is the state of the thought cycle state machine.
type State int

const (
	StateAwaitingDecision State = iota
	StateExecutingAction
	StateCheckingStall
	StateFinalizing
	StateTerminated
)

// String returns the string representation of the state.
func (x State) String() string {
	switch x {
	case StateAwaitingDecision:
		return "awaiting_decision"
	case StateExecutingAction:
		return "executing_action"
	case StateCheckingStall:
		return "checking_stall"
	case StateFinalizing:
		return "finalizing"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Status is how a cycle terminated without error.
type Status string

const (
	// StatusFinalized means the finalize action ran.
	StatusFinalized Status = "finalized"
	// StatusStalled means a stall detector ended the cycle. It is not an error.
	StatusStalled Status = "stalled"
)

// Step is one completed decision and action.
type Step struct {
	Decision *Decision
	Output   map[string]any
	Duration time.Duration
	Stall    stall.Result
}

// Result is the outcome of a thought cycle.
type Result struct {
	CycleID     string
	Status      Status
	StallReason string
	Iterations  int
	Steps       []Step
	// Output is the output of the last executed action. For a finalized cycle it is the output of
	// the finalize action.
	Output map[string]any
}
