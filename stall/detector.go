package stall

import (
	"fmt"
	"slices"
	"time"
)

const (
	DefaultRepeatCount     = 3
	DefaultActionTimeLimit = 300 * time.Second
	DefaultIterationLimit  = 20
	DefaultMinCycle        = 2
	DefaultMaxCycle        = 5
)

// RepeatedAction fires when the most recent Count actions are identical.
type RepeatedAction struct {
	Count int
}

func (d *RepeatedAction) Name() string { return "repeated_action" }

func (d *RepeatedAction) CheckStall(sc *Context) Result {
	h := sc.DecisionHistory
	if d.Count < 1 || len(h) < d.Count {
		return Result{}
	}

	recent := h[len(h)-d.Count:]
	for _, name := range recent[1:] {
		if name != recent[0] {
			return Result{}
		}
	}

	return Result{
		IsStall: true,
		Reason:  fmt.Sprintf("Repeated action detected: %q was executed %d times in a row", recent[0], d.Count),
	}
}

// TakingTooLong fires when the most recent action ran longer than Limit.
type TakingTooLong struct {
	Limit time.Duration
}

func (d *TakingTooLong) Name() string { return "taking_too_long" }

func (d *TakingTooLong) CheckStall(sc *Context) Result {
	times := sc.ActionExecutionTimes
	if len(times) == 0 {
		return Result{}
	}

	last := times[len(times)-1]
	if last <= d.Limit {
		return Result{}
	}

	return Result{
		IsStall: true,
		Reason:  fmt.Sprintf("Action took too long: %s exceeds the limit of %s", last.Round(time.Millisecond), d.Limit),
	}
}

// IterationLimit fires once TotalIterations reaches Limit.
type IterationLimit struct {
	Limit int
}

func (d *IterationLimit) Name() string { return "iteration_limit" }

func (d *IterationLimit) CheckStall(sc *Context) Result {
	if sc.TotalIterations < d.Limit {
		return Result{}
	}

	return Result{
		IsStall: true,
		Reason:  fmt.Sprintf("Iteration limit reached: %d actions executed (limit %d)", sc.TotalIterations, d.Limit),
	}
}

// ActionPattern fires when the tail of the history is a sub-sequence repeated twice, for cycle
// lengths from MinCycle to MaxCycle.
type ActionPattern struct {
	MinCycle int
	MaxCycle int
}

func (d *ActionPattern) Name() string { return "action_pattern" }

func (d *ActionPattern) CheckStall(sc *Context) Result {
	h := sc.DecisionHistory
	if d.MinCycle < 1 || len(h) < 2*d.MinCycle {
		return Result{}
	}

	for cycle := d.MinCycle; cycle <= d.MaxCycle; cycle++ {
		if len(h) < 2*cycle {
			break
		}

		tail := h[len(h)-2*cycle:]
		if slices.Equal(tail[:cycle], tail[cycle:]) {
			return Result{
				IsStall: true,
				Reason:  fmt.Sprintf("Action pattern detected: cycle of length %d %v repeated", cycle, tail[:cycle]),
			}
		}
	}

	return Result{}
}

var (
	_ Detector = &RepeatedAction{}
	_ Detector = &TakingTooLong{}
	_ Detector = &IterationLimit{}
	_ Detector = &ActionPattern{}
)
