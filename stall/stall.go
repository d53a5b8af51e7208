// Package stall decides when an otherwise unbounded decision loop has to be terminated.
//
// An Engine is fed one signal per completed action. After each signal it evaluates an ordered list
// of detectors against the rolling history and reports the first one that fires. The order is part
// of the contract: with the default list, RepeatedAction is consulted first, then TakingTooLong,
// IterationLimit and finally ActionPattern, so the reported reason is deterministic when several
// conditions hold at the same time.
package stall

import (
	"slices"
	"time"
)

// DefaultHistoryLimit is the number of most recent actions kept in the history.
const DefaultHistoryLimit = 20

// Context is the rolling state detectors evaluate. It is owned by an Engine and handed to
// detectors read-only.
type Context struct {
	// DecisionHistory holds the most recent action names, oldest first.
	DecisionHistory []string
	// ActionExecutionTimes holds the elapsed time of each entry in DecisionHistory.
	ActionExecutionTimes []time.Duration
	// TotalIterations counts every signaled action, including evicted ones.
	TotalIterations int
}

// Result is the outcome of a stall check.
type Result struct {
	IsStall bool
	Reason  string
	// Detector is the name of the detector that fired.
	Detector string
}

// Detector is a single stall heuristic. Implementations must not keep state between calls nor
// modify the Context.
type Detector interface {
	Name() string
	CheckStall(sc *Context) Result
}

// DefaultDetectors returns the built-in detectors in evaluation order.
func DefaultDetectors() []Detector {
	return []Detector{
		&RepeatedAction{Count: DefaultRepeatCount},
		&TakingTooLong{Limit: DefaultActionTimeLimit},
		&IterationLimit{Limit: DefaultIterationLimit},
		&ActionPattern{MinCycle: DefaultMinCycle, MaxCycle: DefaultMaxCycle},
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithDetectors replaces the detector list. Detectors run in the given order.
func WithDetectors(detectors ...Detector) Option {
	return func(e *Engine) {
		e.detectors = detectors
	}
}

// WithClock sets the time source used to measure action execution time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithHistoryLimit sets how many recent actions are kept. Values below 1 are ignored.
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.historyLimit = limit
		}
	}
}

// Engine accumulates the Context of one thought cycle and runs detectors against it. It never
// blocks and is not safe for concurrent use; each cycle owns its own Engine.
type Engine struct {
	detectors    []Detector
	historyLimit int
	now          func() time.Time

	last time.Time
	sc   Context
}

// New creates an Engine. The elapsed time of the first action is measured from this call.
func New(options ...Option) *Engine {
	e := &Engine{
		detectors:    DefaultDetectors(),
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	e.last = e.now()
	return e
}

// SignalEndOfAction records a completed action and returns the first stall detected, or a zero
// Result when the loop may continue.
func (e *Engine) SignalEndOfAction(actionName string) Result {
	now := e.now()
	elapsed := now.Sub(e.last)
	e.last = now

	e.sc.TotalIterations++
	e.sc.ActionExecutionTimes = appendBounded(e.sc.ActionExecutionTimes, elapsed, e.historyLimit)
	e.sc.DecisionHistory = appendBounded(e.sc.DecisionHistory, actionName, e.historyLimit)

	view := e.Snapshot()
	for _, d := range e.detectors {
		if r := d.CheckStall(&view); r.IsStall {
			if r.Detector == "" {
				r.Detector = d.Name()
			}
			return r
		}
	}

	return Result{}
}

// Snapshot returns a copy of the current Context.
func (e *Engine) Snapshot() Context {
	return Context{
		DecisionHistory:      slices.Clone(e.sc.DecisionHistory),
		ActionExecutionTimes: slices.Clone(e.sc.ActionExecutionTimes),
		TotalIterations:      e.sc.TotalIterations,
	}
}

func appendBounded[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = slices.Delete(s, 0, len(s)-limit)
	}
	return s
}
