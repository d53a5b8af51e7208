// Package cogito runs LLM driven thought cycles: a decider picks an action, the action runs, a
// stall engine watches the history, and the loop ends on the finalize action or on a stall.
package cogito

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/cogito/stall"
	"github.com/m-mizutani/cogito/trace"
	"github.com/m-mizutani/goerr/v2"
)

// Thinker runs thought cycles. A Thinker is safe for concurrent Think calls; each call owns its
// stall engine and steps.
type Thinker struct {
	decider  Decider
	registry *Registry

	config
}

type config struct {
	logger   *slog.Logger
	progress ProgressSink

	stallDetectors []stall.Detector
	stallClock     func() time.Time

	stateHook       StateHook
	decisionHook    DecisionHook
	actionStartHook ActionStartHook
	actionEndHook   ActionEndHook
	stallHook       StallHook

	middlewares []ActionMiddleware
	trace       trace.Handler
}

func (c *config) clone() *config {
	cloned := *c
	cloned.stallDetectors = c.stallDetectors[:len(c.stallDetectors):len(c.stallDetectors)]
	cloned.middlewares = c.middlewares[:len(c.middlewares):len(c.middlewares)]
	return &cloned
}

// Option configures a Thinker. The same options can be passed to Think to override them for one
// cycle.
type Option func(*config)

// New creates a Thinker. A nil registry is replaced by an empty one.
func New(decider Decider, registry *Registry, options ...Option) *Thinker {
	if registry == nil {
		registry = &Registry{entries: map[string]*registryEntry{}}
	}

	t := &Thinker{
		decider:  decider,
		registry: registry,
		config: config{
			logger:          slog.New(slog.DiscardHandler),
			progress:        discardProgress{},
			stateHook:       defaultStateHook,
			decisionHook:    defaultDecisionHook,
			actionStartHook: defaultActionStartHook,
			actionEndHook:   defaultActionEndHook,
			stallHook:       defaultStallHook,
		},
	}

	for _, opt := range options {
		opt(&t.config)
	}

	t.logger.Debug("cogito thinker created",
		"actions", registry.Names(),
		"middlewares", len(t.middlewares),
		"has_trace", t.trace != nil,
	)

	return t
}

// Registry returns the registry the Thinker looks actions up in.
func (t *Thinker) Registry() *Registry {
	return t.registry
}

// WithLogger sets the logger. Default is discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithProgress sets the sink receiving progress from the decider and actions. Default discards.
func WithProgress(sink ProgressSink) Option {
	return func(c *config) {
		c.progress = sink
	}
}

// WithStallDetectors replaces the ordered stall detector list. Default is stall.DefaultDetectors().
func WithStallDetectors(detectors ...stall.Detector) Option {
	return func(c *config) {
		c.stallDetectors = detectors
	}
}

// WithStallClock sets the clock used to measure action execution time.
func WithStallClock(now func() time.Time) Option {
	return func(c *config) {
		c.stallClock = now
	}
}

// WithStateHook sets a callback called on every state transition. If it returns an error, the cycle
// is aborted.
//
//	cogito.WithStateHook(func(ctx context.Context, from, to cogito.State) error {
//		println(from.String() + " -> " + to.String())
//		return nil
//	})
func WithStateHook(hook StateHook) Option {
	return func(c *config) {
		c.stateHook = hook
	}
}

// WithDecisionHook sets a callback called when the decider returns a decision. If it returns an
// error, the cycle is aborted.
func WithDecisionHook(hook DecisionHook) Option {
	return func(c *config) {
		c.decisionHook = hook
	}
}

// WithActionStartHook sets a callback called just before an action runs. If it returns an error,
// the cycle is aborted.
func WithActionStartHook(hook ActionStartHook) Option {
	return func(c *config) {
		c.actionStartHook = hook
	}
}

// WithActionEndHook sets a callback called after an action succeeded. If it returns an error, the
// cycle is aborted.
func WithActionEndHook(hook ActionEndHook) Option {
	return func(c *config) {
		c.actionEndHook = hook
	}
}

// WithStallHook sets a callback called when a stall is detected. If it returns an error, Think
// returns that error instead of the stalled result.
func WithStallHook(hook StallHook) Option {
	return func(c *config) {
		c.stallHook = hook
	}
}

// WithActionMiddleware appends middlewares around action execution.
func WithActionMiddleware(middlewares ...ActionMiddleware) Option {
	return func(c *config) {
		c.middlewares = append(c.middlewares, middlewares...)
	}
}

// WithTrace sets the trace handler. A trace.Recorder holds one cycle, so pass a fresh one to each
// Think call.
func WithTrace(handler trace.Handler) Option {
	return func(c *config) {
		c.trace = handler
	}
}

// cycle is the mutable state of one Think call.
type cycle struct {
	cfg      *config
	decider  Decider
	registry *Registry

	id      string
	message string
	state   State
	engine  *stall.Engine
	steps   []Step
	handler ActionHandler
}

func (c *cycle) now() time.Time {
	if c.cfg.stallClock != nil {
		return c.cfg.stallClock()
	}
	return time.Now()
}

// Think runs one thought cycle for message. A stall is reported as a Result with StatusStalled and
// a nil error. Unknown or disabled actions, action failures, hook errors and cancellation are
// returned as errors.
func (t *Thinker) Think(ctx context.Context, message string, options ...Option) (*Result, error) {
	cfg := t.config.clone()
	for _, opt := range options {
		opt(cfg)
	}

	cycleID := uuid.Must(uuid.NewV7()).String()
	logger := cfg.logger.With("cogito.cycle_id", cycleID)
	ctx = ctxWithLogger(ctx, logger)
	ctx = ctxWithCycleID(ctx, cycleID)

	var stallOptions []stall.Option
	if cfg.stallDetectors != nil {
		stallOptions = append(stallOptions, stall.WithDetectors(cfg.stallDetectors...))
	}
	if cfg.stallClock != nil {
		stallOptions = append(stallOptions, stall.WithClock(cfg.stallClock))
	}

	c := &cycle{
		cfg:      cfg,
		decider:  t.decider,
		registry: t.registry,
		id:       cycleID,
		message:  message,
		state:    StateAwaitingDecision,
		engine:   stall.New(stallOptions...),
		handler:  buildActionChain(cfg.middlewares, executeAction),
	}

	if cfg.trace != nil {
		ctx = trace.WithHandler(ctx, cfg.trace)
		ctx = cfg.trace.StartCycle(ctx, cycleID, message)
	}

	logger.Info("cogito cycle started", "message", message)

	result, err := c.run(ctx)

	if cfg.trace != nil {
		data := &trace.CycleData{
			CycleID:    cycleID,
			Message:    message,
			Iterations: len(c.steps),
		}
		if result != nil {
			data.Status = string(result.Status)
			data.StallReason = result.StallReason
		}
		cfg.trace.EndCycle(ctx, data, err)
		if finishErr := cfg.trace.Finish(context.WithoutCancel(ctx)); finishErr != nil {
			logger.Warn("failed to finish trace", "error", finishErr)
		}
	}

	if err != nil {
		logger.Info("cogito cycle failed", "error", err, "iterations", len(c.steps))
		return nil, err
	}

	logger.Info("cogito cycle terminated",
		"status", result.Status,
		"stall_reason", result.StallReason,
		"iterations", result.Iterations,
	)
	return result, nil
}

func (c *cycle) transition(ctx context.Context, to State) error {
	from := c.state
	c.state = to
	LoggerFromContext(ctx).Debug("cogito state transition", "from", from.String(), "to", to.String())
	if err := c.cfg.stateHook(ctx, from, to); err != nil {
		return goerr.Wrap(err, "state hook failed", goerr.V("from", from.String()), goerr.V("to", to.String()))
	}
	return nil
}

func (c *cycle) result(status Status, reason string) *Result {
	r := &Result{
		CycleID:     c.id,
		Status:      status,
		StallReason: reason,
		Iterations:  len(c.steps),
		Steps:       c.steps,
	}
	if len(c.steps) > 0 {
		r.Output = c.steps[len(c.steps)-1].Output
	}
	return r
}

func canceled(ctx context.Context) error {
	cause := ctx.Err()
	if cause == nil {
		return nil
	}
	return goerr.Wrap(errors.Join(ErrCycleCanceled, cause), "thought cycle stopped")
}

func (c *cycle) run(ctx context.Context) (*Result, error) {
	logger := LoggerFromContext(ctx)

	for iteration := 1; ; iteration++ {
		if err := canceled(ctx); err != nil {
			return nil, err
		}

		decision, err := c.decide(ctx, iteration)
		if err != nil {
			return nil, err
		}
		// a decision that arrives after cancellation is dropped
		if err := canceled(ctx); err != nil {
			return nil, err
		}

		if err := c.transition(ctx, StateExecutingAction); err != nil {
			return nil, err
		}

		step, spec, err := c.execute(ctx, decision)
		if err != nil {
			return nil, err
		}

		if err := c.transition(ctx, StateCheckingStall); err != nil {
			return nil, err
		}

		step.Stall = c.engine.SignalEndOfAction(decision.Action)
		c.steps = append(c.steps, *step)

		if err := c.cfg.actionEndHook(ctx, step); err != nil {
			return nil, goerr.Wrap(err, "action end hook failed", goerr.V("action", decision.Action))
		}

		if step.Stall.IsStall {
			logger.Info("cogito stall detected",
				"detector", step.Stall.Detector,
				"reason", step.Stall.Reason,
				"action", decision.Action,
			)
			if h := trace.HandlerFrom(ctx); h != nil {
				h.AddEvent(ctx, "stall", step.Stall)
			}
			if err := c.cfg.stallHook(ctx, step.Stall); err != nil {
				return nil, goerr.Wrap(err, "stall hook failed")
			}
			if err := c.transition(ctx, StateTerminated); err != nil {
				return nil, err
			}
			return c.result(StatusStalled, step.Stall.Reason), nil
		}

		if spec.Final {
			if err := c.transition(ctx, StateFinalizing); err != nil {
				return nil, err
			}
			if err := c.transition(ctx, StateTerminated); err != nil {
				return nil, err
			}
			return c.result(StatusFinalized, ""), nil
		}

		if err := c.transition(ctx, StateAwaitingDecision); err != nil {
			return nil, err
		}
	}
}

func (c *cycle) decide(ctx context.Context, iteration int) (*Decision, error) {
	dctx := &DecisionContext{
		CycleID:   c.id,
		Message:   c.message,
		Actions:   c.registry.Enabled(),
		Steps:     c.steps,
		Iteration: iteration,
		Progress:  c.cfg.progress,
	}

	h := trace.HandlerFrom(ctx)
	decideCtx := ctx
	if h != nil {
		decideCtx = h.StartDecision(ctx, iteration)
	}

	decision, err := c.decider.Decide(decideCtx, dctx)
	if err == nil && (decision == nil || decision.Action == "") {
		err = goerr.Wrap(ErrNoDecision, "decider returned no action", goerr.V("iteration", iteration))
	}

	if h != nil {
		var data *trace.DecisionData
		if decision != nil {
			data = &trace.DecisionData{
				Iteration:  iteration,
				Title:      decision.Title,
				Reflection: decision.Reflection,
				Action:     decision.Action,
				Input:      decision.Input,
			}
		}
		h.EndDecision(decideCtx, data, err)
	}

	if err != nil {
		if ctxErr := canceled(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, goerr.Wrap(err, "failed to decide next action", goerr.V("iteration", iteration))
	}

	LoggerFromContext(ctx).Debug("cogito decision",
		"iteration", iteration,
		"title", decision.Title,
		"action", decision.Action,
		"input", decision.Input,
	)

	if err := c.cfg.decisionHook(ctx, decision); err != nil {
		return nil, goerr.Wrap(err, "decision hook failed", goerr.V("action", decision.Action))
	}

	return decision, nil
}

func (c *cycle) execute(ctx context.Context, decision *Decision) (*Step, *ActionSpec, error) {
	action, enabled, found := c.registry.Lookup(decision.Action)
	if !found {
		return nil, nil, goerr.Wrap(ErrUnknownAction, "decider selected an unknown action", goerr.V("action", decision.Action))
	}
	if !enabled {
		return nil, nil, goerr.Wrap(ErrDisabledAction, "decider selected a disabled action", goerr.V("action", decision.Action))
	}

	spec := action.Spec()
	if err := spec.ValidateInput(decision.Input); err != nil {
		return nil, nil, err
	}

	if err := c.cfg.actionStartHook(ctx, decision); err != nil {
		return nil, nil, goerr.Wrap(err, "action start hook failed", goerr.V("action", decision.Action))
	}

	req := &ActionRequest{
		Action: action,
		Spec:   spec,
		Context: &ActionContext{
			CycleID:  c.id,
			Message:  c.message,
			Decision: decision,
			Steps:    c.steps,
			Progress: c.cfg.progress,
		},
	}

	h := trace.HandlerFrom(ctx)
	actionCtx := ctx
	if h != nil {
		actionCtx = h.StartAction(ctx, spec.Name, decision.Input)
	}

	started := c.now()
	resp, err := c.handler(actionCtx, req)
	duration := c.now().Sub(started)

	var output map[string]any
	if resp != nil {
		output = resp.Output
	}
	if h != nil {
		h.EndAction(actionCtx, output, err)
	}

	LoggerFromContext(ctx).Debug("cogito action executed",
		"action", spec.Name,
		"duration", duration,
		"error", err,
	)

	if err != nil {
		if ctxErr := canceled(ctx); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, goerr.Wrap(fmt.Errorf("%w: %w", ErrActionFailed, err), "action execution failed",
			goerr.V("action", spec.Name),
			goerr.V("duration", duration),
		)
	}

	return &Step{
		Decision: decision,
		Output:   output,
		Duration: duration,
	}, &spec, nil
}
