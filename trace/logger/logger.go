package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/cogito/trace"
)

// Event represents a trace event type that can be selectively enabled.
type Event int

const (
	// Cycle enables logging of thought cycle start/end.
	Cycle Event = iota
	// Decision enables logging of each decision (title, action, input).
	Decision
	// LLMRequest enables logging of LLM request details (system prompt, messages).
	LLMRequest
	// LLMResponse enables logging of LLM response details (streamed text, chunk count).
	LLMResponse
	// Action enables logging of action execution (name, input, output, duration).
	Action
	// CustomEvent enables logging of free-form events such as stalls.
	CustomEvent

	eventCount // sentinel for iteration
)

type config struct {
	logger *slog.Logger
	events map[Event]bool
}

// Option configures the logger handler.
type Option func(*config)

// WithLogger sets a custom slog.Logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithEvents enables only the specified event types.
// When not specified, all events are enabled.
func WithEvents(events ...Event) Option {
	return func(c *config) {
		c.events = make(map[Event]bool, len(events))
		for _, e := range events {
			c.events[e] = true
		}
	}
}

// handler implements trace.Handler by logging events via slog.
type handler struct {
	cfg config
}

// New creates a new trace.Handler that logs trace events via slog.
func New(opts ...Option) trace.Handler {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.events == nil {
		cfg.events = make(map[Event]bool, eventCount)
		for i := Event(0); i < eventCount; i++ {
			cfg.events[i] = true
		}
	}

	return &handler{cfg: cfg}
}

func (h *handler) logger() *slog.Logger {
	if h.cfg.logger != nil {
		return h.cfg.logger
	}
	return slog.Default()
}

func (h *handler) enabled(e Event) bool {
	return h.cfg.events[e]
}

type startTimeKey struct{}

func withStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey{}, t)
}

func startTimeFrom(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey{}).(time.Time)
	return t
}

type cycleIDKey struct{}

func cycleIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)
	return id
}

type actionInfoKey struct{}

type actionInfo struct {
	name  string
	input map[string]any
}

func actionInfoFrom(ctx context.Context) actionInfo {
	info, _ := ctx.Value(actionInfoKey{}).(actionInfo)
	return info
}

// StartCycle logs the start of a thought cycle.
func (h *handler) StartCycle(ctx context.Context, cycleID, message string) context.Context {
	ctx = context.WithValue(ctx, cycleIDKey{}, cycleID)
	if h.enabled(Cycle) {
		h.logger().InfoContext(ctx, "cycle started",
			slog.String("cycle_id", cycleID),
			slog.String("message", message),
		)
	}
	return withStartTime(ctx, time.Now())
}

// EndCycle logs the end of a thought cycle with its outcome.
func (h *handler) EndCycle(ctx context.Context, data *trace.CycleData, err error) {
	if !h.enabled(Cycle) {
		return
	}

	attrs := []any{
		slog.String("cycle_id", cycleIDFrom(ctx)),
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
	}
	if data != nil {
		attrs = append(attrs,
			slog.String("status", data.Status),
			slog.Int("iterations", data.Iterations),
		)
		if data.StallReason != "" {
			attrs = append(attrs, slog.String("stall_reason", data.StallReason))
		}
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	h.logger().InfoContext(ctx, "cycle ended", attrs...)
}

// StartDecision records the start time for EndDecision.
func (h *handler) StartDecision(ctx context.Context, _ int) context.Context {
	return withStartTime(ctx, time.Now())
}

// EndDecision logs the decision made.
func (h *handler) EndDecision(ctx context.Context, data *trace.DecisionData, err error) {
	if !h.enabled(Decision) {
		return
	}

	attrs := []any{
		slog.String("cycle_id", cycleIDFrom(ctx)),
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
	}
	if data != nil {
		attrs = append(attrs,
			slog.Int("iteration", data.Iteration),
			slog.String("title", data.Title),
			slog.String("action", data.Action),
			slog.Any("input", data.Input),
		)
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	h.logger().InfoContext(ctx, "decision", attrs...)
}

// StartLLMCall records the start time for duration calculation.
func (h *handler) StartLLMCall(ctx context.Context) context.Context {
	return withStartTime(ctx, time.Now())
}

// EndLLMCall logs LLM call details based on enabled events.
// LLMRequest controls request details, LLMResponse controls response details.
// If either is enabled, model and token usage are always included.
func (h *handler) EndLLMCall(ctx context.Context, data *trace.LLMCallData, err error) {
	reqEnabled := h.enabled(LLMRequest)
	respEnabled := h.enabled(LLMResponse)
	if !reqEnabled && !respEnabled {
		return
	}

	attrs := []any{
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
	}

	if data != nil {
		attrs = append(attrs,
			slog.String("model", data.Model),
			slog.Int("input_tokens", data.InputTokens),
			slog.Int("output_tokens", data.OutputTokens),
		)

		if reqEnabled && data.Request != nil {
			attrs = append(attrs, slog.Any("request", data.Request))
		}
		if respEnabled && data.Response != nil {
			attrs = append(attrs, slog.Any("response", data.Response))
		}
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	h.logger().InfoContext(ctx, "llm call", attrs...)
}

// StartAction records the start time and action info for EndAction.
func (h *handler) StartAction(ctx context.Context, name string, input map[string]any) context.Context {
	ctx = withStartTime(ctx, time.Now())
	return context.WithValue(ctx, actionInfoKey{}, actionInfo{name: name, input: input})
}

// EndAction logs action execution details.
func (h *handler) EndAction(ctx context.Context, output map[string]any, err error) {
	if !h.enabled(Action) {
		return
	}

	info := actionInfoFrom(ctx)
	attrs := []any{
		slog.String("action", info.name),
		slog.Any("input", info.input),
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
		slog.Any("output", output),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	h.logger().InfoContext(ctx, "action execution", attrs...)
}

// AddEvent logs a free-form event.
func (h *handler) AddEvent(ctx context.Context, kind string, data any) {
	if !h.enabled(CustomEvent) {
		return
	}

	h.logger().InfoContext(ctx, "event",
		slog.String("kind", kind),
		slog.Any("data", data),
	)
}

// Finish is a no-op for the logger handler. Persistence is the Recorder's responsibility.
func (h *handler) Finish(_ context.Context) error {
	return nil
}
