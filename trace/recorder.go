package trace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Option is a functional option for configuring a Recorder.
type Option func(*Recorder)

// WithRepository sets the repository for persisting trace data.
func WithRepository(repo Repository) Option {
	return func(r *Recorder) {
		r.repo = repo
	}
}

// WithMetadata sets the metadata for the trace.
func WithMetadata(meta TraceMetadata) Option {
	return func(r *Recorder) {
		r.metadata = meta
	}
}

// WithTraceID sets a custom trace ID.
// If not set, the cycle ID given to StartCycle is used, and a UUID v7 when that is empty too.
func WithTraceID(id string) Option {
	return func(r *Recorder) {
		r.traceID = id
	}
}

// WithLogger sets the logger used to report persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// Recorder collects tracing data of one thought cycle into an in-memory Trace structure.
// It implements the Handler interface and provides access to the collected Trace via Trace().
// A Recorder holds a single trace; use one per cycle.
type Recorder struct {
	trace    *Trace
	mu       sync.Mutex
	repo     Repository
	metadata TraceMetadata
	traceID  string
	logger   *slog.Logger
}

// New creates a new Recorder with the given options.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// context key types
type handlerKey struct{}
type currentSpanKey struct{}

// WithHandler stores the Handler in the context.
func WithHandler(ctx context.Context, h Handler) context.Context {
	return context.WithValue(ctx, handlerKey{}, h)
}

// HandlerFrom retrieves the Handler from the context. Returns nil if not set.
func HandlerFrom(ctx context.Context) Handler {
	h, _ := ctx.Value(handlerKey{}).(Handler)
	return h
}

func withCurrentSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, currentSpanKey{}, span)
}

func currentSpanFrom(ctx context.Context) *Span {
	s, _ := ctx.Value(currentSpanKey{}).(*Span)
	return s
}

func newSpanID() string {
	return uuid.New().String()
}

// StartCycle starts the root cycle span.
func (r *Recorder) StartCycle(ctx context.Context, cycleID, message string) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	span := &Span{
		SpanID:    newSpanID(),
		Kind:      SpanKindCycle,
		Name:      "cycle",
		StartedAt: now,
		Status:    SpanStatusOK,
		Cycle: &CycleData{
			CycleID: cycleID,
			Message: message,
		},
	}

	traceID := r.traceID
	if traceID == "" {
		traceID = cycleID
	}
	if traceID == "" {
		traceID = uuid.Must(uuid.NewV7()).String()
	}

	r.trace = &Trace{
		TraceID:   traceID,
		RootSpan:  span,
		Metadata:  r.metadata,
		StartedAt: now,
	}

	return withCurrentSpan(ctx, span)
}

// EndCycle ends the root cycle span.
func (r *Recorder) EndCycle(ctx context.Context, data *CycleData, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := currentSpanFrom(ctx)
	if span == nil || span.Kind != SpanKindCycle {
		return
	}

	now := time.Now()
	closeSpan(span, now, err)
	if data != nil {
		span.Cycle = data
	}

	if r.trace != nil {
		r.trace.EndedAt = now
	}
}

// StartDecision starts a decision span as a child of the current span.
func (r *Recorder) StartDecision(ctx context.Context, iteration int) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := r.startChildSpan(ctx, SpanKindDecision, "decision")
	if span == nil {
		return ctx
	}
	span.Decision = &DecisionData{Iteration: iteration}
	return withCurrentSpan(ctx, span)
}

// EndDecision ends the decision span with the decision made.
func (r *Recorder) EndDecision(ctx context.Context, data *DecisionData, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := currentSpanFrom(ctx)
	if span == nil || span.Kind != SpanKindDecision {
		return
	}

	closeSpan(span, time.Now(), err)
	if data != nil {
		if span.Decision != nil && data.Iteration == 0 {
			data.Iteration = span.Decision.Iteration
		}
		span.Decision = data
		if data.Action != "" {
			span.Name = "decision:" + data.Action
		}
	}
}

// StartLLMCall starts an llm_call span as a child of the current span.
func (r *Recorder) StartLLMCall(ctx context.Context) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := r.startChildSpan(ctx, SpanKindLLMCall, "llm_call")
	if span == nil {
		return ctx
	}
	return withCurrentSpan(ctx, span)
}

// EndLLMCall ends the llm_call span with the given data.
func (r *Recorder) EndLLMCall(ctx context.Context, data *LLMCallData, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := currentSpanFrom(ctx)
	if span == nil || span.Kind != SpanKindLLMCall {
		return
	}

	closeSpan(span, time.Now(), err)
	span.LLMCall = data
}

// StartAction starts an action span as a child of the current span.
func (r *Recorder) StartAction(ctx context.Context, name string, input map[string]any) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := r.startChildSpan(ctx, SpanKindAction, name)
	if span == nil {
		return ctx
	}
	span.Action = &ActionData{
		ActionName: name,
		Input:      input,
	}
	return withCurrentSpan(ctx, span)
}

// EndAction ends the action span with its output.
func (r *Recorder) EndAction(ctx context.Context, output map[string]any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := currentSpanFrom(ctx)
	if span == nil || span.Kind != SpanKindAction {
		return
	}

	closeSpan(span, time.Now(), err)
	if span.Action != nil {
		span.Action.Output = output
		if err != nil {
			span.Action.Error = err.Error()
		}
	}
}

// AddEvent adds an event span as a child of the current span.
func (r *Recorder) AddEvent(ctx context.Context, kind string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := r.startChildSpan(ctx, SpanKindEvent, kind)
	if span == nil {
		return
	}
	span.EndedAt = span.StartedAt
	span.Event = &EventData{
		Kind: kind,
		Data: data,
	}
}

// Finish completes the trace and persists it to the Repository.
func (r *Recorder) Finish(ctx context.Context) error {
	r.mu.Lock()
	trace := r.trace
	repo := r.repo
	r.mu.Unlock()

	if trace == nil || repo == nil {
		return nil
	}

	if err := repo.Save(ctx, trace); err != nil {
		r.logger.Warn("failed to save trace", "trace_id", trace.TraceID, "error", err)
		return err
	}

	return nil
}

// Trace returns the current trace data. Returns nil if no trace is active.
func (r *Recorder) Trace() *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace
}

// startChildSpan appends a new span to the current span. The caller must hold r.mu.
func (r *Recorder) startChildSpan(ctx context.Context, kind SpanKind, name string) *Span {
	parent := currentSpanFrom(ctx)
	if parent == nil {
		return nil
	}

	span := &Span{
		SpanID:    newSpanID(),
		ParentID:  parent.SpanID,
		Kind:      kind,
		Name:      name,
		StartedAt: time.Now(),
		Status:    SpanStatusOK,
	}

	parent.Children = append(parent.Children, span)
	return span
}

func closeSpan(span *Span, now time.Time, err error) {
	span.EndedAt = now
	span.Duration = now.Sub(span.StartedAt)
	if err != nil {
		span.Status = SpanStatusError
		span.Error = err.Error()
	}
}

var _ Handler = &Recorder{}
