// Package otel provides an OpenTelemetry trace handler for cogito.
//
// It bridges thought cycle events to OpenTelemetry spans, allowing integration with any
// OTel-compatible backend (Jaeger, Zipkin, OTLP, etc.).
//
// Basic usage with global TracerProvider:
//
//	thinker := cogito.New(decider, registry, cogito.WithTrace(otel.New()))
//
// With explicit TracerProvider:
//
//	thinker := cogito.New(decider, registry, cogito.WithTrace(
//	    otel.New(otel.WithTracerProvider(tp)),
//	))
package otel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/cogito/trace"
	otelAPI "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/m-mizutani/cogito"
)

// Option is a functional option for configuring the OTel handler.
type Option func(*handler)

// WithTracerProvider sets an explicit TracerProvider.
// If not set, the global TracerProvider is used.
func WithTracerProvider(tp otelTrace.TracerProvider) Option {
	return func(h *handler) {
		h.tracerProvider = tp
	}
}

// handler implements trace.Handler by bridging events to OpenTelemetry spans.
type handler struct {
	tracerProvider otelTrace.TracerProvider
	tracer         otelTrace.Tracer
}

// New creates a new OTel trace handler.
// If no TracerProvider is specified via options, the global TracerProvider is used.
func New(opts ...Option) trace.Handler {
	h := &handler{}
	for _, opt := range opts {
		opt(h)
	}

	if h.tracerProvider == nil {
		h.tracerProvider = otelAPI.GetTracerProvider()
	}
	h.tracer = h.tracerProvider.Tracer(tracerName)

	return h
}

func endSpan(ctx context.Context, err error) {
	span := otelTrace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (h *handler) StartCycle(ctx context.Context, cycleID, _ string) context.Context {
	ctx, span := h.tracer.Start(ctx, "cycle",
		otelTrace.WithSpanKind(otelTrace.SpanKindInternal),
	)
	span.SetAttributes(cycleIDAttr(cycleID))
	return ctx
}

func (h *handler) EndCycle(ctx context.Context, data *trace.CycleData, err error) {
	if data != nil {
		span := otelTrace.SpanFromContext(ctx)
		span.SetAttributes(
			cycleStatusAttr(data.Status),
			cycleIterationsAttr(data.Iterations),
		)
		if data.StallReason != "" {
			span.SetAttributes(stallReasonAttr(data.StallReason))
		}
	}
	endSpan(ctx, err)
}

func (h *handler) StartDecision(ctx context.Context, iteration int) context.Context {
	ctx, span := h.tracer.Start(ctx, "decision",
		otelTrace.WithSpanKind(otelTrace.SpanKindInternal),
	)
	span.SetAttributes(decisionIterationAttr(iteration))
	return ctx
}

func (h *handler) EndDecision(ctx context.Context, data *trace.DecisionData, err error) {
	if data != nil && data.Action != "" {
		otelTrace.SpanFromContext(ctx).SetAttributes(decisionActionAttr(data.Action))
	}
	endSpan(ctx, err)
}

func (h *handler) StartLLMCall(ctx context.Context) context.Context {
	ctx, _ = h.tracer.Start(ctx, "llm_call",
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
	)
	return ctx
}

func (h *handler) EndLLMCall(ctx context.Context, data *trace.LLMCallData, err error) {
	if data != nil {
		otelTrace.SpanFromContext(ctx).SetAttributes(
			llmModelAttr(data.Model),
			llmInputTokensAttr(data.InputTokens),
			llmOutputTokensAttr(data.OutputTokens),
		)
	}
	endSpan(ctx, err)
}

func (h *handler) StartAction(ctx context.Context, name string, input map[string]any) context.Context {
	ctx, span := h.tracer.Start(ctx, fmt.Sprintf("action:%s", name),
		otelTrace.WithSpanKind(otelTrace.SpanKindInternal),
	)
	span.SetAttributes(actionNameAttr(name))
	if input != nil {
		if b, err := json.Marshal(input); err == nil {
			span.SetAttributes(actionInputAttr(string(b)))
		}
	}
	return ctx
}

func (h *handler) EndAction(ctx context.Context, _ map[string]any, err error) {
	endSpan(ctx, err)
}

func (h *handler) AddEvent(ctx context.Context, kind string, data any) {
	span := otelTrace.SpanFromContext(ctx)
	if data == nil {
		span.AddEvent(kind)
		return
	}

	b, err := json.Marshal(data)
	if err != nil {
		span.AddEvent(kind)
		return
	}
	span.AddEvent(kind, otelTrace.WithAttributes(eventDataAttr(string(b))))
}

func (h *handler) Finish(_ context.Context) error {
	// Spans are exported by the TracerProvider's SpanProcessor.
	return nil
}
