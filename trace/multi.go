package trace

import (
	"context"
	"errors"
)

// multiHandler fans out trace events to multiple Handler implementations.
// Each handler receives its own isolated context so that, for example, two Recorders do not
// overwrite each other's current span.
type multiHandler struct {
	handlers []Handler
}

// Multi creates a Handler that forwards all events to the given handlers.
func Multi(handlers ...Handler) Handler {
	return &multiHandler{handlers: handlers}
}

type multiCtxKey struct{}

// getContexts retrieves per-handler contexts from the context.
// If not found, returns the base context for each handler.
func (m *multiHandler) getContexts(ctx context.Context) []context.Context {
	if v, ok := ctx.Value(multiCtxKey{}).([]context.Context); ok && len(v) == len(m.handlers) {
		return v
	}
	ctxs := make([]context.Context, len(m.handlers))
	for i := range ctxs {
		ctxs[i] = ctx
	}
	return ctxs
}

// start runs fn on each handler with its own parent context and stores the results.
func (m *multiHandler) start(ctx context.Context, fn func(h Handler, ctx context.Context) context.Context) context.Context {
	parentCtxs := m.getContexts(ctx)
	handlerCtxs := make([]context.Context, len(m.handlers))
	for i, h := range m.handlers {
		handlerCtxs[i] = fn(h, parentCtxs[i])
	}
	return context.WithValue(ctx, multiCtxKey{}, handlerCtxs)
}

func (m *multiHandler) each(ctx context.Context, fn func(h Handler, ctx context.Context)) {
	ctxs := m.getContexts(ctx)
	for i, h := range m.handlers {
		fn(h, ctxs[i])
	}
}

func (m *multiHandler) StartCycle(ctx context.Context, cycleID, message string) context.Context {
	return m.start(ctx, func(h Handler, ctx context.Context) context.Context {
		return h.StartCycle(ctx, cycleID, message)
	})
}

func (m *multiHandler) EndCycle(ctx context.Context, data *CycleData, err error) {
	m.each(ctx, func(h Handler, ctx context.Context) {
		h.EndCycle(ctx, data, err)
	})
}

func (m *multiHandler) StartDecision(ctx context.Context, iteration int) context.Context {
	return m.start(ctx, func(h Handler, ctx context.Context) context.Context {
		return h.StartDecision(ctx, iteration)
	})
}

func (m *multiHandler) EndDecision(ctx context.Context, data *DecisionData, err error) {
	m.each(ctx, func(h Handler, ctx context.Context) {
		h.EndDecision(ctx, data, err)
	})
}

func (m *multiHandler) StartLLMCall(ctx context.Context) context.Context {
	return m.start(ctx, func(h Handler, ctx context.Context) context.Context {
		return h.StartLLMCall(ctx)
	})
}

func (m *multiHandler) EndLLMCall(ctx context.Context, data *LLMCallData, err error) {
	m.each(ctx, func(h Handler, ctx context.Context) {
		h.EndLLMCall(ctx, data, err)
	})
}

func (m *multiHandler) StartAction(ctx context.Context, name string, input map[string]any) context.Context {
	return m.start(ctx, func(h Handler, ctx context.Context) context.Context {
		return h.StartAction(ctx, name, input)
	})
}

func (m *multiHandler) EndAction(ctx context.Context, output map[string]any, err error) {
	m.each(ctx, func(h Handler, ctx context.Context) {
		h.EndAction(ctx, output, err)
	})
}

func (m *multiHandler) AddEvent(ctx context.Context, kind string, data any) {
	m.each(ctx, func(h Handler, ctx context.Context) {
		h.AddEvent(ctx, kind, data)
	})
}

func (m *multiHandler) Finish(ctx context.Context) error {
	var errs []error
	for _, h := range m.handlers {
		if err := h.Finish(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
