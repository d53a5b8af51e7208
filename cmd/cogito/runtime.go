package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/cogito/action/respond"
	"github.com/m-mizutani/cogito/action/webpage"
	"github.com/m-mizutani/cogito/decide"
	"github.com/m-mizutani/cogito/llm"
	"github.com/m-mizutani/cogito/mcp"
	"github.com/m-mizutani/cogito/trace"
	"github.com/m-mizutani/cogito/trace/gcs"
	tracelog "github.com/m-mizutani/cogito/trace/logger"
	traceotel "github.com/m-mizutani/cogito/trace/otel"
	"github.com/m-mizutani/goerr/v2"
)

// runtime holds everything a command needs to run cycles.
type runtime struct {
	thinker  *cogito.Thinker
	model    string
	repo     trace.Repository
	handlers []trace.Handler
	logger   *slog.Logger
	closers  []func() error
}

func newRuntime(ctx context.Context, cfg *config, logger *slog.Logger) (*runtime, error) {
	streamer, err := newStreamer(ctx, &cfg.Provider)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM client", goerr.V("provider", cfg.Provider.Name))
	}
	return buildRuntime(ctx, cfg, streamer, logger)
}

func buildRuntime(ctx context.Context, cfg *config, streamer llm.Streamer, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{
		model:  streamer.ModelName(),
		logger: logger,
	}

	respondAction, err := respond.New(streamer)
	if err != nil {
		return nil, err
	}

	actions := []cogito.Action{respondAction}
	if !cfg.WebPage.Disabled {
		var opts []webpage.Option
		if cfg.WebPage.MaxLength > 0 {
			opts = append(opts, webpage.WithMaxLength(cfg.WebPage.MaxLength))
		}
		if cfg.WebPage.Timeout > 0 {
			opts = append(opts, webpage.WithTimeout(cfg.WebPage.Timeout))
		}
		actions = append(actions, webpage.New(opts...))
	}

	registry, err := cogito.NewRegistry(actions...)
	if err != nil {
		return nil, err
	}

	for _, m := range cfg.MCP {
		client, err := connectMCP(ctx, &m)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, client.Close)

		if err := registry.RegisterSet(ctx, client); err != nil {
			_ = rt.Close()
			return nil, goerr.Wrap(err, "failed to register MCP tools", goerr.V("mcp", m.Name))
		}
		logger.Info("MCP server connected", "name", m.Name, "server", client.ServerName())
	}

	switch {
	case cfg.Trace.Dir != "":
		rt.repo = trace.NewFileRepository(cfg.Trace.Dir)
	case cfg.Trace.Bucket != "":
		repo, err := gcs.New(ctx, cfg.Trace.Bucket, gcs.WithPrefix(cfg.Trace.Prefix))
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.repo = repo
		rt.closers = append(rt.closers, repo.Close)
	}
	if cfg.Trace.Log {
		rt.handlers = append(rt.handlers, tracelog.New(tracelog.WithLogger(logger)))
	}
	if cfg.Trace.OTel {
		rt.handlers = append(rt.handlers, traceotel.New())
	}

	decider := decide.New(streamer,
		decide.WithInstructions(cfg.Instructions),
		decide.WithLogger(logger),
	)

	rt.thinker = cogito.New(decider, registry,
		cogito.WithLogger(logger),
		cogito.WithStallDetectors(cfg.Stall.detectors()...),
	)
	return rt, nil
}

func connectMCP(ctx context.Context, m *mcpConfig) (*mcp.Client, error) {
	opts := []mcp.Option{mcp.WithClientInfo("cogito", version)}
	if m.Name != "" {
		opts = append(opts, mcp.WithPrefix(m.Name))
	}

	if m.Command != "" {
		opts = append(opts, mcp.WithEnvVars(m.Env))
		return mcp.NewStdio(ctx, m.Command, m.Args, opts...)
	}
	if len(m.Headers) > 0 {
		opts = append(opts, mcp.WithHeaders(m.Headers))
	}
	return mcp.NewSSE(ctx, m.URL, opts...)
}

// traceOption returns the trace option for one cycle. Every cycle gets its own Recorder.
func (rt *runtime) traceOption(labels map[string]string) cogito.Option {
	handlers := append([]trace.Handler{}, rt.handlers...)
	if rt.repo != nil {
		handlers = append(handlers, trace.New(
			trace.WithRepository(rt.repo),
			trace.WithMetadata(trace.TraceMetadata{Model: rt.model, Labels: labels}),
			trace.WithLogger(rt.logger),
		))
	}

	switch len(handlers) {
	case 0:
		return cogito.WithTrace(nil)
	case 1:
		return cogito.WithTrace(handlers[0])
	default:
		return cogito.WithTrace(trace.Multi(handlers...))
	}
}

func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}
