package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/m-mizutani/cogito/llm"
	"github.com/m-mizutani/cogito/trace"
)

type (
	Config      = config
	ResultView  = resultView
	TraceConfig = traceConfig
)

var (
	LoadConfig      = loadConfig
	DefaultConfig   = defaultConfig
	ParseBatchInput = parseBatchInput
	WriteBatch      = writeBatch
	ReadMessage     = readMessage
	ParseLabels     = parseLabels
	WriteResult     = writeResult
	NewResultView   = newResultView
	NewLogger       = newLogger
	WriteTraceList  = writeTraceList
	OpenSource      = openSource
	NewApp          = newApp
)

func (c *config) Validate() error { return c.validate() }

// Runtime wraps runtime for external tests.
type Runtime struct {
	rt *runtime
}

func BuildRuntime(ctx context.Context, cfg *Config, streamer llm.Streamer, logger *slog.Logger) (*Runtime, error) {
	rt, err := buildRuntime(ctx, cfg, streamer, logger)
	if err != nil {
		return nil, err
	}
	return &Runtime{rt: rt}, nil
}

func (x *Runtime) RunBatch(ctx context.Context, messages []string, parallel int) ([]*ResultView, error) {
	return runBatch(ctx, x.rt, messages, parallel)
}

func (x *Runtime) ActionNames() []string {
	return x.rt.thinker.Registry().Names()
}

func (x *Runtime) Close() error {
	return x.rt.Close()
}

// Merge applies flag values over cfg as if the named flags were set.
func Merge(cfg *Config, provider, model, traceDir string, set ...string) {
	g := &globals{}
	g.provider.Name = provider
	g.provider.Model = model
	g.trace.Dir = traceDir
	isSet := map[string]bool{}
	for _, s := range set {
		isSet[s] = true
	}
	g.merge(cfg, func(name string) bool { return isSet[name] })
}

func NewTraceHandler(src trace.Source) http.Handler {
	return newServer(src).handler()
}

