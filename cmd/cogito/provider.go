package main

import (
	"context"

	"github.com/m-mizutani/cogito/llm"
	"github.com/m-mizutani/cogito/llm/claude"
	"github.com/m-mizutani/cogito/llm/gemini"
	"github.com/m-mizutani/cogito/llm/openai"
	"github.com/m-mizutani/goerr/v2"
)

func newStreamer(ctx context.Context, cfg *providerConfig) (llm.Streamer, error) {
	switch cfg.Name {
	case "openai":
		var opts []openai.Option
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Temperature > 0 {
			opts = append(opts, openai.WithTemperature(float32(cfg.Temperature)))
		}
		return asStreamer(openai.New(ctx, cfg.APIKey, opts...))

	case "claude":
		var opts []claude.Option
		if cfg.Model != "" {
			opts = append(opts, claude.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, claude.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Temperature > 0 {
			opts = append(opts, claude.WithTemperature(cfg.Temperature))
		}
		if cfg.APIKey == "" && cfg.Project != "" {
			return asStreamer(claude.NewWithVertex(ctx, cfg.Location, cfg.Project, opts...))
		}
		return asStreamer(claude.New(ctx, cfg.APIKey, opts...))

	case "gemini":
		var opts []gemini.Option
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		if cfg.Temperature > 0 {
			opts = append(opts, gemini.WithTemperature(float32(cfg.Temperature)))
		}
		if cfg.APIKey != "" {
			return asStreamer(gemini.NewWithAPIKey(ctx, cfg.APIKey, opts...))
		}
		return asStreamer(gemini.New(ctx, cfg.Project, cfg.Location, opts...))
	}

	return nil, goerr.New("unknown provider", goerr.V("provider", cfg.Name))
}

func asStreamer(s llm.Streamer, err error) (llm.Streamer, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
