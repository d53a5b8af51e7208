// Package decide implements cogito.Decider on top of a streaming LLM. The model answers with
// <title>, <reflection>, <action> and <input> tags which are parsed while the response streams.
package decide

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/cogito/llm"
	"github.com/m-mizutani/cogito/tagstream"
	"github.com/m-mizutani/cogito/trace"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrNoAction is returned when the response has no <action> content.
	ErrNoAction = errors.New("response has no action")

	// ErrInvalidInput is returned when <input> is not a JSON object.
	ErrInvalidInput = errors.New("invalid action input")
)

const (
	TagTitle      = "title"
	TagReflection = "reflection"
	TagAction     = "action"
	TagInput      = "input"

	// DefaultOutputLimit is the number of bytes of each step output shown to the model.
	DefaultOutputLimit = 4096
)

// Decider asks an LLM for the next action.
type Decider struct {
	streamer     llm.Streamer
	instructions string
	outputLimit  int
	logger       *slog.Logger
}

// Option configures a Decider.
type Option func(*Decider)

// WithInstructions appends free-form instructions to the system prompt.
func WithInstructions(instructions string) Option {
	return func(d *Decider) {
		d.instructions = instructions
	}
}

// WithOutputLimit sets how many bytes of each step input and output are rendered in the prompt.
// Zero or less disables truncation.
func WithOutputLimit(limit int) Option {
	return func(d *Decider) {
		d.outputLimit = limit
	}
}

// WithLogger sets the fallback logger used outside a cycle. Inside a cycle the cycle logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decider) {
		d.logger = logger
	}
}

// New creates a Decider.
func New(streamer llm.Streamer, options ...Option) *Decider {
	d := &Decider{
		streamer:    streamer,
		outputLimit: DefaultOutputLimit,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

func (d *Decider) loggerFrom(ctx context.Context) *slog.Logger {
	if cogito.CycleIDFromContext(ctx) != "" {
		return cogito.LoggerFromContext(ctx)
	}
	return d.logger
}

// Decide renders the prompt, streams the response through a tag parser and returns the decision.
// The reflection is forwarded to dctx.Progress while it streams.
func (d *Decider) Decide(ctx context.Context, dctx *cogito.DecisionContext) (*cogito.Decision, error) {
	logger := d.loggerFrom(ctx)

	system, err := buildSystemPrompt(dctx.Actions, d.instructions)
	if err != nil {
		return nil, err
	}
	user, err := buildUserPrompt(dctx, d.outputLimit)
	if err != nil {
		return nil, err
	}
	req := llm.UserText(system, user)

	h := trace.HandlerFrom(ctx)
	llmCtx := ctx
	if h != nil {
		llmCtx = h.StartLLMCall(ctx)
	}

	resp, decision, err := d.stream(llmCtx, req, dctx.Progress)

	if h != nil {
		data := &trace.LLMCallData{
			Model: d.streamer.ModelName(),
			Request: &trace.LLMRequest{
				SystemPrompt: system,
				Messages:     []trace.Message{{Role: string(llm.RoleUser), Content: user}},
			},
		}
		if resp != nil {
			data.InputTokens = resp.InputTokens
			data.OutputTokens = resp.OutputTokens
			data.Response = &trace.LLMResponse{Text: resp.Text, Chunks: resp.Chunks}
		}
		h.EndLLMCall(llmCtx, data, err)
	}

	if err != nil {
		return nil, err
	}

	logger.Debug("decide response parsed",
		"title", decision.Title,
		"action", decision.Action,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)
	return decision, nil
}

func (d *Decider) stream(ctx context.Context, req *llm.Request, progress cogito.ProgressSink) (*llm.Response, *cogito.Decision, error) {
	var reportErr error
	parser := tagstream.New(
		tagstream.WithHandler(TagReflection, func(text string) {
			if progress == nil || reportErr != nil {
				return
			}
			reportErr = progress.Report(ctx, text)
		}),
	)

	resp, err := llm.Collect(ctx, d.streamer, req, func(text string) error {
		if _, err := parser.Process(text); err != nil {
			return goerr.Wrap(err, "failed to parse decision stream")
		}
		if reportErr != nil {
			return goerr.Wrap(reportErr, "failed to report reflection")
		}
		return nil
	})
	if err != nil {
		return resp, nil, goerr.Wrap(err, "failed to stream decision", goerr.V("model", d.streamer.ModelName()))
	}

	if err := parser.Close(); err != nil {
		// a missing final close tag is common at the end of a stream
		d.loggerFrom(ctx).Debug("decision stream ended inside a tag", "error", err)
	}

	decision := &cogito.Decision{
		Title:      strings.TrimSpace(parser.Content(TagTitle)),
		Reflection: strings.TrimSpace(parser.Content(TagReflection)),
		Action:     strings.TrimSpace(parser.Content(TagAction)),
	}
	if decision.Action == "" {
		return resp, nil, goerr.Wrap(ErrNoAction, "model did not choose an action", goerr.V("response", resp.Text))
	}

	input, err := parseInput(parser.Content(TagInput))
	if err != nil {
		return resp, nil, err
	}
	decision.Input = input

	return resp, decision, nil
}

func parseInput(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	// some models wrap the JSON in a code fence
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	if raw == "" {
		return map[string]any{}, nil
	}

	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, goerr.Wrap(ErrInvalidInput, "input is not a JSON object", goerr.V("input", raw), goerr.V("cause", err.Error()))
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, nil
}

var _ cogito.Decider = &Decider{}
