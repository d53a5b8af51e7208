// Package respond provides the respond_to_user finalize action. The model writes the answer as
// free text, then the sentinel and a one-line JSON object with follow-up suggestions.
package respond

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"text/template"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/cogito/llm"
	"github.com/m-mizutani/cogito/sentinel"
	"github.com/m-mizutani/cogito/trace"
	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ActionName is the name the decider uses to finish a cycle.
const ActionName = "respond_to_user"

const followUpSchema = `{
  "type": "object",
  "properties": {
    "follow_ups": {
      "type": "array",
      "items": {"type": "string"}
    }
  },
  "required": ["follow_ups"]
}`

//go:embed prompt.md
var promptTemplate string

var promptTmpl = template.Must(template.New("respond").Parse(promptTemplate))

type promptData struct {
	Message  string
	Focus    string
	Steps    []string
	Sentinel string
}

// Action answers the user and ends the cycle.
type Action struct {
	streamer llm.Streamer
	schema   *jsonschema.Schema
	system   string
}

// Option configures an Action.
type Option func(*Action)

// WithSystemPrompt sets the system prompt of the answer request.
func WithSystemPrompt(prompt string) Option {
	return func(a *Action) {
		a.system = prompt
	}
}

// New creates the respond_to_user action.
func New(streamer llm.Streamer, options ...Option) (*Action, error) {
	schema, err := sentinel.CompileSchema(followUpSchema)
	if err != nil {
		return nil, err
	}

	a := &Action{
		streamer: streamer,
		schema:   schema,
		system:   "You are a helpful assistant. Answer precisely, using only the information gathered in the steps.",
	}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// Spec implements cogito.Action.
func (a *Action) Spec() cogito.ActionSpec {
	return cogito.ActionSpec{
		Name:        ActionName,
		Description: "Write the final answer to the user. Use it once enough information is gathered, or when no other action helps.",
		Parameters: map[string]*cogito.Parameter{
			"focus": {
				Type:        cogito.TypeString,
				Description: "What the answer should focus on",
			},
		},
		Final: true,
	}
}

func (a *Action) buildPrompt(actx *cogito.ActionContext) (string, error) {
	data := promptData{
		Message:  actx.Message,
		Sentinel: sentinel.DefaultSentinel,
	}
	if focus, ok := actx.Input()["focus"].(string); ok {
		data.Focus = focus
	}
	for _, step := range actx.Steps {
		if step.Decision == nil || step.Output == nil {
			continue
		}
		raw, err := json.Marshal(step.Output)
		if err != nil {
			return "", goerr.Wrap(err, "failed to marshal step output", goerr.V("action", step.Decision.Action))
		}
		data.Steps = append(data.Steps, step.Decision.Action+": "+string(raw))
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render respond prompt")
	}
	return buf.String(), nil
}

// Execute streams the answer body to the progress sink and returns
// {"answer": string, "follow_ups": []string}.
func (a *Action) Execute(ctx context.Context, actx *cogito.ActionContext) (map[string]any, error) {
	logger := cogito.LoggerFromContext(ctx)

	prompt, err := a.buildPrompt(actx)
	if err != nil {
		return nil, err
	}
	req := llm.UserText(a.system, prompt)

	var reportErr error
	splitter := sentinel.New(func(body string) {
		if reportErr == nil {
			reportErr = actx.Report(ctx, "%s", body)
		}
	}, sentinel.WithSchema(a.schema), sentinel.WithLogger(logger))

	h := trace.HandlerFrom(ctx)
	llmCtx := ctx
	if h != nil {
		llmCtx = h.StartLLMCall(ctx)
	}

	resp, err := llm.Collect(llmCtx, a.streamer, req, func(text string) error {
		splitter.Process(text)
		return reportErr
	})

	if h != nil {
		data := &trace.LLMCallData{
			Model: a.streamer.ModelName(),
			Request: &trace.LLMRequest{
				SystemPrompt: a.system,
				Messages:     []trace.Message{{Role: string(llm.RoleUser), Content: prompt}},
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
		return nil, goerr.Wrap(err, "failed to stream answer")
	}

	result, err := splitter.End()
	if reportErr != nil {
		return nil, goerr.Wrap(reportErr, "failed to report answer")
	}

	followUps := []string{}
	switch {
	case err == nil:
		var tail struct {
			FollowUps []string `json:"follow_ups"`
		}
		if err := result.Decode(&tail); err != nil {
			return nil, err
		}
		if tail.FollowUps != nil {
			followUps = tail.FollowUps
		}

	case errors.Is(err, sentinel.ErrSentinelNotFound), errors.Is(err, sentinel.ErrEmptyJSON):
		logger.Debug("answer has no follow-up tail", "error", err)

	default:
		return nil, goerr.Wrap(err, "failed to parse follow-ups", goerr.V("answer", result.Body))
	}

	return map[string]any{
		"answer":     result.Body,
		"follow_ups": followUps,
	}, nil
}

var _ cogito.Action = &Action{}
