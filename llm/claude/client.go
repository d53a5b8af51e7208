package claude

import (
	"context"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	"github.com/m-mizutani/cogito/llm"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

var (
	claudePromptScope   = ctxlog.NewScope("claude_prompt", ctxlog.EnabledBy("COGITO_LOGGING_CLAUDE_PROMPT"))
	claudeResponseScope = ctxlog.NewScope("claude_response", ctxlog.EnabledBy("COGITO_LOGGING_CLAUDE_RESPONSE"))
)

const (
	DefaultModel = "claude-sonnet-4-20250514"

	// DefaultVertexModel is the Claude model name used through Vertex AI.
	DefaultVertexModel = "claude-sonnet-4@20250514"
)

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature controls randomness in the output.
	Temperature float64

	// TopP controls diversity via nucleus sampling.
	TopP float64

	// MaxTokens limits the number of tokens to generate.
	MaxTokens int64
}

// Client is a client for the Claude API.
type Client struct {
	apiClient apiClient

	model   string
	baseURL string
	params  generationParameters
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the model to use.
// Default: DefaultModel (DefaultVertexModel for NewWithVertex)
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.model = modelName
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTemperature sets the temperature parameter for text generation.
// Range: 0.0 to 1.0
// Default: 0.7
func WithTemperature(temp float64) Option {
	return func(c *Client) {
		c.params.Temperature = temp
	}
}

// WithTopP sets the top_p parameter for text generation.
// Default: 1.0
func WithTopP(topP float64) Option {
	return func(c *Client) {
		c.params.TopP = topP
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
// Default: 4096
func WithMaxTokens(maxTokens int64) Option {
	return func(c *Client) {
		c.params.MaxTokens = maxTokens
	}
}

func newClient(model string, options []Option) *Client {
	client := &Client{
		model: model,
		params: generationParameters{
			Temperature: 0.7,
			TopP:        1.0,
			MaxTokens:   4096,
		},
	}
	for _, opt := range options {
		opt(client)
	}
	return client
}

// New creates a new client for the Claude API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("Claude API key is required")
	}

	client := newClient(DefaultModel, options)

	reqOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if client.baseURL != "" {
		reqOptions = append(reqOptions, option.WithBaseURL(client.baseURL))
	}

	anthropicClient := anthropic.NewClient(reqOptions...)
	client.apiClient = &realAPIClient{client: &anthropicClient}

	return client, nil
}

// NewWithVertex creates a client for Claude models served by Vertex AI. Credentials come from
// Google application default credentials.
func NewWithVertex(ctx context.Context, region, projectID string, options ...Option) (*Client, error) {
	if region == "" {
		return nil, goerr.New("region is required")
	}
	if projectID == "" {
		return nil, goerr.New("projectID is required")
	}

	client := newClient(DefaultVertexModel, options)

	anthropicClient := anthropic.NewClient(
		option.WithAPIKey("dummy"), // Not used for Vertex AI
		vertex.WithGoogleAuth(ctx, region, projectID),
	)
	client.apiClient = &realAPIClient{client: &anthropicClient}

	return client, nil
}

// ModelName returns the model used for completions.
func (c *Client) ModelName() string {
	return c.model
}

func (c *Client) buildRequest(req *llm.Request) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == llm.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.params.MaxTokens,
		Temperature: anthropic.Float(c.params.Temperature),
		TopP:        anthropic.Float(c.params.TopP),
		Messages:    messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

// Stream sends the request and streams the generated text.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan *llm.Chunk, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := c.buildRequest(req)
	if logger := ctxlog.From(ctx, claudePromptScope); logger.Enabled(ctx, slog.LevelInfo) {
		logger.Info("Claude prompt", "model", c.model, "system", req.System, "messages", req.Messages)
	}

	stream := c.apiClient.MessagesNewStreaming(ctx, params)
	if stream == nil {
		return nil, goerr.New("failed to create message stream", goerr.V("model", c.model))
	}

	ch := make(chan *llm.Chunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		var (
			text         strings.Builder
			inputTokens  int
			outputTokens int
		)

		send := func(chunk *llm.Chunk) bool {
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next() {
			event := stream.Current()

			switch event.Type {
			case "message_start":
				inputTokens = int(event.Message.Usage.InputTokens)
				if !send(&llm.Chunk{InputTokens: inputTokens}) {
					return
				}

			case "content_block_delta":
				deltaEvent := event.AsContentBlockDeltaEvent()
				if deltaEvent.Delta.Type != "text_delta" {
					continue
				}
				delta := deltaEvent.Delta.AsTextContentBlockDelta().Text
				if delta == "" {
					continue
				}
				text.WriteString(delta)
				if !send(&llm.Chunk{Text: delta}) {
					return
				}

			case "message_delta":
				outputTokens = int(event.Usage.OutputTokens)
				if !send(&llm.Chunk{InputTokens: inputTokens, OutputTokens: outputTokens}) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() != nil {
				return
			}
			opts := append(tokenLimitErrorOptions(err), goerr.V("model", c.model))
			send(&llm.Chunk{Err: goerr.Wrap(err, "failed to receive Claude stream", opts...)})
			return
		}

		ctxlog.From(ctx, claudeResponseScope).Info("Claude streaming response",
			"model", c.model,
			"input_tokens", inputTokens,
			"output_tokens", outputTokens,
			"text", text.String(),
		)
	}()

	return ch, nil
}

// tokenLimitErrorOptions tags a 400 response that says the prompt is too long.
func tokenLimitErrorOptions(err error) []goerr.Option {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "400") && strings.Contains(msg, "prompt is too long") {
		return []goerr.Option{goerr.Tag(llm.ErrTagTokenExceeded)}
	}
	return nil
}

var _ llm.Streamer = &Client{}
