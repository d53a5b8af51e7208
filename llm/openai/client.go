package openai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/m-mizutani/cogito/llm"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
)

var (
	// openaiPromptScope is the logging scope for OpenAI prompts
	openaiPromptScope = ctxlog.NewScope("openai_prompt", ctxlog.EnabledBy("COGITO_LOGGING_OPENAI_PROMPT"))

	// openaiResponseScope is the logging scope for OpenAI responses
	openaiResponseScope = ctxlog.NewScope("openai_response", ctxlog.EnabledBy("COGITO_LOGGING_OPENAI_RESPONSE"))
)

const (
	DefaultModel = "gpt-4.1"
)

// Client streams chat completions from the OpenAI API (or any compatible endpoint set by
// WithBaseURL).
type Client struct {
	apiClient apiClient

	model       string
	baseURL     string
	temperature float32
	maxTokens   int
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the model to use for chat completions. See default model in [DefaultModel].
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.model = modelName
	}
}

// WithBaseURL sets a custom base URL for an OpenAI compatible API.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTemperature sets the sampling temperature. Zero leaves the API default.
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.temperature = temp
	}
}

// WithMaxTokens limits the number of tokens to generate. Zero leaves the API default.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		c.maxTokens = maxTokens
	}
}

// New creates a new client for the OpenAI API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("OpenAI API key is required")
	}

	client := &Client{
		model: DefaultModel,
	}
	for _, option := range options {
		option(client)
	}

	config := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		config.BaseURL = client.baseURL
	}
	client.apiClient = &realAPIClient{client: openai.NewClientWithConfig(config)}

	return client, nil
}

// ModelName returns the model used for completions.
func (c *Client) ModelName() string {
	return c.model
}

func (c *Client) buildRequest(req *llm.Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == llm.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
}

func logPrompt(ctx context.Context, req openai.ChatCompletionRequest) {
	logger := ctxlog.From(ctx, openaiPromptScope)
	if !logger.Enabled(ctx, slog.LevelInfo) {
		return
	}

	messages := make([]map[string]string, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, map[string]string{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}
	logger.Info("OpenAI prompt", "model", req.Model, "messages", messages)
}

// Stream sends the request and streams the generated text.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan *llm.Chunk, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	openaiReq := c.buildRequest(req)
	logPrompt(ctx, openaiReq)

	stream, err := c.apiClient.CreateChatCompletionStream(ctx, openaiReq)
	if err != nil {
		opts := append(tokenLimitErrorOptions(err), goerr.V("model", c.model))
		return nil, goerr.Wrap(err, "failed to create chat completion stream", opts...)
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

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				opts := append(tokenLimitErrorOptions(err), goerr.V("model", c.model))
				send(&llm.Chunk{Err: goerr.Wrap(err, "failed to receive chat completion stream", opts...)})
				return
			}

			// usage arrives in a final chunk without choices
			if resp.Usage != nil {
				inputTokens = resp.Usage.PromptTokens
				outputTokens = resp.Usage.CompletionTokens
				if !send(&llm.Chunk{InputTokens: inputTokens, OutputTokens: outputTokens}) {
					return
				}
			}

			if len(resp.Choices) == 0 {
				continue
			}

			if delta := resp.Choices[0].Delta.Content; delta != "" {
				text.WriteString(delta)
				if !send(&llm.Chunk{Text: delta}) {
					return
				}
			}
		}

		ctxlog.From(ctx, openaiResponseScope).Info("OpenAI streaming response",
			"model", c.model,
			"usage", map[string]any{
				"prompt_tokens":     inputTokens,
				"completion_tokens": outputTokens,
			},
			"text", text.String(),
		)
	}()

	return ch, nil
}

// tokenLimitErrorOptions returns a goerr tag option when err reports that the prompt exceeded the
// context window: an *openai.APIError of type "invalid_request_error" with code
// "context_length_exceeded".
func tokenLimitErrorOptions(err error) []goerr.Option {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}

	if apiErr.Type != "invalid_request_error" {
		return nil
	}

	codeStr, ok := apiErr.Code.(string)
	if !ok {
		return nil
	}

	if codeStr == "context_length_exceeded" {
		return []goerr.Option{goerr.Tag(llm.ErrTagTokenExceeded)}
	}

	return nil
}

var _ llm.Streamer = &Client{}
