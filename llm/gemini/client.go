package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/m-mizutani/cogito/llm"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

var (
	geminiPromptScope   = ctxlog.NewScope("gemini_prompt", ctxlog.EnabledBy("COGITO_LOGGING_GEMINI_PROMPT"))
	geminiResponseScope = ctxlog.NewScope("gemini_response", ctxlog.EnabledBy("COGITO_LOGGING_GEMINI_RESPONSE"))
)

const (
	DefaultModel = "gemini-2.5-flash"
)

// Client is a client for Gemini models, either through Vertex AI or the Gemini API.
type Client struct {
	apiClient apiClient

	model            string
	generationConfig *genai.GenerateContentConfig
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the model to use.
// Default: DefaultModel
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.model = modelName
	}
}

// WithTemperature sets the temperature parameter for text generation.
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.generationConfig.Temperature = &temp
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int32) Option {
	return func(c *Client) {
		c.generationConfig.MaxOutputTokens = maxTokens
	}
}

// WithThinkingBudget sets the thinking budget. Zero disables thinking.
func WithThinkingBudget(budget int32) Option {
	return func(c *Client) {
		c.generationConfig.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}
}

func newClient(options []Option) *Client {
	var budget int32 = 0

	client := &Client{
		model: DefaultModel,
		generationConfig: &genai.GenerateContentConfig{
			ThinkingConfig: &genai.ThinkingConfig{
				ThinkingBudget: &budget,
			},
		},
	}
	for _, option := range options {
		option(client)
	}
	return client
}

// New creates a client on the Vertex AI backend. It requires a project ID and location.
func New(ctx context.Context, projectID, location string, options ...Option) (*Client, error) {
	if projectID == "" {
		return nil, goerr.New("projectID is required")
	}
	if location == "" {
		return nil, goerr.New("location is required")
	}

	client := newClient(options)

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client", goerr.V("project", projectID), goerr.V("location", location))
	}

	client.apiClient = &realAPIClient{client: genaiClient}
	return client, nil
}

// NewWithAPIKey creates a client on the Gemini API backend.
func NewWithAPIKey(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("Gemini API key is required")
	}

	client := newClient(options)

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}

	client.apiClient = &realAPIClient{client: genaiClient}
	return client, nil
}

// ModelName returns the model used for completions.
func (c *Client) ModelName() string {
	return c.model
}

func (c *Client) buildRequest(req *llm.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	config := &genai.GenerateContentConfig{}
	*config = *c.generationConfig
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	return contents, config
}

// Stream sends the request and streams the generated text.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (<-chan *llm.Chunk, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	contents, config := c.buildRequest(req)
	if logger := ctxlog.From(ctx, geminiPromptScope); logger.Enabled(ctx, slog.LevelInfo) {
		logger.Info("Gemini prompt", "model", c.model, "system", req.System, "messages", req.Messages)
	}

	apiStream := c.apiClient.GenerateContentStream(ctx, c.model, contents, config)

	ch := make(chan *llm.Chunk)
	go func() {
		defer close(ch)
		// drain so the api client goroutine can exit on early return
		defer func() {
			for range apiStream {
			}
		}()

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

		for sr := range apiStream {
			if sr.Err != nil {
				if ctx.Err() != nil {
					return
				}
				opts := append(tokenLimitErrorOptions(sr.Err), goerr.V("model", c.model))
				send(&llm.Chunk{Err: goerr.Wrap(sr.Err, "failed to receive Gemini stream", opts...)})
				return
			}
			if sr.Resp == nil {
				continue
			}

			if usage := sr.Resp.UsageMetadata; usage != nil {
				inputTokens = int(usage.PromptTokenCount)
				outputTokens = int(usage.CandidatesTokenCount)
				if !send(&llm.Chunk{InputTokens: inputTokens, OutputTokens: outputTokens}) {
					return
				}
			}

			for _, candidate := range sr.Resp.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part == nil || part.Text == "" || part.Thought {
						continue
					}
					text.WriteString(part.Text)
					if !send(&llm.Chunk{Text: part.Text}) {
						return
					}
				}
			}
		}

		ctxlog.From(ctx, geminiResponseScope).Info("Gemini streaming response",
			"model", c.model,
			"input_tokens", inputTokens,
			"output_tokens", outputTokens,
			"text", text.String(),
		)
	}()

	return ch, nil
}

// tokenLimitErrorOptions tags a 400 APIError reporting that the input exceeds the token limit.
func tokenLimitErrorOptions(err error) []goerr.Option {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}
	if apiErr.Code != http.StatusBadRequest {
		return nil
	}
	if strings.Contains(strings.ToLower(apiErr.Message), "exceeds the maximum number of tokens") {
		return []goerr.Option{goerr.Tag(llm.ErrTagTokenExceeded)}
	}
	return nil
}

var _ llm.Streamer = &Client{}
