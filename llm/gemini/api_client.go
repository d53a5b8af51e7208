package gemini

import (
	"context"

	genai "google.golang.org/genai"
)

// apiClient is the interface for Gemini API calls (unexported for encapsulation)
type apiClient interface {
	// GenerateContentStream generates a content stream without maintaining chat state
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) <-chan StreamResponse
}

// StreamResponse wraps the response and error from streaming
type StreamResponse struct {
	Resp *genai.GenerateContentResponse
	Err  error
}

// realAPIClient wraps the actual Gemini client for stateless operations
type realAPIClient struct {
	client *genai.Client
}

func (r *realAPIClient) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) <-chan StreamResponse {
	ch := make(chan StreamResponse)
	go func() {
		defer close(ch)
		for resp, err := range r.client.Models.GenerateContentStream(ctx, model, contents, config) {
			select {
			case ch <- StreamResponse{Resp: resp, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
