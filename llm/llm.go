// Package llm is the provider-neutral streaming surface the decider and actions talk to.
// Provider adapters live in sub packages (openai, claude, gemini) and all implement Streamer.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrEmptyRequest is returned when a request has no messages.
	ErrEmptyRequest = errors.New("request has no messages")

	// ErrStreamFailed wraps an error reported in the middle of a stream.
	ErrStreamFailed = errors.New("stream failed")
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion request.
type Request struct {
	// System is the system prompt. It is optional.
	System string
	// Messages is the conversation, oldest first. It must not be empty.
	Messages []Message
}

// Validate checks that the request can be sent.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return goerr.Wrap(ErrEmptyRequest, "no messages")
	}
	for i, m := range r.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return goerr.New("invalid message role", goerr.V("index", i), goerr.V("role", m.Role))
		}
	}
	return nil
}

// UserText is a shorthand for a request with a single user message.
func UserText(system, text string) *Request {
	return &Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: text}},
	}
}

// Chunk is one piece of a streamed response. A chunk with Err set is the last one sent.
// Token counts are cumulative and may only be filled on the final chunks.
type Chunk struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Err          error
}

// Streamer generates a response for a request as a stream of chunks. The channel is closed
// when the response is complete, the context is canceled, or an error chunk was sent.
type Streamer interface {
	Stream(ctx context.Context, req *Request) (<-chan *Chunk, error)
	ModelName() string
}

// Response is a fully collected stream.
type Response struct {
	Text         string
	Chunks       int
	InputTokens  int
	OutputTokens int
}

// Collect drains a stream. onText, if not nil, receives every non-empty text chunk while the
// stream is read.
func Collect(ctx context.Context, s Streamer, req *Request, onText func(string) error) (*Response, error) {
	ch, err := s.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		text strings.Builder
		resp Response
	)
	for chunk := range ch {
		if chunk.Err != nil {
			resp.Text = text.String()
			return &resp, goerr.Wrap(ErrStreamFailed, "stream reported an error",
				goerr.V("model", s.ModelName()),
				goerr.V("cause", chunk.Err.Error()),
			)
		}

		if chunk.InputTokens > 0 {
			resp.InputTokens = chunk.InputTokens
		}
		if chunk.OutputTokens > 0 {
			resp.OutputTokens = chunk.OutputTokens
		}
		if chunk.Text == "" {
			continue
		}

		resp.Chunks++
		text.WriteString(chunk.Text)
		if onText != nil {
			if err := onText(chunk.Text); err != nil {
				// keep draining so the producer goroutine can exit
				for range ch {
				}
				resp.Text = text.String()
				return &resp, err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		resp.Text = text.String()
		return &resp, goerr.Wrap(err, "stream interrupted", goerr.V("model", s.ModelName()))
	}

	resp.Text = text.String()
	return &resp, nil
}

// ErrTagTokenExceeded tags errors caused by a prompt that does not fit the model's context window.
var ErrTagTokenExceeded = goerr.NewTag("token_exceeded")
