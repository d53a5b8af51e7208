package gemini_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/m-mizutani/cogito/llm"
	"github.com/m-mizutani/cogito/llm/gemini"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type fakeAPIClient struct {
	responses []gemini.StreamResponse

	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
}

func (f *fakeAPIClient) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) <-chan gemini.StreamResponse {
	f.gotModel = model
	f.gotContents = contents
	f.gotConfig = config

	ch := make(chan gemini.StreamResponse)
	go func() {
		defer close(ch)
		for _, r := range f.responses {
			select {
			case ch <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

var _ gemini.APIClient = &fakeAPIClient{}

func textResponse(text string) gemini.StreamResponse {
	return gemini.StreamResponse{Resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
		}},
	}}
}

func TestNewValidation(t *testing.T) {
	_, err := gemini.New(context.Background(), "", "us-central1")
	gt.Error(t, err)
	_, err = gemini.New(context.Background(), "project", "")
	gt.Error(t, err)
	_, err = gemini.NewWithAPIKey(context.Background(), "")
	gt.Error(t, err)
}

func TestStream(t *testing.T) {
	fake := &fakeAPIClient{responses: []gemini.StreamResponse{
		textResponse("Hel"),
		{Resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{{Text: "thinking...", Thought: true}}},
			}},
		}},
		textResponse("lo"),
		{Resp: &genai.GenerateContentResponse{
			UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
				PromptTokenCount:     9,
				CandidatesTokenCount: 2,
			},
		}},
	}}
	client := gemini.NewWithAPIClient(fake, gemini.WithModel("gemini-test"))

	resp, err := llm.Collect(context.Background(), client, &llm.Request{
		System: "be brief",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hello"},
			{Role: llm.RoleUser, Content: "again"},
		},
	}, nil)
	gt.NoError(t, err)
	gt.Equal(t, resp.Text, "Hello")
	gt.Equal(t, resp.InputTokens, 9)
	gt.Equal(t, resp.OutputTokens, 2)

	gt.Equal(t, fake.gotModel, "gemini-test")
	gt.A(t, fake.gotContents).Length(3)
	gt.Equal(t, fake.gotContents[1].Role, genai.RoleModel)
	gt.Equal(t, fake.gotConfig.SystemInstruction.Parts[0].Text, "be brief")
}

func TestStreamError(t *testing.T) {
	apiErr := genai.APIError{Code: 400, Message: "The input token count exceeds the maximum number of tokens allowed"}
	fake := &fakeAPIClient{responses: []gemini.StreamResponse{
		textResponse("partial"),
		{Err: apiErr},
	}}
	client := gemini.NewWithAPIClient(fake)

	ch, err := client.Stream(context.Background(), llm.UserText("", "hi"))
	gt.NoError(t, err)

	var last *llm.Chunk
	for chunk := range ch {
		last = chunk
	}
	gt.Value(t, last).NotNil()
	gt.Error(t, last.Err)
	gt.True(t, goerr.HasTag(last.Err, llm.ErrTagTokenExceeded))
}

func TestStreamCanceled(t *testing.T) {
	fake := &fakeAPIClient{responses: []gemini.StreamResponse{
		textResponse("a"), textResponse("b"), textResponse("c"),
	}}
	client := gemini.NewWithAPIClient(fake)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := client.Stream(ctx, llm.UserText("", "hi"))
	gt.NoError(t, err)

	<-ch
	cancel()
	for range ch {
	}
}

func TestTokenLimitErrorOptions(t *testing.T) {
	gt.A(t, gemini.TokenLimitErrorOptions(nil)).Length(0)
	gt.A(t, gemini.TokenLimitErrorOptions(errors.New("boom"))).Length(0)
	gt.A(t, gemini.TokenLimitErrorOptions(genai.APIError{Code: 500, Message: "exceeds the maximum number of tokens"})).Length(0)
	gt.A(t, gemini.TokenLimitErrorOptions(genai.APIError{Code: 400, Message: "The input token count exceeds the maximum number of tokens allowed (1048576)."})).Length(1)
}

func TestGeminiStreamLive(t *testing.T) {
	projectID, ok := os.LookupEnv("TEST_GCP_PROJECT_ID")
	if !ok {
		t.Skip("TEST_GCP_PROJECT_ID is not set")
	}
	location, ok := os.LookupEnv("TEST_GCP_LOCATION")
	if !ok {
		t.Skip("TEST_GCP_LOCATION is not set")
	}

	ctx := context.Background()
	client, err := gemini.New(ctx, projectID, location)
	gt.NoError(t, err)

	resp, err := llm.Collect(ctx, client, llm.UserText("", "Say hello in one word"), nil)
	gt.NoError(t, err)
	gt.Value(t, len(resp.Text)).NotEqual(0)
}
