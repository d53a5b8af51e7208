package decide_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/cogito/decide"
	"github.com/m-mizutani/cogito/llm"
	"github.com/m-mizutani/cogito/mock"
	"github.com/m-mizutani/cogito/trace"
	"github.com/m-mizutani/gt"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func chunkedStreamer(chunks ...string) *mock.StreamerMock {
	return &mock.StreamerMock{
		ModelNameFunc: func() string { return "mock-model" },
		StreamFunc: func(ctx context.Context, req *llm.Request) (<-chan *llm.Chunk, error) {
			ch := make(chan *llm.Chunk)
			go func() {
				defer close(ch)
				for _, c := range chunks {
					select {
					case ch <- &llm.Chunk{Text: c}:
					case <-ctx.Done():
						return
					}
				}
				select {
				case ch <- &llm.Chunk{InputTokens: 100, OutputTokens: 20}:
				case <-ctx.Done():
				}
			}()
			return ch, nil
		},
	}
}

// splitEvery cuts s into pieces of n bytes.
func splitEvery(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}

const response = `<title>Search the docs</title>
<reflection>The user asks about Go. I should search first.</reflection>
<action>search</action>
<input>{"query": "golang generics"}</input>`

func testDecisionContext() *cogito.DecisionContext {
	return &cogito.DecisionContext{
		CycleID: "cycle-1",
		Message: "how do generics work in go?",
		Actions: []cogito.ActionSpec{
			{
				Name:        "search",
				Description: "Search the web",
				Parameters:  map[string]*cogito.Parameter{"query": {Type: cogito.TypeString}},
				Required:    []string{"query"},
			},
			{Name: "respond_to_user", Description: "Answer the user", Final: true},
		},
		Iteration: 1,
	}
}

func TestDecide(t *testing.T) {
	for _, size := range []int{1, 3, 7, len(response)} {
		streamer := chunkedStreamer(splitEvery(response, size)...)

		var reflection strings.Builder
		dctx := testDecisionContext()
		dctx.Progress = cogito.ProgressFunc(func(ctx context.Context, msg string) error {
			reflection.WriteString(msg)
			return nil
		})

		d, err := decide.New(streamer).Decide(context.Background(), dctx)
		gt.NoError(t, err)
		gt.Equal(t, d.Title, "Search the docs")
		gt.Equal(t, d.Action, "search")
		gt.Equal(t, d.Input["query"], "golang generics")
		gt.Equal(t, reflection.String(), "The user asks about Go. I should search first.")

		calls := streamer.StreamCalls()
		gt.A(t, calls).Length(1)
		gt.S(t, calls[0].Req.System).Contains("### search")
		gt.S(t, calls[0].Req.System).Contains("respond_to_user")
		gt.S(t, calls[0].Req.Messages[0].Content).Contains("how do generics work in go?")
	}
}

func TestDecideUnterminatedInput(t *testing.T) {
	streamer := chunkedStreamer("<title>t</title><action>respond_to_user</action><input>{}")

	d, err := decide.New(streamer).Decide(context.Background(), testDecisionContext())
	gt.NoError(t, err)
	gt.Equal(t, d.Action, "respond_to_user")
	gt.Equal(t, len(d.Input), 0)
}

func TestDecideNoAction(t *testing.T) {
	streamer := chunkedStreamer("<title>t</title><reflection>nothing to do</reflection>")

	_, err := decide.New(streamer).Decide(context.Background(), testDecisionContext())
	gt.True(t, errors.Is(err, decide.ErrNoAction))
}

func TestDecideInvalidInput(t *testing.T) {
	streamer := chunkedStreamer("<action>search</action><input>[1, 2]</input>")

	_, err := decide.New(streamer).Decide(context.Background(), testDecisionContext())
	gt.True(t, errors.Is(err, decide.ErrInvalidInput))
}

func TestDecideMismatchedTag(t *testing.T) {
	streamer := chunkedStreamer("<title>t</action>", "<action>search</action>")

	_, err := decide.New(streamer).Decide(context.Background(), testDecisionContext())
	gt.Error(t, err)
	gt.A(t, streamer.StreamCalls()).Length(1)
}

func TestDecideStreamError(t *testing.T) {
	streamer := &mock.StreamerMock{
		ModelNameFunc: func() string { return "mock-model" },
		StreamFunc: func(ctx context.Context, req *llm.Request) (<-chan *llm.Chunk, error) {
			ch := make(chan *llm.Chunk, 2)
			ch <- &llm.Chunk{Text: "<title>"}
			ch <- &llm.Chunk{Err: errors.New("connection reset")}
			close(ch)
			return ch, nil
		},
	}

	_, err := decide.New(streamer).Decide(context.Background(), testDecisionContext())
	gt.True(t, errors.Is(err, llm.ErrStreamFailed))
}

func TestDecideProgressErrorStopsStream(t *testing.T) {
	streamer := chunkedStreamer(splitEvery(response, 2)...)
	errGone := errors.New("client gone")

	dctx := testDecisionContext()
	dctx.Progress = cogito.ProgressFunc(func(ctx context.Context, msg string) error {
		return errGone
	})

	_, err := decide.New(streamer).Decide(context.Background(), dctx)
	gt.True(t, errors.Is(err, errGone))
}

func TestDecideCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dctx := testDecisionContext()
	dctx.Progress = cogito.ProgressFunc(func(ctx context.Context, msg string) error {
		cancel()
		return nil
	})

	_, err := decide.New(chunkedStreamer(splitEvery(response, 4)...)).Decide(ctx, dctx)
	gt.True(t, errors.Is(err, context.Canceled))
}

func TestDecideRecordsLLMCall(t *testing.T) {
	rec := trace.New()
	ctx := rec.StartCycle(context.Background(), "cycle-1", "msg")
	ctx = trace.WithHandler(ctx, rec)
	decisionCtx := rec.StartDecision(ctx, 1)

	_, err := decide.New(chunkedStreamer(response)).Decide(decisionCtx, testDecisionContext())
	gt.NoError(t, err)

	decision := rec.Trace().RootSpan.Children[0]
	gt.A(t, decision.Children).Length(1)
	call := decision.Children[0].LLMCall
	gt.Equal(t, call.Model, "mock-model")
	gt.Equal(t, call.InputTokens, 100)
	gt.Equal(t, call.OutputTokens, 20)
	gt.Equal(t, call.Response.Text, response)
	gt.S(t, call.Request.SystemPrompt).Contains("<action>")
}

func TestParseInput(t *testing.T) {
	in, err := decide.ParseInput("")
	gt.NoError(t, err)
	gt.Equal(t, len(in), 0)

	in, err = decide.ParseInput("```json\n{\"a\": 1}\n```")
	gt.NoError(t, err)
	gt.Equal[any](t, in["a"], float64(1))

	in, err = decide.ParseInput("null")
	gt.NoError(t, err)
	gt.Value(t, in).NotNil()

	_, err = decide.ParseInput("{broken")
	gt.True(t, errors.Is(err, decide.ErrInvalidInput))
}

func TestBuildUserPrompt(t *testing.T) {
	dctx := testDecisionContext()
	dctx.Iteration = 2
	dctx.Steps = []cogito.Step{{
		Decision: &cogito.Decision{Title: "Search", Action: "search", Input: map[string]any{"query": "go"}},
		Output:   map[string]any{"result": strings.Repeat("x", 100)},
	}}

	prompt, err := decide.BuildUserPrompt(dctx, 20)
	gt.NoError(t, err)
	gt.S(t, prompt).Contains("### Step 1: Search")
	gt.S(t, prompt).Contains("...(truncated)")
	gt.S(t, prompt).Contains("iteration 2")
}

func TestBuildUserPromptTruncatesOnRuneBoundary(t *testing.T) {
	dctx := testDecisionContext()
	dctx.Steps = []cogito.Step{{
		Decision: &cogito.Decision{Title: "Search", Action: "search"},
		Output:   map[string]any{"result": strings.Repeat("日本語", 20)},
	}}

	// every limit lands at a different offset inside a three-byte rune
	for limit := 12; limit < 15; limit++ {
		prompt, err := decide.BuildUserPrompt(dctx, limit)
		gt.NoError(t, err)
		gt.True(t, utf8.ValidString(prompt))
		gt.S(t, prompt).Contains("...(truncated)")
	}
}

func TestBuildSystemPromptInstructions(t *testing.T) {
	prompt, err := decide.BuildSystemPrompt(testDecisionContext().Actions, "Always answer in Japanese.")
	gt.NoError(t, err)
	gt.S(t, prompt).Contains("Always answer in Japanese.")
	gt.S(t, prompt).Contains("choose `respond_to_user`")
	gt.S(t, prompt).Contains(`"query"`)
}
