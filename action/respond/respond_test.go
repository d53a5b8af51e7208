package respond_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/cogito/action/respond"
	"github.com/m-mizutani/cogito/llm"
	"github.com/m-mizutani/cogito/mock"
	"github.com/m-mizutani/cogito/sentinel"
	"github.com/m-mizutani/cogito/trace"
	"github.com/m-mizutani/gt"
)

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
			}()
			return ch, nil
		},
	}
}

func splitEvery(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}

func newActionContext(progress cogito.ProgressSink) *cogito.ActionContext {
	return &cogito.ActionContext{
		CycleID: "cycle-1",
		Message: "what is the capital of France?",
		Decision: &cogito.Decision{
			Action: respond.ActionName,
			Input:  map[string]any{"focus": "geography"},
		},
		Steps: []cogito.Step{
			{
				Decision: &cogito.Decision{Action: "search", Input: map[string]any{"query": "capital of France"}},
				Output:   map[string]any{"result": "Paris"},
			},
		},
		Progress: progress,
	}
}

const answer = "The capital of France is **Paris**.\n" +
	sentinel.DefaultSentinel + "\n" +
	`{"follow_ups": ["What is the population of Paris?", "What is the capital of Germany?"]}`

func TestSpec(t *testing.T) {
	a, err := respond.New(chunkedStreamer())
	gt.NoError(t, err)

	spec := a.Spec()
	gt.Equal(t, spec.Name, respond.ActionName)
	gt.True(t, spec.Final)
	gt.NoError(t, spec.Validate())
}

func TestExecute(t *testing.T) {
	for _, size := range []int{1, 4, 9, len(answer)} {
		var progress strings.Builder
		sink := cogito.ProgressFunc(func(ctx context.Context, msg string) error {
			progress.WriteString(msg)
			return nil
		})

		streamer := chunkedStreamer(splitEvery(answer, size)...)
		a, err := respond.New(streamer)
		gt.NoError(t, err)

		out, err := a.Execute(context.Background(), newActionContext(sink))
		gt.NoError(t, err)
		gt.Equal(t, out["answer"], "The capital of France is **Paris**.\n")
		gt.Equal[any](t, out["follow_ups"], []string{
			"What is the population of Paris?",
			"What is the capital of Germany?",
		})
		gt.Equal(t, progress.String(), "The capital of France is **Paris**.\n")
	}
}

func TestExecutePrompt(t *testing.T) {
	streamer := chunkedStreamer(answer)
	a, err := respond.New(streamer, respond.WithSystemPrompt("Answer in French."))
	gt.NoError(t, err)

	_, err = a.Execute(context.Background(), newActionContext(nil))
	gt.NoError(t, err)

	calls := streamer.StreamCalls()
	gt.A(t, calls).Length(1)
	req := calls[0].Req
	gt.Equal(t, req.System, "Answer in French.")
	gt.A(t, req.Messages).Length(1)
	prompt := req.Messages[0].Content
	gt.S(t, prompt).Contains("what is the capital of France?")
	gt.S(t, prompt).Contains("Focus on: geography")
	gt.S(t, prompt).Contains(`search: {"result":"Paris"}`)
	gt.S(t, prompt).Contains(sentinel.DefaultSentinel)
}

func TestExecuteWithoutSentinel(t *testing.T) {
	a, err := respond.New(chunkedStreamer("Paris is the capital.", " Nothing else."))
	gt.NoError(t, err)

	out, err := a.Execute(context.Background(), newActionContext(nil))
	gt.NoError(t, err)
	gt.Equal(t, out["answer"], "Paris is the capital. Nothing else.")
	gt.Equal[any](t, out["follow_ups"], []string{})
}

func TestExecuteEmptyTail(t *testing.T) {
	a, err := respond.New(chunkedStreamer("Paris.\n" + sentinel.DefaultSentinel + "\n"))
	gt.NoError(t, err)

	out, err := a.Execute(context.Background(), newActionContext(nil))
	gt.NoError(t, err)
	gt.Equal(t, out["answer"], "Paris.\n")
	gt.Equal[any](t, out["follow_ups"], []string{})
}

func TestExecuteInvalidTail(t *testing.T) {
	testCases := map[string]string{
		"malformed":     `{"follow_ups": [`,
		"schema":        `{"follow_ups": "not a list"}`,
		"missing field": `{"others": []}`,
	}

	for name, tail := range testCases {
		t.Run(name, func(t *testing.T) {
			a, err := respond.New(chunkedStreamer("Paris.\n" + sentinel.DefaultSentinel + "\n" + tail))
			gt.NoError(t, err)

			_, err = a.Execute(context.Background(), newActionContext(nil))
			gt.Error(t, err)
			gt.True(t, errors.Is(err, sentinel.ErrInvalidJSON))
		})
	}
}

func TestExecuteReportError(t *testing.T) {
	errReport := errors.New("client gone")
	sink := cogito.ProgressFunc(func(ctx context.Context, msg string) error {
		return errReport
	})

	a, err := respond.New(chunkedStreamer(splitEvery(answer, 5)...))
	gt.NoError(t, err)

	_, err = a.Execute(context.Background(), newActionContext(sink))
	gt.True(t, errors.Is(err, errReport))
}

func TestExecuteStreamError(t *testing.T) {
	streamer := &mock.StreamerMock{
		ModelNameFunc: func() string { return "mock-model" },
		StreamFunc: func(ctx context.Context, req *llm.Request) (<-chan *llm.Chunk, error) {
			ch := make(chan *llm.Chunk, 2)
			ch <- &llm.Chunk{Text: "Par"}
			ch <- &llm.Chunk{Err: errors.New("connection reset")}
			close(ch)
			return ch, nil
		},
	}

	a, err := respond.New(streamer)
	gt.NoError(t, err)

	_, err = a.Execute(context.Background(), newActionContext(nil))
	gt.True(t, errors.Is(err, llm.ErrStreamFailed))
}

func TestExecuteTrace(t *testing.T) {
	rec := trace.New()
	ctx := trace.WithHandler(context.Background(), rec)
	ctx = rec.StartCycle(ctx, "cycle-1", "msg")

	a, err := respond.New(chunkedStreamer(answer))
	gt.NoError(t, err)
	_, err = a.Execute(ctx, newActionContext(nil))
	gt.NoError(t, err)

	root := rec.Trace().RootSpan
	gt.A(t, root.Children).Length(1)
	gt.Equal(t, root.Children[0].Kind, trace.SpanKindLLMCall)
	gt.Equal(t, root.Children[0].LLMCall.Model, "mock-model")
	gt.Equal(t, root.Children[0].LLMCall.Response.Text, answer)
}
