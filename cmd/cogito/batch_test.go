package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	main "github.com/m-mizutani/cogito/cmd/cogito"
	"github.com/m-mizutani/cogito/llm"
	"github.com/m-mizutani/cogito/mock"
	"github.com/m-mizutani/cogito/sentinel"
	"github.com/m-mizutani/cogito/trace"
	"github.com/m-mizutani/gt"
)

// scriptStreamer answers decide prompts with respond_to_user and answer prompts with an echo of
// the user message.
func scriptStreamer(calls *atomic.Int32) *mock.StreamerMock {
	return &mock.StreamerMock{
		ModelNameFunc: func() string { return "mock-model" },
		StreamFunc: func(ctx context.Context, req *llm.Request) (<-chan *llm.Chunk, error) {
			calls.Add(1)
			var text string
			if strings.Contains(req.System, "respond_to_user") {
				text = "<title>Answer</title><reflection>Enough.</reflection><action>respond_to_user</action><input>{}</input>"
			} else {
				text = "done\n" + sentinel.DefaultSentinel + "\n" + `{"follow_ups": []}`
			}

			ch := make(chan *llm.Chunk, 1)
			ch <- &llm.Chunk{Text: text}
			close(ch)
			return ch, nil
		},
	}
}

func TestParseBatchInput(t *testing.T) {
	messages, err := main.ParseBatchInput(strings.NewReader("first\n\n# comment\n  second  \n"))
	gt.NoError(t, err)
	gt.Equal(t, messages, []string{"first", "second"})

	_, err = main.ParseBatchInput(strings.NewReader("\n# nothing\n"))
	gt.Error(t, err)
}

func TestRunBatch(t *testing.T) {
	var calls atomic.Int32
	cfg := main.DefaultConfig()
	cfg.WebPage.Disabled = true
	cfg.Trace.Dir = t.TempDir()

	ctx := context.Background()
	rt, err := main.BuildRuntime(ctx, cfg, scriptStreamer(&calls), slog.New(slog.DiscardHandler))
	gt.NoError(t, err)
	defer rt.Close()

	gt.Equal(t, rt.ActionNames(), []string{"respond_to_user"})

	messages := []string{"a", "b", "c", "d", "e"}
	views, err := rt.RunBatch(ctx, messages, 2)
	gt.NoError(t, err)
	gt.A(t, views).Length(len(messages))
	for i, v := range views {
		gt.Equal(t, v.Message, messages[i])
		gt.Equal(t, v.Error, "")
		gt.Equal(t, string(v.Status), "finalized")
		gt.Equal(t, v.Actions, []string{"respond_to_user"})
		gt.Equal(t, v.Output["answer"], "done\n")
	}
	// one decision and one answer per cycle
	gt.Equal(t, calls.Load(), int32(2*len(messages)))

	// every cycle saved its own trace
	resp, err := trace.NewFileRepository(cfg.Trace.Dir).List(ctx, trace.ListRequest{PageSize: 100})
	gt.NoError(t, err)
	gt.A(t, resp.Traces).Length(len(messages))

	var buf bytes.Buffer
	gt.NoError(t, main.WriteBatch(&buf, views))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	gt.A(t, lines).Length(len(messages))

	var first map[string]any
	gt.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	gt.Equal(t, first["message"], "a")
	gt.Equal(t, first["status"], "finalized")
}

func TestRunBatchFailedCycle(t *testing.T) {
	streamer := &mock.StreamerMock{
		ModelNameFunc: func() string { return "mock-model" },
		StreamFunc: func(ctx context.Context, req *llm.Request) (<-chan *llm.Chunk, error) {
			ch := make(chan *llm.Chunk, 1)
			ch <- &llm.Chunk{Text: "<action>no_such_action</action>"}
			close(ch)
			return ch, nil
		},
	}

	cfg := main.DefaultConfig()
	cfg.WebPage.Disabled = true
	rt, err := main.BuildRuntime(context.Background(), cfg, streamer, slog.New(slog.DiscardHandler))
	gt.NoError(t, err)
	defer rt.Close()

	views, err := rt.RunBatch(context.Background(), []string{"x", "y"}, 0)
	gt.NoError(t, err)
	gt.A(t, views).Length(2)
	for _, v := range views {
		gt.S(t, v.Error).Contains("unknown action")
	}
}
