package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/cogito"
	main "github.com/m-mizutani/cogito/cmd/cogito"
	"github.com/m-mizutani/gt"
)

func TestReadMessage(t *testing.T) {
	msg, err := main.ReadMessage("  hello  ", nil)
	gt.NoError(t, err)
	gt.Equal(t, msg, "hello")

	msg, err = main.ReadMessage("-", strings.NewReader("from stdin\n"))
	gt.NoError(t, err)
	gt.Equal(t, msg, "from stdin")

	_, err = main.ReadMessage("", nil)
	gt.Error(t, err)
}

func TestParseLabels(t *testing.T) {
	labels, err := main.ParseLabels([]string{"env=dev", "team=sec=ops"})
	gt.NoError(t, err)
	gt.Equal(t, labels, map[string]string{"env": "dev", "team": "sec=ops"})

	_, err = main.ParseLabels([]string{"novalue"})
	gt.Error(t, err)
}

func newTestResult() *cogito.Result {
	return &cogito.Result{
		CycleID:    "cycle-1",
		Status:     cogito.StatusFinalized,
		Iterations: 2,
		Steps: []cogito.Step{
			{Decision: &cogito.Decision{Action: "read_web_page"}},
			{Decision: &cogito.Decision{Action: "respond_to_user"}},
		},
		Output: map[string]any{
			"answer":     "Paris.\n",
			"follow_ups": []string{"And Germany?"},
		},
	}
}

func TestWriteResult(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		gt.NoError(t, main.WriteResult(&buf, "text", newTestResult()))
		gt.Equal(t, buf.String(), "\nParis.\n\nFollow-ups:\n- And Germany?\n")
	})

	t.Run("stalled text", func(t *testing.T) {
		result := newTestResult()
		result.Status = cogito.StatusStalled
		result.StallReason = "repeated"
		result.Output = map[string]any{"text": "page"}

		var buf bytes.Buffer
		gt.NoError(t, main.WriteResult(&buf, "text", result))
		gt.Equal(t, buf.String(), "\nstalled after 2 actions: repeated\n")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		gt.NoError(t, main.WriteResult(&buf, "json", newTestResult()))

		var v map[string]any
		gt.NoError(t, json.Unmarshal(buf.Bytes(), &v))
		gt.Equal(t, v["cycle_id"], "cycle-1")
		gt.Equal(t, v["status"], "finalized")
		gt.Equal[any](t, v["actions"], []any{"read_web_page", "respond_to_user"})
	})

	t.Run("unknown format", func(t *testing.T) {
		gt.Error(t, main.WriteResult(&bytes.Buffer{}, "xml", newTestResult()))
	})
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogito.log")

	var stderr bytes.Buffer
	logger, closer, err := main.NewLogger(&stderr, "info", "text", path)
	gt.NoError(t, err)

	logger.Debug("only in file")
	logger.Info("everywhere", slog.String("key", "value"))
	gt.NoError(t, closer())

	gt.S(t, stderr.String()).Contains("everywhere")
	gt.S(t, stderr.String()).NotContains("only in file")

	raw, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.S(t, string(raw)).Contains(`"msg":"only in file"`)
	gt.S(t, string(raw)).Contains(`"key":"value"`)

	t.Run("invalid level", func(t *testing.T) {
		_, _, err := main.NewLogger(&stderr, "loud", "text", "")
		gt.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, _, err := main.NewLogger(&stderr, "info", "xml", "")
		gt.Error(t, err)
	})
}

func TestThinkCommandRequiresMessage(t *testing.T) {
	err := main.NewApp().Run(context.Background(), []string{"cogito", "think"})
	gt.Error(t, err)
}
