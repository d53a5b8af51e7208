package webpage_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/cogito/action/webpage"
	"github.com/m-mizutani/gt"
)

const page = `<!DOCTYPE html>
<html>
<head>
  <title> Cogito Docs </title>
  <style>body { color: red; }</style>
  <script>console.log("hidden")</script>
</head>
<body>
  <nav><a href="/">Home</a></nav>
  <h1>Getting started</h1>
  <p>Cogito   runs a   thought cycle.</p>
  <ul><li>decide</li><li>act</li></ul>
  <footer>copyright</footer>
</body>
</html>`

func actionContext(input map[string]any) *cogito.ActionContext {
	return &cogito.ActionContext{
		CycleID:  "cycle-1",
		Decision: &cogito.Decision{Action: webpage.ActionName, Input: input},
	}
}

func TestExtract(t *testing.T) {
	title, text, err := webpage.Extract(page)
	gt.NoError(t, err)
	gt.Equal(t, title, "Cogito Docs")
	gt.Equal(t, text, "Getting started\n\nCogito runs a thought cycle.\n- decide\n- act")
}

func TestExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.S(t, r.Header.Get("User-Agent")).Contains("cogito")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	var reports []string
	actx := actionContext(map[string]any{"url": srv.URL + "/docs"})
	actx.Progress = cogito.ProgressFunc(func(ctx context.Context, msg string) error {
		reports = append(reports, msg)
		return nil
	})

	out, err := webpage.New(webpage.WithHTTPClient(srv.Client())).Execute(context.Background(), actx)
	gt.NoError(t, err)
	gt.Equal(t, out["title"], "Cogito Docs")
	gt.Equal(t, out["status"], http.StatusOK)
	gt.Equal(t, out["truncated"], false)
	gt.S(t, out["text"].(string)).Contains("Cogito runs a thought cycle.")
	gt.S(t, out["text"].(string)).NotContains("hidden")
	gt.S(t, out["text"].(string)).NotContains("copyright")
	gt.A(t, reports).Length(1)
}

func TestExecutePlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Repeat("a", 100))
	}))
	defer srv.Close()

	t.Run("action limit", func(t *testing.T) {
		a := webpage.New(webpage.WithMaxLength(10))
		out, err := a.Execute(context.Background(), actionContext(map[string]any{"url": srv.URL}))
		gt.NoError(t, err)
		gt.Equal[any](t, out["text"], strings.Repeat("a", 10))
		gt.Equal(t, out["truncated"], true)
		gt.Equal(t, out["title"], "")
	})

	t.Run("requested limit", func(t *testing.T) {
		a := webpage.New()
		out, err := a.Execute(context.Background(), actionContext(map[string]any{
			"url":        srv.URL,
			"max_length": float64(25),
		}))
		gt.NoError(t, err)
		gt.Equal[any](t, out["text"], strings.Repeat("a", 25))
	})

	t.Run("requested limit cannot exceed action limit", func(t *testing.T) {
		a := webpage.New(webpage.WithMaxLength(10))
		out, err := a.Execute(context.Background(), actionContext(map[string]any{
			"url":        srv.URL,
			"max_length": 50,
		}))
		gt.NoError(t, err)
		gt.Equal[any](t, out["text"], strings.Repeat("a", 10))
	})
}

func TestExecuteTruncateRune(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "ああああ")
	}))
	defer srv.Close()

	out, err := webpage.New(webpage.WithMaxLength(4)).Execute(context.Background(), actionContext(map[string]any{"url": srv.URL}))
	gt.NoError(t, err)
	gt.Equal(t, out["text"], "あ")
}

func TestExecuteInvalidURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com/file", "/relative/path", "http://"} {
		_, err := webpage.New().Execute(context.Background(), actionContext(map[string]any{"url": u}))
		gt.True(t, errors.Is(err, cogito.ErrInvalidParameter))
	}
}

func TestExecuteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := webpage.New().Execute(context.Background(), actionContext(map[string]any{"url": srv.URL}))
	gt.Error(t, err)
}

func TestExecuteTimeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-done:
		}
	}))
	defer srv.Close()
	defer close(done)

	a := webpage.New(webpage.WithTimeout(50 * time.Millisecond))
	_, err := a.Execute(context.Background(), actionContext(map[string]any{"url": srv.URL}))
	gt.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSpec(t *testing.T) {
	spec := webpage.New().Spec()
	gt.NoError(t, spec.Validate())
}
