package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func thinkCommand(g *globals) *cli.Command {
	var (
		output string
		quiet  bool
		labels []string
	)

	return &cli.Command{
		Name:      "think",
		Usage:     "run one thought cycle for a message",
		ArgsUsage: "MESSAGE (\"-\" reads stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Value:       "text",
				Usage:       "result format (text, json)",
				Destination: &output,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Aliases:     []string{"q"},
				Usage:       "do not print progress",
				Destination: &quiet,
			},
			&cli.StringSliceFlag{
				Name:        "label",
				Usage:       "trace label as key=value",
				Destination: &labels,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			message, err := readMessage(cmd.Args().First(), os.Stdin)
			if err != nil {
				return err
			}
			labelMap, err := parseLabels(labels)
			if err != nil {
				return err
			}

			rt, err := newRuntime(ctx, g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					g.logger.Warn("failed to close runtime", "error", err)
				}
			}()

			opts := []cogito.Option{rt.traceOption(labelMap)}
			if !quiet {
				opts = append(opts, cogito.WithProgress(writerProgress(os.Stderr)))
			}

			result, err := rt.thinker.Think(ctx, message, opts...)
			if err != nil {
				return err
			}
			return writeResult(os.Stdout, output, result)
		},
	}
}

func readMessage(arg string, stdin io.Reader) (string, error) {
	if arg == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", goerr.Wrap(err, "failed to read message from stdin")
		}
		arg = string(raw)
	}
	message := strings.TrimSpace(arg)
	if message == "" {
		return "", goerr.New("message is required")
	}
	return message, nil
}

func parseLabels(labels []string) (map[string]string, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(labels))
	for _, l := range labels {
		k, v, ok := strings.Cut(l, "=")
		if !ok || k == "" {
			return nil, goerr.New("label must be key=value", goerr.V("label", l))
		}
		m[k] = v
	}
	return m, nil
}

func writerProgress(w io.Writer) cogito.ProgressSink {
	return cogito.ProgressFunc(func(ctx context.Context, msg string) error {
		_, err := io.WriteString(w, msg)
		return err
	})
}

type resultView struct {
	CycleID     string         `json:"cycle_id"`
	Message     string         `json:"message,omitempty"`
	Status      cogito.Status  `json:"status,omitempty"`
	StallReason string         `json:"stall_reason,omitempty"`
	Iterations  int            `json:"iterations"`
	Actions     []string       `json:"actions"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
}

func newResultView(result *cogito.Result) *resultView {
	v := &resultView{
		CycleID:     result.CycleID,
		Status:      result.Status,
		StallReason: result.StallReason,
		Iterations:  result.Iterations,
		Actions:     []string{},
		Output:      result.Output,
	}
	for _, step := range result.Steps {
		if step.Decision != nil {
			v.Actions = append(v.Actions, step.Decision.Action)
		}
	}
	return v
}

func writeResult(w io.Writer, format string, result *cogito.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(newResultView(result)); err != nil {
			return goerr.Wrap(err, "failed to write result")
		}
		return nil

	case "text", "":
		var sb strings.Builder
		sb.WriteString("\n")
		if result.Status == cogito.StatusStalled {
			fmt.Fprintf(&sb, "stalled after %d actions: %s\n", result.Iterations, result.StallReason)
		}
		if answer, ok := result.Output["answer"].(string); ok {
			sb.WriteString(strings.TrimSpace(answer))
			sb.WriteString("\n")
		}
		if followUps, ok := result.Output["follow_ups"].([]string); ok && len(followUps) > 0 {
			sb.WriteString("\nFollow-ups:\n")
			for _, f := range followUps {
				fmt.Fprintf(&sb, "- %s\n", f)
			}
		}
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return goerr.Wrap(err, "failed to write result")
		}
		return nil
	}

	return goerr.New("invalid output format", goerr.V("format", format))
}
