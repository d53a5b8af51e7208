package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func batchCommand(g *globals) *cli.Command {
	var (
		input    string
		output   string
		parallel int
	)

	return &cli.Command{
		Name:  "batch",
		Usage: "run independent thought cycles for every line of a file and write JSON lines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "file with one message per line (\"-\" reads stdin)",
				Value:       "-",
				Destination: &input,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "JSON lines output file (default stdout)",
				Destination: &output,
			},
			&cli.IntFlag{
				Name:        "parallel",
				Aliases:     []string{"p"},
				Value:       4,
				Usage:       "number of cycles running at the same time",
				Sources:     cli.EnvVars("COGITO_BATCH_PARALLEL"),
				Destination: &parallel,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			messages, err := readBatchInput(input)
			if err != nil {
				return err
			}

			w := io.Writer(os.Stdout)
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return goerr.Wrap(err, "failed to create output file", goerr.V("path", output))
				}
				defer f.Close()
				w = f
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

			views, err := runBatch(ctx, rt, messages, parallel)
			if err != nil {
				return err
			}
			return writeBatch(w, views)
		},
	}
}

func readBatchInput(path string) ([]string, error) {
	r := io.Reader(os.Stdin)
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open input file", goerr.V("path", path))
		}
		defer f.Close()
		r = f
	}
	return parseBatchInput(r)
}

// parseBatchInput returns the non-empty lines of r. Lines starting with '#' are comments.
func parseBatchInput(r io.Reader) ([]string, error) {
	var messages []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		messages = append(messages, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read batch input")
	}
	if len(messages) == 0 {
		return nil, goerr.New("batch input has no message")
	}
	return messages, nil
}

// runBatch runs one cycle per message with at most parallel cycles at a time. A failed cycle is
// reported in its view and does not stop the others.
func runBatch(ctx context.Context, rt *runtime, messages []string, parallel int) ([]*resultView, error) {
	views := make([]*resultView, len(messages))

	var eg errgroup.Group
	if parallel > 0 {
		eg.SetLimit(parallel)
	}
	for i, msg := range messages {
		eg.Go(func() error {
			labels := map[string]string{"batch_index": strconv.Itoa(i)}
			result, err := rt.thinker.Think(ctx, msg, rt.traceOption(labels))
			if err != nil {
				rt.logger.Error("cycle failed", "index", i, "error", err)
				views[i] = &resultView{Message: msg, Actions: []string{}, Error: err.Error()}
				return nil
			}
			views[i] = newResultView(result)
			views[i].Message = msg
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, goerr.Wrap(err, "batch run failed")
	}

	return views, nil
}

func writeBatch(w io.Writer, views []*resultView) error {
	enc := json.NewEncoder(w)
	for _, v := range views {
		if err := enc.Encode(v); err != nil {
			return goerr.Wrap(err, "failed to write batch result")
		}
	}
	return nil
}

