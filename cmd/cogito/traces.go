package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/m-mizutani/cogito/trace"
	"github.com/m-mizutani/cogito/trace/gcs"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func tracesCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "traces",
		Usage: "inspect saved traces (uses --trace-dir or --trace-bucket)",
		Commands: []*cli.Command{
			tracesListCommand(g),
			tracesShowCommand(g),
			tracesServeCommand(g),
		},
	}
}

// openSource returns the trace store selected by the trace config and a function releasing it.
func openSource(ctx context.Context, cfg *traceConfig) (trace.Source, func() error, error) {
	switch {
	case cfg.Dir != "":
		return trace.NewFileRepository(cfg.Dir), func() error { return nil }, nil
	case cfg.Bucket != "":
		repo, err := gcs.New(ctx, cfg.Bucket, gcs.WithPrefix(cfg.Prefix))
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	}
	return nil, nil, goerr.New("either --trace-dir or --trace-bucket must be specified")
}

func tracesListCommand(g *globals) *cli.Command {
	var (
		pageSize  int
		pageToken string
	)
	return &cli.Command{
		Name:  "list",
		Usage: "list saved traces",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "page-size",
				Value:       20,
				Destination: &pageSize,
			},
			&cli.StringFlag{
				Name:        "page-token",
				Destination: &pageToken,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			src, closer, err := openSource(ctx, &g.cfg.Trace)
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			resp, err := src.List(ctx, trace.ListRequest{PageSize: pageSize, PageToken: pageToken})
			if err != nil {
				return err
			}
			return writeTraceList(os.Stdout, resp)
		},
	}
}

func writeTraceList(w io.Writer, resp *trace.ListResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRACE ID\tSIZE\tUPDATED")
	for _, t := range resp.Traces {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", t.TraceID, t.Size, t.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	if resp.NextPageToken != "" {
		fmt.Fprintf(tw, "\nnext page token: %s\n", resp.NextPageToken)
	}
	if err := tw.Flush(); err != nil {
		return goerr.Wrap(err, "failed to write trace list")
	}
	return nil
}

func tracesShowCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "print a trace as JSON",
		ArgsUsage: "TRACE_ID",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			traceID := cmd.Args().First()
			if traceID == "" {
				return goerr.New("trace ID is required")
			}

			src, closer, err := openSource(ctx, &g.cfg.Trace)
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			t, err := src.Get(ctx, traceID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(t)
		},
	}
}

func tracesServeCommand(g *globals) *cli.Command {
	var addr string
	return &cli.Command{
		Name:  "serve",
		Usage: "serve saved traces over an HTTP JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Value:       ":18900",
				Sources:     cli.EnvVars("COGITO_TRACE_ADDR"),
				Usage:       "listen address",
				Destination: &addr,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			src, closer, err := openSource(ctx, &g.cfg.Trace)
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			s := newServer(src, withAddr(addr), withLogger(g.logger))
			return s.start(ctx)
		},
	}
}
