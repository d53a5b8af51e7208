package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	g := &globals{}
	return &cli.Command{
		Name:    "cogito",
		Usage:   "run LLM driven thought cycles",
		Version: version,
		Flags:   g.flags(),
		Before:  g.before,
		After:   g.after,
		Commands: []*cli.Command{
			thinkCommand(g),
			batchCommand(g),
			tracesCommand(g),
		},
	}
}
