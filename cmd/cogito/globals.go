package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// globals holds the root flags and what is built from them before a subcommand runs.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string
	logFile    string

	provider providerConfig
	trace    traceConfig

	cfg         *config
	logger      *slog.Logger
	closeLogger func() error
}

func (g *globals) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "YAML config file",
			Sources:     cli.EnvVars("COGITO_CONFIG"),
			Destination: &g.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Value:       "info",
			Usage:       "log level (debug, info, warn, error)",
			Sources:     cli.EnvVars("COGITO_LOG_LEVEL"),
			Destination: &g.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Value:       "text",
			Usage:       "log format on stderr (text, json)",
			Sources:     cli.EnvVars("COGITO_LOG_FORMAT"),
			Destination: &g.logFormat,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       "also write JSON logs to the file",
			Sources:     cli.EnvVars("COGITO_LOG_FILE"),
			Destination: &g.logFile,
		},
		&cli.StringFlag{
			Name:        "provider",
			Usage:       "LLM provider (openai, claude, gemini)",
			Sources:     cli.EnvVars("COGITO_PROVIDER"),
			Destination: &g.provider.Name,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "model name",
			Sources:     cli.EnvVars("COGITO_MODEL"),
			Destination: &g.provider.Model,
		},
		&cli.StringFlag{
			Name:        "api-key",
			Usage:       "API key of the provider",
			Sources:     cli.EnvVars("COGITO_API_KEY"),
			Destination: &g.provider.APIKey,
		},
		&cli.StringFlag{
			Name:        "gcp-project",
			Usage:       "Google Cloud project for Vertex AI",
			Sources:     cli.EnvVars("COGITO_GCP_PROJECT"),
			Destination: &g.provider.Project,
		},
		&cli.StringFlag{
			Name:        "gcp-location",
			Usage:       "Google Cloud location for Vertex AI",
			Sources:     cli.EnvVars("COGITO_GCP_LOCATION"),
			Destination: &g.provider.Location,
		},
		&cli.StringFlag{
			Name:        "trace-dir",
			Usage:       "save traces as JSON files in the directory",
			Sources:     cli.EnvVars("COGITO_TRACE_DIR"),
			Destination: &g.trace.Dir,
		},
		&cli.StringFlag{
			Name:        "trace-bucket",
			Usage:       "save traces to the Cloud Storage bucket",
			Sources:     cli.EnvVars("COGITO_TRACE_BUCKET"),
			Destination: &g.trace.Bucket,
		},
		&cli.StringFlag{
			Name:        "trace-prefix",
			Usage:       "object prefix in the trace bucket",
			Sources:     cli.EnvVars("COGITO_TRACE_PREFIX"),
			Destination: &g.trace.Prefix,
		},
		&cli.BoolFlag{
			Name:        "trace-log",
			Usage:       "log trace events",
			Sources:     cli.EnvVars("COGITO_TRACE_LOG"),
			Destination: &g.trace.Log,
		},
		&cli.BoolFlag{
			Name:        "trace-otel",
			Usage:       "emit trace events as OpenTelemetry spans",
			Sources:     cli.EnvVars("COGITO_TRACE_OTEL"),
			Destination: &g.trace.OTel,
		},
	}
}

func (g *globals) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	logger, closer, err := newLogger(os.Stderr, g.logLevel, g.logFormat, g.logFile)
	if err != nil {
		return ctx, err
	}
	g.logger = logger
	g.closeLogger = closer

	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return ctx, err
	}
	g.merge(cfg, cmd.IsSet)
	if err := cfg.validate(); err != nil {
		return ctx, err
	}
	g.cfg = cfg

	return ctx, nil
}

// merge overrides cfg with every flag that was set on the command line or by env var.
func (g *globals) merge(cfg *config, isSet func(string) bool) {
	set := func(name string, dst *string, v string) {
		if isSet(name) {
			*dst = v
		}
	}
	set("provider", &cfg.Provider.Name, g.provider.Name)
	set("model", &cfg.Provider.Model, g.provider.Model)
	set("api-key", &cfg.Provider.APIKey, g.provider.APIKey)
	set("gcp-project", &cfg.Provider.Project, g.provider.Project)
	set("gcp-location", &cfg.Provider.Location, g.provider.Location)
	set("trace-dir", &cfg.Trace.Dir, g.trace.Dir)
	set("trace-bucket", &cfg.Trace.Bucket, g.trace.Bucket)
	set("trace-prefix", &cfg.Trace.Prefix, g.trace.Prefix)

	if isSet("trace-log") {
		cfg.Trace.Log = g.trace.Log
	}
	if isSet("trace-otel") {
		cfg.Trace.OTel = g.trace.OTel
	}
}

func (g *globals) after(ctx context.Context, cmd *cli.Command) error {
	if g.closeLogger != nil {
		return g.closeLogger()
	}
	return nil
}
