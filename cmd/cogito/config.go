package main

import (
	"os"
	"time"

	"github.com/m-mizutani/cogito/stall"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

type config struct {
	Provider     providerConfig `yaml:"provider"`
	Instructions string         `yaml:"instructions"`
	Stall        stallConfig    `yaml:"stall"`
	WebPage      webPageConfig  `yaml:"web_page"`
	MCP          []mcpConfig    `yaml:"mcp"`
	Trace        traceConfig    `yaml:"trace"`
}

type providerConfig struct {
	// Name is one of openai, claude or gemini.
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`

	// Vertex AI, used by gemini and by claude when api_key is empty
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
}

type stallConfig struct {
	RepeatCount     int           `yaml:"repeat_count"`
	ActionTimeLimit time.Duration `yaml:"action_time_limit"`
	IterationLimit  int           `yaml:"iteration_limit"`
	MinCycle        int           `yaml:"min_cycle"`
	MaxCycle        int           `yaml:"max_cycle"`
}

type webPageConfig struct {
	Disabled  bool          `yaml:"disabled"`
	MaxLength int           `yaml:"max_length"`
	Timeout   time.Duration `yaml:"timeout"`
}

type mcpConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     []string          `yaml:"env"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

type traceConfig struct {
	Dir    string `yaml:"dir"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Log    bool   `yaml:"log"`
	OTel   bool   `yaml:"otel"`
}

func defaultConfig() *config {
	return &config{
		Provider: providerConfig{
			Name:     "openai",
			Location: "us-central1",
		},
		Stall: stallConfig{
			RepeatCount:     stall.DefaultRepeatCount,
			ActionTimeLimit: stall.DefaultActionTimeLimit,
			IterationLimit:  stall.DefaultIterationLimit,
			MinCycle:        stall.DefaultMinCycle,
			MaxCycle:        stall.DefaultMaxCycle,
		},
	}
}

// loadConfig reads a YAML file over the defaults. An empty path returns the defaults.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}
	if err := cfg.validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid config file", goerr.V("path", path))
	}
	return cfg, nil
}

func (c *config) validate() error {
	switch c.Provider.Name {
	case "openai", "claude", "gemini":
	default:
		return goerr.New("unknown provider", goerr.V("provider", c.Provider.Name))
	}

	for i, m := range c.MCP {
		if (m.Command == "") == (m.URL == "") {
			return goerr.New("mcp server needs exactly one of command or url", goerr.V("index", i), goerr.V("name", m.Name))
		}
	}

	if c.Trace.Dir != "" && c.Trace.Bucket != "" {
		return goerr.New("trace.dir and trace.bucket are mutually exclusive")
	}
	return nil
}

func (c *stallConfig) detectors() []stall.Detector {
	return []stall.Detector{
		&stall.RepeatedAction{Count: c.RepeatCount},
		&stall.TakingTooLong{Limit: c.ActionTimeLimit},
		&stall.IterationLimit{Limit: c.IterationLimit},
		&stall.ActionPattern{MinCycle: c.MinCycle, MaxCycle: c.MaxCycle},
	}
}
