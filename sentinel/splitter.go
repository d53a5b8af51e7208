// Package sentinel splits a streamed response into free-form body text and a trailing one-line
// JSON payload separated by a fixed delimiter.
//
//	Here is my answer...
//	<<END-OF-BODY>>
//	{"follow_ups": ["..."]}
//
// Body text is emitted incrementally while the JSON tail is reported only once, by End.
package sentinel

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// DefaultSentinel separates the body from the JSON tail.
const DefaultSentinel = "<<END-OF-BODY>>"

var (
	// ErrSentinelNotFound is returned by End when the stream never contained the sentinel. The
	// returned Result still holds the whole body.
	ErrSentinelNotFound = errors.New("sentinel not found in stream")

	// ErrEmptyJSON is returned by End when nothing follows the sentinel.
	ErrEmptyJSON = errors.New("empty JSON tail")

	// ErrInvalidJSON is returned by End when the tail is not valid JSON or violates the schema.
	ErrInvalidJSON = errors.New("invalid JSON tail")
)

// State is the phase of a Splitter.
type State int

const (
	StateBody State = iota
	StateJSON
)

func (x State) String() string {
	return []string{"body", "json"}[x]
}

// Result is the outcome of a split stream.
type Result struct {
	Body string
	JSON string
}

// Decode unmarshals the JSON tail into v.
func (r *Result) Decode(v any) error {
	if err := json.Unmarshal([]byte(r.JSON), v); err != nil {
		return goerr.Wrap(err, "failed to decode JSON tail", goerr.V("json", r.JSON))
	}
	return nil
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSentinel replaces DefaultSentinel. An empty sentinel is ignored.
func WithSentinel(sentinel string) Option {
	return func(s *Splitter) {
		if sentinel != "" {
			s.sentinel = sentinel
		}
	}
}

// WithSchema validates the JSON tail against schema in End.
func WithSchema(schema *jsonschema.Schema) Option {
	return func(s *Splitter) {
		s.schema = schema
	}
}

// WithLogger sets a logger. Default is a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Splitter) {
		s.logger = logger
	}
}

// Splitter is a two-phase stream splitter. It belongs to one stream and is not safe for
// concurrent use.
type Splitter struct {
	sentinel string
	schema   *jsonschema.Schema
	logger   *slog.Logger
	onBody   func(string)

	state          State
	pending        string
	swallowNewline bool

	body strings.Builder
	tail strings.Builder
}

// New creates a Splitter. onBody receives body text as soon as it is known not to be part of the
// sentinel; it may be nil.
func New(onBody func(string), options ...Option) *Splitter {
	s := &Splitter{
		sentinel: DefaultSentinel,
		logger:   slog.New(slog.DiscardHandler),
		onBody:   onBody,
		state:    StateBody,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// State returns the current phase.
func (s *Splitter) State() State {
	return s.state
}

// Process consumes the next chunk.
func (s *Splitter) Process(chunk string) {
	if s.state == StateJSON {
		s.appendTail(chunk)
		return
	}

	buf := s.pending + chunk
	if idx := strings.Index(buf, s.sentinel); idx >= 0 {
		s.emit(buf[:idx])
		s.pending = ""
		s.state = StateJSON
		s.swallowNewline = true
		s.logger.Debug("sentinel found", "body_length", s.body.Len())

		s.appendTail(buf[idx+len(s.sentinel):])
		return
	}

	hold := partialSuffix(buf, s.sentinel)
	s.emit(buf[:len(buf)-hold])
	s.pending = buf[len(buf)-hold:]
}

// End flushes withheld body bytes and returns the split result.
func (s *Splitter) End() (*Result, error) {
	if s.state == StateBody {
		s.emit(s.pending)
		s.pending = ""
		return &Result{Body: s.body.String()}, goerr.Wrap(ErrSentinelNotFound, "stream ended without sentinel",
			goerr.V("sentinel", s.sentinel),
			goerr.V("body_length", s.body.Len()),
		)
	}

	result := &Result{
		Body: s.body.String(),
		JSON: strings.TrimSpace(s.tail.String()),
	}

	if result.JSON == "" {
		return result, goerr.Wrap(ErrEmptyJSON, "nothing follows the sentinel")
	}

	if s.schema == nil {
		if !json.Valid([]byte(result.JSON)) {
			return result, goerr.Wrap(ErrInvalidJSON, "JSON tail is malformed", goerr.V("json", result.JSON))
		}
		return result, nil
	}

	v, err := jsonschema.UnmarshalJSON(strings.NewReader(result.JSON))
	if err != nil {
		return result, goerr.Wrap(ErrInvalidJSON, "JSON tail is malformed",
			goerr.V("json", result.JSON),
			goerr.V("error", err.Error()),
		)
	}
	if err := s.schema.Validate(v); err != nil {
		return result, goerr.Wrap(ErrInvalidJSON, "JSON tail violates schema",
			goerr.V("json", result.JSON),
			goerr.V("error", err.Error()),
		)
	}

	return result, nil
}

func (s *Splitter) emit(text string) {
	if text == "" {
		return
	}
	s.body.WriteString(text)
	if s.onBody != nil {
		s.onBody(text)
	}
}

func (s *Splitter) appendTail(chunk string) {
	if s.swallowNewline && chunk != "" {
		s.swallowNewline = false
		chunk = strings.TrimPrefix(chunk, "\n")
	}
	s.tail.WriteString(chunk)
}

// partialSuffix returns the length of the longest suffix of buf that is a proper prefix of
// sentinel. Those bytes can not be emitted until more input arrives.
func partialSuffix(buf, sentinel string) int {
	for k := min(len(buf), len(sentinel)-1); k > 0; k-- {
		if strings.HasSuffix(buf, sentinel[:k]) {
			return k
		}
	}
	return 0
}

// CompileSchema compiles a JSON Schema document for WithSchema.
func CompileSchema(schema string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schema))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse JSON schema")
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("tail.json", doc); err != nil {
		return nil, goerr.Wrap(err, "failed to add JSON schema resource")
	}

	compiled, err := c.Compile("tail.json")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compile JSON schema")
	}
	return compiled, nil
}
