// Package tagstream incrementally extracts the content of `<tag>...</tag>` fields from text that
// arrives in arbitrary chunks, such as a streamed LLM completion.
//
// The grammar is deliberately small: tags carry no attributes, there are no self-closing forms and
// no entity escaping. Tags may nest to any depth and content always belongs to the innermost open
// tag. Text outside of any tag is ignored.
//
// A Parser belongs to exactly one stream and must not be shared between goroutines.
//
//	p := tagstream.New(
//		tagstream.WithHandler("reflection", func(text string) { fmt.Print(text) }),
//	)
//	for chunk := range chunks {
//		if _, err := p.Process(chunk); err != nil {
//			return err
//		}
//	}
package tagstream

import (
	"bytes"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// State is the scanning state of a Parser.
type State int

const (
	// StateNone means no tag is open. Bytes are discarded until `<`.
	StateNone State = iota
	// StateOpenTag means the name of an opening tag is being read.
	StateOpenTag
	// StateContent means bytes belong to the innermost open tag.
	StateContent
	// StateCloseTag means the name of a closing tag is being read.
	StateCloseTag
)

func (x State) String() string {
	return []string{"none", "open_tag", "content", "close_tag"}[x]
}

// EventKind is the kind of an Event.
type EventKind int

const (
	EventOpen EventKind = iota
	EventContent
	EventClose
)

func (x EventKind) String() string {
	return []string{"open", "content", "close"}[x]
}

// Event is one observation made while processing a chunk. Content events carry only the text
// added to the tag by the chunk that produced them.
type Event struct {
	Kind EventKind
	Tag  string
	Text string
}

// Handler receives newly added content of one tag.
type Handler func(text string)

// Option configures a Parser.
type Option func(*Parser)

// WithHandler registers a content handler for a tag name. The handler is called at most once per
// Process call with the content added to the tag during that call. Registering the same tag twice
// replaces the previous handler.
func WithHandler(tag string, fn Handler) Option {
	return func(p *Parser) {
		p.handlers[tag] = fn
	}
}

// WithOpenHandler sets a callback invoked when any tag opens.
func WithOpenHandler(fn func(tag string)) Option {
	return func(p *Parser) {
		p.onOpen = fn
	}
}

// WithCloseHandler sets a callback invoked when any tag closes.
func WithCloseHandler(fn func(tag string)) Option {
	return func(p *Parser) {
		p.onClose = fn
	}
}

// Parser is an incremental tag stream parser.
type Parser struct {
	state   State
	pending []byte
	name    []byte
	stack   []string

	contents map[string]*strings.Builder
	handlers map[string]Handler
	onOpen   func(tag string)
	onClose  func(tag string)

	err error
}

// New creates a Parser for one stream.
func New(options ...Option) *Parser {
	p := &Parser{
		state:    StateNone,
		contents: map[string]*strings.Builder{},
		handlers: map[string]Handler{},
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// State returns the current scanning state.
func (p *Parser) State() State {
	return p.state
}

// Depth returns the number of currently open tags.
func (p *Parser) Depth() int {
	return len(p.stack)
}

// Content returns all content delivered so far for the tag.
func (p *Parser) Content(tag string) string {
	if b, ok := p.contents[tag]; ok {
		return b.String()
	}
	return ""
}

// callEvents collects events of a single Process call, merging content per tag.
type callEvents struct {
	events []Event
	texts  map[string]*bytes.Buffer
	index  map[string]int
}

func newCallEvents() *callEvents {
	return &callEvents{
		texts: map[string]*bytes.Buffer{},
		index: map[string]int{},
	}
}

func (c *callEvents) add(kind EventKind, tag string) {
	c.events = append(c.events, Event{Kind: kind, Tag: tag})
}

func (c *callEvents) content(tag string, b []byte) {
	if len(b) == 0 {
		return
	}
	buf, ok := c.texts[tag]
	if !ok {
		buf = &bytes.Buffer{}
		c.texts[tag] = buf
		c.index[tag] = len(c.events)
		c.events = append(c.events, Event{Kind: EventContent, Tag: tag})
	}
	buf.Write(b)
}

func (c *callEvents) build() []Event {
	for tag, idx := range c.index {
		c.events[idx].Text = c.texts[tag].String()
	}
	return c.events
}

// Process consumes the next chunk of the stream. It returns the events observed in this call and
// dispatches them to the registered handlers. Bytes that cannot be classified yet (a trailing `<`)
// are kept for the next call.
//
// A mismatched or unexpected closing tag is fatal: no handler fires for the failing call and every
// later call returns ErrParserFailed.
func (p *Parser) Process(chunk string) ([]Event, error) {
	if p.err != nil {
		return nil, goerr.Wrap(ErrParserFailed, "parser can not be reused", goerr.V("cause", p.err.Error()))
	}

	buf := append(p.pending, chunk...)
	ce := newCallEvents()

	i, err := p.scan(buf, ce)
	if err != nil {
		p.err = err
		p.pending = nil
		return nil, err
	}

	p.pending = append(p.pending[:0], buf[i:]...)

	events := ce.build()
	p.dispatch(events)
	return events, nil
}

func (p *Parser) scan(buf []byte, ce *callEvents) (int, error) {
	i := 0
	for i < len(buf) {
		switch p.state {
		case StateNone:
			j := bytes.IndexByte(buf[i:], '<')
			if j < 0 {
				return len(buf), nil
			}
			i += j
			if i+1 >= len(buf) {
				return i, nil
			}
			if buf[i+1] == '/' {
				return i, goerr.Wrap(ErrUnexpectedCloseTag, "closing tag at top level", goerr.V("offset", i))
			}
			p.state = StateOpenTag
			p.name = p.name[:0]
			i++

		case StateOpenTag:
			j := bytes.IndexByte(buf[i:], '>')
			if j < 0 {
				p.name = append(p.name, buf[i:]...)
				return len(buf), nil
			}
			p.name = append(p.name, buf[i:i+j]...)
			i += j + 1

			if len(p.name) == 0 {
				return i, goerr.Wrap(ErrEmptyTagName, "opening tag has no name", goerr.V("stack", p.openTags()))
			}
			tag := string(p.name)
			p.stack = append(p.stack, tag)
			p.state = StateContent
			ce.add(EventOpen, tag)

		case StateContent:
			top := p.stack[len(p.stack)-1]
			j := bytes.IndexByte(buf[i:], '<')
			if j < 0 {
				ce.content(top, buf[i:])
				return len(buf), nil
			}
			ce.content(top, buf[i:i+j])
			i += j
			if i+1 >= len(buf) {
				return i, nil
			}
			p.name = p.name[:0]
			if buf[i+1] == '/' {
				p.state = StateCloseTag
				i += 2
			} else {
				p.state = StateOpenTag
				i++
			}

		case StateCloseTag:
			j := bytes.IndexByte(buf[i:], '>')
			if j < 0 {
				p.name = append(p.name, buf[i:]...)
				return len(buf), nil
			}
			p.name = append(p.name, buf[i:i+j]...)
			i += j + 1

			tag := string(p.name)
			top := p.stack[len(p.stack)-1]
			if tag == "" {
				return i, goerr.Wrap(ErrEmptyTagName, "closing tag has no name", goerr.V("expected", top))
			}
			if tag != top {
				return i, goerr.Wrap(ErrMismatchedCloseTag, "closing tag does not match open tag",
					goerr.V("expected", top),
					goerr.V("actual", tag),
					goerr.V("stack", p.openTags()),
				)
			}

			p.stack = p.stack[:len(p.stack)-1]
			ce.add(EventClose, tag)
			if len(p.stack) == 0 {
				p.state = StateNone
			} else {
				p.state = StateContent
			}
		}
	}

	return i, nil
}

func (p *Parser) dispatch(events []Event) {
	for _, ev := range events {
		switch ev.Kind {
		case EventOpen:
			if p.onOpen != nil {
				p.onOpen(ev.Tag)
			}

		case EventContent:
			b, ok := p.contents[ev.Tag]
			if !ok {
				b = &strings.Builder{}
				p.contents[ev.Tag] = b
			}
			b.WriteString(ev.Text)

			if fn, ok := p.handlers[ev.Tag]; ok {
				fn(ev.Text)
			}

		case EventClose:
			if p.onClose != nil {
				p.onClose(ev.Tag)
			}
		}
	}
}

func (p *Parser) openTags() []string {
	return append([]string(nil), p.stack...)
}

// Close marks the end of the stream. It returns ErrUnterminatedTag when the stream ended with open
// tags or a partially read tag. Content already delivered stays valid, so callers may choose to
// treat this error as a warning.
func (p *Parser) Close() error {
	if p.err != nil {
		return goerr.Wrap(ErrParserFailed, "parser can not be closed cleanly", goerr.V("cause", p.err.Error()))
	}

	if p.state != StateNone || len(p.pending) > 0 {
		return goerr.Wrap(ErrUnterminatedTag, "stream ended inside a tag",
			goerr.V("state", p.state.String()),
			goerr.V("stack", p.openTags()),
			goerr.V("pending", string(p.pending)),
		)
	}

	return nil
}

// Collect feeds all chunks to a new Parser and returns the accumulated content per tag.
func Collect(chunks ...string) (map[string]string, error) {
	p := New()
	for _, chunk := range chunks {
		if _, err := p.Process(chunk); err != nil {
			return nil, err
		}
	}
	if err := p.Close(); err != nil {
		return nil, err
	}

	result := make(map[string]string, len(p.contents))
	for tag, b := range p.contents {
		result[tag] = b.String()
	}
	return result, nil
}
